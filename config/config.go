package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/consensus/alpenglow/node"
)

// EnvPrefix prefixes the environment variables overriding configuration
// values, e.g. ALPENGLOW_METRICS_INTERVAL.
const EnvPrefix = "ALPENGLOW"

// Config is the configuration of an Alpenglow simulation. All sections share
// one flat key space, the flag names, both in the config file and on the
// command line.
type Config struct {
	Protocol    model.Config     `mapstructure:",squash"`
	Integration node.Parameters  `mapstructure:",squash"`
	Simulation  SimulationConfig `mapstructure:",squash"`
}

// SimulationConfig controls the synthetic workload and the process around it.
type SimulationConfig struct {
	Ticks              uint64 `mapstructure:"ticks" validate:"gt=0"`
	Workers            int    `mapstructure:"workers" validate:"gt=0"`
	BlockInterval      uint64 `mapstructure:"block-interval" validate:"gt=0"`
	MessagesPerTick    int    `mapstructure:"messages-per-tick" validate:"gte=0"`
	Byzantine          []int  `mapstructure:"byzantine"`
	Seed               int64  `mapstructure:"seed"`
	CheckpointInterval uint64 `mapstructure:"checkpoint-interval"`
	Datadir            string `mapstructure:"datadir"`
	LogLevel           string `mapstructure:"loglevel" validate:"oneof=trace debug info warn error"`
	ReportFile         string `mapstructure:"report-file"`
	MetricsAddr        string `mapstructure:"metrics-addr"`
}

// DefaultConfig returns the default configuration of a four-validator cluster.
// Stakes and stake thresholds are left unset; they are derived from the
// committee size when the configuration is loaded.
func DefaultConfig() *Config {
	protocol := model.DefaultConfig(4)
	protocol.Stakes = nil
	protocol.FastPathThreshold = 0
	protocol.SlowPathThreshold = 0
	protocol.SkipThreshold = 0
	return &Config{
		Protocol:    protocol,
		Integration: node.DefaultParameters(),
		Simulation: SimulationConfig{
			Ticks:           1000,
			Workers:         4,
			BlockInterval:   10,
			MessagesPerTick: 8,
			Seed:            1,
			LogLevel:        "info",
		},
	}
}

// Load resolves the configuration from, in increasing precedence, the flag
// defaults, the config file named by the config flag, ALPENGLOW_ environment
// variables and the flags set on the command line. flags must have been
// initialized with InitializeFlags.
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	err := v.BindPFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("could not bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString(configFile); file != "" {
		v.SetConfigFile(file)
		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", file, err)
		}
	}

	var conf Config
	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("could not decode configuration: %w", err)
	}
	conf.Protocol.Normalize()

	err = conf.Validate()
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate runs the struct tag checks and the cross-field checks of every section.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return NewInvalidConfigErr(fieldErrs[0].Namespace(), err)
		}
		return fmt.Errorf("could not validate configuration: %w", err)
	}
	err = c.Protocol.Validate()
	if err != nil {
		return NewInvalidConfigErr("protocol", err)
	}
	err = c.Integration.Validate()
	if err != nil {
		return NewInvalidConfigErr("integration", err)
	}
	for _, v := range c.Simulation.Byzantine {
		if v < 0 || v >= c.Protocol.Validators {
			return NewInvalidConfigErr(byzantine, fmt.Errorf("validator %d outside committee of %d", v, c.Protocol.Validators))
		}
	}
	if c.Simulation.CheckpointInterval > 0 && c.Simulation.Datadir == "" {
		return NewInvalidConfigErr(checkpointInterval, fmt.Errorf("checkpoints need a data directory"))
	}
	return nil
}

// ByzantineValidators returns the configured Byzantine validators.
func (c *Config) ByzantineValidators() []model.ValidatorID {
	out := make([]model.ValidatorID, 0, len(c.Simulation.Byzantine))
	for _, v := range c.Simulation.Byzantine {
		out = append(out, model.ValidatorID(v))
	}
	return out
}
