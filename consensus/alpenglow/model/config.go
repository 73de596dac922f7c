package model

import (
	"fmt"

	"github.com/onflow/alpenglow/consensus/alpenglow/committees"
)

// Config holds the protocol parameters shared by all subsystems of a node.
// Stake thresholds left at zero are derived from the total stake.
type Config struct {
	// Validators is the committee size N.
	Validators int `mapstructure:"validators" json:"validators" validate:"gt=0"`
	// Stakes holds per-validator stake. Empty means one unit of stake per validator.
	Stakes []uint64 `mapstructure:"stakes" json:"stakes"`

	FastPathThreshold uint64 `mapstructure:"fast-path-threshold" json:"fastPathThreshold"`
	SlowPathThreshold uint64 `mapstructure:"slow-path-threshold" json:"slowPathThreshold"`
	SkipThreshold     uint64 `mapstructure:"skip-threshold" json:"skipThreshold"`

	// GST is the global stabilization time, in ticks.
	GST uint64 `mapstructure:"gst" json:"gst"`
	// Delta is the maximum post-GST delivery delay, in ticks.
	Delta uint64 `mapstructure:"delta" json:"delta" validate:"gt=0"`

	MaxBlockSize   uint64 `mapstructure:"max-block-size" json:"maxBlockSize" validate:"gt=0"`
	BandwidthLimit uint64 `mapstructure:"bandwidth-limit" json:"bandwidthLimit" validate:"gt=0"`
	MaxSlot        uint64 `mapstructure:"max-slot" json:"maxSlot" validate:"gt=0"`
	MaxBlocks      uint64 `mapstructure:"max-blocks" json:"maxBlocks" validate:"gt=0"`
	MaxRetries     uint64 `mapstructure:"max-retries" json:"maxRetries" validate:"gt=0"`
	// RetryTimeout is the window, in ticks, during which a repair request stays active.
	RetryTimeout uint64 `mapstructure:"retry-timeout" json:"retryTimeout" validate:"gt=0"`
}

// DefaultConfig returns the protocol configuration for an n-validator committee.
func DefaultConfig(n int) Config {
	cfg := Config{
		Validators:     n,
		GST:            100,
		Delta:          5,
		MaxBlockSize:   1 << 20,
		BandwidthLimit: 1 << 32,
		MaxSlot:        100_000,
		MaxBlocks:      100_000,
		MaxRetries:     5,
		RetryTimeout:   50,
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in unit stakes and derives any unset stake thresholds.
func (c *Config) Normalize() {
	if len(c.Stakes) == 0 && c.Validators > 0 {
		c.Stakes = make([]uint64, c.Validators)
		for i := range c.Stakes {
			c.Stakes[i] = 1
		}
	}
	total := c.TotalStake()
	if c.FastPathThreshold == 0 {
		c.FastPathThreshold = committees.FastFinalizationThreshold(total)
	}
	if c.SlowPathThreshold == 0 {
		c.SlowPathThreshold = committees.SlowFinalizationThreshold(total)
	}
	if c.SkipThreshold == 0 {
		c.SkipThreshold = committees.SlowFinalizationThreshold(total)
	}
}

// Validate checks cross-field consistency not expressible with struct tags.
func (c Config) Validate() error {
	if c.Validators <= 0 {
		return fmt.Errorf("committee must contain at least one validator, got %d", c.Validators)
	}
	if len(c.Stakes) != c.Validators {
		return fmt.Errorf("expected %d stake entries, got %d", c.Validators, len(c.Stakes))
	}
	total := c.TotalStake()
	if total == 0 {
		return fmt.Errorf("total stake must be positive")
	}
	if c.FastPathThreshold > total || c.SlowPathThreshold > total || c.SkipThreshold > total {
		return fmt.Errorf("stake thresholds (%d, %d, %d) exceed total stake %d",
			c.FastPathThreshold, c.SlowPathThreshold, c.SkipThreshold, total)
	}
	if c.SlowPathThreshold > c.FastPathThreshold {
		return fmt.Errorf("slow path threshold %d above fast path threshold %d", c.SlowPathThreshold, c.FastPathThreshold)
	}
	return nil
}

// TotalStake sums the stake of all validators.
func (c Config) TotalStake() uint64 {
	var total uint64
	for _, s := range c.Stakes {
		total += s
	}
	return total
}

// StakeOf returns the stake of validator v, or zero if v is outside the committee.
func (c Config) StakeOf(v ValidatorID) uint64 {
	if int(v) >= len(c.Stakes) {
		return 0
	}
	return c.Stakes[v]
}

// IsValidator returns true if v lies in [0, N).
func (c Config) IsValidator(v ValidatorID) bool {
	return int(v) < c.Validators
}

// ThresholdFor returns the stake required for a certificate of type t.
func (c Config) ThresholdFor(t CertificateType) uint64 {
	switch t {
	case FastCertificate:
		return c.FastPathThreshold
	case SlowCertificate:
		return c.SlowPathThreshold
	case SkipCertificate:
		return c.SkipThreshold
	default:
		return c.TotalStake() + 1
	}
}
