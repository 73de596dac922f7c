package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/onflow/alpenglow/config"
	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	bstorage "github.com/onflow/alpenglow/storage/badger"
)

var (
	flagFiles  []string
	flagLatest bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "check exported or stored snapshots against the formal invariants",
	Run:   runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	config.InitializeFlags(validateCmd.Flags(), config.DefaultConfig())
	validateCmd.Flags().StringSliceVarP(&flagFiles, "file", "f", nil, "exported snapshot files, .json or .cbor")
	validateCmd.Flags().BoolVar(&flagLatest, "latest", false, "only check the latest stored snapshot of every validator")
}

func runValidate(cmd *cobra.Command, _ []string) {
	conf, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	err = setLogLevel(conf.Simulation.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	bounds := conf.Integration.Bounds()

	var checked, failed int
	check := func(source string, snap *formal.Snapshot) {
		checked++
		err := formal.Validate(snap, bounds)
		if err != nil {
			failed++
			log.Error().Err(err).Str("source", source).Uint64("clock", snap.Clock).Msg("invariant violated")
			return
		}
		log.Debug().Str("source", source).Uint64("clock", snap.Clock).Msg("snapshot valid")
	}

	for _, file := range flagFiles {
		snap, err := readSnapshot(file)
		if err != nil {
			if formal.IsImportError(err) {
				log.Error().Err(err).Str("file", file).Msg("malformed document")
				failed++
				continue
			}
			log.Fatal().Err(err).Str("file", file).Msg("could not read snapshot")
		}
		check(file, snap)
	}

	if conf.Simulation.Datadir != "" {
		db, err := initStorage(conf.Simulation.Datadir)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize storage")
		}
		defer db.Close()
		snapshots := bstorage.NewSnapshots(db)

		for i := 0; i < conf.Protocol.Validators; i++ {
			validator := model.ValidatorID(i)
			source := fmt.Sprintf("validator %d", validator)
			if flagLatest {
				snap, err := snapshots.Latest(validator)
				if err != nil {
					log.Warn().Err(err).Str("source", source).Msg("no stored snapshot")
					continue
				}
				check(source, snap)
				continue
			}
			clocks, err := snapshots.Clocks(validator)
			if err != nil {
				log.Fatal().Err(err).Str("source", source).Msg("could not list snapshots")
			}
			for _, clock := range clocks {
				snap, err := snapshots.ByClock(validator, clock)
				if err != nil {
					log.Fatal().Err(err).Str("source", source).Uint64("clock", clock).Msg("could not read snapshot")
				}
				check(source, snap)
			}
		}
	}

	if checked == 0 && failed == 0 {
		log.Fatal().Msg("nothing to validate, use --file or --datadir")
	}
	if failed > 0 {
		log.Fatal().Int("checked", checked).Int("failed", failed).Msg("validation failed")
	}
	log.Info().Int("checked", checked).Msg("all snapshots satisfy the invariants")
}
