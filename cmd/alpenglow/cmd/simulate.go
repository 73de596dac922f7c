package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/onflow/alpenglow/config"
	"github.com/onflow/alpenglow/consensus/alpenglow/cluster"
	"github.com/onflow/alpenglow/consensus/alpenglow/formal"
	"github.com/onflow/alpenglow/model/encoding"
	"github.com/onflow/alpenglow/module/irrecoverable"
	"github.com/onflow/alpenglow/module/metrics"
	"github.com/onflow/alpenglow/module/util"
	bstorage "github.com/onflow/alpenglow/storage/badger"
)

var (
	flagExportDir    string
	flagExportFormat string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run a cluster of validators through a synthetic workload and report their performance",
	Run:   runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	config.InitializeFlags(simulateCmd.Flags(), config.DefaultConfig())
	simulateCmd.Flags().StringVar(&flagExportDir, "export-dir", "", "directory the final state of every validator is exported to")
	simulateCmd.Flags().StringVar(&flagExportFormat, "export-format", formatJSON, "export format, json or cbor")
}

func runSimulate(cmd *cobra.Command, _ []string) {
	conf, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	err = setLogLevel(conf.Simulation.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}

	registry := prometheus.NewRegistry()
	opts := []cluster.Option{
		cluster.WithWorkers(conf.Simulation.Workers),
		cluster.WithRegisterer(registry),
	}
	if conf.Simulation.Datadir != "" {
		db, err := initStorage(conf.Simulation.Datadir)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize storage")
		}
		defer db.Close()
		opts = append(opts, cluster.WithSnapshots(bstorage.NewSnapshots(db)))
	}

	c, err := cluster.New(log.Logger, conf.Protocol, conf.Integration, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create cluster")
	}

	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)
	go func() {
		if err := util.WaitError(errChan, ctx.Done()); err != nil {
			log.Fatal().Err(err).Msg("unrecoverable error in cluster")
		}
	}()
	if conf.Simulation.MetricsAddr != "" {
		server := metrics.NewServer(log.Logger, conf.Simulation.MetricsAddr, registry)
		server.Start(signalerCtx)
		<-server.Ready()
	}
	c.Start(signalerCtx)
	<-c.Ready()
	defer func() {
		c.Stop()
		cancel()
		<-c.Done()
	}()

	err = c.Initialize(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize validators")
	}

	scenario := cluster.Scenario{
		Ticks:              conf.Simulation.Ticks,
		BlockInterval:      conf.Simulation.BlockInterval,
		MessagesPerTick:    conf.Simulation.MessagesPerTick,
		CheckpointInterval: conf.Simulation.CheckpointInterval,
		Byzantine:          conf.ByzantineValidators(),
		Seed:               conf.Simulation.Seed,
	}
	log.Info().
		Int("validators", c.Size()).
		Uint64("ticks", scenario.Ticks).
		Int("byzantine", len(scenario.Byzantine)).
		Msg("starting simulation")

	progress := util.LogProgress(log.Logger, "simulation", int(scenario.Ticks), 10)
	outcome, err := c.Run(ctx, scenario, progress)
	if err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}
	log.Info().
		Int("proposed", outcome.Proposed).
		Int("certified", outcome.Certified).
		Int("skipped", outcome.Skipped).
		Int("uncertified", outcome.Uncertified).
		Int("checkpoints", outcome.Checkpoints).
		Msg("simulation finished")

	snaps, err := c.Export(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("could not export state")
	}
	bounds := conf.Integration.Bounds()
	for _, snap := range snaps {
		err := formal.Validate(snap, bounds)
		if err != nil {
			log.Warn().Err(err).Uint32("validator", uint32(snap.ValidatorID)).Msg("final state violates an invariant")
		}
	}
	if flagExportDir != "" {
		err = writeSnapshots(flagExportDir, flagExportFormat, snaps)
		if err != nil {
			log.Fatal().Err(err).Msg("could not export snapshots")
		}
		log.Info().Str("dir", flagExportDir).Msg("final state exported")
	}

	reports, err := c.Reports(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("could not collect reports")
	}
	data, err := encoding.DefaultEncoder.Encode(reports)
	if err != nil {
		log.Fatal().Err(err).Msg("could not encode reports")
	}
	if conf.Simulation.ReportFile == "" {
		fmt.Println(string(data))
		return
	}
	err = os.WriteFile(conf.Simulation.ReportFile, data, 0o644)
	if err != nil {
		log.Fatal().Err(err).Msg("could not write reports")
	}
	log.Info().Str("file", conf.Simulation.ReportFile).Msg("reports written")
}
