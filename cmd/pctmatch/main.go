// Command pctmatch runs one contact-matching job.
//
// The central dataset is streamed in chunks into the matching boundary,
// which holds the client queries. Only per-client risk levels leave the
// boundary. Positive query ids are printed to stdout, one per line,
// followed by the phase timings.
//
// # Configuration File
//
// See common.Config for every field. Flags override file values.
//
// # Usage
//
//	go run ./cmd/pctmatch --config=job.yaml
//	go run ./cmd/pctmatch --mode=exact --queries=q.csv --dataset=d.csv --chunk-size=50000
//	go run ./cmd/pctmatch --boundary=tdx --tdx --queries=q.csv --dataset=d.csv --report
//	go run ./cmd/pctmatch --config=job.yaml --report=false
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/flashbots/pctmatch/cmd/common"
	"github.com/flashbots/pctmatch/dataset"
	"github.com/flashbots/pctmatch/host"
	"github.com/flashbots/pctmatch/metrics"
	"github.com/flashbots/pctmatch/protocol"
	"github.com/flashbots/pctmatch/report"
)

const phaseLoad = "load"

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := common.NewLogger(cfg.Log.Debug, cfg.Log.JSON)
	if err != nil {
		fmt.Printf("Logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Job failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// parseArgs loads the configuration file and applies flag overrides.
// A flag only overrides the file when it is given on the command line, so
// --report=false disables a report the file enables.
func parseArgs(args []string) (*common.Config, error) {
	fs := flag.NewFlagSet("pctmatch", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "Path to YAML config file")
		mode        = fs.String("mode", "", "Matching mode: geotemporal or exact")
		chunkSize   = fs.Int("chunk-size", 0, "Central dataset records per boundary call")
		queryFile   = fs.String("queries", "", "Query file")
		datasetFile = fs.String("dataset", "", "Central dataset file")
		writeReport = fs.Bool("report", false, "Write a result report to report_dir")
		boundary    = fs.String("boundary", "", "Boundary: inprocess or tdx")
		useTDX      = fs.Bool("tdx", false, "Use real TDX attestation")
		remoteTDX   = fs.String("tdx-url", "", "Remote TDX attestation service URL")
		metricsAddr = fs.String("metrics-addr", "", "Serve metrics on this address during the job")
		debug       = fs.Bool("debug", false, "Debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = protocol.Mode(*mode)
		case "chunk-size":
			cfg.ChunkSize = *chunkSize
		case "queries":
			cfg.QueryFile = *queryFile
		case "dataset":
			cfg.DatasetFile = *datasetFile
		case "report":
			cfg.WriteReport = *writeReport
		case "boundary":
			cfg.Boundary = *boundary
		case "tdx":
			cfg.Attestation.UseTDX = *useTDX
		case "tdx-url":
			cfg.Attestation.TDXRemoteURL = *remoteTDX
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "debug":
			cfg.Log.Debug = *debug
		}
	})
	return cfg, nil
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func run(ctx context.Context, cfg *common.Config, log *zap.Logger) error {
	runAt := time.Now()
	clock := report.NewClock()
	collector := metrics.NewCollector()

	setReady := func(bool) {}
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(&metrics.ServerConfig{
			ListenAddr:               cfg.MetricsAddr,
			Log:                      log,
			GracefulShutdownDuration: 5 * time.Second,
			ReadTimeout:              10 * time.Second,
			WriteTimeout:             10 * time.Second,
		}, collector)
		srv.RunInBackground()
		defer srv.Shutdown()
		// Ready once the boundary is up.
		setReady = srv.SetReady
	}

	sinks, closeSinks, err := common.NewReportSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	match := cfg.MatchConfig()

	clock.Start(phaseLoad)
	central, err := dataset.LoadCentral(cfg.DatasetFile, cfg.Mode)
	if err != nil {
		return errors.Wrap(err, "loading central dataset")
	}
	queries, err := dataset.LoadQueries(cfg.QueryFile, cfg.Mode)
	if err != nil {
		return errors.Wrap(err, "loading queries")
	}
	collector.ObservePhase(phaseLoad, clock.Stop(phaseLoad))

	summary := central.Summarize(match.PeriodGap)
	log.Info("Inputs loaded",
		zap.String("mode", string(cfg.Mode)),
		zap.Int("tokens", summary.Tokens),
		zap.Int("records", summary.Records),
		zap.Int("periods", summary.Periods),
		zap.Int("clients", queries.Clients()))

	b, err := common.NewBoundary(cfg, log)
	if err != nil {
		return errors.Wrap(err, "initializing boundary")
	}
	defer b.Close()
	setReady(true)

	orchestrator, err := host.NewOrchestrator(b, &host.OrchestratorConfig{
		Match:     match,
		ChunkSize: cfg.ChunkSize,
		Log:       log,
		Metrics:   collector,
		Clock:     clock,
	})
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, queries, central)
	if err != nil {
		return err
	}

	for _, id := range result.PositiveIDs {
		fmt.Println(id)
	}
	fmt.Print(clock.Summary())

	r := &report.Report{
		RunAt:          runAt,
		Mode:           cfg.Mode,
		Boundary:       cfg.Boundary,
		QueryFile:      cfg.QueryFile,
		DatasetFile:    cfg.DatasetFile,
		ChunkSize:      cfg.ChunkSize,
		Chunks:         result.Chunks,
		Clients:        queries.Clients(),
		DatasetTokens:  summary.Tokens,
		DatasetRecords: summary.Records,
		DatasetPeriods: summary.Periods,
		PositiveIDs:    result.PositiveIDs,
		Phases:         clock.Phases(),
	}
	if err := sinks.Write(ctx, r); err != nil {
		return errors.Wrap(err, "writing report")
	}
	return nil
}
