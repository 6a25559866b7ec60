// Package common provides shared utilities for the pctmatch command:
//
//   - Configuration file loading and validation
//   - Logger construction
//   - Boundary and attestation provider selection
//   - Report sink construction
package common

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/flashbots/pctmatch/enclave"
	"github.com/flashbots/pctmatch/report"
	"github.com/flashbots/pctmatch/tdx"
)

// NewLogger builds the process logger. json selects the production
// encoder, otherwise a console encoder is used.
func NewLogger(debug, json bool) (*zap.Logger, error) {
	var config zap.Config
	if json {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}

// NewAttestationProvider creates a TEE provider based on configuration.
// Returns TDXProvider or RemoteDCAPProvider when UseTDX is set,
// otherwise DummyProvider for local runs.
func NewAttestationProvider(cfg AttestationConfig) tdx.Provider {
	return tdx.NewProvider(cfg.UseTDX, cfg.TDXRemoteURL)
}

// NewBoundary initializes the boundary the configuration selects.
func NewBoundary(cfg *Config, log *zap.Logger) (enclave.Boundary, error) {
	match := cfg.MatchConfig()
	if match.EncryptResponses {
		log.Warn("Response keys are derived from query ids the host assigns; encryption gives no confidentiality against the host")
	}

	switch cfg.Boundary {
	case BoundaryInProcess:
		log.Info("Using in-process boundary, no isolation")
		b, err := enclave.NewInProcess(match)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BoundaryTDX:
		b, err := enclave.NewAttested(match, NewAttestationProvider(cfg.Attestation), log)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, errors.Newf("unknown boundary %q", cfg.Boundary)
}

// NewReportSinks returns the sinks the configuration enables and a
// function releasing them.
func NewReportSinks(cfg *Config) (report.Sinks, func(), error) {
	var sinks report.Sinks
	closeFn := func() {}

	if cfg.WriteReport {
		sinks = append(sinks, &report.FileSink{Dir: cfg.ReportDir})
	}
	if cfg.Postgres != nil {
		pg, err := report.NewPostgresSink(cfg.Postgres)
		if err != nil {
			return nil, nil, errors.Wrap(err, "postgres report sink")
		}
		sinks = append(sinks, pg)
		closeFn = func() { pg.Close() }
	}
	return sinks, closeFn, nil
}
