package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flashbots/pctmatch/enclave"
	"github.com/flashbots/pctmatch/protocol"
	"github.com/flashbots/pctmatch/report"
	"github.com/flashbots/pctmatch/tdx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
mode: exact
chunk_size: 500
query_file: q.csv
dataset_file: d.csv
boundary: tdx
attestation:
  tdx_remote_url: http://quotes
match:
  mode: geotemporal
  encrypt_responses: false
log:
  debug: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, protocol.ModeExact, cfg.Mode)
	require.Equal(t, 500, cfg.ChunkSize)
	require.Equal(t, BoundaryTDX, cfg.Boundary)
	require.Equal(t, "http://quotes", cfg.Attestation.TDXRemoteURL)
	require.True(t, cfg.Log.Debug)
	require.Nil(t, cfg.Postgres)

	m := cfg.MatchConfig()
	require.Equal(t, protocol.ModeExact, m.Mode)
	require.False(t, m.EncryptResponses)
	require.Equal(t, protocol.Timestamp(600), m.ContactWindow)
	require.Equal(t, []int{0, 5, 20}, m.RiskThresholds)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "mode: [exact"))
	require.True(t, errors.Is(err, protocol.ErrDecoding), err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.QueryFile = "q.csv"
		cfg.DatasetFile = "d.csv"
		return cfg
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"mode":       func(c *Config) { c.Mode = "fuzzy" },
		"chunk size": func(c *Config) { c.ChunkSize = 0 },
		"queries":    func(c *Config) { c.QueryFile = "" },
		"dataset":    func(c *Config) { c.DatasetFile = "" },
		"boundary":   func(c *Config) { c.Boundary = "sgx" },
		"report dir": func(c *Config) { c.WriteReport = true; c.ReportDir = "" },
		"window":     func(c *Config) { c.Match.ContactWindow = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestNewBoundary(t *testing.T) {
	cfg := DefaultConfig()

	b, err := NewBoundary(cfg, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &enclave.InProcess{}, b)
	require.NoError(t, b.Close())

	cfg.Boundary = BoundaryTDX
	b, err = NewBoundary(cfg, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &enclave.Attested{}, b)
	require.NoError(t, b.Close())

	require.IsType(t, &tdx.DummyProvider{}, NewAttestationProvider(cfg.Attestation))
}

func TestNewReportSinks(t *testing.T) {
	cfg := DefaultConfig()
	sinks, closeFn, err := NewReportSinks(cfg)
	require.NoError(t, err)
	require.Empty(t, sinks)
	closeFn()

	cfg.WriteReport = true
	cfg.ReportDir = t.TempDir()
	sinks, closeFn, err = NewReportSinks(cfg)
	require.NoError(t, err)
	defer closeFn()
	require.Equal(t, report.Sinks{&report.FileSink{Dir: cfg.ReportDir}}, sinks)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(true, true)
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zap.DebugLevel))

	log, err = NewLogger(false, false)
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zap.DebugLevel))
}
