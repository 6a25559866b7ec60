package common

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/flashbots/pctmatch/protocol"
	"github.com/flashbots/pctmatch/report"
)

// Boundary kinds.
const (
	BoundaryInProcess = "inprocess"
	BoundaryTDX       = "tdx"
)

// Config is the job configuration file.
//
//	mode: geotemporal          # or exact
//	chunk_size: 100000
//	query_file: queries.csv
//	dataset_file: central.csv
//	write_report: true
//	report_dir: ./reports
//	boundary: tdx              # or inprocess
//	attestation:
//	  use_tdx: true
//	  tdx_remote_url: ""
//	match:
//	  contact_window: 600
//	  period_gap: 600
//	  risk_thresholds: [0, 5, 20]
//	  encrypt_responses: true
//	  counter_block: "00000000000000000000000000000000"
//	  counter_inc_bits: 128
//	metrics_addr: ":9090"
//	postgres:
//	  host: localhost
//	  port: 5432
//	  user: pctmatch
//	  password: secret
//	  database: pctmatch
//	log:
//	  debug: false
//	  json: true
type Config struct {
	Mode      protocol.Mode `yaml:"mode"`
	ChunkSize int           `yaml:"chunk_size"`

	QueryFile   string `yaml:"query_file"`
	DatasetFile string `yaml:"dataset_file"`

	WriteReport bool   `yaml:"write_report"`
	ReportDir   string `yaml:"report_dir"`

	Boundary    string            `yaml:"boundary"`
	Attestation AttestationConfig `yaml:"attestation"`

	// Match.Mode is ignored; Mode above applies.
	Match protocol.MatchConfig `yaml:"match"`

	MetricsAddr string                 `yaml:"metrics_addr"`
	Postgres    *report.PostgresConfig `yaml:"postgres"`
	Log         LogConfig              `yaml:"log"`
}

type AttestationConfig struct {
	UseTDX       bool   `yaml:"use_tdx"`
	TDXRemoteURL string `yaml:"tdx_remote_url"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
	JSON  bool `yaml:"json"`
}

// DefaultConfig returns a configuration with every optional field set.
func DefaultConfig() *Config {
	return &Config{
		Mode:      protocol.ModeGeotemporal,
		ChunkSize: 100000,
		ReportDir: ".",
		Boundary:  BoundaryInProcess,
		Match:     protocol.DefaultMatchConfig(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parsing config file"), protocol.ErrDecoding)
	}
	return cfg, nil
}

// MatchConfig returns the match settings with the job mode applied.
func (c *Config) MatchConfig() protocol.MatchConfig {
	m := c.Match
	m.Mode = c.Mode
	return m
}

// Validate checks the configuration is complete and consistent.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return errors.Newf("unknown mode %q", c.Mode)
	}
	if c.ChunkSize <= 0 {
		return errors.Newf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.QueryFile == "" {
		return errors.New("query_file is required (via --queries or config file)")
	}
	if c.DatasetFile == "" {
		return errors.New("dataset_file is required (via --dataset or config file)")
	}
	if c.WriteReport && c.ReportDir == "" {
		return errors.New("report_dir is required when write_report is set")
	}
	switch c.Boundary {
	case BoundaryInProcess, BoundaryTDX:
	default:
		return errors.Newf("unknown boundary %q", c.Boundary)
	}
	m := c.MatchConfig()
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "match")
	}
	return nil
}
