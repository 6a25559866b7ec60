// Package report records the outcome of a matching job: phase timings and
// the positive query ids, written to a YAML file and optionally to
// PostgreSQL.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/flashbots/pctmatch/protocol"
)

// Report summarizes one job run.
type Report struct {
	RunAt    time.Time     `yaml:"run_at"`
	Mode     protocol.Mode `yaml:"mode"`
	Boundary string        `yaml:"boundary"`

	QueryFile   string `yaml:"query_file"`
	DatasetFile string `yaml:"dataset_file"`
	ChunkSize   int    `yaml:"chunk_size"`
	Chunks      int    `yaml:"chunks"`

	Clients        int `yaml:"clients"`
	DatasetTokens  int `yaml:"dataset_tokens"`
	DatasetRecords int `yaml:"dataset_records"`
	DatasetPeriods int `yaml:"dataset_periods"`

	PositiveIDs []protocol.QueryID `yaml:"positive_ids"`
	Phases      []Phase            `yaml:"phases"`
}

// Sink persists reports.
type Sink interface {
	Write(ctx context.Context, r *Report) error
}

// Sinks writes to every sink in order and stops at the first failure.
type Sinks []Sink

func (s Sinks) Write(ctx context.Context, r *Report) error {
	for _, sink := range s {
		if err := sink.Write(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// FileSink writes each report as result-<timestamp>-<mode>.yaml in Dir.
type FileSink struct {
	Dir string
}

// Path returns the file a report is written to.
func (s *FileSink) Path(r *Report) string {
	name := fmt.Sprintf("result-%s-%s.yaml", r.RunAt.UTC().Format("20060102T150405Z"), r.Mode)
	return filepath.Join(s.Dir, name)
}

func (s *FileSink) Write(ctx context.Context, r *Report) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.Wrap(err, "creating report directory")
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	path := s.Path(r)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// ReadFile loads a report written by FileSink.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading report")
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decoding %s", path), protocol.ErrDecoding)
	}
	return &r, nil
}
