// Package host drives a matching job from outside the trust boundary. It
// partitions the central dataset, feeds it to the boundary one chunk at a
// time and decodes the per-client response.
package host

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/flashbots/pctmatch/dataset"
	"github.com/flashbots/pctmatch/enclave"
	"github.com/flashbots/pctmatch/metrics"
	"github.com/flashbots/pctmatch/protocol"
	"github.com/flashbots/pctmatch/report"
)

// Phase names recorded on the job clock.
const (
	PhaseUpload  = "upload"
	PhaseIngest  = "ingest"
	PhaseFetch   = "fetch"
	PhaseDecrypt = "decrypt"
)

// OrchestratorConfig contains the job settings the host needs.
type OrchestratorConfig struct {
	Match     protocol.MatchConfig
	ChunkSize int

	Log     *zap.Logger
	Metrics *metrics.Collector
	Clock   *report.Clock
}

// Orchestrator runs the upload, chunk and fetch protocol against one
// boundary. It is single use: the boundary accepts queries only once.
type Orchestrator struct {
	boundary enclave.Boundary
	cfg      protocol.MatchConfig

	chunkSize int
	log       *zap.Logger
	metrics   *metrics.Collector
	clock     *report.Clock
}

// Result is the outcome of a job.
type Result struct {
	Verdicts    []Verdict
	PositiveIDs []protocol.QueryID
	Chunks      int

	// Stats is zero when the boundary does not report stats.
	Stats enclave.Stats
}

func NewOrchestrator(boundary enclave.Boundary, cfg *OrchestratorConfig) (*Orchestrator, error) {
	if cfg.ChunkSize <= 0 {
		return nil, errors.Mark(errors.Newf("chunk size must be positive, got %d", cfg.ChunkSize), protocol.ErrPrecondition)
	}
	if err := cfg.Match.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		boundary:  boundary,
		cfg:       cfg.Match,
		chunkSize: cfg.ChunkSize,
		log:       cfg.Log,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCollector()
	}
	if o.clock == nil {
		o.clock = report.NewClock()
	}
	return o, nil
}

// Run uploads queries, streams central through the boundary and returns
// the decoded verdicts. Chunks are submitted strictly one after another.
// Any failed call aborts the job; ctx is checked between chunks.
func (o *Orchestrator) Run(ctx context.Context, queries *dataset.QueryBatch, central *dataset.Central) (*Result, error) {
	if queries.Mode != o.cfg.Mode || central.Mode != o.cfg.Mode {
		return nil, errors.Mark(errors.Newf("input mode mismatch: config %s, queries %s, dataset %s",
			o.cfg.Mode, queries.Mode, central.Mode), protocol.ErrPrecondition)
	}
	o.metrics.Clients.Set(float64(queries.Clients()))

	o.clock.Start(PhaseUpload)
	err := o.call(enclave.OpUploadQueries, func() error {
		return o.boundary.UploadQueries(queries.Data, queries.IDs, queries.Counts)
	})
	o.phaseDone(PhaseUpload)
	if err != nil {
		return nil, err
	}
	o.log.Info("Queries uploaded",
		zap.Int("clients", queries.Clients()),
		zap.String("size", humanize.Bytes(uint64(len(queries.Data)))))

	partitioner, err := PartitionDataset(central, o.chunkSize)
	if err != nil {
		return nil, err
	}
	total := partitioner.Count()

	o.clock.Start(PhaseIngest)
	chunks := 0
	for {
		if err := ctx.Err(); err != nil {
			o.phaseDone(PhaseIngest)
			return nil, errors.Wrapf(err, "aborted after %d of %d chunks", chunks, total)
		}
		chunk, ok := partitioner.Next()
		if !ok {
			break
		}
		err := o.call(enclave.OpSubmitDictionaryChunk, func() error {
			return o.boundary.SubmitDictionaryChunk(chunk)
		})
		if err != nil {
			o.phaseDone(PhaseIngest)
			return nil, errors.Wrapf(err, "chunk %d of %d", chunks+1, total)
		}
		chunks++
		o.metrics.ObserveChunk(len(chunk))
		o.log.Debug("Chunk submitted",
			zap.Int("chunk", chunks),
			zap.Int("of", total),
			zap.String("size", humanize.Bytes(uint64(len(chunk)))))
	}
	o.phaseDone(PhaseIngest)

	stats := o.reportStats()

	o.clock.Start(PhaseFetch)
	response := make([]byte, queries.Clients()*protocol.ResponseRecordSize)
	err = o.call(enclave.OpFetchResponse, func() error {
		return o.boundary.FetchResponse(response)
	})
	o.phaseDone(PhaseFetch)
	if err != nil {
		return nil, err
	}

	o.clock.Start(PhaseDecrypt)
	verdicts, err := DecodeResponse(&o.cfg, response, queries.IDs)
	o.phaseDone(PhaseDecrypt)
	if err != nil {
		return nil, err
	}

	positive := PositiveIDs(verdicts)
	o.metrics.PositiveClients.Set(float64(len(positive)))
	o.log.Info("Job finished",
		zap.Int("chunks", chunks),
		zap.Int("clients", len(verdicts)),
		zap.Int("positive", len(positive)))

	return &Result{
		Verdicts:    verdicts,
		PositiveIDs: positive,
		Chunks:      chunks,
		Stats:       stats,
	}, nil
}

// call times one boundary operation and marks any failure as a call
// failure.
func (o *Orchestrator) call(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := enclave.StatusSuccess.String()
	if err != nil {
		status = "error"
		var callErr *enclave.CallError
		if errors.As(err, &callErr) {
			status = callErr.Status.String()
		}
	}
	o.metrics.ObserveCall(op, status, time.Since(start))

	if err != nil {
		o.log.Error("Boundary call failed", zap.String("op", op), zap.String("status", status), zap.Error(err))
		return errors.Mark(errors.Wrap(err, "boundary call"), protocol.ErrCall)
	}
	return nil
}

func (o *Orchestrator) reportStats() enclave.Stats {
	reporter, ok := o.boundary.(enclave.StatsReporter)
	if !ok {
		return enclave.Stats{}
	}
	stats := reporter.Stats()
	o.metrics.DictionaryBytes.Set(float64(stats.MemoryEstimate))
	o.metrics.Matches.Set(float64(stats.Matches))
	o.log.Info("Dictionary loaded",
		zap.Int("tokens", stats.DictionaryTokens),
		zap.Int("records", stats.DictionaryRecords),
		zap.String("memoryEstimate", humanize.Bytes(stats.MemoryEstimate)))
	return stats
}

func (o *Orchestrator) phaseDone(phase string) {
	o.metrics.ObservePhase(phase, o.clock.Stop(phase))
}
