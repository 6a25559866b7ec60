package enclave

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/flashbots/pctmatch/protocol"
)

// InProcess implements Boundary without any isolation. The matching logic
// is the same one the attested boundary runs; only the trust guarantees
// differ. Use it for tests and local runs.
type InProcess struct {
	cfg protocol.MatchConfig

	// A unique identifier for this instance, bound into attestations.
	instanceID []byte

	queries *QueryBuffer
	mapped  *MappedQueryBuffer

	tokens     *TokenSet
	timestamps *TimestampDictionary

	results ResultBuffer
	chunks  int

	closed atomic.Bool
	mu     sync.Mutex
}

// NewInProcess initializes an in-process boundary for cfg.
func NewInProcess(cfg protocol.MatchConfig) (*InProcess, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid match config"), protocol.ErrInitialization)
	}

	instanceID := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, instanceID); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "generate instance ID"), protocol.ErrInitialization)
	}

	b := &InProcess{
		cfg:        cfg,
		instanceID: instanceID,
	}
	if cfg.Mode == protocol.ModeExact {
		b.tokens = NewTokenSet()
	} else {
		b.timestamps = NewTimestampDictionary()
	}
	return b, nil
}

// UploadQueries implements Boundary.
func (b *InProcess) UploadQueries(data []byte, ids []protocol.QueryID, counts []uint32) error {
	const op = OpUploadQueries
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return &CallError{Op: op, Status: StatusClosed}
	}
	if b.queries != nil {
		return &CallError{Op: op, Status: StatusUnexpectedState, Cause: errors.New("queries already uploaded")}
	}

	qb, err := BuildQueryBuffer(b.cfg.Mode, data, ids, counts)
	if err != nil {
		return &CallError{Op: op, Status: StatusInvalidParameter, Cause: err}
	}
	b.queries = qb
	b.mapped = AggregateQueries(qb)
	return nil
}

// SubmitDictionaryChunk implements Boundary.
func (b *InProcess) SubmitDictionaryChunk(chunk []byte) error {
	const op = OpSubmitDictionaryChunk
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return &CallError{Op: op, Status: StatusClosed}
	}
	if b.mapped == nil {
		return &CallError{Op: op, Status: StatusUnexpectedState, Cause: errors.New("queries not uploaded")}
	}

	if b.cfg.Mode == protocol.ModeExact {
		tokens, err := protocol.DecodeExactChunk(chunk)
		if err != nil {
			return &CallError{Op: op, Status: StatusInvalidParameter, Cause: err}
		}
		MatchExact(b.tokens.Insert(tokens), b.mapped, &b.results)
	} else {
		entries, err := protocol.DecodeGeotemporalChunk(chunk)
		if err != nil {
			return &CallError{Op: op, Status: StatusInvalidParameter, Cause: err}
		}
		MatchWindowed(b.timestamps.Insert(entries), b.mapped, b.cfg.ContactWindow, &b.results)
	}
	b.chunks++
	return nil
}

// FetchResponse implements Boundary.
func (b *InProcess) FetchResponse(out []byte) error {
	const op = OpFetchResponse
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return &CallError{Op: op, Status: StatusClosed}
	}
	if b.queries == nil {
		return &CallError{Op: op, Status: StatusUnexpectedState, Cause: errors.New("queries not uploaded")}
	}
	if want := len(b.queries.Queries) * protocol.ResponseRecordSize; len(out) != want {
		return &CallError{Op: op, Status: StatusBufferTooSmall, Cause: errors.Newf("need %d bytes, got %d", want, len(out))}
	}

	response, err := BuildResponse(&b.cfg, b.queries, &b.results)
	if err != nil {
		return &CallError{Op: op, Status: StatusInvalidParameter, Cause: err}
	}
	copy(out, response)
	return nil
}

// Close implements Boundary. It is safe to call more than once.
func (b *InProcess) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Swap(true) {
		return nil
	}
	b.queries = nil
	b.mapped = nil
	b.tokens = nil
	b.timestamps = nil
	b.results.Reset()
	return nil
}

// Stats implements StatsReporter.
func (b *InProcess) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{Chunks: b.chunks, Matches: b.results.Len()}
	if d := b.dictionary(); d != nil {
		s.DictionaryTokens = d.Len()
		s.DictionaryRecords = d.Records()
		s.MemoryEstimate = d.MemoryEstimate()
	}
	return s
}

func (b *InProcess) dictionary() Dictionary {
	switch {
	case b.tokens != nil:
		return b.tokens
	case b.timestamps != nil:
		return b.timestamps
	}
	return nil
}

// InstanceID returns the unique identifier of this instance.
func (b *InProcess) InstanceID() []byte {
	return append([]byte(nil), b.instanceID...)
}
