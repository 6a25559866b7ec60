package enclave

import (
	"fmt"

	"github.com/flashbots/pctmatch/protocol"
)

// Boundary is the call surface of the isolated execution domain. The host
// sees nothing but these operations and their status; dictionary state and
// intermediate matches stay inside.
//
// Calls are synchronous and must not be issued concurrently. Any error
// aborts the job.
type Boundary interface {
	// UploadQueries decodes and stores the client queries. data holds the
	// concatenated records, counts[i] the number of records of ids[i].
	// Must be called exactly once, before any chunk.
	UploadQueries(data []byte, ids []protocol.QueryID, counts []uint32) error

	// SubmitDictionaryChunk folds one chunk into the dictionary and matches
	// what it added against the uploaded queries.
	SubmitDictionaryChunk(chunk []byte) error

	// FetchResponse writes one record per client into out, which must be
	// exactly clients x protocol.ResponseRecordSize bytes.
	FetchResponse(out []byte) error

	// Close tears the domain down and drops all state.
	Close() error
}

// Operation names reported in CallError.Op.
const (
	OpUploadQueries         = "upload_queries"
	OpSubmitDictionaryChunk = "submit_dictionary_chunk"
	OpFetchResponse         = "fetch_response"
	OpInitialize            = "initialize"
)

// Status is the code a boundary call returns.
type Status uint32

const (
	StatusSuccess Status = iota
	StatusInvalidParameter
	StatusUnexpectedState
	StatusBufferTooSmall
	StatusClosed
	StatusAttestationFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidParameter:
		return "invalid parameter"
	case StatusUnexpectedState:
		return "unexpected state"
	case StatusBufferTooSmall:
		return "buffer size mismatch"
	case StatusClosed:
		return "closed"
	case StatusAttestationFailed:
		return "attestation failed"
	}
	return fmt.Sprintf("status(%d)", uint32(s))
}

// CallError reports a non-success status from a boundary operation.
type CallError struct {
	Op     string
	Status Status
	Cause  error
}

func (e *CallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Status, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

func (e *CallError) Unwrap() error {
	return e.Cause
}

// Stats describes the in-boundary state. It carries sizes only, never
// dictionary or query content.
type Stats struct {
	Chunks            int
	DictionaryTokens  int
	DictionaryRecords int
	Matches           int
	MemoryEstimate    uint64
}

// StatsReporter is implemented by boundaries that can report Stats.
type StatsReporter interface {
	Stats() Stats
}
