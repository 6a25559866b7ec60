package protocol

import "github.com/cockroachdb/errors"

// Failure classes. Every one of them aborts the job; callers test with
// errors.Is after the concrete error has been marked.
var (
	// ErrInitialization means the execution domain could not be created.
	ErrInitialization = errors.New("initialization failure")

	// ErrCall means a boundary call returned a non-success status.
	ErrCall = errors.New("boundary call failure")

	// ErrDecoding means an input file or payload was malformed or short.
	ErrDecoding = errors.New("decoding failure")

	// ErrDecryption means a response record could not be decrypted.
	ErrDecryption = errors.New("decryption failure")

	// ErrPrecondition means parallel inputs disagree in length or a
	// sequence is not ascending and unique.
	ErrPrecondition = errors.New("precondition violation")
)
