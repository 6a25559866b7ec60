package protocol

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// QueryResult is one client's response record.
type QueryResult struct {
	QueryID   QueryID
	RiskLevel uint8
}

// Bytes serializes the record as an 8-byte big-endian id followed by the risk byte.
func (r QueryResult) Bytes() [ResponseRecordSize]byte {
	var b [ResponseRecordSize]byte
	binary.BigEndian.PutUint64(b[:QueryIDSize], uint64(r.QueryID))
	b[QueryIDSize] = r.RiskLevel
	return b
}

// ParseQueryResult reads one record. The risk byte is returned as stored,
// encrypted or not.
func ParseQueryResult(b []byte) (QueryResult, error) {
	if len(b) != ResponseRecordSize {
		return QueryResult{}, errors.Mark(errors.Newf("response record must be %d bytes, got %d", ResponseRecordSize, len(b)), ErrDecoding)
	}
	return QueryResult{
		QueryID:   QueryID(binary.BigEndian.Uint64(b[:QueryIDSize])),
		RiskLevel: b[QueryIDSize],
	}, nil
}

// DictionaryEntry is one token of the central dataset with its ascending,
// unique timestamps.
type DictionaryEntry struct {
	Token      Token
	Timestamps []Timestamp
}

const runHeaderSize = TokenSize + 4

// EncodeGeotemporalChunk serializes entries as repeated
// token || count (u32 BE) || count x timestamp (u64 BE).
func EncodeGeotemporalChunk(entries []DictionaryEntry) []byte {
	size := 0
	for _, e := range entries {
		size += runHeaderSize + 8*len(e.Timestamps)
	}
	buf := make([]byte, 0, size)
	for _, e := range entries {
		buf = append(buf, e.Token[:]...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Timestamps)))
		for _, ts := range e.Timestamps {
			buf = binary.BigEndian.AppendUint64(buf, uint64(ts))
		}
	}
	return buf
}

// DecodeGeotemporalChunk parses a chunk produced by EncodeGeotemporalChunk.
// Each run must be non-empty, ascending and unique.
func DecodeGeotemporalChunk(chunk []byte) ([]DictionaryEntry, error) {
	var entries []DictionaryEntry
	for off := 0; off < len(chunk); {
		if len(chunk)-off < runHeaderSize {
			return nil, errors.Mark(errors.Newf("truncated run header at offset %d", off), ErrDecoding)
		}
		var e DictionaryEntry
		copy(e.Token[:], chunk[off:off+TokenSize])
		n := int(binary.BigEndian.Uint32(chunk[off+TokenSize : off+runHeaderSize]))
		off += runHeaderSize
		if n == 0 {
			return nil, errors.Mark(errors.Newf("empty timestamp run for token %s", e.Token), ErrPrecondition)
		}
		if n > (len(chunk)-off)/8 {
			return nil, errors.Mark(errors.Newf("run for token %s declares %d timestamps, payload too short", e.Token, n), ErrDecoding)
		}
		e.Timestamps = make([]Timestamp, n)
		for i := range e.Timestamps {
			e.Timestamps[i] = Timestamp(binary.BigEndian.Uint64(chunk[off : off+8]))
			off += 8
		}
		if !IsSortedUnique(e.Timestamps) {
			return nil, errors.Mark(errors.Newf("timestamps for token %s are not ascending and unique", e.Token), ErrPrecondition)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// EncodeExactChunk concatenates tokens.
func EncodeExactChunk(tokens []Token) []byte {
	buf := make([]byte, 0, len(tokens)*TokenSize)
	for _, t := range tokens {
		buf = append(buf, t[:]...)
	}
	return buf
}

// DecodeExactChunk splits a chunk into tokens.
func DecodeExactChunk(chunk []byte) ([]Token, error) {
	if len(chunk)%TokenSize != 0 {
		return nil, errors.Mark(errors.Newf("chunk length %d is not a multiple of %d", len(chunk), TokenSize), ErrDecoding)
	}
	tokens := make([]Token, len(chunk)/TokenSize)
	for i := range tokens {
		copy(tokens[i][:], chunk[i*TokenSize:(i+1)*TokenSize])
	}
	return tokens, nil
}

// AppendQueryRecord appends one query record in the mode's layout.
// Exact mode ignores ts.
func AppendQueryRecord(buf []byte, mode Mode, ts Timestamp, token Token) ([]byte, error) {
	if mode == ModeExact {
		return append(buf, token[:]...), nil
	}
	field, err := FormatTimestampField(ts)
	if err != nil {
		return nil, err
	}
	buf = append(buf, field[:]...)
	return append(buf, token[:]...), nil
}
