package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/cockroachdb/errors"
)

const (
	// TokenSize is the width of a location token in bytes.
	TokenSize = 10

	// TimestampFieldSize is the width of the ASCII timestamp field in query records.
	TimestampFieldSize = 10

	// GeotemporalRecordSize is the width of one geotemporal query record:
	// an ASCII timestamp field followed by a token.
	GeotemporalRecordSize = TimestampFieldSize + TokenSize

	// ExactRecordSize is the width of one exact-membership query record.
	ExactRecordSize = TokenSize

	QueryIDSize = 8
	RiskSize    = 1

	// ResponseRecordSize is the width of one serialized QueryResult.
	ResponseRecordSize = QueryIDSize + RiskSize
)

// Token is a fixed-width opaque spatial key. Tokens compare by bytes only;
// they carry no ordering semantics.
type Token [TokenSize]byte

// NewToken copies b into a Token. b must be exactly TokenSize bytes long.
func NewToken(b []byte) (Token, error) {
	var t Token
	if len(b) != TokenSize {
		return t, errors.Mark(errors.Newf("token must be %d bytes, got %d", TokenSize, len(b)), ErrDecoding)
	}
	copy(t[:], b)
	return t, nil
}

// MustToken builds a token from a string of exactly TokenSize bytes and
// panics otherwise. Intended for fixtures and tests.
func MustToken(s string) Token {
	t, err := NewToken([]byte(s))
	if err != nil {
		panic(err)
	}
	return t
}

func (t Token) String() string {
	for _, c := range t {
		if c < 0x20 || c > 0x7e {
			return hex.EncodeToString(t[:])
		}
	}
	return string(t[:])
}

// Timestamp is seconds since the Unix epoch.
type Timestamp uint64

// ParseTimestampField parses a fixed-width ASCII decimal timestamp field.
func ParseTimestampField(field []byte) (Timestamp, error) {
	if len(field) != TimestampFieldSize {
		return 0, errors.Mark(errors.Newf("timestamp field must be %d bytes, got %d", TimestampFieldSize, len(field)), ErrDecoding)
	}
	v, err := strconv.ParseUint(string(field), 10, 64)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "timestamp field %q", field), ErrDecoding)
	}
	return Timestamp(v), nil
}

// FormatTimestampField renders ts as a zero-padded ASCII field.
func FormatTimestampField(ts Timestamp) ([TimestampFieldSize]byte, error) {
	var field [TimestampFieldSize]byte
	s := strconv.FormatUint(uint64(ts), 10)
	if len(s) > TimestampFieldSize {
		return field, errors.Mark(errors.Newf("timestamp %d does not fit in %d digits", ts, TimestampFieldSize), ErrPrecondition)
	}
	for i := range field {
		field[i] = '0'
	}
	copy(field[TimestampFieldSize-len(s):], s)
	return field, nil
}

// QueryID identifies a client query. Uniqueness is the caller's concern.
type QueryID uint64

// Bytes returns the big-endian encoding of the id.
func (id QueryID) Bytes() [QueryIDSize]byte {
	var b [QueryIDSize]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b
}

// Period is a closed interval [Start, End] of timestamps.
type Period struct {
	Start Timestamp
	End   Timestamp
}

// Contains reports whether ts lies within the period.
func (p Period) Contains(ts Timestamp) bool {
	return p.Start <= ts && ts <= p.End
}

// PeriodsFromTimestamps greedily merges an ascending timestamp run into
// maximal periods: consecutive timestamps at most gap seconds apart share a
// period. The result is ascending and non-overlapping. An empty run yields
// no periods.
func PeriodsFromTimestamps(run []Timestamp, gap Timestamp) []Period {
	if len(run) == 0 {
		return nil
	}
	periods := make([]Period, 0, 1)
	current := Period{Start: run[0], End: run[0]}
	for _, ts := range run[1:] {
		if current.End+gap >= ts {
			current.End = ts
			continue
		}
		periods = append(periods, current)
		current = Period{Start: ts, End: ts}
	}
	return append(periods, current)
}
