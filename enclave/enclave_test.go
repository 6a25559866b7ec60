package enclave

import (
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/pctmatch/crypto"
	"github.com/flashbots/pctmatch/protocol"
)

var (
	tokenT1 = protocol.MustToken("u4pruydqqv")
	tokenT2 = protocol.MustToken("xn76urx6qr")
)

func geotemporalRecords(t *testing.T, pairs ...any) []byte {
	t.Helper()
	var buf []byte
	for i := 0; i < len(pairs); i += 2 {
		var err error
		buf, err = protocol.AppendQueryRecord(buf, protocol.ModeGeotemporal, protocol.Timestamp(pairs[i].(int)), pairs[i+1].(protocol.Token))
		require.NoError(t, err)
	}
	return buf
}

func plainConfig(mode protocol.Mode) protocol.MatchConfig {
	cfg := protocol.DefaultMatchConfig()
	cfg.Mode = mode
	cfg.EncryptResponses = false
	return cfg
}

func TestBuildQueryBuffer(t *testing.T) {
	data := geotemporalRecords(t,
		1700, tokenT1,
		1000, tokenT1,
		1700, tokenT1,
		42, tokenT2,
		1550, tokenT1,
	)
	qb, err := BuildQueryBuffer(protocol.ModeGeotemporal, data, []protocol.QueryID{42, 7}, []uint32{3, 2})
	require.NoError(t, err)
	require.Len(t, qb.Queries, 2)

	require.Equal(t, protocol.QueryID(42), qb.Queries[0].ID)
	require.Equal(t, []protocol.Timestamp{1000, 1700}, qb.Queries[0].Parameters[tokenT1])
	require.Equal(t, protocol.QueryID(7), qb.Queries[1].ID)
	require.Equal(t, []protocol.Timestamp{42}, qb.Queries[1].Parameters[tokenT2])
	require.Equal(t, []protocol.Timestamp{1550}, qb.Queries[1].Parameters[tokenT1])

	mq := AggregateQueries(qb)
	require.Equal(t, []protocol.Timestamp{1000, 1550, 1700}, mq.Map[tokenT1])
	require.Equal(t, []protocol.Timestamp{42}, mq.Map[tokenT2])
}

func TestBuildQueryBufferPreconditions(t *testing.T) {
	data := geotemporalRecords(t, 1000, tokenT1)

	_, err := BuildQueryBuffer(protocol.ModeGeotemporal, data, []protocol.QueryID{1, 2}, []uint32{1})
	require.True(t, errors.Is(err, protocol.ErrPrecondition), err)

	_, err = BuildQueryBuffer(protocol.ModeGeotemporal, data, []protocol.QueryID{1}, []uint32{2})
	require.True(t, errors.Is(err, protocol.ErrPrecondition), err)

	data[3] = 'x'
	_, err = BuildQueryBuffer(protocol.ModeGeotemporal, data, []protocol.QueryID{1}, []uint32{1})
	require.True(t, errors.Is(err, protocol.ErrDecoding), err)
}

func TestTimestampDictionaryInsertReturnsAdditions(t *testing.T) {
	d := NewTimestampDictionary()
	added := d.Insert([]protocol.DictionaryEntry{{Token: tokenT1, Timestamps: []protocol.Timestamp{1000, 1700}}})
	require.Len(t, added, 1)
	require.Equal(t, 2, d.Records())

	added = d.Insert([]protocol.DictionaryEntry{
		{Token: tokenT1, Timestamps: []protocol.Timestamp{1000, 1200}},
		{Token: tokenT2, Timestamps: []protocol.Timestamp{5}},
		{Token: tokenT1, Timestamps: []protocol.Timestamp{1700}},
	})
	require.Equal(t, []protocol.DictionaryEntry{
		{Token: tokenT1, Timestamps: []protocol.Timestamp{1200}},
		{Token: tokenT2, Timestamps: []protocol.Timestamp{5}},
	}, added)
	require.Equal(t, []protocol.Timestamp{1000, 1200, 1700}, d.Lookup(tokenT1))
	require.Equal(t, 2, d.Len())
	require.Equal(t, 4, d.Records())
	require.NotZero(t, d.MemoryEstimate())
}

func TestTokenSetInsert(t *testing.T) {
	s := NewTokenSet()
	added := s.Insert([]protocol.Token{tokenT1, tokenT1})
	require.Equal(t, 1, added.Len())
	added = s.Insert([]protocol.Token{tokenT1, tokenT2})
	require.Equal(t, 1, added.Len())
	require.True(t, added.Contains(tokenT2))
	require.Equal(t, 2, s.Len())
}

func TestWindowBoundaries(t *testing.T) {
	for delta, want := range map[protocol.Timestamp]int{0: 1, 1: 1, 599: 1, 600: 0, 601: 0} {
		for _, dictFirst := range []bool{true, false} {
			d, q := protocol.Timestamp(10000), protocol.Timestamp(10000)
			if dictFirst {
				q += delta
			} else {
				d += delta
			}
			mq := &MappedQueryBuffer{Map: map[protocol.Token][]protocol.Timestamp{tokenT1: {q}}}
			var rb ResultBuffer
			n := MatchWindowed([]protocol.DictionaryEntry{{Token: tokenT1, Timestamps: []protocol.Timestamp{d}}}, mq, 600, &rb)
			require.Equal(t, want, n, "delta=%d dictFirst=%v", delta, dictFirst)
		}
	}
}

// naiveWindowCount is the quadratic reference for the sweep.
func naiveWindowCount(dict, query []protocol.Timestamp, window protocol.Timestamp) int {
	n := 0
	for _, q := range query {
		for _, d := range dict {
			if d < q+window && q < d+window {
				n++
			}
		}
	}
	return n
}

func TestMatchWindowedAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		var dict, query []protocol.Timestamp
		for i := 0; i < rng.Intn(30); i++ {
			dict = protocol.SortedInsert(dict, protocol.Timestamp(rng.Intn(5000)))
		}
		for i := 0; i < rng.Intn(30); i++ {
			query = protocol.SortedInsert(query, protocol.Timestamp(rng.Intn(5000)))
		}

		mq := &MappedQueryBuffer{Map: map[protocol.Token][]protocol.Timestamp{tokenT1: query}}
		var rb ResultBuffer
		n := MatchWindowed([]protocol.DictionaryEntry{{Token: tokenT1, Timestamps: dict}}, mq, 600, &rb)
		require.Equal(t, naiveWindowCount(dict, query, 600), n)
		require.Equal(t, n, rb.Len())
	}
}

func TestMatchExact(t *testing.T) {
	dict := NewTokenSet().Insert([]protocol.Token{tokenT1})
	mq := &MappedQueryBuffer{Map: map[protocol.Token][]protocol.Timestamp{tokenT1: nil, tokenT2: nil}}
	var rb ResultBuffer
	require.Equal(t, 1, MatchExact(dict, mq, &rb))
	require.Equal(t, []Match{{Token: tokenT1}}, rb.Matches)
}

func TestInProcessEndToEnd(t *testing.T) {
	b, err := NewInProcess(plainConfig(protocol.ModeGeotemporal))
	require.NoError(t, err)
	defer b.Close()

	data := geotemporalRecords(t, 1550, tokenT1, 1550, tokenT2)
	require.NoError(t, b.UploadQueries(data, []protocol.QueryID{42, 7}, []uint32{1, 1}))
	require.NoError(t, b.SubmitDictionaryChunk(protocol.EncodeGeotemporalChunk([]protocol.DictionaryEntry{
		{Token: tokenT1, Timestamps: []protocol.Timestamp{1000, 1700}},
	})))

	out := make([]byte, 2*protocol.ResponseRecordSize)
	require.NoError(t, b.FetchResponse(out))

	r42, err := protocol.ParseQueryResult(out[:protocol.ResponseRecordSize])
	require.NoError(t, err)
	require.Equal(t, protocol.QueryResult{QueryID: 42, RiskLevel: 1}, r42)

	r7, err := protocol.ParseQueryResult(out[protocol.ResponseRecordSize:])
	require.NoError(t, err)
	require.Equal(t, protocol.QueryResult{QueryID: 7, RiskLevel: 0}, r7)

	stats := b.Stats()
	require.Equal(t, 1, stats.Chunks)
	require.Equal(t, 2, stats.Matches)
	require.Equal(t, 2, stats.DictionaryRecords)
}

func TestInProcessOverlappingChunksCountOnce(t *testing.T) {
	b, err := NewInProcess(plainConfig(protocol.ModeGeotemporal))
	require.NoError(t, err)

	data := geotemporalRecords(t, 1550, tokenT1)
	require.NoError(t, b.UploadQueries(data, []protocol.QueryID{42}, []uint32{1}))

	chunk := protocol.EncodeGeotemporalChunk([]protocol.DictionaryEntry{
		{Token: tokenT1, Timestamps: []protocol.Timestamp{1000, 1700}},
	})
	require.NoError(t, b.SubmitDictionaryChunk(chunk))
	require.NoError(t, b.SubmitDictionaryChunk(chunk))
	require.Equal(t, 2, b.Stats().Matches)
}

func TestInProcessEncryptedResponse(t *testing.T) {
	cfg := protocol.DefaultMatchConfig()
	cfg.CounterBlock = protocol.CounterBlock{15: 1}
	b, err := NewInProcess(cfg)
	require.NoError(t, err)

	data := geotemporalRecords(t, 1550, tokenT1)
	require.NoError(t, b.UploadQueries(data, []protocol.QueryID{42}, []uint32{1}))
	require.NoError(t, b.SubmitDictionaryChunk(protocol.EncodeGeotemporalChunk([]protocol.DictionaryEntry{
		{Token: tokenT1, Timestamps: []protocol.Timestamp{1000, 1700}},
	})))

	out := make([]byte, protocol.ResponseRecordSize)
	require.NoError(t, b.FetchResponse(out))
	record, err := protocol.ParseQueryResult(out)
	require.NoError(t, err)

	risk, err := crypto.OpenRisk(uint64(record.QueryID), cfg.CounterBlock, cfg.CounterIncBits, record.RiskLevel)
	require.NoError(t, err)
	require.Equal(t, uint8(1), risk)
}

func TestInProcessExactMode(t *testing.T) {
	b, err := NewInProcess(plainConfig(protocol.ModeExact))
	require.NoError(t, err)

	data := protocol.EncodeExactChunk([]protocol.Token{tokenT1, tokenT2, tokenT2})
	require.NoError(t, b.UploadQueries(data, []protocol.QueryID{1, 2}, []uint32{1, 2}))
	require.NoError(t, b.SubmitDictionaryChunk(protocol.EncodeExactChunk([]protocol.Token{tokenT2})))

	out := make([]byte, 2*protocol.ResponseRecordSize)
	require.NoError(t, b.FetchResponse(out))
	require.Equal(t, byte(0), out[protocol.QueryIDSize])
	require.Equal(t, byte(1), out[protocol.ResponseRecordSize+protocol.QueryIDSize])
}

func TestInProcessCallStatuses(t *testing.T) {
	b, err := NewInProcess(plainConfig(protocol.ModeGeotemporal))
	require.NoError(t, err)

	var callErr *CallError

	err = b.SubmitDictionaryChunk(nil)
	require.True(t, errors.As(err, &callErr))
	require.Equal(t, StatusUnexpectedState, callErr.Status)

	require.NoError(t, b.UploadQueries(nil, nil, nil))

	err = b.UploadQueries(nil, nil, nil)
	require.True(t, errors.As(err, &callErr))
	require.Equal(t, StatusUnexpectedState, callErr.Status)

	err = b.SubmitDictionaryChunk([]byte{1, 2, 3})
	require.True(t, errors.As(err, &callErr))
	require.Equal(t, StatusInvalidParameter, callErr.Status)
	require.True(t, errors.Is(err, protocol.ErrDecoding))

	err = b.FetchResponse(make([]byte, 1))
	require.True(t, errors.As(err, &callErr))
	require.Equal(t, StatusBufferTooSmall, callErr.Status)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	err = b.FetchResponse(nil)
	require.True(t, errors.As(err, &callErr))
	require.Equal(t, StatusClosed, callErr.Status)
}

func TestNewInProcessRejectsInvalidConfig(t *testing.T) {
	cfg := protocol.DefaultMatchConfig()
	cfg.RiskThresholds = nil
	_, err := NewInProcess(cfg)
	require.True(t, errors.Is(err, protocol.ErrInitialization))
}
