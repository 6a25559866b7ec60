package testutil

import (
	"math/rand"
	"slices"

	"github.com/flashbots/pctmatch/dataset"
	"github.com/flashbots/pctmatch/protocol"
)

// =====================================
// Configuration Generators
// =====================================

// TestConfigOption is a function that modifies a MatchConfig
type TestConfigOption func(*protocol.MatchConfig)

// WithMode sets the matching mode
func WithMode(mode protocol.Mode) TestConfigOption {
	return func(cfg *protocol.MatchConfig) {
		cfg.Mode = mode
	}
}

// WithContactWindow sets the contact window in seconds
func WithContactWindow(window protocol.Timestamp) TestConfigOption {
	return func(cfg *protocol.MatchConfig) {
		cfg.ContactWindow = window
	}
}

// WithEncryption switches response encryption on or off
func WithEncryption(enabled bool) TestConfigOption {
	return func(cfg *protocol.MatchConfig) {
		cfg.EncryptResponses = enabled
	}
}

// WithCounter sets the counter block and increment width
func WithCounter(block protocol.CounterBlock, incBits uint) TestConfigOption {
	return func(cfg *protocol.MatchConfig) {
		cfg.CounterBlock = block
		cfg.CounterIncBits = incBits
	}
}

// NewTestConfig creates a match configuration with default values that can
// be customized using options
func NewTestConfig(options ...TestConfigOption) protocol.MatchConfig {
	cfg := protocol.DefaultMatchConfig()
	for _, option := range options {
		option(&cfg)
	}
	return cfg
}

// =====================================
// Dataset Builders
// =====================================

const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// GenerateTestTokens returns count distinct geohash-like tokens. The same
// seed always yields the same tokens.
func GenerateTestTokens(count int, seed int64) []protocol.Token {
	rng := rand.New(rand.NewSource(seed))
	seen := make(map[protocol.Token]bool, count)
	tokens := make([]protocol.Token, 0, count)
	for len(tokens) < count {
		var t protocol.Token
		for i := range t {
			t[i] = geohashAlphabet[rng.Intn(len(geohashAlphabet))]
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	return tokens
}

// CentralBuilder assembles a central dataset in memory.
type CentralBuilder struct {
	mode  protocol.Mode
	order []protocol.Token
	runs  map[protocol.Token][]protocol.Timestamp
}

func NewCentral(mode protocol.Mode) *CentralBuilder {
	return &CentralBuilder{mode: mode, runs: make(map[protocol.Token][]protocol.Timestamp)}
}

// Add records token at the given timestamps. In exact mode timestamps are
// ignored.
func (b *CentralBuilder) Add(token protocol.Token, timestamps ...protocol.Timestamp) *CentralBuilder {
	if _, ok := b.runs[token]; !ok {
		b.order = append(b.order, token)
		b.runs[token] = nil
	}
	b.runs[token] = append(b.runs[token], timestamps...)
	return b
}

// Build returns the dataset with every run sorted and deduplicated.
func (b *CentralBuilder) Build() *dataset.Central {
	c := &dataset.Central{Mode: b.mode}
	if b.mode == protocol.ModeExact {
		c.Tokens = slices.Clone(b.order)
		return c
	}
	for _, token := range b.order {
		run := slices.Clone(b.runs[token])
		slices.Sort(run)
		c.Entries = append(c.Entries, protocol.DictionaryEntry{Token: token, Timestamps: slices.Compact(run)})
	}
	return c
}

// QueryBatchBuilder assembles a query batch, keeping clients in the order
// of their first record.
type QueryBatchBuilder struct {
	mode    protocol.Mode
	order   []protocol.QueryID
	records map[protocol.QueryID][]byte
	counts  map[protocol.QueryID]uint32
}

func NewQueryBatch(mode protocol.Mode) *QueryBatchBuilder {
	return &QueryBatchBuilder{
		mode:    mode,
		records: make(map[protocol.QueryID][]byte),
		counts:  make(map[protocol.QueryID]uint32),
	}
}

// Add appends one record for client id. Panics if ts does not fit the
// record's timestamp field.
func (b *QueryBatchBuilder) Add(id protocol.QueryID, token protocol.Token, ts protocol.Timestamp) *QueryBatchBuilder {
	if _, ok := b.records[id]; !ok {
		b.order = append(b.order, id)
	}
	record, err := protocol.AppendQueryRecord(b.records[id], b.mode, ts, token)
	if err != nil {
		panic(err)
	}
	b.records[id] = record
	b.counts[id]++
	return b
}

func (b *QueryBatchBuilder) Build() *dataset.QueryBatch {
	batch := &dataset.QueryBatch{Mode: b.mode, IDs: slices.Clone(b.order)}
	for _, id := range b.order {
		batch.Counts = append(batch.Counts, b.counts[id])
		batch.Data = append(batch.Data, b.records[id]...)
	}
	return batch
}

// GenerateTestWorkload builds a random central dataset over tokenCount
// tokens and a query batch of clients clients, each holding
// recordsPerClient records drawn from the same tokens and time range, so
// that some clients match and others do not.
func GenerateTestWorkload(mode protocol.Mode, clients, tokenCount, recordsPerToken, recordsPerClient int, seed int64) (*dataset.QueryBatch, *dataset.Central) {
	rng := rand.New(rand.NewSource(seed))
	tokens := GenerateTestTokens(tokenCount, seed)
	const span = 86400

	central := NewCentral(mode)
	// Half the tokens are in the central dataset.
	for _, token := range tokens[:tokenCount/2+1] {
		run := make([]protocol.Timestamp, recordsPerToken)
		for i := range run {
			run[i] = protocol.Timestamp(rng.Int63n(span))
		}
		central.Add(token, run...)
	}

	queries := NewQueryBatch(mode)
	for c := 0; c < clients; c++ {
		id := protocol.QueryID(1000 + c)
		for r := 0; r < recordsPerClient; r++ {
			token := tokens[rng.Intn(len(tokens))]
			queries.Add(id, token, protocol.Timestamp(rng.Int63n(span)))
		}
	}
	return queries.Build(), central.Build()
}
