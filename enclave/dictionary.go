package enclave

import "github.com/flashbots/pctmatch/protocol"

// Byte sizes used by the memory estimates.
const (
	sliceHeaderSize = 24
	timestampSize   = 8
	slotOverhead    = 8
)

// Dictionary is the in-boundary form of the central dataset.
type Dictionary interface {
	// Len returns the number of distinct tokens.
	Len() int
	// Records returns the number of stored records.
	Records() int
	MemoryEstimate() uint64
}

// TimestampDictionary maps tokens to ascending, unique timestamp runs.
// It accumulates every chunk submitted during a job.
type TimestampDictionary struct {
	runs    map[protocol.Token][]protocol.Timestamp
	records int
}

func NewTimestampDictionary() *TimestampDictionary {
	return &TimestampDictionary{runs: make(map[protocol.Token][]protocol.Timestamp)}
}

// Insert folds entries into the dictionary and returns what they added:
// for each token, only the timestamps that were not already present.
// Tokens that add nothing are left out of the result. Entries must be
// ascending and unique per run.
func (d *TimestampDictionary) Insert(entries []protocol.DictionaryEntry) []protocol.DictionaryEntry {
	var added []protocol.DictionaryEntry
	for _, e := range entries {
		existing, ok := d.runs[e.Token]
		if !ok {
			run := append([]protocol.Timestamp(nil), e.Timestamps...)
			d.runs[e.Token] = run
			d.records += len(run)
			added = append(added, protocol.DictionaryEntry{Token: e.Token, Timestamps: run})
			continue
		}
		fresh := protocol.SortedDifference(e.Timestamps, existing)
		if len(fresh) == 0 {
			continue
		}
		d.runs[e.Token] = protocol.SortedMerge(existing, fresh)
		d.records += len(fresh)
		added = append(added, protocol.DictionaryEntry{Token: e.Token, Timestamps: fresh})
	}
	return added
}

// Lookup returns the run stored for token, or nil.
func (d *TimestampDictionary) Lookup(token protocol.Token) []protocol.Timestamp {
	return d.runs[token]
}

// Len returns the number of distinct tokens.
func (d *TimestampDictionary) Len() int { return len(d.runs) }

// Records returns the number of stored (token, timestamp) pairs.
func (d *TimestampDictionary) Records() int { return d.records }

// MemoryEstimate approximates the bytes held by the dictionary, counting
// map slots at a load factor of 1.1.
func (d *TimestampDictionary) MemoryEstimate() uint64 {
	slot := uint64(protocol.TokenSize + sliceHeaderSize + slotOverhead)
	return uint64(len(d.runs))*slot*11/10 + uint64(d.records)*timestampSize
}

// TokenSet is the exact-membership representation of the central dataset.
type TokenSet struct {
	set map[protocol.Token]struct{}
}

func NewTokenSet() *TokenSet {
	return &TokenSet{set: make(map[protocol.Token]struct{})}
}

// Insert adds tokens and returns the set of those that were new.
func (s *TokenSet) Insert(tokens []protocol.Token) *TokenSet {
	added := NewTokenSet()
	for _, t := range tokens {
		if _, ok := s.set[t]; ok {
			continue
		}
		s.set[t] = struct{}{}
		added.set[t] = struct{}{}
	}
	return added
}

func (s *TokenSet) Contains(t protocol.Token) bool {
	_, ok := s.set[t]
	return ok
}

func (s *TokenSet) Len() int { return len(s.set) }

// Records equals Len: a token is its own record.
func (s *TokenSet) Records() int { return len(s.set) }

// MemoryEstimate approximates the bytes held by the set.
func (s *TokenSet) MemoryEstimate() uint64 {
	return uint64(len(s.set)) * (protocol.TokenSize + slotOverhead) * 11 / 10
}
