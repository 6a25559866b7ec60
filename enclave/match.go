package enclave

import "github.com/flashbots/pctmatch/protocol"

// Match is a (token, query timestamp) pair confirmed against the
// dictionary. It is attributed to clients only when the response is built.
type Match struct {
	Token     protocol.Token
	Timestamp protocol.Timestamp
}

// ResultBuffer accumulates matches for the whole job. Append only.
type ResultBuffer struct {
	Matches []Match
}

func (r *ResultBuffer) Len() int { return len(r.Matches) }

func (r *ResultBuffer) Reset() { r.Matches = nil }

// MatchExact records every aggregated query token present in tokens.
func MatchExact(tokens *TokenSet, mq *MappedQueryBuffer, rb *ResultBuffer) int {
	n := 0
	for token := range mq.Map {
		if tokens.Contains(token) {
			rb.Matches = append(rb.Matches, Match{Token: token})
			n++
		}
	}
	return n
}

// MatchWindowed records, for every dictionary entry whose token was
// queried, one match per (dictionary ts d, query ts q) pair with
// d < q+window and q < d+window. The query timestamp is recorded.
func MatchWindowed(entries []protocol.DictionaryEntry, mq *MappedQueryBuffer, window protocol.Timestamp, rb *ResultBuffer) int {
	n := 0
	for _, e := range entries {
		query, ok := mq.Map[e.Token]
		if !ok {
			continue
		}
		sweepWindow(e.Timestamps, query, window, func(q protocol.Timestamp, count int) {
			for i := 0; i < count; i++ {
				rb.Matches = append(rb.Matches, Match{Token: e.Token, Timestamp: q})
			}
			n += count
		})
	}
	return n
}

// sweepWindow walks both ascending runs once. For each query timestamp q,
// dict[lo:hi] is exactly the set of d with q-window < d < q+window. Both
// bounds only move forward as q grows.
func sweepWindow(dict, query []protocol.Timestamp, window protocol.Timestamp, emit func(q protocol.Timestamp, count int)) {
	lo, hi := 0, 0
	for _, q := range query {
		for lo < len(dict) && dict[lo]+window <= q {
			lo++
		}
		if hi < lo {
			hi = lo
		}
		for hi < len(dict) && dict[hi] < q+window {
			hi++
		}
		if hi > lo {
			emit(q, hi-lo)
		}
	}
}
