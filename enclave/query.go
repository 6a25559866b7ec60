package enclave

import (
	"github.com/cockroachdb/errors"

	"github.com/flashbots/pctmatch/protocol"
)

// QueryRep is one client's query: the tokens it visited, each with an
// ascending, unique run of timestamps. In exact mode the runs are empty.
type QueryRep struct {
	ID         protocol.QueryID
	Parameters map[protocol.Token][]protocol.Timestamp
}

// Has reports whether the query contains (token, ts). In exact mode only
// the token is compared.
func (q *QueryRep) Has(mode protocol.Mode, token protocol.Token, ts protocol.Timestamp) bool {
	run, ok := q.Parameters[token]
	if !ok {
		return false
	}
	if mode == protocol.ModeExact {
		return true
	}
	return protocol.SortedContains(run, ts)
}

// QueryBuffer holds the queries in submission order. That order fixes the
// position of each record in the response.
type QueryBuffer struct {
	Mode    protocol.Mode
	Queries []QueryRep
}

// BuildQueryBuffer decodes the concatenated per-client records in data.
// counts[i] is the number of records of client ids[i]. The parallel
// arrays must agree with each other and with the payload length.
func BuildQueryBuffer(mode protocol.Mode, data []byte, ids []protocol.QueryID, counts []uint32) (*QueryBuffer, error) {
	if !mode.Valid() {
		return nil, errors.Mark(errors.Newf("unknown mode %q", mode), protocol.ErrPrecondition)
	}
	if len(ids) != len(counts) {
		return nil, errors.Mark(errors.Newf("%d query ids but %d record counts", len(ids), len(counts)), protocol.ErrPrecondition)
	}
	recordSize := mode.QueryRecordSize()
	var total uint64
	for _, c := range counts {
		total += uint64(c)
	}
	if total*uint64(recordSize) != uint64(len(data)) {
		return nil, errors.Mark(errors.Newf("record counts cover %d bytes, payload has %d", total*uint64(recordSize), len(data)), protocol.ErrPrecondition)
	}

	qb := &QueryBuffer{Mode: mode, Queries: make([]QueryRep, 0, len(ids))}
	cursor := 0
	for i, id := range ids {
		q := QueryRep{ID: id, Parameters: make(map[protocol.Token][]protocol.Timestamp)}
		for n := uint32(0); n < counts[i]; n++ {
			record := data[cursor : cursor+recordSize]
			cursor += recordSize

			token, ts, err := decodeQueryRecord(mode, record)
			if err != nil {
				return nil, errors.Wrapf(err, "query %d record %d", id, n)
			}
			if mode == protocol.ModeExact {
				if _, ok := q.Parameters[token]; !ok {
					q.Parameters[token] = nil
				}
				continue
			}
			q.Parameters[token] = protocol.SortedInsert(q.Parameters[token], ts)
		}
		qb.Queries = append(qb.Queries, q)
	}
	return qb, nil
}

func decodeQueryRecord(mode protocol.Mode, record []byte) (protocol.Token, protocol.Timestamp, error) {
	if mode == protocol.ModeExact {
		token, err := protocol.NewToken(record)
		return token, 0, err
	}
	ts, err := protocol.ParseTimestampField(record[:protocol.TimestampFieldSize])
	if err != nil {
		return protocol.Token{}, 0, err
	}
	token, err := protocol.NewToken(record[protocol.TimestampFieldSize:])
	return token, ts, err
}

// MappedQueryBuffer is the union of all queries keyed by token. It loses
// client identity and exists only so each dictionary chunk is scanned once.
type MappedQueryBuffer struct {
	Map map[protocol.Token][]protocol.Timestamp
}

// AggregateQueries merges every client's runs into one run per token.
func AggregateQueries(qb *QueryBuffer) *MappedQueryBuffer {
	mq := &MappedQueryBuffer{Map: make(map[protocol.Token][]protocol.Timestamp)}
	for _, q := range qb.Queries {
		for token, run := range q.Parameters {
			existing, ok := mq.Map[token]
			if !ok {
				mq.Map[token] = append([]protocol.Timestamp(nil), run...)
				continue
			}
			mq.Map[token] = protocol.SortedMerge(existing, run)
		}
	}
	return mq
}
