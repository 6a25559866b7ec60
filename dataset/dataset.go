// Package dataset decodes the central dataset and query files into the raw
// arrays the boundary consumes.
//
// Both files are comma separated text; lines starting with '#' are
// comments.
//
//	central, geotemporal:  <token>,<timestamp>
//	central, exact:        <token>[,<ignored>]
//	queries, geotemporal:  <query id>,<timestamp>,<token>
//	queries, exact:        <query id>,<token>
//
// Tokens are exactly protocol.TokenSize ASCII bytes. Clients appear in the
// query batch in the order of their first line.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/flashbots/pctmatch/protocol"
)

// Central is the host-side copy of the central dataset.
type Central struct {
	Mode protocol.Mode

	// Entries holds one ascending, unique run per token (geotemporal mode).
	Entries []protocol.DictionaryEntry

	// Tokens holds the distinct tokens (exact mode).
	Tokens []protocol.Token
}

// Len returns the number of distinct tokens.
func (c *Central) Len() int {
	if c.Mode == protocol.ModeExact {
		return len(c.Tokens)
	}
	return len(c.Entries)
}

// Records returns the number of (token, timestamp) records, or the number
// of tokens in exact mode.
func (c *Central) Records() int {
	if c.Mode == protocol.ModeExact {
		return len(c.Tokens)
	}
	n := 0
	for _, e := range c.Entries {
		n += len(e.Timestamps)
	}
	return n
}

// Summary describes the dataset without revealing its content.
type Summary struct {
	Tokens  int
	Records int
	Periods int
}

// Summarize counts tokens, records and contiguous presence periods.
func (c *Central) Summarize(gap protocol.Timestamp) Summary {
	s := Summary{Tokens: c.Len(), Records: c.Records()}
	for _, e := range c.Entries {
		s.Periods += len(protocol.PeriodsFromTimestamps(e.Timestamps, gap))
	}
	return s
}

// LoadCentral reads the central dataset file at path.
func LoadCentral(path string, mode protocol.Mode) (*Central, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "opening central dataset"), protocol.ErrDecoding)
	}
	defer f.Close()
	return ReadCentral(f, mode)
}

// ReadCentral decodes a central dataset. Runs are sorted and deduplicated
// here, so the boundary always receives ascending, unique chunks.
func ReadCentral(r io.Reader, mode protocol.Mode) (*Central, error) {
	c := &Central{Mode: mode}
	runs := make(map[protocol.Token][]protocol.Timestamp)
	seen := make(map[protocol.Token]bool)
	var order []protocol.Token

	err := readLines(r, func(line int, fields []string) error {
		token, err := parseToken(fields[0])
		if err != nil {
			return err
		}
		if !seen[token] {
			seen[token] = true
			order = append(order, token)
		}
		if mode == protocol.ModeExact {
			return nil
		}
		if len(fields) != 2 {
			return errors.Newf("expected <token>,<timestamp>, got %d fields", len(fields))
		}
		ts, err := parseTimestamp(fields[1])
		if err != nil {
			return err
		}
		runs[token] = append(runs[token], ts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if mode == protocol.ModeExact {
		c.Tokens = order
		return c, nil
	}
	c.Entries = make([]protocol.DictionaryEntry, 0, len(order))
	for _, token := range order {
		run := runs[token]
		slices.Sort(run)
		c.Entries = append(c.Entries, protocol.DictionaryEntry{Token: token, Timestamps: slices.Compact(run)})
	}
	return c, nil
}

// QueryBatch holds every client query in the layout UploadQueries takes.
type QueryBatch struct {
	Mode   protocol.Mode
	IDs    []protocol.QueryID
	Counts []uint32
	Data   []byte
}

// Clients returns the number of clients in the batch.
func (b *QueryBatch) Clients() int { return len(b.IDs) }

// LoadQueries reads the query file at path.
func LoadQueries(path string, mode protocol.Mode) (*QueryBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "opening query file"), protocol.ErrDecoding)
	}
	defer f.Close()
	return ReadQueries(f, mode)
}

// ReadQueries decodes a query file, grouping each client's records.
func ReadQueries(r io.Reader, mode protocol.Mode) (*QueryBatch, error) {
	want := 3
	if mode == protocol.ModeExact {
		want = 2
	}

	records := make(map[protocol.QueryID][]byte)
	counts := make(map[protocol.QueryID]uint32)
	var order []protocol.QueryID

	err := readLines(r, func(line int, fields []string) error {
		if len(fields) != want {
			return errors.Newf("expected %d fields, got %d", want, len(fields))
		}
		id, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return errors.Wrap(err, "query id")
		}
		qid := protocol.QueryID(id)

		var ts protocol.Timestamp
		if mode != protocol.ModeExact {
			if ts, err = parseTimestamp(fields[1]); err != nil {
				return err
			}
		}
		token, err := parseToken(fields[want-1])
		if err != nil {
			return err
		}

		if _, ok := records[qid]; !ok {
			order = append(order, qid)
		}
		records[qid], err = protocol.AppendQueryRecord(records[qid], mode, ts, token)
		if err != nil {
			return err
		}
		counts[qid]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch := &QueryBatch{
		Mode:   mode,
		IDs:    order,
		Counts: make([]uint32, 0, len(order)),
	}
	for _, id := range order {
		batch.Counts = append(batch.Counts, counts[id])
		batch.Data = append(batch.Data, records[id]...)
	}
	return batch, nil
}

func readLines(r io.Reader, fn func(line int, fields []string) error) error {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Mark(errors.Wrap(err, "reading input"), protocol.ErrDecoding)
		}
		line, _ := cr.FieldPos(0)
		if err := fn(line, fields); err != nil {
			return errors.Mark(errors.Wrapf(err, "line %d", line), protocol.ErrDecoding)
		}
	}
}

func parseToken(field string) (protocol.Token, error) {
	return protocol.NewToken([]byte(strings.TrimSpace(field)))
}

func parseTimestamp(field string) (protocol.Timestamp, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(field), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "timestamp")
	}
	return protocol.Timestamp(v), nil
}
