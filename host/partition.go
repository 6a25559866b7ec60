package host

import (
	"github.com/cockroachdb/errors"

	"github.com/flashbots/pctmatch/dataset"
	"github.com/flashbots/pctmatch/protocol"
)

// Partitioner cuts the central dataset into encoded chunks of at most
// chunkSize records. Chunks are produced lazily, one per Next call, so
// only the chunk in flight is held in encoded form.
//
// In geotemporal mode a token's run may be split across chunks; every
// piece is still ascending and unique.
type Partitioner struct {
	central   *dataset.Central
	chunkSize int

	entry  int
	offset int
}

// PartitionDataset returns a Partitioner over c.
func PartitionDataset(c *dataset.Central, chunkSize int) (*Partitioner, error) {
	if chunkSize <= 0 {
		return nil, errors.Mark(errors.Newf("chunk size must be positive, got %d", chunkSize), protocol.ErrPrecondition)
	}
	return &Partitioner{central: c, chunkSize: chunkSize}, nil
}

// Count returns the total number of chunks.
func (p *Partitioner) Count() int {
	return (p.central.Records() + p.chunkSize - 1) / p.chunkSize
}

// Next returns the next encoded chunk, or false when the dataset is
// exhausted.
func (p *Partitioner) Next() ([]byte, bool) {
	if p.central.Mode == protocol.ModeExact {
		return p.nextExact()
	}
	return p.nextGeotemporal()
}

func (p *Partitioner) nextExact() ([]byte, bool) {
	tokens := p.central.Tokens
	if p.entry >= len(tokens) {
		return nil, false
	}
	end := min(p.entry+p.chunkSize, len(tokens))
	chunk := protocol.EncodeExactChunk(tokens[p.entry:end])
	p.entry = end
	return chunk, true
}

func (p *Partitioner) nextGeotemporal() ([]byte, bool) {
	entries := p.central.Entries
	var chunk []protocol.DictionaryEntry
	room := p.chunkSize

	for room > 0 && p.entry < len(entries) {
		e := entries[p.entry]
		rest := e.Timestamps[p.offset:]
		if len(rest) == 0 {
			p.entry++
			p.offset = 0
			continue
		}
		take := min(room, len(rest))
		chunk = append(chunk, protocol.DictionaryEntry{Token: e.Token, Timestamps: rest[:take]})
		room -= take
		p.offset += take
		if p.offset == len(e.Timestamps) {
			p.entry++
			p.offset = 0
		}
	}
	if len(chunk) == 0 {
		return nil, false
	}
	return protocol.EncodeGeotemporalChunk(chunk), true
}
