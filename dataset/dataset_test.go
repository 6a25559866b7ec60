package dataset

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/pctmatch/protocol"
)

func TestReadCentralGeotemporal(t *testing.T) {
	in := `# token,timestamp
u4pruydqqv,1700
u4pruydqqv,1000
xn76urx6qr,5
u4pruydqqv,1700
`
	c, err := ReadCentral(strings.NewReader(in), protocol.ModeGeotemporal)
	require.NoError(t, err)
	require.Equal(t, []protocol.DictionaryEntry{
		{Token: protocol.MustToken("u4pruydqqv"), Timestamps: []protocol.Timestamp{1000, 1700}},
		{Token: protocol.MustToken("xn76urx6qr"), Timestamps: []protocol.Timestamp{5}},
	}, c.Entries)
	require.Equal(t, 2, c.Len())
	require.Equal(t, 3, c.Records())
	require.Equal(t, Summary{Tokens: 2, Records: 3, Periods: 3}, c.Summarize(600))
}

func TestReadCentralExact(t *testing.T) {
	in := "u4pruydqqv\nxn76urx6qr,whatever\nu4pruydqqv\n"
	c, err := ReadCentral(strings.NewReader(in), protocol.ModeExact)
	require.NoError(t, err)
	require.Equal(t, []protocol.Token{protocol.MustToken("u4pruydqqv"), protocol.MustToken("xn76urx6qr")}, c.Tokens)
	require.Equal(t, 2, c.Records())
}

func TestReadCentralRejectsMalformed(t *testing.T) {
	_, err := ReadCentral(strings.NewReader("short,1\n"), protocol.ModeGeotemporal)
	require.True(t, errors.Is(err, protocol.ErrDecoding), err)
	require.Contains(t, err.Error(), "line 1")

	_, err = ReadCentral(strings.NewReader("u4pruydqqv,soon\n"), protocol.ModeGeotemporal)
	require.True(t, errors.Is(err, protocol.ErrDecoding), err)
}

func TestReadQueries(t *testing.T) {
	in := `42,1550,u4pruydqqv
7,1550,xn76urx6qr
42,1600,xn76urx6qr
`
	b, err := ReadQueries(strings.NewReader(in), protocol.ModeGeotemporal)
	require.NoError(t, err)
	require.Equal(t, []protocol.QueryID{42, 7}, b.IDs)
	require.Equal(t, []uint32{2, 1}, b.Counts)
	require.Equal(t, 2, b.Clients())
	require.Equal(t, "0000001550u4pruydqqv0000001600xn76urx6qr0000001550xn76urx6qr", string(b.Data))
}

func TestReadQueriesExact(t *testing.T) {
	b, err := ReadQueries(strings.NewReader("1,u4pruydqqv\n2,xn76urx6qr\n"), protocol.ModeExact)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 1}, b.Counts)
	require.Equal(t, "u4pruydqqvxn76urx6qr", string(b.Data))

	_, err = ReadQueries(strings.NewReader("1,1550,u4pruydqqv\n"), protocol.ModeExact)
	require.True(t, errors.Is(err, protocol.ErrDecoding), err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadQueries("/nonexistent/queries.csv", protocol.ModeExact)
	require.True(t, errors.Is(err, protocol.ErrDecoding))
}
