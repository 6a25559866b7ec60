package protocol

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortedInsert(t *testing.T) {
	var seq []Timestamp
	for _, ts := range []Timestamp{50, 10, 30, 10, 70, 30, 5} {
		seq = SortedInsert(seq, ts)
		require.True(t, IsSortedUnique(seq), seq)
	}
	require.Equal(t, []Timestamp{5, 10, 30, 50, 70}, seq)
}

func TestSortedInsertRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var seq []Timestamp
	seen := make(map[Timestamp]bool)
	for i := 0; i < 500; i++ {
		ts := Timestamp(rng.Intn(200))
		seq = SortedInsert(seq, ts)
		seen[ts] = true
		require.True(t, IsSortedUnique(seq))
	}
	require.Len(t, seq, len(seen))
}

func TestSortedMerge(t *testing.T) {
	testCases := []struct {
		name string
		a, b []Timestamp
		want []Timestamp
	}{
		{"both empty", nil, nil, []Timestamp{}},
		{"left empty", nil, []Timestamp{1, 2}, []Timestamp{1, 2}},
		{"right empty", []Timestamp{3}, nil, []Timestamp{3}},
		{"interleaved", []Timestamp{1, 4, 9}, []Timestamp{2, 4, 10}, []Timestamp{1, 2, 4, 9, 10}},
		{"identical", []Timestamp{1, 2}, []Timestamp{1, 2}, []Timestamp{1, 2}},
		{"disjoint tail", []Timestamp{1, 2}, []Timestamp{5, 6, 7}, []Timestamp{1, 2, 5, 6, 7}},
		{"zero values", []Timestamp{0, 3}, []Timestamp{0}, []Timestamp{0, 3}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SortedMerge(tc.a, tc.b))
		})
	}
}

func TestSortedDifference(t *testing.T) {
	require.Equal(t, []Timestamp{1, 9}, SortedDifference([]Timestamp{1, 4, 9}, []Timestamp{2, 4, 10}))
	require.Nil(t, SortedDifference([]Timestamp{4}, []Timestamp{4}))
	require.Equal(t, []Timestamp{4}, SortedDifference([]Timestamp{4}, nil))
}

func TestSortedContains(t *testing.T) {
	seq := []Timestamp{1, 5, 9}
	require.True(t, SortedContains(seq, 5))
	require.False(t, SortedContains(seq, 6))
	require.False(t, SortedContains(nil, 0))
}

func sortedUniqueFromBytes(raw []byte) []Timestamp {
	var seq []Timestamp
	for _, b := range raw {
		seq = SortedInsert(seq, Timestamp(b))
	}
	return seq
}

func FuzzSortedMerge(f *testing.F) {
	f.Add([]byte{}, []byte{})
	f.Add([]byte{1, 2, 3}, []byte{2, 3, 4})
	f.Add([]byte{0}, []byte{255, 0})

	f.Fuzz(func(t *testing.T, rawA, rawB []byte) {
		a := sortedUniqueFromBytes(rawA)
		b := sortedUniqueFromBytes(rawB)
		merged := SortedMerge(a, b)

		if !IsSortedUnique(merged) {
			t.Fatalf("merge not ascending/unique: %v", merged)
		}

		union := make(map[Timestamp]bool)
		for _, ts := range a {
			union[ts] = true
		}
		for _, ts := range b {
			union[ts] = true
		}
		if len(union) != len(merged) {
			t.Fatalf("merge has %d elements, union has %d", len(merged), len(union))
		}
		for _, ts := range merged {
			if !union[ts] {
				t.Fatalf("merge contains %d not in either input", ts)
			}
		}

		diff := SortedDifference(a, b)
		for _, ts := range diff {
			if slices.Contains(b, ts) || !slices.Contains(a, ts) {
				t.Fatalf("difference element %d misplaced", ts)
			}
		}
	})
}
