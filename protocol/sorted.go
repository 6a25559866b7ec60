package protocol

import "slices"

// The helpers below maintain strictly ascending, duplicate-free timestamp
// sequences. Every matching and lookup routine relies on that invariant.

// SortedInsert inserts ts into seq, keeping it ascending and unique.
// Linear in len(seq); per-client sequences are short, and a slice stays
// cache friendly where a tree would not.
func SortedInsert(seq []Timestamp, ts Timestamp) []Timestamp {
	for i, elm := range seq {
		if elm == ts {
			return seq
		}
		if elm > ts {
			seq = append(seq, 0)
			copy(seq[i+1:], seq[i:])
			seq[i] = ts
			return seq
		}
	}
	return append(seq, ts)
}

// SortedMerge returns the ascending, unique union of a and b. Both inputs
// must already be ascending and unique; neither is modified.
func SortedMerge(a, b []Timestamp) []Timestamp {
	merged := make([]Timestamp, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			merged = append(merged, a[i])
			i++
		case a[i] > b[j]:
			merged = append(merged, b[j])
			j++
		default:
			merged = append(merged, a[i])
			i++
			j++
		}
	}
	merged = append(merged, a[i:]...)
	return append(merged, b[j:]...)
}

// SortedDifference returns the elements of a that are not in b, ascending.
func SortedDifference(a, b []Timestamp) []Timestamp {
	var diff []Timestamp
	j := 0
	for _, ts := range a {
		for j < len(b) && b[j] < ts {
			j++
		}
		if j < len(b) && b[j] == ts {
			continue
		}
		diff = append(diff, ts)
	}
	return diff
}

// SortedContains binary searches seq for ts.
func SortedContains(seq []Timestamp, ts Timestamp) bool {
	_, found := slices.BinarySearch(seq, ts)
	return found
}

// IsSortedUnique reports whether seq is strictly ascending.
func IsSortedUnique(seq []Timestamp) bool {
	for i := 1; i < len(seq); i++ {
		if seq[i-1] >= seq[i] {
			return false
		}
	}
	return true
}
