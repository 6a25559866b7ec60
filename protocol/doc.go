// Package protocol defines the data that crosses the matching boundary:
// tokens, timestamps, query records, dictionary chunks and response
// records, plus the match configuration and the error taxonomy shared by
// both sides.
//
// # Wire Formats
//
// A geotemporal query record is a 10-digit ASCII timestamp followed by a
// 10-byte token; an exact record is the token alone. Records of all
// clients are concatenated, with a parallel array of per-client counts.
//
// A geotemporal dictionary chunk repeats
//
//	token(10) || count(u32 BE) || count x timestamp(u64 BE)
//
// with every run ascending and unique. An exact chunk is a concatenation
// of tokens.
//
// The response holds one 9-byte record per client, in upload order: the
// big-endian query id and one risk byte, optionally counter-mode
// encrypted (see package crypto).
//
// # Sorted Sequences
//
// Timestamp runs are kept strictly ascending everywhere. SortedInsert,
// SortedMerge and SortedDifference preserve that invariant.
package protocol
