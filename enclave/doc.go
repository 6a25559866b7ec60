// Package enclave holds everything that runs inside the trust boundary:
// the dictionary representations of the central dataset, the per-client
// query buffers and their aggregated view, the two matching algorithms, and
// response construction.
//
// # Data flow
//
//  1. UploadQueries decodes each client's records into a QueryRep (token to
//     ascending, unique timestamps) and merges all clients into one
//     MappedQueryBuffer so each chunk is scanned once, not once per client.
//
//  2. Every SubmitDictionaryChunk folds the chunk into the accumulated
//     dictionary and matches only what the chunk added. Overlapping chunks
//     therefore never count a (token, timestamp) twice, and the final
//     result does not depend on how the dataset was partitioned.
//
//  3. FetchResponse attributes the ResultBuffer to clients by binary search
//     in each client's own runs, classifies the count into a risk level and
//     writes id || risk records in submission order.
//
// # Matching
//
// Exact mode tests each aggregated query token for membership in the
// chunk's new tokens. Geotemporal mode sweeps the dictionary run and the
// aggregated query run with two monotone pointers; a pair (d, q) matches
// iff d < q+window and q < d+window.
//
// # Boundaries
//
// InProcess provides no isolation and backs tests and local runs. Attested
// runs the same engine and requires a verified TDX quote over
// SessionDigest before accepting calls. Both run in the caller's process,
// so with Attested the trust boundary is the edge of the trust domain, not
// the Boundary interface: the host code calling it is inside the attested
// VM too.
package enclave
