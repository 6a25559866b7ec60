// Package crypto provides the response protection used between the
// matching boundary and the host.
//
// Each client's one-byte risk level is encrypted with AES in counter mode
// under a key derived from the client's query id:
//
//   - DeriveResponseKey builds the 16-byte key (id in the first 8 bytes)
//   - XORKeyStreamCTR is the single counter-mode primitive; it takes
//     fixed-size arrays and returns an owned buffer
//   - SealRisk and OpenRisk wrap it for one byte
//
// # Security
//
// The scheme is kept for protocol compatibility only. The key is derivable
// by anyone who knows the query id, the host included, and the counter
// block is a session-wide constant. It obscures the risk byte in transit
// and nothing more.
package crypto
