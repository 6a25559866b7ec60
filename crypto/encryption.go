package crypto

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// ResponseKey is the 16-byte AES key protecting one client's risk byte.
type ResponseKey [16]byte

// DeriveResponseKey places the query id in the first 8 bytes of the key
// and zero-fills the rest.
//
// Known weakness: the key is a function of the query id alone, and the
// host assigns query ids, so the host can always decrypt the response.
// Together with a counter block that is constant across clients this
// gives no confidentiality against the host. See DESIGN.md before relying
// on it.
func DeriveResponseKey(queryID uint64) ResponseKey {
	var key ResponseKey
	binary.BigEndian.PutUint64(key[:8], queryID)
	return key
}

// XORKeyStreamCTR encrypts or decrypts src with AES in counter mode.
// Only the low incBits bits of the counter block are incremented between
// blocks, wrapping within that width; the remaining high bits stay fixed.
// incBits must be in [1, 128].
func XORKeyStreamCTR(key ResponseKey, counter [16]byte, incBits uint, src []byte) ([]byte, error) {
	if incBits == 0 || incBits > 128 {
		return nil, errors.Newf("counter increment width must be in [1, 128], got %d", incBits)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}

	out := make([]byte, len(src))
	var stream [aes.BlockSize]byte
	for off := 0; off < len(src); off += aes.BlockSize {
		block.Encrypt(stream[:], counter[:])
		end := min(off+aes.BlockSize, len(src))
		for i := off; i < end; i++ {
			out[i] = src[i] ^ stream[i-off]
		}
		incrementCounter(&counter, incBits)
	}
	return out, nil
}

// incrementCounter adds one to the low bits of a big-endian counter block.
func incrementCounter(counter *[16]byte, bits uint) {
	for i := len(counter) - 1; i >= 0 && bits > 0; i-- {
		if bits < 8 {
			mask := byte(1<<bits) - 1
			counter[i] = counter[i]&^mask | (counter[i]+1)&mask
			return
		}
		counter[i]++
		if counter[i] != 0 {
			return
		}
		bits -= 8
	}
}

// SealRisk encrypts a single risk byte for the given query.
func SealRisk(queryID uint64, counter [16]byte, incBits uint, risk byte) (byte, error) {
	out, err := XORKeyStreamCTR(DeriveResponseKey(queryID), counter, incBits, []byte{risk})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// OpenRisk decrypts a single risk byte for the given query.
func OpenRisk(queryID uint64, counter [16]byte, incBits uint, sealed byte) (byte, error) {
	return SealRisk(queryID, counter, incBits, sealed)
}
