package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest is a BLAKE2b-256 hash.
type Digest [32]byte

// Hash computes the BLAKE2b-256 digest of data.
func Hash(data []byte) Digest {
	return blake2b.Sum256(data)
}

// HashFields computes one digest over several byte fields, each prefixed
// with its length so field boundaries cannot be shifted.
func HashFields(fields ...[]byte) Digest {
	h, _ := blake2b.New256(nil)
	var lenBuf [8]byte
	for _, f := range fields {
		n := uint64(len(f))
		for i := 0; i < 8; i++ {
			lenBuf[i] = byte(n >> (8 * (7 - i)))
		}
		h.Write(lenBuf[:])
		h.Write(f)
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// String renders the digest as hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
