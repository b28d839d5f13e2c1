// Package crypto provides the primitives behind the channel encryption
// overlay: curve25519 box key pairs for the asymmetric scheme, AES-256-GCM
// for the symmetric scheme, and BLAKE2b content hashing.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

var (
	ErrInvalidKey       = errors.New("invalid key")
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// KeySize is the byte length of curve25519 keys and symmetric keys alike.
const KeySize = 32

// BoxNonceSize is the NaCl box nonce length.
const BoxNonceSize = 24

// BoxKeyPair holds one side's curve25519 key material.
type BoxKeyPair struct {
	PublicKey  [KeySize]byte
	PrivateKey [KeySize]byte
}

// GenerateBoxKeyPair generates a fresh curve25519 key pair.
func GenerateBoxKeyPair() (*BoxKeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &BoxKeyPair{PublicKey: *pub, PrivateKey: *priv}, nil
}

// BoxEncrypt encrypts and authenticates plaintext from our private key to
// the peer's public key. Output layout: [24-byte nonce] + [sealed box].
func BoxEncrypt(plaintext []byte, peerPublic, ownPrivate *[KeySize]byte) ([]byte, error) {
	var nonce [BoxNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	out := make([]byte, BoxNonceSize, BoxNonceSize+len(plaintext)+box.Overhead)
	copy(out, nonce[:])
	return box.Seal(out, plaintext, &nonce, peerPublic, ownPrivate), nil
}

// BoxDecrypt opens a nonce-prefixed box sealed by the peer for us.
func BoxDecrypt(ciphertext []byte, peerPublic, ownPrivate *[KeySize]byte) ([]byte, error) {
	if len(ciphertext) < BoxNonceSize+box.Overhead {
		return nil, ErrDecryptionFailed
	}

	var nonce [BoxNonceSize]byte
	copy(nonce[:], ciphertext[:BoxNonceSize])

	plaintext, ok := box.Open(nil, ciphertext[BoxNonceSize:], &nonce, peerPublic, ownPrivate)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// ExportKeyHex renders raw key bytes as a hex string.
func ExportKeyHex(key []byte) string {
	return hex.EncodeToString(key)
}

// ImportKeyHex parses a hex string into a fixed-size key.
func ImportKeyHex(s string) (*[KeySize]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if len(raw) != KeySize {
		return nil, ErrInvalidKey
	}

	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}
