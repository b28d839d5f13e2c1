// Package encryption implements the optional end-to-end encryption overlay
// for channel payloads. Two schemes are supported: asymmetric (curve25519
// box against a peer's public key) and symmetric (AES-256-GCM with a shared
// key). The overlay starts disabled and only transforms payloads once its
// active scheme has all required key material.
package encryption

import (
	"errors"
	"sync"

	"github.com/ZentaChain/zentalk-channel/pkg/crypto"
)

var (
	// ErrNotReady is returned when encrypting while the overlay is enabled
	// but the active scheme is missing key material. Sending falls back to
	// plaintext only when the overlay is explicitly disabled, never
	// silently.
	ErrNotReady = errors.New("encryption: scheme not ready")

	ErrUnknownScheme = errors.New("encryption: unknown scheme")
)

// Scheme selects the confidentiality transform.
type Scheme uint8

const (
	SchemeAsymmetric Scheme = iota
	SchemeSymmetric
)

func (s Scheme) String() string {
	switch s {
	case SchemeAsymmetric:
		return "asymmetric"
	case SchemeSymmetric:
		return "symmetric"
	default:
		return "unknown"
	}
}

// ParseScheme parses a scheme name.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "asymmetric":
		return SchemeAsymmetric, nil
	case "symmetric":
		return SchemeSymmetric, nil
	default:
		return 0, ErrUnknownScheme
	}
}

// Status describes the overlay's readiness for its active scheme.
type Status string

const (
	StatusDisabled       Status = "disabled"
	StatusNoKeys         Status = "no_keys"
	StatusMissingPeerKey Status = "missing_peer_key"
	StatusReady          Status = "ready"
)

// Overlay holds the mutable encryption configuration. All reads taken by
// encrypt/decrypt paths go through an immutable Snapshot so a concurrent
// toggle can never tear a single operation.
type Overlay struct {
	mu           sync.RWMutex
	enabled      bool
	scheme       Scheme
	ownPair      *crypto.BoxKeyPair
	peerPublic   *[crypto.KeySize]byte
	symmetricKey []byte
}

// NewOverlay creates a disabled overlay with the asymmetric scheme selected.
func NewOverlay() *Overlay {
	return &Overlay{scheme: SchemeAsymmetric}
}

// Toggle flips enabled/disabled, preserving scheme selection and keys.
// Returns the new enabled state.
func (o *Overlay) Toggle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabled = !o.enabled
	return o.enabled
}

// Enabled reports whether the overlay is currently enabled.
func (o *Overlay) Enabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.enabled
}

// SelectScheme changes the active scheme without touching enabled state or
// key material for either scheme.
func (o *Overlay) SelectScheme(s Scheme) error {
	if s != SchemeAsymmetric && s != SchemeSymmetric {
		return ErrUnknownScheme
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scheme = s
	return nil
}

// GenerateKeys creates this side's key material for the active scheme:
// a curve25519 pair for asymmetric, a random shared key for symmetric.
func (o *Overlay) GenerateKeys() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.scheme {
	case SchemeAsymmetric:
		pair, err := crypto.GenerateBoxKeyPair()
		if err != nil {
			return err
		}
		o.ownPair = pair
	case SchemeSymmetric:
		key, err := crypto.GenerateSymmetricKey()
		if err != nil {
			return err
		}
		o.symmetricKey = key
	default:
		return ErrUnknownScheme
	}
	return nil
}

// ImportPeerKey supplies the remote side's public key (asymmetric scheme).
func (o *Overlay) ImportPeerKey(hexKey string) error {
	key, err := crypto.ImportKeyHex(hexKey)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.peerPublic = key
	return nil
}

// ImportSharedKey supplies the shared key (symmetric scheme).
func (o *Overlay) ImportSharedKey(hexKey string) error {
	key, err := crypto.ImportKeyHex(hexKey)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.symmetricKey = key[:]
	return nil
}

// ImportRemoteKey routes an imported key by the active scheme: peer public
// key when asymmetric, shared key when symmetric.
func (o *Overlay) ImportRemoteKey(hexKey string) error {
	o.mu.RLock()
	scheme := o.scheme
	o.mu.RUnlock()

	if scheme == SchemeSymmetric {
		return o.ImportSharedKey(hexKey)
	}
	return o.ImportPeerKey(hexKey)
}

// ExportOwnKey returns the shareable key for the active scheme as hex: our
// public key when asymmetric, the shared key when symmetric. ok is false
// when no key exists yet.
func (o *Overlay) ExportOwnKey() (hexKey string, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	switch o.scheme {
	case SchemeAsymmetric:
		if o.ownPair == nil {
			return "", false
		}
		return crypto.ExportKeyHex(o.ownPair.PublicKey[:]), true
	case SchemeSymmetric:
		if o.symmetricKey == nil {
			return "", false
		}
		return crypto.ExportKeyHex(o.symmetricKey), true
	}
	return "", false
}

// Snapshot captures the overlay configuration at one instant. Encrypt and
// decrypt operate on snapshots, so settings changed mid-flight apply to
// subsequent operations only.
type Snapshot struct {
	Enabled      bool
	Scheme       Scheme
	ownPair      *crypto.BoxKeyPair
	peerPublic   *[crypto.KeySize]byte
	symmetricKey []byte
}

// Snapshot returns an immutable copy of the current configuration.
func (o *Overlay) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := Snapshot{
		Enabled: o.enabled,
		Scheme:  o.scheme,
	}
	if o.ownPair != nil {
		pair := *o.ownPair
		snap.ownPair = &pair
	}
	if o.peerPublic != nil {
		pub := *o.peerPublic
		snap.peerPublic = &pub
	}
	if o.symmetricKey != nil {
		snap.symmetricKey = append([]byte(nil), o.symmetricKey...)
	}
	return snap
}

// Ready reports whether the snapshot's scheme has all required keys.
func (s Snapshot) Ready() bool {
	switch s.Scheme {
	case SchemeAsymmetric:
		return s.ownPair != nil && s.peerPublic != nil
	case SchemeSymmetric:
		return s.symmetricKey != nil
	}
	return false
}

// Status returns the readiness state for the snapshot.
func (s Snapshot) Status() Status {
	if !s.Enabled {
		return StatusDisabled
	}
	switch s.Scheme {
	case SchemeAsymmetric:
		if s.ownPair == nil {
			return StatusNoKeys
		}
		if s.peerPublic == nil {
			return StatusMissingPeerKey
		}
	case SchemeSymmetric:
		if s.symmetricKey == nil {
			return StatusNoKeys
		}
	}
	return StatusReady
}

// Encrypt transforms codec output into wire payload. Disabled overlays pass
// plaintext through unchanged. Enabled-but-not-ready fails with ErrNotReady
// rather than leaking plaintext the caller believes is protected.
func (s Snapshot) Encrypt(plaintext []byte) ([]byte, error) {
	if !s.Enabled {
		return plaintext, nil
	}
	if !s.Ready() {
		return nil, ErrNotReady
	}

	switch s.Scheme {
	case SchemeAsymmetric:
		return crypto.BoxEncrypt(plaintext, s.peerPublic, &s.ownPair.PrivateKey)
	case SchemeSymmetric:
		return crypto.SymmetricEncrypt(plaintext, s.symmetricKey)
	}
	return nil, ErrUnknownScheme
}

// Decrypt recovers codec-decodable bytes from a wire payload. With the
// overlay disabled the input is treated as plaintext. With it enabled the
// active scheme is attempted first; on failure the raw bytes are handed
// back as a plaintext candidate, because peers with encryption disabled
// publish plaintext to the same topic and must not be dropped. decrypted
// reports whether the scheme actually applied.
func (s Snapshot) Decrypt(payload []byte) (plain []byte, decrypted bool) {
	if !s.Enabled || !s.Ready() {
		return payload, false
	}

	switch s.Scheme {
	case SchemeAsymmetric:
		if out, err := crypto.BoxDecrypt(payload, s.peerPublic, &s.ownPair.PrivateKey); err == nil {
			return out, true
		}
	case SchemeSymmetric:
		if out, err := crypto.SymmetricDecrypt(payload, s.symmetricKey); err == nil {
			return out, true
		}
	}

	// Plaintext recovery: let the codec try the raw bytes.
	return payload, false
}
