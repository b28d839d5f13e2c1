package encryption

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayStartsDisabled(t *testing.T) {
	o := NewOverlay()

	assert.False(t, o.Enabled())
	assert.Equal(t, StatusDisabled, o.Snapshot().Status())
}

func TestToggle(t *testing.T) {
	o := NewOverlay()

	assert.True(t, o.Toggle())
	assert.True(t, o.Enabled())
	assert.False(t, o.Toggle())
	assert.False(t, o.Enabled())
}

func TestTogglePreservesScheme(t *testing.T) {
	o := NewOverlay()
	require.NoError(t, o.SelectScheme(SchemeSymmetric))

	o.Toggle()
	o.Toggle()

	assert.Equal(t, SchemeSymmetric, o.Snapshot().Scheme)
}

func TestAsymmetricStatusProgression(t *testing.T) {
	o := NewOverlay()
	o.Toggle()

	assert.Equal(t, StatusNoKeys, o.Snapshot().Status())

	require.NoError(t, o.GenerateKeys())
	assert.Equal(t, StatusMissingPeerKey, o.Snapshot().Status())

	// Import the public key of a second party
	peer := NewOverlay()
	require.NoError(t, peer.GenerateKeys())
	peerKey, ok := peer.ExportOwnKey()
	require.True(t, ok)

	require.NoError(t, o.ImportPeerKey(peerKey))
	assert.Equal(t, StatusReady, o.Snapshot().Status())
}

func TestSymmetricStatusProgression(t *testing.T) {
	o := NewOverlay()
	o.Toggle()
	require.NoError(t, o.SelectScheme(SchemeSymmetric))

	assert.Equal(t, StatusNoKeys, o.Snapshot().Status())

	require.NoError(t, o.GenerateKeys())
	assert.Equal(t, StatusReady, o.Snapshot().Status())
}

func TestEncryptDisabledIsIdentity(t *testing.T) {
	o := NewOverlay()

	payload := []byte("plain payload")
	out, err := o.Snapshot().Encrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestEncryptNotReadyFailsLoudly(t *testing.T) {
	o := NewOverlay()
	o.Toggle()

	_, err := o.Snapshot().Encrypt([]byte("secret"))
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestAsymmetricRoundTrip(t *testing.T) {
	alice := NewOverlay()
	bob := NewOverlay()

	alice.Toggle()
	bob.Toggle()
	require.NoError(t, alice.GenerateKeys())
	require.NoError(t, bob.GenerateKeys())

	aliceKey, _ := alice.ExportOwnKey()
	bobKey, _ := bob.ExportOwnKey()
	require.NoError(t, alice.ImportPeerKey(bobKey))
	require.NoError(t, bob.ImportPeerKey(aliceKey))

	plaintext := []byte("end to end")

	ciphertext, err := alice.Snapshot().Encrypt(plaintext)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(ciphertext, plaintext))

	out, decrypted := bob.Snapshot().Decrypt(ciphertext)
	assert.True(t, decrypted)
	assert.Equal(t, plaintext, out)
}

func TestSymmetricRoundTrip(t *testing.T) {
	sender := NewOverlay()
	receiver := NewOverlay()

	for _, o := range []*Overlay{sender, receiver} {
		o.Toggle()
		require.NoError(t, o.SelectScheme(SchemeSymmetric))
	}

	require.NoError(t, sender.GenerateKeys())
	shared, ok := sender.ExportOwnKey()
	require.True(t, ok)
	require.NoError(t, receiver.ImportSharedKey(shared))

	plaintext := []byte("group secret")

	ciphertext, err := sender.Snapshot().Encrypt(plaintext)
	require.NoError(t, err)

	out, decrypted := receiver.Snapshot().Decrypt(ciphertext)
	assert.True(t, decrypted)
	assert.Equal(t, plaintext, out)
}

func TestDecryptPlaintextRecovery(t *testing.T) {
	// Receiver has encryption enabled and ready, but the peer published
	// plaintext. The raw bytes must come back unmodified so the codec can
	// still decode them.
	receiver := NewOverlay()
	receiver.Toggle()
	require.NoError(t, receiver.SelectScheme(SchemeSymmetric))
	require.NoError(t, receiver.GenerateKeys())

	plainRecord := []byte("never encrypted")

	out, decrypted := receiver.Snapshot().Decrypt(plainRecord)
	assert.False(t, decrypted)
	assert.Equal(t, plainRecord, out)
}

func TestExportOwnKeyAbsent(t *testing.T) {
	o := NewOverlay()

	key, ok := o.ExportOwnKey()
	assert.False(t, ok)
	assert.Empty(t, key)
}

func TestImportRemoteKeyRoutesByScheme(t *testing.T) {
	peer := NewOverlay()
	require.NoError(t, peer.GenerateKeys())
	peerKey, _ := peer.ExportOwnKey()

	o := NewOverlay()
	o.Toggle()
	require.NoError(t, o.GenerateKeys())
	require.NoError(t, o.ImportRemoteKey(peerKey))
	assert.Equal(t, StatusReady, o.Snapshot().Status())

	sym := NewOverlay()
	sym.Toggle()
	require.NoError(t, sym.SelectScheme(SchemeSymmetric))
	require.NoError(t, sym.ImportRemoteKey(peerKey)) // any 32-byte hex key
	assert.Equal(t, StatusReady, sym.Snapshot().Status())
}

func TestSnapshotIsolation(t *testing.T) {
	o := NewOverlay()
	o.Toggle()
	require.NoError(t, o.SelectScheme(SchemeSymmetric))
	require.NoError(t, o.GenerateKeys())

	snap := o.Snapshot()

	// Mutations after the snapshot must not affect it.
	o.Toggle()
	require.NoError(t, o.GenerateKeys())

	assert.True(t, snap.Enabled)
	assert.Equal(t, StatusReady, snap.Status())
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("asymmetric")
	require.NoError(t, err)
	assert.Equal(t, SchemeAsymmetric, s)

	s, err = ParseScheme("symmetric")
	require.NoError(t, err)
	assert.Equal(t, SchemeSymmetric, s)

	_, err = ParseScheme("rot13")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}
