// Package chat implements the messaging core for one logical topic: the
// send/subscribe/query dispatcher, the subscription registry, and the
// timeline that merges live and historical deliveries into one view.
package chat

import (
	"encoding/binary"

	"github.com/ZentaChain/zentalk-channel/pkg/codec"
	"github.com/ZentaChain/zentalk-channel/pkg/crypto"
	"github.com/ZentaChain/zentalk-channel/pkg/encryption"
)

// Provenance records which delivery path produced a message.
type Provenance string

const (
	ProvenanceLive       Provenance = "live"
	ProvenanceHistorical Provenance = "historical"
)

// AnnotatedMessage is the unit exposed to callers: a decoded ChatMessage
// plus everything the UI and the reconciler need to place it.
type AnnotatedMessage struct {
	Message codec.ChatMessage `json:"message"`

	// ID is derived from (sender, timestamp, body), so the same message
	// arriving once live and once historically carries the same id and
	// dedupes naturally.
	ID string `json:"id"`

	// DisplayTimestamp is the producer's timestamp, or local receipt time
	// when the producer did not set one.
	DisplayTimestamp uint64 `json:"display_timestamp"`

	// ReceivedAt is the local wall-clock time of processing (Unix ms).
	ReceivedAt int64 `json:"received_at"`

	Provenance Provenance `json:"provenance"`

	// Encrypted reports whether the wire record actually decrypted under
	// the active scheme (false for plaintext-recovered records).
	Encrypted bool              `json:"encrypted"`
	Scheme    encryption.Scheme `json:"scheme,omitempty"`
}

// ContentID computes the content-derived message id.
func ContentID(m *codec.ChatMessage) string {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], m.Timestamp)
	return crypto.HashFields([]byte(m.Sender), ts[:], []byte(m.Body)).String()
}
