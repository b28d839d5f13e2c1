package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ZentaChain/zentalk-channel/pkg/codec"
	"github.com/ZentaChain/zentalk-channel/pkg/encryption"
	"github.com/ZentaChain/zentalk-channel/pkg/store"
	"github.com/ZentaChain/zentalk-channel/pkg/transport"
)

// ErrUndecodable marks a wire record that neither decrypted nor decoded
// under any interpretation. Per-record, never fatal: the subscription or
// query that hit it keeps going.
var ErrUndecodable = errors.New("chat: undecodable message")

// UndecodableHandler is the side channel for records that could not be
// decoded. The default handler logs and drops.
type UndecodableHandler func(provenance Provenance, payload []byte)

// Client coordinates the three channel operations (send, live subscribe,
// historical query) for one logical topic, applying the encryption overlay
// on both directions and feeding every decoded message into the timeline.
type Client struct {
	topic    string
	node     transport.Node
	overlay  *encryption.Overlay
	registry *Registry
	timeline *Timeline

	mu        sync.Mutex
	archive   *store.Archive
	activeSub SubscriptionID

	onUndecodable UndecodableHandler
}

// NewClient creates a client for one topic.
func NewClient(topic string, node transport.Node, overlay *encryption.Overlay) *Client {
	return &Client{
		topic:    topic,
		node:     node,
		overlay:  overlay,
		registry: NewRegistry(),
		timeline: NewTimeline(),
	}
}

// AttachArchive attaches a local archive; every live-delivered wire record
// is appended to it, raw, so a later historical query re-runs decryption
// under whatever settings are active at query time.
func (c *Client) AttachArchive(a *store.Archive) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.archive = a
}

// SetUndecodableHandler installs the side channel for undecodable records.
func (c *Client) SetUndecodableHandler(h UndecodableHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUndecodable = h
}

// Topic returns the client's topic.
func (c *Client) Topic() string { return c.topic }

// Overlay returns the encryption overlay for configuration.
func (c *Client) Overlay() *encryption.Overlay { return c.overlay }

// Timeline returns the merged message view.
func (c *Client) Timeline() *Timeline { return c.timeline }

// CreateMessage builds a ChatMessage stamped with the current time.
func (c *Client) CreateMessage(sender, body string) (*codec.ChatMessage, error) {
	return codec.NewChatMessage(uint64(time.Now().UnixMilli()), sender, body)
}

// Send encodes, encrypts, and publishes one message. Fire-and-acknowledge:
// no retry, a push failure comes back verbatim for the caller to decide.
func (c *Client) Send(ctx context.Context, msg *codec.ChatMessage) error {
	if !c.node.IsAvailable() {
		return transport.ErrUnavailable
	}

	wire, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	payload, err := c.overlay.Snapshot().Encrypt(wire)
	if err != nil {
		return err
	}

	if err := c.node.PushPublish(ctx, c.topic, payload); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// Subscribe opens the live delivery channel for the topic. Only one
// subscription per topic may exist: a second call while one is active
// returns the existing id rather than opening a duplicate delivery path.
// onMessage fires once per newly decoded message on the transport's
// delivery goroutine.
func (c *Client) Subscribe(ctx context.Context, onMessage func(AnnotatedMessage)) (SubscriptionID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeSub != 0 {
		return c.activeSub, nil
	}

	handle, err := c.node.OpenLiveSubscription(ctx, c.topic, func(payload []byte) {
		c.handleLive(payload, onMessage)
	})
	if err != nil {
		return 0, err
	}

	id := c.registry.Register(handle)
	c.activeSub = id
	log.Printf("📡 Subscribed to %s (id %d)", c.topic, id)
	return id, nil
}

// handleLive processes one live delivery. A per-record failure is reported
// through the side channel and never tears down the subscription.
func (c *Client) handleLive(payload []byte, onMessage func(AnnotatedMessage)) {
	c.mu.Lock()
	archive := c.archive
	c.mu.Unlock()

	if archive != nil {
		if err := archive.Append(c.topic, payload, time.Now().UnixMilli()); err != nil {
			log.Printf("⚠️  Failed to archive record: %v", err)
		}
	}

	msg, err := c.annotate(payload, ProvenanceLive)
	if err != nil {
		c.reportUndecodable(ProvenanceLive, payload, err)
		return
	}

	if c.timeline.Add(*msg) && onMessage != nil {
		onMessage(*msg)
	}
}

// Unsubscribe tears down one live subscription. Idempotent: a second call
// reports ErrSubscriptionNotFound without re-invoking teardown.
func (c *Client) Unsubscribe(id SubscriptionID) error {
	c.mu.Lock()
	if c.activeSub == id {
		c.activeSub = 0
	}
	c.mu.Unlock()

	return c.registry.Unregister(id)
}

// UnsubscribeAll tears down every live subscription.
func (c *Client) UnsubscribeAll() error {
	c.mu.Lock()
	c.activeSub = 0
	c.mu.Unlock()

	return c.registry.UnregisterAll()
}

// QueryHistory performs one bounded historical retrieval pass. Corrupt
// records are skipped, not fatal; the whole call fails only when the
// retrieval channel itself cannot be opened. The returned batch is in the
// store's arrival order; the timeline re-sorts the merged view.
func (c *Client) QueryHistory(ctx context.Context) ([]AnnotatedMessage, error) {
	if !c.node.IsAvailable() {
		return nil, transport.ErrUnavailable
	}

	var batch []AnnotatedMessage
	skipped := 0

	err := c.node.OpenHistoricalQuery(ctx, c.topic, func(payload []byte) {
		msg, err := c.annotate(payload, ProvenanceHistorical)
		if err != nil {
			skipped++
			c.reportUndecodable(ProvenanceHistorical, payload, err)
			return
		}
		batch = append(batch, *msg)
		c.timeline.Add(*msg)
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		log.Printf("⚠️  Historical query on %s skipped %d undecodable records", c.topic, skipped)
	}
	return batch, nil
}

// annotate runs the receive pipeline for one wire record: decrypt under a
// configuration snapshot (with plaintext recovery), decode, and tag.
func (c *Client) annotate(payload []byte, prov Provenance) (*AnnotatedMessage, error) {
	snap := c.overlay.Snapshot()
	plain, decrypted := snap.Decrypt(payload)

	msg, err := codec.Decode(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if msg.Sender == "" || msg.Body == "" {
		// Ciphertext that happened to parse, or a malformed sender record
		return nil, fmt.Errorf("%w: missing required fields", ErrUndecodable)
	}

	now := time.Now().UnixMilli()
	display := msg.Timestamp
	if display == 0 {
		display = uint64(now)
	}

	annotated := &AnnotatedMessage{
		Message:          *msg,
		ID:               ContentID(msg),
		DisplayTimestamp: display,
		ReceivedAt:       now,
		Provenance:       prov,
		Encrypted:        decrypted,
	}
	if decrypted {
		annotated.Scheme = snap.Scheme
	}
	return annotated, nil
}

func (c *Client) reportUndecodable(prov Provenance, payload []byte, err error) {
	c.mu.Lock()
	handler := c.onUndecodable
	c.mu.Unlock()

	if handler != nil {
		handler(prov, payload)
		return
	}
	log.Printf("⚠️  Undecodable %s record on %s (%d bytes): %v", prov, c.topic, len(payload), err)
}

// Status is a point-in-time view of the client and its collaborators.
type Status struct {
	Topic              string            `json:"topic"`
	Available          bool              `json:"available"`
	Connected          bool              `json:"connected"`
	PeerCount          int               `json:"peer_count"`
	SubscriptionActive bool              `json:"subscription_active"`
	Encryption         encryption.Status `json:"encryption"`
	Scheme             string            `json:"scheme"`
	TimelineSize       int               `json:"timeline_size"`
}

// Status reports current connectivity, subscription, and encryption state.
func (c *Client) Status() Status {
	c.mu.Lock()
	active := c.activeSub != 0
	c.mu.Unlock()

	snap := c.overlay.Snapshot()
	return Status{
		Topic:              c.topic,
		Available:          c.node.IsAvailable(),
		Connected:          c.node.IsConnected(),
		PeerCount:          c.node.PeerCount(),
		SubscriptionActive: active,
		Encryption:         snap.Status(),
		Scheme:             snap.Scheme.String(),
		TimelineSize:       c.timeline.Len(),
	}
}
