// Package transport defines the capability boundary between the messaging
// core and the underlying peer-to-peer node, plus the gossipsub-backed
// implementation of it. The core only ever sees the Node interface; tests
// substitute fakes.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means no usable network channel exists at all.
	ErrUnavailable = errors.New("transport: node unavailable")

	// ErrProtocolUnavailable means the specific sub-protocol (live delivery
	// or historical retrieval) could not be established, as opposed to a
	// later per-record failure.
	ErrProtocolUnavailable = errors.New("transport: protocol unavailable")

	// ErrNoPeers means a publish had nobody to deliver to.
	ErrNoPeers = errors.New("transport: no peers for topic")
)

// SubscriptionHandle tears down one live delivery channel. Implementations
// must tolerate a single Close; callers must not Close twice (the
// subscription registry enforces that).
type SubscriptionHandle interface {
	Close() error
}

// Node is the set of capabilities the messaging core consumes from the
// peer-to-peer layer.
type Node interface {
	// IsAvailable reports whether the node is running at all.
	IsAvailable() bool

	// IsConnected reports whether at least one peer connection exists.
	IsConnected() bool

	// PeerCount returns the number of connected peers.
	PeerCount() int

	// PushPublish publishes one wire record to the topic. Fire-and-
	// acknowledge: no retry, the error is reported back verbatim.
	PushPublish(ctx context.Context, topic string, payload []byte) error

	// OpenLiveSubscription opens an open-ended delivery channel. onMessage
	// is invoked once per inbound record on the transport's own goroutine.
	OpenLiveSubscription(ctx context.Context, topic string, onMessage func(payload []byte)) (SubscriptionHandle, error)

	// OpenHistoricalQuery replays stored records for the topic in the
	// store's own retrieval order, invoking onRecord for each, and returns
	// once the replay completes or the channel could not be opened.
	OpenHistoricalQuery(ctx context.Context, topic string, onRecord func(payload []byte)) error
}
