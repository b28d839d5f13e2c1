package transport

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"sync"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// HistoryProvider serves historical queries. The local archive implements
// it; a node without one reports the retrieval protocol as unavailable.
type HistoryProvider interface {
	Replay(ctx context.Context, topic string, onRecord func(payload []byte)) error
}

// Config holds node configuration.
type Config struct {
	Port           int
	BootstrapPeers []string
	PrivateKey     crypto.PrivKey // Optional: provide your own identity key
}

// DefaultConfig returns default node configuration.
func DefaultConfig() *Config {
	return &Config{Port: 9000}
}

// PubSubNode is the gossipsub-backed Node implementation. Each topic is
// joined at most once; publishes and subscriptions share the joined topic.
type PubSubNode struct {
	host    host.Host
	dht     *dht.IpfsDHT
	ps      *pubsub.PubSub
	history HistoryProvider

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	topics  map[string]*pubsub.Topic
	started bool
}

// NewPubSubNode creates and starts a gossipsub node.
func NewPubSubNode(ctx context.Context, config *Config) (*PubSubNode, error) {
	if config == nil {
		config = DefaultConfig()
	}

	priv := config.PrivateKey
	if priv == nil {
		var err error
		priv, _, err = crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate key pair: %w", err)
		}
	}

	listenAddr := fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", config.Port)

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.DefaultTransports,
		libp2p.DefaultMuxers,
		libp2p.DefaultSecurity,
		libp2p.NATPortMap(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	dhtInst, err := dht.New(nodeCtx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		cancel()
		h.Close()
		return nil, fmt.Errorf("failed to create DHT: %w", err)
	}

	ps, err := pubsub.NewGossipSub(nodeCtx, h)
	if err != nil {
		cancel()
		dhtInst.Close()
		h.Close()
		return nil, fmt.Errorf("failed to create gossipsub: %w", err)
	}

	node := &PubSubNode{
		host:    h,
		dht:     dhtInst,
		ps:      ps,
		ctx:     nodeCtx,
		cancel:  cancel,
		topics:  make(map[string]*pubsub.Topic),
		started: true,
	}

	if len(config.BootstrapPeers) > 0 {
		if err := node.Bootstrap(config.BootstrapPeers); err != nil {
			log.Printf("⚠️  Bootstrap incomplete: %v", err)
		}
	}

	log.Printf("✅ Node started: %s (port %d)", h.ID(), config.Port)
	return node, nil
}

// AttachHistory attaches the archive that serves historical queries.
func (n *PubSubNode) AttachHistory(h HistoryProvider) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = h
}

// Bootstrap connects to the given peers and seeds the DHT routing table.
func (n *PubSubNode) Bootstrap(peers []string) error {
	var connected int
	for _, peerStr := range peers {
		maddr, err := multiaddr.NewMultiaddr(peerStr)
		if err != nil {
			log.Printf("Invalid bootstrap peer address %s: %v", peerStr, err)
			continue
		}

		peerInfo, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			log.Printf("Failed to parse peer info from %s: %v", peerStr, err)
			continue
		}

		if err := n.host.Connect(n.ctx, *peerInfo); err != nil {
			log.Printf("Failed to connect to bootstrap peer %s: %v", peerInfo.ID, err)
			continue
		}

		log.Printf("Connected to bootstrap peer: %s", peerInfo.ID)
		connected++
	}

	if connected == 0 {
		return fmt.Errorf("failed to connect to any bootstrap peers")
	}

	if err := n.dht.Bootstrap(n.ctx); err != nil {
		return fmt.Errorf("failed to bootstrap DHT: %w", err)
	}

	return nil
}

// joinTopic joins a topic once and caches the handle.
func (n *PubSubNode) joinTopic(topic string) (*pubsub.Topic, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if t, ok := n.topics[topic]; ok {
		return t, nil
	}

	t, err := n.ps.Join(topic)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic %s: %w", topic, err)
	}

	n.topics[topic] = t
	return t, nil
}

// IsAvailable reports whether the node is running.
func (n *PubSubNode) IsAvailable() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started
}

// IsConnected reports whether any peer connection exists.
func (n *PubSubNode) IsConnected() bool {
	return len(n.host.Network().Peers()) > 0
}

// PeerCount returns the number of connected peers.
func (n *PubSubNode) PeerCount() int {
	return len(n.host.Network().Peers())
}

// PushPublish publishes one wire record to the topic.
func (n *PubSubNode) PushPublish(ctx context.Context, topic string, payload []byte) error {
	t, err := n.joinTopic(topic)
	if err != nil {
		return err
	}

	if err := t.Publish(ctx, payload); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// liveSubscription wraps a gossipsub subscription and its reader goroutine.
type liveSubscription struct {
	sub    *pubsub.Subscription
	cancel context.CancelFunc
}

func (s *liveSubscription) Close() error {
	s.cancel()
	s.sub.Cancel()
	return nil
}

// OpenLiveSubscription subscribes to the topic and pumps inbound records
// into onMessage. Locally published records are delivered too, so a node
// sees its own sends the way every other subscriber does.
func (n *PubSubNode) OpenLiveSubscription(ctx context.Context, topic string, onMessage func(payload []byte)) (SubscriptionHandle, error) {
	t, err := n.joinTopic(topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolUnavailable, err)
	}

	sub, err := t.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolUnavailable, err)
	}

	subCtx, cancel := context.WithCancel(n.ctx)

	go func() {
		for {
			msg, err := sub.Next(subCtx)
			if err != nil {
				// Subscription cancelled or node shutting down
				return
			}
			onMessage(msg.Data)
		}
	}()

	return &liveSubscription{sub: sub, cancel: cancel}, nil
}

// OpenHistoricalQuery replays archived records through the attached
// history provider.
func (n *PubSubNode) OpenHistoricalQuery(ctx context.Context, topic string, onRecord func(payload []byte)) error {
	n.mu.Lock()
	history := n.history
	n.mu.Unlock()

	if history == nil {
		return fmt.Errorf("%w: no history provider attached", ErrProtocolUnavailable)
	}

	return history.Replay(ctx, topic, onRecord)
}

// ID returns the node's peer ID.
func (n *PubSubNode) ID() peer.ID {
	return n.host.ID()
}

// Addresses returns the node's listen addresses.
func (n *PubSubNode) Addresses() []multiaddr.Multiaddr {
	return n.host.Addrs()
}

// Close shuts the node down.
func (n *PubSubNode) Close() error {
	n.mu.Lock()
	n.started = false
	n.mu.Unlock()

	n.cancel()
	if err := n.dht.Close(); err != nil {
		log.Printf("⚠️  DHT close: %v", err)
	}
	return n.host.Close()
}
