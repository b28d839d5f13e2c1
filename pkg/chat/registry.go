package chat

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ZentaChain/zentalk-channel/pkg/transport"
)

// ErrSubscriptionNotFound is returned when tearing down an id the registry
// does not track (including an id already unregistered).
var ErrSubscriptionNotFound = errors.New("chat: subscription not found")

// SubscriptionID identifies one registered live subscription.
type SubscriptionID uint64

// Registry is the single source of truth for live subscriptions. It is the
// only component allowed to invoke a handle's teardown, and it does so
// exactly once per registration.
type Registry struct {
	mu     sync.Mutex
	nextID SubscriptionID
	subs   map[SubscriptionID]transport.SubscriptionHandle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		subs:   make(map[SubscriptionID]transport.SubscriptionHandle),
	}
}

// Register stores a handle under a fresh id. Called exactly once per
// successful subscribe.
func (r *Registry) Register(handle transport.SubscriptionHandle) SubscriptionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.subs[id] = handle
	return id
}

// Unregister tears down and removes the subscription. A second call with
// the same id reports ErrSubscriptionNotFound without re-invoking teardown.
func (r *Registry) Unregister(id SubscriptionID) error {
	r.mu.Lock()
	handle, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrSubscriptionNotFound
	}

	if err := handle.Close(); err != nil {
		return fmt.Errorf("subscription %d teardown: %w", id, err)
	}
	return nil
}

// UnregisterAll tears down every tracked subscription. A failing entry does
// not stop the rest; failures are aggregated into the returned error.
func (r *Registry) UnregisterAll() error {
	r.mu.Lock()
	handles := make(map[SubscriptionID]transport.SubscriptionHandle, len(r.subs))
	for id, h := range r.subs {
		handles[id] = h
	}
	r.subs = make(map[SubscriptionID]transport.SubscriptionHandle)
	r.mu.Unlock()

	var errs []error
	for id, h := range handles {
		if err := h.Close(); err != nil {
			log.Printf("⚠️  Subscription %d teardown failed: %v", id, err)
			errs = append(errs, fmt.Errorf("subscription %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of tracked subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
