package chat

import (
	"sort"
	"sync"
)

// Timeline merges live and historical deliveries into one deduplicated,
// time-ordered view. Deduplication is by content id, so the same message
// arriving through both paths appears once, under whichever provenance
// delivered it first.
type Timeline struct {
	mu                sync.Mutex
	live              []AnnotatedMessage
	historical        []AnnotatedMessage
	seen              map[string]struct{}
	includeHistorical bool
}

// NewTimeline creates an empty timeline with historical messages included.
func NewTimeline() *Timeline {
	return &Timeline{
		seen:              make(map[string]struct{}),
		includeHistorical: true,
	}
}

// Add inserts a message unless its content id is already present in either
// set. Returns whether the message was inserted.
func (t *Timeline) Add(msg AnnotatedMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.seen[msg.ID]; dup {
		return false
	}
	t.seen[msg.ID] = struct{}{}

	if msg.Provenance == ProvenanceHistorical {
		t.historical = append(t.historical, msg)
	} else {
		t.live = append(t.live, msg)
	}
	return true
}

// SetIncludeHistorical toggles whether historical messages appear in the
// merged view. The historical set itself is retained either way.
func (t *Timeline) SetIncludeHistorical(include bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.includeHistorical = include
}

// IncludeHistorical reports the current view toggle.
func (t *Timeline) IncludeHistorical() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.includeHistorical
}

// Messages returns the merged view sorted ascending by display timestamp.
// The sort is a best-effort reordering of producer timestamps, not a
// delivery order.
func (t *Timeline) Messages() []AnnotatedMessage {
	t.mu.Lock()
	merged := make([]AnnotatedMessage, 0, len(t.live)+len(t.historical))
	merged = append(merged, t.live...)
	if t.includeHistorical {
		merged = append(merged, t.historical...)
	}
	t.mu.Unlock()

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].DisplayTimestamp != merged[j].DisplayTimestamp {
			return merged[i].DisplayTimestamp < merged[j].DisplayTimestamp
		}
		return merged[i].ReceivedAt < merged[j].ReceivedAt
	})
	return merged
}

// Len returns the number of messages held across both sets.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live) + len(t.historical)
}

// Clear empties both sets. Live subscriptions are unaffected; messages
// arriving after the clear are added normally.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = nil
	t.historical = nil
	t.seen = make(map[string]struct{})
}
