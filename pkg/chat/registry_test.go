package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAssignsFreshIDs(t *testing.T) {
	r := NewRegistry()

	id1 := r.Register(&fakeHandle{})
	id2 := r.Register(&fakeHandle{})

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryUnregisterUnknownID(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Unregister(42), ErrSubscriptionNotFound)
}

func TestRegistryUnregisterExactlyOnce(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}
	id := r.Register(h)

	require.NoError(t, r.Unregister(id))
	assert.Equal(t, 1, h.closes())

	assert.ErrorIs(t, r.Unregister(id), ErrSubscriptionNotFound)
	assert.Equal(t, 1, h.closes())
}

func TestRegistryUnregisterAllEmpty(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.UnregisterAll())
}
