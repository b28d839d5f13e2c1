package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/zentalk-channel/pkg/chat"
	"github.com/ZentaChain/zentalk-channel/pkg/codec"
	"github.com/ZentaChain/zentalk-channel/pkg/encryption"
	"github.com/ZentaChain/zentalk-channel/pkg/store"
	"github.com/ZentaChain/zentalk-channel/pkg/transport"
)

type stubHandle struct{}

func (stubHandle) Close() error { return nil }

// stubNode is a minimal in-process transport for handler tests.
type stubNode struct {
	available bool
	records   [][]byte
	published [][]byte
	onLive    func([]byte)
}

func (n *stubNode) IsAvailable() bool { return n.available }
func (n *stubNode) IsConnected() bool { return n.available }
func (n *stubNode) PeerCount() int    { return 2 }

func (n *stubNode) PushPublish(_ context.Context, _ string, payload []byte) error {
	n.published = append(n.published, payload)
	return nil
}

func (n *stubNode) OpenLiveSubscription(_ context.Context, _ string, onMessage func([]byte)) (transport.SubscriptionHandle, error) {
	n.onLive = onMessage
	return stubHandle{}, nil
}

func (n *stubNode) OpenHistoricalQuery(_ context.Context, _ string, onRecord func([]byte)) error {
	for _, r := range n.records {
		onRecord(r)
	}
	return nil
}

func newTestServer(node *stubNode) *Server {
	client := chat.NewClient("chat/general", node, encryption.NewOverlay())
	return NewServer(client, nil, &Config{Port: 8080, RateLimit: 0})
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubNode{available: true})

	w := doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(&stubNode{available: true})

	w := doRequest(t, s, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "chat/general", body["topic"])
	assert.Equal(t, true, body["available"])
	assert.Equal(t, float64(2), body["peer_count"])
}

func TestSendEndpoint(t *testing.T) {
	node := &stubNode{available: true}
	s := newTestServer(node)

	w := doRequest(t, s, http.MethodPost, "/api/v1/messages",
		map[string]string{"sender": "alice", "body": "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, node.published, 1)
	decoded, err := codec.Decode(node.published[0])
	require.NoError(t, err)
	assert.Equal(t, "alice", decoded.Sender)
	assert.Equal(t, "hi", decoded.Body)
}

func TestSendEndpointMissingFields(t *testing.T) {
	s := newTestServer(&stubNode{available: true})

	w := doRequest(t, s, http.MethodPost, "/api/v1/messages",
		map[string]string{"sender": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendEndpointTransportUnavailable(t *testing.T) {
	s := newTestServer(&stubNode{available: false})

	w := doRequest(t, s, http.MethodPost, "/api/v1/messages",
		map[string]string{"sender": "alice", "body": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSendEndpointEncryptionNotReady(t *testing.T) {
	node := &stubNode{available: true}
	s := newTestServer(node)

	w := doRequest(t, s, http.MethodPost, "/api/v1/encryption/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/v1/messages",
		map[string]string{"sender": "alice", "body": "hi"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, node.published)
}

func TestHistoryEndpoint(t *testing.T) {
	msg, _ := codec.NewChatMessage(100, "bob", "stored")
	wire, _ := msg.Encode()

	node := &stubNode{available: true, records: [][]byte{wire}}
	s := newTestServer(node)

	w := doRequest(t, s, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["count"])
}

func TestSubscriptionLifecycle(t *testing.T) {
	node := &stubNode{available: true}
	s := newTestServer(node)

	w := doRequest(t, s, http.MethodPost, "/api/v1/subscription", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	id := data["subscription_id"].(float64)
	assert.Equal(t, float64(1), id)

	// A delivered record shows up in the timeline
	msg, _ := codec.NewChatMessage(100, "alice", "live one")
	wire, _ := msg.Encode()
	node.onLive(wire)

	w = doRequest(t, s, http.MethodGet, "/api/v1/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])

	w = doRequest(t, s, http.MethodDelete, "/api/v1/subscription/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodDelete, "/api/v1/subscription/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearTimelineEndpoint(t *testing.T) {
	node := &stubNode{available: true}
	s := newTestServer(node)

	doRequest(t, s, http.MethodPost, "/api/v1/subscription", nil)

	msg, _ := codec.NewChatMessage(100, "alice", "x")
	wire, _ := msg.Encode()
	node.onLive(wire)

	w := doRequest(t, s, http.MethodDelete, "/api/v1/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/v1/messages", nil)
	assert.Equal(t, float64(0), decodeBody(t, w)["count"])
}

func TestEncryptionEndpoints(t *testing.T) {
	s := newTestServer(&stubNode{available: true})

	// Export before any key exists: absence, not an error
	w := doRequest(t, s, http.MethodGet, "/api/v1/encryption/key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeBody(t, w)["key"])

	w = doRequest(t, s, http.MethodPut, "/api/v1/encryption/scheme",
		map[string]string{"scheme": "symmetric"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodPut, "/api/v1/encryption/scheme",
		map[string]string{"scheme": "rot13"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/v1/encryption/keys", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/v1/encryption/key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exported, ok := decodeBody(t, w)["key"].(string)
	require.True(t, ok)
	assert.Len(t, exported, 64) // 32 bytes hex

	w = doRequest(t, s, http.MethodPut, "/api/v1/encryption/key",
		map[string]string{"key": exported})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodPut, "/api/v1/encryption/key",
		map[string]string{"key": "not-hex"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArchiveEndpointsWithoutArchive(t *testing.T) {
	s := newTestServer(&stubNode{available: true})

	w := doRequest(t, s, http.MethodGet, "/api/v1/archive", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/v1/archive/snapshot", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestArchiveSnapshotRoundTrip(t *testing.T) {
	archive, err := store.NewArchive(":memory:")
	require.NoError(t, err)
	defer archive.Close()

	node := &stubNode{available: true}
	client := chat.NewClient("chat/general", node, encryption.NewOverlay())
	client.AttachArchive(archive)
	s := NewServer(client, archive, &Config{Port: 8080})

	// Live deliveries land in the archive
	doRequest(t, s, http.MethodPost, "/api/v1/subscription", nil)
	for i := 0; i < 3; i++ {
		msg, _ := codec.NewChatMessage(uint64(100+i), "alice", "archived")
		wire, _ := msg.Encode()
		node.onLive(wire)
	}

	w := doRequest(t, s, http.MethodGet, "/api/v1/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["record_count"])

	w = doRequest(t, s, http.MethodGet, "/api/v1/archive/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap SnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Len(t, snap.Shards, store.TotalShards)

	// Prune, then restore from the snapshot
	w = doRequest(t, s, http.MethodDelete, "/api/v1/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/v1/archive/snapshot", snap)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/v1/archive", nil)
	assert.Equal(t, float64(3), decodeBody(t, w)["record_count"])
}

func TestHistoricalToggleEndpoint(t *testing.T) {
	s := newTestServer(&stubNode{available: true})

	include := false
	w := doRequest(t, s, http.MethodPut, "/api/v1/timeline/historical",
		map[string]*bool{"include": &include})
	assert.Equal(t, http.StatusOK, w.Code)
}
