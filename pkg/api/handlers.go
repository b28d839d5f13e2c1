package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ZentaChain/zentalk-channel/pkg/chat"
	"github.com/ZentaChain/zentalk-channel/pkg/codec"
	"github.com/ZentaChain/zentalk-channel/pkg/encryption"
	"github.com/ZentaChain/zentalk-channel/pkg/store"
	"github.com/ZentaChain/zentalk-channel/pkg/transport"
)

// SendRequest is the body for POST /api/v1/messages.
type SendRequest struct {
	Sender string `json:"sender" binding:"required"`
	Body   string `json:"body" binding:"required"`
}

// handleStatus handles GET /api/v1/status.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.client.Status())
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSend handles POST /api/v1/messages.
func (s *Server) handleSend(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	msg, err := s.client.CreateMessage(req.Sender, req.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid message", Message: err.Error()})
		return
	}

	if err := s.client.Send(c.Request.Context(), msg); err != nil {
		s.writeSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"id": chat.ContentID(msg)}})
}

// writeSendError maps a send failure to an HTTP status.
func (s *Server) writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, transport.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Transport unavailable", Message: err.Error()})
	case errors.Is(err, encryption.ErrNotReady):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Encryption not ready", Message: err.Error()})
	case errors.Is(err, codec.ErrFieldTooLarge):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Message too large", Message: err.Error()})
	default:
		// Push failures are transient and retryable by the caller
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Push failed", Message: err.Error()})
	}
}

// handleTimeline handles GET /api/v1/messages.
func (s *Server) handleTimeline(c *gin.Context) {
	messages := s.client.Timeline().Messages()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(messages),
		"messages": messages,
	})
}

// handleClearTimeline handles DELETE /api/v1/messages.
func (s *Server) handleClearTimeline(c *gin.Context) {
	s.client.Timeline().Clear()
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Timeline cleared"})
}

// handleQueryHistory handles GET /api/v1/history.
func (s *Server) handleQueryHistory(c *gin.Context) {
	batch, err := s.client.QueryHistory(c.Request.Context())
	if err != nil {
		if errors.Is(err, transport.ErrUnavailable) || errors.Is(err, transport.ErrProtocolUnavailable) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "History unavailable", Message: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Query failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(batch),
		"messages": batch,
	})
}

// handleHistoricalToggle handles PUT /api/v1/timeline/historical.
func (s *Server) handleHistoricalToggle(c *gin.Context) {
	var req struct {
		Include *bool `json:"include" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	s.client.Timeline().SetIncludeHistorical(*req.Include)
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// handleSubscribe handles POST /api/v1/subscription.
func (s *Server) handleSubscribe(c *gin.Context) {
	// Messages flow into the timeline; GET /messages is the read path.
	id, err := s.client.Subscribe(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Subscribe failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"subscription_id": id}})
}

// handleUnsubscribe handles DELETE /api/v1/subscription/:id.
func (s *Server) handleUnsubscribe(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid subscription id"})
		return
	}

	if err := s.client.Unsubscribe(chat.SubscriptionID(id)); err != nil {
		if errors.Is(err, chat.ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Teardown failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// handleUnsubscribeAll handles DELETE /api/v1/subscription.
func (s *Server) handleUnsubscribeAll(c *gin.Context) {
	if err := s.client.UnsubscribeAll(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Teardown incomplete", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// requireArchive fetches the archive or writes the standard 503.
func (s *Server) requireArchive(c *gin.Context) *store.Archive {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Archive not available", Message: "node is running without local persistence"})
		return nil
	}
	return s.archive
}

// handleArchiveInfo handles GET /api/v1/archive.
func (s *Server) handleArchiveInfo(c *gin.Context) {
	archive := s.requireArchive(c)
	if archive == nil {
		return
	}

	count, err := archive.Count(s.client.Topic())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Archive read failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topic":        s.client.Topic(),
		"record_count": count,
	})
}

// handlePruneArchive handles DELETE /api/v1/archive.
func (s *Server) handlePruneArchive(c *gin.Context) {
	archive := s.requireArchive(c)
	if archive == nil {
		return
	}

	if err := archive.Prune(s.client.Topic()); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Prune failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Archive pruned"})
}

// SnapshotResponse carries an erasure-coded archive snapshot. Missing
// shards are null; any 10 of the 15 reconstruct the history.
type SnapshotResponse struct {
	Topic        string   `json:"topic"`
	Shards       [][]byte `json:"shards"`
	ShardSize    int      `json:"shard_size"`
	OriginalSize int      `json:"original_size"`
}

// handleExportSnapshot handles GET /api/v1/archive/snapshot.
func (s *Server) handleExportSnapshot(c *gin.Context) {
	archive := s.requireArchive(c)
	if archive == nil {
		return
	}

	snap, err := archive.ExportSnapshot(s.client.Topic())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Snapshot export failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SnapshotResponse{
		Topic:        snap.Topic,
		Shards:       snap.Shards,
		ShardSize:    snap.ShardSize,
		OriginalSize: snap.OriginalSize,
	})
}

// handleImportSnapshot handles POST /api/v1/archive/snapshot.
func (s *Server) handleImportSnapshot(c *gin.Context) {
	archive := s.requireArchive(c)
	if archive == nil {
		return
	}

	var req SnapshotResponse
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	imported, err := archive.ImportSnapshot(&store.Snapshot{
		Topic:        req.Topic,
		Shards:       req.Shards,
		ShardSize:    req.ShardSize,
		OriginalSize: req.OriginalSize,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Snapshot import failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"imported": imported}})
}

// handleEncryptionToggle handles POST /api/v1/encryption/toggle.
func (s *Server) handleEncryptionToggle(c *gin.Context) {
	enabled := s.client.Overlay().Toggle()
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"enabled": enabled}})
}

// handleSelectScheme handles PUT /api/v1/encryption/scheme.
func (s *Server) handleSelectScheme(c *gin.Context) {
	var req struct {
		Scheme string `json:"scheme" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	scheme, err := encryption.ParseScheme(req.Scheme)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown scheme", Message: req.Scheme})
		return
	}

	if err := s.client.Overlay().SelectScheme(scheme); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Scheme selection failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"scheme": scheme.String()}})
}

// handleGenerateKeys handles POST /api/v1/encryption/keys.
func (s *Server) handleGenerateKeys(c *gin.Context) {
	if err := s.client.Overlay().GenerateKeys(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Key generation failed", Message: err.Error()})
		return
	}

	key, _ := s.client.Overlay().ExportOwnKey()
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: gin.H{"key": key}})
}

// handleExportKey handles GET /api/v1/encryption/key.
func (s *Server) handleExportKey(c *gin.Context) {
	key, ok := s.client.Overlay().ExportOwnKey()
	if !ok {
		// Absence, not an error
		c.JSON(http.StatusOK, gin.H{"key": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

// handleImportKey handles PUT /api/v1/encryption/key.
func (s *Server) handleImportKey(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	if err := s.client.Overlay().ImportRemoteKey(req.Key); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid key", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
