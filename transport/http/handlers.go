package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
)

// GatewayHandlers contains HTTP handlers for the content and registry
// endpoints
type GatewayHandlers struct {
	registry ports.Registry
	blobs    ports.BlobStore
	events   ports.EventPublisher
	logger   *zap.Logger
}

// NewGatewayHandlers creates new gateway handlers. events may be nil when no
// publisher is configured.
func NewGatewayHandlers(registry ports.Registry, blobs ports.BlobStore, events ports.EventPublisher, logger *zap.Logger) *GatewayHandlers {
	return &GatewayHandlers{
		registry: registry,
		blobs:    blobs,
		events:   events,
		logger:   logger,
	}
}

// Content serves a protected resource. The payment middleware has already
// admitted the request and attached the pass and registry entry.
func (h *GatewayHandlers) Content(c *gin.Context) {
	passValue, okPass := c.Get(ContextPass)
	entryValue, okEntry := c.Get(ContextEntry)
	if !okPass || !okEntry {
		c.JSON(http.StatusInternalServerError, gin.H{"error": KindInternalError, "message": "request not admitted"})
		return
	}
	pass := passValue.(*core.AccessPass)
	entry := entryValue.(*core.ResourceEntry)

	data, err := h.blobs.FetchBlob(c.Request.Context(), entry.ContentID)
	if err != nil {
		if errors.Is(err, ports.ErrBlobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Content not found"})
			return
		}
		h.logger.Error("blob fetch failed", zap.String("contentId", entry.ContentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": KindInternalError, "message": "content store unavailable"})
		return
	}

	if h.events != nil {
		// Event publishing never blocks content delivery.
		if err := h.events.PublishAccessGranted(c.Request.Context(), pass.Owner, pass.ID, entry.Domain, entry.Resource); err != nil {
			h.logger.Warn("failed to publish access event", zap.Error(err))
		}
	}

	if entry.Encrypted {
		c.Header(service.HeaderEncrypted, "true")
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Register creates or replaces a resource entry
func (h *GatewayHandlers) Register(c *gin.Context) {
	var entry core.ResourceEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if entry.Domain == "" || entry.Resource == "" || entry.ContentID == "" || entry.Price == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain, resource, contentId and price are required"})
		return
	}
	if _, err := service.PriceInSmallestUnit(entry.Price); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
		return
	}

	if err := h.registry.Put(c.Request.Context(), &entry); err != nil {
		h.logger.Error("failed to store entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": KindInternalError, "message": "failed to store entry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Registered"})
}

// List returns the entries registered under a domain
func (h *GatewayHandlers) List(c *gin.Context) {
	domain := c.Query("domain")
	if domain == "" {
		domain = requestDomain(c)
	}

	entries, err := h.registry.List(c.Request.Context(), domain)
	if err != nil {
		h.logger.Error("failed to list entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": KindInternalError, "message": "failed to list entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Health reports liveness
func (h *GatewayHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
