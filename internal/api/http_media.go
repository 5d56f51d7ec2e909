package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"soulmedia/internal/entity/dto"
)

// RequestVariant serves POST /api/media/variants synchronously.
func (h *HTTPHandler) RequestVariant(c *gin.Context) {
	var req dto.VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	applyIdempotencyHeader(c, &req.IdemKey)

	resp, err := h.engine.RequestVariant(c.Request.Context(), req)
	if err != nil {
		EngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RequestLocationVariant serves POST /api/media/location-variants.
func (h *HTTPHandler) RequestLocationVariant(c *gin.Context) {
	var req dto.LocationVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	applyIdempotencyHeader(c, &req.IdemKey)

	resp, err := h.engine.RequestLocationVariant(c.Request.Context(), req)
	if err != nil {
		EngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MarkSeen serves POST /api/media/seen, the out-of-band delivery
// acknowledgement.
func (h *HTTPHandler) MarkSeen(c *gin.Context) {
	var req dto.MarkSeenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	if err := h.engine.MarkSeen(c.Request.Context(), req); err != nil {
		EngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

// applyIdempotencyHeader lets the standard header override the body
// field.
func applyIdempotencyHeader(c *gin.Context, idemKey *string) {
	if header := strings.TrimSpace(c.GetHeader("Idempotency-Key")); header != "" {
		*idemKey = header
	}
}
