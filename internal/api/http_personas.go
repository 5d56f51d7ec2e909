package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"soulmedia/internal/entity/common"
	"soulmedia/internal/entity/db"
	"soulmedia/internal/entity/dto"
	"soulmedia/internal/ids"
)

// UpsertStyleProfile serves PUT /api/personas/:id/style.
func (h *HTTPHandler) UpsertStyleProfile(c *gin.Context) {
	personaID := strings.TrimSpace(c.Param("id"))
	if personaID == "" {
		MissingField(c, "persona_id")
		return
	}

	var req dto.StyleProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	profile := &db.StyleProfile{
		PersonaID:      personaID,
		BaseStyleRef:   req.BaseStyleRef,
		StyleModifiers: common.StringArray(req.StyleModifiers),
		Palette:        common.JSONMap(req.Palette),
		NegativeTerms:  common.StringArray(req.NegativeTerms),
		MotionModule:   req.MotionModule,
		Extra:          common.JSONMap(req.Extra),
		UpdatedAtTS:    ids.NowMillis(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.UpsertStyleProfile(ctx, profile); err != nil {
		logrus.WithError(err).WithField("persona_id", personaID).Error("failed to upsert style profile")
		InternalError(c, "failed to save style profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetStyleProfile serves GET /api/personas/:id/style.
func (h *HTTPHandler) GetStyleProfile(c *gin.Context) {
	personaID := strings.TrimSpace(c.Param("id"))
	if personaID == "" {
		MissingField(c, "persona_id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	profile, err := h.repo.GetStyleProfile(ctx, personaID)
	if err != nil {
		logrus.WithError(err).WithField("persona_id", personaID).Error("failed to load style profile")
		InternalError(c, "failed to load style profile")
		return
	}
	if profile == nil {
		NotFound(c, ErrCodeNotFound, "style profile not found")
		return
	}
	c.JSON(http.StatusOK, profile)
}
