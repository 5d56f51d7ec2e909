package api

import (
	"strings"
	"time"

	"soulmedia/internal/auth"
	"soulmedia/internal/config"
	"soulmedia/internal/delivery"
	"soulmedia/internal/model"
	"soulmedia/internal/tasks"
)

// HTTPHandler carries the wiring every handler needs.
type HTTPHandler struct {
	cfg         config.Config
	repo        model.Repository
	engine      *delivery.Engine
	tasks       *tasks.Manager
	authManager *auth.Manager
}

// NewHTTPHandler creates the HTTP handler. Auth stays disabled when no
// JWT secret is configured.
func NewHTTPHandler(cfg config.Config, repo model.Repository, engine *delivery.Engine, taskManager *tasks.Manager) (*HTTPHandler, error) {
	handler := &HTTPHandler{
		cfg:    cfg,
		repo:   repo,
		engine: engine,
		tasks:  taskManager,
	}

	if strings.TrimSpace(cfg.JWTSecret) != "" {
		expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
		authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
		if err != nil {
			return nil, err
		}
		handler.authManager = authManager
	}

	return handler, nil
}
