package backend

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"soulmedia/internal/config"
	"soulmedia/internal/entity/common"
)

// Registry holds one backend per asset kind.
type Registry struct {
	backends map[common.AssetKind]Backend
}

// NewRegistry wires the configured providers: volcengine for images,
// fal.ai for clips. Kinds without credentials (or with BACKEND_FAKE
// set) fall back to the deterministic fake backend.
func NewRegistry(cfg config.Config) *Registry {
	r := &Registry{backends: make(map[common.AssetKind]Backend)}

	if !cfg.BackendFake {
		if b, err := NewVolcengineImage(cfg); err == nil {
			r.backends[common.AssetImage] = b
		} else {
			logrus.WithError(err).Warn("image backend unavailable, using fake")
		}
		if b, err := NewFalClip(cfg); err == nil {
			r.backends[common.AssetClip] = b
		} else {
			logrus.WithError(err).Warn("clip backend unavailable, using fake")
		}
	}

	for _, kind := range []common.AssetKind{common.AssetImage, common.AssetClip} {
		if _, ok := r.backends[kind]; !ok {
			r.backends[kind] = NewFake(kind)
		}
	}

	for kind, b := range r.backends {
		logrus.WithFields(logrus.Fields{
			"kind":    string(kind),
			"backend": b.Name(),
		}).Info("generation backend registered")
	}
	return r
}

// Register installs or replaces the backend for a kind.
func (r *Registry) Register(kind common.AssetKind, b Backend) {
	r.backends[kind] = b
}

// For returns the backend serving an asset kind.
func (r *Registry) For(kind common.AssetKind) (Backend, error) {
	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("no backend registered for asset kind %q", kind)
	}
	return b, nil
}
