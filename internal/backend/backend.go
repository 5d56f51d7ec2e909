// Package backend abstracts the media generation providers. A Backend
// turns a fully built prompt into raw asset bytes; persistence, hashing
// and bookkeeping stay with the caller.
package backend

import (
	"context"

	"soulmedia/internal/entity/common"
)

// Job is one generation request handed to a backend.
type Job struct {
	PersonaID      string
	VariantID      string
	Kind           common.AssetKind
	PositivePrompt string
	NegativePrompt string
	Seed           int64
}

// Result carries the generated asset bytes and the file extension to
// store them under.
type Result struct {
	Data []byte
	Ext  string
}

// Backend generates one asset per call. Implementations must honor
// context cancellation while waiting on the provider; abort is
// best-effort, an in-flight remote job may still complete and its
// result is discarded.
type Backend interface {
	Name() string
	Kind() common.AssetKind
	Generate(ctx context.Context, job Job) (*Result, error)
}
