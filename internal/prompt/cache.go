package prompt

import (
	"context"
	"fmt"

	"soulmedia/internal/entity/common"
	"soulmedia/internal/entity/db"
	"soulmedia/internal/ids"
	"soulmedia/internal/model"
)

// DefaultSimilarityThreshold is the minimum cosine similarity for two
// cues to share a prompt key.
const DefaultSimilarityThreshold = 0.85

// Cache deduplicates cues against stored prompt keys: exact hash match
// first, embedding similarity second.
type Cache struct {
	repo      model.Repository
	embedder  Embedder
	threshold float64
}

// NewCache creates a prompt cache. A zero threshold falls back to the
// default.
func NewCache(repo model.Repository, embedder Embedder, threshold float64) *Cache {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if embedder == nil {
		embedder = NewHashingEmbedder()
	}
	return &Cache{repo: repo, embedder: embedder, threshold: threshold}
}

// FindSimilar returns the persona's prompt key matching the cue, or nil
// when no stored key is an exact or near duplicate.
func (c *Cache) FindSimilar(ctx context.Context, personaID, cue string, profile *db.StyleProfile) (*db.PromptKey, error) {
	keyNorm, keyHash, _ := CacheKey(personaID, cue, profile)

	exact, err := c.repo.FindPromptKeyByHash(ctx, personaID, keyHash)
	if err != nil {
		return nil, fmt.Errorf("find prompt key by hash: %w", err)
	}
	if exact != nil {
		return exact, nil
	}

	cueVec := c.embedder.Embed(keyNorm)
	candidates, err := c.repo.ListPromptKeys(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("list prompt keys: %w", err)
	}

	var best *db.PromptKey
	bestSimilarity := 0.0
	for i := range candidates {
		stored := DecodeVector(candidates[i].KeyEmbed)
		if stored == nil {
			continue
		}
		similarity := Cosine(cueVec, stored)
		if similarity >= c.threshold && similarity > bestSimilarity {
			bestSimilarity = similarity
			best = &candidates[i]
		}
	}
	return best, nil
}

// CreatePromptKey stores a new prompt key for the cue and returns it.
func (c *Cache) CreatePromptKey(ctx context.Context, personaID, cue string, profile *db.StyleProfile, meta common.JSONMap) (*db.PromptKey, error) {
	keyNorm, keyHash, pkID := CacheKey(personaID, cue, profile)
	if meta == nil {
		meta = common.JSONMap{}
	}

	key := &db.PromptKey{
		ID:          pkID,
		PersonaID:   personaID,
		KeyNorm:     keyNorm,
		KeyHash:     keyHash,
		KeyEmbed:    EncodeVector(c.embedder.Embed(keyNorm)),
		Meta:        meta,
		UpdatedAtTS: ids.NowMillis(),
	}
	if err := c.repo.UpsertPromptKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create prompt key: %w", err)
	}
	return key, nil
}
