package sql

import (
	"context"
	"fmt"
	"strings"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/lww"

	"gorm.io/gorm"
)

// UpsertPromptKey persists a prompt key with LWW semantics.
func (r *GormRepository) UpsertPromptKey(ctx context.Context, key *db.PromptKey) error {
	if err := r.guard(); err != nil {
		return err
	}
	if key == nil || strings.TrimSpace(key.ID) == "" {
		return fmt.Errorf("prompt key id is empty")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := firstOrNil[db.PromptKey](tx.Where("pk_id = ?", key.ID))
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Create(key).Error
		}
		if !lww.Wins(key.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(key), lww.Fingerprint(existing)) {
			return nil
		}
		return tx.Save(key).Error
	})
}

// GetPromptKey loads a prompt key by id, nil when absent.
func (r *GormRepository) GetPromptKey(ctx context.Context, id string) (*db.PromptKey, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return firstOrNil[db.PromptKey](r.db.WithContext(ctx).Where("pk_id = ?", id))
}

// FindPromptKeyByHash returns the persona's prompt key matching the
// normalized-cue hash exactly, nil when absent.
func (r *GormRepository) FindPromptKeyByHash(ctx context.Context, personaID, keyHash string) (*db.PromptKey, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return firstOrNil[db.PromptKey](r.db.WithContext(ctx).
		Where("persona_id = ? AND key_hash = ?", personaID, keyHash).
		Order("updated_at_ts DESC"))
}

// ListPromptKeys returns all prompt keys for a persona, newest first.
func (r *GormRepository) ListPromptKeys(ctx context.Context, personaID string) ([]db.PromptKey, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	var keys []db.PromptKey
	err := r.db.WithContext(ctx).
		Where("persona_id = ?", personaID).
		Order("updated_at_ts DESC").
		Find(&keys).Error
	return keys, err
}
