package sql

import (
	"context"
	"fmt"
	"strings"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/lww"

	"gorm.io/gorm"
)

// UpsertVariant persists a generated variant with LWW semantics.
func (r *GormRepository) UpsertVariant(ctx context.Context, variant *db.Variant) error {
	if err := r.guard(); err != nil {
		return err
	}
	if variant == nil || strings.TrimSpace(variant.ID) == "" {
		return fmt.Errorf("variant id is empty")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := firstOrNil[db.Variant](tx.Where("variant_id = ?", variant.ID))
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Create(variant).Error
		}
		if !lww.Wins(variant.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(variant), lww.Fingerprint(existing)) {
			return nil
		}
		return tx.Save(variant).Error
	})
}

// GetVariant loads a variant by id, nil when absent.
func (r *GormRepository) GetVariant(ctx context.Context, id string) (*db.Variant, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return firstOrNil[db.Variant](r.db.WithContext(ctx).Where("variant_id = ?", id))
}

// ListVariantsByPromptKey returns all variants under a prompt key, newest
// first.
func (r *GormRepository) ListVariantsByPromptKey(ctx context.Context, pkID string) ([]db.Variant, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	var variants []db.Variant
	err := r.db.WithContext(ctx).
		Where("pk_id = ?", pkID).
		Order("updated_at_ts DESC").
		Find(&variants).Error
	return variants, err
}

// ListUnseenVariants returns the variants under a prompt key that the
// user has not been delivered yet, newest first.
func (r *GormRepository) ListUnseenVariants(ctx context.Context, pkID, userID string) ([]db.Variant, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	var variants []db.Variant
	err := r.db.WithContext(ctx).
		Table("variants v").
		Select("v.*").
		Joins("LEFT JOIN user_seen us ON us.variant_id = v.variant_id AND us.user_id = ?", userID).
		Where("v.pk_id = ? AND us.variant_id IS NULL", pkID).
		Order("v.updated_at_ts DESC").
		Find(&variants).Error
	return variants, err
}

// MarkSeen records a delivery; a repeated pair keeps the most recent
// timestamp.
func (r *GormRepository) MarkSeen(ctx context.Context, userID, variantID string, seenAtTS int64) error {
	if err := r.guard(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(variantID) == "" {
		return fmt.Errorf("user id and variant id are required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := firstOrNil[db.UserSeen](tx.Where("user_id = ? AND variant_id = ?", userID, variantID))
		if err != nil {
			return err
		}
		row := &db.UserSeen{UserID: userID, VariantID: variantID, SeenAtTS: seenAtTS}
		if existing == nil {
			return tx.Create(row).Error
		}
		if seenAtTS < existing.SeenAtTS {
			return nil
		}
		return tx.Model(&db.UserSeen{}).
			Where("user_id = ? AND variant_id = ?", userID, variantID).
			Update("seen_at_ts", seenAtTS).Error
	})
}

// SeenVariantIDs returns the set of variant ids delivered to a user.
func (r *GormRepository) SeenVariantIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.UserSeen{}).
		Where("user_id = ?", userID).
		Pluck("variant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}
