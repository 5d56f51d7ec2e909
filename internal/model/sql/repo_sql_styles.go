package sql

import (
	"context"
	"fmt"
	"strings"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/lww"

	"gorm.io/gorm"
)

// UpsertStyleProfile writes a persona's style profile unless a strictly
// newer record is already stored.
func (r *GormRepository) UpsertStyleProfile(ctx context.Context, profile *db.StyleProfile) error {
	if err := r.guard(); err != nil {
		return err
	}
	if profile == nil || strings.TrimSpace(profile.PersonaID) == "" {
		return fmt.Errorf("style profile persona id is empty")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := firstOrNil[db.StyleProfile](tx.Where("persona_id = ?", profile.PersonaID))
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Create(profile).Error
		}
		if !lww.Wins(profile.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(profile), lww.Fingerprint(existing)) {
			return nil
		}
		return tx.Save(profile).Error
	})
}

// GetStyleProfile loads a persona's style profile, nil when absent.
func (r *GormRepository) GetStyleProfile(ctx context.Context, personaID string) (*db.StyleProfile, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return firstOrNil[db.StyleProfile](r.db.WithContext(ctx).Where("persona_id = ?", personaID))
}

// CountStyleProfiles returns the number of stored profiles.
func (r *GormRepository) CountStyleProfiles(ctx context.Context) (int64, error) {
	if err := r.guard(); err != nil {
		return 0, err
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&db.StyleProfile{}).Count(&count).Error
	return count, err
}
