package sql

import (
	"context"
	"fmt"
	"strings"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/lww"

	"gorm.io/gorm"
)

// UpsertLocationUsage records a diversity-chooser selection with LWW
// semantics on the (persona, group, location, scope) key.
func (r *GormRepository) UpsertLocationUsage(ctx context.Context, row *db.LocationUsage) error {
	if err := r.guard(); err != nil {
		return err
	}
	if row == nil || strings.TrimSpace(row.PersonaID) == "" || strings.TrimSpace(row.GroupID) == "" || strings.TrimSpace(row.LocationID) == "" {
		return fmt.Errorf("location usage key fields are required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := firstOrNil[db.LocationUsage](tx.Where(
			"persona_id = ? AND group_id = ? AND location_id = ? AND scope = ?",
			row.PersonaID, row.GroupID, row.LocationID, row.Scope))
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Create(row).Error
		}
		if !lww.Wins(row.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(row), lww.Fingerprint(existing)) {
			return nil
		}
		return tx.Save(row).Error
	})
}

// GetLocationUsage loads one usage row, nil when absent.
func (r *GormRepository) GetLocationUsage(ctx context.Context, personaID, groupID, locationID, scope string) (*db.LocationUsage, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return firstOrNil[db.LocationUsage](r.db.WithContext(ctx).Where(
		"persona_id = ? AND group_id = ? AND location_id = ? AND scope = ?",
		personaID, groupID, locationID, scope))
}

// ListLocationUsage returns all usage rows for (persona, group, scope).
func (r *GormRepository) ListLocationUsage(ctx context.Context, personaID, groupID, scope string) ([]db.LocationUsage, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	var rows []db.LocationUsage
	err := r.db.WithContext(ctx).
		Where("persona_id = ? AND group_id = ? AND scope = ?", personaID, groupID, scope).
		Order("location_id ASC").
		Find(&rows).Error
	return rows, err
}
