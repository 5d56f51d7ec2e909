package sql

import (
	"context"
	"fmt"
	"strings"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/lww"

	"gorm.io/gorm"
)

// UpsertWorkLock writes the advisory lock record for a held in-process
// lock. Never consulted by the locking path itself.
func (r *GormRepository) UpsertWorkLock(ctx context.Context, lock *db.WorkLock) error {
	if err := r.guard(); err != nil {
		return err
	}
	if lock == nil || strings.TrimSpace(lock.LockKey) == "" {
		return fmt.Errorf("lock key is empty")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := firstOrNil[db.WorkLock](tx.Where("lock_key = ?", lock.LockKey))
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Create(lock).Error
		}
		if !lww.Wins(lock.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(lock), lww.Fingerprint(existing)) {
			return nil
		}
		return tx.Save(lock).Error
	})
}

// DeleteWorkLock removes the advisory record if still owned by the given
// owner.
func (r *GormRepository) DeleteWorkLock(ctx context.Context, lockKey, ownerID string) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("lock_key = ? AND owner_id = ?", lockKey, ownerID).
		Delete(&db.WorkLock{}).Error
}
