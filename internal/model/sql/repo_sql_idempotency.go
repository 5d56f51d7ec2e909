package sql

import (
	"context"
	"fmt"
	"strings"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/lww"

	"gorm.io/gorm"
)

// GetIdempotencyRecord loads a memoized result, nil when absent.
func (r *GormRepository) GetIdempotencyRecord(ctx context.Context, key string) (*db.IdempotencyRecord, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return firstOrNil[db.IdempotencyRecord](r.db.WithContext(ctx).Where("idem_key = ?", key))
}

// PutIdempotencyRecord stores a memoized result with LWW semantics: a
// write carrying an older timestamp than the stored record is dropped.
func (r *GormRepository) PutIdempotencyRecord(ctx context.Context, record *db.IdempotencyRecord) error {
	if err := r.guard(); err != nil {
		return err
	}
	if record == nil || strings.TrimSpace(record.Key) == "" {
		return fmt.Errorf("idempotency key is empty")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := firstOrNil[db.IdempotencyRecord](tx.Where("idem_key = ?", record.Key))
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Create(record).Error
		}
		if !lww.Wins(record.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(record), lww.Fingerprint(existing)) {
			return nil
		}
		return tx.Save(record).Error
	})
}
