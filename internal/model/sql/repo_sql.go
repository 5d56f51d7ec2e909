package sql

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormRepository implements model.Repository over GORM with
// last-write-wins upsert semantics.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new repository instance.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) guard() error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return nil
}

// firstOrNil runs the query and translates gorm's not-found error into a
// plain nil result.
func firstOrNil[T any](tx *gorm.DB) (*T, error) {
	var record T
	if err := tx.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
