package db

import "soulmedia/internal/entity/common"

// Variant is one concrete generated asset under a PromptKey. The asset
// content is immutable once created; only Meta may be touched afterwards.
type Variant struct {
	ID          string         `gorm:"column:variant_id;primaryKey;type:varchar(26)" json:"variant_id"`
	PromptKeyID string         `gorm:"column:pk_id;type:varchar(128);index" json:"pk_id"`
	PersonaID   string         `gorm:"column:persona_id;type:varchar(64);index" json:"persona_id"`
	AssetURL    string         `gorm:"column:asset_url;type:varchar(512)" json:"asset_url"`
	StorageKey  string         `gorm:"column:storage_key;type:varchar(512)" json:"storage_key"`
	Seed        int64          `gorm:"column:seed" json:"seed"`
	PHash       uint64         `gorm:"column:phash" json:"phash"`
	Meta        common.JSONMap `gorm:"column:meta;type:json" json:"meta"`
	UpdatedAtTS int64          `gorm:"column:updated_at_ts;index" json:"updated_at_ts"`
}

// TableName sets the table name.
func (Variant) TableName() string {
	return "variants"
}
