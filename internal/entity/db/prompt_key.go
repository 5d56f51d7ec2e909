package db

import "soulmedia/internal/entity/common"

// PromptKey is the canonical, deduplicated identity of a (persona, cue)
// pair. Effectively append-only: created when no near-duplicate exists,
// otherwise reused. Many Variants reference one PromptKey.
type PromptKey struct {
	ID          string         `gorm:"column:pk_id;primaryKey;type:varchar(128)" json:"pk_id"`
	PersonaID   string         `gorm:"column:persona_id;type:varchar(64);index" json:"persona_id"`
	KeyNorm     string         `gorm:"column:key_norm;type:text" json:"key_norm"`
	KeyHash     string         `gorm:"column:key_hash;type:varchar(40);index" json:"key_hash"`
	KeyEmbed    []byte         `gorm:"column:key_embed;type:blob" json:"-"`
	Meta        common.JSONMap `gorm:"column:meta;type:json" json:"meta"`
	UpdatedAtTS int64          `gorm:"column:updated_at_ts;index" json:"updated_at_ts"`
}

// TableName sets the table name.
func (PromptKey) TableName() string {
	return "prompt_keys"
}
