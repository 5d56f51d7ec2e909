package db

import "soulmedia/internal/entity/common"

// StyleProfile stores the per-persona generation parameters. Created once
// per persona, read on every generation.
type StyleProfile struct {
	PersonaID      string             `gorm:"column:persona_id;primaryKey;type:varchar(64)" json:"persona_id"`
	BaseStyleRef   string             `gorm:"column:base_style_ref;type:varchar(255)" json:"base_style_ref"`
	StyleModifiers common.StringArray `gorm:"column:style_modifiers;type:json" json:"style_modifiers"`
	Palette        common.JSONMap     `gorm:"column:palette;type:json" json:"palette"`
	NegativeTerms  common.StringArray `gorm:"column:negative_terms;type:json" json:"negative_terms"`
	MotionModule   string             `gorm:"column:motion_module;type:varchar(255)" json:"motion_module"`
	Extra          common.JSONMap     `gorm:"column:extra;type:json" json:"extra"`
	UpdatedAtTS    int64              `gorm:"column:updated_at_ts;index" json:"updated_at_ts"`
}

// TableName sets the table name.
func (StyleProfile) TableName() string {
	return "style_profiles"
}
