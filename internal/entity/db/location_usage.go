package db

// LocationUsage logs one diversity-chooser selection. Upserted on each
// pick; the chooser derives unused items and usage counts from these rows.
type LocationUsage struct {
	PersonaID   string `gorm:"column:persona_id;primaryKey;type:varchar(64)" json:"persona_id"`
	GroupID     string `gorm:"column:group_id;primaryKey;type:varchar(64)" json:"group_id"`
	LocationID  string `gorm:"column:location_id;primaryKey;type:varchar(64)" json:"location_id"`
	Scope       string `gorm:"column:scope;primaryKey;type:varchar(64)" json:"scope"`
	UsedAtTS    int64  `gorm:"column:used_at_ts" json:"used_at_ts"`
	UseCount    int64  `gorm:"column:use_count" json:"use_count"`
	UpdatedAtTS int64  `gorm:"column:updated_at_ts" json:"updated_at_ts"`
}

// TableName sets the table name.
func (LocationUsage) TableName() string {
	return "location_usage_log"
}
