package db

// UserSeen records that a variant was delivered to a user. Insert-only in
// intent; repeating the pair keeps the most recent timestamp.
type UserSeen struct {
	UserID    string `gorm:"column:user_id;primaryKey;type:varchar(64)" json:"user_id"`
	VariantID string `gorm:"column:variant_id;primaryKey;type:varchar(26)" json:"variant_id"`
	SeenAtTS  int64  `gorm:"column:seen_at_ts" json:"seen_at_ts"`
}

// TableName sets the table name.
func (UserSeen) TableName() string {
	return "user_seen"
}
