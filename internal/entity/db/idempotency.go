package db

import "soulmedia/internal/entity/common"

// IdempotencyRecord memoizes a response for a client-supplied key.
type IdempotencyRecord struct {
	Key         string         `gorm:"column:idem_key;primaryKey;type:varchar(128)" json:"idem_key"`
	Result      common.JSONMap `gorm:"column:result;type:json" json:"result"`
	UpdatedAtTS int64          `gorm:"column:updated_at_ts" json:"updated_at_ts"`
}

// TableName sets the table name.
func (IdempotencyRecord) TableName() string {
	return "idempotency"
}
