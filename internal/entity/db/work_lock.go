package db

// WorkLock is an advisory, leased record mirroring an in-process lock.
// It is written for visibility and potential cross-process use but never
// read by the in-process locking path.
type WorkLock struct {
	LockKey     string `gorm:"column:lock_key;primaryKey;type:varchar(255)" json:"lock_key"`
	OwnerID     string `gorm:"column:owner_id;type:varchar(26)" json:"owner_id"`
	ExpiresAtTS int64  `gorm:"column:expires_at_ts" json:"expires_at_ts"`
	UpdatedAtTS int64  `gorm:"column:updated_at_ts" json:"updated_at_ts"`
}

// TableName sets the table name.
func (WorkLock) TableName() string {
	return "work_locks"
}
