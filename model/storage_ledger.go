package model

import "time"

// StorageLedger tracks bytes held by a user's active and trashed assets.
type StorageLedger struct {
	UserID     uint64    `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	UsedBytes  uint64    `gorm:"column:used_bytes;not null;default:0" json:"used_bytes"`
	LimitBytes uint64    `gorm:"column:limit_bytes;not null" json:"limit_bytes"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (StorageLedger) TableName() string {
	return "storage_ledger"
}
