package model

import "time"

const (
	ImportStatusPending  = "pending"
	ImportStatusRunning  = "running"
	ImportStatusRetrying = "retrying"
	ImportStatusSuccess  = "success"
	ImportStatusFailed   = "failed"
)

// ImportTask is a queued remote import of one media file.
type ImportTask struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID uint64 `gorm:"column:user_id;index;not null" json:"user_id"`

	Source   string `gorm:"column:source;type:text;not null" json:"source"`
	FileName string `gorm:"column:file_name;type:varchar(255);not null" json:"file_name"`

	// AssetID is set once the import has been ingested.
	AssetID *uint64 `gorm:"column:asset_id" json:"asset_id,omitempty"`

	Status      string     `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	Progress    int        `gorm:"column:progress;default:0" json:"progress"`
	ErrorMsg    string     `gorm:"column:error_msg;type:text" json:"error_msg"`
	RetryCount  int        `gorm:"column:retry_count;default:0" json:"retry_count"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at" json:"next_retry_at"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at" json:"finished_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (ImportTask) TableName() string {
	return "import_task"
}
