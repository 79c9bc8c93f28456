package model

import "time"

type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// Valid reports whether k is a known kind.
func (k AssetKind) Valid() bool {
	return k == AssetKindImage || k == AssetKindVideo
}

type LifecycleState string

const (
	StateActive  LifecycleState = "active"
	StateTrashed LifecycleState = "trashed"
	StatePurged  LifecycleState = "purged"
)

// Valid reports whether s is a known lifecycle state.
func (s LifecycleState) Valid() bool {
	switch s {
	case StateActive, StateTrashed, StatePurged:
		return true
	}
	return false
}

// Live reports whether assets in this state still count against the ledger.
func (s LifecycleState) Live() bool {
	return s == StateActive || s == StateTrashed
}

// Asset is one stored image or video. Purged rows stay for audit with a nil StoragePath.
type Asset struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID uint64 `gorm:"column:user_id;not null;index:idx_asset_owner_state_created,priority:1" json:"user_id"`

	Kind AssetKind `gorm:"column:kind;type:varchar(16);not null;index" json:"kind"`

	OriginalName string  `gorm:"column:original_name;type:varchar(255);not null" json:"original_name"`
	StoredName   string  `gorm:"column:stored_name;type:varchar(255);not null" json:"stored_name"`
	StoragePath  *string `gorm:"column:storage_path;type:varchar(512)" json:"storage_path,omitempty"`

	Size     uint64 `gorm:"column:size;not null" json:"size"`
	MimeType string `gorm:"column:mime_type;type:varchar(128);not null" json:"mime_type"`

	IsFavorite bool `gorm:"column:is_favorite;not null;default:false" json:"is_favorite"`

	State     LifecycleState `gorm:"column:state;type:varchar(16);not null;default:'active';index:idx_asset_owner_state_created,priority:2;index:idx_asset_state_trashed,priority:1" json:"state"`
	TrashedAt *time.Time     `gorm:"column:trashed_at;index:idx_asset_state_trashed,priority:2" json:"trashed_at,omitempty"`
	PurgedAt  *time.Time     `gorm:"column:purged_at" json:"purged_at,omitempty"`

	// PurgingAt is set while a purge owns the asset; a claimed asset cannot be restored.
	PurgingAt *time.Time `gorm:"column:purging_at" json:"-"`

	Folders []Folder `gorm:"-" json:"folders,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_asset_owner_state_created,priority:3" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Asset) TableName() string {
	return "asset"
}
