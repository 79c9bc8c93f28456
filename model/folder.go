package model

import "time"

// SystemFolderCameraUploads is provisioned for every user and cannot be deleted.
const SystemFolderCameraUploads = "Camera Uploads"

type Folder struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID uint64 `gorm:"column:user_id;not null;uniqueIndex:uk_folder_user_name,priority:1" json:"user_id"`
	Name   string `gorm:"column:name;type:varchar(255);not null;uniqueIndex:uk_folder_user_name,priority:2" json:"name"`

	IsSystem bool `gorm:"column:is_system;not null;default:false" json:"is_system"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (Folder) TableName() string {
	return "folder"
}

// AssetFolder is the membership join between assets and folders.
type AssetFolder struct {
	AssetID   uint64    `gorm:"column:asset_id;primaryKey" json:"asset_id"`
	FolderID  uint64    `gorm:"column:folder_id;primaryKey;index" json:"folder_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (AssetFolder) TableName() string {
	return "asset_folder"
}
