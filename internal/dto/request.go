package dto

import "MediaVault/model"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username      string `json:"username" binding:"required"`
	FirstPassword string `json:"first-password" binding:"required"`
	LastPassword  string `json:"second-password" binding:"required"`
	Email         string `json:"email" binding:"required"`
}

type AssetListRequest struct {
	Kind         model.AssetKind      `json:"kind"`
	FavoriteOnly bool                 `json:"favorite_only"`
	FolderID     *uint64              `json:"folder_id"`
	State        model.LifecycleState `json:"state"`
	Query        string               `json:"query"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	OrderBy      string               `json:"order_by"`
	OrderAsc     bool                 `json:"order_asc"`
}

type AssetIDRequest struct {
	AssetID uint64 `json:"asset_id" binding:"required"`
}

type BatchAssetRequest struct {
	AssetIDs []uint64 `json:"asset_ids" binding:"required,min=1"`
}

type FavoriteRequest struct {
	AssetID  uint64 `json:"asset_id" binding:"required"`
	Favorite bool   `json:"favorite"`
}

type FolderCreateRequest struct {
	Name string `json:"name" binding:"required"`
}

type FolderRenameRequest struct {
	FolderID uint64 `json:"folder_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type FolderIDRequest struct {
	FolderID uint64 `json:"folder_id" binding:"required"`
}

type FolderMembershipRequest struct {
	FolderID uint64 `json:"folder_id" binding:"required"`
	AssetID  uint64 `json:"asset_id" binding:"required"`
}

type ImportRequest struct {
	URL      string `json:"url" binding:"required"`
	FileName string `json:"file_name"`
}

type SetQuotaRequest struct {
	UserID     uint64 `json:"user_id" binding:"required"`
	LimitBytes uint64 `json:"limit_bytes" binding:"required"`
}
