package service

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"MediaVault/internal/dto"
	"MediaVault/internal/logger"
	"MediaVault/model"
	"MediaVault/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var liveStates = []model.LifecycleState{model.StateActive, model.StateTrashed}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// allowedTransitions lists every legal lifecycle edge.
var allowedTransitions = map[model.LifecycleState][]model.LifecycleState{
	model.StateActive:  {model.StateTrashed},
	model.StateTrashed: {model.StateActive, model.StatePurged},
}

func transitionAllowed(from, to model.LifecycleState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AssetKey is the blob key for a stored asset.
func AssetKey(userID uint64, kind model.AssetKind, storedName string) string {
	return fmt.Sprintf("%d/%s/%s", userID, kind, storedName)
}

// invalidateAssetListCache clears the owner's cached listings.
func invalidateAssetListCache(userID uint64) {
	if err := utils.InvalidateAssetListCache(context.Background(), userID); err != nil {
		logger.L().Warn("invalidate asset list cache failed", "user_id", userID, "error", err)
	}
}

// CreateAssets inserts asset rows, all in tx when given.
func CreateAssets(ctx context.Context, tx *gorm.DB, assets []*model.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	return dbFor(ctx, tx).Create(assets).Error
}

// GetAsset returns one of the user's assets. Another user's asset is reported as not found.
func GetAsset(ctx context.Context, userID, assetID uint64) (*model.Asset, error) {
	db := dbFor(ctx, nil)
	var asset model.Asset
	err := db.Where("id = ? AND user_id = ?", assetID, userID).Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: asset %d", apperr.ErrNotFound, assetID)
	}
	if err != nil {
		return nil, err
	}
	folders, err := foldersOf(db, asset.ID)
	if err != nil {
		return nil, err
	}
	asset.Folders = folders
	return &asset, nil
}

func foldersOf(db *gorm.DB, assetID uint64) ([]model.Folder, error) {
	var folders []model.Folder
	err := db.Model(&model.Folder{}).
		Joins("JOIN asset_folder ON asset_folder.folder_id = folder.id").
		Where("asset_folder.asset_id = ?", assetID).
		Order("folder.name ASC").
		Find(&folders).Error
	return folders, err
}

// normalizeListRequest fills defaults and rejects unknown filters.
func normalizeListRequest(req *dto.AssetListRequest) (dto.AssetListRequest, error) {
	q := dto.AssetListRequest{}
	if req != nil {
		q = *req
	}
	if q.State == "" {
		q.State = model.StateActive
	}
	if !q.State.Valid() {
		return q, fmt.Errorf("%w: unknown state %q", apperr.ErrValidation, q.State)
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return q, fmt.Errorf("%w: unknown kind %q", apperr.ErrValidation, q.Kind)
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	q.Query = strings.TrimSpace(q.Query)
	q.OrderBy = sanitizeOrderBy(q.OrderBy)
	if q.OrderBy == "" {
		q.OrderBy = "created_at"
		if q.State == model.StateTrashed {
			q.OrderBy = "trashed_at"
		}
	}
	return q, nil
}

// ListAssets returns one page of the user's assets matching the filters, newest first by default.
func ListAssets(ctx context.Context, userID uint64, req *dto.AssetListRequest) ([]model.Asset, int64, error) {
	q, err := normalizeListRequest(req)
	if err != nil {
		return nil, 0, err
	}
	gen, cacheable := utils.AssetListGeneration(ctx, userID)
	if cacheable {
		if cached, ok := utils.GetAssetListFromCache(ctx, userID, gen, q); ok {
			return cached.Assets, cached.Total, nil
		}
	}

	db := dbFor(ctx, nil)
	query := db.Model(&model.Asset{}).Where("user_id = ? AND state = ?", userID, q.State)
	if q.Kind != "" {
		query = query.Where("kind = ?", q.Kind)
	}
	if q.FavoriteOnly {
		query = query.Where("is_favorite = ?", true)
	}
	if q.FolderID != nil {
		if _, err := getFolder(db, userID, *q.FolderID); err != nil {
			return nil, 0, err
		}
		members := db.Model(&model.AssetFolder{}).Select("asset_id").Where("folder_id = ?", *q.FolderID)
		query = query.Where("id IN (?)", members)
	}
	if q.Query != "" {
		query = query.Where("original_name LIKE ? ESCAPE '!'", "%"+escapeLike(q.Query)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := "DESC"
	if q.OrderAsc {
		dir = "ASC"
	}
	var assets []model.Asset
	if err := query.
		Order(q.OrderBy + " " + dir).
		Order("id " + dir).
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&assets).Error; err != nil {
		return nil, 0, err
	}

	if cacheable {
		ttl := config.AppConfig.ListCacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		_ = utils.SetAssetListToCache(ctx, userID, gen, q, &utils.AssetListCache{Assets: assets, Total: total}, ttl)
	}
	return assets, total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// SetFavorite tags or untags an active or trashed asset.
func SetFavorite(ctx context.Context, userID, assetID uint64, favorite bool) error {
	db := dbFor(ctx, nil)
	res := db.Model(&model.Asset{}).
		Where("id = ? AND user_id = ? AND state IN ?", assetID, userID, liveStates).
		Update("is_favorite", favorite)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if err := classifyMiss(db, userID, assetID, liveStates...); err != nil {
			return err
		}
	}
	invalidateAssetListCache(userID)
	return nil
}

// UpdateLifecycleState moves an asset from one state to another only if it is still in from.
// A stale from yields ErrConflict; an unknown or foreign asset yields ErrNotFound.
func UpdateLifecycleState(
	ctx context.Context,
	tx *gorm.DB,
	userID, assetID uint64,
	from, to model.LifecycleState,
	extra map[string]interface{},
) error {
	if !transitionAllowed(from, to) {
		return fmt.Errorf("%w: %s -> %s is not a legal transition", apperr.ErrConflict, from, to)
	}
	updates := map[string]interface{}{"state": to}
	for k, v := range extra {
		updates[k] = v
	}
	db := dbFor(ctx, tx)
	query := db.Model(&model.Asset{}).
		Where("id = ? AND user_id = ? AND state = ?", assetID, userID, from)
	if from == model.StateTrashed && to == model.StateActive {
		// a claimed asset may already have lost its blob
		query = query.Where("purging_at IS NULL")
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return classifyMiss(db, userID, assetID)
	}
	return nil
}

// classifyMiss explains why a conditional update touched no row.
// It returns nil when the asset is in one of the accepted states.
func classifyMiss(db *gorm.DB, userID, assetID uint64, accepted ...model.LifecycleState) error {
	var asset model.Asset
	err := db.Select("id", "state", "purging_at").Where("id = ? AND user_id = ?", assetID, userID).Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: asset %d", apperr.ErrNotFound, assetID)
	}
	if err != nil {
		return err
	}
	for _, s := range accepted {
		if asset.State == s {
			return nil
		}
	}
	if asset.State == model.StateTrashed && asset.PurgingAt != nil {
		return fmt.Errorf("%w: asset %d is being purged", apperr.ErrConflict, assetID)
	}
	return fmt.Errorf("%w: asset %d is %s", apperr.ErrConflict, assetID, asset.State)
}

// AddToFolder tags an asset with one of the user's folders. Adding twice is a no-op.
func AddToFolder(ctx context.Context, userID, assetID, folderID uint64) error {
	db := dbFor(ctx, nil)
	if err := checkMembershipTargets(db, userID, assetID, folderID); err != nil {
		return err
	}
	link := &model.AssetFolder{AssetID: assetID, FolderID: folderID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
		return err
	}
	invalidateAssetListCache(userID)
	return nil
}

// RemoveFromFolder removes a folder tag. Removing a missing tag is a no-op.
func RemoveFromFolder(ctx context.Context, userID, assetID, folderID uint64) error {
	db := dbFor(ctx, nil)
	if err := checkMembershipTargets(db, userID, assetID, folderID); err != nil {
		return err
	}
	if err := db.Where("asset_id = ? AND folder_id = ?", assetID, folderID).
		Delete(&model.AssetFolder{}).Error; err != nil {
		return err
	}
	invalidateAssetListCache(userID)
	return nil
}

func checkMembershipTargets(db *gorm.DB, userID, assetID, folderID uint64) error {
	if _, err := getFolder(db, userID, folderID); err != nil {
		return err
	}
	return classifyMiss(db, userID, assetID, liveStates...)
}

// ListExpiredTrash returns trashed assets whose retention ended at or before cutoff, ordered by id.
func ListExpiredTrash(ctx context.Context, cutoff time.Time, afterID uint64, limit int) ([]model.Asset, error) {
	var assets []model.Asset
	err := dbFor(ctx, nil).
		Select("id", "user_id", "size", "trashed_at").
		Where("state = ? AND trashed_at <= ? AND id > ?", model.StateTrashed, cutoff, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&assets).Error
	return assets, err
}
