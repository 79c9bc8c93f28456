package service

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"MediaVault/internal/dto"
	"MediaVault/internal/logger"
	"MediaVault/internal/metrics"
	"MediaVault/internal/storage"
	"MediaVault/model"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"
)

func recordTransition(to model.LifecycleState, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrConflict):
		status = "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	metrics.RecordTransition(string(to), status)
}

// SoftDelete moves an active asset to the trash. Ledger usage is unchanged.
func SoftDelete(ctx context.Context, userID, assetID uint64) error {
	now := time.Now()
	err := UpdateLifecycleState(ctx, nil, userID, assetID, model.StateActive, model.StateTrashed,
		map[string]interface{}{"trashed_at": &now})
	recordTransition(model.StateTrashed, err)
	if err != nil {
		return err
	}
	invalidateAssetListCache(userID)
	logger.L().Info("asset trashed", "user_id", userID, "asset_id", assetID)
	return nil
}

// BatchSoftDelete trashes several assets, reporting each failure without stopping.
func BatchSoftDelete(ctx context.Context, userID uint64, assetIDs []uint64) *dto.BatchResult {
	result := &dto.BatchResult{Succeeded: []uint64{}}
	for _, id := range assetIDs {
		if err := SoftDelete(ctx, userID, id); err != nil {
			if result.Failed == nil {
				result.Failed = make(map[uint64]string)
			}
			result.Failed[id] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// Restore moves a trashed asset back to active. Ledger usage is unchanged.
func Restore(ctx context.Context, userID, assetID uint64) error {
	err := UpdateLifecycleState(ctx, nil, userID, assetID, model.StateTrashed, model.StateActive,
		map[string]interface{}{"trashed_at": nil})
	recordTransition(model.StateActive, err)
	if err != nil {
		return err
	}
	invalidateAssetListCache(userID)
	logger.L().Info("asset restored", "user_id", userID, "asset_id", assetID)
	return nil
}

// purgeClaimTTL is how long a purge owns an asset before another purge may take over.
const purgeClaimTTL = 15 * time.Minute

// PurgeAsset permanently deletes a trashed asset.
//
// The purge first claims the asset, which Restore refuses, then removes the blob; a
// blob that is already gone counts as removed. The state change and the ledger release
// commit together, guarded on the asset still being trashed, so concurrent purges
// release its bytes exactly once. If the process stops after the claim, the asset
// stays trashed and claimed, and a purge after purgeClaimTTL completes it.
func PurgeAsset(ctx context.Context, userID, assetID uint64) error {
	err := purgeAsset(ctx, userID, assetID)
	recordTransition(model.StatePurged, err)
	return err
}

func purgeAsset(ctx context.Context, userID, assetID uint64) error {
	log := logger.L().With("user_id", userID, "asset_id", assetID)
	asset, err := GetAsset(ctx, userID, assetID)
	if err != nil {
		return err
	}
	if asset.State != model.StateTrashed {
		return fmt.Errorf("%w: asset %d is %s", apperr.ErrConflict, assetID, asset.State)
	}
	if err := claimPurge(ctx, userID, assetID, time.Now()); err != nil {
		return err
	}

	if asset.StoragePath != nil {
		if err := deleteBlob(ctx, *asset.StoragePath); err != nil {
			log.Error("purge blob delete failed", "key", *asset.StoragePath, "error", err)
			unclaimPurge(ctx, log, assetID)
			return err
		}
	}

	now := time.Now()
	err = dbFor(ctx, nil).Transaction(func(tx *gorm.DB) error {
		if err := UpdateLifecycleState(ctx, tx, userID, assetID, model.StateTrashed, model.StatePurged,
			map[string]interface{}{
				"storage_path": nil,
				"purged_at":    &now,
				"purging_at":   nil,
			}); err != nil {
			return err
		}
		if err := tx.Where("asset_id = ?", assetID).Delete(&model.AssetFolder{}).Error; err != nil {
			return err
		}
		return Release(ctx, tx, userID, asset.Size)
	})
	if err != nil {
		return err
	}
	invalidateAssetListCache(userID)
	log.Info("asset purged", "bytes", asset.Size)
	return nil
}

// claimPurge marks a trashed asset as owned by this purge. A claim older than
// purgeClaimTTL is taken over.
func claimPurge(ctx context.Context, userID, assetID uint64, now time.Time) error {
	db := dbFor(ctx, nil)
	res := db.Model(&model.Asset{}).
		Where("id = ? AND user_id = ? AND state = ?", assetID, userID, model.StateTrashed).
		Where("(purging_at IS NULL OR purging_at < ?)", now.Add(-purgeClaimTTL)).
		Update("purging_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return classifyMiss(db, userID, assetID)
	}
	return nil
}

// unclaimPurge drops the claim after a failed blob delete; the blob is still there.
func unclaimPurge(ctx context.Context, log *logger.Logger, assetID uint64) {
	err := dbFor(context.WithoutCancel(ctx), nil).Model(&model.Asset{}).
		Where("id = ? AND state = ?", assetID, model.StateTrashed).
		Update("purging_at", nil).Error
	if err != nil {
		log.Warn("release purge claim failed", "error", err)
	}
}

func deleteBlob(ctx context.Context, key string) error {
	if storage.Default == nil {
		return fmt.Errorf("%w: storage not initialized", apperr.ErrStorageIO)
	}
	err := storage.Default.Delete(ctx, key)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		logger.L().Warn("blob already missing on purge", "key", key)
		return nil
	case err != nil:
		return fmt.Errorf("%w: delete %s: %v", apperr.ErrStorageIO, key, err)
	}
	return nil
}

// EmptyTrash purges every trashed asset of the user, continuing past failures.
func EmptyTrash(ctx context.Context, userID uint64) (*dto.EmptyTrashResult, error) {
	result := &dto.EmptyTrashResult{}
	var afterID uint64
	for {
		var batch []model.Asset
		if err := dbFor(ctx, nil).
			Select("id", "size").
			Where("user_id = ? AND state = ? AND id > ?", userID, model.StateTrashed, afterID).
			Order("id ASC").
			Limit(100).
			Find(&batch).Error; err != nil {
			return result, err
		}
		if len(batch) == 0 {
			return result, nil
		}
		for _, a := range batch {
			afterID = a.ID
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := PurgeAsset(ctx, userID, a.ID); err != nil {
				if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrNotFound) {
					continue
				}
				result.Failed++
				logger.L().Error("empty trash: purge failed", "user_id", userID, "asset_id", a.ID, "error", err)
				continue
			}
			result.Purged++
			result.FreedBytes += a.Size
		}
	}
}

// AssetURL returns a time-limited read URL for an asset that still has a blob.
func AssetURL(ctx context.Context, userID, assetID uint64) (string, time.Duration, error) {
	asset, err := GetAsset(ctx, userID, assetID)
	if err != nil {
		return "", 0, err
	}
	if asset.StoragePath == nil {
		return "", 0, fmt.Errorf("%w: asset %d is %s", apperr.ErrConflict, assetID, asset.State)
	}
	if storage.Default == nil {
		return "", 0, fmt.Errorf("%w: storage not initialized", apperr.ErrStorageIO)
	}
	ttl := config.AppConfig.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	u, err := storage.Default.PresignedGetURL(ctx, *asset.StoragePath, ttl)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", 0, fmt.Errorf("%w: blob for asset %d", apperr.ErrNotFound, assetID)
		}
		return "", 0, fmt.Errorf("%w: %v", apperr.ErrStorageIO, err)
	}
	return u, ttl, nil
}

// OpenAsset opens the stored content of an asset for streaming. The caller closes the reader.
func OpenAsset(ctx context.Context, userID, assetID uint64) (*model.Asset, io.ReadCloser, storage.ObjectInfo, error) {
	asset, err := GetAsset(ctx, userID, assetID)
	if err != nil {
		return nil, nil, storage.ObjectInfo{}, err
	}
	if asset.StoragePath == nil {
		return nil, nil, storage.ObjectInfo{}, fmt.Errorf("%w: asset %d is %s", apperr.ErrConflict, assetID, asset.State)
	}
	if storage.Default == nil {
		return nil, nil, storage.ObjectInfo{}, fmt.Errorf("%w: storage not initialized", apperr.ErrStorageIO)
	}
	rc, info, err := storage.Default.Open(ctx, *asset.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, storage.ObjectInfo{}, fmt.Errorf("%w: blob for asset %d", apperr.ErrNotFound, assetID)
		}
		return nil, nil, storage.ObjectInfo{}, fmt.Errorf("%w: %v", apperr.ErrStorageIO, err)
	}
	return asset, rc, info, nil
}
