package service

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"MediaVault/internal/dto"
	"MediaVault/internal/logger"
	"MediaVault/internal/metrics"
	"MediaVault/model"
	"MediaVault/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reserve adds delta to the user's used bytes if the result stays within the limit.
// The check and the increment are one conditional UPDATE, so concurrent reservations
// for the same user serialize on the ledger row.
func Reserve(ctx context.Context, tx *gorm.DB, userID, delta uint64) error {
	if delta == 0 {
		return nil
	}
	db := dbFor(ctx, tx)
	res := db.Model(&model.StorageLedger{}).
		Where("user_id = ? AND used_bytes + ? <= limit_bytes", userID, delta).
		Updates(map[string]interface{}{
			"used_bytes": gorm.Expr("used_bytes + ?", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("reserve %d bytes: %w", delta, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	ledger, err := loadLedger(db, userID)
	if err != nil {
		return err
	}
	metrics.RecordQuotaRejection()
	return fmt.Errorf("%w: need %d bytes, %d of %d used", apperr.ErrQuotaExceeded, delta, ledger.UsedBytes, ledger.LimitBytes)
}

// Release subtracts delta from the user's used bytes. Releasing more than is held
// means the ledger has drifted and is reported, never clamped.
func Release(ctx context.Context, tx *gorm.DB, userID, delta uint64) error {
	if delta == 0 {
		return nil
	}
	db := dbFor(ctx, tx)
	res := db.Model(&model.StorageLedger{}).
		Where("user_id = ? AND used_bytes >= ?", userID, delta).
		Updates(map[string]interface{}{
			"used_bytes": gorm.Expr("used_bytes - ?", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("release %d bytes: %w", delta, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	ledger, err := loadLedger(db, userID)
	if err != nil {
		return err
	}
	err = fmt.Errorf("%w: release of %d bytes exceeds %d used", apperr.ErrLedgerCorrupted, delta, ledger.UsedBytes)
	reportLedgerAnomaly(userID, err)
	return err
}

// CurrentUsage returns used and limit bytes plus derived availability.
func CurrentUsage(ctx context.Context, userID uint64) (*dto.QuotaUsage, error) {
	db := dbFor(ctx, nil)
	var ledger model.StorageLedger
	err := db.Where("user_id = ?", userID).Take(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var live int64
		if err := db.Model(&model.Asset{}).
			Where("user_id = ? AND state IN ?", userID, liveStates).
			Count(&live).Error; err != nil {
			return nil, err
		}
		if live > 0 {
			err := fmt.Errorf("%w: user %d has %d live assets", apperr.ErrLedgerMissing, userID, live)
			reportLedgerAnomaly(userID, err)
			return nil, err
		}
		// a user with nothing stored can safely be provisioned on first read
		if err := EnsureLedger(ctx, nil, userID, mediaPolicy().DefaultQuotaBytes); err != nil {
			return nil, err
		}
		if err := db.Where("user_id = ?", userID).Take(&ledger).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return usageOf(&ledger), nil
}

func usageOf(ledger *model.StorageLedger) *dto.QuotaUsage {
	usage := &dto.QuotaUsage{
		UsedBytes:  ledger.UsedBytes,
		LimitBytes: ledger.LimitBytes,
	}
	if ledger.LimitBytes > ledger.UsedBytes {
		usage.AvailableBytes = ledger.LimitBytes - ledger.UsedBytes
	}
	if ledger.LimitBytes > 0 {
		usage.UsagePercent = float64(ledger.UsedBytes) / float64(ledger.LimitBytes) * 100
	}
	return usage
}

// EnsureLedger creates the user's ledger row if it does not exist yet.
func EnsureLedger(ctx context.Context, tx *gorm.DB, userID, limit uint64) error {
	row := &model.StorageLedger{UserID: userID, UsedBytes: 0, LimitBytes: limit}
	return dbFor(ctx, tx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// SetLimit changes a user's quota. A limit below current usage blocks new reservations only.
func SetLimit(ctx context.Context, userID, limit uint64) error {
	res := dbFor(ctx, nil).Model(&model.StorageLedger{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"limit_bytes": limit,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", apperr.ErrLedgerMissing, userID)
	}
	return nil
}

// Reconcile compares the ledger with the sum of the user's live assets.
// With fix set, used bytes are rewritten to the computed total.
func Reconcile(ctx context.Context, userID uint64, fix bool) (*dto.LedgerReport, error) {
	report := &dto.LedgerReport{UserID: userID}
	err := dbFor(ctx, nil).Transaction(func(tx *gorm.DB) error {
		var ledger model.StorageLedger
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&ledger).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d", apperr.ErrLedgerMissing, userID)
		}
		if err != nil {
			return err
		}

		var agg struct {
			Total uint64
			Count int64
		}
		if err := tx.Model(&model.Asset{}).
			Select("COALESCE(SUM(size), 0) AS total, COUNT(*) AS count").
			Where("user_id = ? AND state IN ?", userID, liveStates).
			Scan(&agg).Error; err != nil {
			return err
		}

		report.LedgerBytes = ledger.UsedBytes
		report.ActualBytes = agg.Total
		report.LiveAssets = agg.Count
		report.Drift = int64(ledger.UsedBytes) - int64(agg.Total)
		if !fix || report.Drift == 0 {
			return nil
		}
		if err := tx.Model(&model.StorageLedger{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"used_bytes": agg.Total,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		report.Fixed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if report.Drift != 0 {
		logger.L().Warn("ledger drift detected",
			"user_id", userID,
			"ledger_bytes", report.LedgerBytes,
			"actual_bytes", report.ActualBytes,
			"fixed", report.Fixed,
		)
	}
	return report, nil
}

// ListLedgerUsers returns user ids with a ledger row, for periodic reconciliation.
func ListLedgerUsers(ctx context.Context, afterID uint64, limit int) ([]uint64, error) {
	var ids []uint64
	err := dbFor(ctx, nil).Model(&model.StorageLedger{}).
		Where("user_id > ?", afterID).
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, err
}

func loadLedger(db *gorm.DB, userID uint64) (*model.StorageLedger, error) {
	var ledger model.StorageLedger
	err := db.Where("user_id = ?", userID).Take(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = fmt.Errorf("%w: user %d", apperr.ErrLedgerMissing, userID)
		reportLedgerAnomaly(userID, err)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// reportLedgerAnomaly logs and mails operators; the mail is best effort.
func reportLedgerAnomaly(userID uint64, cause error) {
	logger.L().Error("storage ledger anomaly", "user_id", userID, "error", cause)
	if len(config.AppConfig.AlertEmailTo) == 0 {
		return
	}
	go func() {
		if err := utils.SendLedgerAlert(userID, cause.Error()); err != nil {
			logger.L().Warn("send ledger alert failed", "user_id", userID, "error", err)
		}
	}()
}
