package task

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"MediaVault/internal/dto"
	"MediaVault/internal/logger"
	"MediaVault/internal/metrics"
	"MediaVault/internal/mq"
	"MediaVault/internal/repo"
	"MediaVault/internal/service"
	"MediaVault/model"
	"MediaVault/utils"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ImportMessage is the payload sent to the worker.
type ImportMessage struct {
	TaskID  uint64 `json:"task_id"`
	Attempt int    `json:"attempt"`
}

// GetPublisher is swapped in tests.
var GetPublisher = func() (mq.TaskPublisher, error) {
	return mq.GetPublisher()
}

// CreateImportTask records a remote import and enqueues it.
func CreateImportTask(ctx context.Context, userID uint64, rawURL, fileName string) (*model.ImportTask, error) {
	if err := service.ValidateImportSourceURL(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	fileName = strings.TrimSpace(fileName)
	if fileName != "" {
		fileName = utils.SanitizeFilename(fileName)
	}
	task := &model.ImportTask{
		UserID:   userID,
		Source:   strings.TrimSpace(rawURL),
		FileName: fileName,
		Status:   model.ImportStatusPending,
	}
	if err := repo.Db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	body, err := json.Marshal(ImportMessage{TaskID: task.ID})
	if err != nil {
		_ = MarkFailed(ctx, task.ID, err)
		return nil, err
	}
	publisher, err := GetPublisher()
	if err != nil {
		_ = MarkFailed(ctx, task.ID, err)
		return nil, err
	}
	if err := publisher.PublishTask(ctx, body); err != nil {
		_ = MarkFailed(ctx, task.ID, err)
		return nil, err
	}
	return task, nil
}

// ListImportTasks lists the user's most recent import tasks.
func ListImportTasks(ctx context.Context, userID uint64, limit int) ([]model.ImportTask, error) {
	if limit <= 0 {
		limit = 20
	}
	var tasks []model.ImportTask
	err := repo.Db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// staleRunningAfter is how long a running task may go without finishing before
// another delivery takes it over.
func staleRunningAfter() time.Duration {
	timeout := config.AppConfig.ImportHTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return 2 * timeout
}

// ProcessImportTask downloads the source and ingests it as a single-file batch.
// The task is marked successful in the same transaction that inserts the asset, so a
// redelivery never ingests twice. Quota and validation failures are terminal; the
// caller decides about retrying the rest.
func ProcessImportTask(ctx context.Context, taskID uint64) (err error) {
	var task model.ImportTask
	if err := repo.Db.WithContext(ctx).Where("id = ?", taskID).Take(&task).Error; err != nil {
		return err
	}
	if task.Status == model.ImportStatusSuccess || task.AssetID != nil {
		return nil
	}
	startedAt := time.Now()
	res := repo.Db.WithContext(ctx).Model(&model.ImportTask{}).
		Where("id = ?", taskID).
		Where("(status IN ? OR (status = ? AND started_at < ?))",
			[]string{model.ImportStatusPending, model.ImportStatusRetrying},
			model.ImportStatusRunning, startedAt.Add(-staleRunningAfter())).
		Updates(map[string]interface{}{
			"status":     model.ImportStatusRunning,
			"progress":   0,
			"started_at": &startedAt,
			"error_msg":  "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	defer func() {
		if err != nil && ctx.Err() != nil {
			requeue(ctx, taskID, err)
		}
	}()

	maxBytes := int64(config.AppConfig.Media.VideoMaxBytes)
	if img := int64(config.AppConfig.Media.ImageMaxBytes); img > maxBytes {
		maxBytes = img
	}
	fetched, err := service.FetchRemote(ctx, task.Source, maxBytes)
	if err != nil {
		return err
	}
	defer fetched.Remove()

	name := task.FileName
	if name == "" {
		name = fetched.Name
	}
	result, err := service.Ingest(ctx, task.UserID,
		[]*dto.UploadFile{dto.FromFile(name, fetched.ContentType, fetched.Path, fetched.Size)},
		dto.IngestOptions{
			AllOrNothing: true,
			OnCommit: func(tx *gorm.DB, assets []*model.Asset) error {
				finishedAt := time.Now()
				res := tx.Model(&model.ImportTask{}).
					Where("id = ? AND status = ?", taskID, model.ImportStatusRunning).
					Updates(map[string]interface{}{
						"status":      model.ImportStatusSuccess,
						"progress":    100,
						"asset_id":    assets[0].ID,
						"file_name":   assets[0].OriginalName,
						"finished_at": &finishedAt,
					})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("%w: import task %d is no longer running", apperr.ErrConflict, taskID)
				}
				return nil
			},
		},
	)
	if err != nil {
		return err
	}
	assetID := result.Assets[0].ID
	metrics.RecordImport(model.ImportStatusSuccess)
	logger.L().Info("import finished", "task_id", taskID, "user_id", task.UserID, "asset_id", assetID)
	return nil
}

// requeue hands a task interrupted by cancellation back to the queue's next delivery.
func requeue(ctx context.Context, taskID uint64, cause error) {
	err := repo.Db.WithContext(context.WithoutCancel(ctx)).Model(&model.ImportTask{}).
		Where("id = ? AND status = ?", taskID, model.ImportStatusRunning).
		Updates(map[string]interface{}{
			"status":    model.ImportStatusRetrying,
			"error_msg": cause.Error(),
		}).Error
	if err != nil {
		logger.L().Warn("requeue import task failed", "task_id", taskID, "error", err)
	}
}

// IsTerminal reports errors that retrying cannot fix.
func IsTerminal(err error) bool {
	return errors.Is(err, apperr.ErrValidation) ||
		errors.Is(err, apperr.ErrQuotaExceeded) ||
		errors.Is(err, apperr.ErrLedgerMissing) ||
		errors.Is(err, service.ErrSourceRejected)
}

// MarkFailed moves a task to failed with the cause recorded.
func MarkFailed(ctx context.Context, taskID uint64, cause error) error {
	finishedAt := time.Now()
	err := repo.Db.WithContext(context.WithoutCancel(ctx)).Model(&model.ImportTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":      model.ImportStatusFailed,
			"error_msg":   cause.Error(),
			"finished_at": &finishedAt,
		}).Error
	if err != nil {
		return err
	}
	metrics.RecordImport(model.ImportStatusFailed)
	return nil
}
