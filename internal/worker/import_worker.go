package worker

import (
	"MediaVault/config"
	"MediaVault/internal/logger"
	"MediaVault/internal/mq"
	"MediaVault/internal/repo"
	"MediaVault/internal/service"
	"MediaVault/internal/task"
	"MediaVault/model"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type dlqMessage struct {
	TaskID   uint64    `json:"task_id"`
	Attempt  int       `json:"attempt"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// RunImportWorker consumes import tasks from RabbitMQ until ctx is done.
func RunImportWorker(ctx context.Context) error {
	log := logger.L().With("component", "import-worker")
	client, err := mq.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}

	prefetch := config.AppConfig.RabbitMQPrefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := client.Channel.Consume(mq.QueueImport, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	concurrency := config.AppConfig.ImportWorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	limiter := newLimiter(config.AppConfig.ImportRate, config.AppConfig.ImportBurst)

	log.Info("import worker started", "concurrency", concurrency, "prefetch", prefetch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("import worker: delivery channel closed")
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				handleImportMessage(ctx, log, client, limiter, d)
			}(delivery)
		}
	}
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func handleImportMessage(ctx context.Context, log *logger.Logger, client *mq.Client, limiter *rate.Limiter, delivery amqp.Delivery) {
	var msg task.ImportMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Warn("invalid import message", "error", err)
		_ = delivery.Ack(false)
		return
	}

	if err := limiter.Wait(ctx); err != nil {
		_ = delivery.Nack(false, true)
		return
	}

	if err := task.ProcessImportTask(ctx, msg.TaskID); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = delivery.Nack(false, true)
			return
		}
		log.Warn("import task failed", "task_id", msg.TaskID, "attempt", msg.Attempt, "error", err)
		if shouldRetry(err) {
			if err := scheduleRetry(ctx, client, msg, err); err != nil {
				log.Error("retry schedule failed", "task_id", msg.TaskID, "error", err)
				_ = delivery.Nack(false, true)
				return
			}
		} else {
			if err := markFailed(ctx, log, client, msg, err); err != nil {
				log.Error("mark failed failed", "task_id", msg.TaskID, "error", err)
				_ = delivery.Nack(false, true)
				return
			}
		}
	}

	_ = delivery.Ack(false)
}

func shouldRetry(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) || task.IsTerminal(err) {
		return false
	}
	var httpErr *service.HTTPStatusError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusRequestTimeout || httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return httpErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func scheduleRetry(ctx context.Context, client *mq.Client, msg task.ImportMessage, procErr error) error {
	maxRetry := config.AppConfig.ImportRetryMax
	if maxRetry < 0 {
		maxRetry = 0
	}
	nextAttempt := msg.Attempt + 1
	if maxRetry == 0 || nextAttempt > maxRetry {
		return markFailed(ctx, logger.L(), client, msg, procErr)
	}

	delay := pickRetryDelay(nextAttempt, config.AppConfig.ImportRetryDelays)
	nextRetryAt := time.Now().Add(delay)
	if err := repo.Db.WithContext(ctx).Model(&model.ImportTask{}).
		Where("id = ?", msg.TaskID).
		Updates(map[string]interface{}{
			"status":        model.ImportStatusRetrying,
			"error_msg":     procErr.Error(),
			"retry_count":   nextAttempt,
			"next_retry_at": &nextRetryAt,
		}).Error; err != nil {
		return err
	}

	msg.Attempt = nextAttempt
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.PublishRetry(ctx, body, delay)
}

func markFailed(ctx context.Context, log *logger.Logger, client *mq.Client, msg task.ImportMessage, procErr error) error {
	if err := task.MarkFailed(ctx, msg.TaskID, procErr); err != nil {
		return err
	}
	body, err := json.Marshal(dlqMessage{
		TaskID:   msg.TaskID,
		Attempt:  msg.Attempt,
		Error:    procErr.Error(),
		FailedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	if err := client.PublishDLQ(ctx, body); err != nil {
		log.Warn("dlq publish failed", "task_id", msg.TaskID, "error", err)
	}
	return nil
}

func pickRetryDelay(attempt int, delays []time.Duration) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	index := attempt - 1
	if index < 0 {
		index = 0
	}
	if index >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[index]
}
