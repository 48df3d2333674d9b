package mysql

import (
	"context"
	"fmt"
	"time"

	"microgrid/config"
	"microgrid/infrastructure/persistence/mysql/po"
	"microgrid/pkg/logger"

	"go.uber.org/zap"
)

// OutboxPublisher 把一条已序列化的事件投递出去
type OutboxPublisher interface {
	Publish(ctx context.Context, eventType, payload string) error
}

// LoggingOutboxPublisher 没有消息中间件时只打日志
type LoggingOutboxPublisher struct{}

func (LoggingOutboxPublisher) Publish(ctx context.Context, eventType, payload string) error {
	logger.FromContext(ctx).Info("Outbox event published",
		zap.String("event_type", eventType),
		zap.String("payload", payload))
	return nil
}

// OutboxStore worker 依赖的存储操作，*OutboxRepository 实现
type OutboxStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*po.OutboxEventPO, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, maxAttempts int, cause error) error
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// BatchResult 一轮轮询的统计
type BatchResult struct {
	Published int
	Failed    int
	Requeued  int64
}

type OutboxWorker struct {
	store     OutboxStore
	publisher OutboxPublisher
	cfg       config.OutboxConfig
}

func NewOutboxWorker(store OutboxStore, publisher OutboxPublisher, cfg config.OutboxConfig) (*OutboxWorker, error) {
	switch {
	case store == nil:
		return nil, fmt.Errorf("outbox store is required")
	case publisher == nil:
		return nil, fmt.Errorf("outbox publisher is required")
	case cfg.PollInterval <= 0:
		return nil, fmt.Errorf("poll interval must be positive")
	case cfg.BatchSize <= 0:
		return nil, fmt.Errorf("batch size must be positive")
	case cfg.MaxRetries <= 0:
		return nil, fmt.Errorf("max retries must be positive")
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = 10 * cfg.PollInterval
	}
	return &OutboxWorker{store: store, publisher: publisher, cfg: cfg}, nil
}

// Run 轮询直到 ctx 取消
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		res, err := w.ProcessBatch(ctx)
		if err != nil {
			logger.Error("Outbox batch failed", zap.Error(err))
			continue
		}
		if res.Published+res.Failed > 0 || res.Requeued > 0 {
			logger.Debug("Outbox batch processed",
				zap.Int("published", res.Published),
				zap.Int("failed", res.Failed),
				zap.Int64("requeued", res.Requeued))
		}
	}
}

// ProcessBatch 回收超时领取的事件后，领取一批并逐条投递
func (w *OutboxWorker) ProcessBatch(ctx context.Context) (BatchResult, error) {
	var res BatchResult

	requeued, err := w.store.RequeueStale(ctx, w.cfg.ClaimTimeout)
	if err != nil {
		return res, fmt.Errorf("requeue stale events: %w", err)
	}
	res.Requeued = requeued

	events, err := w.store.ClaimPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return res, err
	}

	for _, e := range events {
		log := logger.With(zap.String("event_id", e.ID), zap.String("event_type", e.EventType))

		if err := w.publisher.Publish(ctx, e.EventType, e.Payload); err != nil {
			res.Failed++
			log.Warn("Outbox publish failed", zap.Int("attempts", e.Attempts+1), zap.Error(err))
			if err := w.store.MarkFailed(ctx, e.ID, w.cfg.MaxRetries, err); err != nil {
				log.Error("Failed to record outbox failure", zap.Error(err))
			}
			continue
		}
		if err := w.store.MarkPublished(ctx, e.ID); err != nil {
			// 已投递但未标记，超时后会被重投；消费端按 event id 去重
			log.Error("Failed to mark outbox event published", zap.Error(err))
			continue
		}
		res.Published++
	}
	return res, nil
}
