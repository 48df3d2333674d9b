package mysql

import (
	"context"
	"fmt"
	"time"

	"microgrid/domain/shared"
	"microgrid/infrastructure/persistence"
	"microgrid/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRepository outbox_events 表。
// SaveEvent 在 UoW 事务内写入；其余方法供 OutboxWorker 使用
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// SaveEvent 有事务用事务，没有则单条插入
func (r *OutboxRepository) SaveEvent(ctx context.Context, event shared.DomainEvent) error {
	if err := shared.ValidateEvent(event); err != nil {
		return fmt.Errorf("invalid domain event: %w", err)
	}
	rec, err := po.NewOutboxEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.EventName(), err)
	}
	if err := persistence.DBFromContext(ctx, r.db).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save event to outbox: %w", err)
	}
	return nil
}

// ClaimPending 取出最早的 limit 条 PENDING 并置为 PROCESSING。
// SKIP LOCKED 让多个 worker 互不阻塞、不重复领取
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*po.OutboxEventPO, error) {
	var claimed []*po.OutboxEventPO
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", po.OutboxPending).
			Order("created_at, id").
			Limit(limit).
			Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]string, len(claimed))
		for i, e := range claimed {
			ids[i] = e.ID
			e.Status = po.OutboxProcessing
		}
		return tx.Model(&po.OutboxEventPO{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"status": po.OutboxProcessing, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	return claimed, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&po.OutboxEventPO{}).
		Where("id = ? AND status = ?", id, po.OutboxProcessing).
		Updates(map[string]any{"status": po.OutboxPublished, "published_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("outbox event %s is not being processed", id)
	}
	return nil
}

// MarkFailed 失败计数 +1，未到上限则回到 PENDING
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, maxAttempts int, cause error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec po.OutboxEventPO
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to load outbox event %s: %w", id, err)
		}
		rec.Fail(cause, maxAttempts)
		return tx.Model(&rec).Select("status", "attempts", "last_error", "updated_at").Updates(&rec).Error
	})
}

// RequeueStale 把 PROCESSING 超过 olderThan 的事件放回队列（worker 崩溃后遗留）
func (r *OutboxRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).Model(&po.OutboxEventPO{}).
		Where("status = ? AND updated_at < ?", po.OutboxProcessing, time.Now().Add(-olderThan)).
		Updates(map[string]any{"status": po.OutboxPending, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// CountByStatus worker 健康检查用
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&po.OutboxEventPO{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

var (
	_ shared.OutboxRepository = (*OutboxRepository)(nil)
	_ OutboxStore             = (*OutboxRepository)(nil)
)
