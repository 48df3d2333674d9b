package mysql

import (
	"context"
	"fmt"

	"microgrid/domain/shared"
	"microgrid/infrastructure/persistence"
	"microgrid/infrastructure/persistence/retry"
	"microgrid/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UnitOfWork 一次 Execute 对应一个 GORM 事务。
// 登记聚合的事件在同一事务内写入 outbox，提交后再交给进程内发布者
type UnitOfWork struct {
	shared.AggregateTracker

	db        *gorm.DB
	outbox    *OutboxRepository
	retry     retry.Config
	publisher shared.DomainEventPublisher
}

func NewUnitOfWork(db *gorm.DB, retryCfg retry.Config, publisher shared.DomainEventPublisher) *UnitOfWork {
	return &UnitOfWork{
		db:        db,
		outbox:    NewOutboxRepository(db),
		retry:     retryCfg,
		publisher: publisher,
	}
}

// Execute 可重试错误（版本冲突、死锁）会整体重跑 fn
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var committed []shared.DomainEvent

	err := retry.Do(ctx, u.retry, func(ctx context.Context) error {
		u.Reset()
		committed = nil

		return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txCtx := persistence.ContextWithTx(ctx, tx)
			if err := fn(txCtx); err != nil {
				return err
			}

			events := u.DrainEvents()
			for _, e := range events {
				if err := u.outbox.SaveEvent(txCtx, e); err != nil {
					return fmt.Errorf("failed to save event to outbox: %w", err)
				}
			}
			committed = events
			return nil
		})
	})
	if err != nil {
		return err
	}

	shared.PublishAll(u.publisher, committed, func(e shared.DomainEvent, err error) {
		logger.FromContext(ctx).Warn("In-process event dispatch failed",
			zap.String("event", e.EventName()),
			zap.String("aggregate_id", e.GetAggregateID()),
			zap.Error(err))
	})
	return nil
}

type UnitOfWorkFactory struct {
	db        *gorm.DB
	retry     retry.Config
	publisher shared.DomainEventPublisher
}

// NewUnitOfWorkFactory publisher 可为 nil
func NewUnitOfWorkFactory(db *gorm.DB, retryCfg retry.Config, publisher shared.DomainEventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, retry: retryCfg, publisher: publisher}
}

func (f *UnitOfWorkFactory) New() shared.UnitOfWork {
	return NewUnitOfWork(f.db, f.retry, f.publisher)
}

var (
	_ shared.UnitOfWork        = (*UnitOfWork)(nil)
	_ shared.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)
)
