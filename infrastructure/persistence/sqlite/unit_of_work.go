package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"microgrid/domain/shared"
	"microgrid/infrastructure/persistence/retry"
	"microgrid/pkg/logger"

	"go.uber.org/zap"
)

type txKey struct{}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querier returns the transaction carried by ctx, or db
func querier(ctx context.Context, db *sql.DB) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// UnitOfWork 一个 database/sql 事务。嵌入式部署没有 outbox 中继，
// 提交后的事件直接交给进程内发布者
type UnitOfWork struct {
	shared.AggregateTracker

	db        *sql.DB
	retry     retry.Config
	publisher shared.DomainEventPublisher
}

func NewUnitOfWork(db *sql.DB, retryCfg retry.Config, publisher shared.DomainEventPublisher) *UnitOfWork {
	return &UnitOfWork{db: db, retry: retryCfg, publisher: publisher}
}

func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var committed []shared.DomainEvent

	err := retry.Do(ctx, u.retry, func(ctx context.Context) error {
		u.Reset()
		committed = nil

		tx, err := u.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
			_ = tx.Rollback()
			return err
		}
		events := u.DrainEvents()
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		committed = events
		return nil
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
	db        *sql.DB
	retry     retry.Config
	publisher shared.DomainEventPublisher
}

func NewUnitOfWorkFactory(db *sql.DB, retryCfg retry.Config, publisher shared.DomainEventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, retry: retryCfg, publisher: publisher}
}

func (f *UnitOfWorkFactory) New() shared.UnitOfWork {
	return NewUnitOfWork(f.db, f.retry, f.publisher)
}

var (
	_ shared.UnitOfWork        = (*UnitOfWork)(nil)
	_ shared.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)
)
