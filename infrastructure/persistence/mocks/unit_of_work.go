package mocks

import (
	"context"

	"microgrid/domain/shared"
	"microgrid/pkg/logger"

	"go.uber.org/zap"
)

// MockUnitOfWork 没有真实事务；fn 成功后把事件直接交给 publisher
type MockUnitOfWork struct {
	shared.AggregateTracker
	publisher shared.DomainEventPublisher
}

// NewMockUnitOfWork publisher 可为 nil
func NewMockUnitOfWork(publisher shared.DomainEventPublisher) *MockUnitOfWork {
	return &MockUnitOfWork{publisher: publisher}
}

func (u *MockUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	u.Reset()
	if err := fn(ctx); err != nil {
		return err
	}
	shared.PublishAll(u.publisher, u.DrainEvents(), func(e shared.DomainEvent, err error) {
		logger.Warn("Event dispatch failed",
			zap.String("event", e.EventName()),
			zap.String("aggregate_id", e.GetAggregateID()),
			zap.Error(err))
	})
	return nil
}

type MockUnitOfWorkFactory struct {
	publisher shared.DomainEventPublisher
}

func NewMockUnitOfWorkFactory(publisher shared.DomainEventPublisher) *MockUnitOfWorkFactory {
	return &MockUnitOfWorkFactory{publisher: publisher}
}

func (f *MockUnitOfWorkFactory) New() shared.UnitOfWork {
	return NewMockUnitOfWork(f.publisher)
}

var (
	_ shared.UnitOfWork        = (*MockUnitOfWork)(nil)
	_ shared.UnitOfWorkFactory = (*MockUnitOfWorkFactory)(nil)
)
