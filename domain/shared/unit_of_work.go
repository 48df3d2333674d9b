package shared

import "context"

// UnitOfWork 事务边界。Execute 成功返回时，登记过的聚合的事件
// 已写入 outbox 或交给进程内发布者
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
	RegisterNew(aggregate AggregateRoot)
	RegisterDirty(aggregate AggregateRoot)
	RegisterRemoved(aggregate AggregateRoot)
}

type UnitOfWorkFactory interface {
	New() UnitOfWork
}

// OutboxRepository 与业务数据同一事务保存事件
type OutboxRepository interface {
	SaveEvent(ctx context.Context, event DomainEvent) error
}

// AggregateTracker 各 UnitOfWork 实现共用的登记表，嵌入后即满足 Register* 方法
type AggregateTracker struct {
	tracked []AggregateRoot
}

func (t *AggregateTracker) RegisterNew(a AggregateRoot)     { t.track(a) }
func (t *AggregateTracker) RegisterDirty(a AggregateRoot)   { t.track(a) }
func (t *AggregateTracker) RegisterRemoved(a AggregateRoot) { t.track(a) }

// 同一聚合重复登记只保留一次
func (t *AggregateTracker) track(a AggregateRoot) {
	for _, existing := range t.tracked {
		if existing == a {
			return
		}
	}
	t.tracked = append(t.tracked, a)
}

// Reset 每次（重试）执行前清空
func (t *AggregateTracker) Reset() {
	t.tracked = nil
}

// DrainEvents 按登记顺序取走所有聚合的事件
func (t *AggregateTracker) DrainEvents() []DomainEvent {
	var events []DomainEvent
	for _, a := range t.tracked {
		events = append(events, a.PullEvents()...)
	}
	return events
}

// PublishAll 逐条发布，单条失败交给 onError 后继续
func PublishAll(p DomainEventPublisher, events []DomainEvent, onError func(DomainEvent, error)) {
	if p == nil {
		return
	}
	for _, e := range events {
		if err := p.Publish(e); err != nil && onError != nil {
			onError(e, err)
		}
	}
}
