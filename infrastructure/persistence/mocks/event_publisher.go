package mocks

import (
	"sync"

	"microgrid/domain/shared"
)

// MockEventPublisher 在 EventBus 之上记录发布顺序
type MockEventPublisher struct {
	*shared.EventBus

	mu   sync.Mutex
	seen []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{EventBus: shared.NewEventBus()}
}

func (p *MockEventPublisher) Publish(event shared.DomainEvent) error {
	p.mu.Lock()
	p.seen = append(p.seen, event)
	p.mu.Unlock()
	return p.EventBus.Publish(event)
}

func (p *MockEventPublisher) Published() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.seen...)
}

// EventNames 按发布顺序
func (p *MockEventPublisher) EventNames() []string {
	seen := p.Published()
	names := make([]string, 0, len(seen))
	for _, e := range seen {
		names = append(names, e.EventName())
	}
	return names
}

// Reset 只清记录，订阅保留
func (p *MockEventPublisher) Reset() {
	p.mu.Lock()
	p.seen = nil
	p.mu.Unlock()
}

var _ shared.DomainEventPublisher = (*MockEventPublisher)(nil)
