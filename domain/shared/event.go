package shared

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DomainEvent 不可变的事件记录
type DomainEvent interface {
	EventName() string
	OccurredOn() time.Time
	GetAggregateID() string
}

// PayloadEvent 可以展开成扁平 map 的事件，outbox 和 websocket 推送都用它序列化
type PayloadEvent interface {
	DomainEvent
	Payload() map[string]any
}

type DomainEventPublisher interface {
	Publish(event DomainEvent) error
	Subscribe(eventName string, handler EventHandler) error
	Unsubscribe(eventName string, handler EventHandler) error
}

// EventHandler Name 在同一事件名下唯一，用于去重与退订
type EventHandler interface {
	Handle(event DomainEvent) error
	Name() string
}

// AllEvents 通配订阅
const AllEvents = "*"

const maxPublishHistory = 1000

var ErrInvalidEvent = errors.New("invalid domain event")

type EventPublishResult struct {
	EventName   string    `json:"event_name"`
	AggregateID string    `json:"aggregate_id"`
	Success     bool      `json:"success"`
	Message     string    `json:"message,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// ValidateEvent 返回的错误都包裹 ErrInvalidEvent
func ValidateEvent(event DomainEvent) error {
	var reason string
	switch {
	case event == nil:
		reason = "event is nil"
	case event.EventName() == "":
		reason = "event name is empty"
	case event.GetAggregateID() == "":
		reason = "aggregate id is empty"
	case event.OccurredOn().IsZero():
		reason = "occurred_on is zero"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidEvent, reason)
}

// EventBus 进程内同步总线。
// 先执行精确订阅的处理器，再执行通配订阅的，各自按订阅顺序；
// 某个处理器出错不影响后面的处理器
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler

	histMu  sync.Mutex
	history []EventPublishResult
	next    int // history 满后的环形写入位置
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string][]EventHandler)}
}

func (bus *EventBus) Publish(event DomainEvent) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}

	name := event.EventName()
	bus.mu.RLock()
	targets := slices.Concat(bus.handlers[name], bus.handlers[AllEvents])
	bus.mu.RUnlock()

	var errs []error
	for _, h := range targets {
		if err := h.Handle(event); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", h.Name(), err))
		}
	}

	res := EventPublishResult{
		EventName:   name,
		AggregateID: event.GetAggregateID(),
		Success:     len(errs) == 0,
		PublishedAt: time.Now(),
	}
	switch {
	case len(targets) == 0:
		res.Message = "no handlers"
	case len(errs) > 0:
		res.Message = fmt.Sprintf("%d of %d handlers failed", len(errs), len(targets))
	}
	bus.record(res)

	if len(errs) > 0 {
		return fmt.Errorf("publish %s: %w", name, errors.Join(errs...))
	}
	return nil
}

func (bus *EventBus) record(res EventPublishResult) {
	bus.histMu.Lock()
	defer bus.histMu.Unlock()
	if len(bus.history) < maxPublishHistory {
		bus.history = append(bus.history, res)
		return
	}
	bus.history[bus.next] = res
	bus.next = (bus.next + 1) % maxPublishHistory
}

// GetPublishHistory 按发布时间从旧到新
func (bus *EventBus) GetPublishHistory() []EventPublishResult {
	bus.histMu.Lock()
	defer bus.histMu.Unlock()
	return slices.Concat(bus.history[bus.next:], bus.history[:bus.next])
}

func (bus *EventBus) Subscribe(eventName string, handler EventHandler) error {
	if eventName == "" {
		return errors.New("event name cannot be empty")
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if slices.ContainsFunc(bus.handlers[eventName], sameName(handler)) {
		return fmt.Errorf("handler %s already subscribed to %s", handler.Name(), eventName)
	}
	bus.handlers[eventName] = append(bus.handlers[eventName], handler)
	return nil
}

// Unsubscribe 未订阅时是空操作
func (bus *EventBus) Unsubscribe(eventName string, handler EventHandler) error {
	if handler == nil {
		return nil
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	// Clone 避免影响 Publish 中正在遍历的切片
	bus.handlers[eventName] = slices.DeleteFunc(slices.Clone(bus.handlers[eventName]), sameName(handler))
	return nil
}

func (bus *EventBus) HandlerCount(eventName string) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.handlers[eventName])
}

func sameName(h EventHandler) func(EventHandler) bool {
	return func(other EventHandler) bool { return other.Name() == h.Name() }
}

// FuncHandler 函数适配为 EventHandler
type FuncHandler struct {
	name string
	fn   func(DomainEvent) error
}

func NewFuncHandler(name string, fn func(DomainEvent) error) *FuncHandler {
	if name == "" {
		name = fmt.Sprintf("func-%d", time.Now().UnixNano())
	}
	return &FuncHandler{name: name, fn: fn}
}

func (h *FuncHandler) Handle(event DomainEvent) error { return h.fn(event) }
func (h *FuncHandler) Name() string                   { return h.name }

var _ DomainEventPublisher = (*EventBus)(nil)
