package shared

// AggregateRoot 一致性边界的入口。修改只经由聚合根的方法，
// 期间产生的事件暂存在聚合内，由工作单元在事务结束时取走
type AggregateRoot interface {
	ID() string
	// Version 乐观锁版本号
	Version() int
	PullEvents() []DomainEvent
}

// EventRecorder 嵌入聚合根即可获得 Record/PullEvents
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(e DomainEvent) {
	r.pending = append(r.pending, e)
}

// PullEvents 取出并清空
func (r *EventRecorder) PullEvents() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}

// PendingEvents 未取走的事件数
func (r *EventRecorder) PendingEvents() int {
	return len(r.pending)
}
