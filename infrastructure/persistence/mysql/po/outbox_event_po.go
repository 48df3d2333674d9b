package po

import (
	"encoding/json"
	"time"

	"microgrid/domain/shared"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxPublished  OutboxStatus = "PUBLISHED"
	OutboxFailed     OutboxStatus = "FAILED"
)

const maxLastErrorLen = 512

// OutboxEventPO 待转发的领域事件；ID 为 UUIDv7，按时间有序
type OutboxEventPO struct {
	ID          string       `gorm:"primaryKey;size:36"`
	AggregateID string       `gorm:"size:64;index;not null"`
	EventType   string       `gorm:"size:100;not null"`
	Payload     string       `gorm:"type:json;not null"`
	Status      OutboxStatus `gorm:"size:20;not null;default:PENDING;index:idx_outbox_poll,priority:1"`
	Attempts    int          `gorm:"not null;default:0"`
	LastError   string       `gorm:"size:512"`
	CreatedAt   time.Time    `gorm:"index:idx_outbox_poll,priority:2"`
	UpdatedAt   time.Time
	PublishedAt *time.Time
}

func (OutboxEventPO) TableName() string {
	return "outbox_events"
}

func NewOutboxEvent(event shared.DomainEvent) (*OutboxEventPO, error) {
	payload, err := EncodeEvent(event)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return &OutboxEventPO{
		ID:          id.String(),
		AggregateID: event.GetAggregateID(),
		EventType:   event.EventName(),
		Payload:     string(payload),
		Status:      OutboxPending,
	}, nil
}

// EncodeEvent 扁平 JSON：事件负载 + event_name/aggregate_id/occurred_on，
// 同名时信封字段覆盖负载
func EncodeEvent(event shared.DomainEvent) ([]byte, error) {
	doc := make(map[string]any)
	if pe, ok := event.(shared.PayloadEvent); ok {
		for k, v := range pe.Payload() {
			doc[k] = v
		}
	}
	doc["event_name"] = event.EventName()
	doc["aggregate_id"] = event.GetAggregateID()
	doc["occurred_on"] = event.OccurredOn()
	return json.Marshal(doc)
}

func (o *OutboxEventPO) Decode() (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(o.Payload), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Fail 记录一次失败，达到 maxAttempts 后不再重试
func (o *OutboxEventPO) Fail(cause error, maxAttempts int) {
	o.Attempts++
	o.Status = OutboxPending
	if o.Attempts >= maxAttempts {
		o.Status = OutboxFailed
	}
	o.LastError = ""
	if cause != nil {
		msg := cause.Error()
		if len(msg) > maxLastErrorLen {
			msg = msg[:maxLastErrorLen]
		}
		o.LastError = msg
	}
}
