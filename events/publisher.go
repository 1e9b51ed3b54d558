package events

import (
	"context"
	"time"
)

type EventType string

const (
	EventSettlementsGenerated EventType = "settlements.generated"
	EventSettlementRecorded   EventType = "settlement.recorded"
	EventPaymentRecorded      EventType = "payment.recorded"
	EventPaymentUndone        EventType = "payment.undone"
	EventSettlementAwaiting   EventType = "settlement.awaiting_confirmation"
	EventSettlementConfirmed  EventType = "settlement.confirmed"
	EventSettlementRejected   EventType = "settlement.rejected"
	EventSettlementsReset     EventType = "settlements.reset"
)

type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	GroupID      string    `json:"group_id"`
	SettlementID string    `json:"settlement_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	Payload      any       `json:"payload,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher delivers events to whoever listens for a group.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
