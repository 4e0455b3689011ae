// Package events fans message-lifecycle events out to interested consumers:
// connected websocket clients (operator UIs, web-chat visitors) and, when
// configured, a RabbitMQ topic exchange for downstream services.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names published by the dispatch and scheduling services.
const (
	EventMessageReceived = "message.received"
	EventMessageSent     = "message.sent"
	EventMessageFailed   = "message.failed"
	EventMessageStatus   = "message.status"
	EventContactsMerged  = "contacts.merged"
	EventChatDelivery    = "chat.delivery"
)

// Event is one lifecycle event envelope.
type Event struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an envelope with id and emission time.
func NewEvent(name string, payload interface{}) Event {
	return Event{
		ID:      uuid.NewString(),
		Name:    name,
		Time:    time.Now().UTC(),
		Payload: payload,
	}
}

// Publisher delivers events to one transport. Publish must not block message
// processing on slow consumers; implementations drop or buffer instead.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Multi fans one event out to several publishers. Errors are collected but
// a failing transport never blocks another.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) Close() error {
	var firstErr error
	for _, p := range m {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Nop discards all events. Used when no transport is configured and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
