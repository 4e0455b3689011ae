package store

import (
	"time"

	"github.com/google/uuid"
)

// GenNewID returns a new time-ordered UUID (v7) for primary keys.
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// Channel identifies one supported communication medium.
// The set is closed: senders are registered per channel at startup and an
// unknown channel is a configuration error, not an extension point.
type Channel string

const (
	ChannelSMS       Channel = "sms"
	ChannelChat      Channel = "chat"
	ChannelEmail     Channel = "email"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelMessenger Channel = "messenger"
)

// AllChannels lists every channel in the closed set.
var AllChannels = []Channel{ChannelSMS, ChannelChat, ChannelEmail, ChannelWhatsApp, ChannelMessenger}

// ParseChannel validates a channel string from an API path or payload.
func ParseChannel(s string) (Channel, bool) {
	for _, c := range AllChannels {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Direction of a message relative to this system.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageStatus is the message delivery state machine:
// draft → scheduled → sent → delivered → read, with failed reachable
// from scheduled or sent.
type MessageStatus string

const (
	StatusDraft     MessageStatus = "draft"
	StatusScheduled MessageStatus = "scheduled"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Attachment is one media item carried by a message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// Metadata keys used for carrier correlation.
const (
	MetaExternalID   = "external_id"   // carrier-side message identifier
	MetaErrorCode    = "error_code"    // carrier error code on failure
	MetaErrorMessage = "error_message" // human-readable carrier error
	MetaSendError    = "send_error"    // local send failure text
)

// Message is the channel-agnostic record of one communication unit.
// Created by inbound normalization or an outbound send request; mutated
// only by status transitions.
type Message struct {
	ID             uuid.UUID         `json:"id"`
	ConversationID uuid.UUID         `json:"conversation_id"`
	ContactID      uuid.UUID         `json:"contact_id"`
	UserID         uuid.UUID         `json:"user_id,omitempty"` // internal sender, zero for inbound
	Channel        Channel           `json:"channel"`
	Direction      Direction         `json:"direction"`
	Content        string            `json:"content"`
	Attachments    []Attachment      `json:"attachments,omitempty"`
	Status         MessageStatus     `json:"status"`
	ScheduledFor   *time.Time        `json:"scheduled_for,omitempty"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ScheduleStatus is the deferred-send state machine. A row is claimed by
// flipping pending → processing with a conditional update; sent, failed and
// cancelled are terminal.
type ScheduleStatus string

const (
	SchedulePending    ScheduleStatus = "pending"
	ScheduleProcessing ScheduleStatus = "processing"
	ScheduleSent       ScheduleStatus = "sent"
	ScheduleFailed     ScheduleStatus = "failed"
	ScheduleCancelled  ScheduleStatus = "cancelled"
)

// ScheduledMessage is a deferred-send record, one-to-one with a Message.
type ScheduledMessage struct {
	ID           uuid.UUID         `json:"id"`
	MessageID    uuid.UUID         `json:"message_id"`
	ScheduledFor time.Time         `json:"scheduled_for"`
	Status       ScheduleStatus    `json:"status"`
	TemplateID   string            `json:"template_id,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Contact is the identity record that joins all channel traffic.
// Email/phone uniqueness is a soft constraint: exact collisions are rejected
// at creation, near-duplicates are reconciled through the merge workflow.
type Contact struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name,omitempty"`
	Email         string            `json:"email,omitempty"`
	Phone         string            `json:"phone,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	CustomFields  map[string]string `json:"custom_fields,omitempty"`
	SocialHandles map[string]string `json:"social_handles,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Conversation groups messages exchanged with one contact over one channel.
// Address is the carrier-facing peer address (E.164 number, email, handle)
// with any channel prefix already stripped.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	ContactID uuid.UUID `json:"contact_id"`
	Channel   Channel   `json:"channel"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
