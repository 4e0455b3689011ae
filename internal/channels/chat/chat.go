// Package chat implements the web-chat channel sender. Chat messages are
// delivered to connected operator/visitor clients over the websocket event
// hub instead of an external carrier, so the "network call" is a hub push.
package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

// Deliverer pushes a chat payload to connected clients. Implemented by
// events.Hub; abstracted here to keep the sender free of transport detail.
type Deliverer interface {
	DeliverChat(ctx context.Context, address, content string, attachments []store.Attachment) error
}

// Sender delivers web-chat messages through a Deliverer.
type Sender struct {
	hub Deliverer
}

// New creates a chat sender backed by the given deliverer.
func New(hub Deliverer) *Sender {
	return &Sender{hub: hub}
}

func (s *Sender) Channel() store.Channel { return store.ChannelChat }

func (s *Sender) Features() channels.FeatureSet {
	return channels.FeatureSet{
		MaxMessageLength:    4000,
		SupportsAttachments: true,
		MaxAttachmentBytes:  10 << 20,
		// Read state for chat comes from the client API, not carrier receipts.
		SupportsDeliveryReceipts: false,
	}
}

func (s *Sender) RetryConfig() channels.RetryConfig {
	return channels.RetryConfig{MaxAttempts: 1, BackoffMs: 0}
}

func (s *Sender) Send(ctx context.Context, msg channels.OutboundMessage) (channels.SendResult, error) {
	address := strings.TrimSpace(msg.To)
	if address == "" {
		return channels.SendResult{}, &channels.ValidationError{Field: "to", Reason: "chat session id is required"}
	}
	if err := channels.ValidateAgainstFeatures(msg, s.Features()); err != nil {
		return channels.SendResult{}, err
	}

	if err := s.hub.DeliverChat(ctx, address, msg.Content, msg.Attachments); err != nil {
		return channels.SendResult{}, err
	}
	// Chat has no carrier id; mint one so status callbacks have a handle.
	return channels.SendResult{ExternalID: "chat-" + uuid.NewString()}, nil
}
