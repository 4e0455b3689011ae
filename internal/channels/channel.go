// Package channels provides the per-channel sender abstraction for outbound
// delivery. One Sender exists per channel in the closed channel set, selected
// through a Registry built at startup. Senders perform exactly one carrier
// call per invocation and expose their retry policy as data for callers.
package channels

import (
	"context"
	"fmt"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// OutboundMessage is the sender-facing view of one outbound send.
type OutboundMessage struct {
	To          string             `json:"to"`
	Content     string             `json:"content"`
	Attachments []store.Attachment `json:"attachments,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

// SendResult reports a successful carrier hand-off.
type SendResult struct {
	ExternalID string            `json:"external_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// FeatureSet is the static capability descriptor for one channel, used to
// validate outbound requests before any network call.
type FeatureSet struct {
	MaxMessageLength         int      `json:"max_message_length"`
	SupportsAttachments      bool     `json:"supports_attachments"`
	MaxAttachmentBytes       int64    `json:"max_attachment_bytes"`
	AttachmentTypes          []string `json:"attachment_types,omitempty"`
	SupportsDeliveryReceipts bool     `json:"supports_delivery_receipts"`
}

// SupportsType reports whether a MIME type is accepted as an attachment.
func (f FeatureSet) SupportsType(contentType string) bool {
	if !f.SupportsAttachments {
		return false
	}
	if len(f.AttachmentTypes) == 0 {
		return true
	}
	for _, t := range f.AttachmentTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

// RetryConfig is the retry policy a sender exposes. Senders never retry
// themselves; the policy is data for a higher-level caller to apply.
type RetryConfig struct {
	MaxAttempts int `json:"max_attempts"`
	BackoffMs   int `json:"backoff_ms"`
}

// Sender delivers outbound messages for one channel.
type Sender interface {
	Channel() store.Channel
	// Send performs exactly one carrier call. The returned error carries
	// carrier failure detail; the caller records it and owns retry policy.
	Send(ctx context.Context, msg OutboundMessage) (SendResult, error)
	Features() FeatureSet
	RetryConfig() RetryConfig
}

// ErrChannelNotConfigured is wrapped by Registry.ForChannel for channels with
// no registered sender.
var ErrChannelNotConfigured = fmt.Errorf("channel not configured")

// Registry holds the sender for each configured channel. Built once at
// startup; read-only afterwards, safe for concurrent use.
type Registry struct {
	senders map[store.Channel]Sender
}

// NewRegistry builds a registry from the given senders. A duplicate channel
// registration is a programming error.
func NewRegistry(senders ...Sender) (*Registry, error) {
	r := &Registry{senders: make(map[store.Channel]Sender, len(senders))}
	for _, s := range senders {
		if _, dup := r.senders[s.Channel()]; dup {
			return nil, fmt.Errorf("duplicate sender for channel %q", s.Channel())
		}
		r.senders[s.Channel()] = s
	}
	return r, nil
}

// ForChannel returns the sender for a channel, or an error wrapping
// ErrChannelNotConfigured so creation-time lookups fail fast.
func (r *Registry) ForChannel(ch store.Channel) (Sender, error) {
	s, ok := r.senders[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotConfigured, ch)
	}
	return s, nil
}

// Channels returns the channels with a registered sender.
func (r *Registry) Channels() []store.Channel {
	out := make([]store.Channel, 0, len(r.senders))
	for _, c := range store.AllChannels {
		if _, ok := r.senders[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
