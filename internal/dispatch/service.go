// Package dispatch orchestrates message delivery: outbound sends through the
// per-channel sender registry, inbound ingestion from normalized carrier
// events, and status-callback correlation. It owns the message state machine
// (draft → scheduled → sent → delivered → read, failed from scheduled/sent).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/events"
	"github.com/NKRTECH/unified-inbox/internal/store"
	"github.com/NKRTECH/unified-inbox/internal/webhook"
)

// ErrConversationMismatch is returned when a send request names a contact
// that does not own the referenced conversation.
var ErrConversationMismatch = errors.New("contact does not belong to conversation")

// Service coordinates senders, stores and the event feed.
type Service struct {
	stores   *store.Stores
	registry *channels.Registry
	events   events.Publisher
	log      *slog.Logger
	now      func() time.Time
}

// New creates a dispatch service. pub may be nil for no event fan-out.
func New(stores *store.Stores, registry *channels.Registry, pub events.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{stores: stores, registry: registry, events: pub, log: log, now: time.Now}
}

// SendRequest is one outbound send (or deferred-send) request.
type SendRequest struct {
	ConversationID uuid.UUID          `json:"conversation_id"`
	ContactID      uuid.UUID          `json:"contact_id"`
	UserID         uuid.UUID          `json:"user_id,omitempty"`
	Channel        store.Channel      `json:"channel"`
	To             string             `json:"to,omitempty"` // defaults to the conversation address
	Content        string             `json:"content"`
	Attachments    []store.Attachment `json:"attachments,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	ScheduledFor   *time.Time         `json:"scheduled_for,omitempty"`
}

// SendResponse reports an outbound send. Message is always the persisted
// record, even when the send attempt failed; the caller sees a
// created-but-failed message instead of an opaque server error.
type SendResponse struct {
	Success    bool           `json:"success"`
	Message    *store.Message `json:"message"`
	ExternalID string         `json:"external_id,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// resolveTarget loads the conversation, enforces the contact/conversation
// invariant and fills the recipient address.
func (s *Service) resolveTarget(ctx context.Context, req *SendRequest) (*store.Conversation, error) {
	conv, err := s.stores.Conversations.Get(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv.ContactID != req.ContactID {
		return nil, ErrConversationMismatch
	}
	if req.To == "" {
		req.To = conv.Address
	}
	return conv, nil
}

// SendOutbound performs an immediate outbound send. The message row is
// created optimistically in sent state; a sender failure corrects it to
// failed while the created record is still returned.
func (s *Service) SendOutbound(ctx context.Context, req SendRequest) (*SendResponse, error) {
	sender, err := s.registry.ForChannel(req.Channel)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolveTarget(ctx, &req); err != nil {
		return nil, err
	}
	// Capability validation happens before the message row exists so a
	// bad request maps to a clean rejection, not a failed message.
	out := channels.OutboundMessage{
		To:          req.To,
		Content:     req.Content,
		Attachments: req.Attachments,
		Metadata:    req.Metadata,
	}
	if err := channels.ValidateAgainstFeatures(out, sender.Features()); err != nil {
		return nil, err
	}

	now := s.now()
	msg := &store.Message{
		ID:             store.GenNewID(),
		ConversationID: req.ConversationID,
		ContactID:      req.ContactID,
		UserID:         req.UserID,
		Channel:        req.Channel,
		Direction:      store.DirectionOutbound,
		Content:        req.Content,
		Attachments:    req.Attachments,
		Status:         store.StatusSent,
		SentAt:         &now,
		Metadata:       req.Metadata,
	}
	if err := s.stores.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	return s.attemptSend(ctx, sender, msg, out), nil
}

// attemptSend runs one sender invocation for a persisted message and records
// the outcome. Send failures are recorded, not propagated.
func (s *Service) attemptSend(ctx context.Context, sender channels.Sender, msg *store.Message, out channels.OutboundMessage) *SendResponse {
	res, sendErr := sender.Send(ctx, out)
	if sendErr != nil {
		s.log.Warn("send failed",
			"message", msg.ID, "channel", msg.Channel, "error", sendErr)
		meta := map[string]string{store.MetaSendError: sendErr.Error()}
		if updErr := s.stores.Messages.UpdateStatus(ctx, msg.ID, store.StatusFailed, nil, meta); updErr != nil {
			s.log.Error("failed to mark message failed", "message", msg.ID, "error", updErr)
		}
		msg.Status = store.StatusFailed
		mergeMeta(msg, meta)
		s.events.Publish(ctx, events.NewEvent(events.EventMessageFailed, msg))
		return &SendResponse{Success: false, Message: msg, Error: sendErr.Error()}
	}

	meta := map[string]string{store.MetaExternalID: res.ExternalID}
	for k, v := range res.Metadata {
		meta[k] = v
	}
	sentAt := s.now()
	if updErr := s.stores.Messages.UpdateStatus(ctx, msg.ID, store.StatusSent, &sentAt, meta); updErr != nil {
		s.log.Error("failed to record external id", "message", msg.ID, "error", updErr)
	}
	msg.Status = store.StatusSent
	msg.SentAt = &sentAt
	mergeMeta(msg, meta)
	s.events.Publish(ctx, events.NewEvent(events.EventMessageSent, msg))
	return &SendResponse{Success: true, Message: msg, ExternalID: res.ExternalID}
}

// SendExisting re-drives a previously persisted (scheduled) message through
// its channel sender. Used by the due-message processor after claiming.
func (s *Service) SendExisting(ctx context.Context, msg *store.Message, content string) *SendResponse {
	sender, err := s.registry.ForChannel(msg.Channel)
	if err != nil {
		return &SendResponse{Success: false, Message: msg, Error: err.Error()}
	}
	conv, err := s.stores.Conversations.Get(ctx, msg.ConversationID)
	if err != nil {
		return &SendResponse{Success: false, Message: msg, Error: err.Error()}
	}
	if content == "" {
		content = msg.Content
	}
	out := channels.OutboundMessage{
		To:          conv.Address,
		Content:     content,
		Attachments: msg.Attachments,
		Metadata:    msg.Metadata,
	}
	return s.attemptSend(ctx, sender, msg, out)
}

// CreateScheduled persists a deferred outbound message in scheduled state.
// The caller (scheduling service) pairs it with a ScheduledMessage row.
func (s *Service) CreateScheduled(ctx context.Context, req SendRequest) (*store.Message, error) {
	sender, err := s.registry.ForChannel(req.Channel)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolveTarget(ctx, &req); err != nil {
		return nil, err
	}
	out := channels.OutboundMessage{To: req.To, Content: req.Content, Attachments: req.Attachments}
	if err := channels.ValidateAgainstFeatures(out, sender.Features()); err != nil {
		return nil, err
	}

	msg := &store.Message{
		ID:             store.GenNewID(),
		ConversationID: req.ConversationID,
		ContactID:      req.ContactID,
		UserID:         req.UserID,
		Channel:        req.Channel,
		Direction:      store.DirectionOutbound,
		Content:        req.Content,
		Attachments:    req.Attachments,
		Status:         store.StatusScheduled,
		ScheduledFor:   req.ScheduledFor,
		Metadata:       req.Metadata,
	}
	if err := s.stores.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist scheduled message: %w", err)
	}
	return msg, nil
}

// IngestInbound routes a normalized carrier event: new messages are
// persisted against a resolved contact/conversation, status callbacks are
// correlated onto existing messages.
func (s *Service) IngestInbound(ctx context.Context, raw *webhook.RawChannelMessage) (*store.Message, error) {
	if raw.Kind == webhook.EventStatusCallback {
		return s.applyStatusCallback(ctx, raw)
	}

	// Carrier retries replay the same external id; treat as idempotent.
	if existing, err := s.stores.Messages.GetByExternalID(ctx, raw.ExternalID); err == nil {
		s.log.Debug("duplicate inbound ignored", "external_id", raw.ExternalID)
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("dedupe lookup: %w", err)
	}

	conv, contact, err := s.resolveInbound(ctx, raw)
	if err != nil {
		return nil, err
	}

	msg := &store.Message{
		ID:             store.GenNewID(),
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        raw.Channel,
		Direction:      store.DirectionInbound,
		Content:        raw.Content,
		Attachments:    raw.Attachments,
		// Inbound messages were already delivered to us, so they enter
		// the machine in sent state and are immediately eligible for
		// delivered/read updates.
		Status:   store.StatusSent,
		Metadata: map[string]string{store.MetaExternalID: raw.ExternalID},
	}
	now := s.now()
	msg.SentAt = &now
	if err := s.stores.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist inbound message: %w", err)
	}
	if err := s.stores.Conversations.Touch(ctx, conv.ID); err != nil {
		s.log.Warn("failed to touch conversation", "conversation", conv.ID, "error", err)
	}

	s.events.Publish(ctx, events.NewEvent(events.EventMessageReceived, msg))
	return msg, nil
}

// resolveInbound finds or creates the contact and conversation for an
// inbound address.
func (s *Service) resolveInbound(ctx context.Context, raw *webhook.RawChannelMessage) (*store.Conversation, *store.Contact, error) {
	conv, err := s.stores.Conversations.FindByAddress(ctx, raw.Channel, raw.From)
	if err == nil {
		contact, getErr := s.stores.Contacts.Get(ctx, conv.ContactID)
		if getErr != nil {
			return nil, nil, fmt.Errorf("load conversation contact: %w", getErr)
		}
		return conv, contact, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("find conversation: %w", err)
	}

	contact, err := s.stores.Contacts.FindByAddress(ctx, raw.Channel, raw.From)
	if errors.Is(err, store.ErrNotFound) {
		contact = newContactForAddress(raw.Channel, raw.From)
		if createErr := s.stores.Contacts.Create(ctx, contact); createErr != nil {
			return nil, nil, fmt.Errorf("create contact: %w", createErr)
		}
		s.log.Info("contact created from inbound message", "contact", contact.ID, "channel", raw.Channel)
	} else if err != nil {
		return nil, nil, fmt.Errorf("find contact: %w", err)
	}

	conv = &store.Conversation{
		ID:        store.GenNewID(),
		ContactID: contact.ID,
		Channel:   raw.Channel,
		Address:   raw.From,
	}
	if err := s.stores.Conversations.Create(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, contact, nil
}

// newContactForAddress seeds a contact from the only identity the channel
// provides.
func newContactForAddress(ch store.Channel, address string) *store.Contact {
	c := &store.Contact{ID: store.GenNewID()}
	switch ch {
	case store.ChannelEmail:
		c.Email = address
	case store.ChannelSMS, store.ChannelWhatsApp:
		c.Phone = address
	default:
		c.SocialHandles = map[string]string{string(ch): address}
	}
	return c
}

// applyStatusCallback correlates a carrier status callback onto the message
// holding that external id and advances its status through the transition
// guard. Replaying the same callback is a no-op with the same terminal state.
func (s *Service) applyStatusCallback(ctx context.Context, raw *webhook.RawChannelMessage) (*store.Message, error) {
	msg, err := s.stores.Messages.GetByExternalID(ctx, raw.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("correlate status callback %q: %w", raw.ExternalID, err)
	}

	target := MapCarrierStatus(raw.Status)
	if !canTransition(msg.Status, target) {
		s.log.Debug("status callback ignored",
			"message", msg.ID, "current", msg.Status, "carrier_status", raw.Status)
		return msg, nil
	}

	var meta map[string]string
	if target == store.StatusFailed && (raw.ErrorCode != "" || raw.ErrorMessage != "") {
		meta = map[string]string{
			store.MetaErrorCode:    raw.ErrorCode,
			store.MetaErrorMessage: raw.ErrorMessage,
		}
	}
	if err := s.stores.Messages.UpdateStatus(ctx, msg.ID, target, nil, meta); err != nil {
		return nil, fmt.Errorf("apply status %s: %w", target, err)
	}
	msg.Status = target
	mergeMeta(msg, meta)

	s.log.Info("message status updated",
		"message", msg.ID, "status", target, "carrier_status", raw.Status)
	s.events.Publish(ctx, events.NewEvent(events.EventMessageStatus, msg))
	return msg, nil
}

// Capabilities reports a channel's feature set and retry policy.
func (s *Service) Capabilities(ch store.Channel) (channels.FeatureSet, channels.RetryConfig, error) {
	sender, err := s.registry.ForChannel(ch)
	if err != nil {
		return channels.FeatureSet{}, channels.RetryConfig{}, err
	}
	return sender.Features(), sender.RetryConfig(), nil
}

func mergeMeta(msg *store.Message, meta map[string]string) {
	if len(meta) == 0 {
		return
	}
	if msg.Metadata == nil {
		msg.Metadata = make(map[string]string, len(meta))
	}
	for k, v := range meta {
		msg.Metadata[k] = v
	}
}
