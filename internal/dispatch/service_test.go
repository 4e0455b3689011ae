package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/events"
	"github.com/NKRTECH/unified-inbox/internal/store"
	"github.com/NKRTECH/unified-inbox/internal/store/sqlite"
	"github.com/NKRTECH/unified-inbox/internal/webhook"
)

// fakeSender is a controllable in-memory channel sender.
type fakeSender struct {
	mu       sync.Mutex
	ch       store.Channel
	features channels.FeatureSet
	sendErr  error
	sent     []channels.OutboundMessage
	nextID   string
}

func newFakeSender(ch store.Channel) *fakeSender {
	return &fakeSender{
		ch: ch,
		features: channels.FeatureSet{
			MaxMessageLength:    1600,
			SupportsAttachments: true,
		},
		nextID: "EXT-1",
	}
}

func (f *fakeSender) Channel() store.Channel { return f.ch }

func (f *fakeSender) Send(_ context.Context, msg channels.OutboundMessage) (channels.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return channels.SendResult{}, f.sendErr
	}
	f.sent = append(f.sent, msg)
	return channels.SendResult{ExternalID: f.nextID}, nil
}

func (f *fakeSender) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) Features() channels.FeatureSet      { return f.features }
func (f *fakeSender) RetryConfig() channels.RetryConfig  { return channels.RetryConfig{MaxAttempts: 3, BackoffMs: 5000} }

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Name
	}
	return out
}

func newTestStores(t *testing.T) *store.Stores {
	t.Helper()
	stores, err := sqlite.NewStores(store.StoreConfig{SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func seedConversation(t *testing.T, stores *store.Stores, ch store.Channel, address string) (*store.Contact, *store.Conversation) {
	t.Helper()
	ctx := context.Background()
	contact := &store.Contact{ID: store.GenNewID(), Name: "Ana Silva", Phone: address}
	require.NoError(t, stores.Contacts.Create(ctx, contact))
	conv := &store.Conversation{
		ID:        store.GenNewID(),
		ContactID: contact.ID,
		Channel:   ch,
		Address:   address,
	}
	require.NoError(t, stores.Conversations.Create(ctx, conv))
	return contact, conv
}

func newTestService(t *testing.T, sender channels.Sender) (*Service, *store.Stores, *capturePublisher) {
	t.Helper()
	stores := newTestStores(t)
	reg, err := channels.NewRegistry(sender)
	require.NoError(t, err)
	pub := &capturePublisher{}
	return New(stores, reg, pub, nil), stores, pub
}

func TestSendOutbound(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender(store.ChannelSMS)
	svc, stores, pub := newTestService(t, sender)
	contact, conv := seedConversation(t, stores, store.ChannelSMS, "+15551234567")

	resp, err := svc.SendOutbound(ctx, SendRequest{
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        store.ChannelSMS,
		Content:        "hello",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, "EXT-1", resp.ExternalID)

	// Recipient defaulted from the conversation address.
	require.Equal(t, 1, sender.sendCount())
	assert.Equal(t, "+15551234567", sender.sent[0].To)

	stored, err := stores.Messages.Get(ctx, resp.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSent, stored.Status)
	assert.NotNil(t, stored.SentAt)
	assert.Equal(t, "EXT-1", stored.Metadata[store.MetaExternalID])
	assert.Contains(t, pub.names(), events.EventMessageSent)
}

func TestSendOutboundSenderFailure(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender(store.ChannelSMS)
	sender.sendErr = errors.New("carrier unavailable")
	svc, stores, pub := newTestService(t, sender)
	contact, conv := seedConversation(t, stores, store.ChannelSMS, "+15551234567")

	resp, err := svc.SendOutbound(ctx, SendRequest{
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        store.ChannelSMS,
		Content:        "hello",
	})
	require.NoError(t, err, "a sender failure is reported in the response, not as an error")
	require.False(t, resp.Success)
	require.NotNil(t, resp.Message, "the created message is returned even on failure")

	stored, err := stores.Messages.Get(ctx, resp.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, stored.Status)
	assert.Equal(t, "carrier unavailable", stored.Metadata[store.MetaSendError])
	assert.Contains(t, pub.names(), events.EventMessageFailed)
}

func TestSendOutboundValidationRejectsBeforeCreate(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender(store.ChannelSMS)
	svc, stores, _ := newTestService(t, sender)
	contact, conv := seedConversation(t, stores, store.ChannelSMS, "+15551234567")

	_, err := svc.SendOutbound(ctx, SendRequest{
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        store.ChannelSMS,
		Content:        strings.Repeat("a", 1601),
	})
	var verr *channels.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, sender.sendCount(), "no carrier call for an invalid request")

	msgs, err := stores.Messages.ListByConversation(ctx, conv.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs, "no message row for an invalid request")
}

func TestSendOutboundConversationMismatch(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender(store.ChannelSMS)
	svc, stores, _ := newTestService(t, sender)
	_, conv := seedConversation(t, stores, store.ChannelSMS, "+15551234567")

	other := &store.Contact{ID: store.GenNewID(), Name: "Bruno"}
	require.NoError(t, stores.Contacts.Create(ctx, other))

	_, err := svc.SendOutbound(ctx, SendRequest{
		ConversationID: conv.ID,
		ContactID:      other.ID,
		Channel:        store.ChannelSMS,
		Content:        "hello",
	})
	assert.ErrorIs(t, err, ErrConversationMismatch)
}

func TestSendOutboundUnconfiguredChannel(t *testing.T) {
	svc, _, _ := newTestService(t, newFakeSender(store.ChannelSMS))
	_, err := svc.SendOutbound(context.Background(), SendRequest{Channel: store.ChannelWhatsApp})
	assert.ErrorIs(t, err, channels.ErrChannelNotConfigured)
}

func TestIngestInboundNewMessage(t *testing.T) {
	ctx := context.Background()
	svc, stores, pub := newTestService(t, newFakeSender(store.ChannelWhatsApp))

	raw := &webhook.RawChannelMessage{
		Kind:       webhook.EventNewMessage,
		ExternalID: "SM100",
		Channel:    store.ChannelWhatsApp,
		From:       "+15551234567",
		To:         "+15559876543",
		Content:    "hi there",
	}

	msg, err := svc.IngestInbound(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, store.DirectionInbound, msg.Direction)
	assert.Equal(t, store.StatusSent, msg.Status)

	// Contact and conversation were auto-created from the sender address.
	contact, err := stores.Contacts.Get(ctx, msg.ContactID)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", contact.Phone)
	conv, err := stores.Conversations.FindByAddress(ctx, store.ChannelWhatsApp, "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, msg.ConversationID)

	// A carrier retry with the same external id is a no-op returning the
	// original message.
	again, err := svc.IngestInbound(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, again.ID)
	msgs, err := stores.Messages.ListByConversation(ctx, conv.ID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	// A second message reuses the existing contact and conversation.
	raw2 := &webhook.RawChannelMessage{
		Kind:       webhook.EventNewMessage,
		ExternalID: "SM101",
		Channel:    store.ChannelWhatsApp,
		From:       "+15551234567",
		Content:    "follow-up",
	}
	msg2, err := svc.IngestInbound(ctx, raw2)
	require.NoError(t, err)
	assert.Equal(t, msg.ConversationID, msg2.ConversationID)
	assert.Equal(t, msg.ContactID, msg2.ContactID)

	assert.Contains(t, pub.names(), events.EventMessageReceived)
}

func TestStatusCallbackProgression(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender(store.ChannelSMS)
	svc, stores, pub := newTestService(t, sender)
	contact, conv := seedConversation(t, stores, store.ChannelSMS, "+15551234567")

	resp, err := svc.SendOutbound(ctx, SendRequest{
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        store.ChannelSMS,
		Content:        "hello",
	})
	require.NoError(t, err)

	callback := func(status string) *store.Message {
		msg, cbErr := svc.IngestInbound(ctx, &webhook.RawChannelMessage{
			Kind:       webhook.EventStatusCallback,
			ExternalID: "EXT-1",
			Status:     status,
		})
		require.NoError(t, cbErr)
		return msg
	}

	assert.Equal(t, store.StatusDelivered, callback("delivered").Status)
	assert.Equal(t, store.StatusRead, callback("read").Status)

	// Out-of-order and replayed callbacks are ignored.
	assert.Equal(t, store.StatusRead, callback("delivered").Status)
	assert.Equal(t, store.StatusRead, callback("failed").Status, "read is terminal")

	stored, err := stores.Messages.Get(ctx, resp.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRead, stored.Status)
	assert.Contains(t, pub.names(), events.EventMessageStatus)
}

func TestStatusCallbackFailureRecordsError(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender(store.ChannelSMS)
	svc, stores, _ := newTestService(t, sender)
	contact, conv := seedConversation(t, stores, store.ChannelSMS, "+15551234567")

	resp, err := svc.SendOutbound(ctx, SendRequest{
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Channel:        store.ChannelSMS,
		Content:        "hello",
	})
	require.NoError(t, err)

	_, err = svc.IngestInbound(ctx, &webhook.RawChannelMessage{
		Kind:         webhook.EventStatusCallback,
		ExternalID:   "EXT-1",
		Status:       "undelivered",
		ErrorCode:    "30008",
		ErrorMessage: "unknown destination",
	})
	require.NoError(t, err)

	stored, err := stores.Messages.Get(ctx, resp.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, stored.Status)
	assert.Equal(t, "30008", stored.Metadata[store.MetaErrorCode])
	assert.Equal(t, "unknown destination", stored.Metadata[store.MetaErrorMessage])
}

func TestStatusCallbackUnknownExternalID(t *testing.T) {
	svc, _, _ := newTestService(t, newFakeSender(store.ChannelSMS))
	_, err := svc.IngestInbound(context.Background(), &webhook.RawChannelMessage{
		Kind:       webhook.EventStatusCallback,
		ExternalID: "SM-unknown",
		Status:     "delivered",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
