package channels

import (
	"context"
	"errors"
	"testing"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

type stubSender struct {
	ch store.Channel
}

func (s stubSender) Channel() store.Channel { return s.ch }
func (s stubSender) Send(context.Context, OutboundMessage) (SendResult, error) {
	return SendResult{ExternalID: "stub"}, nil
}
func (s stubSender) Features() FeatureSet     { return FeatureSet{MaxMessageLength: 100} }
func (s stubSender) RetryConfig() RetryConfig { return RetryConfig{MaxAttempts: 1} }

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(stubSender{ch: store.ChannelSMS}, stubSender{ch: store.ChannelEmail})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, err := reg.ForChannel(store.ChannelSMS); err != nil {
		t.Errorf("ForChannel(sms): %v", err)
	}
	_, err = reg.ForChannel(store.ChannelWhatsApp)
	if !errors.Is(err, ErrChannelNotConfigured) {
		t.Errorf("ForChannel(whatsapp) err = %v, want ErrChannelNotConfigured", err)
	}

	chs := reg.Channels()
	if len(chs) != 2 {
		t.Errorf("Channels() = %v, want 2 entries", chs)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(stubSender{ch: store.ChannelSMS}, stubSender{ch: store.ChannelSMS})
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestSupportsType(t *testing.T) {
	fs := FeatureSet{SupportsAttachments: true, AttachmentTypes: []string{"image/jpeg"}}
	if !fs.SupportsType("image/jpeg") {
		t.Error("expected listed type to be supported")
	}
	if fs.SupportsType("application/pdf") {
		t.Error("expected unlisted type to be rejected")
	}

	open := FeatureSet{SupportsAttachments: true}
	if !open.SupportsType("application/pdf") {
		t.Error("empty type list should accept any type")
	}

	none := FeatureSet{}
	if none.SupportsType("image/jpeg") {
		t.Error("attachment-less channel should reject all types")
	}
}
