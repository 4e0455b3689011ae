// Package messenger implements the Facebook Messenger channel sender.
// Recipients are opaque page-scoped IDs, not phone numbers.
package messenger

import (
	"context"
	"net/url"
	"strings"

	"github.com/NKRTECH/unified-inbox/internal/carrier"
	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

// AddressPrefix is the carrier's channel prefix for Messenger addresses.
const AddressPrefix = "messenger:"

// Sender sends Messenger DMs through the carrier.
type Sender struct {
	client *carrier.Client
	pageID string
}

// New creates a Messenger sender for the given page ID.
func New(client *carrier.Client, pageID string) *Sender {
	return &Sender{client: client, pageID: pageID}
}

func (s *Sender) Channel() store.Channel { return store.ChannelMessenger }

func (s *Sender) Features() channels.FeatureSet {
	return channels.FeatureSet{
		MaxMessageLength:         2000,
		SupportsAttachments:      true,
		MaxAttachmentBytes:       8 << 20,
		AttachmentTypes:          []string{"image/jpeg", "image/png", "image/gif"},
		SupportsDeliveryReceipts: true,
	}
}

func (s *Sender) RetryConfig() channels.RetryConfig {
	return channels.RetryConfig{MaxAttempts: 2, BackoffMs: 5000}
}

func (s *Sender) Send(ctx context.Context, msg channels.OutboundMessage) (channels.SendResult, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return channels.SendResult{}, &channels.ValidationError{Field: "to", Reason: "recipient id is required"}
	}
	if err := channels.ValidateAgainstFeatures(msg, s.Features()); err != nil {
		return channels.SendResult{}, err
	}

	params := url.Values{}
	params.Set("From", AddressPrefix+s.pageID)
	params.Set("To", AddressPrefix+to)
	params.Set("Body", msg.Content)
	for _, a := range msg.Attachments {
		params.Add("MediaUrl", a.URL)
	}

	res, err := s.client.CreateMessage(ctx, params)
	if err != nil {
		return channels.SendResult{}, err
	}
	return channels.SendResult{
		ExternalID: res.SID,
		Metadata:   map[string]string{"carrier_status": res.Status},
	}, nil
}
