// Package email implements the email-like channel sender on the carrier's
// unified message API. Delivery receipts are not available on this channel.
package email

import (
	"context"
	"net/url"

	"github.com/NKRTECH/unified-inbox/internal/carrier"
	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

// Sender sends email through the carrier.
type Sender struct {
	client *carrier.Client
	from   string
}

// New creates an email sender using from as the verified source address.
func New(client *carrier.Client, from string) *Sender {
	return &Sender{client: client, from: from}
}

func (s *Sender) Channel() store.Channel { return store.ChannelEmail }

func (s *Sender) Features() channels.FeatureSet {
	return channels.FeatureSet{
		MaxMessageLength:    100000,
		SupportsAttachments: true,
		MaxAttachmentBytes:  25 << 20,
		// Empty AttachmentTypes = any MIME type accepted.
		SupportsDeliveryReceipts: false,
	}
}

func (s *Sender) RetryConfig() channels.RetryConfig {
	return channels.RetryConfig{MaxAttempts: 2, BackoffMs: 30000}
}

func (s *Sender) Send(ctx context.Context, msg channels.OutboundMessage) (channels.SendResult, error) {
	if err := channels.ValidateEmailAddress(msg.To); err != nil {
		return channels.SendResult{}, err
	}
	if err := channels.ValidateAgainstFeatures(msg, s.Features()); err != nil {
		return channels.SendResult{}, err
	}

	params := url.Values{}
	params.Set("From", s.from)
	params.Set("To", msg.To)
	params.Set("Body", msg.Content)
	for _, a := range msg.Attachments {
		params.Add("MediaUrl", a.URL)
	}

	res, err := s.client.CreateMessage(ctx, params)
	if err != nil {
		return channels.SendResult{}, err
	}
	return channels.SendResult{ExternalID: res.SID}, nil
}
