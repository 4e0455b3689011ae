// Package sms implements the SMS channel sender on the carrier REST API.
package sms

import (
	"context"
	"net/url"

	"github.com/NKRTECH/unified-inbox/internal/carrier"
	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

// MaxLength is the carrier's hard cap for a concatenated SMS body.
const MaxLength = 1600

// Sender sends SMS through the carrier.
type Sender struct {
	client *carrier.Client
	from   string
}

// New creates an SMS sender using from as the carrier-registered source number.
func New(client *carrier.Client, from string) *Sender {
	return &Sender{client: client, from: from}
}

func (s *Sender) Channel() store.Channel { return store.ChannelSMS }

func (s *Sender) Features() channels.FeatureSet {
	return channels.FeatureSet{
		MaxMessageLength:         MaxLength,
		SupportsAttachments:      true,
		MaxAttachmentBytes:       5 << 20,
		AttachmentTypes:          []string{"image/jpeg", "image/png", "image/gif"},
		SupportsDeliveryReceipts: true,
	}
}

func (s *Sender) RetryConfig() channels.RetryConfig {
	return channels.RetryConfig{MaxAttempts: 3, BackoffMs: 5000}
}

// Send validates the recipient and content, then performs one carrier call.
func (s *Sender) Send(ctx context.Context, msg channels.OutboundMessage) (channels.SendResult, error) {
	to, err := channels.NormalizePhone(msg.To)
	if err != nil {
		return channels.SendResult{}, err
	}
	if err := channels.ValidateAgainstFeatures(msg, s.Features()); err != nil {
		return channels.SendResult{}, err
	}

	params := url.Values{}
	params.Set("From", s.from)
	params.Set("To", to)
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
