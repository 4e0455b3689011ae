// Package whatsapp implements the WhatsApp channel sender. The carrier
// multiplexes WhatsApp over the same message API as SMS but requires the
// "whatsapp:" address prefix, which this sender re-adds on the way out
// (inbound normalization strips it before storage).
package whatsapp

import (
	"context"
	"net/url"

	"github.com/NKRTECH/unified-inbox/internal/carrier"
	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

// AddressPrefix is the carrier's channel prefix for WhatsApp addresses.
const AddressPrefix = "whatsapp:"

// Sender sends WhatsApp messages through the carrier.
type Sender struct {
	client *carrier.Client
	from   string
}

// New creates a WhatsApp sender. from is the carrier-registered source
// number without the channel prefix.
func New(client *carrier.Client, from string) *Sender {
	return &Sender{client: client, from: from}
}

func (s *Sender) Channel() store.Channel { return store.ChannelWhatsApp }

func (s *Sender) Features() channels.FeatureSet {
	return channels.FeatureSet{
		MaxMessageLength:    4096,
		SupportsAttachments: true,
		MaxAttachmentBytes:  16 << 20,
		AttachmentTypes: []string{
			"image/jpeg", "image/png", "video/mp4",
			"audio/ogg", "application/pdf",
		},
		SupportsDeliveryReceipts: true,
	}
}

func (s *Sender) RetryConfig() channels.RetryConfig {
	return channels.RetryConfig{MaxAttempts: 3, BackoffMs: 10000}
}

func (s *Sender) Send(ctx context.Context, msg channels.OutboundMessage) (channels.SendResult, error) {
	to, err := channels.NormalizePhone(msg.To)
	if err != nil {
		return channels.SendResult{}, err
	}
	if err := channels.ValidateAgainstFeatures(msg, s.Features()); err != nil {
		return channels.SendResult{}, err
	}

	params := url.Values{}
	params.Set("From", AddressPrefix+s.from)
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
