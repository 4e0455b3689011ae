package webhook

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// EventKind classifies an inbound carrier event.
type EventKind string

const (
	EventNewMessage     EventKind = "new_message"
	EventStatusCallback EventKind = "status_callback"
)

// maxAttachments bounds how many indexed media fields are extracted.
const maxAttachments = 10

// RawChannelMessage is the canonical, carrier-agnostic representation of one
// inbound event. Channel prefixes are already stripped from From/To.
type RawChannelMessage struct {
	Kind         EventKind
	ExternalID   string
	Channel      store.Channel
	From         string
	To           string
	Content      string
	Attachments  []store.Attachment
	Status       string // carrier status vocabulary, status callbacks only
	ErrorCode    string
	ErrorMessage string
}

// channelPrefixes maps carrier address prefixes to channels. Addresses with
// no prefix are plain phone numbers, i.e. SMS.
var channelPrefixes = map[string]store.Channel{
	"whatsapp:":  store.ChannelWhatsApp,
	"messenger:": store.ChannelMessenger,
	"chat:":      store.ChannelChat,
	"email:":     store.ChannelEmail,
}

// StripChannelPrefix removes a known channel prefix from an address and
// returns the inferred channel (SMS when unprefixed).
func StripChannelPrefix(address string) (string, store.Channel) {
	for prefix, ch := range channelPrefixes {
		if strings.HasPrefix(address, prefix) {
			return strings.TrimPrefix(address, prefix), ch
		}
	}
	return address, store.ChannelSMS
}

// Normalize converts a validated, form-encoded carrier payload into a
// RawChannelMessage.
//
// Classification rule: a payload carrying a status field and no non-empty
// body is a status callback; everything else is a new message. A status-less
// empty-body inbound message would be classified as new; known edge case,
// kept deliberately.
func Normalize(form url.Values) (*RawChannelMessage, error) {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v := form.Get(k); v != "" {
				return v
			}
		}
		return ""
	}

	externalID := get("MessageSid", "SmsSid")
	if externalID == "" {
		return nil, fmt.Errorf("payload has no message sid")
	}

	from, fromCh := StripChannelPrefix(get("From"))
	to, _ := StripChannelPrefix(get("To"))
	body := form.Get("Body")
	status := get("MessageStatus", "SmsStatus")

	msg := &RawChannelMessage{
		ExternalID:   externalID,
		Channel:      fromCh,
		From:         from,
		To:           to,
		Content:      body,
		Status:       status,
		ErrorCode:    form.Get("ErrorCode"),
		ErrorMessage: form.Get("ErrorMessage"),
	}

	if status != "" && strings.TrimSpace(body) == "" {
		msg.Kind = EventStatusCallback
		return msg, nil
	}

	msg.Kind = EventNewMessage
	msg.Attachments = extractAttachments(form)
	return msg, nil
}

// extractAttachments pulls up to maxAttachments media references from the
// indexed MediaUrlN/MediaContentTypeN fields. NumMedia is advisory; absent
// or malformed counts fall back to probing the indexed fields directly.
func extractAttachments(form url.Values) []store.Attachment {
	count := maxAttachments
	if n, err := strconv.Atoi(form.Get("NumMedia")); err == nil && n >= 0 && n < count {
		count = n
	}

	var out []store.Attachment
	for i := 0; i < count; i++ {
		u := form.Get(fmt.Sprintf("MediaUrl%d", i))
		if u == "" {
			continue
		}
		ct := form.Get(fmt.Sprintf("MediaContentType%d", i))
		out = append(out, store.Attachment{
			Filename:    fmt.Sprintf("media-%d%s", i, ExtensionForMIME(ct)),
			ContentType: ct,
			URL:         u,
		})
	}
	return out
}
