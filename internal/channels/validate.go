package channels

import (
	"fmt"
	"strings"
)

// ValidationError rejects an outbound request before any carrier call.
// The HTTP layer maps it to a 400-class response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NormalizePhone canonicalizes a phone-like recipient to E.164 form:
// strips spaces, dashes, dots and parentheses, requires a leading "+"
// followed by 8–15 digits.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch r {
		case ' ', '-', '.', '(', ')':
			continue
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if !strings.HasPrefix(s, "+") {
		return "", &ValidationError{Field: "to", Reason: "phone number must be in international format (+...)"}
	}
	digits := s[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return "", &ValidationError{Field: "to", Reason: "phone number must have 8-15 digits"}
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", &ValidationError{Field: "to", Reason: "phone number contains non-digit characters"}
		}
	}
	return s, nil
}

// ValidateEmailAddress performs a light syntactic check (one "@", non-empty
// local part, a dot in the domain).
func ValidateEmailAddress(addr string) error {
	at := strings.Index(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return &ValidationError{Field: "to", Reason: "malformed email address"}
	}
	if !strings.Contains(addr[at+1:], ".") {
		return &ValidationError{Field: "to", Reason: "email domain is incomplete"}
	}
	return nil
}

// ValidateAgainstFeatures checks content length and attachments against a
// channel's FeatureSet. Recipient format is channel-specific and checked by
// each sender.
func ValidateAgainstFeatures(msg OutboundMessage, fs FeatureSet) error {
	if strings.TrimSpace(msg.Content) == "" && len(msg.Attachments) == 0 {
		return &ValidationError{Field: "content", Reason: "message has no content or attachments"}
	}
	if fs.MaxMessageLength > 0 && len(msg.Content) > fs.MaxMessageLength {
		return &ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("content length %d exceeds channel limit %d", len(msg.Content), fs.MaxMessageLength),
		}
	}
	if len(msg.Attachments) > 0 && !fs.SupportsAttachments {
		return &ValidationError{Field: "attachments", Reason: "channel does not support attachments"}
	}
	for _, a := range msg.Attachments {
		if fs.MaxAttachmentBytes > 0 && a.Size > fs.MaxAttachmentBytes {
			return &ValidationError{
				Field:  "attachments",
				Reason: fmt.Sprintf("attachment %q size %d exceeds channel limit %d", a.Filename, a.Size, fs.MaxAttachmentBytes),
			}
		}
		if a.ContentType != "" && !fs.SupportsType(a.ContentType) {
			return &ValidationError{
				Field:  "attachments",
				Reason: fmt.Sprintf("attachment type %q not supported on this channel", a.ContentType),
			}
		}
	}
	return nil
}
