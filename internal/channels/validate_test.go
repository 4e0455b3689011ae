package channels

import (
	"errors"
	"strings"
	"testing"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already e164", "+15551234567", "+15551234567", false},
		{"formatted", "+1 (555) 123-4567", "+15551234567", false},
		{"dots", "+1.555.123.4567", "+15551234567", false},
		{"missing plus", "15551234567", "", true},
		{"too short", "+1234567", "", true},
		{"too long", "+1234567890123456", "", true},
		{"letters", "+1555CALLNOW", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("NormalizePhone(%q) err = %v, want ValidationError", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateEmailAddress(t *testing.T) {
	valid := []string{"ana@example.com", "a.b+tag@sub.example.org"}
	for _, addr := range valid {
		if err := ValidateEmailAddress(addr); err != nil {
			t.Errorf("ValidateEmailAddress(%q) = %v, want nil", addr, err)
		}
	}
	invalid := []string{"", "plainaddress", "@example.com", "ana@", "ana@nodot"}
	for _, addr := range invalid {
		if err := ValidateEmailAddress(addr); err == nil {
			t.Errorf("ValidateEmailAddress(%q) = nil, want error", addr)
		}
	}
}

func TestValidateAgainstFeatures(t *testing.T) {
	fs := FeatureSet{
		MaxMessageLength:    1600,
		SupportsAttachments: true,
		MaxAttachmentBytes:  5 * 1024 * 1024,
		AttachmentTypes:     []string{"image/jpeg", "image/png"},
	}

	t.Run("over limit reports both lengths", func(t *testing.T) {
		msg := OutboundMessage{To: "+15551234567", Content: strings.Repeat("a", 1601)}
		err := ValidateAgainstFeatures(msg, fs)
		if err == nil {
			t.Fatal("expected error for 1601-char content")
		}
		if !strings.Contains(err.Error(), "1601") || !strings.Contains(err.Error(), "1600") {
			t.Errorf("error should name the length and the limit: %v", err)
		}
	})

	t.Run("at limit passes", func(t *testing.T) {
		msg := OutboundMessage{To: "+15551234567", Content: strings.Repeat("a", 1600)}
		if err := ValidateAgainstFeatures(msg, fs); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty message rejected", func(t *testing.T) {
		if err := ValidateAgainstFeatures(OutboundMessage{To: "+1555"}, fs); err == nil {
			t.Error("expected error for empty message")
		}
	})

	t.Run("attachment only is fine", func(t *testing.T) {
		msg := OutboundMessage{
			To:          "+15551234567",
			Attachments: []store.Attachment{{Filename: "a.jpg", ContentType: "image/jpeg", Size: 1024}},
		}
		if err := ValidateAgainstFeatures(msg, fs); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unsupported type rejected", func(t *testing.T) {
		msg := OutboundMessage{
			To:          "+15551234567",
			Content:     "doc attached",
			Attachments: []store.Attachment{{Filename: "a.pdf", ContentType: "application/pdf"}},
		}
		if err := ValidateAgainstFeatures(msg, fs); err == nil {
			t.Error("expected error for unsupported attachment type")
		}
	})

	t.Run("oversize attachment rejected", func(t *testing.T) {
		msg := OutboundMessage{
			To:          "+15551234567",
			Content:     "big",
			Attachments: []store.Attachment{{Filename: "a.jpg", ContentType: "image/jpeg", Size: 6 * 1024 * 1024}},
		}
		if err := ValidateAgainstFeatures(msg, fs); err == nil {
			t.Error("expected error for oversize attachment")
		}
	})

	t.Run("no attachment support", func(t *testing.T) {
		msg := OutboundMessage{
			To:          "session-1",
			Content:     "hi",
			Attachments: []store.Attachment{{Filename: "a.jpg", ContentType: "image/jpeg"}},
		}
		if err := ValidateAgainstFeatures(msg, FeatureSet{MaxMessageLength: 100}); err == nil {
			t.Error("expected error when channel has no attachment support")
		}
	})
}
