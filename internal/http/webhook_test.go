package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/dispatch"
	"github.com/NKRTECH/unified-inbox/internal/store"
	"github.com/NKRTECH/unified-inbox/internal/store/sqlite"
	"github.com/NKRTECH/unified-inbox/internal/webhook"
)

const testSecret = "webhook-secret"

func newWebhookFixture(t *testing.T) (*http.ServeMux, *store.Stores) {
	t.Helper()
	stores, err := sqlite.NewStores(store.StoreConfig{SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	reg, err := channels.NewRegistry()
	require.NoError(t, err)
	d := dispatch.New(stores, reg, nil, nil)

	mux := http.NewServeMux()
	NewWebhookHandler(testSecret, 0, d, nil).RegisterRoutes(mux)
	return mux, stores
}

func signedWebhookRequest(form url.Values, secret string) *http.Request {
	const target = "http://inbox.example.com/webhooks/carrier"
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if secret != "" {
		req.Header.Set(webhook.SignatureHeader, webhook.ComputeSignature(secret, target, form))
	}
	return req
}

func TestWebhookAcceptsSignedMessage(t *testing.T) {
	mux, stores := newWebhookFixture(t)

	form := url.Values{
		"MessageSid": {"SM100"},
		"From":       {"whatsapp:+15551234567"},
		"To":         {"whatsapp:+15559876543"},
		"Body":       {"hello"},
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedWebhookRequest(form, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<Response></Response>", rec.Body.String())
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))

	msg, err := stores.Messages.GetByExternalID(context.Background(), "SM100")
	require.NoError(t, err)
	assert.Equal(t, store.ChannelWhatsApp, msg.Channel)
	assert.Equal(t, "hello", msg.Content)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	mux, stores := newWebhookFixture(t)

	form := url.Values{
		"MessageSid": {"SM200"},
		"From":       {"+15551234567"},
		"Body":       {"forged"},
	}

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"wrong secret", signedWebhookRequest(form, "wrong-secret")},
		{"missing signature", signedWebhookRequest(form, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, tt.req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			_, err := stores.Messages.GetByExternalID(context.Background(), "SM200")
			assert.ErrorIs(t, err, store.ErrNotFound, "rejected payloads must not persist")
		})
	}
}

func TestWebhookAcksMalformedPayload(t *testing.T) {
	mux, _ := newWebhookFixture(t)

	// Authenticated but missing the message sid: acknowledged so the
	// carrier stops retrying.
	form := url.Values{"From": {"+15551234567"}, "Body": {"hi"}}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedWebhookRequest(form, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<Response></Response>", rec.Body.String())
}

func TestWebhookAcksStatusCallbackForUnknownMessage(t *testing.T) {
	mux, _ := newWebhookFixture(t)

	// The ingest fails internally (unknown external id) but the carrier
	// still gets its ack.
	form := url.Values{
		"MessageSid":    {"SM-unknown"},
		"MessageStatus": {"delivered"},
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedWebhookRequest(form, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRateLimitRejectsOverBudget(t *testing.T) {
	stores, err := sqlite.NewStores(store.StoreConfig{SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	reg, err := channels.NewRegistry()
	require.NoError(t, err)
	d := dispatch.New(stores, reg, nil, nil)

	mux := http.NewServeMux()
	NewWebhookHandler(testSecret, 1, d, nil).RegisterRoutes(mux)

	form := url.Values{
		"MessageSid": {"SM300"},
		"From":       {"+15551234567"},
		"Body":       {"first"},
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedWebhookRequest(form, testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	// Second hit from the same source exceeds the budget. Rejected with a
	// retryable status, not acked, so the carrier redelivers later.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, signedWebhookRequest(form, testSecret))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEqual(t, "<Response></Response>", rec.Body.String())
}

func TestRequireToken(t *testing.T) {
	handler := requireToken("secret-token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/v1/x", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("correct token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("empty configured token disables auth", func(t *testing.T) {
		open := requireToken("", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		rec := httptest.NewRecorder()
		open(rec, httptest.NewRequest(http.MethodGet, "/v1/x", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
