package http

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/NKRTECH/unified-inbox/internal/dispatch"
	"github.com/NKRTECH/unified-inbox/internal/webhook"
)

const xmlAck = "<Response></Response>"

// WebhookHandler receives carrier callbacks on the public webhook endpoint.
// The carrier retries on non-2xx, so every accepted request is acknowledged
// with 200 regardless of downstream processing; only a failed signature check
// and rate limiting are rejected.
type WebhookHandler struct {
	validator   *webhook.Validator
	rateLimiter *webhook.RateLimiter
	dispatch    *dispatch.Service
	log         *slog.Logger
}

// NewWebhookHandler creates the carrier webhook handler.
func NewWebhookHandler(secret string, rateLimit int, d *dispatch.Service, log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		validator:   webhook.NewValidator(secret),
		rateLimiter: webhook.NewRateLimiter(rateLimit),
		dispatch:    d,
		log:         log,
	}
}

// RegisterRoutes registers the webhook route on the given mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/carrier", h.handleCarrier)
}

func (h *WebhookHandler) handleCarrier(w http.ResponseWriter, r *http.Request) {
	source := sourceAddr(r)
	if !h.rateLimiter.Allow(source) {
		// The limiter runs before the signature check, so a throttled
		// request may be a genuine carrier message. 429 keeps it alive
		// through the carrier's retry; an ack here would discard it,
		// and acking unverified traffic would confirm the endpoint to
		// whoever caused the flood.
		h.log.Warn("webhook.rate_limited", "source", source)
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.log.Warn("webhook.bad_form", "source", source, "error", err)
		writeXMLAck(w)
		return
	}

	sig := r.Header.Get(webhook.SignatureHeader)
	if !h.validator.Valid(requestURL(r), r.PostForm, sig) {
		h.log.Warn("webhook.signature_rejected", "source", source)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	raw, err := webhook.Normalize(r.PostForm)
	if err != nil {
		// Malformed but authenticated payload. Ack so the carrier does
		// not retry a request that will never parse.
		h.log.Warn("webhook.normalize_failed", "source", source, "error", err)
		writeXMLAck(w)
		return
	}

	if _, err := h.dispatch.IngestInbound(r.Context(), raw); err != nil {
		h.log.Error("webhook.ingest_failed",
			"external_id", raw.ExternalID,
			"kind", raw.Kind,
			"error", err)
	}
	writeXMLAck(w)
}

func writeXMLAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xmlAck))
}

// requestURL reconstructs the full URL the carrier signed.
func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
			scheme = fwd
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func sourceAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
