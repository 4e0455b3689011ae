package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NKRTECH/unified-inbox/internal/channels"
	"github.com/NKRTECH/unified-inbox/internal/dispatch"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

// MessagesHandler handles outbound send and channel capability endpoints.
type MessagesHandler struct {
	dispatch *dispatch.Service
	token    string
}

// NewMessagesHandler creates a handler for message endpoints.
func NewMessagesHandler(d *dispatch.Service, token string) *MessagesHandler {
	return &MessagesHandler{dispatch: d, token: token}
}

// RegisterRoutes registers message routes on the given mux.
func (h *MessagesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/channels/{channel}/messages", requireToken(h.token, h.handleSend))
	mux.HandleFunc("GET /v1/channels/{channel}/capabilities", requireToken(h.token, h.handleCapabilities))
}

func (h *MessagesHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	ch, ok := store.ParseChannel(r.PathValue("channel"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown channel: " + r.PathValue("channel")})
		return
	}

	var req dispatch.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	req.Channel = ch

	resp, err := h.dispatch.SendOutbound(r.Context(), req)
	if err != nil {
		writeJSON(w, sendErrorStatus(err), map[string]string{"error": err.Error()})
		return
	}
	// A failed delivery attempt still created the message; report it with
	// the persisted record rather than as a server error.
	writeJSON(w, http.StatusCreated, resp)
}

func sendErrorStatus(err error) int {
	var verr *channels.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, channels.ErrChannelNotConfigured),
		errors.Is(err, dispatch.ErrConversationMismatch):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *MessagesHandler) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	ch, ok := store.ParseChannel(r.PathValue("channel"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown channel: " + r.PathValue("channel")})
		return
	}

	features, retry, err := h.dispatch.Capabilities(ch)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel":  ch,
		"features": features,
		"retry":    retry,
	})
}
