package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/NKRTECH/unified-inbox/internal/contacts"
	"github.com/NKRTECH/unified-inbox/internal/events"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

// ContactsHandler handles duplicate detection and merge endpoints.
type ContactsHandler struct {
	resolver *contacts.Resolver
	events   events.Publisher
	token    string
}

// NewContactsHandler creates a handler for contact resolution endpoints.
func NewContactsHandler(r *contacts.Resolver, pub events.Publisher, token string) *ContactsHandler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &ContactsHandler{resolver: r, events: pub, token: token}
}

// RegisterRoutes registers contact resolution routes on the given mux.
func (h *ContactsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/contacts/duplicates", requireToken(h.token, h.handleDuplicates))
	mux.HandleFunc("POST /v1/contacts/merge", requireToken(h.token, h.handleMerge))
}

func (h *ContactsHandler) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	threshold := contacts.DefaultThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		t, err := strconv.Atoi(raw)
		if err != nil || t < 0 || t > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "threshold must be an integer between 0 and 100"})
			return
		}
		threshold = t
	}

	groups, err := h.resolver.FindDuplicates(r.Context(), threshold)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"threshold": threshold,
		"groups":    groups,
	})
}

func (h *ContactsHandler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req contacts.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	merged, err := h.resolver.Merge(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	// Fan-out is best effort; the merge already committed.
	_ = h.events.Publish(r.Context(), events.NewEvent(events.EventContactsMerged, map[string]interface{}{
		"primary_id":    req.PrimaryID,
		"secondary_ids": req.SecondaryIDs,
	}))
	writeJSON(w, http.StatusOK, merged)
}
