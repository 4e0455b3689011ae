package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/scheduler"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

// SchedulesHandler handles deferred-send endpoints.
type SchedulesHandler struct {
	scheduler *scheduler.Service
	token     string
}

// NewSchedulesHandler creates a handler for schedule endpoints.
func NewSchedulesHandler(s *scheduler.Service, token string) *SchedulesHandler {
	return &SchedulesHandler{scheduler: s, token: token}
}

// RegisterRoutes registers schedule routes on the given mux.
func (h *SchedulesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/schedules", requireToken(h.token, h.handleCreate))
	mux.HandleFunc("GET /v1/schedules/{id}", requireToken(h.token, h.handleGet))
	mux.HandleFunc("DELETE /v1/schedules/{id}", requireToken(h.token, h.handleCancel))
	mux.HandleFunc("POST /v1/schedules/process", requireToken(h.token, h.handleProcess))
}

func (h *SchedulesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduler.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	item, msg, err := h.scheduler.Create(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, scheduler.ErrNotFuture):
			status = http.StatusBadRequest
		case errors.Is(err, store.ErrNotFound):
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"schedule": item,
		"message":  msg,
	})
}

func (h *SchedulesHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid schedule ID"})
		return
	}

	item, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "schedule not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *SchedulesHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid schedule ID"})
		return
	}

	if err := h.scheduler.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "schedule not found"})
		case errors.Is(err, scheduler.ErrNotCancellable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

func (h *SchedulesHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	res, err := h.scheduler.ProcessDue(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"processed_count":    res.Processed,
		"success_count":      res.Succeeded,
		"failed_count":       res.Failed,
		"errors":             res.Errors,
		"processing_time_ms": res.ProcessingTime.Milliseconds(),
	})
}
