// Package scheduler persists deferred sends and processes due items. The
// due-message processor is driven by an external recurring trigger and
// guarantees at most one delivery attempt per item under concurrent
// invocation by claiming each row before sending.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/dispatch"
	"github.com/NKRTECH/unified-inbox/internal/store"
)

var (
	// ErrNotFuture rejects a schedule whose time is not strictly ahead.
	ErrNotFuture = errors.New("scheduled_for must be in the future")
	// ErrNotCancellable is returned for items no longer pending: already
	// claimed by a processor run, finished, or cancelled.
	ErrNotCancellable = errors.New("scheduled message is no longer pending")
)

// Service is the scheduling service.
type Service struct {
	stores   *store.Stores
	dispatch *dispatch.Service
	log      *slog.Logger
	now      func() time.Time
}

// New creates a scheduling service.
func New(stores *store.Stores, d *dispatch.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{stores: stores, dispatch: d, log: log, now: time.Now}
}

// CreateRequest describes one deferred send.
type CreateRequest struct {
	ConversationID uuid.UUID         `json:"conversation_id"`
	ContactID      uuid.UUID         `json:"contact_id"`
	UserID         uuid.UUID         `json:"user_id,omitempty"`
	Channel        store.Channel     `json:"channel"`
	Content        string            `json:"content"`
	ScheduledFor   time.Time         `json:"scheduled_for"`
	TemplateID     string            `json:"template_id,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
}

// Create validates and persists a deferred send: a message in scheduled
// state paired with a pending ScheduledMessage.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.ScheduledMessage, *store.Message, error) {
	if !req.ScheduledFor.After(s.now()) {
		return nil, nil, ErrNotFuture
	}

	when := req.ScheduledFor
	msg, err := s.dispatch.CreateScheduled(ctx, dispatch.SendRequest{
		ConversationID: req.ConversationID,
		ContactID:      req.ContactID,
		UserID:         req.UserID,
		Channel:        req.Channel,
		Content:        req.Content,
		ScheduledFor:   &when,
	})
	if err != nil {
		return nil, nil, err
	}

	sched := &store.ScheduledMessage{
		ID:           store.GenNewID(),
		MessageID:    msg.ID,
		ScheduledFor: when,
		Status:       store.SchedulePending,
		TemplateID:   req.TemplateID,
		Variables:    req.Variables,
	}
	if err := s.stores.Scheduled.Create(ctx, sched); err != nil {
		return nil, nil, fmt.Errorf("persist schedule: %w", err)
	}

	s.log.Info("message scheduled",
		"schedule", sched.ID, "message", msg.ID, "at", when)
	return sched, msg, nil
}

// Get loads one scheduled message.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.ScheduledMessage, error) {
	return s.stores.Scheduled.Get(ctx, id)
}

// Cancel cancels a pending item. Cancellation races the due processor
// through the same claim mechanism: once a run has claimed the row, a late
// cancel reports ErrNotCancellable instead of silently no-opping.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	ok, err := s.stores.Scheduled.Cancel(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCancellable
	}
	s.log.Info("scheduled message cancelled", "schedule", id)
	return nil
}

// Result aggregates one due-processor run.
type Result struct {
	Processed      int           `json:"processed_count"`
	Succeeded      int           `json:"success_count"`
	Failed         int           `json:"failed_count"`
	Errors         []string      `json:"errors,omitempty"`
	ProcessingTime time.Duration `json:"-"`
}

// ProcessDue sends every due pending item at most once. Overlapping
// invocations are safe: each item is claimed with an atomic pending →
// processing transition, and a failed claim means another run owns it.
// Failed items are finalized as failed and never auto-retried.
func (s *Service) ProcessDue(ctx context.Context) (*Result, error) {
	start := s.now()
	due, err := s.stores.Scheduled.ListDue(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("list due messages: %w", err)
	}

	res := &Result{}
	for i := range due {
		item := &due[i]

		claimed, claimErr := s.stores.Scheduled.Claim(ctx, item.ID)
		if claimErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("claim %s: %v", item.ID, claimErr))
			continue
		}
		if !claimed {
			// Another invocation (or a cancel) got here first.
			continue
		}

		res.Processed++
		if s.processClaimed(ctx, item, res) {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	res.ProcessingTime = s.now().Sub(start)
	s.log.Info("due messages processed",
		"processed", res.Processed, "succeeded", res.Succeeded,
		"failed", res.Failed, "duration", res.ProcessingTime)
	return res, nil
}

// processClaimed sends one claimed item and finalizes both rows. Returns
// true on a successful send.
func (s *Service) processClaimed(ctx context.Context, item *store.ScheduledMessage, res *Result) bool {
	fail := func(reason string) bool {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", item.ID, reason))
		if err := s.stores.Scheduled.Finalize(ctx, item.ID, store.ScheduleFailed, reason, nil); err != nil {
			s.log.Error("failed to finalize schedule", "schedule", item.ID, "error", err)
		}
		return false
	}

	msg, err := s.stores.Messages.Get(ctx, item.MessageID)
	if err != nil {
		return fail(fmt.Sprintf("load message: %v", err))
	}

	content := msg.Content
	if len(item.Variables) > 0 {
		content = RenderTemplate(content, item.Variables)
	}

	resp := s.dispatch.SendExisting(ctx, msg, content)
	if !resp.Success {
		return fail(resp.Error)
	}

	sentAt := s.now()
	if err := s.stores.Scheduled.Finalize(ctx, item.ID, store.ScheduleSent, "", &sentAt); err != nil {
		s.log.Error("failed to finalize schedule", "schedule", item.ID, "error", err)
	}
	return true
}
