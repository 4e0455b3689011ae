package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// ScheduledMessageStore implements store.ScheduledMessageStore backed by
// Postgres.
type ScheduledMessageStore struct {
	db *sql.DB
}

func NewScheduledMessageStore(db *sql.DB) *ScheduledMessageStore {
	return &ScheduledMessageStore{db: db}
}

const scheduledCols = `id, message_id, scheduled_for, status, template_id, variables, last_error, created_at, updated_at`

func (s *ScheduledMessageStore) Create(ctx context.Context, sm *store.ScheduledMessage) error {
	if sm.ID == uuid.Nil {
		sm.ID = store.GenNewID()
	}
	now := time.Now()
	sm.CreatedAt = now
	sm.UpdatedAt = now

	variables, err := json.Marshal(sm.Variables)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduled_messages (`+scheduledCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sm.ID, sm.MessageID, sm.ScheduledFor, sm.Status, sm.TemplateID,
		variables, sm.LastError, now, now)
	return err
}

func (s *ScheduledMessageStore) Get(ctx context.Context, id uuid.UUID) (*store.ScheduledMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduledCols+` FROM scheduled_messages WHERE id = $1`, id)
	return scanScheduled(row)
}

func (s *ScheduledMessageStore) ListDue(ctx context.Context, now time.Time) ([]store.ScheduledMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduledCols+` FROM scheduled_messages
		 WHERE status = $1 AND scheduled_for <= $2
		 ORDER BY scheduled_for`,
		store.SchedulePending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ScheduledMessage
	for rows.Next() {
		sm, scanErr := scanScheduled(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *sm)
	}
	return out, rows.Err()
}

// Claim is the atomic conditional update granting exclusive processing
// rights: only a pending row transitions, and exactly one concurrent caller
// sees RowsAffected == 1.
func (s *ScheduledMessageStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_messages SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = $4`,
		id, store.ScheduleProcessing, time.Now(), store.SchedulePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Finalize moves a claimed item to its terminal status and updates the
// paired message row inside one transaction.
func (s *ScheduledMessageStore) Finalize(ctx context.Context, id uuid.UUID, status store.ScheduleStatus, sendErr string, sentAt *time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	var messageID uuid.UUID
	err = tx.QueryRowContext(ctx,
		`UPDATE scheduled_messages SET status = $2, last_error = $3, updated_at = $4
		 WHERE id = $1 RETURNING message_id`,
		id, status, sendErr, now).Scan(&messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	switch status {
	case store.ScheduleSent:
		_, err = tx.ExecContext(ctx,
			`UPDATE messages SET status = $2, sent_at = COALESCE($3, sent_at), updated_at = $4 WHERE id = $1`,
			messageID, store.StatusSent, sentAt, now)
	case store.ScheduleFailed:
		meta, mErr := json.Marshal(map[string]string{store.MetaSendError: sendErr})
		if mErr != nil {
			return mErr
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE messages
			 SET status = $2, metadata = COALESCE(metadata, '{}'::jsonb) || $3::jsonb, updated_at = $4
			 WHERE id = $1`,
			messageID, store.StatusFailed, meta, now)
	case store.ScheduleCancelled:
		// Message stays scheduled; cancellation is schedule-level.
	default:
		return fmt.Errorf("finalize to non-terminal status %q", status)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Cancel flips pending → cancelled with the same conditional-update claim
// semantics, so it loses cleanly against a concurrent processor run.
func (s *ScheduledMessageStore) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_messages SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = $4`,
		id, store.ScheduleCancelled, time.Now(), store.SchedulePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanScheduled(row rowScanner) (*store.ScheduledMessage, error) {
	var sm store.ScheduledMessage
	var variables []byte

	err := row.Scan(&sm.ID, &sm.MessageID, &sm.ScheduledFor, &sm.Status,
		&sm.TemplateID, &variables, &sm.LastError, &sm.CreatedAt, &sm.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &sm.Variables); err != nil {
			return nil, err
		}
	}
	return &sm, nil
}
