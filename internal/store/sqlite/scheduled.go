package sqlite

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
// SQLite.
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

	variables, err := jsonText(sm.Variables, "{}")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduled_messages (`+scheduledCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sm.ID.String(), sm.MessageID.String(), sm.ScheduledFor, sm.Status,
		sm.TemplateID, variables, sm.LastError, now, now)
	return err
}

func (s *ScheduledMessageStore) Get(ctx context.Context, id uuid.UUID) (*store.ScheduledMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduledCols+` FROM scheduled_messages WHERE id = ?`, id.String())
	return scanScheduled(row)
}

func (s *ScheduledMessageStore) ListDue(ctx context.Context, now time.Time) ([]store.ScheduledMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduledCols+` FROM scheduled_messages
		 WHERE status = ? AND scheduled_for <= ?
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

// Claim flips pending → processing with a conditional update; exactly one
// concurrent caller observes RowsAffected == 1.
func (s *ScheduledMessageStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_messages SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		store.ScheduleProcessing, time.Now(), id.String(), store.SchedulePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *ScheduledMessageStore) Finalize(ctx context.Context, id uuid.UUID, status store.ScheduleStatus, sendErr string, sentAt *time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	var messageID string
	err = tx.QueryRowContext(ctx,
		`SELECT message_id FROM scheduled_messages WHERE id = ?`, id.String()).Scan(&messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE scheduled_messages SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, sendErr, now, id.String()); err != nil {
		return err
	}

	switch status {
	case store.ScheduleSent:
		_, err = tx.ExecContext(ctx,
			`UPDATE messages SET status = ?, sent_at = COALESCE(?, sent_at), updated_at = ? WHERE id = ?`,
			store.StatusSent, sentAt, now, messageID)
	case store.ScheduleFailed:
		_, err = tx.ExecContext(ctx,
			`UPDATE messages
			 SET status = ?, metadata = json_set(metadata, '$.send_error', ?), updated_at = ?
			 WHERE id = ?`,
			store.StatusFailed, sendErr, now, messageID)
	case store.ScheduleCancelled:
		// Schedule-level only.
	default:
		return fmt.Errorf("finalize to non-terminal status %q", status)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *ScheduledMessageStore) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_messages SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		store.ScheduleCancelled, time.Now(), id.String(), store.SchedulePending)
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
	var variables string

	err := row.Scan(&sm.ID, &sm.MessageID, &sm.ScheduledFor, &sm.Status,
		&sm.TemplateID, &variables, &sm.LastError, &sm.CreatedAt, &sm.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if variables != "" && variables != "{}" {
		if err := json.Unmarshal([]byte(variables), &sm.Variables); err != nil {
			return nil, err
		}
	}
	return &sm, nil
}
