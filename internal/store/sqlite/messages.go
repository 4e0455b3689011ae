package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// MessageStore implements store.MessageStore backed by SQLite.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

const messageCols = `id, conversation_id, contact_id, user_id, channel, direction, content,
	attachments, status, scheduled_for, sent_at, metadata, created_at, updated_at`

func (s *MessageStore) Create(ctx context.Context, m *store.Message) error {
	if m.ID == uuid.Nil {
		m.ID = store.GenNewID()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	attachments, err := jsonText(m.Attachments, "[]")
	if err != nil {
		return err
	}
	metadata, err := jsonText(m.Metadata, "{}")
	if err != nil {
		return err
	}

	var userID any
	if m.UserID != uuid.Nil {
		userID = m.UserID.String()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.ConversationID.String(), m.ContactID.String(), userID,
		m.Channel, m.Direction, m.Content, attachments, m.Status,
		m.ScheduledFor, m.SentAt, metadata, now, now)
	return err
}

func (s *MessageStore) Get(ctx context.Context, id uuid.UUID) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE id = ?`, id.String())
	return scanMessage(row)
}

func (s *MessageStore) GetByExternalID(ctx context.Context, externalID string) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageCols+` FROM messages
		 WHERE json_extract(metadata, '$.external_id') = ?`, externalID)
	return scanMessage(row)
}

// UpdateStatus applies a status transition and merges metadata inside one
// transaction (SQLite has no jsonb concat, so the merge is read-modify-write).
func (s *MessageStore) UpdateStatus(ctx context.Context, id uuid.UUID, status store.MessageStatus, sentAt *time.Time, metadata map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT metadata FROM messages WHERE id = ?`, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	merged := map[string]string{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &merged); err != nil {
			return err
		}
	}
	for k, v := range metadata {
		merged[k] = v
	}
	mergedText, err := json.Marshal(merged)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages
		 SET status = ?, sent_at = COALESCE(?, sent_at), metadata = ?, updated_at = ?
		 WHERE id = ?`,
		status, sentAt, string(mergedText), time.Now(), id.String()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages
		 WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?`,
		conversationID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		m, scanErr := scanMessage(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var m store.Message
	var userID sql.NullString
	var attachments, metadata string

	err := row.Scan(&m.ID, &m.ConversationID, &m.ContactID, &userID, &m.Channel,
		&m.Direction, &m.Content, &attachments, &m.Status, &m.ScheduledFor,
		&m.SentAt, &metadata, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID.Valid && userID.String != "" {
		uid, parseErr := uuid.Parse(userID.String)
		if parseErr != nil {
			return nil, parseErr
		}
		m.UserID = uid
	}
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, err
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &m.Metadata); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// jsonText marshals v, substituting empty for a stable zero literal.
func jsonText(v any, zero string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(b)
	if s == "null" {
		s = zero
	}
	return s, nil
}
