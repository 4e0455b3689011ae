package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// MessageStore implements store.MessageStore backed by Postgres.
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

	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}

	var userID any
	if m.UserID != uuid.Nil {
		userID = m.UserID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.ConversationID, m.ContactID, userID, m.Channel, m.Direction, m.Content,
		attachments, m.Status, m.ScheduledFor, m.SentAt, metadata, now, now)
	return err
}

func (s *MessageStore) Get(ctx context.Context, id uuid.UUID) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

func (s *MessageStore) GetByExternalID(ctx context.Context, externalID string) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageCols+` FROM messages WHERE metadata->>'external_id' = $1`, externalID)
	return scanMessage(row)
}

// UpdateStatus applies a status transition and merges metadata in one
// statement so a callback update is never partially visible.
func (s *MessageStore) UpdateStatus(ctx context.Context, id uuid.UUID, status store.MessageStatus, sentAt *time.Time, metadata map[string]string) error {
	patch, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages
		 SET status = $2,
		     sent_at = COALESCE($3, sent_at),
		     metadata = COALESCE(metadata, '{}'::jsonb) || $4::jsonb,
		     updated_at = $5
		 WHERE id = $1`,
		id, status, sentAt, patch, time.Now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	// Ordering is by persisted creation time, not arrival order; the
	// transport layer gives no FIFO guarantee across concurrent requests.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageCols+` FROM messages
		 WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2`,
		conversationID, limit)
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
	var userID sql.Null[uuid.UUID]
	var attachments, metadata []byte

	err := row.Scan(&m.ID, &m.ConversationID, &m.ContactID, &userID, &m.Channel,
		&m.Direction, &m.Content, &attachments, &m.Status, &m.ScheduledFor,
		&m.SentAt, &metadata, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		m.UserID = userID.V
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return nil, err
		}
	}
	return &m, nil
}
