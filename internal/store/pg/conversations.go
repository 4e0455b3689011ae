package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// ConversationStore implements store.ConversationStore backed by Postgres.
type ConversationStore struct {
	db *sql.DB
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

const conversationCols = `id, contact_id, channel, address, created_at, updated_at`

func (s *ConversationStore) Create(ctx context.Context, c *store.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = store.GenNewID()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (`+conversationCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ContactID, c.Channel, c.Address, now, now)
	return err
}

func (s *ConversationStore) Get(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationCols+` FROM conversations WHERE id = $1`, id)
	return scanConversation(row)
}

func (s *ConversationStore) FindByAddress(ctx context.Context, ch store.Channel, address string) (*store.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationCols+` FROM conversations WHERE channel = $1 AND address = $2`,
		ch, address)
	return scanConversation(row)
}

func (s *ConversationStore) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`, id, time.Now())
	return err
}

func scanConversation(row rowScanner) (*store.Conversation, error) {
	var c store.Conversation
	err := row.Scan(&c.ID, &c.ContactID, &c.Channel, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
