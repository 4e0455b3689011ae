package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared by all backends.
var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateIdentity is returned when creating a contact whose
	// normalized email or phone exactly collides with an existing one.
	ErrDuplicateIdentity = errors.New("contact with identical email or phone already exists")
)

// MessageStore persists messages and their status transitions.
type MessageStore interface {
	Create(ctx context.Context, m *Message) error
	Get(ctx context.Context, id uuid.UUID) (*Message, error)
	// GetByExternalID looks a message up by the carrier's external id
	// stored in metadata. Used for status-callback correlation.
	GetByExternalID(ctx context.Context, externalID string) (*Message, error)
	// UpdateStatus sets status, optional sentAt, and merges metadata
	// entries in one transaction.
	UpdateStatus(ctx context.Context, id uuid.UUID, status MessageStatus, sentAt *time.Time, metadata map[string]string) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)
}

// ScheduledMessageStore persists deferred sends. Claim and Finalize carry the
// at-most-once guarantee for the due-message processor.
type ScheduledMessageStore interface {
	Create(ctx context.Context, s *ScheduledMessage) error
	Get(ctx context.Context, id uuid.UUID) (*ScheduledMessage, error)
	// ListDue returns pending items with scheduledFor <= now.
	ListDue(ctx context.Context, now time.Time) ([]ScheduledMessage, error)
	// Claim atomically flips pending → processing for one item. It returns
	// false (and no error) when the item was already claimed, finished or
	// cancelled by someone else.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	// Finalize moves a processing item to its terminal status and updates
	// the paired message row in the same transaction.
	Finalize(ctx context.Context, id uuid.UUID, status ScheduleStatus, sendErr string, sentAt *time.Time) error
	// Cancel flips pending → cancelled. Returns false when the item is no
	// longer pending (claimed, finished or already cancelled).
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

// ContactStore persists contacts. MergeInto applies a precomputed merge
// atomically: update the primary, reassign conversation/message foreign keys
// from each secondary, delete the secondaries, all in one transaction.
type ContactStore interface {
	Create(ctx context.Context, c *Contact) error
	Get(ctx context.Context, id uuid.UUID) (*Contact, error)
	// FindByAddress matches the channel-appropriate identity column
	// (phone for phone channels, email for email, handle otherwise).
	FindByAddress(ctx context.Context, ch Channel, address string) (*Contact, error)
	List(ctx context.Context) ([]Contact, error)
	Update(ctx context.Context, c *Contact) error
	MergeInto(ctx context.Context, primary *Contact, secondaryIDs []uuid.UUID) error
}

// ConversationStore persists conversations.
type ConversationStore interface {
	Create(ctx context.Context, c *Conversation) error
	Get(ctx context.Context, id uuid.UUID) (*Conversation, error)
	FindByAddress(ctx context.Context, ch Channel, address string) (*Conversation, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Messages      MessageStore
	Scheduled     ScheduledMessageStore
	Contacts      ContactStore
	Conversations ConversationStore

	// Close releases the underlying database handle.
	Close func() error
}

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	// PostgresDSN selects the Postgres backend when non-empty.
	PostgresDSN string
	// SQLitePath is the fallback local backend (":memory:" for tests).
	SQLitePath string
}
