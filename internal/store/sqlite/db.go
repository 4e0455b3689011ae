// Package sqlite implements the stores on SQLite for local mode and tests.
// The schema is bootstrapped on open; Postgres deployments use the SQL
// migrations instead.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	custom_fields TEXT NOT NULL DEFAULT '{}',
	social_handles TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL REFERENCES contacts(id),
	channel TEXT NOT NULL,
	address TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE (channel, address)
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	contact_id TEXT NOT NULL REFERENCES contacts(id),
	user_id TEXT,
	channel TEXT NOT NULL,
	direction TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	attachments TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	scheduled_for TIMESTAMP,
	sent_at TIMESTAMP,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_external_id ON messages(json_extract(metadata, '$.external_id'));

CREATE TABLE IF NOT EXISTS scheduled_messages (
	id TEXT PRIMARY KEY,
	message_id TEXT NOT NULL UNIQUE REFERENCES messages(id),
	scheduled_for TIMESTAMP NOT NULL,
	status TEXT NOT NULL,
	template_id TEXT NOT NULL DEFAULT '',
	variables TEXT NOT NULL DEFAULT '{}',
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scheduled_due ON scheduled_messages(status, scheduled_for);
`

// OpenDB opens a SQLite database and bootstraps the schema.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Claim correctness relies on conditional updates; a single writer
	// avoids SQLITE_BUSY surprises under concurrent processor runs.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap sqlite schema: %w", err)
	}
	return db, nil
}

// NewStores creates all stores backed by SQLite.
func NewStores(cfg store.StoreConfig) (*store.Stores, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "unified-inbox.db"
	}
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &store.Stores{
		Messages:      NewMessageStore(db),
		Scheduled:     NewScheduledMessageStore(db),
		Contacts:      NewContactStore(db),
		Conversations: NewConversationStore(db),
		Close:         db.Close,
	}, nil
}
