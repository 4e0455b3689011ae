package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// ContactStore implements store.ContactStore backed by Postgres.
type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

const contactCols = `id, name, email, phone, tags, custom_fields, social_handles, created_at, updated_at`

// Create inserts a contact, rejecting exact email/phone collisions.
// Uniqueness is a soft business-layer constraint; near-duplicates are left
// for the merge workflow.
func (s *ContactStore) Create(ctx context.Context, c *store.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = store.GenNewID()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM contacts
		   WHERE ($1 <> '' AND lower(email) = lower($1))
		      OR ($2 <> '' AND phone = $2))`,
		c.Email, c.Phone).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return store.ErrDuplicateIdentity
	}

	custom, err := json.Marshal(c.CustomFields)
	if err != nil {
		return err
	}
	social, err := json.Marshal(c.SocialHandles)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contacts (`+contactCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.Email, c.Phone, pq.Array(c.Tags), custom, social, now, now)
	return err
}

func (s *ContactStore) Get(ctx context.Context, id uuid.UUID) (*store.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactCols+` FROM contacts WHERE id = $1`, id)
	return scanContact(row)
}

func (s *ContactStore) FindByAddress(ctx context.Context, ch store.Channel, address string) (*store.Contact, error) {
	var row *sql.Row
	switch ch {
	case store.ChannelEmail:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+contactCols+` FROM contacts WHERE lower(email) = lower($1)`, address)
	case store.ChannelSMS, store.ChannelWhatsApp:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+contactCols+` FROM contacts WHERE phone = $1`, address)
	default:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+contactCols+` FROM contacts WHERE social_handles->>$1 = $2`, string(ch), address)
	}
	return scanContact(row)
}

func (s *ContactStore) List(ctx context.Context) ([]store.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactCols+` FROM contacts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Contact
	for rows.Next() {
		c, scanErr := scanContact(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *ContactStore) Update(ctx context.Context, c *store.Contact) error {
	return s.update(ctx, s.db, c)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *ContactStore) update(ctx context.Context, ex execer, c *store.Contact) error {
	custom, err := json.Marshal(c.CustomFields)
	if err != nil {
		return err
	}
	social, err := json.Marshal(c.SocialHandles)
	if err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	res, err := ex.ExecContext(ctx,
		`UPDATE contacts
		 SET name = $2, email = $3, phone = $4, tags = $5,
		     custom_fields = $6, social_handles = $7, updated_at = $8
		 WHERE id = $1`,
		c.ID, c.Name, c.Email, c.Phone, pq.Array(c.Tags), custom, social, c.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MergeInto applies a computed merge atomically: the primary update, the
// conversation/message reassignments and the secondary deletions happen in
// one transaction, so a mid-merge failure leaves no half-merged state.
func (s *ContactStore) MergeInto(ctx context.Context, primary *store.Contact, secondaryIDs []uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.update(ctx, tx, primary); err != nil {
		return err
	}
	for _, sec := range secondaryIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET contact_id = $1 WHERE contact_id = $2`,
			primary.ID, sec); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET contact_id = $1 WHERE contact_id = $2`,
			primary.ID, sec); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, sec)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
	}
	return tx.Commit()
}

func scanContact(row rowScanner) (*store.Contact, error) {
	var c store.Contact
	var custom, social []byte

	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, pq.Array(&c.Tags),
		&custom, &social, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &c.CustomFields); err != nil {
			return nil, err
		}
	}
	if len(social) > 0 {
		if err := json.Unmarshal(social, &c.SocialHandles); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
