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

// ContactStore implements store.ContactStore backed by SQLite.
type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

const contactCols = `id, name, email, phone, tags, custom_fields, social_handles, created_at, updated_at`

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
		   WHERE (? <> '' AND lower(email) = lower(?))
		      OR (? <> '' AND phone = ?))`,
		c.Email, c.Email, c.Phone, c.Phone).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return store.ErrDuplicateIdentity
	}

	tags, err := jsonText(c.Tags, "[]")
	if err != nil {
		return err
	}
	custom, err := jsonText(c.CustomFields, "{}")
	if err != nil {
		return err
	}
	social, err := jsonText(c.SocialHandles, "{}")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contacts (`+contactCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, c.Email, c.Phone, tags, custom, social, now, now)
	return err
}

func (s *ContactStore) Get(ctx context.Context, id uuid.UUID) (*store.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactCols+` FROM contacts WHERE id = ?`, id.String())
	return scanContact(row)
}

func (s *ContactStore) FindByAddress(ctx context.Context, ch store.Channel, address string) (*store.Contact, error) {
	var row *sql.Row
	switch ch {
	case store.ChannelEmail:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+contactCols+` FROM contacts WHERE lower(email) = lower(?)`, address)
	case store.ChannelSMS, store.ChannelWhatsApp:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+contactCols+` FROM contacts WHERE phone = ?`, address)
	default:
		row = s.db.QueryRowContext(ctx,
			`SELECT `+contactCols+` FROM contacts
			 WHERE json_extract(social_handles, '$.' || ?) = ?`, string(ch), address)
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
	tags, err := jsonText(c.Tags, "[]")
	if err != nil {
		return err
	}
	custom, err := jsonText(c.CustomFields, "{}")
	if err != nil {
		return err
	}
	social, err := jsonText(c.SocialHandles, "{}")
	if err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	res, err := ex.ExecContext(ctx,
		`UPDATE contacts
		 SET name = ?, email = ?, phone = ?, tags = ?,
		     custom_fields = ?, social_handles = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.Email, c.Phone, tags, custom, social, c.UpdatedAt, c.ID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

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
			`UPDATE conversations SET contact_id = ? WHERE contact_id = ?`,
			primary.ID.String(), sec.String()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET contact_id = ? WHERE contact_id = ?`,
			primary.ID.String(), sec.String()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, sec.String())
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
	var tags, custom, social string

	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &tags,
		&custom, &social, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, err
	}
	if custom != "" && custom != "{}" {
		if err := json.Unmarshal([]byte(custom), &c.CustomFields); err != nil {
			return nil, err
		}
	}
	if social != "" && social != "{}" {
		if err := json.Unmarshal([]byte(social), &c.SocialHandles); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
