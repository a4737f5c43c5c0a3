package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteBuyerStore implements BuyerStore on SQLite. The buyer document is kept
// as JSON; cart_item_count and last_activity are copied out of it so the
// sweeper query can filter in SQL.
type SQLiteBuyerStore struct {
	db *sql.DB
}

// NewSQLiteBuyerStore returns a new SQLiteBuyerStore.
func NewSQLiteBuyerStore(db *sql.DB) *SQLiteBuyerStore {
	return &SQLiteBuyerStore{db: db}
}

// FindByID returns the buyer with the given id, or nil if not found.
func (s *SQLiteBuyerStore) FindByID(ctx context.Context, id string) (*Buyer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document, version FROM buyers WHERE id = ?`, id)
	b, err := scanBuyerRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting buyer %q: %w", id, err)
	}
	return b, nil
}

// Create inserts a new buyer document.
func (s *SQLiteBuyerStore) Create(ctx context.Context, b *Buyer) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1

	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding buyer %q: %w", b.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO buyers (id, name, email, document, cart_item_count, last_activity, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Email, string(doc), len(b.Cart.Items), activityMillis(b.Cart.LastActivityAt),
		b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting buyer %q: %w", b.ID, err)
	}
	return nil
}

// Save performs a conditional update on the stored version.
func (s *SQLiteBuyerStore) Save(ctx context.Context, b *Buyer) error {
	expected := b.Version
	next := *b
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encoding buyer %q: %w", b.ID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE buyers
		SET name = ?, email = ?, document = ?, cart_item_count = ?, last_activity = ?,
		    version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		next.Name, next.Email, string(doc), len(next.Cart.Items), activityMillis(next.Cart.LastActivityAt),
		next.Version, next.UpdatedAt, b.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("updating buyer %q: %w", b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of buyer %q: %w", b.ID, err)
	}
	if n == 0 {
		existing, findErr := s.FindByID(ctx, b.ID)
		if findErr != nil {
			return findErr
		}
		if existing == nil {
			return ErrBuyerNotFound
		}
		return ErrVersionConflict
	}

	b.Version = next.Version
	b.UpdatedAt = next.UpdatedAt
	return nil
}

// FindCartsOlderThan returns buyers with a non-empty cart and stale or unknown activity.
func (s *SQLiteBuyerStore) FindCartsOlderThan(ctx context.Context, cutoff time.Time) ([]*Buyer, error) {
	return s.query(ctx, `
		SELECT id, document, version FROM buyers
		WHERE cart_item_count > 0 AND (last_activity IS NULL OR last_activity < ?)
		ORDER BY id`, cutoff.UnixMilli())
}

// ListActiveCarts returns every buyer with a non-empty cart.
func (s *SQLiteBuyerStore) ListActiveCarts(ctx context.Context) ([]*Buyer, error) {
	return s.query(ctx, `
		SELECT id, document, version FROM buyers
		WHERE cart_item_count > 0
		ORDER BY id`)
}

func (s *SQLiteBuyerStore) query(ctx context.Context, q string, args ...any) ([]*Buyer, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying buyers: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	buyers := make([]*Buyer, 0)
	for rows.Next() {
		b, err := scanBuyerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning buyer row: %w", err)
		}
		buyers = append(buyers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buyer rows: %w", err)
	}
	return buyers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuyerRow(row rowScanner) (*Buyer, error) {
	var (
		id      string
		doc     string
		version int64
	)
	if err := row.Scan(&id, &doc, &version); err != nil {
		return nil, err
	}
	return decodeBuyer(id, []byte(doc), version)
}

// decodeBuyer unmarshals a stored document; the id and version columns are
// authoritative over the copies inside the JSON.
func decodeBuyer(id string, doc []byte, version int64) (*Buyer, error) {
	b := &Buyer{}
	if err := json.Unmarshal(doc, b); err != nil {
		return nil, fmt.Errorf("decoding buyer %q: %w", id, err)
	}
	b.ID = id
	b.Version = version
	return b, nil
}

func activityMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
