package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres_schema.sql
var postgresSchema string

// PostgresBuyerStore implements BuyerStore on PostgreSQL with the document in a
// JSONB column.
type PostgresBuyerStore struct {
	pool *pgxpool.Pool
}

// NewPostgresBuyerStore returns a store backed by pool. Call EnsureSchema once
// before use.
func NewPostgresBuyerStore(pool *pgxpool.Pool) *PostgresBuyerStore {
	return &PostgresBuyerStore{pool: pool}
}

// EnsureSchema creates the buyers and sweep_runs tables when missing.
func (s *PostgresBuyerStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("pool.Exec schema: %w", err)
	}
	return nil
}

// FindByID returns the buyer with the given id, or nil if not found.
func (s *PostgresBuyerStore) FindByID(ctx context.Context, id string) (*Buyer, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT document, version FROM buyers WHERE id = $1`, id).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting buyer %q: %w", id, err)
	}
	return decodeBuyer(id, doc, version)
}

// Create inserts a new buyer document.
func (s *PostgresBuyerStore) Create(ctx context.Context, b *Buyer) error {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO buyers (id, name, email, document, cart_item_count, last_activity, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Name, b.Email, doc, len(b.Cart.Items), b.Cart.LastActivityAt,
		b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting buyer %q: %w", b.ID, err)
	}
	return nil
}

// Save performs a conditional update on the stored version.
func (s *PostgresBuyerStore) Save(ctx context.Context, b *Buyer) error {
	expected := b.Version
	next := *b
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encoding buyer %q: %w", b.ID, err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE buyers
		SET name = $1, email = $2, document = $3, cart_item_count = $4, last_activity = $5,
		    version = $6, updated_at = $7
		WHERE id = $8 AND version = $9`,
		next.Name, next.Email, doc, len(next.Cart.Items), next.Cart.LastActivityAt,
		next.Version, next.UpdatedAt, b.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("updating buyer %q: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM buyers WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking buyer %q: %w", b.ID, err)
		}
		if !exists {
			return ErrBuyerNotFound
		}
		return ErrVersionConflict
	}

	b.Version = next.Version
	b.UpdatedAt = next.UpdatedAt
	return nil
}

// FindCartsOlderThan returns buyers with a non-empty cart and stale or unknown activity.
func (s *PostgresBuyerStore) FindCartsOlderThan(ctx context.Context, cutoff time.Time) ([]*Buyer, error) {
	return s.query(ctx, `
		SELECT id, document, version FROM buyers
		WHERE cart_item_count > 0 AND (last_activity IS NULL OR last_activity < $1)
		ORDER BY id`, cutoff)
}

// ListActiveCarts returns every buyer with a non-empty cart.
func (s *PostgresBuyerStore) ListActiveCarts(ctx context.Context) ([]*Buyer, error) {
	return s.query(ctx, `
		SELECT id, document, version FROM buyers
		WHERE cart_item_count > 0
		ORDER BY id`)
}

func (s *PostgresBuyerStore) query(ctx context.Context, q string, args ...any) ([]*Buyer, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}
	defer rows.Close()

	buyers := make([]*Buyer, 0)
	for rows.Next() {
		var (
			id      string
			doc     []byte
			version int64
		)
		if err := rows.Scan(&id, &doc, &version); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		b, err := decodeBuyer(id, doc, version)
		if err != nil {
			return nil, err
		}
		buyers = append(buyers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return buyers, nil
}
