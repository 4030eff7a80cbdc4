package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
)

// PostgresStore persists properties in PostgreSQL. This store is pure I/O;
// all domain rules (deletion gating, availability) belong in the services.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed property store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier lets the same store code run inside or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

// Schema is applied by deployment migrations; kept here as the authoritative
// shape the store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS properties (
	id                 BIGSERIAL PRIMARY KEY,
	landlord           UUID        NOT NULL,
	name               TEXT        NOT NULL,
	location           TEXT        NOT NULL,
	status             TEXT        NOT NULL,
	current_deposit_id BIGINT      NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_properties_landlord ON properties (landlord);
`

func (s *PostgresStore) Create(ctx context.Context, property *Property) error {
	query := `
		INSERT INTO properties (landlord, name, location, status, current_deposit_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var assigned uint64
	err := s.q(ctx).QueryRowContext(ctx, query,
		property.Landlord.String(),
		property.Name,
		property.Location,
		string(property.Status),
		uint64(property.CurrentDepositID),
		property.CreatedAt,
	).Scan(&assigned)
	if err != nil {
		return fmt.Errorf("create property: %w", err)
	}
	property.ID = id.PropertyID(assigned)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, propertyID id.PropertyID) (*Property, error) {
	query := `
		SELECT id, landlord, name, location, status, current_deposit_id, created_at
		FROM properties
		WHERE id = $1
	`
	// Inside a transaction the read is a mutating read: lock the row so two
	// operations on the same property serialize.
	if _, inTx := tx.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	p, err := scanProperty(s.q(ctx).QueryRowContext(ctx, query, uint64(propertyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find property: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Update(ctx context.Context, property *Property) error {
	query := `
		UPDATE properties
		SET name = $2, location = $3, status = $4, current_deposit_id = $5
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uint64(property.ID),
		property.Name,
		property.Location,
		string(property.Status),
		uint64(property.CurrentDepositID),
	)
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, propertyID id.PropertyID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, uint64(propertyID))
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByLandlord(ctx context.Context, landlord id.Account) ([]id.PropertyID, error) {
	query := `SELECT id FROM properties WHERE landlord = $1 ORDER BY id`
	rows, err := s.q(ctx).QueryContext(ctx, query, landlord.String())
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var ids []id.PropertyID
	for rows.Next() {
		var raw uint64
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan property id: %w", err)
		}
		ids = append(ids, id.PropertyID(raw))
	}
	return ids, rows.Err()
}

func scanProperty(row *sql.Row) (*Property, error) {
	var (
		p        Property
		rawID    uint64
		landlord string
		status   string
		current  uint64
	)
	if err := row.Scan(&rawID, &landlord, &p.Name, &p.Location, &status, &current, &p.CreatedAt); err != nil {
		return nil, err
	}
	acct, err := id.ParseAccount(landlord)
	if err != nil {
		return nil, fmt.Errorf("scan landlord: %w", err)
	}
	p.ID = id.PropertyID(rawID)
	p.Landlord = acct
	p.Status = Status(status)
	p.CurrentDepositID = id.DepositID(current)
	return &p, nil
}
