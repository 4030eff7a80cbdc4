package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
)

// PostgresTokenStore persists receipt tokens in PostgreSQL. The unique index
// on deposit_id enforces one token per deposit at the storage layer.
type PostgresTokenStore struct {
	db *sql.DB
}

func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

// Schema is applied by deployment migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS receipt_tokens (
	id         BIGSERIAL PRIMARY KEY,
	deposit_id BIGINT      NOT NULL,
	owner      UUID        NULL,
	minted_at  TIMESTAMPTZ NOT NULL,
	burned     BOOLEAN     NOT NULL DEFAULT FALSE
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_receipt_tokens_deposit ON receipt_tokens (deposit_id);
`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresTokenStore) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresTokenStore) Mint(ctx context.Context, token *Token) error {
	query := `
		INSERT INTO receipt_tokens (deposit_id, owner, minted_at, burned)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id
	`
	var rawID uint64
	err := s.q(ctx).QueryRowContext(ctx, query,
		uint64(token.DepositID),
		token.Owner.String(),
		token.MintedAt,
	).Scan(&rawID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("mint token: %w", err)
	}
	token.ID = id.TokenID(rawID)
	return nil
}

func (s *PostgresTokenStore) FindByID(ctx context.Context, tokenID id.TokenID) (*Token, error) {
	query := `SELECT id, deposit_id, owner, minted_at, burned FROM receipt_tokens WHERE id = $1`
	return s.scan(s.q(ctx).QueryRowContext(ctx, query, uint64(tokenID)))
}

func (s *PostgresTokenStore) FindByDeposit(ctx context.Context, depositID id.DepositID) (*Token, error) {
	query := `SELECT id, deposit_id, owner, minted_at, burned FROM receipt_tokens WHERE deposit_id = $1`
	return s.scan(s.q(ctx).QueryRowContext(ctx, query, uint64(depositID)))
}

func (s *PostgresTokenStore) Update(ctx context.Context, token *Token) error {
	query := `UPDATE receipt_tokens SET owner = $2, burned = $3 WHERE id = $1`
	var owner sql.NullString
	if !token.Owner.IsNil() {
		owner = sql.NullString{String: token.Owner.String(), Valid: true}
	}
	res, err := s.q(ctx).ExecContext(ctx, query, uint64(token.ID), owner, token.Burned)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresTokenStore) scan(row *sql.Row) (*Token, error) {
	var (
		t          Token
		rawID      uint64
		rawDeposit uint64
		owner      sql.NullString
	)
	err := row.Scan(&rawID, &rawDeposit, &owner, &t.MintedAt, &t.Burned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	t.ID = id.TokenID(rawID)
	t.DepositID = id.DepositID(rawDeposit)
	if owner.Valid {
		acct, err := id.ParseAccount(owner.String)
		if err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		t.Owner = acct
	}
	return &t, nil
}
