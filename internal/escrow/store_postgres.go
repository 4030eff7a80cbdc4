package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
)

// PostgresDepositStore persists deposits in PostgreSQL. Pure I/O; the state
// machine and authorization live in the service.
type PostgresDepositStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresDepositStore {
	return &PostgresDepositStore{db: db}
}

// Schema is applied by deployment migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS deposits (
	id           BIGSERIAL PRIMARY KEY,
	property_id  BIGINT      NOT NULL,
	tenant       UUID        NULL,
	code_hash    TEXT        NOT NULL,
	amount       BIGINT      NOT NULL,
	final_amount BIGINT      NOT NULL,
	status       TEXT        NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	paid_at      TIMESTAMPTZ NULL,
	refunded_at  TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS idx_deposits_property ON deposits (property_id, id);
CREATE INDEX IF NOT EXISTS idx_deposits_tenant ON deposits (tenant, id);
`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresDepositStore) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

const depositColumns = `id, property_id, tenant, code_hash, amount, final_amount, status, created_at, paid_at, refunded_at`

func (s *PostgresDepositStore) Create(ctx context.Context, deposit *Deposit) error {
	query := `
		INSERT INTO deposits (property_id, tenant, code_hash, amount, final_amount, status, created_at, paid_at, refunded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var rawID uint64
	err := s.q(ctx).QueryRowContext(ctx, query,
		uint64(deposit.PropertyID),
		nullAccount(deposit.Tenant),
		deposit.CodeHash,
		deposit.Amount,
		deposit.FinalAmount,
		string(deposit.Status),
		deposit.CreatedAt,
		deposit.PaidAt,
		deposit.RefundedAt,
	).Scan(&rawID)
	if err != nil {
		return fmt.Errorf("create deposit: %w", err)
	}
	deposit.ID = id.DepositID(rawID)
	return nil
}

func (s *PostgresDepositStore) FindByID(ctx context.Context, depositID id.DepositID) (*Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`
	// Inside a transaction the read is a mutating read: lock the row so two
	// operations on the same deposit serialize instead of both validating
	// against the same snapshot.
	if _, inTx := tx.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	deposit, err := scanDeposit(s.q(ctx).QueryRowContext(ctx, query, uint64(depositID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find deposit: %w", err)
	}
	return deposit, nil
}

func (s *PostgresDepositStore) Update(ctx context.Context, deposit *Deposit) error {
	query := `
		UPDATE deposits
		SET tenant = $2, code_hash = $3, amount = $4, final_amount = $5, status = $6, paid_at = $7, refunded_at = $8
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uint64(deposit.ID),
		nullAccount(deposit.Tenant),
		deposit.CodeHash,
		deposit.Amount,
		deposit.FinalAmount,
		string(deposit.Status),
		deposit.PaidAt,
		deposit.RefundedAt,
	)
	if err != nil {
		return fmt.Errorf("update deposit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update deposit: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresDepositStore) ListByTenant(ctx context.Context, tenant id.Account) ([]*Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE tenant = $1 ORDER BY id`
	return s.list(ctx, query, tenant.String())
}

func (s *PostgresDepositStore) ListByProperty(ctx context.Context, propertyID id.PropertyID) ([]*Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE property_id = $1 ORDER BY id`
	return s.list(ctx, query, uint64(propertyID))
}

func (s *PostgresDepositStore) HasForProperty(ctx context.Context, propertyID id.PropertyID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM deposits WHERE property_id = $1)`
	var exists bool
	if err := s.q(ctx).QueryRowContext(ctx, query, uint64(propertyID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check deposits: %w", err)
	}
	return exists, nil
}

func (s *PostgresDepositStore) list(ctx context.Context, query string, arg any) ([]*Deposit, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	deposits := make([]*Deposit, 0)
	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("list deposits: %w", err)
		}
		deposits = append(deposits, deposit)
	}
	return deposits, rows.Err()
}

func nullAccount(account id.Account) sql.NullString {
	if account.IsNil() {
		return sql.NullString{}
	}
	return sql.NullString{String: account.String(), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeposit(row rowScanner) (*Deposit, error) {
	var (
		d          Deposit
		rawID      uint64
		rawProp    uint64
		tenant     sql.NullString
		status     string
		paidAt     sql.NullTime
		refundedAt sql.NullTime
	)
	err := row.Scan(&rawID, &rawProp, &tenant, &d.CodeHash, &d.Amount, &d.FinalAmount, &status, &d.CreatedAt, &paidAt, &refundedAt)
	if err != nil {
		return nil, err
	}
	d.ID = id.DepositID(rawID)
	d.PropertyID = id.PropertyID(rawProp)
	d.Status = Status(status)
	if tenant.Valid {
		acct, err := id.ParseAccount(tenant.String)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		d.Tenant = acct
	}
	if paidAt.Valid {
		t := paidAt.Time
		d.PaidAt = &t
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		d.RefundedAt = &t
	}
	return &d, nil
}
