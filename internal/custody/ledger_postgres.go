package custody

import (
	"context"
	"database/sql"
	"fmt"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
)

// PostgresLedger persists custody balances in PostgreSQL. Movements issued
// inside a transaction ride that transaction, so a rolled-back escrow
// operation leaves the funds exactly where they were.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Schema is applied by deployment migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS custody_accounts (
	account UUID   PRIMARY KEY,
	balance BIGINT NOT NULL CHECK (balance >= 0)
);
CREATE TABLE IF NOT EXISTS custody_holds (
	deposit_id BIGINT PRIMARY KEY,
	amount     BIGINT NOT NULL CHECK (amount >= 0)
);
`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *PostgresLedger) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return l.db
}

func (l *PostgresLedger) Credit(ctx context.Context, account id.Account, amount uint64) error {
	query := `
		INSERT INTO custody_accounts (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = custody_accounts.balance + EXCLUDED.balance
	`
	if _, err := l.q(ctx).ExecContext(ctx, query, account.String(), amount); err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Debit(ctx context.Context, account id.Account, amount uint64) error {
	query := `UPDATE custody_accounts SET balance = balance - $2 WHERE account = $1 AND balance >= $2`
	res, err := l.q(ctx).ExecContext(ctx, query, account.String(), amount)
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInsufficientFunds
	}
	return nil
}

func (l *PostgresLedger) Balance(ctx context.Context, account id.Account) (uint64, error) {
	query := `SELECT COALESCE((SELECT balance FROM custody_accounts WHERE account = $1), 0)`
	var balance uint64
	if err := l.q(ctx).QueryRowContext(ctx, query, account.String()).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

func (l *PostgresLedger) Hold(ctx context.Context, depositID id.DepositID, from id.Account, amount uint64) error {
	if err := l.Debit(ctx, from, amount); err != nil {
		return err
	}
	query := `
		INSERT INTO custody_holds (deposit_id, amount) VALUES ($1, $2)
		ON CONFLICT (deposit_id) DO UPDATE SET amount = custody_holds.amount + EXCLUDED.amount
	`
	if _, err := l.q(ctx).ExecContext(ctx, query, uint64(depositID), amount); err != nil {
		return fmt.Errorf("hold funds: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Release(ctx context.Context, depositID id.DepositID, to id.Account, amount uint64) error {
	if amount == 0 {
		return nil
	}
	query := `UPDATE custody_holds SET amount = amount - $2 WHERE deposit_id = $1 AND amount >= $2`
	res, err := l.q(ctx).ExecContext(ctx, query, uint64(depositID), amount)
	if err != nil {
		return fmt.Errorf("release funds: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release funds: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInsufficientFunds
	}
	return l.Credit(ctx, to, amount)
}

func (l *PostgresLedger) Held(ctx context.Context, depositID id.DepositID) (uint64, error) {
	query := `SELECT COALESCE((SELECT amount FROM custody_holds WHERE deposit_id = $1), 0)`
	var held uint64
	if err := l.q(ctx).QueryRowContext(ctx, query, uint64(depositID)).Scan(&held); err != nil {
		return 0, fmt.Errorf("read held funds: %w", err)
	}
	return held, nil
}

func (l *PostgresLedger) TotalHeld(ctx context.Context) (uint64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM custody_holds`
	var total uint64
	if err := l.q(ctx).QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("read total held: %w", err)
	}
	return total, nil
}
