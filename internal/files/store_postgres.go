package files

import (
	"context"
	"database/sql"
	"fmt"

	id "garant/pkg/domain"
	"garant/pkg/platform/tx"
)

// PostgresStore persists file records in PostgreSQL. Pure I/O; authorization
// lives in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is applied by deployment migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS deposit_files (
	seq         BIGSERIAL PRIMARY KEY,
	deposit_id  BIGINT      NOT NULL,
	file_type   TEXT        NOT NULL,
	content_id  TEXT        NOT NULL,
	uploader    UUID        NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	name        TEXT        NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deposit_files_deposit ON deposit_files (deposit_id, seq);
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) q(ctx context.Context) execer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, file *File) error {
	query := `
		INSERT INTO deposit_files (deposit_id, file_type, content_id, uploader, uploaded_at, name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uint64(file.DepositID),
		string(file.Type),
		file.ContentID,
		file.Uploader.String(),
		file.UploadedAt,
		file.Name,
	)
	if err != nil {
		return fmt.Errorf("append file: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDeposit(ctx context.Context, depositID id.DepositID) ([]*File, error) {
	query := `
		SELECT deposit_id, file_type, content_id, uploader, uploaded_at, name
		FROM deposit_files
		WHERE deposit_id = $1
		ORDER BY seq
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uint64(depositID))
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := make([]*File, 0)
	for rows.Next() {
		var (
			f        File
			rawID    uint64
			fileType string
			uploader string
		)
		if err := rows.Scan(&rawID, &fileType, &f.ContentID, &uploader, &f.UploadedAt, &f.Name); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		acct, err := id.ParseAccount(uploader)
		if err != nil {
			return nil, fmt.Errorf("scan uploader: %w", err)
		}
		f.DepositID = id.DepositID(rawID)
		f.Type = Type(fileType)
		f.Uploader = acct
		files = append(files, &f)
	}
	return files, rows.Err()
}
