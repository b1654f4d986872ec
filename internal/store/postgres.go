package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civicsignal/billscan-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. It is satisfied by
// pgxmock's pool interface, which keeps the store testable without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS bills (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	doc           JSONB NOT NULL,
	section_count INTEGER NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bills_updated_at ON bills(updated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LoadBill(ctx context.Context, id string) (*model.Bill, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc FROM bills WHERE id = $1`, id)

	var doc []byte
	err := row.Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load bill %s", id)
	}

	var bill model.Bill
	if err := json.Unmarshal(doc, &bill); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal bill %s", id)
	}
	return &bill, nil
}

func (s *PostgresStore) SaveBill(ctx context.Context, bill *model.Bill) error {
	doc, err := json.Marshal(bill)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal bill %s", bill.ID)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO bills (id, title, doc, section_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			doc = EXCLUDED.doc,
			section_count = EXCLUDED.section_count,
			updated_at = EXCLUDED.updated_at`,
		bill.ID, bill.Title, doc, len(bill.Sections), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save bill %s", bill.ID)
}

func (s *PostgresStore) ListBills(ctx context.Context) ([]BillInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, section_count, updated_at FROM bills ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list bills")
	}
	defer rows.Close()

	var infos []BillInfo
	for rows.Next() {
		var info BillInfo
		if err := rows.Scan(&info.ID, &info.Title, &info.Sections, &info.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bill info")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "postgres: list bills iterate")
}

func (s *PostgresStore) DeleteBill(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete bill %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
