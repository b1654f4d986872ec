package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civicsignal/billscan-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. The full bill
// document lives in a single JSON column so a save is one atomic upsert.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS bills (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	doc           TEXT NOT NULL,
	section_count INTEGER NOT NULL DEFAULT 0,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bills_updated_at ON bills(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadBill(ctx context.Context, id string) (*model.Bill, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM bills WHERE id = ?`, id)

	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load bill %s", id)
	}

	var bill model.Bill
	if err := json.Unmarshal([]byte(doc), &bill); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal bill %s", id)
	}
	return &bill, nil
}

func (s *SQLiteStore) SaveBill(ctx context.Context, bill *model.Bill) error {
	doc, err := json.Marshal(bill)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal bill %s", bill.ID)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bills (id, title, doc, section_count, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			doc = excluded.doc,
			section_count = excluded.section_count,
			updated_at = excluded.updated_at`,
		bill.ID, bill.Title, string(doc), len(bill.Sections), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save bill %s", bill.ID)
}

func (s *SQLiteStore) ListBills(ctx context.Context) ([]BillInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, section_count, updated_at FROM bills ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list bills")
	}
	defer rows.Close()

	var infos []BillInfo
	for rows.Next() {
		var info BillInfo
		if err := rows.Scan(&info.ID, &info.Title, &info.Sections, &info.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bill info")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "sqlite: list bills iterate")
}

func (s *SQLiteStore) DeleteBill(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete bill %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
