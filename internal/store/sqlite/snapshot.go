// Package sqlite persists scrip-master snapshots so the catalog can come up
// when the broker's reference-data endpoint is unreachable. A snapshot is a
// full per-exchange table; saves replace, never merge.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ScripRow is one persisted scrip-master row, reduced to the columns the
// catalog resolves against.
type ScripRow struct {
	ShortName string
	FullName  string
	Code      int
	LotSize   int
}

// SnapshotStore is a single-writer SQLite store for scrip-master tables.
type SnapshotStore struct {
	db *sql.DB
}

// Open creates the store, initializing WAL mode and the schema.
func Open(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("scrip snapshot store opened", "path", dbPath)
	return &SnapshotStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scrip_master (
			exchange   TEXT    NOT NULL,
			short_name TEXT    NOT NULL,
			full_name  TEXT    NOT NULL,
			scripcode  INTEGER NOT NULL,
			lotsize    INTEGER NOT NULL,
			row_order  INTEGER NOT NULL,
			PRIMARY KEY (exchange, row_order)
		);

		CREATE TABLE IF NOT EXISTS scrip_master_meta (
			exchange  TEXT PRIMARY KEY,
			saved_at  INTEGER NOT NULL,
			row_count INTEGER NOT NULL
		);
	`)
	return err
}

// Close releases the underlying database handle.
func (s *SnapshotStore) Close() error { return s.db.Close() }

// DB returns the underlying sql.DB for health checks.
func (s *SnapshotStore) DB() *sql.DB { return s.db }

// Save replaces the snapshot for one exchange inside a single transaction.
// Row order is preserved; the catalog's first-match rule depends on it.
func (s *SnapshotStore) Save(exchange string, rows []ScripRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM scrip_master WHERE exchange = ?`, exchange); err != nil {
		return fmt.Errorf("sqlite clear %s: %w", exchange, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO scrip_master (exchange, short_name, full_name, scripcode, lotsize, row_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.Exec(exchange, r.ShortName, r.FullName, r.Code, r.LotSize, i); err != nil {
			return fmt.Errorf("sqlite insert %s row %d: %w", exchange, i, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO scrip_master_meta (exchange, saved_at, row_count) VALUES (?, ?, ?)
		ON CONFLICT(exchange) DO UPDATE SET saved_at = excluded.saved_at, row_count = excluded.row_count
	`, exchange, time.Now().Unix(), len(rows)); err != nil {
		return fmt.Errorf("sqlite meta %s: %w", exchange, err)
	}

	return tx.Commit()
}

// Load reads the snapshot for one exchange in original table order.
// A missing snapshot returns (nil, nil).
func (s *SnapshotStore) Load(exchange string) ([]ScripRow, error) {
	rows, err := s.db.Query(`
		SELECT short_name, full_name, scripcode, lotsize
		FROM scrip_master
		WHERE exchange = ?
		ORDER BY row_order ASC
	`, exchange)
	if err != nil {
		return nil, fmt.Errorf("sqlite query %s: %w", exchange, err)
	}
	defer rows.Close()

	var out []ScripRow
	for rows.Next() {
		var r ScripRow
		if err := rows.Scan(&r.ShortName, &r.FullName, &r.Code, &r.LotSize); err != nil {
			return nil, fmt.Errorf("sqlite scan %s: %w", exchange, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SavedAt reports when the exchange snapshot was last written, or a zero
// time when none exists.
func (s *SnapshotStore) SavedAt(exchange string) (time.Time, error) {
	var ts int64
	err := s.db.QueryRow(`SELECT saved_at FROM scrip_master_meta WHERE exchange = ?`, exchange).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite meta query %s: %w", exchange, err)
	}
	return time.Unix(ts, 0), nil
}
