package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"mexc_go/internal/ledger"
)

// FillStore archives executed fills in SQLite for ad-hoc querying. The JSONL
// journal owned by the ledger stays the source of truth; this store is a
// convenience mirror plus a small metadata KV for session bookkeeping.
type FillStore struct {
	db *sql.DB
}

// NewFillStore opens (or creates) the archive with WAL mode enabled.
func NewFillStore(dbPath string) (*FillStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS fills (
			id INTEGER PRIMARY KEY,
			time INTEGER NOT NULL,
			side TEXT NOT NULL,
			base INTEGER NOT NULL,
			quote INTEGER NOT NULL,
			fee_qty INTEGER NOT NULL,
			fee_asset TEXT NOT NULL,
			is_maker INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create fills table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &FillStore{db: db}, nil
}

// SaveFill stores one fill. Replaying the same fill id is a no-op so the
// archive stays consistent with the journal after a restart.
func (s *FillStore) SaveFill(ctx context.Context, fill ledger.Fill) error {
	isMaker := 0
	if fill.IsMaker {
		isMaker = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fills (id, time, side, base, quote, fee_qty, fee_asset, is_maker)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.ID, fill.Time, string(fill.Side), fill.BaseQty, fill.QuoteQty,
		fill.FeeQty, fill.FeeAsset, isMaker,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fill: %w", err)
	}
	return nil
}

// LastFillID returns the highest archived fill id, 0 when empty.
func (s *FillStore) LastFillID(ctx context.Context) (int64, error) {
	var lastID sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM fills").Scan(&lastID)
	if err != nil {
		return 0, fmt.Errorf("failed to get last fill id: %w", err)
	}
	if !lastID.Valid {
		return 0, nil
	}
	return lastID.Int64, nil
}

// LoadFills returns all fills with id >= fromID in id order.
func (s *FillStore) LoadFills(ctx context.Context, fromID int64) ([]ledger.Fill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time, side, base, quote, fee_qty, fee_asset, is_maker
		 FROM fills WHERE id >= ? ORDER BY id ASC`,
		fromID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var fills []ledger.Fill
	for rows.Next() {
		var fill ledger.Fill
		var side string
		var isMaker int
		if err := rows.Scan(&fill.ID, &fill.Time, &side, &fill.BaseQty, &fill.QuoteQty,
			&fill.FeeQty, &fill.FeeAsset, &isMaker); err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		fill.Side = ledger.Side(side)
		fill.IsMaker = isMaker != 0
		fills = append(fills, fill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return fills, nil
}

// UpsertMetadata saves a key-value pair.
func (s *FillStore) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value, empty string when absent.
func (s *FillStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (s *FillStore) Close() error {
	return s.db.Close()
}
