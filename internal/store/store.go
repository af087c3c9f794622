package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/qgold/goldrates/internal/derive"
)

// Store persists derived gram prices to an embedded SQLite database. Writes
// are best-effort from the engine's point of view; the engine logs and drops
// any error returned here.
type Store struct {
	sql *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1) // SQLite best practice for embedded use
	sqldb.SetConnMaxLifetime(0)

	s := &Store{sql: sqldb}
	if err := s.migrate(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gram_prices (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			karat TEXT NOT NULL,
			purity TEXT NOT NULL,
			price_per_gram TEXT NOT NULL,
			price_change TEXT NOT NULL DEFAULT '',
			is_down INTEGER NOT NULL DEFAULT 0,
			fetched_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_gram_prices_source_time ON gram_prices(source, fetched_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.sql.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveGramPrices writes one batch of derived prices for a source. All rows
// of a batch share a fetched_at so a snapshot can be read back as a unit.
func (s *Store) SaveGramPrices(ctx context.Context, slug string, prices []derive.GramPrice) error {
	if len(prices) == 0 {
		return nil
	}
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, p := range prices {
		isDown := 0
		if p.IsDown {
			isDown = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO gram_prices(id,source,karat,purity,price_per_gram,price_change,is_down,fetched_at) VALUES(?,?,?,?,?,?,?,?)`,
			uuid.NewString(), slug, p.Karat, p.Purity, p.PricePerGram, p.Change, isDown, now)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// HistoryRow is one persisted gram-price row.
type HistoryRow struct {
	Source       string    `json:"source"`
	Karat        string    `json:"karat"`
	Purity       string    `json:"purity"`
	PricePerGram string    `json:"price_per_gram"`
	Change       string    `json:"change,omitempty"`
	IsDown       bool      `json:"is_down,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// LatestGramPrices returns the most recent rows for a source, newest first.
func (s *Store) LatestGramPrices(ctx context.Context, slug string, limit int) ([]HistoryRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sql.QueryContext(ctx,
		`SELECT source,karat,purity,price_per_gram,price_change,is_down,fetched_at
		 FROM gram_prices WHERE source=? ORDER BY fetched_at DESC, karat ASC LIMIT ?`,
		slug, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		var isDown int
		var fetchedAt int64
		if err := rows.Scan(&r.Source, &r.Karat, &r.Purity, &r.PricePerGram, &r.Change, &isDown, &fetchedAt); err != nil {
			return nil, err
		}
		r.IsDown = isDown == 1
		r.FetchedAt = time.Unix(fetchedAt, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
