package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/demonlist/internal/domain/model"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var sqliteSchema string

// SQLiteStore keeps the collection in two tables, levels and record_holders.
// Each save rewrites both tables inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrMissingPath
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps the single-writer model and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads every level with its record holders, ordered by rank.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Level, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage is not configured")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT rank, title, creator, video_ref FROM levels ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("query levels: %w", err)
	}
	levels := []model.Level{}
	byRank := map[int]int{}
	for rows.Next() {
		var lvl model.Level
		if err := rows.Scan(&lvl.Rank, &lvl.Title, &lvl.Creator, &lvl.VideoRef); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan level: %w", err)
		}
		lvl.RecordHolders = []model.RecordHolder{}
		byRank[lvl.Rank] = len(levels)
		levels = append(levels, lvl)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate levels: %w", err)
	}
	_ = rows.Close()

	holders, err := s.db.QueryContext(ctx,
		`SELECT level_rank, name, completion_percent, verified FROM record_holders ORDER BY level_rank, position`)
	if err != nil {
		return nil, fmt.Errorf("query record holders: %w", err)
	}
	defer func() { _ = holders.Close() }()
	for holders.Next() {
		var (
			rank     int
			holder   model.RecordHolder
			percent  string
			verified int
		)
		if err := holders.Scan(&rank, &holder.Name, &percent, &verified); err != nil {
			return nil, fmt.Errorf("scan record holder: %w", err)
		}
		idx, ok := byRank[rank]
		if !ok {
			continue
		}
		holder.CompletionPercent = model.Completion(percent)
		holder.Verified = verified != 0
		levels[idx].RecordHolders = append(levels[idx].RecordHolders, holder)
	}
	if err := holders.Err(); err != nil {
		return nil, fmt.Errorf("iterate record holders: %w", err)
	}
	return levels, nil
}

// Save replaces both tables with levels.
func (s *SQLiteStore) Save(ctx context.Context, levels []model.Level) (err error) {
	if s == nil || s.db == nil {
		return errors.New("storage is not configured")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM record_holders`); err != nil {
		return fmt.Errorf("clear record holders: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM levels`); err != nil {
		return fmt.Errorf("clear levels: %w", err)
	}

	levelStmt, err := tx.PrepareContext(ctx, `INSERT INTO levels (rank, title, creator, video_ref) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare level insert: %w", err)
	}
	defer func() { _ = levelStmt.Close() }()
	holderStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO record_holders (level_rank, position, name, completion_percent, verified) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record holder insert: %w", err)
	}
	defer func() { _ = holderStmt.Close() }()

	for _, lvl := range levels {
		if _, err = levelStmt.ExecContext(ctx, lvl.Rank, lvl.Title, lvl.Creator, lvl.VideoRef); err != nil {
			return fmt.Errorf("insert level %d: %w", lvl.Rank, err)
		}
		for pos, h := range lvl.RecordHolders {
			verified := 0
			if h.Verified {
				verified = 1
			}
			if _, err = holderStmt.ExecContext(ctx, lvl.Rank, pos, h.Name, string(h.CompletionPercent), verified); err != nil {
				return fmt.Errorf("insert record holder for level %d: %w", lvl.Rank, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
