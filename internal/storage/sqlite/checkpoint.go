// Package sqlite stores checkpoints in a local SQLite database using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"secevents/internal/domain"
	"secevents/internal/storage/sqldb"
)

//go:embed schema.sql
var schema string

const memoryDSN = ":memory:"

type checkpointRow struct {
	Name      string `db:"name"`
	Watermark string `db:"watermark"`
	Boundary  string `db:"boundary_fingerprints"`
	UpdatedAt int64  `db:"updated_at"`
}

// CheckpointStore keeps checkpoints in a single table. The pool is limited
// to one connection, so all writers are serialised by database/sql.
type CheckpointStore struct {
	db *sqlx.DB
	tx *sqldb.TransactionManager
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway store.
func Open(ctx context.Context, path string) (*CheckpointStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Each :memory: connection is its own database, and one writer at a
	// time avoids SQLITE_BUSY on read-then-write commits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := `PRAGMA synchronous = FULL; PRAGMA busy_timeout = 5000;`
	if path != memoryDSN {
		pragmas = `PRAGMA journal_mode = WAL; ` + pragmas
	}
	if _, err := db.ExecContext(ctx, pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	return &CheckpointStore{db: db, tx: sqldb.NewTransactionManager(db, nil)}, nil
}

func (s *CheckpointStore) Get(ctx context.Context, name string) (*domain.Checkpoint, error) {
	return s.get(ctx, sqldb.Executor(ctx, s.db), name)
}

func (s *CheckpointStore) get(ctx context.Context, q sqlx.QueryerContext, name string) (*domain.Checkpoint, error) {
	var row checkpointRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT name, watermark, boundary_fingerprints, updated_at FROM checkpoints WHERE name = ?`,
		name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewCheckpoint(name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load checkpoint %q: %w", domain.ErrPersistence, name, err)
	}

	wm, err := domain.TimestampFromString(row.Watermark)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint %q: %w", domain.ErrPersistence, name, err)
	}
	boundary := []domain.Fingerprint{}
	if err := json.Unmarshal([]byte(row.Boundary), &boundary); err != nil {
		return nil, fmt.Errorf("%w: checkpoint %q boundary: %w", domain.ErrPersistence, name, err)
	}

	return &domain.Checkpoint{
		Name:      row.Name,
		Watermark: &wm,
		Boundary:  boundary,
		UpdatedAt: time.Unix(row.UpdatedAt, 0).UTC(),
	}, nil
}

func (s *CheckpointStore) Commit(ctx context.Context, cp *domain.Checkpoint) error {
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := sqldb.Executor(txCtx, s.db)

		prev, err := s.get(txCtx, exec, cp.Name)
		if err != nil {
			return err
		}
		if err := domain.CheckAdvance(prev, cp); err != nil {
			return err
		}

		boundary := cp.Boundary
		if boundary == nil {
			boundary = []domain.Fingerprint{}
		}
		encoded, err := json.Marshal(boundary)
		if err != nil {
			return fmt.Errorf("encode boundary: %w", err)
		}

		_, err = exec.ExecContext(txCtx, `
			INSERT INTO checkpoints (name, watermark, boundary_fingerprints, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET
				watermark = excluded.watermark,
				boundary_fingerprints = excluded.boundary_fingerprints,
				updated_at = excluded.updated_at`,
			cp.Name, cp.Watermark.String(), string(encoded), time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert checkpoint: %w", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		return fmt.Errorf("%w: commit checkpoint %q: %w", domain.ErrPersistence, cp.Name, err)
	}
	return err
}

func (s *CheckpointStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE name = ?`, name); err != nil {
		return fmt.Errorf("%w: delete checkpoint %q: %w", domain.ErrPersistence, name, err)
	}
	return nil
}

func (s *CheckpointStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
