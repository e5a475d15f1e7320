package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"secevents/internal/domain"
	"secevents/internal/storage/sqldb"
)

//go:embed schema.sql
var schema string

type checkpointRow struct {
	Name      string         `db:"name"`
	Watermark string         `db:"watermark"`
	Boundary  pq.StringArray `db:"boundary_fingerprints"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// CheckpointStore keeps one row per checkpoint name. Commits for the same
// name are serialised with a transaction-scoped advisory lock.
type CheckpointStore struct {
	db *sqlx.DB
	tx *sqldb.TransactionManager
}

func NewCheckpointStore(db *sqlx.DB) *CheckpointStore {
	return &CheckpointStore{db: db, tx: sqldb.NewTransactionManager(db, &sql.TxOptions{Isolation: sql.LevelReadCommitted})}
}

// Open connects to dsn and makes sure the checkpoints table exists.
func Open(ctx context.Context, dsn string) (*CheckpointStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	store := NewCheckpointStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *CheckpointStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

func (s *CheckpointStore) Get(ctx context.Context, name string) (*domain.Checkpoint, error) {
	return s.get(ctx, sqldb.Executor(ctx, s.db), name)
}

func (s *CheckpointStore) get(ctx context.Context, q sqlx.QueryerContext, name string) (*domain.Checkpoint, error) {
	var row checkpointRow
	query := `
		SELECT name, watermark, boundary_fingerprints, updated_at
		FROM checkpoints
		WHERE name = $1`

	err := sqlx.GetContext(ctx, q, &row, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewCheckpoint(name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load checkpoint %q: %w", domain.ErrPersistence, name, err)
	}
	return row.toDomain()
}

func (s *CheckpointStore) Commit(ctx context.Context, cp *domain.Checkpoint) error {
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := sqldb.Executor(txCtx, s.db)

		if _, err := exec.ExecContext(txCtx, `SELECT pg_advisory_xact_lock(hashtext($1))`, cp.Name); err != nil {
			return fmt.Errorf("lock checkpoint: %w", err)
		}

		prev, err := s.get(txCtx, exec, cp.Name)
		if err != nil {
			return err
		}
		if err := domain.CheckAdvance(prev, cp); err != nil {
			return err
		}

		query := `
			INSERT INTO checkpoints (name, watermark, boundary_fingerprints, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE SET
				watermark = EXCLUDED.watermark,
				boundary_fingerprints = EXCLUDED.boundary_fingerprints,
				updated_at = EXCLUDED.updated_at`

		_, err = exec.ExecContext(txCtx, query,
			cp.Name,
			cp.Watermark.String(),
			pq.Array(fingerprintStrings(cp.Boundary)),
			time.Now().UTC(),
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE name = $1`, name); err != nil {
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

func (r checkpointRow) toDomain() (*domain.Checkpoint, error) {
	wm, err := domain.TimestampFromString(r.Watermark)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint %q: %w", domain.ErrPersistence, r.Name, err)
	}
	boundary := make([]domain.Fingerprint, len(r.Boundary))
	for i, fp := range r.Boundary {
		boundary[i] = domain.Fingerprint(fp)
	}
	return &domain.Checkpoint{
		Name:      r.Name,
		Watermark: &wm,
		Boundary:  boundary,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func fingerprintStrings(fps []domain.Fingerprint) []string {
	out := make([]string, len(fps))
	for i, fp := range fps {
		out[i] = string(fp)
	}
	return out
}
