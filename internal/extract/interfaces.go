package extract

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"secevents/internal/domain"
)

type Source interface {
	Kind() domain.Kind
	Fetch(ctx context.Context, q domain.Query) ([]domain.Page, error)
}

type CheckpointStore interface {
	Get(ctx context.Context, name string) (*domain.Checkpoint, error)
	Commit(ctx context.Context, cp *domain.Checkpoint) error
}

type Formatter interface {
	Format(e domain.Event) (string, error)
}

type Sink interface {
	Write(ctx context.Context, record string) error
}

// Observer is told about every finished run, successful or not.
type Observer interface {
	ObserveRun(stats *domain.RunStats, err error)
}
