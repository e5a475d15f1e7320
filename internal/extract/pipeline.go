package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"secevents/internal/domain"
)

var tracer = otel.Tracer("secevents/extract")

// Request describes one extraction run. A zero Begin or End means the value
// was not given.
type Request struct {
	Begin      time.Time
	End        time.Time
	Checkpoint string
	Filters    []domain.Filter
}

type Service struct {
	source    Source
	store     CheckpointStore
	formatter Formatter
	sink      Sink
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires a pipeline. store may be nil for runs that never use a
// checkpoint, and observer may be nil.
func NewService(
	source Source,
	store CheckpointStore,
	formatter Formatter,
	sink Sink,
	observer Observer,
	logger *slog.Logger,
) *Service {
	return &Service{
		source:    source,
		store:     store,
		formatter: formatter,
		sink:      sink,
		observer:  observer,
		logger:    logger.With("kind", string(source.Kind())),
		now:       time.Now,
	}
}

// Run fetches the window, then formats, delivers and commits each event
// that was not delivered before. Progress committed before a failure is
// kept. The returned stats are non-nil even when err is not.
func (s *Service) Run(ctx context.Context, req Request) (stats *domain.RunStats, err error) {
	startTime := s.now()
	stats = &domain.RunStats{
		RunID:      uuid.NewString(),
		Kind:       s.source.Kind(),
		Checkpoint: req.Checkpoint,
	}
	logger := s.logger.With("run_id", stats.RunID)

	ctx, span := tracer.Start(ctx, "extract.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", stats.RunID),
		attribute.String("kind", string(stats.Kind)),
		attribute.String("checkpoint", req.Checkpoint),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		logger = logger.With("trace_id", sc.TraceID().String())
	}

	defer func() {
		stats.Duration = s.now().Sub(startTime)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run failed")
		}
		if s.observer != nil {
			s.observer.ObserveRun(stats, err)
		}
	}()

	seed, err := s.loadCheckpoint(ctx, req)
	if err != nil {
		return stats, err
	}

	w, err := resolveWindow(req, seed, s.now())
	if err != nil {
		return stats, err
	}
	stats.Begin, stats.End = w.Begin, w.End
	stats.Watermark = seed.Watermark

	logger.Info("starting extraction",
		"checkpoint", req.Checkpoint,
		"begin", w.Begin,
		"end", w.End,
		"resumed", w.Resumed,
		"filters", len(req.Filters),
	)

	events, err := s.fetch(ctx, req, w, stats)
	if err != nil {
		if ctx.Err() != nil {
			stats.Interrupted = true
			return stats, fmt.Errorf("%w: during fetch: %w", domain.ErrInterrupted, ctx.Err())
		}
		return stats, err
	}

	logger.Info("fetched events",
		"count", len(events),
		"invalid", stats.Invalid,
	)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	err = s.emit(ctx, logger, seed, events, stats)

	logger.Info("extraction finished",
		"fetched", stats.Fetched,
		"emitted", stats.Emitted,
		"skipped", stats.Skipped,
		"invalid", stats.Invalid,
		"watermark", stats.Watermark,
		"interrupted", stats.Interrupted,
		"duration", s.now().Sub(startTime),
		"error", err,
	)

	return stats, err
}

func (s *Service) loadCheckpoint(ctx context.Context, req Request) (*domain.Checkpoint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Checkpoint == "" {
		return domain.NewCheckpoint(""), nil
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: checkpoint %q requested without a checkpoint store", domain.ErrConfiguration, req.Checkpoint)
	}

	cp, err := s.store.Get(ctx, req.Checkpoint)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load checkpoint %q: %w", domain.ErrPersistence, req.Checkpoint, err)
	}
	return cp, nil
}

func (s *Service) fetch(ctx context.Context, req Request, w window, stats *domain.RunStats) ([]domain.Event, error) {
	pages, err := s.source.Fetch(ctx, domain.Query{
		Kind:    s.source.Kind(),
		Begin:   w.Begin,
		End:     w.End,
		Filters: req.Filters,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSourceFetch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceFetch, err)
	}

	var events []domain.Event
	for _, p := range pages {
		events = append(events, p.Events...)
		stats.Invalid += p.Invalid
	}
	stats.Fetched = len(events) + stats.Invalid
	return events, nil
}

func (s *Service) emit(ctx context.Context, logger *slog.Logger, seed *domain.Checkpoint, events []domain.Event, stats *domain.RunStats) error {
	ctx, span := tracer.Start(ctx, "extract.deliver")
	defer span.End()

	d := NewDeduper(s.store, seed, events)
	defer func() {
		stats.Skipped = d.Skipped()
		span.SetAttributes(
			attribute.Int("emitted", stats.Emitted),
			attribute.Int("skipped", stats.Skipped),
		)
	}()

	// Commits must not be torn by cancellation once the write has landed.
	commitCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			stats.Interrupted = true
			return fmt.Errorf("%w: %w", domain.ErrInterrupted, err)
		}
		if !d.Next() {
			break
		}
		e := d.Event()

		record, err := s.formatter.Format(e)
		if err != nil {
			return fmt.Errorf("%w: format event at %s: %w", domain.ErrDelivery, e.Timestamp, err)
		}

		if err := s.sink.Write(ctx, record); err != nil {
			if ctx.Err() != nil {
				stats.Interrupted = true
				return fmt.Errorf("%w: write cancelled: %w", domain.ErrInterrupted, err)
			}
			return fmt.Errorf("%w: write event at %s: %w", domain.ErrDelivery, e.Timestamp, err)
		}
		stats.Emitted++

		if err := d.Commit(commitCtx); err != nil {
			if errors.Is(err, domain.ErrPersistence) {
				return err
			}
			return fmt.Errorf("%w: commit checkpoint %q: %w", domain.ErrPersistence, stats.Checkpoint, err)
		}
		stats.Watermark = d.Checkpoint().Watermark

		logger.Debug("event delivered", "timestamp", e.Timestamp)
	}

	if err := d.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSourceFetch, err)
	}
	return nil
}
