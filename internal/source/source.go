package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"secevents/internal/domain"
)

const userAgent = "secevents/1.0"

var tracer = otel.Tracer("secevents/source")

// Config holds the remote API settings.
type Config struct {
	BaseURL        string
	Token          string
	PageSize       int
	MaxPages       int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source pages through one event kind of the security-event API.
type Source struct {
	httpClient     *http.Client
	spec           KindSpec
	baseURL        string
	token          string
	pageSize       int
	maxPages       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a source for kind.
func New(cfg Config, kind domain.Kind, logger *slog.Logger) (*Source, error) {
	spec, ok := SpecFor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown event kind %q", domain.ErrConfiguration, kind)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: api base url is not set", domain.ErrConfiguration)
	}
	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("%w: page size must be positive", domain.ErrConfiguration)
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		spec:           spec,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		pageSize:       cfg.PageSize,
		maxPages:       cfg.MaxPages,
		maxAttempts:    max(cfg.MaxAttempts, 1),
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", string(kind)),
	}, nil
}

// Kind returns the event kind this source reads.
func (s *Source) Kind() domain.Kind {
	return s.spec.Kind
}

// Fetch returns every page for q. Pages are requested until one comes back
// short or MaxPages is reached.
func (s *Source) Fetch(ctx context.Context, q domain.Query) ([]domain.Page, error) {
	ctx, span := tracer.Start(ctx, "source.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", string(s.spec.Kind)),
		attribute.String("begin", q.Begin.Format(time.RFC3339Nano)),
		attribute.String("end", q.End.Format(time.RFC3339Nano)),
	)

	var pages []domain.Page
	total := 0
	complete := false

	for page := 1; s.maxPages <= 0 || page <= s.maxPages; page++ {
		records, err := s.fetchPage(ctx, q, page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
			return nil, fmt.Errorf("%w: fetch %s page %d: %w", domain.ErrSourceFetch, s.spec.Kind, page, err)
		}

		p := s.transform(records)
		p.Number = page
		pages = append(pages, p)
		total += len(records)

		s.logger.Debug("fetched page",
			"page", page,
			"records", len(records),
			"total", total,
		)

		if len(records) < s.pageSize {
			complete = true
			break
		}
	}

	// Pages are not ordered by time, so a truncated result could move the
	// watermark past events that were never seen.
	if !complete {
		err := fmt.Errorf("%w: %s query still had results after %d full pages; narrow the range or raise api.max_pages",
			domain.ErrSourceFetch, s.spec.Kind, s.maxPages)
		span.RecordError(err)
		span.SetStatus(codes.Error, "result truncated")
		return nil, err
	}

	span.SetAttributes(attribute.Int("records", total), attribute.Int("pages", len(pages)))
	return pages, nil
}

func (s *Source) fetchPage(ctx context.Context, q domain.Query, page int) ([]any, error) {
	filters := q.Filters
	if filters == nil {
		filters = []domain.Filter{}
	}
	body, err := json.Marshal(queryRequest{
		Begin:    q.Begin.UTC(),
		End:      q.End.UTC(),
		Filters:  filters,
		Page:     page,
		PageSize: s.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	var records []any
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		records, err = s.doRequest(ctx, body)
		if err == nil {
			return records, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) || attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

// permanentError marks responses that retrying cannot fix.
type permanentError struct {
	status int
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.status)
}

func (s *Source) doRequest(ctx context.Context, body []byte) ([]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+s.spec.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{status: resp.StatusCode}
		}
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// The API omits the content key instead of sending an empty list when
	// nothing matched.
	raw, ok := payload[s.spec.ContentKey]
	if !ok || raw == nil {
		return nil, nil
	}
	records, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("decode response: %q is %T, not a list", s.spec.ContentKey, raw)
	}
	return records, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(records []any) domain.Page {
	page := domain.Page{Events: make([]domain.Event, 0, len(records))}

	for i, r := range records {
		fields, ok := r.(map[string]any)
		if !ok {
			s.logger.Warn("skipping non-object record", "index", i)
			page.Invalid++
			continue
		}

		ts, err := domain.ParseTimestamp(fields[s.spec.TimestampField])
		if err != nil {
			s.logger.Warn("failed to parse timestamp",
				"field", s.spec.TimestampField,
				"value", fields[s.spec.TimestampField],
				"error", err,
			)
			page.Invalid++
			continue
		}

		page.Events = append(page.Events, domain.Event{
			Kind:      s.spec.Kind,
			Timestamp: ts,
			Fields:    fields,
		})
	}

	return page
}
