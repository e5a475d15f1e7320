package extract

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"secevents/internal/domain"
)

func mustTS(t testing.TB, s string) domain.Timestamp {
	t.Helper()
	ts, err := domain.TimestampFromString(s)
	require.NoError(t, err)
	return ts
}

func event(t testing.TB, ts, id string) domain.Event {
	t.Helper()
	return domain.Event{
		Kind:      domain.KindAlerts,
		Timestamp: mustTS(t, ts),
		Fields: map[string]any{
			"createdAt": json.Number(ts),
			"id":        id,
		},
	}
}

func fingerprint(t testing.TB, e domain.Event) domain.Fingerprint {
	t.Helper()
	fp, err := e.Fingerprint()
	require.NoError(t, err)
	return fp
}

// recordingSink keeps delivered records and fails the write whose index is
// failAt (zero-based), when failAt is not negative.
type recordingSink struct {
	mu      sync.Mutex
	records []string
	failAt  int
	writes  int
	onWrite func(record string)
}

func newRecordingSink() *recordingSink {
	return &recordingSink{failAt: -1}
}

var errSinkDown = errors.New("connection reset by peer")

func (s *recordingSink) Write(_ context.Context, record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.writes
	s.writes++
	if n == s.failAt {
		return errSinkDown
	}
	s.records = append(s.records, record)
	if s.onWrite != nil {
		s.onWrite(record)
	}
	return nil
}

func (s *recordingSink) IDs(t testing.TB) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.records))
	for _, r := range s.records {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(r), &m))
		ids = append(ids, m["id"].(string))
	}
	return ids
}
