package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secevents/internal/domain"
)

func TestParse(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		in        string
		wantBegin time.Time
		wantEnd   time.Time
	}{
		{"", time.Time{}, time.Time{}},
		{"2024-01-31", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-31 13", time.Date(2024, 1, 31, 13, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 13, 0, 0, 0, time.UTC)},
		{"2024-01-31 13:05", time.Date(2024, 1, 31, 13, 5, 0, 0, time.UTC), time.Date(2024, 1, 31, 13, 5, 0, 0, time.UTC)},
		{"2024-01-31 13:05:09", time.Date(2024, 1, 31, 13, 5, 9, 0, time.UTC), time.Date(2024, 1, 31, 13, 5, 9, 0, time.UTC)},
		{"2024-01-31T13:05:09+02:00", time.Date(2024, 1, 31, 11, 5, 9, 0, time.UTC), time.Date(2024, 1, 31, 11, 5, 9, 0, time.UTC)},
		{"30d", now.AddDate(0, 0, -30), now.AddDate(0, 0, -30)},
		{"24h", now.Add(-24 * time.Hour), now.Add(-24 * time.Hour)},
		{"15m", now.Add(-15 * time.Minute), now.Add(-15 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, err := ParseBegin(tt.in, now)
			require.NoError(t, err)
			assert.True(t, tt.wantBegin.Equal(b), "begin: want %s, got %s", tt.wantBegin, b)

			e, err := ParseEnd(tt.in, now)
			require.NoError(t, err)
			assert.True(t, tt.wantEnd.Equal(e), "end: want %s, got %s", tt.wantEnd, e)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"yesterday", "2024-13-01", "30s", "-5d", "2024/01/31"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseBegin(in, time.Now())
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestCheckLookback(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)
	limit := 90 * 24 * time.Hour

	assert.NoError(t, CheckLookback(time.Time{}, now, limit))
	assert.NoError(t, CheckLookback(now.Add(-limit), now, limit))
	assert.NoError(t, CheckLookback(now.AddDate(-5, 0, 0), now, 0))

	err := CheckLookback(now.Add(-limit-time.Second), now, limit)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "within 90 days")
}
