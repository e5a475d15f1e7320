package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secevents/internal/domain"
)

func drain(d *Deduper) []string {
	var ids []string
	for d.Next() {
		ids = append(ids, d.Event().Fields["id"].(string))
	}
	return ids
}

func TestDeduper_NoSeedEmitsEverything(t *testing.T) {
	events := []domain.Event{
		event(t, "100", "a"),
		event(t, "100", "b"),
		event(t, "105", "c"),
	}

	d := NewDeduper(nil, domain.NewCheckpoint(""), events)
	assert.Equal(t, []string{"a", "b", "c"}, drain(d))
	require.NoError(t, d.Err())
	assert.Equal(t, 0, d.Skipped())

	cp := d.Checkpoint()
	require.NotNil(t, cp.Watermark)
	assert.Equal(t, "105", cp.Watermark.String())
	assert.Equal(t, []domain.Fingerprint{fingerprint(t, events[2])}, cp.Boundary)
}

func TestDeduper_SkipsBoundaryDuplicates(t *testing.T) {
	a, b := event(t, "100", "a"), event(t, "100", "b")
	wm := mustTS(t, "100")
	seed := &domain.Checkpoint{
		Name:      "cp",
		Watermark: &wm,
		Boundary:  []domain.Fingerprint{fingerprint(t, a)},
	}

	d := NewDeduper(nil, seed, []domain.Event{a, b, event(t, "101", "c")})
	assert.Equal(t, []string{"b", "c"}, drain(d))
	assert.Equal(t, 1, d.Skipped())
}

func TestDeduper_BoundaryGrowsAtSameTimestamp(t *testing.T) {
	a, b := event(t, "100", "a"), event(t, "100", "b")
	wm := mustTS(t, "100")
	seed := &domain.Checkpoint{Name: "cp", Watermark: &wm, Boundary: []domain.Fingerprint{fingerprint(t, a)}}

	d := NewDeduper(nil, seed, []domain.Event{a, b})
	require.True(t, d.Next())

	cp := d.Checkpoint()
	assert.Equal(t, "100", cp.Watermark.String())
	assert.Equal(t, []domain.Fingerprint{fingerprint(t, a), fingerprint(t, b)}, cp.Boundary)
	assert.False(t, d.Next())
}

func TestDeduper_BoundaryResetsOnGreaterTimestamp(t *testing.T) {
	events := []domain.Event{event(t, "100", "a"), event(t, "100", "b"), event(t, "100.5", "c")}

	d := NewDeduper(nil, nil, events)
	require.True(t, d.Next())
	require.True(t, d.Next())
	assert.Len(t, d.Checkpoint().Boundary, 2)

	require.True(t, d.Next())
	cp := d.Checkpoint()
	assert.Equal(t, "100.5", cp.Watermark.String())
	assert.Equal(t, []domain.Fingerprint{fingerprint(t, events[2])}, cp.Boundary)
}

func TestDeduper_SkipsEventsBeforeWatermark(t *testing.T) {
	wm := mustTS(t, "100")
	seed := &domain.Checkpoint{Name: "cp", Watermark: &wm, Boundary: []domain.Fingerprint{}}

	d := NewDeduper(nil, seed, []domain.Event{event(t, "99.999", "old"), event(t, "100", "new")})
	assert.Equal(t, []string{"new"}, drain(d))
	assert.Equal(t, 1, d.Skipped())
}

func TestDeduper_IdenticalPayloadsInOneFetch(t *testing.T) {
	e := event(t, "100", "a")

	d := NewDeduper(nil, nil, []domain.Event{e, e})
	assert.Equal(t, []string{"a"}, drain(d))
	assert.Equal(t, 1, d.Skipped())
}

func TestDeduper_CheckpointIsSnapshot(t *testing.T) {
	d := NewDeduper(nil, domain.NewCheckpoint("cp"), []domain.Event{event(t, "1", "a"), event(t, "2", "b")})
	require.True(t, d.Next())
	first := d.Checkpoint()
	require.True(t, d.Next())

	assert.Equal(t, "1", first.Watermark.String())
	assert.Len(t, first.Boundary, 1)
	assert.Equal(t, "cp", first.Name)
}

func TestDeduper_FingerprintError(t *testing.T) {
	bad := domain.Event{Timestamp: mustTS(t, "1"), Fields: map[string]any{"ch": make(chan int)}}

	d := NewDeduper(nil, nil, []domain.Event{bad, event(t, "2", "b")})
	assert.False(t, d.Next())
	assert.Error(t, d.Err())
	assert.False(t, d.Next())
}
