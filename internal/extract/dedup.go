package extract

import (
	"context"
	"fmt"

	"secevents/internal/domain"
)

// Deduper walks timestamp-sorted events and yields the ones not yet
// delivered according to a checkpoint. It tracks the current boundary
// timestamp and the fingerprints delivered at exactly that timestamp.
//
//	d := NewDeduper(store, seed, events)
//	for d.Next() {
//		deliver(d.Event())
//		d.Commit(ctx)
//	}
//	err := d.Err()
//
// Events older than the seeded watermark are skipped as already delivered.
type Deduper struct {
	store  CheckpointStore
	name   string
	events []domain.Event
	pos    int

	current   domain.Event
	watermark *domain.Timestamp
	boundary  map[domain.Fingerprint]struct{}
	order     []domain.Fingerprint

	skipped int
	err     error
}

// NewDeduper seeds the walk from seed. When store is nil or seed has no
// name, Commit only updates memory.
func NewDeduper(store CheckpointStore, seed *domain.Checkpoint, events []domain.Event) *Deduper {
	d := &Deduper{
		store:    store,
		events:   events,
		boundary: make(map[domain.Fingerprint]struct{}),
	}
	if seed == nil {
		return d
	}

	d.name = seed.Name
	if seed.Watermark != nil {
		wm := *seed.Watermark
		d.watermark = &wm
		for _, fp := range seed.Boundary {
			d.add(fp)
		}
	}
	return d
}

// Next advances to the next event that must be delivered. It returns false
// when the events are exhausted or fingerprinting failed.
func (d *Deduper) Next() bool {
	if d.err != nil {
		return false
	}

	for d.pos < len(d.events) {
		e := d.events[d.pos]
		d.pos++

		fp, err := e.Fingerprint()
		if err != nil {
			d.err = fmt.Errorf("fingerprint event at %s: %w", e.Timestamp, err)
			return false
		}

		if d.watermark != nil {
			switch c := e.Timestamp.Cmp(*d.watermark); {
			case c < 0:
				d.skipped++
				continue
			case c == 0:
				if _, seen := d.boundary[fp]; seen {
					d.skipped++
					continue
				}
				d.add(fp)
				d.current = e
				return true
			}
		}

		ts := e.Timestamp
		d.watermark = &ts
		clear(d.boundary)
		d.order = d.order[:0]
		d.add(fp)
		d.current = e
		return true
	}

	return false
}

func (d *Deduper) add(fp domain.Fingerprint) {
	if _, ok := d.boundary[fp]; ok {
		return
	}
	d.boundary[fp] = struct{}{}
	d.order = append(d.order, fp)
}

// Event returns the event produced by the last successful Next.
func (d *Deduper) Event() domain.Event {
	return d.current
}

// Checkpoint returns a snapshot of the current watermark and boundary.
func (d *Deduper) Checkpoint() *domain.Checkpoint {
	cp := domain.NewCheckpoint(d.name)
	if d.watermark != nil {
		wm := *d.watermark
		cp.Watermark = &wm
	}
	cp.Boundary = append(cp.Boundary, d.order...)
	return cp
}

// Commit persists the state reached after delivering the current event.
func (d *Deduper) Commit(ctx context.Context) error {
	if d.store == nil || d.name == "" {
		return nil
	}
	return d.store.Commit(ctx, d.Checkpoint())
}

// Skipped reports how many events were dropped as already delivered.
func (d *Deduper) Skipped() int {
	return d.skipped
}

func (d *Deduper) Err() error {
	return d.err
}
