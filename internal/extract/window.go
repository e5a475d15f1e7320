package extract

import (
	"fmt"
	"time"

	"secevents/internal/domain"
)

// Validate rejects option combinations that no stored state can make
// valid. It needs no store or network and runs before either is opened.
func (r Request) Validate() error {
	if r.Checkpoint != "" && !r.End.IsZero() {
		return fmt.Errorf("%w: an end time cannot be combined with checkpoint %q", domain.ErrConfiguration, r.Checkpoint)
	}
	if !r.Begin.IsZero() && !r.End.IsZero() && r.Begin.After(r.End) {
		return fmt.Errorf("%w: begin %s is after end %s", domain.ErrConfiguration,
			r.Begin.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

type window struct {
	Begin   time.Time
	End     time.Time
	Resumed bool
}

// resolveWindow picks [begin, end) for a run. A stored watermark wins over
// the requested begin; the watermark itself is included so that events
// sharing it can be told apart by the boundary set.
func resolveWindow(req Request, seed *domain.Checkpoint, now time.Time) (window, error) {
	w := window{Begin: req.Begin, End: req.End}

	if seed.Exists() {
		w.Begin = seed.Watermark.Time()
		w.Resumed = true
	}
	if w.Begin.IsZero() {
		if req.Checkpoint != "" {
			return w, fmt.Errorf("%w: checkpoint %q has no stored position and no begin time was given", domain.ErrConfiguration, req.Checkpoint)
		}
		return w, fmt.Errorf("%w: a begin time is required", domain.ErrConfiguration)
	}
	if w.End.IsZero() {
		w.End = now
	}
	if w.Begin.After(w.End) {
		return w, fmt.Errorf("%w: begin %s is after end %s", domain.ErrConfiguration,
			w.Begin.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return w, nil
}
