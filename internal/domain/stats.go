package domain

import "time"

// RunStats is the outcome of one extraction run.
type RunStats struct {
	RunID       string
	Kind        Kind
	Checkpoint  string
	Begin       time.Time
	End         time.Time
	Fetched     int
	Invalid     int
	Skipped     int
	Emitted     int
	Watermark   *Timestamp
	Interrupted bool
	Duration    time.Duration
}

// Empty reports whether the run delivered nothing.
func (s *RunStats) Empty() bool {
	return s == nil || s.Emitted == 0
}
