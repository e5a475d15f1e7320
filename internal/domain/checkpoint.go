package domain

import (
	"fmt"
	"time"
)

// Checkpoint is the named resume point of an incremental extraction.
// Boundary holds the fingerprints of already delivered events whose
// timestamp equals Watermark exactly.
type Checkpoint struct {
	Name      string        `json:"name"`
	Watermark *Timestamp    `json:"watermark"`
	Boundary  []Fingerprint `json:"boundary_fingerprints"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewCheckpoint returns the empty state stores hand out for unknown names.
func NewCheckpoint(name string) *Checkpoint {
	return &Checkpoint{Name: name, Boundary: []Fingerprint{}}
}

// Exists reports whether a watermark has ever been committed.
func (c *Checkpoint) Exists() bool {
	return c != nil && c.Watermark != nil
}

// CheckAdvance verifies that next may replace prev.
func CheckAdvance(prev, next *Checkpoint) error {
	if next.Name == "" {
		return fmt.Errorf("%w: checkpoint name is empty", ErrPersistence)
	}
	if next.Watermark == nil {
		return fmt.Errorf("%w: checkpoint %q has no watermark", ErrPersistence, next.Name)
	}
	if prev.Exists() && next.Watermark.Before(*prev.Watermark) {
		return fmt.Errorf("%w: %q from %s to %s", ErrWatermarkRegression, next.Name, prev.Watermark, next.Watermark)
	}
	return nil
}
