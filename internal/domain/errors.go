package domain

import (
	"errors"
	"fmt"
)

// Failure categories surfaced by an extraction run. Callers classify with
// errors.Is; every error returned by the pipeline wraps exactly one of them.
var (
	// ErrConfiguration is returned for invalid or conflicting options, before any network call.
	ErrConfiguration = errors.New("configuration error")

	// ErrSourceFetch is returned when the event source could not complete a fetch.
	ErrSourceFetch = errors.New("source fetch error")

	// ErrDelivery is returned when a sink write failed.
	ErrDelivery = errors.New("delivery error")

	// ErrPersistence is returned when the checkpoint store failed to commit or load.
	ErrPersistence = errors.New("persistence error")

	// ErrWatermarkRegression is returned when a commit would move a watermark backwards.
	ErrWatermarkRegression = fmt.Errorf("%w: watermark regression", ErrPersistence)

	// ErrInterrupted is returned when the run was cancelled between two events.
	ErrInterrupted = errors.New("run interrupted")
)
