package source

import (
	"time"

	"secevents/internal/domain"
)

// KindSpec describes how one event kind is queried and read.
type KindSpec struct {
	Kind domain.Kind
	// Path is appended to the API base URL.
	Path string
	// ContentKey is the response field holding the records. Responses
	// without it carry no records.
	ContentKey string
	// TimestampField orders and checkpoints the records.
	TimestampField string
	// MaxLookback bounds how far back an explicit begin may reach. Zero
	// means unbounded.
	MaxLookback time.Duration
}

var specs = map[domain.Kind]KindSpec{
	domain.KindAlerts: {
		Kind:           domain.KindAlerts,
		Path:           "/v1/alerts/query",
		ContentKey:     "alerts",
		TimestampField: "createdAt",
	},
	domain.KindAuditLogs: {
		Kind:           domain.KindAuditLogs,
		Path:           "/v1/audit-logs/search",
		ContentKey:     "events",
		TimestampField: "timestamp",
	},
	domain.KindFileEvents: {
		Kind:           domain.KindFileEvents,
		Path:           "/v1/file-events/search",
		ContentKey:     "fileEvents",
		TimestampField: "insertionTimestamp",
		// The API keeps file events for 90 days.
		MaxLookback:    90 * 24 * time.Hour,
	},
}

// SpecFor returns the query description for kind.
func SpecFor(kind domain.Kind) (KindSpec, bool) {
	s, ok := specs[kind]
	return s, ok
}
