package domain

import "time"

// Kind identifies the family of records pulled from the security-event API.
type Kind string

const (
	KindAlerts     Kind = "alerts"
	KindAuditLogs  Kind = "audit-logs"
	KindFileEvents Kind = "file-events"
)

// Kinds lists every supported event kind.
func Kinds() []Kind {
	return []Kind{KindAlerts, KindAuditLogs, KindFileEvents}
}

func (k Kind) Valid() bool {
	switch k {
	case KindAlerts, KindAuditLogs, KindFileEvents:
		return true
	}
	return false
}

// Event is one record returned by the source. Fields holds the payload
// exactly as decoded (numbers as json.Number).
type Event struct {
	Kind      Kind
	Timestamp Timestamp
	Fields    map[string]any
}

// Fingerprint returns the content-derived identity of the event.
func (e Event) Fingerprint() (Fingerprint, error) {
	return FingerprintOf(e.Fields)
}

// FilterOp is the comparison a Filter applies to its term.
type FilterOp string

const (
	FilterIsIn        FilterOp = "IS_IN"
	FilterNotIn       FilterOp = "NOT_IN"
	FilterContains    FilterOp = "CONTAINS"
	FilterNotContains FilterOp = "NOT_CONTAINS"
)

// Filter narrows a search on one API field. The pipeline passes filters
// through untouched; only the source adapter interprets them.
type Filter struct {
	Op     FilterOp `json:"operator"`
	Term   string   `json:"term"`
	Values []string `json:"values"`
}

func IsIn(term string, values ...string) Filter {
	return Filter{Op: FilterIsIn, Term: term, Values: values}
}

func NotIn(term string, values ...string) Filter {
	return Filter{Op: FilterNotIn, Term: term, Values: values}
}

func Contains(term string, values ...string) Filter {
	return Filter{Op: FilterContains, Term: term, Values: values}
}

func NotContains(term string, values ...string) Filter {
	return Filter{Op: FilterNotContains, Term: term, Values: values}
}

// Query is what the pipeline asks the source for: every event of Kind in
// [Begin, End) matching all Filters.
type Query struct {
	Kind    Kind
	Begin   time.Time
	End     time.Time
	Filters []Filter
}

// Page is one response from the source. Invalid counts records that were
// dropped because they carried no usable timestamp.
type Page struct {
	Number  int
	Events  []Event
	Invalid int
}
