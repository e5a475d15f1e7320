package format

import (
	"fmt"
	"sort"
	"strings"

	"secevents/internal/domain"
)

const (
	JSON    = "json"
	RawJSON = "raw-json"
	CEF     = "cef"
)

// Formatter renders one event as a single record line.
type Formatter interface {
	Format(domain.Event) (string, error)
}

// Names lists the accepted formatter names.
func Names() []string {
	names := []string{JSON, RawJSON, CEF}
	sort.Strings(names)
	return names
}

// New returns the formatter registered under name.
func New(name string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case JSON, "":
		return JSONFormatter{}, nil
	case RawJSON:
		return RawJSONFormatter{}, nil
	case CEF:
		return NewCEFFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)",
			domain.ErrConfiguration, name, strings.Join(Names(), ", "))
	}
}
