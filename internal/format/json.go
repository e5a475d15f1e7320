package format

import (
	"fmt"

	"secevents/internal/domain"
)

// JSONFormatter writes the event payload as compact JSON with sorted keys.
type JSONFormatter struct{}

func (JSONFormatter) Format(e domain.Event) (string, error) {
	b, err := domain.CanonicalJSON(e.Fields)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(b), nil
}

// RawJSONFormatter wraps the payload together with its kind so consumers
// reading several kinds from one stream can tell them apart.
type RawJSONFormatter struct{}

type rawEnvelope struct {
	Kind  domain.Kind    `json:"kind"`
	Event map[string]any `json:"event"`
}

func (RawJSONFormatter) Format(e domain.Event) (string, error) {
	b, err := domain.CanonicalJSON(rawEnvelope{Kind: e.Kind, Event: e.Fields})
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(b), nil
}
