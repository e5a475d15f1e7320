package main

import (
	"github.com/spf13/pflag"

	"secevents/internal/domain"
)

// filterFlag binds one repeatable CLI flag to a search filter.
type filterFlag struct {
	name string
	term string
	op   domain.FilterOp
	help string
}

var filterFlags = map[domain.Kind][]filterFlag{
	domain.KindAlerts: {
		{"actor", "actor", domain.FilterIsIn, "include alerts triggered by the given actor (exact username)"},
		{"actor-contains", "actor", domain.FilterContains, "include alerts whose actor contains the given string"},
		{"exclude-actor", "actor", domain.FilterNotIn, "exclude alerts triggered by the given actor (exact username)"},
		{"exclude-actor-contains", "actor", domain.FilterNotContains, "exclude alerts whose actor contains the given string"},
		{"rule-name", "ruleName", domain.FilterIsIn, "include alerts from the given rule name"},
		{"exclude-rule-name", "ruleName", domain.FilterNotIn, "exclude alerts from the given rule name"},
		{"rule-id", "ruleId", domain.FilterIsIn, "include alerts from the given rule id"},
		{"exclude-rule-id", "ruleId", domain.FilterNotIn, "exclude alerts from the given rule id"},
		{"rule-type", "type", domain.FilterIsIn, "include alerts of the given rule type"},
		{"exclude-rule-type", "type", domain.FilterNotIn, "exclude alerts of the given rule type"},
		{"description", "description", domain.FilterContains, "include alerts whose description contains the given string"},
		{"severity", "severity", domain.FilterIsIn, "include alerts of the given severity (HIGH, MEDIUM, LOW)"},
		{"state", "state", domain.FilterIsIn, "include alerts in the given state (OPEN, RESOLVED, PENDING, IN_PROGRESS)"},
	},
	domain.KindAuditLogs: {
		{"event-type", "eventType", domain.FilterIsIn, "include audit events of the given type"},
		{"username", "actorName", domain.FilterIsIn, "include audit events performed by the given username"},
		{"user-id", "actorId", domain.FilterIsIn, "include audit events performed by the given user id"},
		{"user-ip", "actorIpAddress", domain.FilterIsIn, "include audit events from the given IP address"},
		{"affected-user-id", "affectedUserId", domain.FilterIsIn, "include audit events affecting the given user id"},
		{"affected-username", "affectedUserName", domain.FilterIsIn, "include audit events affecting the given username"},
	},
	domain.KindFileEvents: {
		{"exposure-type", "exposure", domain.FilterIsIn, "include file events with the given exposure type"},
		{"md5", "md5Checksum", domain.FilterIsIn, "include file events with the given MD5 checksum"},
		{"file-name", "fileName", domain.FilterIsIn, "include file events for the given file name"},
		{"device-username", "deviceUserName", domain.FilterIsIn, "include file events from the given device user"},
	},
}

func addFilterFlags(fs *pflag.FlagSet, kind domain.Kind) {
	for _, f := range filterFlags[kind] {
		fs.StringArray(f.name, nil, f.help)
	}
}

// collectFilters turns the set filter flags into filters. Exact-match
// flags become one filter carrying every value; substring flags become one
// filter per value, since each must hold on its own.
func collectFilters(fs *pflag.FlagSet, kind domain.Kind) ([]domain.Filter, error) {
	var filters []domain.Filter
	for _, f := range filterFlags[kind] {
		values, err := fs.GetStringArray(f.name)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}

		switch f.op {
		case domain.FilterContains, domain.FilterNotContains:
			for _, v := range values {
				filters = append(filters, domain.Filter{Op: f.op, Term: f.term, Values: []string{v}})
			}
		default:
			filters = append(filters, domain.Filter{Op: f.op, Term: f.term, Values: values})
		}
	}
	return filters, nil
}
