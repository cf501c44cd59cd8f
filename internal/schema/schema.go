// Package schema maps arbitrary source column headers onto the canonical
// field set. Alias tables are configuration data supplied by the caller;
// no per-file header knowledge is hard-coded here.
package schema

import (
	"strings"

	"fleet-recon/internal/logging"
)

// AliasTable maps a canonical field name to the set of raw header spellings
// that should resolve to it. Aliases are matched case-insensitively after
// trimming.
type AliasTable map[string][]string

// DefaultAliases covers the header spellings seen across the common fleet
// and billing exports. Callers normally extend or replace this via config.
func DefaultAliases() AliasTable {
	return AliasTable{
		"entity_id":   {"asset id", "asset", "equipment id", "equip id", "unit", "unit id", "vehicle id", "id"},
		"person_name": {"driver", "driver name", "emp name", "employee", "employee name", "operator", "name"},
		"date":        {"date", "work date", "event date", "shift date", "day"},
		"location":    {"location", "job site", "jobsite", "site", "job"},
		"category":    {"category", "description", "desc", "work type", "class"},
		"hours":       {"hours", "hrs", "total hours", "hours worked", "qty"},
		"rate":        {"rate", "hourly rate", "bill rate", "pay rate"},
		"key_on":      {"key on", "key-on", "keyon", "start time", "first ignition", "ignition on"},
		"key_off":     {"key off", "key-off", "keyoff", "end time", "last ignition", "ignition off"},
	}
}

// MapHeaders resolves each raw header to a canonical field name using the
// alias table. Matching is case-insensitive on the trimmed header. When two
// raw headers resolve to the same canonical field, the first one in header
// order wins and later ones pass through under their own lowercased name.
// Unmapped headers likewise pass through lowercased. An empty header list
// returns an empty, non-nil mapping.
func MapHeaders(headers []string, aliases AliasTable) map[string]string {
	lookup := make(map[string]string)
	for canonical, raws := range aliases {
		for _, raw := range raws {
			lookup[strings.ToLower(strings.TrimSpace(raw))] = canonical
		}
		// A header already spelled canonically always maps to itself.
		lookup[canonical] = canonical
	}

	mapped := make(map[string]string, len(headers))
	claimed := make(map[string]bool)
	for _, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		canonical, ok := lookup[key]
		if ok && !claimed[canonical] {
			claimed[canonical] = true
			mapped[h] = canonical
			continue
		}
		if ok && claimed[canonical] {
			logging.Logf(logging.Debug, "Header '%s' also maps to '%s' (already claimed); passing through", h, canonical)
		}
		mapped[h] = key
	}
	return mapped
}
