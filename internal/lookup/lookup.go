// Package lookup supplies billing rates by identity key. Stores load their
// whole rate table once at construction and serve reads from memory, so a
// reconciliation run never blocks on the backend mid-flight.
package lookup

import (
	"fmt"
	"strconv"
	"strings"

	"fleet-recon/internal/logging"
	"fleet-recon/internal/names"
)

// Store supplies hourly rates by normalized identity key.
type Store interface {
	Rate(key string) (float64, bool)
}

// StaticStore is an in-memory rate table, typically loaded from config.
type StaticStore map[string]float64

// NewStaticStore builds a static store, normalizing the keys the same way
// record identities are normalized so lookups line up.
func NewStaticStore(rates map[string]float64) StaticStore {
	s := make(StaticStore, len(rates))
	for k, v := range rates {
		s[storeKey(k)] = v
	}
	return s
}

// Rate implements Store.
func (s StaticStore) Rate(key string) (float64, bool) {
	r, ok := s[storeKey(key)]
	return r, ok
}

// storeKey normalizes a lookup key. Keys that are person names collapse to
// the normalized form; asset ids and other opaque keys just fold case.
func storeKey(raw string) string {
	if n := names.Normalize(raw); n != "" {
		return n
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// addRate inserts one backend row into the table, skipping rows without a
// usable key or rate. The first occurrence of a key wins.
func addRate(rates map[string]float64, rawKey string, rawRate interface{}) {
	key := storeKey(rawKey)
	if key == "" {
		logging.Logf(logging.Warning, "lookup: skipping rate row with empty key")
		return
	}
	rate, ok := toFloat(rawRate)
	if !ok {
		logging.Logf(logging.Warning, "lookup: skipping key '%s' with unusable rate value %v", key, rawRate)
		return
	}
	if _, exists := rates[key]; exists {
		logging.Logf(logging.Warning, "lookup: duplicate rate row for key '%s', keeping first", key)
		return
	}
	rates[key] = rate
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(t.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
