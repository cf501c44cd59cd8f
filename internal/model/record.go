package model

// RawRow represents one row of an input table, keyed by the original
// (trimmed) column header. Values are the raw cell text exactly as read;
// coercion happens in the cleaner.
type RawRow map[string]string

// Canonical field names produced by the schema mapper and consumed by the
// cleaner. Source headers are mapped onto these via configurable alias tables.
const (
	FieldEntityID   = "entity_id"
	FieldPersonName = "person_name"
	FieldDate       = "date"
	FieldLocation   = "location"
	FieldCategory   = "category"
	FieldHours      = "hours"
	FieldRate       = "rate"
	FieldKeyOn      = "key_on"
	FieldKeyOff     = "key_off"
)

// CanonicalRecord is a cleaned, validated row with the fixed field set the
// pipeline operates on. It is immutable once built; optional numeric fields
// are nil when the source cell was absent. Source and Row identify the
// originating file and 1-based data row for diagnostics and deterministic
// ordering.
type CanonicalRecord struct {
	Source         string   `json:"source"`
	Row            int      `json:"row"`
	EntityID       string   `json:"entity_id,omitempty"`
	PersonName     string   `json:"person_name,omitempty"`
	NormalizedName string   `json:"normalized_name,omitempty"`
	Date           string   `json:"date,omitempty"`
	Location       string   `json:"location,omitempty"`
	Category       string   `json:"category,omitempty"`
	Hours          *float64 `json:"hours,omitempty"`
	Rate           *float64 `json:"rate,omitempty"`
	KeyOn          string   `json:"key_on,omitempty"`
	KeyOff         string   `json:"key_off,omitempty"`
}

// Key returns the identity key used to join records across sources: the
// normalized person name when present, otherwise the asset/equipment id.
func (r CanonicalRecord) Key() string {
	if r.NormalizedName != "" {
		return r.NormalizedName
	}
	return r.EntityID
}

// Ref returns a stable reference to the record's source position.
func (r CanonicalRecord) Ref() RecordRef {
	return RecordRef{Source: r.Source, Row: r.Row}
}

// RecordRef points back at a source file row.
type RecordRef struct {
	Source string `json:"source"`
	Row    int    `json:"row"`
}
