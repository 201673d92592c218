package report

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FormValues is the untyped operator-entered report data: a flat map of
// field name to raw string. Accessors encode the trim/parse/fallback
// contract once instead of per call site.
type FormValues map[string]string

func (f FormValues) Get(key string) string {
	return strings.TrimSpace(f[key])
}

// First returns the first non-empty value among the named fields.
func (f FormValues) First(keys ...string) string {
	for _, key := range keys {
		if v := f.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// NonNegativeInt parses the field as a non-negative integer, nil when the
// field is absent, unparseable or negative.
func (f FormValues) NonNegativeInt(key string) *int {
	v := f.Get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func (f FormValues) Int(key string, fallback int) int {
	v := f.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// DecodeJSON unmarshals a JSON-blob field into dst. A missing or malformed
// blob returns false; it never fails the request, callers degrade to their
// other data sources.
func (f FormValues) DecodeJSON(key string, dst any) bool {
	v := f.Get(key)
	if v == "" {
		return false
	}
	return json.Unmarshal([]byte(v), dst) == nil
}

// IncidentSnapshot is read-only reference data about the source incident,
// used as fallback when form values are absent. Never mutated.
type IncidentSnapshot struct {
	Address           string   `json:"address"`
	City              string   `json:"city"`
	State             string   `json:"state"`
	PostalCode        string   `json:"postalCode"`
	County            string   `json:"county"`
	AssignedUnits     []string `json:"assignedUnits"`
	AssignedUnitsText string   `json:"assignedUnitsText"`
}
