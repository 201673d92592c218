package report

import (
	"regexp"
	"strings"
	"time"
)

// NERIS enum values carry their hierarchy with a double-pipe separator
// (e.g. FIRE||STRUCTURE). Form inputs arrive either already canonical or
// colon-delimited.
const enumGroupSeparator = "||"

func NormalizeEnumValue(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	if strings.Contains(v, enumGroupSeparator) {
		return v
	}
	parts := strings.Split(v, ":")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, strings.TrimSpace(p))
	}
	return strings.Join(segs, enumGroupSeparator)
}

func CSVToEnumValues(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, piece := range strings.Split(raw, ",") {
		v := NormalizeEnumValue(piece)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// YesNoToBool maps YES/NO (any case) to a boolean and anything else to nil.
// Unknown is not false.
func YesNoToBool(raw string) *bool {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "YES":
		v := true
		return &v
	case "NO":
		v := false
		return &v
	}
	return nil
}

var localTimestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2})?$`)

const maxUTCOffsetMinutes = 840 // +/- 14h

func clampOffset(offsetMinutes int) int {
	if offsetMinutes < -maxUTCOffsetMinutes || offsetMinutes > maxUTCOffsetMinutes {
		return 0
	}
	return offsetMinutes
}

var genericTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

func parseTimestamp(raw string, offsetMinutes int) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, false
	}
	if localTimestampPattern.MatchString(v) {
		layout := "2006-01-02T15:04"
		if len(v) > len(layout) {
			layout = "2006-01-02T15:04:05"
		}
		local, err := time.Parse(layout, v)
		if err != nil {
			return time.Time{}, false
		}
		// The instant is the local wall-clock time minus the UTC offset.
		return local.Add(-time.Duration(clampOffset(offsetMinutes)) * time.Minute).UTC(), true
	}
	for _, layout := range genericTimestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ResolveTimestamp is the required-with-default variant: unparseable or empty
// input yields the caller-supplied fallback.
func ResolveTimestamp(raw string, offsetMinutes int, fallback time.Time) time.Time {
	if t, ok := parseTimestamp(raw, offsetMinutes); ok {
		return t
	}
	return fallback
}

// ResolveOptionalTimestamp is the optional variant: unparseable or empty
// input yields nil.
func ResolveOptionalTimestamp(raw string, offsetMinutes int) *time.Time {
	if t, ok := parseTimestamp(raw, offsetMinutes); ok {
		return &t
	}
	return nil
}

// CombineDateTime resolves a separate date+time pair. A missing time defaults
// to midnight; a missing date yields nil.
func CombineDateTime(date, tm string, offsetMinutes int) *time.Time {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil
	}
	tm = strings.TrimSpace(tm)
	if tm == "" {
		tm = "00:00"
	}
	return ResolveOptionalTimestamp(date+"T"+tm, offsetMinutes)
}

// ResolveStateCode turns wildly inconsistent address state data into a valid
// 2-letter code. It scans uppercase tokens for an embedded abbreviation, then
// 1-3 word windows for a full state or territory name, then falls back to the
// supplied default, then to NY. It never returns an empty or invalid code.
func ResolveStateCode(raw, fallback string) string {
	text := strings.TrimSpace(raw)
	if text != "" {
		for _, tok := range strings.Fields(text) {
			tok = strings.Trim(tok, ",.;:()")
			if len(tok) == 2 && tok == strings.ToUpper(tok) && stateCodes[tok] {
				return tok
			}
		}
		words := strings.Fields(strings.ToUpper(strings.NewReplacer(",", " ", ".", " ", ";", " ").Replace(text)))
		for i := range words {
			for size := 3; size >= 1; size-- {
				if i+size > len(words) {
					continue
				}
				if code, ok := stateNames[strings.Join(words[i:i+size], " ")]; ok {
					return code
				}
			}
		}
	}
	fb := strings.ToUpper(strings.TrimSpace(fallback))
	if stateCodes[fb] {
		return fb
	}
	return "NY"
}

func ResolveCountryCode(raw, fallback string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if len(v) == 2 {
		return v
	}
	fb := strings.ToUpper(strings.TrimSpace(fallback))
	if len(fb) == 2 {
		return fb
	}
	return "US"
}

// UnknownAddressPart is used when a positional address segment is absent;
// the external schema requires street and municipality to be present.
const UnknownAddressPart = "UNKNOWN"

// ParseAddress extracts street, city and a state source from a comma
// separated free-text address. The state source is segment 2 when present,
// else the last segment, else the whole string; it still needs
// ResolveStateCode applied.
func ParseAddress(raw string) (street, city, stateSource string) {
	segs := strings.Split(raw, ",")
	for i := range segs {
		segs[i] = strings.TrimSpace(segs[i])
	}
	street = UnknownAddressPart
	city = UnknownAddressPart
	if len(segs) > 0 && segs[0] != "" {
		street = segs[0]
	}
	if len(segs) > 1 && segs[1] != "" {
		city = segs[1]
	}
	switch {
	case len(segs) > 2:
		stateSource = segs[2]
	case len(segs) > 1:
		stateSource = segs[len(segs)-1]
	default:
		stateSource = strings.TrimSpace(raw)
	}
	return street, city, stateSource
}
