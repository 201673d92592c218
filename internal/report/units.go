package report

import (
	"strconv"
	"strings"
	"time"
)

// UnspecifiedUnitID is emitted when no unit-identifying data exists anywhere
// in a request. The external schema requires at least one unit response per
// incident; the sentinel guarantees that without fabricating a real
// identifier.
const UnspecifiedUnitID = "UNSPECIFIED_UNIT"

type UnitResponse struct {
	ReportedUnitID  string     `json:"reported_unit_id"`
	Staffing        *int       `json:"staffing,omitempty"`
	ResponseMode    string     `json:"response_mode,omitempty"`
	TransportMode   string     `json:"transport_mode,omitempty"`
	Dispatch        *time.Time `json:"dispatch,omitempty"`
	EnrouteToScene  *time.Time `json:"enroute_to_scene,omitempty"`
	Staging         *time.Time `json:"staging,omitempty"`
	OnScene         *time.Time `json:"on_scene,omitempty"`
	UnitClear       *time.Time `json:"unit_clear,omitempty"`
	CanceledEnroute *time.Time `json:"canceled_enroute,omitempty"`
}

// unitDetail is one entry of the structured per-unit JSON list (source 1).
// Staffing is `any` because operators send both numbers and strings.
type unitDetail struct {
	UnitID            string `json:"unitId"`
	Staffing          any    `json:"staffing"`
	ResponseMode      string `json:"responseMode"`
	TransportMode     string `json:"transportMode"`
	DispatchTime      string `json:"dispatchTime"`
	EnrouteTime       string `json:"enrouteTime"`
	StagingTime       string `json:"stagingTime"`
	OnSceneTime       string `json:"onSceneTime"`
	ClearTime         string `json:"clearTime"`
	CanceledTime      string `json:"canceledTime"`
	IsCanceledEnroute bool   `json:"isCanceledEnroute"`
}

// unitDefaults are the request-level fields of source 2: the primary unit's
// own values, which also serve as last-resort defaults in the
// canceled-enroute chain.
type unitDefaults struct {
	primaryUnitID string
	staffing      *int
	responseMode  string
	transportMode string
	dispatch      *time.Time
	enroute       *time.Time
	staging       *time.Time
	onScene       *time.Time
	clear         *time.Time
	canceled      *time.Time
}

// ExtractUnitResponses merges the independent sources of per-unit dispatch
// data into one ordered, deduplicated list. Identifier discovery unions all
// five sources in priority order; value fields are first-non-empty across
// source 1 then source 2.
func ExtractUnitResponses(form FormValues, snap IncidentSnapshot, offsetMinutes int) []UnitResponse {
	var details []unitDetail
	form.DecodeJSON("unitResponsesJson", &details)

	byID := make(map[string]unitDetail, len(details))
	var order []string
	seen := make(map[string]bool)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		order = append(order, id)
	}

	// Source 1: structured per-unit list.
	for _, d := range details {
		id := strings.TrimSpace(d.UnitID)
		if id == "" {
			continue
		}
		if _, dup := byID[id]; !dup {
			byID[id] = d
		}
		add(id)
	}

	defs := unitDefaults{
		primaryUnitID: form.Get("primaryUnit"),
		staffing:      form.NonNegativeInt("primaryUnitStaffing"),
		responseMode:  NormalizeEnumValue(form.Get("primaryUnitResponseMode")),
		transportMode: NormalizeEnumValue(form.Get("primaryUnitTransportMode")),
		dispatch:      ResolveOptionalTimestamp(form.Get("unitDispatchTime"), offsetMinutes),
		enroute:       ResolveOptionalTimestamp(form.Get("unitEnrouteTime"), offsetMinutes),
		staging:       ResolveOptionalTimestamp(form.Get("unitStagingTime"), offsetMinutes),
		onScene:       ResolveOptionalTimestamp(form.Get("unitOnSceneTime"), offsetMinutes),
		clear:         ResolveOptionalTimestamp(form.Get("unitClearTime"), offsetMinutes),
		canceled:      ResolveOptionalTimestamp(form.Get("unitCanceledTime"), offsetMinutes),
	}

	// Source 2: the primary unit identifier.
	add(defs.primaryUnitID)

	// Source 3: free-text list of additional unit identifiers.
	for _, id := range splitUnitList(form.Get("additionalUnits")) {
		add(id)
	}

	// Source 4: snapshot's previously-assigned units (discovery only).
	for _, id := range snap.AssignedUnits {
		add(id)
	}

	// Source 5: first token of the snapshot's assigned-unit string.
	if fields := strings.Fields(snap.AssignedUnitsText); len(fields) > 0 {
		add(fields[0])
	}

	if len(order) == 0 {
		return []UnitResponse{{ReportedUnitID: UnspecifiedUnitID}}
	}

	out := make([]UnitResponse, 0, len(order))
	for _, id := range order {
		out = append(out, composeUnitResponse(id, byID, defs, offsetMinutes))
	}
	return out
}

func composeUnitResponse(id string, byID map[string]unitDetail, defs unitDefaults, offsetMinutes int) UnitResponse {
	r := UnitResponse{ReportedUnitID: id}
	d, hasDetail := byID[id]
	isPrimary := id == defs.primaryUnitID

	if hasDetail {
		r.Staffing = coerceStaffing(d.Staffing)
		r.ResponseMode = NormalizeEnumValue(d.ResponseMode)
		r.TransportMode = NormalizeEnumValue(d.TransportMode)
		r.Dispatch = ResolveOptionalTimestamp(d.DispatchTime, offsetMinutes)
		r.EnrouteToScene = ResolveOptionalTimestamp(d.EnrouteTime, offsetMinutes)
		r.Staging = ResolveOptionalTimestamp(d.StagingTime, offsetMinutes)
		r.OnScene = ResolveOptionalTimestamp(d.OnSceneTime, offsetMinutes)
		r.UnitClear = ResolveOptionalTimestamp(d.ClearTime, offsetMinutes)
	}
	if isPrimary {
		if r.Staffing == nil {
			r.Staffing = defs.staffing
		}
		if r.ResponseMode == "" {
			r.ResponseMode = defs.responseMode
		}
		if r.TransportMode == "" {
			r.TransportMode = defs.transportMode
		}
		if r.Dispatch == nil {
			r.Dispatch = defs.dispatch
		}
		if r.EnrouteToScene == nil {
			r.EnrouteToScene = defs.enroute
		}
		if r.Staging == nil {
			r.Staging = defs.staging
		}
		if r.OnScene == nil {
			r.OnScene = defs.onScene
		}
		if r.UnitClear == nil {
			r.UnitClear = defs.clear
		}
		if r.CanceledEnroute == nil {
			r.CanceledEnroute = defs.canceled
		}
	}
	if hasDetail && d.IsCanceledEnroute {
		r.CanceledEnroute = firstTimestamp(
			ResolveOptionalTimestamp(d.CanceledTime, offsetMinutes),
			r.EnrouteToScene,
			r.Dispatch,
			defs.canceled,
			defs.enroute,
		)
	}
	return r
}

func firstTimestamp(candidates ...*time.Time) *time.Time {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func coerceStaffing(v any) *int {
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if n < 0 {
		return nil
	}
	return &n
}

func splitUnitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
}
