package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	entityIDPattern     = regexp.MustCompile(`^(FD|VN|FM|FA)\d{8}$`)
	departmentIDPattern = regexp.MustCompile(`^FD\d{8}$`)
)

func ValidEntityID(id string) bool     { return entityIDPattern.MatchString(id) }
func ValidDepartmentID(id string) bool { return departmentIDPattern.MatchString(id) }

// BuildError is a local validation failure: the request is rejected before
// any network call is made.
type BuildError struct {
	Field string
	Msg   string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func buildErr(field, format string, args ...any) *BuildError {
	return &BuildError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Defaults are the server-side values applied when the report leaves a field
// blank.
type Defaults struct {
	EntityID         string
	DepartmentID     string
	State            string
	Country          string
	UTCOffsetMinutes int
}

type BuildInput struct {
	Report   FormValues
	Snapshot IncidentSnapshot
	Defaults Defaults
	Now      time.Time
}

type BuiltReport struct {
	EntityID string
	Payload  IncidentPayload
}

// Build validates the raw report and composes the canonical incident payload.
// Validation fails fast with a descriptive error on the first violation.
func Build(in BuildInput) (*BuiltReport, error) {
	form := in.Report
	if form == nil {
		form = FormValues{}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entityID := form.First("entityId")
	if entityID == "" {
		entityID = strings.TrimSpace(in.Defaults.EntityID)
	}
	if !ValidEntityID(entityID) {
		return nil, buildErr("entityId", "%q is not a valid entity id (expected FD/VN/FM/FA followed by 8 digits)", entityID)
	}

	deptID := form.Get("departmentId")
	if deptID == "" {
		deptID = strings.TrimSpace(in.Defaults.DepartmentID)
	}
	// An FD entity cannot submit under a different department; this also
	// infers the department id when neither field nor default resolved.
	if strings.HasPrefix(entityID, "FD") {
		deptID = entityID
	}
	if !ValidDepartmentID(deptID) {
		return nil, buildErr("departmentId", "%q is not a valid department id (expected FD followed by 8 digits)", deptID)
	}

	incidentNumber := form.First("incidentNumber", "callNumber")
	if incidentNumber == "" {
		return nil, buildErr("incidentNumber", "an incident number or call number is required")
	}

	dispatchNumber := form.First("dispatchIncidentNumber", "incidentNumber", "callNumber")
	if dispatchNumber == "" {
		return nil, buildErr("dispatchIncidentNumber", "a dispatch incident number is required")
	}

	primaryType := NormalizeEnumValue(form.Get("primaryIncidentType"))
	if primaryType == "" {
		return nil, buildErr("primaryIncidentType", "a primary incident type is required")
	}

	offset := form.Int("utcOffsetMinutes", in.Defaults.UTCOffsetMinutes)

	// Monotonic fallback chain: each explicit value overrides its default so
	// a full chain of timestamps is always present even from minimal input.
	onset := CombineDateTime(form.Get("incidentDate"), form.Get("incidentTime"), offset)
	onsetOrNow := now
	if onset != nil {
		onsetOrNow = *onset
	}
	callCreate := ResolveTimestamp(form.Get("callCreateTime"), offset, onsetOrNow)
	callAnswered := ResolveTimestamp(form.Get("callAnsweredTime"), offset, callCreate)
	callArrival := ResolveTimestamp(form.Get("callArrivalTime"), offset, callAnswered)

	baseLoc, dispatchLoc := buildLocations(form, in.Snapshot, in.Defaults)

	payload := IncidentPayload{
		Base: BaseIncident{
			DepartmentID:   deptID,
			IncidentNumber: incidentNumber,
			Location:       baseLoc,
			PeoplePresent:  YesNoToBool(form.Get("peoplePresent")),
			Displacements:  form.NonNegativeInt("displacements"),
			Narrative:      form.Get("narrative"),
			LocationUse:    NormalizeEnumValue(form.Get("locationUse")),
		},
		IncidentTypes: buildIncidentTypes(primaryType, form.Get("additionalIncidentTypes")),
		Dispatch: DispatchRecord{
			IncidentNumber: dispatchNumber,
			Onset:          onset,
			CallCreate:     callCreate,
			CallAnswered:   callAnswered,
			CallArrival:    callArrival,
			Location:       dispatchLoc,
			UnitResponses:  ExtractUnitResponses(form, in.Snapshot, offset),
			DispatchCodes:  CSVToEnumValues(form.Get("dispatchCodes")),
			Disposition:    NormalizeEnumValue(form.Get("incidentDisposition")),
		},
		SpecialModifiers: CSVToEnumValues(form.Get("specialModifiers")),
		ActionsTactics:   buildActionsTactics(form),
	}

	payload.Aids, payload.NonFDAids = buildAids(form)
	payload.HazsitDetail = buildHazsitDetail(form, primaryType)
	payload.ElectricHazards = buildEmergingHazards(form, "electricHazardsJson")
	payload.PowergenHazards = buildEmergingHazards(form, "powergenHazardsJson")
	payload.MedicalDetails = buildMedicalDetails(form, primaryType)

	return &BuiltReport{EntityID: entityID, Payload: payload}, nil
}

// buildLocations computes the base and dispatch locations independently; the
// dispatch location defaults to the base address. State and country are
// forced to a single normalized value and propagated to both.
func buildLocations(form FormValues, snap IncidentSnapshot, defaults Defaults) (Location, Location) {
	baseRaw := form.First("address")
	if baseRaw == "" {
		baseRaw = strings.TrimSpace(snap.Address)
	}
	street, city, stateSource := ParseAddress(baseRaw)
	if v := form.Get("street"); v != "" {
		street = v
	}
	if v := form.First("city"); v != "" {
		city = v
	} else if city == UnknownAddressPart && strings.TrimSpace(snap.City) != "" {
		city = strings.TrimSpace(snap.City)
	}

	stateRaw := form.First("state")
	if stateRaw == "" {
		stateRaw = stateSource
	}
	if strings.TrimSpace(stateRaw) == "" {
		stateRaw = snap.State
	}
	state := ResolveStateCode(stateRaw, defaults.State)
	country := ResolveCountryCode(form.Get("country"), defaults.Country)

	base := Location{
		Street:                   street,
		IncorporatedMunicipality: city,
		State:                    state,
		Country:                  country,
		PostalCode:               form.First("postalCode", "zip"),
		County:                   form.Get("county"),
		PlaceType:                NormalizeEnumValue(form.Get("placeType")),
		DirectionOfTravel:        NormalizeEnumValue(form.Get("directionOfTravel")),
		CrossStreets:             form.Get("crossStreets"),
	}
	if base.PostalCode == "" {
		base.PostalCode = strings.TrimSpace(snap.PostalCode)
	}
	if base.County == "" {
		base.County = strings.TrimSpace(snap.County)
	}

	dispatch := base
	if raw := form.Get("dispatchAddress"); raw != "" {
		dStreet, dCity, _ := ParseAddress(raw)
		dispatch.Street = dStreet
		dispatch.IncorporatedMunicipality = dCity
	}
	dispatch.State = state
	dispatch.Country = country
	return base, dispatch
}

// buildIncidentTypes emits exactly one primary entry plus up to two
// deduplicated non-primary types; extras beyond two are dropped silently
// (the schema's secondary slot is capped at two).
func buildIncidentTypes(primary, additionalCSV string) []IncidentType {
	types := []IncidentType{{Value: primary, Primary: true}}
	for _, v := range CSVToEnumValues(additionalCSV) {
		if v == primary {
			continue
		}
		dup := false
		for _, t := range types {
			if t.Value == v {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		types = append(types, IncidentType{Value: v})
		if len(types) == 3 {
			break
		}
	}
	return types
}

// buildActionsTactics: action values take precedence when both variants
// happen to be supplied; the field is omitted when neither is present.
func buildActionsTactics(form FormValues) *ActionsTactics {
	if actions := CSVToEnumValues(form.Get("actionsTaken")); len(actions) > 0 {
		return &ActionsTactics{Type: ActionsTypeAction, Actions: actions}
	}
	if reason := NormalizeEnumValue(form.Get("noActionReason")); reason != "" {
		return &ActionsTactics{Type: ActionsTypeNoAction, NoActionType: reason}
	}
	return nil
}

const nonFDAidAgencyType = "NON_FD_AID"

type aidInput struct {
	DepartmentID string `json:"departmentId"`
	AidType      string `json:"aidType"`
	Direction    string `json:"direction"`
}

func buildAids(form FormValues) ([]AidEntry, []string) {
	var aids []AidEntry
	seen := make(map[string]bool)
	addAid := func(deptRaw, typeRaw, dirRaw string) {
		dept := strings.TrimSpace(deptRaw)
		aidType := NormalizeEnumValue(typeRaw)
		direction := NormalizeEnumValue(dirRaw)
		// Included only when all three resolve.
		if !ValidDepartmentID(dept) || aidType == "" || direction == "" {
			return
		}
		key := dept + "\x00" + aidType + "\x00" + direction
		if seen[key] {
			return
		}
		seen[key] = true
		aids = append(aids, AidEntry{DepartmentID: dept, AidType: aidType, Direction: direction})
	}

	addAid(form.Get("aidDepartmentId"), form.Get("aidType"), form.Get("aidDirection"))

	var extra []aidInput
	if form.DecodeJSON("additionalAidsJson", &extra) {
		for _, a := range extra {
			addAid(a.DepartmentID, a.AidType, a.Direction)
		}
	}

	var nonFD []string
	if NormalizeEnumValue(form.Get("aidAgencyType")) == nonFDAidAgencyType {
		nonFD = CSVToEnumValues(form.Get("nonFdAidTypes"))
	}
	return aids, nonFD
}

func enumFamily(v string) string {
	if i := strings.Index(v, enumGroupSeparator); i >= 0 {
		return v[:i]
	}
	return v
}

func buildHazsitDetail(form FormValues, primaryType string) *HazsitDetail {
	if enumFamily(primaryType) != "HAZSIT" {
		return nil
	}
	disposition := NormalizeEnumValue(form.Get("hazsitDisposition"))
	evacuated := form.NonNegativeInt("evacuatedCount")
	if disposition == "" || evacuated == nil {
		return nil
	}
	detail := &HazsitDetail{Disposition: disposition, EvacuatedCount: *evacuated}
	name := form.Get("chemicalName")
	class := NormalizeEnumValue(form.Get("chemicalClassification"))
	if name != "" && class != "" {
		detail.Chemical = &ChemicalDetail{Name: name, Classification: class}
	}
	return detail
}

type emergingHazardInput struct {
	HazardType         string `json:"hazardType"`
	SuppressionMethods string `json:"suppressionMethods"`
	PVSource           string `json:"pvSource"`
	PVTarget           string `json:"pvTarget"`
}

func buildEmergingHazards(form FormValues, field string) []EmergingHazard {
	var items []emergingHazardInput
	if !form.DecodeJSON(field, &items) {
		return nil
	}
	var out []EmergingHazard
	for _, item := range items {
		hazardType := NormalizeEnumValue(item.HazardType)
		if hazardType == "" {
			continue
		}
		out = append(out, EmergingHazard{
			HazardType:         hazardType,
			SuppressionMethods: CSVToEnumValues(item.SuppressionMethods),
			PVSource:           NormalizeEnumValue(item.PVSource),
			PVTarget:           NormalizeEnumValue(item.PVTarget),
		})
	}
	return out
}

// buildMedicalDetails emits one record per patient, each carrying the same
// evaluation/status/transport values. Multi-patient differentiation is not
// modeled; the replication matches the single-patient case.
func buildMedicalDetails(form FormValues, primaryType string) []MedicalDetail {
	if enumFamily(primaryType) != "MEDICAL" {
		return nil
	}
	detail := MedicalDetail{
		Evaluation:           NormalizeEnumValue(form.Get("medicalEvaluation")),
		Status:               NormalizeEnumValue(form.Get("medicalStatus")),
		TransportDisposition: NormalizeEnumValue(form.Get("medicalTransportDisposition")),
		ReportID:             form.Get("medicalReportId"),
	}
	if detail.Evaluation == "" && detail.Status == "" && detail.TransportDisposition == "" && detail.ReportID == "" {
		return nil
	}
	count := 1
	if n := form.NonNegativeInt("patientCount"); n != nil && *n > 0 {
		count = *n
	}
	out := make([]MedicalDetail, count)
	for i := range out {
		out[i] = detail
	}
	return out
}
