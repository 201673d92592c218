package report

import "time"

// IncidentPayload is the canonical submission object matching the NERIS
// schema's expected shape. Built fresh per request, never persisted.
type IncidentPayload struct {
	Base             BaseIncident     `json:"base"`
	IncidentTypes    []IncidentType   `json:"incident_types"`
	Dispatch         DispatchRecord   `json:"dispatch"`
	SpecialModifiers []string         `json:"special_modifiers,omitempty"`
	ActionsTactics   *ActionsTactics  `json:"actions_tactics,omitempty"`
	Aids             []AidEntry       `json:"aids,omitempty"`
	NonFDAids        []string         `json:"nonfd_aids,omitempty"`
	HazsitDetail     *HazsitDetail    `json:"hazsit_detail,omitempty"`
	ElectricHazards  []EmergingHazard `json:"electric_hazards,omitempty"`
	PowergenHazards  []EmergingHazard `json:"powergen_hazards,omitempty"`
	MedicalDetails   []MedicalDetail  `json:"medical_details,omitempty"`
}

type BaseIncident struct {
	DepartmentID   string   `json:"department_id"`
	IncidentNumber string   `json:"incident_number"`
	Location       Location `json:"location"`
	PeoplePresent  *bool    `json:"people_present,omitempty"`
	Displacements  *int     `json:"displacements,omitempty"`
	Narrative      string   `json:"narrative,omitempty"`
	LocationUse    string   `json:"location_use,omitempty"`
}

// Location always carries valid 2-letter state and country codes.
type Location struct {
	Street                   string `json:"street"`
	IncorporatedMunicipality string `json:"incorporated_municipality"`
	State                    string `json:"state"`
	Country                  string `json:"country"`
	PostalCode               string `json:"postal_code,omitempty"`
	County                   string `json:"county,omitempty"`
	PlaceType                string `json:"place_type,omitempty"`
	DirectionOfTravel        string `json:"direction_of_travel,omitempty"`
	CrossStreets             string `json:"cross_streets,omitempty"`
}

type IncidentType struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

type DispatchRecord struct {
	IncidentNumber string         `json:"incident_number"`
	Onset          *time.Time     `json:"onset,omitempty"`
	CallCreate     time.Time      `json:"call_create"`
	CallAnswered   time.Time      `json:"call_answered"`
	CallArrival    time.Time      `json:"call_arrival"`
	Location       Location       `json:"location"`
	UnitResponses  []UnitResponse `json:"unit_responses"`
	DispatchCodes  []string       `json:"dispatch_codes,omitempty"`
	Disposition    string         `json:"disposition,omitempty"`
}

const (
	ActionsTypeAction   = "ACTION"
	ActionsTypeNoAction = "NOACTION"
)

// ActionsTactics is a tagged union: ACTION carries the actions list,
// NOACTION carries the no-action reason. Mutually exclusive by construction.
type ActionsTactics struct {
	Type         string   `json:"type"`
	Actions      []string `json:"actions,omitempty"`
	NoActionType string   `json:"noaction_type,omitempty"`
}

type AidEntry struct {
	DepartmentID string `json:"department_id"`
	AidType      string `json:"aid_type"`
	Direction    string `json:"direction"`
}

type HazsitDetail struct {
	Disposition    string          `json:"disposition"`
	EvacuatedCount int             `json:"evacuated_count"`
	Chemical       *ChemicalDetail `json:"chemical,omitempty"`
}

type ChemicalDetail struct {
	Name           string `json:"name"`
	Classification string `json:"classification"`
}

type EmergingHazard struct {
	HazardType         string   `json:"hazard_type"`
	SuppressionMethods []string `json:"suppression_methods,omitempty"`
	PVSource           string   `json:"pv_source,omitempty"`
	PVTarget           string   `json:"pv_target,omitempty"`
}

type MedicalDetail struct {
	Evaluation           string `json:"evaluation,omitempty"`
	Status               string `json:"status,omitempty"`
	TransportDisposition string `json:"transport_disposition,omitempty"`
	ReportID             string `json:"report_id,omitempty"`
}
