package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalForm() FormValues {
	return FormValues{
		"entityId":            "FD24001234",
		"incidentNumber":      "2024-000042",
		"primaryIncidentType": "FIRE:STRUCTURE",
	}
}

func buildOK(t *testing.T, form FormValues) *BuiltReport {
	t.Helper()
	built, err := Build(BuildInput{Report: form, Defaults: Defaults{State: "NY", Country: "US"}})
	require.NoError(t, err)
	return built
}

func TestBuildRejectsInvalidEntityIDs(t *testing.T) {
	for _, id := range []string{"XX12345678", "FD1234567", "FD123456789", ""} {
		form := minimalForm()
		form["entityId"] = id
		_, err := Build(BuildInput{Report: form})
		var buildErr *BuildError
		require.Error(t, err, "entity id %q", id)
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, "entityId", buildErr.Field)
	}
}

func TestBuildValidationOrder(t *testing.T) {
	// Fail fast on the first violation, in the documented order.
	cases := []struct {
		name   string
		mutate func(FormValues)
		field  string
	}{
		{"missing incident number", func(f FormValues) { delete(f, "incidentNumber") }, "incidentNumber"},
		{"missing primary type", func(f FormValues) { delete(f, "primaryIncidentType") }, "primaryIncidentType"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := minimalForm()
			tc.mutate(form)
			_, err := Build(BuildInput{Report: form})
			var buildErr *BuildError
			require.ErrorAs(t, err, &buildErr)
			assert.Equal(t, tc.field, buildErr.Field)
		})
	}
}

func TestBuildForcesDepartmentForFDEntities(t *testing.T) {
	form := minimalForm()
	form["departmentId"] = "FD99999999"
	built := buildOK(t, form)
	// An FD entity cannot submit under a different department.
	assert.Equal(t, "FD24001234", built.Payload.Base.DepartmentID)
}

func TestBuildResolvesDepartmentForNonFDEntities(t *testing.T) {
	form := minimalForm()
	form["entityId"] = "VN24005678"
	form["departmentId"] = "FD11112222"
	built := buildOK(t, form)
	assert.Equal(t, "FD11112222", built.Payload.Base.DepartmentID)

	delete(form, "departmentId")
	_, err := Build(BuildInput{Report: form})
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "departmentId", buildErr.Field)
}

func TestBuildIncidentNumberFallbacks(t *testing.T) {
	form := minimalForm()
	delete(form, "incidentNumber")
	form["callNumber"] = "CALL-7"
	built := buildOK(t, form)
	assert.Equal(t, "CALL-7", built.Payload.Base.IncidentNumber)
	assert.Equal(t, "CALL-7", built.Payload.Dispatch.IncidentNumber)

	form["dispatchIncidentNumber"] = "D-9"
	built = buildOK(t, form)
	assert.Equal(t, "D-9", built.Payload.Dispatch.IncidentNumber)
	assert.Equal(t, "CALL-7", built.Payload.Base.IncidentNumber)
}

func TestBuildTimestampChain(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("minimal input fills the whole chain", func(t *testing.T) {
		built, err := Build(BuildInput{Report: minimalForm(), Now: now})
		require.NoError(t, err)
		d := built.Payload.Dispatch
		assert.Nil(t, d.Onset)
		assert.True(t, d.CallCreate.Equal(now))
		assert.True(t, d.CallAnswered.Equal(now))
		assert.True(t, d.CallArrival.Equal(now))
	})

	t.Run("explicit values override their defaults", func(t *testing.T) {
		form := minimalForm()
		form["incidentDate"] = "2024-03-05"
		form["incidentTime"] = "10:00"
		form["callAnsweredTime"] = "2024-03-05T10:02:00Z"
		built, err := Build(BuildInput{Report: form, Now: now})
		require.NoError(t, err)
		d := built.Payload.Dispatch
		onset := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
		answered := time.Date(2024, 3, 5, 10, 2, 0, 0, time.UTC)
		require.NotNil(t, d.Onset)
		assert.True(t, d.Onset.Equal(onset))
		assert.True(t, d.CallCreate.Equal(onset), "call-create defaults to onset")
		assert.True(t, d.CallAnswered.Equal(answered))
		assert.True(t, d.CallArrival.Equal(answered), "call-arrival defaults to call-answered")
	})
}

func TestBuildIncidentTypesCapAndDedup(t *testing.T) {
	form := minimalForm()
	form["additionalIncidentTypes"] = "FIRE:STRUCTURE, FIRE:WILDLAND, MEDICAL:ASSIST, RESCUE:WATER"
	built := buildOK(t, form)
	types := built.Payload.IncidentTypes
	require.Len(t, types, 3, "one primary plus at most two extras")
	assert.True(t, types[0].Primary)
	assert.Equal(t, "FIRE||STRUCTURE", types[0].Value)
	assert.Equal(t, "FIRE||WILDLAND", types[1].Value)
	assert.False(t, types[1].Primary)
	assert.Equal(t, "MEDICAL||ASSIST", types[2].Value)
}

func TestBuildActionsTacticsUnion(t *testing.T) {
	form := minimalForm()
	built := buildOK(t, form)
	assert.Nil(t, built.Payload.ActionsTactics, "omitted when neither variant is present")

	form["noActionReason"] = "CANCELED:PRIOR"
	built = buildOK(t, form)
	require.NotNil(t, built.Payload.ActionsTactics)
	assert.Equal(t, ActionsTypeNoAction, built.Payload.ActionsTactics.Type)
	assert.Equal(t, "CANCELED||PRIOR", built.Payload.ActionsTactics.NoActionType)

	form["actionsTaken"] = "SUPPRESSION:ATTACK, VENTILATION"
	built = buildOK(t, form)
	require.NotNil(t, built.Payload.ActionsTactics)
	assert.Equal(t, ActionsTypeAction, built.Payload.ActionsTactics.Type, "actions take precedence over no-action")
	assert.Equal(t, []string{"SUPPRESSION||ATTACK", "VENTILATION"}, built.Payload.ActionsTactics.Actions)
	assert.Empty(t, built.Payload.ActionsTactics.NoActionType)
}

func TestBuildAids(t *testing.T) {
	form := minimalForm()
	form["aidDepartmentId"] = "FD55556666"
	form["aidType"] = "AUTOMATIC"
	form["aidDirection"] = "GIVEN"
	form["additionalAidsJson"] = `[
		{"departmentId":"FD55556666","aidType":"AUTOMATIC","direction":"GIVEN"},
		{"departmentId":"FD77778888","aidType":"MUTUAL","direction":"RECEIVED"},
		{"departmentId":"bogus","aidType":"MUTUAL","direction":"RECEIVED"}
	]`
	built := buildOK(t, form)
	require.Len(t, built.Payload.Aids, 2, "duplicates and invalid departments are dropped")
	assert.Equal(t, "FD55556666", built.Payload.Aids[0].DepartmentID)
	assert.Equal(t, "FD77778888", built.Payload.Aids[1].DepartmentID)
}

func TestBuildAidsRequireAllThreeFields(t *testing.T) {
	form := minimalForm()
	form["aidDepartmentId"] = "FD55556666"
	form["aidType"] = "AUTOMATIC"
	built := buildOK(t, form)
	assert.Empty(t, built.Payload.Aids, "missing direction must drop the entry")
}

func TestBuildNonFDAidsOnlyForNonFDAgencyType(t *testing.T) {
	form := minimalForm()
	form["nonFdAidTypes"] = "LAW_ENFORCEMENT, EMS"
	built := buildOK(t, form)
	assert.Empty(t, built.Payload.NonFDAids)

	form["aidAgencyType"] = "NON_FD_AID"
	built = buildOK(t, form)
	assert.Equal(t, []string{"LAW_ENFORCEMENT", "EMS"}, built.Payload.NonFDAids)
}

func TestBuildHazsitDetail(t *testing.T) {
	form := minimalForm()
	form["primaryIncidentType"] = "HAZSIT:SPILL"
	form["hazsitDisposition"] = "MITIGATED"
	built := buildOK(t, form)
	assert.Nil(t, built.Payload.HazsitDetail, "requires both disposition and evacuated count")

	form["evacuatedCount"] = "12"
	built = buildOK(t, form)
	require.NotNil(t, built.Payload.HazsitDetail)
	assert.Equal(t, 12, built.Payload.HazsitDetail.EvacuatedCount)
	assert.Nil(t, built.Payload.HazsitDetail.Chemical)

	form["chemicalName"] = "Chlorine"
	form["chemicalClassification"] = "TOXIC:GAS"
	built = buildOK(t, form)
	require.NotNil(t, built.Payload.HazsitDetail.Chemical)
	assert.Equal(t, "TOXIC||GAS", built.Payload.HazsitDetail.Chemical.Classification)
}

func TestBuildHazsitOnlyForHazsitFamily(t *testing.T) {
	form := minimalForm()
	form["hazsitDisposition"] = "MITIGATED"
	form["evacuatedCount"] = "3"
	built := buildOK(t, form)
	assert.Nil(t, built.Payload.HazsitDetail)
}

func TestBuildEmergingHazards(t *testing.T) {
	form := minimalForm()
	form["electricHazardsJson"] = `[
		{"hazardType":"BATTERY:LITHIUM","suppressionMethods":"WATER, FOAM","pvSource":"ROOFTOP"},
		{"hazardType":""}
	]`
	built := buildOK(t, form)
	require.Len(t, built.Payload.ElectricHazards, 1, "items without a hazard type are dropped")
	h := built.Payload.ElectricHazards[0]
	assert.Equal(t, "BATTERY||LITHIUM", h.HazardType)
	assert.Equal(t, []string{"WATER", "FOAM"}, h.SuppressionMethods)
	assert.Equal(t, "ROOFTOP", h.PVSource)
}

func TestBuildMedicalDetailReplication(t *testing.T) {
	form := minimalForm()
	form["primaryIncidentType"] = "MEDICAL:CARDIAC"
	built := buildOK(t, form)
	assert.Empty(t, built.Payload.MedicalDetails, "requires at least one medical field")

	form["medicalEvaluation"] = "TREATED"
	form["patientCount"] = "3"
	built = buildOK(t, form)
	// One identical record per patient; per-patient differentiation is not
	// modeled.
	require.Len(t, built.Payload.MedicalDetails, 3)
	for _, d := range built.Payload.MedicalDetails {
		assert.Equal(t, "TREATED", d.Evaluation)
	}
}

func TestBuildLocationsShareForcedStateAndCountry(t *testing.T) {
	form := minimalForm()
	form["address"] = "123 Main St, Springfield, Illinois"
	form["dispatchAddress"] = "456 Oak Ave, Shelbyville"
	built := buildOK(t, form)
	base := built.Payload.Base.Location
	dispatch := built.Payload.Dispatch.Location
	assert.Equal(t, "123 Main St", base.Street)
	assert.Equal(t, "Springfield", base.IncorporatedMunicipality)
	assert.Equal(t, "456 Oak Ave", dispatch.Street)
	assert.Equal(t, "Shelbyville", dispatch.IncorporatedMunicipality)
	assert.Equal(t, "IL", base.State)
	assert.Equal(t, "IL", dispatch.State, "state is forced to one value for both locations")
	assert.Equal(t, "US", base.Country)
	assert.Equal(t, "US", dispatch.Country)
}

func TestBuildLocationFallsBackToSnapshot(t *testing.T) {
	form := minimalForm()
	snap := IncidentSnapshot{
		Address:    "9 Hill Rd, Plainfield, VT",
		PostalCode: "05667",
		County:     "Washington",
	}
	built, err := Build(BuildInput{Report: form, Snapshot: snap, Defaults: Defaults{State: "NY", Country: "US"}})
	require.NoError(t, err)
	loc := built.Payload.Base.Location
	assert.Equal(t, "9 Hill Rd", loc.Street)
	assert.Equal(t, "Plainfield", loc.IncorporatedMunicipality)
	assert.Equal(t, "VT", loc.State)
	assert.Equal(t, "05667", loc.PostalCode)
	assert.Equal(t, "Washington", loc.County)
}
