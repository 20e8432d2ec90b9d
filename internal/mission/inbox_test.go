package mission

import (
	"testing"

	"protectbox/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestFilterPredicates(t *testing.T) {
	statuses := []model.MissionStatus{
		model.MissionStatusPending,
		model.MissionStatusAssigned,
		model.MissionStatusActive,
		model.MissionStatusFinalized,
		model.MissionStatusCancelled,
		model.MissionStatusReturned,
	}
	want := map[Filter][]model.MissionStatus{
		FilterPending:   {model.MissionStatusActive},
		FilterWork:      {model.MissionStatusAssigned, model.MissionStatusActive},
		FilterCancelled: {model.MissionStatusCancelled},
		FilterReturned:  {model.MissionStatusReturned},
	}
	for f, in := range want {
		for _, s := range statuses {
			assert.Equal(t, contains(in, s), f.Matches(s), "%s/%s", f, s)
		}
	}
}

// ACTIVA shows up in both PENDING and WORK. The overlap is kept as observed.
func TestActiveStatusAppearsInPendingAndWork(t *testing.T) {
	assert.True(t, FilterPending.Matches(model.MissionStatusActive))
	assert.True(t, FilterWork.Matches(model.MissionStatusActive))

	missions := []model.Mission{
		testMission(model.MissionStatusActive),
		testMission(model.MissionStatusAssigned),
		testMission(model.MissionStatusPending),
	}
	assert.Len(t, Select(missions, FilterPending), 1)
	assert.Len(t, Select(missions, FilterWork), 2)
}

func TestActionsForView(t *testing.T) {
	tests := []struct {
		filter Filter
		role   model.Role
		want   []Transition
	}{
		{FilterPending, model.RoleRegionalLead, []Transition{Accept, Reject, Assign, Cancel}},
		{FilterPending, model.RoleNationalLead, []Transition{Accept, Reject, Cancel}},
		{FilterPending, model.RoleOfficial, []Transition{}},
		{FilterWork, model.RoleRegionalLead, []Transition{Return, Cancel, RequestExtension, Finalize}},
		{FilterWork, model.RoleOfficial, []Transition{Finalize, StartInterview, StartRiskAssessment}},
		{FilterWork, model.RoleNationalLead, []Transition{Cancel}},
		{FilterCancelled, model.RoleNationalLead, []Transition{Reactivate}},
		{FilterCancelled, model.RoleOfficial, []Transition{}},
		{FilterReturned, model.RoleNationalLead, []Transition{ReassignAfterReturn, Reactivate, Cancel}},
		{FilterReturned, model.RoleRegionalLead, []Transition{Reactivate, Cancel}},
		{FilterReturned, model.RoleFiscal, []Transition{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter)+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, ActionsFor(tt.filter, tt.role))
		})
	}
}

func TestParseFilter(t *testing.T) {
	f, ok := ParseFilter(" work ")
	assert.True(t, ok)
	assert.Equal(t, FilterWork, f)

	_, ok = ParseFilter("ALL")
	assert.False(t, ok)
}

func contains(list []model.MissionStatus, s model.MissionStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
