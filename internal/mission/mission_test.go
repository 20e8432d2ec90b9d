package mission

import (
	"errors"
	"strings"
	"testing"
	"time"

	"protectbox/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now      = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	national = model.Actor{ID: "nat-001", Role: model.RoleNationalLead}
	regional = model.Actor{ID: "lead-001", Role: model.RoleRegionalLead, Regional: "Centro Sur"}
	official = model.Actor{ID: "off-001", Name: "A. Ruiz", Role: model.RoleOfficial}
	fiscal   = model.Actor{ID: "fis-001", Role: model.RoleFiscal}
)

func testMission(status model.MissionStatus) model.Mission {
	return model.Mission{
		ID:           "m1",
		Number:       "MIS-2025-00001",
		Status:       status,
		DueDate:      now.AddDate(0, 0, 10),
		Observations: "Initial observation",
		Log:          []model.ObservationEntry{},
	}
}

func TestAssignPendingMission(t *testing.T) {
	m := testMission(model.MissionStatusPending)
	assert.Empty(t, m.AssignedOfficial)

	next, res := Apply(m, Command{Transition: Assign, Actor: regional, Official: "A. Ruiz", Regional: "Centro Sur"}, now)
	require.True(t, res.Allowed, res.Reason)
	assert.Equal(t, model.MissionStatusAssigned, next.Status)
	assert.Equal(t, "off-001", next.AssignedOfficial, "stored by roster id")
	assert.Equal(t, "Centro Sur", next.Regional)

	// original untouched
	assert.Equal(t, model.MissionStatusPending, m.Status)
	assert.Empty(t, m.AssignedOfficial)
}

func TestAssignRequiresOfficialAndRegional(t *testing.T) {
	m := testMission(model.MissionStatusPending)

	next, res := Apply(m, Command{Transition: Assign, Actor: regional, Regional: "Centro Sur"}, now)
	assert.False(t, res.Allowed)
	assert.Equal(t, m, next)

	_, res = Apply(m, Command{Transition: Assign, Actor: regional, Official: "A. Ruiz", Regional: "Atlantis"}, now)
	assert.False(t, res.Allowed)

	_, res = Apply(testMission(model.MissionStatusFinalized), Command{Transition: Assign, Actor: regional, Official: "A. Ruiz", Regional: "Centro Sur"}, now)
	assert.False(t, res.Allowed)
	_, res = Apply(m, Command{Transition: Assign, Actor: regional, Official: "off-typo", Regional: "Centro Sur"}, now)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "unknown official")

	_, res = Apply(m, Command{Transition: Assign, Actor: regional, Official: "off-003", Regional: "Centro Sur"}, now)
	assert.False(t, res.Allowed, "off-003 works in Pacífico")

	_, res = Apply(m, Command{Transition: Assign, Actor: regional, Official: "lead-001", Regional: "Centro Sur"}, now)
	assert.False(t, res.Allowed, "leads are not assignable")

	next, res = Apply(m, Command{Transition: Assign, Actor: regional, Official: "off-001", Regional: "centro sur"}, now)
	require.True(t, res.Allowed, res.Reason)
	assert.Equal(t, "Centro Sur", next.Regional)
}

func TestCapabilityTable(t *testing.T) {
	tests := []struct {
		name    string
		role    model.Role
		t       Transition
		allowed bool
	}{
		{"regional lead assigns", model.RoleRegionalLead, Assign, true},
		{"national lead cannot assign", model.RoleNationalLead, Assign, false},
		{"national lead reassigns regional", model.RoleNationalLead, ReassignRegional, true},
		{"official cannot cancel", model.RoleOfficial, Cancel, false},
		{"fiscal cannot cancel", model.RoleFiscal, Cancel, false},
		{"national lead cancels", model.RoleNationalLead, Cancel, true},
		{"regional lead cancels", model.RoleRegionalLead, Cancel, true},
		{"only regional lead extends", model.RoleNationalLead, RequestExtension, false},
		{"official starts interview", model.RoleOfficial, StartInterview, true},
		{"lead cannot start assessment", model.RoleRegionalLead, StartRiskAssessment, false},
		{"case opener has no mission powers", model.RoleCaseOpener, Accept, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, Can(tt.role, tt.t))
		})
	}
}

func TestOfficialCannotCancel(t *testing.T) {
	m := testMission(model.MissionStatusAssigned)
	next, res := Apply(m, Command{Transition: Cancel, Actor: official, Reason: "no longer needed"}, now)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "may not")
	assert.Equal(t, m, next)
	assert.True(t, errors.Is(res.Err(), ErrGuard))
}

func TestReasonRequiredTransitions(t *testing.T) {
	tests := []struct {
		name   string
		status model.MissionStatus
		cmd    Command
	}{
		{"cancel", model.MissionStatusAssigned, Command{Transition: Cancel, Actor: regional}},
		{"return", model.MissionStatusAssigned, Command{Transition: Return, Actor: regional}},
		{"reactivate", model.MissionStatusCancelled, Command{Transition: Reactivate, Actor: national}},
		{"reassign after return", model.MissionStatusReturned, Command{Transition: ReassignAfterReturn, Actor: national, Regional: "Pacífico"}},
	}
	for _, tt := range tests {
		t.Run(tt.name+" rejects empty reason", func(t *testing.T) {
			m := testMission(tt.status)
			cmd := tt.cmd
			cmd.Reason = "   "
			next, res := Apply(m, cmd, now)
			assert.False(t, res.Allowed)
			assert.Equal(t, m, next)
		})
		t.Run(tt.name+" appends observation", func(t *testing.T) {
			m := testMission(tt.status)
			m.Observations = "Initial observation\n[PRÓRROGA APLICADA - 01/03/2025]: earlier"
			cmd := tt.cmd
			cmd.Reason = "justified"
			next, res := Apply(m, cmd, now)
			require.True(t, res.Allowed, res.Reason)
			assert.True(t, strings.HasPrefix(next.Observations, m.Observations))
			assert.True(t, strings.HasSuffix(next.Observations, " - 10/03/2025]: justified"))
			assert.Len(t, next.Log, 1)
		})
	}
}

func TestCancelTagDependsOnRole(t *testing.T) {
	m := testMission(model.MissionStatusActive)

	next, res := Apply(m, Command{Transition: Cancel, Actor: national, Reason: "duplicate"}, now)
	require.True(t, res.Allowed)
	assert.Equal(t, model.MissionStatusCancelled, next.Status)
	assert.Contains(t, next.Observations, "\n[ANULACIÓN POR LÍDER NACIONAL - 10/03/2025]: duplicate")

	next, res = Apply(m, Command{Transition: Cancel, Actor: regional, Reason: "duplicate"}, now)
	require.True(t, res.Allowed)
	assert.Equal(t, TagCancelRegional, next.Log[0].Tag)
	assert.Equal(t, "lead-001", next.Log[0].Actor)
}

func TestCancelRejectedFromTerminalStates(t *testing.T) {
	for _, s := range []model.MissionStatus{model.MissionStatusFinalized, model.MissionStatusCancelled} {
		_, res := Apply(testMission(s), Command{Transition: Cancel, Actor: national, Reason: "x"}, now)
		assert.False(t, res.Allowed, s)
	}
}

func TestReturnAndReassignAfterReturn(t *testing.T) {
	m := testMission(model.MissionStatusAssigned)
	m.AssignedOfficial = "A. Ruiz"
	m.Regional = "Centro Sur"

	returned, res := Apply(m, Command{Transition: Return, Actor: regional, Reason: "wrong regional"}, now)
	require.True(t, res.Allowed, res.Reason)
	assert.Equal(t, model.MissionStatusReturned, returned.Status)
	assert.Equal(t, "wrong regional", returned.ReturnReason)

	later := now.Add(48 * time.Hour)
	next, res := Apply(returned, Command{Transition: ReassignAfterReturn, Actor: national, Regional: "Pacífico", Reason: "follow up required"}, later)
	require.True(t, res.Allowed, res.Reason)
	assert.Equal(t, model.MissionStatusActive, next.Status)
	assert.Equal(t, "Pacífico", next.Regional)
	assert.Empty(t, next.ReturnReason)
	assert.Empty(t, next.AssignedOfficial)
	require.NotNil(t, next.ReassignmentDate)
	assert.Equal(t, later, *next.ReassignmentDate)
	assert.True(t, strings.HasPrefix(next.Observations, returned.Observations))
	assert.True(t, strings.HasSuffix(next.Observations, "\n[REASIGNACIÓN POST-DEVOLUCIÓN - 12/03/2025]: follow up required"))
	assert.Len(t, next.Log, 2)
}

func TestReassignRegionalFromPending(t *testing.T) {
	m := testMission(model.MissionStatusPending)

	next, res := Apply(m, Command{Transition: ReassignRegional, Actor: national, Regional: "Pacífico"}, now)
	require.True(t, res.Allowed)
	assert.Equal(t, model.MissionStatusActive, next.Status)
	assert.Equal(t, "Pacífico", next.Regional)
	assert.Empty(t, next.AssignedOfficial)

	_, res = Apply(next, Command{Transition: ReassignRegional, Actor: national, Regional: "Caribe"}, now)
	assert.False(t, res.Allowed)
}

func TestAcceptAndReject(t *testing.T) {
	m := testMission(model.MissionStatusActive)

	next, res := Apply(m, Command{Transition: Accept, Actor: regional}, now)
	require.True(t, res.Allowed)
	assert.Equal(t, model.MissionStatusActive, next.Status)

	_, res = Apply(testMission(model.MissionStatusPending), Command{Transition: Accept, Actor: regional}, now)
	assert.False(t, res.Allowed)

	next, res = Apply(m, Command{Transition: Reject, Actor: regional}, now)
	require.True(t, res.Allowed)
	assert.Equal(t, model.MissionStatusCancelled, next.Status)
	assert.Equal(t, m.Observations, next.Observations)

	next, res = Apply(m, Command{Transition: Reject, Actor: national, Reason: "out of scope"}, now)
	require.True(t, res.Allowed)
	assert.Contains(t, next.Observations, TagRejectNational)
}

func TestReactivate(t *testing.T) {
	m := testMission(model.MissionStatusReturned)
	m.ReturnReason = "missing data"

	next, res := Apply(m, Command{Transition: Reactivate, Actor: regional, Reason: "data received"}, now)
	require.True(t, res.Allowed)
	assert.Equal(t, model.MissionStatusActive, next.Status)
	assert.Empty(t, next.ReturnReason)
	assert.Contains(t, next.Observations, "[REACTIVACIÓN POR LÍDER REGIONAL - 10/03/2025]: data received")

	_, res = Apply(testMission(model.MissionStatusAssigned), Command{Transition: Reactivate, Actor: regional, Reason: "x"}, now)
	assert.False(t, res.Allowed)
}

func TestExtensionGrantedOnce(t *testing.T) {
	m := testMission(model.MissionStatusAssigned)
	m.DueDate = now.AddDate(0, 0, 2)
	cmd := Command{Transition: RequestExtension, Actor: regional, ExtensionReason: "ORDEN_PUBLICO"}

	next, res := Apply(m, cmd, now)
	require.True(t, res.Allowed, res.Reason)
	assert.Equal(t, m.DueDate.AddDate(0, 0, 15), next.DueDate)
	assert.True(t, next.ExtensionRequested)
	assert.Equal(t, "ORDEN_PUBLICO", next.ExtensionReason)
	assert.Equal(t, 1, strings.Count(next.Observations, "[PRÓRROGA APLICADA - 10/03/2025]: "))
	assert.True(t, strings.HasPrefix(next.Observations, m.Observations))

	// pull the due date back into the window: still only one extension
	next.DueDate = now.AddDate(0, 0, 1)
	again, res := Apply(next, cmd, now)
	assert.False(t, res.Allowed)
	assert.Equal(t, next, again)
}

func TestExtensionAddsFifteenDaysRegardlessOfRemaining(t *testing.T) {
	for _, days := range []int{0, 1, 2, 3} {
		m := testMission(model.MissionStatusActive)
		m.DueDate = time.Date(2025, 3, 10+days, 23, 59, 0, 0, time.UTC)
		next, res := Apply(m, Command{Transition: RequestExtension, Actor: regional, ExtensionReason: "DIFICIL_ACCESO"}, now)
		require.True(t, res.Allowed, res.Reason)
		assert.Equal(t, m.DueDate.AddDate(0, 0, 15), next.DueDate)
	}
}

func TestExtensionRejectsUnknownReason(t *testing.T) {
	m := testMission(model.MissionStatusAssigned)
	m.DueDate = now.AddDate(0, 0, 1)
	_, res := Apply(m, Command{Transition: RequestExtension, Actor: regional, ExtensionReason: "CAPRICHO"}, now)
	assert.False(t, res.Allowed)
}

func TestExtensionOutsideWindow(t *testing.T) {
	m := testMission(model.MissionStatusAssigned)
	m.DueDate = now.AddDate(0, 0, 4)
	_, res := Apply(m, Command{Transition: RequestExtension, Actor: regional, ExtensionReason: "ORDEN_PUBLICO"}, now)
	assert.False(t, res.Allowed)
}

func TestStartFormsGate(t *testing.T) {
	for _, tr := range []Transition{StartInterview, StartRiskAssessment} {
		for _, s := range []model.MissionStatus{model.MissionStatusAssigned, model.MissionStatusActive} {
			m := testMission(s)
			m.AssignedOfficial = official.ID
			next, res := Apply(m, Command{Transition: tr, Actor: official}, now)
			assert.True(t, res.Allowed, res.Reason)
			assert.Equal(t, s, next.Status)
		}
		pending := testMission(model.MissionStatusPending)
		pending.AssignedOfficial = official.ID
		_, res := Apply(pending, Command{Transition: tr, Actor: official}, now)
		assert.False(t, res.Allowed)
		_, res = Apply(testMission(model.MissionStatusAssigned), Command{Transition: tr, Actor: fiscal}, now)
		assert.False(t, res.Allowed)

		other := testMission(model.MissionStatusAssigned)
		other.AssignedOfficial = "off-002"
		_, res = Apply(other, Command{Transition: tr, Actor: official}, now)
		assert.False(t, res.Allowed, "another official's mission")

		unassigned := testMission(model.MissionStatusActive)
		_, res = Apply(unassigned, Command{Transition: tr, Actor: official}, now)
		assert.False(t, res.Allowed, "active but not yet assigned")
	}
}

func TestFinalize(t *testing.T) {
	m := testMission(model.MissionStatusAssigned)
	m.AssignedOfficial = "off-002"
	_, res := Apply(m, Command{Transition: Finalize, Actor: official}, now)
	assert.False(t, res.Allowed)

	m.AssignedOfficial = official.ID
	next, res := Apply(m, Command{Transition: Finalize, Actor: official}, now)
	require.True(t, res.Allowed)
	assert.Equal(t, model.MissionStatusFinalized, next.Status)

	_, res = Apply(next, Command{Transition: Cancel, Actor: national, Reason: "late"}, now)
	assert.False(t, res.Allowed)
}

func TestUnknownTransition(t *testing.T) {
	_, res := Apply(testMission(model.MissionStatusActive), Command{Transition: "teleport", Actor: national}, now)
	assert.False(t, res.Allowed)

	_, ok := ParseTransition("teleport")
	assert.False(t, ok)
	tr, ok := ParseTransition("request_extension")
	assert.True(t, ok)
	assert.Equal(t, RequestExtension, tr)
}

func TestApplyDoesNotAliasLog(t *testing.T) {
	m := testMission(model.MissionStatusActive)
	m.Log = make([]model.ObservationEntry, 0, 4)

	a, _ := Apply(m, Command{Transition: Cancel, Actor: national, Reason: "a"}, now)
	b, _ := Apply(m, Command{Transition: Cancel, Actor: regional, Reason: "b"}, now)
	assert.Equal(t, "a", a.Log[0].Reason)
	assert.Equal(t, "b", b.Log[0].Reason)
}

func TestNewMissionFromCase(t *testing.T) {
	due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	c := model.ProtectionCase{
		ID:           "c1",
		Radicado:     "RAD-2025-000001",
		MissionType:  "EVR",
		Area:         "PROTECCION",
		DueDate:      &due,
		Requester:    model.Identity{PersonName: model.PersonName{FirstName: "Ana", FirstSurname: "Díaz"}, DocumentType: "CC", DocumentNumber: "123"},
		Observations: "urgent",
	}
	m := New("m1", FormatNumber(2025, 7), c, now)
	assert.Equal(t, "MIS-2025-00007", m.Number)
	assert.Equal(t, model.MissionStatusPending, m.Status)
	assert.Empty(t, m.AssignedOfficial)
	assert.Equal(t, due, m.DueDate)
	assert.Equal(t, "123", m.Petitioner.DocumentNumber)

	c.MissionType = "VRF"
	other := due.AddDate(0, 0, 5)
	c.DueDate = &other
	synced := SyncFromCase(m, c, false)
	assert.Equal(t, "VRF", synced.MissionType)
	assert.Equal(t, due, synced.DueDate)
	synced = SyncFromCase(m, c, true)
	assert.Equal(t, other, synced.DueDate)
}
