package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"protectbox/internal/forms"
	"protectbox/internal/mission"
	"protectbox/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormService_StartGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, pending := f.openCase(t, "52000111")

	_, err := f.forms.StartInterview(ctx, official, pending.ID)
	assert.True(t, errors.Is(err, mission.ErrGuard), "mission not assigned yet")

	m := f.assignedMission(t, "1010202030")
	_, err = f.forms.StartITVR(ctx, regional, m.ID)
	assert.True(t, errors.Is(err, mission.ErrGuard), "only officials start forms")

	itvr, err := f.forms.StartITVR(ctx, official, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Number, itvr.MissionNumber)
	assert.Equal(t, "Ana", itvr.Candidate.FirstName)
	assert.Equal(t, []string{"mission:" + m.ID}, f.bus.channels("form.itvr_started"))
}

func TestFormService_InterviewPrefillAndSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.openCase(t, "52000111")

	birth := time.Date(2015, time.March, 11, 0, 0, 0, 0, time.UTC)
	child := FamilyMemberInput{Identity: applicant("1122334455"), Relationship: "HIJO", BirthDate: &birth}
	_, err := f.cases.AddFamilyMember(ctx, c.ID, child)
	require.NoError(t, err)

	m, err := f.missions.Dispatch(ctx, regional, c.MissionID, mission.Assign, DispatchInput{Official: "off-001", Regional: "Centro Sur"})
	require.NoError(t, err)

	iv, err := f.forms.StartInterview(ctx, official, m.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Radicado, iv.CaseRadicado)
	require.Len(t, iv.Family, 1)
	require.NotNil(t, iv.Family[0].Age)
	assert.Equal(t, 9, *iv.Family[0].Age)

	edit := *iv
	edit.MissionNumber = "MIS-1999-99999"
	edit.Narrative.Facts = "Recibió amenazas por mensaje de texto."
	edit.Pets = nil
	saved, err := f.forms.SaveInterview(ctx, official, iv.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, m.Number, saved.MissionNumber, "keys are not client editable")
	assert.NotNil(t, saved.Pets)

	got, err := f.forms.GetInterview(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Recibió amenazas por mensaje de texto.", got.Narrative.Facts)

	bad := *got
	bad.Phone = "llámeme"
	_, err = f.forms.SaveInterview(ctx, official, iv.ID, bad)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "phone")

	bad = *got
	bad.Family[0].Relationship = "VECINO"
	_, err = f.forms.SaveInterview(ctx, official, iv.ID, bad)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "family.0.relationship")
}

func TestFormService_SaveITVRScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.assignedMission(t, "52000111")
	itvr, err := f.forms.StartITVR(ctx, official, m.ID)
	require.NoError(t, err)

	in := *itvr
	in.Answers = map[string]forms.Answer{
		"T01": {Option: forms.OptionHigh, Weight: decimal.NewFromInt(99)},
		"R01": {Option: forms.OptionMedium},
	}
	saved, sc, err := f.forms.SaveITVR(ctx, official, itvr.ID, in)
	require.NoError(t, err)
	assert.True(t, saved.Answers["T01"].Weight.Equal(decimal.NewFromInt(8)), "weights come from the catalog")
	assert.Equal(t, "12.62", sc.Total.StringFixed(2))
	assert.Equal(t, forms.TierMinimal, sc.Tier)

	all := map[string]forms.Answer{}
	for _, fc := range forms.Catalog {
		all[fc.ID] = forms.Answer{Option: forms.OptionHigh}
	}
	in.Answers = all
	_, sc, err = f.forms.SaveITVR(ctx, official, itvr.ID, in)
	require.NoError(t, err)
	assert.True(t, sc.Total.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, forms.TierExtreme, sc.Tier)

	in.Answers = map[string]forms.Answer{"V99": {Option: forms.OptionLow}}
	_, _, err = f.forms.SaveITVR(ctx, official, itvr.ID, in)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "answers")

	in.Answers = map[string]forms.Answer{"T01": {Option: "MUCHO"}}
	_, _, err = f.forms.SaveITVR(ctx, official, itvr.ID, in)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "answers.T01.option")

	// the last valid save is what is stored
	_, sc, err = f.forms.Score(ctx, itvr.ID)
	require.NoError(t, err)
	assert.Equal(t, forms.TierExtreme, sc.Tier)
}

func TestFormService_Summarize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.assignedMission(t, "52000111")
	itvr, err := f.forms.StartITVR(ctx, official, m.ID)
	require.NoError(t, err)

	in := *itvr
	in.Narrative = "El candidato reporta seguimientos frecuentes."
	in.Answers = map[string]forms.Answer{"T01": {Option: forms.OptionHigh}}
	_, _, err = f.forms.SaveITVR(ctx, official, itvr.ID, in)
	require.NoError(t, err)

	out, err := f.forms.Summarize(ctx, itvr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riesgo extraordinario.", out.Summary)

	require.Len(t, f.ai.inputs, 1)
	facts := f.ai.inputs[0].Facts
	assert.Equal(t, m.Number, facts.MissionNumber)
	assert.Equal(t, "Centro Sur", facts.Regional)
	assert.Equal(t, "EVR", facts.MissionType)
	assert.Equal(t, "8.00", facts.Total)
	assert.Equal(t, "El candidato reporta seguimientos frecuentes.", f.ai.inputs[0].Narrative)

	// a later save keeps the stored summary
	in.Summary = ""
	saved, _, err := f.forms.SaveITVR(ctx, official, itvr.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Riesgo extraordinario.", saved.Summary)

	doc, err := f.forms.Document(ctx, itvr.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Sections)
}

func TestFormService_AuditView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.assignedMission(t, "52000111")
	itvr, err := f.forms.StartITVR(ctx, official, m.ID)
	require.NoError(t, err)

	view, err := f.forms.ITVRView(ctx, itvr.ID, true)
	require.NoError(t, err)
	assert.True(t, view.ReadOnly)

	_, err = f.forms.InterviewView(ctx, "missing", false)
	assert.Error(t, err)
}

func TestFormService_SaveGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.assignedMission(t, "52000111")
	itvr, err := f.forms.StartITVR(ctx, official, m.ID)
	require.NoError(t, err)
	iv, err := f.forms.StartInterview(ctx, official, m.ID)
	require.NoError(t, err)

	in := *itvr
	in.Answers = map[string]forms.Answer{"T01": {Option: forms.OptionHigh}}

	_, _, err = f.forms.SaveITVR(ctx, fiscal, itvr.ID, in)
	assert.True(t, errors.Is(err, mission.ErrGuard), "fiscal cannot edit assessments")

	other := model.Actor{ID: "off-002", Role: model.RoleOfficial, Regional: "Antioquia"}
	_, _, err = f.forms.SaveITVR(ctx, other, itvr.ID, in)
	assert.True(t, errors.Is(err, mission.ErrGuard), "only the assigned official")
	_, err = f.forms.SaveInterview(ctx, other, iv.ID, *iv)
	assert.True(t, errors.Is(err, mission.ErrGuard))

	_, err = f.missions.Dispatch(ctx, regional, m.ID, mission.Cancel, DispatchInput{Reason: "duplicado"})
	require.NoError(t, err)

	_, _, err = f.forms.SaveITVR(ctx, official, itvr.ID, in)
	assert.True(t, errors.Is(err, mission.ErrGuard), "cancelled missions are closed for edits")
	_, err = f.forms.SaveInterview(ctx, official, iv.ID, *iv)
	assert.True(t, errors.Is(err, mission.ErrGuard))

	_, sc, err := f.forms.Score(ctx, itvr.ID)
	require.NoError(t, err)
	assert.True(t, sc.Total.IsZero(), "nothing was stored")
}
