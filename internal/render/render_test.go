package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"protectbox/internal/forms"
	"protectbox/internal/model"
	"protectbox/internal/refdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

func sampleMission() (model.Mission, model.ProtectionCase) {
	due := now.AddDate(0, 0, 10)
	c := model.ProtectionCase{
		ID:                      "c1",
		Radicado:                "RAD-2025-000001",
		DestinationRegional:     "Centro Sur",
		RemittingEntity:         "Fiscalía 12 Seccional",
		CandidateClassification: "TESTIGO",
		Subject:                 "Amenazas <script>alert(1)</script> contra testigo",
		Area:                    "PROTECCION",
		MissionType:             "EVR",
		DueDate:                 &due,
		Requester: model.Identity{
			PersonName:     model.PersonName{FirstName: "Ana", FirstSurname: "Díaz"},
			DocumentType:   "CC",
			DocumentNumber: "52000111",
		},
	}
	m := model.Mission{
		ID:               "m1",
		Number:           "MIS-2025-00001",
		CaseID:           "c1",
		CaseRadicado:     c.Radicado,
		MissionType:      "EVR",
		Petitioner:       c.Requester,
		Area:             "PROTECCION",
		Status:           model.MissionStatusReturned,
		DueDate:          due,
		CreatedAt:        now,
		AssignedOfficial: "off-001",
		Regional:         "Centro Sur",
		ReturnReason:     "Zona sin acceso",
		Observations:     "Initial observation\n[DEVOLUCIÓN A NIVEL CENTRAL - 12/03/2025]: Zona sin acceso",
	}
	return m, c
}

func TestMissionDocument(t *testing.T) {
	m, c := sampleMission()
	d := MissionDocument(m, c, now)

	out, err := d.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, "Orden de misión MIS-2025-00001")
	assert.Contains(t, out, "Evaluación de riesgo")
	assert.Contains(t, out, "A. Ruiz")
	assert.Contains(t, out, "Initial observation")
	assert.Contains(t, out, "[DEVOLUCIÓN A NIVEL CENTRAL - 12/03/2025]: Zona sin acceso")
	assert.NotContains(t, out, "<script>")

	txt := d.Text()
	assert.True(t, strings.HasPrefix(txt, "ORDEN DE MISIÓN MIS-2025-00001"))
	assert.Contains(t, txt, "Motivo de devolución: Zona sin acceso")
	assert.Contains(t, txt, "contra testigo")
	assert.NotContains(t, txt, "<script>")
}

func TestCaseDocument_FamilyAges(t *testing.T) {
	_, c := sampleMission()
	birth := now.AddDate(-10, 0, 1)
	c.FamilyMembers = []model.FamilyMember{
		{ID: "f1", Identity: model.Identity{PersonName: model.PersonName{FirstName: "Luis", FirstSurname: "Díaz"}}, Relationship: "HIJO", BirthDate: &birth, IsActive: true},
		{ID: "f2", Identity: model.Identity{PersonName: model.PersonName{FirstName: "Inés", FirstSurname: "Díaz"}}, Relationship: "MADRE", IsActive: false},
	}
	txt := CaseDocument(c, now).Text()
	assert.Contains(t, txt, "Luis Díaz: Hijo(a), 9 años")
	assert.NotContains(t, txt, "Inés")
}

func TestAssessmentDocument(t *testing.T) {
	m, _ := sampleMission()
	f := forms.NewITVR(m, "off-001", now)
	require.NoError(t, f.Select("T01", forms.OptionHigh, "amenaza directa"))
	f.Narrative = "Relato & detalles"
	sc, err := f.Score()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, AssessmentDocument(*f, sc, now), FormatHTML))
	out := buf.String()
	assert.Contains(t, out, "Amenaza")
	assert.Contains(t, out, "8.00")
	assert.Contains(t, out, "Relato &amp; detalles")
	assert.NotContains(t, out, "&amp;amp;")
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, FormatHTML, f)
	f, ok = ParseFormat("TEXT")
	assert.True(t, ok)
	assert.Equal(t, "text/plain; charset=utf-8", f.ContentType())
	_, ok = ParseFormat("pdf")
	assert.False(t, ok)
}

func TestField_ErrorAndReadOnly(t *testing.T) {
	f := Field{Kind: KindInput, Name: "nunc", Label: "NUNC", Error: "is required"}
	out, err := f.HTML()
	require.NoError(t, err)
	assert.Contains(t, string(out), `<small class="error">is required</small>`)
	assert.Contains(t, string(out), "field-error")

	f = Field{Kind: KindTextarea, Name: "obs", Label: "Obs", Value: "x", ReadOnly: true}
	out, err = f.HTML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "readonly")
	assert.Contains(t, string(out), "field-muted")

	f = Field{Kind: KindSelect, Name: "doc", Label: "Doc", Value: "CC", Disabled: true, Options: []refdata.Option{{Code: "CC", Label: "Cédula"}}}
	out, err = f.HTML()
	require.NoError(t, err)
	assert.Contains(t, string(out), `value="CC" selected`)
	assert.Contains(t, string(out), "disabled")
}

func TestInterviewForm_Audit(t *testing.T) {
	m, c := sampleMission()
	f := forms.NewInterview(m, c, "off-001", now)
	form := InterviewForm(*f, true)
	for _, fl := range form.Fields {
		assert.True(t, fl.ReadOnly, fl.Name)
	}
	out, err := form.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, `class="audit"`)

	form = InterviewForm(*f, false).WithErrors(map[string]string{"address": "is required"})
	out, err = form.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, "is required")
	assert.NotContains(t, out, "readonly")
}

func TestAttachmentField(t *testing.T) {
	out, err := AttachmentField([]string{"pdf", "png"}).HTML()
	require.NoError(t, err)
	assert.Contains(t, string(out), `accept=".pdf,.png"`)
}
