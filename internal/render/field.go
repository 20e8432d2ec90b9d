package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"protectbox/internal/forms"
	"protectbox/internal/refdata"
)

var fieldTmpl = template.Must(template.ParseFS(templateFS, "templates/field.tmpl"))

// FieldKind is the control a field renders as
type FieldKind string

const (
	KindInput    FieldKind = "input"
	KindSelect   FieldKind = "select"
	KindTextarea FieldKind = "textarea"
	KindFile     FieldKind = "file"
)

// Field is one labelled form control. A non-empty Error is shown below the
// control; Disabled and ReadOnly mute it.
type Field struct {
	Kind      FieldKind
	Name      string
	Label     string
	Value     string
	InputType string
	Accept    string
	Options   []refdata.Option
	Error     string
	Disabled  bool
	ReadOnly  bool
}

// HTML renders the field
func (f Field) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := fieldTmpl.ExecuteTemplate(&buf, "field", f); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Form is an ordered list of fields under a title
type Form struct {
	Title    string
	Fields   []Field
	ReadOnly bool
}

// HTML renders the whole form
func (f Form) HTML() (string, error) {
	var buf bytes.Buffer
	if err := fieldTmpl.ExecuteTemplate(&buf, "form", f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WithErrors attaches validation messages to the fields they name
func (f Form) WithErrors(errs map[string]string) Form {
	out := f
	out.Fields = make([]Field, len(f.Fields))
	for i, fl := range f.Fields {
		if msg, ok := errs[fl.Name]; ok {
			fl.Error = msg
		}
		out.Fields[i] = fl
	}
	return out
}

func readOnly(fields []Field) []Field {
	for i := range fields {
		fields[i].ReadOnly = true
	}
	return fields
}

func text(name, label, value string) Field {
	return Field{Kind: KindInput, Name: name, Label: label, Value: clean(value)}
}

func area(name, label, value string) Field {
	return Field{Kind: KindTextarea, Name: name, Label: label, Value: clean(value)}
}

func choice(name, label, value string, options []refdata.Option) Field {
	return Field{Kind: KindSelect, Name: name, Label: label, Value: value, Options: options}
}

func optionList() []refdata.Option {
	out := make([]refdata.Option, len(forms.Options))
	for i, o := range forms.Options {
		out[i] = refdata.Option{Code: string(o), Label: strings.ReplaceAll(string(o), "_", " ")}
	}
	return out
}

// InterviewForm lays out an interview as fields. With audit set every
// control is read-only.
func InterviewForm(f forms.InterviewForm, audit bool) Form {
	fields := []Field{
		text("missionNumber", "Número de misión", f.MissionNumber),
		text("caseRadicado", "Radicado", f.CaseRadicado),
		text("candidate.firstName", "Primer nombre", f.Candidate.FirstName),
		text("candidate.secondName", "Segundo nombre", f.Candidate.SecondName),
		text("candidate.firstSurname", "Primer apellido", f.Candidate.FirstSurname),
		text("candidate.secondSurname", "Segundo apellido", f.Candidate.SecondSurname),
		choice("candidate.documentType", "Tipo de documento", f.Candidate.DocumentType, refdata.DocumentTypes),
		text("candidate.documentNumber", "Número de documento", f.Candidate.DocumentNumber),
		text("address", "Dirección", f.Address),
		text("municipality", "Municipio", f.Municipality),
		text("phone", "Teléfono", f.Phone),
	}
	for i, r := range f.Family {
		age := ""
		if r.Age != nil {
			age = fmt.Sprintf(" (%d años)", *r.Age)
		}
		fields = append(fields, text(fmt.Sprintf("family.%d", i), "Familiar"+age, r.FullName()))
	}
	for i, p := range f.Pets {
		fields = append(fields, text(fmt.Sprintf("pets.%d", i), "Mascota", strings.TrimSpace(p.Species+" "+p.Name)))
	}
	fields = append(fields,
		area("narrative.facts", "Hechos", f.Narrative.Facts),
		area("narrative.threatHistory", "Antecedentes de amenaza", f.Narrative.ThreatHistory),
		area("narrative.currentSituation", "Situación actual", f.Narrative.CurrentSituation),
		area("narrative.requests", "Solicitudes", f.Narrative.Requests),
	)
	if audit {
		fields = readOnly(fields)
	}
	return Form{Title: "Entrevista " + f.MissionNumber, Fields: fields, ReadOnly: audit}
}

// ITVRForm lays out a risk assessment as fields, one select per factor
func ITVRForm(f forms.ITVRForm, audit bool) Form {
	fields := []Field{
		text("missionNumber", "Número de misión", f.MissionNumber),
		text("caseRadicado", "Radicado", f.CaseRadicado),
		text("candidate", "Candidato", f.Candidate.FullName()),
	}
	opts := optionList()
	for _, fc := range forms.Catalog {
		fields = append(fields, choice("answers."+fc.ID, fc.Section.Label()+": "+fc.Label, string(f.Answers[fc.ID].Option), opts))
	}
	fields = append(fields, area("narrative", "Relato", f.Narrative))
	if f.Summary != "" {
		s := area("summary", "Análisis de riesgo", f.Summary)
		s.Disabled = true
		fields = append(fields, s)
	}
	if audit {
		fields = readOnly(fields)
	}
	return Form{Title: "ITVR " + f.MissionNumber, Fields: fields, ReadOnly: audit}
}

// AttachmentField is the file control for a case's attachments
func AttachmentField(allowedExtensions []string) Field {
	exts := make([]string, len(allowedExtensions))
	for i, e := range allowedExtensions {
		exts[i] = "." + e
	}
	return Field{Kind: KindFile, Name: "files", Label: "Anexos", Accept: strings.Join(exts, ",")}
}
