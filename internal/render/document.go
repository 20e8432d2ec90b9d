// Package render builds the printable documents for cases, missions and risk
// assessments and the form field primitives used by the audit views.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"
	"time"

	"protectbox/internal/forms"
	"protectbox/internal/mission"
	"protectbox/internal/model"
	"protectbox/internal/refdata"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	documentTmpl = template.Must(template.ParseFS(templateFS, "templates/document.tmpl"))
	sanitizer    = bluemonday.StrictPolicy()
)

// Format selects the document encoding
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// ParseFormat accepts html or text, defaulting to html when empty
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, true
	case "text", "txt":
		return FormatText, true
	}
	return "", false
}

// ContentType is the HTTP content type of a format
func (f Format) ContentType() string {
	if f == FormatText {
		return "text/plain; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// Row is a labelled value
type Row struct {
	Label string
	Value string
}

// Section is a titled block of rows and free text paragraphs
type Section struct {
	Heading    string
	Rows       []Row
	Paragraphs []string
}

// Document is a fixed-layout printable view
type Document struct {
	Title       string
	Subtitle    string
	GeneratedAt time.Time
	Sections    []Section
}

// clean strips any markup from user-entered text. The policy escapes what it
// keeps, so entities are decoded again before the template escapes them.
func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(s)))
}

func (s *Section) row(label, value string) {
	s.Rows = append(s.Rows, Row{Label: label, Value: clean(value)})
}

func (s *Section) paragraph(text string) {
	if t := clean(text); t != "" {
		s.Paragraphs = append(s.Paragraphs, t)
	}
}

// Write renders d to w in the given format
func Write(w io.Writer, d Document, f Format) error {
	if f == FormatText {
		_, err := io.WriteString(w, d.Text())
		return err
	}
	return documentTmpl.ExecuteTemplate(w, "document.tmpl", d)
}

// HTML renders the institutional HTML layout
func (d Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, d, FormatHTML); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Text renders the document as plain text
func (d Document) Text() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(d.Title))
	b.WriteString("\n")
	if d.Subtitle != "" {
		b.WriteString(d.Subtitle)
		b.WriteString("\n")
	}
	for _, s := range d.Sections {
		fmt.Fprintf(&b, "\n== %s ==\n", s.Heading)
		for _, r := range s.Rows {
			fmt.Fprintf(&b, "%s: %s\n", r.Label, r.Value)
		}
		for _, p := range s.Paragraphs {
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\nGenerado el %s\n", d.GeneratedAt.Format("02/01/2006 15:04"))
	return b.String()
}

func date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

func label(options []refdata.Option, code string) string {
	if o, ok := refdata.Lookup(options, code); ok {
		return o.Label
	}
	return code
}

func officialName(id string) string {
	if o, ok := refdata.FindOfficial(id); ok {
		return o.Name
	}
	return id
}

func personSection(heading string, p model.Identity) Section {
	s := Section{Heading: heading}
	s.row("Nombre", p.FullName())
	s.row("Tipo de documento", label(refdata.DocumentTypes, p.DocumentType))
	s.row("Número de documento", p.DocumentNumber)
	return s
}

// MissionDocument is the printable work order
func MissionDocument(m model.Mission, c model.ProtectionCase, now time.Time) Document {
	general := Section{Heading: "Datos de la misión"}
	general.row("Número de misión", m.Number)
	general.row("Radicado del caso", m.CaseRadicado)
	general.row("Tipo de misión", label(refdata.MissionTypes, m.MissionType))
	general.row("Área", label(refdata.Areas, m.Area))
	general.row("Estado", string(m.Status))
	general.row("Fecha de creación", date(&m.CreatedAt))
	general.row("Fecha límite", date(&m.DueDate))
	general.row("Regional", m.Regional)
	general.row("Funcionario asignado", officialName(m.AssignedOfficial))
	general.row("Fecha de reasignación", date(m.ReassignmentDate))
	if m.ExtensionRequested {
		general.row("Prórroga", label(refdata.ExtensionReasons, m.ExtensionReason))
	}
	if m.ReturnReason != "" {
		general.row("Motivo de devolución", m.ReturnReason)
	}

	caseSec := Section{Heading: "Caso"}
	caseSec.row("Regional de destino", c.DestinationRegional)
	caseSec.row("Entidad remitente", c.RemittingEntity)
	caseSec.row("Clasificación del candidato", label(refdata.CandidateClassifications, c.CandidateClassification))
	caseSec.row("Asunto", c.Subject)

	obs := Section{Heading: "Observaciones"}
	obs.paragraph(mission.InitialText(m.Observations))
	for _, b := range mission.ParseBlocks(m.Observations) {
		obs.paragraph(fmt.Sprintf("[%s - %s]: %s", b.Tag, b.Date, b.Reason))
	}

	return Document{
		Title:       "Orden de misión " + m.Number,
		Subtitle:    "Radicado " + m.CaseRadicado,
		GeneratedAt: now,
		Sections:    []Section{general, personSection("Peticionario", m.Petitioner), caseSec, obs},
	}
}

// CaseDocument is the printable case file
func CaseDocument(c model.ProtectionCase, now time.Time) Document {
	general := Section{Heading: "Datos del caso"}
	general.row("Radicado", c.Radicado)
	general.row("Regional de destino", c.DestinationRegional)
	general.row("Entidad remitente", c.RemittingEntity)
	general.row("Clasificación del candidato", label(refdata.CandidateClassifications, c.CandidateClassification))
	general.row("Origen", c.Origin)
	general.row("Asunto", c.Subject)
	general.row("Área", label(refdata.Areas, c.Area))
	general.row("Tipo de misión", label(refdata.MissionTypes, c.MissionType))
	general.row("Fecha de inicio de misión", date(c.MissionStartDate))
	general.row("Fecha límite", date(c.DueDate))
	if c.RelatedCaseID != "" {
		general.row("Caso relacionado", c.RelatedCaseID)
	}

	family := Section{Heading: "Núcleo familiar"}
	for _, f := range c.FamilyMembers {
		if !f.IsActive {
			continue
		}
		desc := label(refdata.Relationships, f.Relationship)
		if a := f.Age(now); a >= 0 {
			desc = fmt.Sprintf("%s, %d años", desc, a)
		}
		family.row(f.FullName(), desc)
	}

	attachments := Section{Heading: "Anexos"}
	for _, a := range c.Attachments {
		attachments.row(a.Name, fmt.Sprintf("%d bytes", a.Size))
	}

	obs := Section{Heading: "Observaciones"}
	obs.paragraph(c.Observations)

	return Document{
		Title:       "Caso " + c.Radicado,
		GeneratedAt: now,
		Sections:    []Section{general, personSection("Solicitante", c.Requester), family, attachments, obs},
	}
}

// AssessmentDocument is the printable ITVR result
func AssessmentDocument(f forms.ITVRForm, sc forms.Score, now time.Time) Document {
	general := Section{Heading: "Evaluación"}
	general.row("Misión", f.MissionNumber)
	general.row("Radicado", f.CaseRadicado)
	general.row("Evaluador", officialName(f.AssessedBy))

	candidate := personSection("Candidato", model.Identity{
		PersonName:     f.Candidate.PersonName,
		DocumentType:   f.Candidate.DocumentType,
		DocumentNumber: f.Candidate.DocumentNumber,
	})

	sections := []Section{general, candidate}
	for _, s := range forms.Sections {
		sec := Section{Heading: s.Label()}
		for _, fc := range forms.Catalog {
			if fc.Section != s {
				continue
			}
			a, ok := f.Answers[fc.ID]
			if !ok {
				continue
			}
			value := fmt.Sprintf("%s (%s)", a.Option, a.Weight.StringFixed(2))
			if a.Justification != "" {
				value += " " + a.Justification
			}
			sec.row(fc.Label, value)
		}
		sec.row("Subtotal", sc.Subtotals[s].StringFixed(2))
		sections = append(sections, sec)
	}

	result := Section{Heading: "Resultado"}
	result.row("Puntaje total", sc.Total.StringFixed(2))
	result.row("Nivel de riesgo", sc.TierLabel)
	sections = append(sections, result)

	narrative := Section{Heading: "Relato"}
	narrative.paragraph(f.Narrative)
	sections = append(sections, narrative)

	if f.Summary != "" {
		summary := Section{Heading: "Análisis de riesgo"}
		summary.paragraph(f.Summary)
		sections = append(sections, summary)
	}

	return Document{
		Title:       "Instrumento técnico de valoración del riesgo",
		Subtitle:    "Misión " + f.MissionNumber,
		GeneratedAt: now,
		Sections:    sections,
	}
}
