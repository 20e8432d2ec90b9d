package forms

import (
	"errors"
	"fmt"
	"time"

	"protectbox/internal/model"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownFactor = errors.New("unknown factor")
	ErrUnknownOption = errors.New("unknown option")
)

// Answer is the selected option for one factor
type Answer struct {
	FactorID      string          `json:"factorId"`
	Option        Option          `json:"option"`
	Weight        decimal.Decimal `json:"weight"`
	Justification string          `json:"justification,omitempty"`
}

// ITVRForm is the threat / specific risk / vulnerability instrument
type ITVRForm struct {
	ID            string            `json:"id"`
	MissionID     string            `json:"missionId"`
	MissionNumber string            `json:"missionNumber"`
	CaseRadicado  string            `json:"caseRadicado"`
	Candidate     Person            `json:"candidate"`
	Answers       map[string]Answer `json:"answers"`
	Narrative     string            `json:"narrative"`
	Summary       string            `json:"summary,omitempty"`
	AssessedBy    string            `json:"assessedBy"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// NewITVR pre-populates an assessment for a mission
func NewITVR(m model.Mission, assessor string, now time.Time) *ITVRForm {
	return &ITVRForm{
		ID:            ulid.Make().String(),
		MissionID:     m.ID,
		MissionNumber: m.Number,
		CaseRadicado:  m.CaseRadicado,
		Candidate: Person{
			PersonName:     m.Petitioner.PersonName,
			DocumentType:   m.Petitioner.DocumentType,
			DocumentNumber: m.Petitioner.DocumentNumber,
		},
		Answers:    map[string]Answer{},
		AssessedBy: assessor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Select records an option for a factor. The weight always comes from the catalog.
func (f *ITVRForm) Select(factorID string, opt Option, justification string) error {
	fc, ok := FindFactor(factorID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFactor, factorID)
	}
	w, ok := fc.Weight(opt)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, opt)
	}
	if f.Answers == nil {
		f.Answers = map[string]Answer{}
	}
	f.Answers[factorID] = Answer{FactorID: factorID, Option: opt, Weight: w, Justification: justification}
	return nil
}

// Reweigh re-derives every answer's weight from the catalog, rejecting
// unknown factors or options. Used on saves of client-supplied answers.
func (f *ITVRForm) Reweigh() error {
	answers := f.Answers
	f.Answers = map[string]Answer{}
	for id, a := range answers {
		if a.FactorID == "" {
			a.FactorID = id
		}
		if err := f.Select(a.FactorID, a.Option, a.Justification); err != nil {
			return err
		}
	}
	return nil
}

// Subtotal sums the selected weights of one section
func (f *ITVRForm) Subtotal(s Section) decimal.Decimal {
	total := decimal.Zero
	for _, a := range f.Answers {
		fc, ok := FindFactor(a.FactorID)
		if !ok || fc.Section != s {
			continue
		}
		total = total.Add(a.Weight)
	}
	return total
}

// Total is the sum of the three section subtotals
func (f *ITVRForm) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range Sections {
		total = total.Add(f.Subtotal(s))
	}
	return total
}

// Tier classifies the current total
func (f *ITVRForm) Tier() (Tier, error) {
	return TierFor(f.Total())
}

// Score is the computed view of an assessment
type Score struct {
	Subtotals map[Section]decimal.Decimal `json:"subtotals"`
	Total     decimal.Decimal             `json:"total"`
	Tier      Tier                        `json:"tier"`
	TierLabel string                      `json:"tierLabel"`
}

// Score computes subtotals, total and tier in one pass
func (f *ITVRForm) Score() (Score, error) {
	sc := Score{Subtotals: make(map[Section]decimal.Decimal, len(Sections))}
	for _, s := range Sections {
		sc.Subtotals[s] = f.Subtotal(s)
	}
	total, tier, err := ScoreFromSubtotals(sc.Subtotals[SectionThreat], sc.Subtotals[SectionSpecificRisk], sc.Subtotals[SectionVulnerability])
	if err != nil {
		return Score{}, err
	}
	sc.Total = total
	sc.Tier = tier
	sc.TierLabel = tier.Label()
	return sc, nil
}
