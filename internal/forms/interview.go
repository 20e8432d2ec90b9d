// Package forms holds the technical instruments an assigned official fills in
// for a mission: the interview questionnaire and the ITVR risk assessment.
package forms

import (
	"time"

	"protectbox/internal/model"

	"github.com/oklog/ulid/v2"
)

// Person is a person record on a form. Age is derived from BirthDate.
type Person struct {
	model.PersonName
	DocumentType   string     `json:"documentType,omitempty"`
	DocumentNumber string     `json:"documentNumber,omitempty"`
	BirthDate      *time.Time `json:"birthDate,omitempty"`
	Age            *int       `json:"age,omitempty"`
}

// SetBirthDate sets the birth date and recomputes the age
func (p *Person) SetBirthDate(birth *time.Time, today time.Time) {
	p.BirthDate = birth
	p.recompute(today)
}

func (p *Person) recompute(today time.Time) {
	if p.BirthDate == nil {
		p.Age = nil
		return
	}
	age := model.AgeOn(*p.BirthDate, today)
	p.Age = &age
}

// FamilyRow is a household member listed on the interview
type FamilyRow struct {
	ID string `json:"id"`
	Person
	Relationship string `json:"relationship"`
	Occupation   string `json:"occupation,omitempty"`
	LivesWith    bool   `json:"livesWith"`
}

// PetRow is an animal living with the candidate
type PetRow struct {
	ID      string `json:"id"`
	Species string `json:"species"`
	Name    string `json:"name,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// InterviewNarrative holds the free-text sections of the interview
type InterviewNarrative struct {
	Facts            string `json:"facts"`
	ThreatHistory    string `json:"threatHistory,omitempty"`
	CurrentSituation string `json:"currentSituation,omitempty"`
	Requests         string `json:"requests,omitempty"`
}

// InterviewForm is the technical interview instrument
type InterviewForm struct {
	ID            string             `json:"id"`
	MissionID     string             `json:"missionId"`
	MissionNumber string             `json:"missionNumber"`
	CaseRadicado  string             `json:"caseRadicado"`
	Candidate     Person             `json:"candidate"`
	Address       string             `json:"address,omitempty"`
	Municipality  string             `json:"municipality,omitempty"`
	Phone         string             `json:"phone,omitempty"`
	Family        []FamilyRow        `json:"family"`
	Pets          []PetRow           `json:"pets"`
	Narrative     InterviewNarrative `json:"narrative"`
	InterviewedBy string             `json:"interviewedBy"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// NewInterview pre-populates an interview from the mission and its case
func NewInterview(m model.Mission, c model.ProtectionCase, interviewer string, now time.Time) *InterviewForm {
	f := &InterviewForm{
		ID:            ulid.Make().String(),
		MissionID:     m.ID,
		MissionNumber: m.Number,
		CaseRadicado:  m.CaseRadicado,
		Candidate: Person{
			PersonName:     m.Petitioner.PersonName,
			DocumentType:   m.Petitioner.DocumentType,
			DocumentNumber: m.Petitioner.DocumentNumber,
		},
		Family:        []FamilyRow{},
		Pets:          []PetRow{},
		InterviewedBy: interviewer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, fm := range c.FamilyMembers {
		if !fm.IsActive {
			continue
		}
		f.AddFamilyMember(FamilyRow{
			Person: Person{
				PersonName:     fm.PersonName,
				DocumentType:   fm.DocumentType,
				DocumentNumber: fm.DocumentNumber,
				BirthDate:      fm.BirthDate,
			},
			Relationship: fm.Relationship,
			LivesWith:    true,
		}, now)
	}
	return f
}

// AddFamilyMember appends a row with a fresh ID and derived age
func (f *InterviewForm) AddFamilyMember(row FamilyRow, today time.Time) FamilyRow {
	row.ID = ulid.Make().String()
	row.recompute(today)
	f.Family = append(f.Family, row)
	return row
}

// RemoveFamilyMember drops a row by ID
func (f *InterviewForm) RemoveFamilyMember(id string) bool {
	for i, r := range f.Family {
		if r.ID == id {
			f.Family = append(f.Family[:i], f.Family[i+1:]...)
			return true
		}
	}
	return false
}

// AddPet appends a pet row with a fresh ID
func (f *InterviewForm) AddPet(p PetRow) PetRow {
	p.ID = ulid.Make().String()
	f.Pets = append(f.Pets, p)
	return p
}

// RemovePet drops a pet row by ID
func (f *InterviewForm) RemovePet(id string) bool {
	for i, p := range f.Pets {
		if p.ID == id {
			f.Pets = append(f.Pets[:i], f.Pets[i+1:]...)
			return true
		}
	}
	return false
}

// Recompute refreshes every derived age. Called on each save.
func (f *InterviewForm) Recompute(today time.Time) {
	f.Candidate.recompute(today)
	for i := range f.Family {
		f.Family[i].recompute(today)
		if f.Family[i].ID == "" {
			f.Family[i].ID = ulid.Make().String()
		}
	}
	for i := range f.Pets {
		if f.Pets[i].ID == "" {
			f.Pets[i].ID = ulid.Make().String()
		}
	}
	if f.Family == nil {
		f.Family = []FamilyRow{}
	}
	if f.Pets == nil {
		f.Pets = []PetRow{}
	}
}
