package model

import (
	"strings"
	"time"
)

// RequestStatus represents protection request status
type RequestStatus string

const (
	RequestStatusCreated RequestStatus = "CREATED"
	RequestStatusFiled   RequestStatus = "FILED"
)

// MissionStatus represents work order status
type MissionStatus string

const (
	MissionStatusPending   MissionStatus = "PENDIENTE"
	MissionStatusAssigned  MissionStatus = "ASIGNADA"
	MissionStatusActive    MissionStatus = "ACTIVA"
	MissionStatusFinalized MissionStatus = "FINALIZADA"
	MissionStatusCancelled MissionStatus = "ANULADA"
	MissionStatusReturned  MissionStatus = "DEVUELTA"
)

// OpeningStatus represents the state of a case opening
type OpeningStatus string

const (
	OpeningStatusWaitingInput OpeningStatus = "WAITING_INPUT"
	OpeningStatusCompleted    OpeningStatus = "COMPLETED"
	OpeningStatusCancelled    OpeningStatus = "CANCELLED"
)

// Role is an abstract actor role
type Role string

const (
	RoleNationalLead Role = "NATIONAL_LEAD"
	RoleRegionalLead Role = "REGIONAL_LEAD"
	RoleOfficial     Role = "OFFICIAL"
	RoleFiscal       Role = "FISCAL"
	RoleCaseOpener   Role = "CASE_OPENER"
)

// Actor is whoever triggers an operation
type Actor struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role"`
	Regional string `json:"regional,omitempty"`
}

// PersonName holds the four Colombian name parts
type PersonName struct {
	FirstName     string `json:"firstName" validate:"required"`
	SecondName    string `json:"secondName,omitempty"`
	FirstSurname  string `json:"firstSurname" validate:"required"`
	SecondSurname string `json:"secondSurname,omitempty"`
}

// FullName joins the non-empty name parts
func (p PersonName) FullName() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.FirstName, p.SecondName, p.FirstSurname, p.SecondSurname} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Identity is a person's name plus identity document
type Identity struct {
	PersonName
	DocumentType   string `json:"documentType" validate:"required"`
	DocumentNumber string `json:"documentNumber" validate:"required"`
}

// ProtectionRequest is a citizen's initial ask for protection measures
type ProtectionRequest struct {
	ID             string        `json:"id"`
	NUNC           string        `json:"nunc"`
	Radicado       string        `json:"radicado,omitempty"`
	RadicationDate *time.Time    `json:"radicationDate,omitempty"`
	Status         RequestStatus `json:"status"`
	Applicant      Identity      `json:"applicant"`
	Summary        string        `json:"summary,omitempty"`
	SubmittedAt    time.Time     `json:"submittedAt"`
	SubmittedBy    string        `json:"submittedBy,omitempty"`
	OfficialID     string        `json:"officialId,omitempty"`
	IsActive       bool          `json:"isActive"`
	Version        int64         `json:"version"`
}

// Attachment is metadata for a stored file
type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MIME       string    `json:"mime,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// FamilyMember is a person in the protected individual's household
type FamilyMember struct {
	ID string `json:"id"`
	Identity
	Relationship   string     `json:"relationship" validate:"required"`
	BirthDate      *time.Time `json:"birthDate,omitempty"`
	ResidencePlace string     `json:"residencePlace,omitempty"`
	IsActive       bool       `json:"isActive"`
}

// Age returns the member's age on the given day, or -1 without a birth date
func (f FamilyMember) Age(today time.Time) int {
	if f.BirthDate == nil {
		return -1
	}
	return AgeOn(*f.BirthDate, today)
}

// AgeOn returns completed years between birth and today. The calendar-year
// difference is reduced by one until this year's birthday has been reached.
func AgeOn(birth, today time.Time) int {
	by, bm, bd := birth.Date()
	ty, tm, td := today.Date()
	age := ty - by
	if tm < bm || (tm == bm && td < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// CaseDraft holds the fields captured by the case opening form
type CaseDraft struct {
	RequestID               string     `json:"requestId" validate:"required"`
	DestinationRegional     string     `json:"destinationRegional" validate:"required"`
	RemittingEntity         string     `json:"remittingEntity" validate:"required"`
	CandidateClassification string     `json:"candidateClassification" validate:"required"`
	Origin                  string     `json:"origin,omitempty"`
	Subject                 string     `json:"subject" validate:"required"`
	Area                    string     `json:"area" validate:"required"`
	MissionStartDate        *time.Time `json:"missionStartDate,omitempty"`
	MissionType             string     `json:"missionType,omitempty" validate:"required_if=GenerateMission true"`
	DueDate                 *time.Time `json:"dueDate,omitempty" validate:"required_if=GenerateMission true"`
	Observations            string     `json:"observations,omitempty"`
	RelatedCaseID           string     `json:"relatedCaseId,omitempty"`
	GenerateMission         bool       `json:"generateMission"`
}

// ProtectionCase is the formal case file opened from a filed request
type ProtectionCase struct {
	ID                      string         `json:"id"`
	Radicado                string         `json:"radicado"`
	RequestID               string         `json:"requestId"`
	DestinationRegional     string         `json:"destinationRegional"`
	RemittingEntity         string         `json:"remittingEntity"`
	CandidateClassification string         `json:"candidateClassification"`
	Origin                  string         `json:"origin,omitempty"`
	Requester               Identity       `json:"requester"`
	Subject                 string         `json:"subject"`
	Area                    string         `json:"area"`
	MissionStartDate        *time.Time     `json:"missionStartDate,omitempty"`
	MissionType             string         `json:"missionType,omitempty"`
	DueDate                 *time.Time     `json:"dueDate,omitempty"`
	Observations            string         `json:"observations,omitempty"`
	Attachments             []Attachment   `json:"attachments"`
	RelatedCaseID           string         `json:"relatedCaseId,omitempty"`
	GenerateMission         bool           `json:"generateMission"`
	MissionID               string         `json:"missionId,omitempty"`
	FamilyMembers           []FamilyMember `json:"familyMembers"`
	CreatedBy               string         `json:"createdBy,omitempty"`
	CreatedAt               time.Time      `json:"createdAt"`
	UpdatedAt               time.Time      `json:"updatedAt"`
	Version                 int64          `json:"version"`
}

// CaseOpening tracks a case opening that may be parked on the duplicate gate
type CaseOpening struct {
	ID             string        `json:"id"`
	Status         OpeningStatus `json:"status"`
	Draft          CaseDraft     `json:"draft"`
	DocumentNumber string        `json:"documentNumber"`
	ExistingCaseID string        `json:"existingCaseId,omitempty"`
	CaseID         string        `json:"caseId,omitempty"`
	Decision       string        `json:"decision,omitempty"`
	CreatedBy      string        `json:"createdBy,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Version        int64         `json:"version"`
}

// ObservationEntry is one rationale block of a mission's log
type ObservationEntry struct {
	Tag       string    `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Reason    string    `json:"reason"`
}

// Mission is a dispatchable work order derived from a case
type Mission struct {
	ID                 string             `json:"id"`
	Number             string             `json:"number"`
	CaseID             string             `json:"caseId"`
	CaseRadicado       string             `json:"caseRadicado"`
	MissionType        string             `json:"missionType"`
	Petitioner         Identity           `json:"petitioner"`
	Area               string             `json:"area"`
	Status             MissionStatus      `json:"status"`
	DueDate            time.Time          `json:"dueDate"`
	CreatedAt          time.Time          `json:"createdAt"`
	AssignedOfficial   string             `json:"assignedOfficial,omitempty"`
	Regional           string             `json:"regional,omitempty"`
	ReassignmentDate   *time.Time         `json:"reassignmentDate,omitempty"`
	Observations       string             `json:"observations"`
	Log                []ObservationEntry `json:"log"`
	ReturnReason       string             `json:"returnReason,omitempty"`
	ExtensionRequested bool               `json:"extensionRequested"`
	ExtensionReason    string             `json:"extensionReason,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	Version            int64              `json:"version"`
}
