// Package store defines persistence for requests, cases, openings, missions
// and forms. Every mutable record carries a Version; updates must present the
// version they read.
package store

import (
	"context"
	"errors"
	"strings"

	"protectbox/internal/forms"
	"protectbox/internal/model"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyExists   = errors.New("already exists")
)

// RequestFilter narrows a request listing. Zero fields match everything.
type RequestFilter struct {
	Status         model.RequestStatus
	Active         *bool
	DocumentNumber string
	Text           string
}

// Match reports whether a request passes the filter
func (f RequestFilter) Match(r *model.ProtectionRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Active != nil && r.IsActive != *f.Active {
		return false
	}
	if f.DocumentNumber != "" && r.Applicant.DocumentNumber != f.DocumentNumber {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Text)); q != "" {
		hay := strings.ToLower(strings.Join([]string{r.NUNC, r.Radicado, r.Applicant.FullName(), r.Applicant.DocumentNumber}, " "))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

// MissionFilter narrows a mission listing
type MissionFilter struct {
	CaseID   string
	Regional string
	Official string
}

// Match reports whether a mission passes the filter
func (f MissionFilter) Match(m *model.Mission) bool {
	if f.CaseID != "" && m.CaseID != f.CaseID {
		return false
	}
	if f.Regional != "" && !strings.EqualFold(m.Regional, f.Regional) {
		return false
	}
	if f.Official != "" && m.AssignedOfficial != f.Official {
		return false
	}
	return true
}

// Store is implemented by the in-memory store and the Postgres store
type Store interface {
	// NextSequence returns the next value of a named counter, starting at 1
	NextSequence(ctx context.Context, name string) (int64, error)

	CreateRequest(ctx context.Context, r *model.ProtectionRequest) error
	GetRequest(ctx context.Context, id string) (*model.ProtectionRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]model.ProtectionRequest, error)
	UpdateRequest(ctx context.Context, r *model.ProtectionRequest) error

	CreateCase(ctx context.Context, c *model.ProtectionCase) error
	GetCase(ctx context.Context, id string) (*model.ProtectionCase, error)
	FindCaseByDocument(ctx context.Context, documentNumber string) (*model.ProtectionCase, error)
	ListCases(ctx context.Context) ([]model.ProtectionCase, error)
	UpdateCase(ctx context.Context, c *model.ProtectionCase) error

	CreateOpening(ctx context.Context, o *model.CaseOpening) error
	GetOpening(ctx context.Context, id string) (*model.CaseOpening, error)
	UpdateOpening(ctx context.Context, o *model.CaseOpening) error

	CreateMission(ctx context.Context, m *model.Mission) error
	GetMission(ctx context.Context, id string) (*model.Mission, error)
	ListMissions(ctx context.Context, f MissionFilter) ([]model.Mission, error)
	UpdateMission(ctx context.Context, m *model.Mission) error

	SaveInterview(ctx context.Context, f *forms.InterviewForm) error
	GetInterview(ctx context.Context, id string) (*forms.InterviewForm, error)
	SaveITVR(ctx context.Context, f *forms.ITVRForm) error
	GetITVR(ctx context.Context, id string) (*forms.ITVRForm, error)
}
