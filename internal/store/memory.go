package store

import (
	"context"
	"fmt"
	"sync"

	"protectbox/internal/forms"
	"protectbox/internal/model"
)

// Memory is a process-local Store. Records are copied on the way in and out.
type Memory struct {
	mu         sync.RWMutex
	sequences  map[string]int64
	requests   map[string]*model.ProtectionRequest
	reqOrder   []string
	cases      map[string]*model.ProtectionCase
	caseOrder  []string
	openings   map[string]*model.CaseOpening
	missions   map[string]*model.Mission
	missionOrd []string
	interviews map[string]*forms.InterviewForm
	itvrs      map[string]*forms.ITVRForm
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		sequences:  make(map[string]int64),
		requests:   make(map[string]*model.ProtectionRequest),
		cases:      make(map[string]*model.ProtectionCase),
		openings:   make(map[string]*model.CaseOpening),
		missions:   make(map[string]*model.Mission),
		interviews: make(map[string]*forms.InterviewForm),
		itvrs:      make(map[string]*forms.ITVRForm),
	}
}

func (s *Memory) NextSequence(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[name]++
	return s.sequences[name], nil
}

// Requests

func (s *Memory) CreateRequest(ctx context.Context, r *model.ProtectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("request %s: %w", r.ID, ErrAlreadyExists)
	}
	r.Version = 1
	cp := copyRequest(r)
	s.requests[r.ID] = cp
	s.reqOrder = append(s.reqOrder, r.ID)
	return nil
}

func (s *Memory) GetRequest(ctx context.Context, id string) (*model.ProtectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return copyRequest(r), nil
}

func (s *Memory) ListRequests(ctx context.Context, f RequestFilter) ([]model.ProtectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ProtectionRequest, 0, len(s.reqOrder))
	for _, id := range s.reqOrder {
		r := s.requests[id]
		if f.Match(r) {
			out = append(out, *copyRequest(r))
		}
	}
	return out, nil
}

func (s *Memory) UpdateRequest(ctx context.Context, r *model.ProtectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[r.ID]
	if !ok {
		return fmt.Errorf("request %s: %w", r.ID, ErrNotFound)
	}
	if cur.Version != r.Version {
		return fmt.Errorf("request %s at version %d, got %d: %w", r.ID, cur.Version, r.Version, ErrVersionConflict)
	}
	r.Version++
	s.requests[r.ID] = copyRequest(r)
	return nil
}

// Cases

func (s *Memory) CreateCase(ctx context.Context, c *model.ProtectionCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return fmt.Errorf("case %s: %w", c.ID, ErrAlreadyExists)
	}
	c.Version = 1
	s.cases[c.ID] = copyCase(c)
	s.caseOrder = append(s.caseOrder, c.ID)
	return nil
}

func (s *Memory) GetCase(ctx context.Context, id string) (*model.ProtectionCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", id, ErrNotFound)
	}
	return copyCase(c), nil
}

// FindCaseByDocument returns the primary case for a requester document: the
// earliest one not itself linked to another case, else the earliest.
func (s *Memory) FindCaseByDocument(ctx context.Context, documentNumber string) (*model.ProtectionCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var first *model.ProtectionCase
	for _, id := range s.caseOrder {
		c := s.cases[id]
		if c.Requester.DocumentNumber != documentNumber {
			continue
		}
		if c.RelatedCaseID == "" {
			return copyCase(c), nil
		}
		if first == nil {
			first = c
		}
	}
	if first == nil {
		return nil, fmt.Errorf("case for document %s: %w", documentNumber, ErrNotFound)
	}
	return copyCase(first), nil
}

func (s *Memory) ListCases(ctx context.Context) ([]model.ProtectionCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ProtectionCase, 0, len(s.caseOrder))
	for _, id := range s.caseOrder {
		out = append(out, *copyCase(s.cases[id]))
	}
	return out, nil
}

func (s *Memory) UpdateCase(ctx context.Context, c *model.ProtectionCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cases[c.ID]
	if !ok {
		return fmt.Errorf("case %s: %w", c.ID, ErrNotFound)
	}
	if cur.Version != c.Version {
		return fmt.Errorf("case %s at version %d, got %d: %w", c.ID, cur.Version, c.Version, ErrVersionConflict)
	}
	c.Version++
	s.cases[c.ID] = copyCase(c)
	return nil
}

// Openings

func (s *Memory) CreateOpening(ctx context.Context, o *model.CaseOpening) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.openings[o.ID]; ok {
		return fmt.Errorf("opening %s: %w", o.ID, ErrAlreadyExists)
	}
	o.Version = 1
	cp := *o
	s.openings[o.ID] = &cp
	return nil
}

func (s *Memory) GetOpening(ctx context.Context, id string) (*model.CaseOpening, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.openings[id]
	if !ok {
		return nil, fmt.Errorf("opening %s: %w", id, ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *Memory) UpdateOpening(ctx context.Context, o *model.CaseOpening) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.openings[o.ID]
	if !ok {
		return fmt.Errorf("opening %s: %w", o.ID, ErrNotFound)
	}
	if cur.Version != o.Version {
		return fmt.Errorf("opening %s at version %d, got %d: %w", o.ID, cur.Version, o.Version, ErrVersionConflict)
	}
	o.Version++
	cp := *o
	s.openings[o.ID] = &cp
	return nil
}

// Missions

func (s *Memory) CreateMission(ctx context.Context, m *model.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.missions[m.ID]; ok {
		return fmt.Errorf("mission %s: %w", m.ID, ErrAlreadyExists)
	}
	m.Version = 1
	s.missions[m.ID] = copyMission(m)
	s.missionOrd = append(s.missionOrd, m.ID)
	return nil
}

func (s *Memory) GetMission(ctx context.Context, id string) (*model.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.missions[id]
	if !ok {
		return nil, fmt.Errorf("mission %s: %w", id, ErrNotFound)
	}
	return copyMission(m), nil
}

func (s *Memory) ListMissions(ctx context.Context, f MissionFilter) ([]model.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Mission, 0, len(s.missionOrd))
	for _, id := range s.missionOrd {
		m := s.missions[id]
		if f.Match(m) {
			out = append(out, *copyMission(m))
		}
	}
	return out, nil
}

func (s *Memory) UpdateMission(ctx context.Context, m *model.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.missions[m.ID]
	if !ok {
		return fmt.Errorf("mission %s: %w", m.ID, ErrNotFound)
	}
	if cur.Version != m.Version {
		return fmt.Errorf("mission %s at version %d, got %d: %w", m.ID, cur.Version, m.Version, ErrVersionConflict)
	}
	m.Version++
	s.missions[m.ID] = copyMission(m)
	return nil
}

// Forms overwrite in place

func (s *Memory) SaveInterview(ctx context.Context, f *forms.InterviewForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interviews[f.ID] = copyInterview(f)
	return nil
}

func (s *Memory) GetInterview(ctx context.Context, id string) (*forms.InterviewForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.interviews[id]
	if !ok {
		return nil, fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	return copyInterview(f), nil
}

func (s *Memory) SaveITVR(ctx context.Context, f *forms.ITVRForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itvrs[f.ID] = copyITVR(f)
	return nil
}

func (s *Memory) GetITVR(ctx context.Context, id string) (*forms.ITVRForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.itvrs[id]
	if !ok {
		return nil, fmt.Errorf("itvr %s: %w", id, ErrNotFound)
	}
	return copyITVR(f), nil
}

func copyRequest(r *model.ProtectionRequest) *model.ProtectionRequest {
	cp := *r
	if r.RadicationDate != nil {
		t := *r.RadicationDate
		cp.RadicationDate = &t
	}
	return &cp
}

func copyCase(c *model.ProtectionCase) *model.ProtectionCase {
	cp := *c
	cp.Attachments = append([]model.Attachment{}, c.Attachments...)
	cp.FamilyMembers = append([]model.FamilyMember{}, c.FamilyMembers...)
	return &cp
}

func copyMission(m *model.Mission) *model.Mission {
	cp := *m
	cp.Log = append([]model.ObservationEntry{}, m.Log...)
	return &cp
}

func copyInterview(f *forms.InterviewForm) *forms.InterviewForm {
	cp := *f
	cp.Family = append([]forms.FamilyRow{}, f.Family...)
	cp.Pets = append([]forms.PetRow{}, f.Pets...)
	return &cp
}

func copyITVR(f *forms.ITVRForm) *forms.ITVRForm {
	cp := *f
	cp.Answers = make(map[string]forms.Answer, len(f.Answers))
	for k, v := range f.Answers {
		cp.Answers[k] = v
	}
	return &cp
}
