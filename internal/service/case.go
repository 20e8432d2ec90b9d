package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"protectbox/internal/mission"
	"protectbox/internal/model"
	"protectbox/internal/refdata"
	"protectbox/internal/render"
	"protectbox/internal/storage"
	"protectbox/internal/store"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Opening decisions accepted by ResolveOpening
const (
	DecisionAssociate = "associate"
	DecisionAbandon   = "abandon"
)

// CaseService opens cases behind the duplicate-document gate and maintains
// them afterwards, keeping a spawned mission in sync
type CaseService struct {
	store     store.Store
	bus       EventBus
	jobClient JobClient
	files     storage.Storage
	policy    storage.AttachmentPolicy
	log       *zap.Logger
	now       func() time.Time
}

func NewCaseService(st store.Store, bus EventBus, files storage.Storage, policy storage.AttachmentPolicy, log *zap.Logger) *CaseService {
	return &CaseService{
		store:  st,
		bus:    bus,
		files:  files,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

// SetJobClient sets the job client for scheduling background jobs
func (s *CaseService) SetJobClient(client JobClient) {
	s.jobClient = client
}

// Policy is the attachment policy uploads are checked against
func (s *CaseService) Policy() storage.AttachmentPolicy {
	return s.policy
}

// SetClock replaces the time source
func (s *CaseService) SetClock(now func() time.Time) {
	s.now = now
}

// OpeningResult is what a case opening step produced. Case is nil while the
// opening waits on the duplicate gate or after it was abandoned.
type OpeningResult struct {
	Opening *model.CaseOpening    `json:"opening"`
	Case    *model.ProtectionCase `json:"case,omitempty"`
	Mission *model.Mission        `json:"mission,omitempty"`
}

// CaseView is a case plus its derived family ages
type CaseView struct {
	*model.ProtectionCase
	FamilyAges map[string]int `json:"familyAges"`
}

func checkCaseRefs(regional, classification, missionType, area string) error {
	verr := &ValidationError{Fields: map[string]string{}}
	if !refdata.IsRegional(regional) {
		verr.Fields["destinationRegional"] = "unknown regional unit"
	}
	if _, ok := refdata.Lookup(refdata.CandidateClassifications, classification); !ok {
		verr.Fields["candidateClassification"] = "unknown candidate classification"
	}
	if _, ok := refdata.Lookup(refdata.Areas, area); !ok {
		verr.Fields["area"] = "unknown area"
	}
	if missionType != "" {
		if _, ok := refdata.Lookup(refdata.MissionTypes, missionType); !ok {
			verr.Fields["missionType"] = "unknown mission type"
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// BeginOpening starts a case opening for a filed request. When the
// requester's document already has an open case the opening is parked in
// WAITING_INPUT and nothing is created until ResolveOpening.
func (s *CaseService) BeginOpening(ctx context.Context, actor model.Actor, draft model.CaseDraft) (*OpeningResult, error) {
	if err := validateStruct(draft); err != nil {
		return nil, err
	}
	if err := checkCaseRefs(draft.DestinationRegional, draft.CandidateClassification, draft.MissionType, draft.Area); err != nil {
		return nil, err
	}
	draft.RelatedCaseID = ""

	req, err := s.store.GetRequest(ctx, draft.RequestID)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}
	if req.Status != model.RequestStatusFiled {
		return nil, rejected("open case", "request %s has not been filed", req.ID)
	}
	if !req.IsActive {
		return nil, rejected("open case", "request %s is inactive", req.ID)
	}

	now := s.now()
	opening := &model.CaseOpening{
		ID:             ulid.Make().String(),
		Status:         model.OpeningStatusWaitingInput,
		Draft:          draft,
		DocumentNumber: req.Applicant.DocumentNumber,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	existing, err := s.store.FindCaseByDocument(ctx, req.Applicant.DocumentNumber)
	switch {
	case err == nil:
		opening.ExistingCaseID = existing.ID
		if err := s.store.CreateOpening(ctx, opening); err != nil {
			return nil, fmt.Errorf("failed to create opening: %w", err)
		}
		_ = s.bus.PublishRequest(req.ID, map[string]interface{}{
			"type":           "case.opening_blocked",
			"openingId":      opening.ID,
			"existingCaseId": existing.ID,
		})
		s.log.Info("Case opening waiting on duplicate decision",
			zap.String("opening_id", opening.ID),
			zap.String("existing_case_id", existing.ID),
		)
		return &OpeningResult{Opening: opening}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to check for existing case: %w", err)
	}

	c, m, err := s.createCase(ctx, actor, req, draft, now)
	if err != nil {
		return nil, err
	}
	opening.Status = model.OpeningStatusCompleted
	opening.CaseID = c.ID
	if err := s.store.CreateOpening(ctx, opening); err != nil {
		return nil, fmt.Errorf("failed to create opening: %w", err)
	}
	return &OpeningResult{Opening: opening, Case: c, Mission: m}, nil
}

// ResolveOpening settles a parked opening: associate creates the case linked
// to the existing one, abandon cancels the opening. The opening is claimed
// with a versioned update before any case is created, so concurrent
// resolutions create at most one case.
func (s *CaseService) ResolveOpening(ctx context.Context, actor model.Actor, id, decision string) (*OpeningResult, error) {
	opening, err := s.store.GetOpening(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("opening not found: %w", err)
	}
	if opening.Status != model.OpeningStatusWaitingInput {
		return nil, rejected("resolve opening", "opening is %s", opening.Status)
	}

	now := s.now()
	decision = strings.ToLower(strings.TrimSpace(decision))
	switch decision {
	case DecisionAssociate:
		opening.Status = model.OpeningStatusCompleted
	case DecisionAbandon:
		opening.Status = model.OpeningStatusCancelled
	default:
		return nil, invalid("decision", "must be one of associate abandon")
	}
	opening.Decision = decision
	opening.UpdatedAt = now
	if err := s.store.UpdateOpening(ctx, opening); err != nil {
		return nil, fmt.Errorf("failed to claim opening: %w", err)
	}

	result := &OpeningResult{Opening: opening}
	if decision == DecisionAssociate {
		c, m, err := s.associate(ctx, actor, opening, now)
		if err != nil {
			s.release(ctx, opening)
			return nil, err
		}
		opening.CaseID = c.ID
		if err := s.store.UpdateOpening(ctx, opening); err != nil {
			s.log.Error("Failed to record case on opening",
				zap.String("opening_id", id),
				zap.String("case_id", c.ID),
				zap.Error(err),
			)
		}
		result.Case, result.Mission = c, m
	}

	s.log.Info("Case opening resolved", zap.String("opening_id", id), zap.String("decision", opening.Decision))
	return result, nil
}

func (s *CaseService) associate(ctx context.Context, actor model.Actor, opening *model.CaseOpening, now time.Time) (*model.ProtectionCase, *model.Mission, error) {
	req, err := s.store.GetRequest(ctx, opening.Draft.RequestID)
	if err != nil {
		return nil, nil, fmt.Errorf("request not found: %w", err)
	}
	draft := opening.Draft
	draft.RelatedCaseID = opening.ExistingCaseID
	return s.createCase(ctx, actor, req, draft, now)
}

// release puts a claimed opening back to WAITING_INPUT after a failed associate
func (s *CaseService) release(ctx context.Context, opening *model.CaseOpening) {
	opening.Status = model.OpeningStatusWaitingInput
	opening.Decision = ""
	if err := s.store.UpdateOpening(ctx, opening); err != nil {
		s.log.Error("Failed to release case opening", zap.String("opening_id", opening.ID), zap.Error(err))
	}
}

func (s *CaseService) GetOpening(ctx context.Context, id string) (*model.CaseOpening, error) {
	o, err := s.store.GetOpening(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("opening not found: %w", err)
	}
	return o, nil
}

func (s *CaseService) createCase(ctx context.Context, actor model.Actor, req *model.ProtectionRequest, d model.CaseDraft, now time.Time) (*model.ProtectionCase, *model.Mission, error) {
	c := &model.ProtectionCase{
		ID:                      ulid.Make().String(),
		Radicado:                req.Radicado,
		RequestID:               req.ID,
		DestinationRegional:     d.DestinationRegional,
		RemittingEntity:         d.RemittingEntity,
		CandidateClassification: d.CandidateClassification,
		Origin:                  d.Origin,
		Requester:               req.Applicant,
		Subject:                 d.Subject,
		Area:                    d.Area,
		MissionStartDate:        d.MissionStartDate,
		MissionType:             d.MissionType,
		DueDate:                 d.DueDate,
		Observations:            d.Observations,
		Attachments:             []model.Attachment{},
		RelatedCaseID:           d.RelatedCaseID,
		GenerateMission:         d.GenerateMission,
		FamilyMembers:           []model.FamilyMember{},
		CreatedBy:               actor.ID,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	var m *model.Mission
	if d.GenerateMission {
		seq, err := s.store.NextSequence(ctx, fmt.Sprintf("mission:%d", now.Year()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to allocate mission number: %w", err)
		}
		spawned := mission.New(ulid.Make().String(), mission.FormatNumber(now.Year(), seq), *c, now)
		m = &spawned
		c.MissionID = m.ID
	}

	if err := s.store.CreateCase(ctx, c); err != nil {
		return nil, nil, fmt.Errorf("failed to create case: %w", err)
	}
	_ = s.bus.PublishCase(c.ID, map[string]interface{}{
		"type":     "case.created",
		"caseId":   c.ID,
		"radicado": c.Radicado,
	})

	if m != nil {
		if err := s.store.CreateMission(ctx, m); err != nil {
			return nil, nil, fmt.Errorf("failed to create mission: %w", err)
		}
		event := map[string]interface{}{
			"type":      "mission.created",
			"missionId": m.ID,
			"number":    m.Number,
			"caseId":    c.ID,
		}
		_ = s.bus.PublishMission(m.ID, event)
		_ = s.bus.PublishRegional(c.DestinationRegional, event)
		scheduleMissionJobs(s.jobClient, s.log, *m)
	}

	s.log.Info("Case created", zap.String("case_id", c.ID), zap.String("radicado", c.Radicado), zap.Bool("mission", m != nil))
	return c, m, nil
}

func (s *CaseService) Get(ctx context.Context, id string) (*model.ProtectionCase, error) {
	c, err := s.store.GetCase(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("case not found: %w", err)
	}
	return c, nil
}

// Document builds the printable case file
func (s *CaseService) Document(ctx context.Context, id string) (render.Document, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return render.Document{}, err
	}
	return render.CaseDocument(*c, s.now()), nil
}

// View derives the ages of the case's family members as of now
func (s *CaseService) View(c *model.ProtectionCase) CaseView {
	today := s.now()
	ages := make(map[string]int, len(c.FamilyMembers))
	for _, f := range c.FamilyMembers {
		if a := f.Age(today); a >= 0 {
			ages[f.ID] = a
		}
	}
	return CaseView{ProtectionCase: c, FamilyAges: ages}
}

// UpdateCaseInput carries the editable case fields. The linked mission's
// due date follows the case only on an administrative edit.
type UpdateCaseInput struct {
	Version                 int64      `json:"version" validate:"required"`
	DestinationRegional     string     `json:"destinationRegional" validate:"required"`
	RemittingEntity         string     `json:"remittingEntity" validate:"required"`
	CandidateClassification string     `json:"candidateClassification" validate:"required"`
	Origin                  string     `json:"origin,omitempty"`
	Subject                 string     `json:"subject" validate:"required"`
	Area                    string     `json:"area" validate:"required"`
	MissionStartDate        *time.Time `json:"missionStartDate,omitempty"`
	MissionType             string     `json:"missionType,omitempty"`
	DueDate                 *time.Time `json:"dueDate,omitempty"`
	Observations            string     `json:"observations,omitempty"`
	AdministrativeEdit      bool       `json:"administrativeEdit"`
}

func (s *CaseService) Update(ctx context.Context, actor model.Actor, id string, in UpdateCaseInput) (*model.ProtectionCase, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := checkCaseRefs(in.DestinationRegional, in.CandidateClassification, in.MissionType, in.Area); err != nil {
		return nil, err
	}

	c, err := s.store.GetCase(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("case not found: %w", err)
	}
	if c.Version != in.Version {
		return nil, fmt.Errorf("case %s at version %d, got %d: %w", id, c.Version, in.Version, store.ErrVersionConflict)
	}
	if c.GenerateMission && (in.MissionType == "" || in.DueDate == nil) {
		verr := &ValidationError{Fields: map[string]string{}}
		if in.MissionType == "" {
			verr.Fields["missionType"] = "is required"
		}
		if in.DueDate == nil {
			verr.Fields["dueDate"] = "is required"
		}
		return nil, verr
	}

	c.DestinationRegional = in.DestinationRegional
	c.RemittingEntity = in.RemittingEntity
	c.CandidateClassification = in.CandidateClassification
	c.Origin = in.Origin
	c.Subject = in.Subject
	c.Area = in.Area
	c.MissionStartDate = in.MissionStartDate
	c.MissionType = in.MissionType
	c.DueDate = in.DueDate
	c.Observations = in.Observations
	c.UpdatedAt = s.now()

	if err := s.store.UpdateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	if c.MissionID != "" {
		if err := s.syncMission(ctx, c, in.AdministrativeEdit); err != nil {
			return nil, err
		}
	}

	_ = s.bus.PublishCase(c.ID, map[string]interface{}{
		"type":    "case.updated",
		"caseId":  c.ID,
		"actorId": actor.ID,
	})
	return c, nil
}

func (s *CaseService) syncMission(ctx context.Context, c *model.ProtectionCase, withDueDate bool) error {
	m, err := s.store.GetMission(ctx, c.MissionID)
	if err != nil {
		return fmt.Errorf("linked mission not found: %w", err)
	}
	previousDue := m.DueDate
	synced := mission.SyncFromCase(*m, *c, withDueDate)
	synced.UpdatedAt = s.now()
	if err := s.store.UpdateMission(ctx, &synced); err != nil {
		return fmt.Errorf("failed to sync mission: %w", err)
	}
	if !synced.DueDate.Equal(previousDue) {
		scheduleMissionJobs(s.jobClient, s.log, synced)
	}
	_ = s.bus.PublishMission(synced.ID, map[string]interface{}{
		"type":      "mission.synced",
		"missionId": synced.ID,
		"caseId":    c.ID,
	})
	return nil
}

// FamilyMemberInput carries the editable family member fields
type FamilyMemberInput struct {
	model.Identity
	Relationship   string     `json:"relationship" validate:"required"`
	BirthDate      *time.Time `json:"birthDate,omitempty"`
	ResidencePlace string     `json:"residencePlace,omitempty"`
}

func (in FamilyMemberInput) check() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if _, ok := refdata.Lookup(refdata.DocumentTypes, in.DocumentType); !ok {
		return invalid("documentType", "unknown document type")
	}
	if _, ok := refdata.Lookup(refdata.Relationships, in.Relationship); !ok {
		return invalid("relationship", "unknown relationship")
	}
	return nil
}

func (s *CaseService) mutateFamily(ctx context.Context, caseID string, fn func(c *model.ProtectionCase) error) (*model.ProtectionCase, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("case not found: %w", err)
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}
	_ = s.bus.PublishCase(c.ID, map[string]interface{}{
		"type":   "case.family_changed",
		"caseId": c.ID,
	})
	return c, nil
}

func findMember(c *model.ProtectionCase, memberID string) (int, error) {
	for i := range c.FamilyMembers {
		if c.FamilyMembers[i].ID == memberID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("family member %s: %w", memberID, store.ErrNotFound)
}

func (s *CaseService) AddFamilyMember(ctx context.Context, caseID string, in FamilyMemberInput) (*model.ProtectionCase, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	return s.mutateFamily(ctx, caseID, func(c *model.ProtectionCase) error {
		c.FamilyMembers = append(c.FamilyMembers, model.FamilyMember{
			ID:             ulid.Make().String(),
			Identity:       in.Identity,
			Relationship:   in.Relationship,
			BirthDate:      in.BirthDate,
			ResidencePlace: in.ResidencePlace,
			IsActive:       true,
		})
		return nil
	})
}

func (s *CaseService) UpdateFamilyMember(ctx context.Context, caseID, memberID string, in FamilyMemberInput) (*model.ProtectionCase, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	return s.mutateFamily(ctx, caseID, func(c *model.ProtectionCase) error {
		i, err := findMember(c, memberID)
		if err != nil {
			return err
		}
		f := &c.FamilyMembers[i]
		f.Identity = in.Identity
		f.Relationship = in.Relationship
		f.BirthDate = in.BirthDate
		f.ResidencePlace = in.ResidencePlace
		return nil
	})
}

// ToggleFamilyMember flips a member between active and inactive
func (s *CaseService) ToggleFamilyMember(ctx context.Context, caseID, memberID string) (*model.ProtectionCase, error) {
	return s.mutateFamily(ctx, caseID, func(c *model.ProtectionCase) error {
		i, err := findMember(c, memberID)
		if err != nil {
			return err
		}
		c.FamilyMembers[i].IsActive = !c.FamilyMembers[i].IsActive
		return nil
	})
}

// Upload is one file offered for a case
type Upload struct {
	storage.Candidate
	Body io.Reader
}

// AttachmentReport lists what was stored and what was refused
type AttachmentReport struct {
	Accepted []model.Attachment    `json:"accepted"`
	Rejected []storage.Rejection   `json:"rejected"`
	Case     *model.ProtectionCase `json:"case"`
}

// AddAttachments validates a batch against the attachment policy, stores the
// admitted files and records them on the case. Refused files are reported,
// never stored.
func (s *CaseService) AddAttachments(ctx context.Context, caseID string, uploads []Upload) (*AttachmentReport, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("case not found: %w", err)
	}

	candidates := make([]storage.Candidate, len(uploads))
	for i, u := range uploads {
		candidates[i] = u.Candidate
	}
	admitted, refused := s.policy.ValidateBatch(candidates)

	report := &AttachmentReport{Accepted: []model.Attachment{}, Rejected: refused}
	now := s.now()
	next := 0
	for _, u := range uploads {
		// admitted keeps the input order
		if next >= len(admitted) || admitted[next] != u.Candidate {
			continue
		}
		next++
		attID := ulid.Make().String()
		name := storage.ObjectName(c.ID, attID, u.Name)
		put, err := s.files.Put(ctx, name, u.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", u.Name, err)
		}
		att := storage.NewAttachment(attID, u.Name, s.files.URL(name), u.ContentType, put, now)
		if err := storage.ValidateAttachment(att); err != nil {
			return nil, fmt.Errorf("invalid attachment %s: %w", u.Name, err)
		}
		report.Accepted = append(report.Accepted, att)
	}

	if len(report.Accepted) > 0 {
		c.Attachments = append(c.Attachments, report.Accepted...)
		c.UpdatedAt = now
		if err := s.store.UpdateCase(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to record attachments: %w", err)
		}
		_ = s.bus.PublishCase(c.ID, map[string]interface{}{
			"type":     "case.attachments_added",
			"caseId":   c.ID,
			"accepted": len(report.Accepted),
		})
	}
	report.Case = c
	return report, nil
}
