package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"protectbox/internal/ai"
	"protectbox/internal/forms"
	"protectbox/internal/mission"
	"protectbox/internal/model"
	"protectbox/internal/refdata"
	"protectbox/internal/render"
	"protectbox/internal/schema"
	"protectbox/internal/store"

	"go.uber.org/zap"
)

// RiskSummarizer produces the automatic risk analysis text
type RiskSummarizer interface {
	Summarize(ctx context.Context, in ai.Input) string
}

// FormService creates and maintains the interview and ITVR instruments
type FormService struct {
	store      store.Store
	schemaComp *schema.Compiler
	summarizer RiskSummarizer
	bus        EventBus
	log        *zap.Logger
	now        func() time.Time
}

func NewFormService(st store.Store, schemaComp *schema.Compiler, summarizer RiskSummarizer, bus EventBus, log *zap.Logger) *FormService {
	return &FormService{
		store:      st,
		schemaComp: schemaComp,
		summarizer: summarizer,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

// SetClock replaces the time source
func (s *FormService) SetClock(now func() time.Time) {
	s.now = now
}

// gate loads the mission and checks that actor may start or edit its forms:
// the assigned official, while the mission is assigned or active
func (s *FormService) gate(ctx context.Context, actor model.Actor, missionID string, t mission.Transition) (*model.Mission, error) {
	m, err := s.store.GetMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("mission not found: %w", err)
	}
	res := mission.Check(*m, mission.Command{Transition: t, Actor: actor}, s.now())
	if !res.Allowed {
		return nil, &RejectedError{Op: string(t), Reason: res.Reason}
	}
	return m, nil
}

func schemaError(err error) error {
	if v := schema.Violations(err); len(v) > 0 {
		return &ValidationError{Fields: v}
	}
	return err
}

func (s *FormService) StartInterview(ctx context.Context, actor model.Actor, missionID string) (*forms.InterviewForm, error) {
	m, err := s.gate(ctx, actor, missionID, mission.StartInterview)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCase(ctx, m.CaseID)
	if err != nil {
		return nil, fmt.Errorf("case not found: %w", err)
	}

	f := forms.NewInterview(*m, *c, actor.ID, s.now())
	if err := s.store.SaveInterview(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save interview: %w", err)
	}
	s.publish(m, "form.interview_started", f.ID)
	return f, nil
}

func (s *FormService) StartITVR(ctx context.Context, actor model.Actor, missionID string) (*forms.ITVRForm, error) {
	m, err := s.gate(ctx, actor, missionID, mission.StartRiskAssessment)
	if err != nil {
		return nil, err
	}

	f := forms.NewITVR(*m, actor.ID, s.now())
	if err := s.store.SaveITVR(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save assessment: %w", err)
	}
	s.publish(m, "form.itvr_started", f.ID)
	return f, nil
}

func (s *FormService) publish(m *model.Mission, eventType, formID string) {
	_ = s.bus.PublishMission(m.ID, map[string]interface{}{
		"type":      eventType,
		"missionId": m.ID,
		"formId":    formID,
	})
}

func (s *FormService) GetInterview(ctx context.Context, id string) (*forms.InterviewForm, error) {
	f, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("interview not found: %w", err)
	}
	f.Recompute(s.now())
	return f, nil
}

func (s *FormService) GetITVR(ctx context.Context, id string) (*forms.ITVRForm, error) {
	f, err := s.store.GetITVR(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("assessment not found: %w", err)
	}
	return f, nil
}

// SaveInterview overwrites an interview. The identity and mission keys of the
// stored form are kept; ages are recomputed from birth dates.
func (s *FormService) SaveInterview(ctx context.Context, actor model.Actor, id string, in forms.InterviewForm) (*forms.InterviewForm, error) {
	cur, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("interview not found: %w", err)
	}
	if _, err := s.gate(ctx, actor, cur.MissionID, mission.StartInterview); err != nil {
		return nil, err
	}
	now := s.now()
	in.ID = cur.ID
	in.MissionID = cur.MissionID
	in.MissionNumber = cur.MissionNumber
	in.CaseRadicado = cur.CaseRadicado
	in.InterviewedBy = cur.InterviewedBy
	in.CreatedAt = cur.CreatedAt
	in.UpdatedAt = now
	if in.Family == nil {
		in.Family = []forms.FamilyRow{}
	}
	if in.Pets == nil {
		in.Pets = []forms.PetRow{}
	}
	in.Recompute(now)

	if err := forms.ValidateInterview(ctx, s.schemaComp, &in); err != nil {
		return nil, schemaError(err)
	}
	for i, r := range in.Family {
		if r.Relationship != "" {
			if _, ok := refdata.Lookup(refdata.Relationships, r.Relationship); !ok {
				return nil, invalid(fmt.Sprintf("family.%d.relationship", i), "unknown relationship")
			}
		}
	}

	if err := s.store.SaveInterview(ctx, &in); err != nil {
		return nil, fmt.Errorf("failed to save interview: %w", err)
	}
	return &in, nil
}

// SaveITVR overwrites an assessment. Weights are always re-derived from the
// catalog, so client-supplied weights are ignored.
func (s *FormService) SaveITVR(ctx context.Context, actor model.Actor, id string, in forms.ITVRForm) (*forms.ITVRForm, forms.Score, error) {
	cur, err := s.store.GetITVR(ctx, id)
	if err != nil {
		return nil, forms.Score{}, fmt.Errorf("assessment not found: %w", err)
	}
	if _, err := s.gate(ctx, actor, cur.MissionID, mission.StartRiskAssessment); err != nil {
		return nil, forms.Score{}, err
	}
	in.ID = cur.ID
	in.MissionID = cur.MissionID
	in.MissionNumber = cur.MissionNumber
	in.CaseRadicado = cur.CaseRadicado
	in.AssessedBy = cur.AssessedBy
	in.CreatedAt = cur.CreatedAt
	in.Summary = cur.Summary
	in.UpdatedAt = s.now()

	if err := forms.ValidateITVR(ctx, s.schemaComp, &in); err != nil {
		return nil, forms.Score{}, schemaError(err)
	}
	if err := in.Reweigh(); err != nil {
		switch {
		case errors.Is(err, forms.ErrUnknownFactor), errors.Is(err, forms.ErrUnknownOption):
			return nil, forms.Score{}, invalid("answers", err.Error())
		}
		return nil, forms.Score{}, err
	}
	sc, err := in.Score()
	if err != nil {
		return nil, forms.Score{}, invalid("answers", err.Error())
	}

	if err := s.store.SaveITVR(ctx, &in); err != nil {
		return nil, forms.Score{}, fmt.Errorf("failed to save assessment: %w", err)
	}
	return &in, sc, nil
}

// Score computes an assessment's current score
func (s *FormService) Score(ctx context.Context, id string) (*forms.ITVRForm, forms.Score, error) {
	f, err := s.GetITVR(ctx, id)
	if err != nil {
		return nil, forms.Score{}, err
	}
	sc, err := f.Score()
	if err != nil {
		return nil, forms.Score{}, err
	}
	return f, sc, nil
}

// Summarize asks for the automatic risk analysis and stores it on the
// assessment. The summarizer degrades to its fallback text on any failure.
func (s *FormService) Summarize(ctx context.Context, id string) (*forms.ITVRForm, error) {
	f, sc, err := s.Score(ctx, id)
	if err != nil {
		return nil, err
	}
	facts := ai.CaseFacts{
		MissionNumber: f.MissionNumber,
		CaseRadicado:  f.CaseRadicado,
		Candidate:     f.Candidate.FullName(),
		Total:         sc.Total.StringFixed(2),
		Tier:          sc.TierLabel,
	}
	if m, err := s.store.GetMission(ctx, f.MissionID); err == nil {
		facts.MissionType = m.MissionType
		facts.Regional = m.Regional
	}

	f.Summary = s.summarizer.Summarize(ctx, ai.Input{Narrative: f.Narrative, Facts: facts})
	f.UpdatedAt = s.now()
	if err := s.store.SaveITVR(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}
	return f, nil
}

// InterviewView renders an interview as form fields, read-only in audit mode
func (s *FormService) InterviewView(ctx context.Context, id string, audit bool) (render.Form, error) {
	f, err := s.GetInterview(ctx, id)
	if err != nil {
		return render.Form{}, err
	}
	return render.InterviewForm(*f, audit), nil
}

// ITVRView renders an assessment as form fields, read-only in audit mode
func (s *FormService) ITVRView(ctx context.Context, id string, audit bool) (render.Form, error) {
	f, err := s.GetITVR(ctx, id)
	if err != nil {
		return render.Form{}, err
	}
	return render.ITVRForm(*f, audit), nil
}

// Document builds the printable assessment
func (s *FormService) Document(ctx context.Context, id string) (render.Document, error) {
	f, sc, err := s.Score(ctx, id)
	if err != nil {
		return render.Document{}, err
	}
	return render.AssessmentDocument(*f, sc, s.now()), nil
}
