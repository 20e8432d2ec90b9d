package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"protectbox/internal/mission"
	"protectbox/internal/model"
	"protectbox/internal/render"
	"protectbox/internal/store"

	"go.uber.org/zap"
)

type MissionService struct {
	store     store.Store
	bus       EventBus
	jobClient JobClient
	log       *zap.Logger
	now       func() time.Time
}

func NewMissionService(st store.Store, bus EventBus, log *zap.Logger) *MissionService {
	return &MissionService{
		store: st,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

// SetJobClient sets the job client for scheduling background jobs
func (s *MissionService) SetJobClient(client JobClient) {
	s.jobClient = client
}

// SetClock replaces the time source
func (s *MissionService) SetClock(now func() time.Time) {
	s.now = now
}

func scheduleMissionJobs(jc JobClient, log *zap.Logger, m model.Mission) {
	if jc == nil {
		return
	}
	if err := jc.ScheduleExtensionWindow(m); err != nil {
		log.Warn("Failed to schedule extension window job", zap.String("mission_id", m.ID), zap.Error(err))
	}
	if err := jc.ScheduleOverdue(m); err != nil {
		log.Warn("Failed to schedule overdue job", zap.String("mission_id", m.ID), zap.Error(err))
	}
}

// DispatchInput is the payload of a mission command. A non-zero Version must
// match the stored mission.
type DispatchInput struct {
	Version         int64  `json:"version,omitempty"`
	Official        string `json:"official,omitempty"`
	Regional        string `json:"regional,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ExtensionReason string `json:"extensionReason,omitempty"`
}

// Dispatch applies one transition to a mission and persists the result
func (s *MissionService) Dispatch(ctx context.Context, actor model.Actor, missionID string, t mission.Transition, in DispatchInput) (*model.Mission, error) {
	if t == mission.StartInterview || t == mission.StartRiskAssessment {
		return nil, rejected(string(t), "forms are started through the forms endpoints")
	}

	m, err := s.store.GetMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("mission not found: %w", err)
	}
	if in.Version != 0 && in.Version != m.Version {
		return nil, fmt.Errorf("mission %s at version %d, got %d: %w", missionID, m.Version, in.Version, store.ErrVersionConflict)
	}

	now := s.now()
	cmd := mission.Command{
		Transition:      t,
		Actor:           actor,
		Official:        in.Official,
		Regional:        in.Regional,
		Reason:          in.Reason,
		ExtensionReason: in.ExtensionReason,
	}
	next, res := mission.Apply(*m, cmd, now)
	if !res.Allowed {
		s.log.Info("Mission command rejected",
			zap.String("mission_id", missionID),
			zap.String("transition", string(t)),
			zap.String("role", string(actor.Role)),
			zap.String("reason", res.Reason),
		)
		return nil, &RejectedError{Op: string(t), Reason: res.Reason}
	}

	if err := s.store.UpdateMission(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to update mission: %w", err)
	}

	s.publishTransition(*m, next, t, actor)

	switch t {
	case mission.Assign, mission.ReassignRegional, mission.ReassignAfterReturn,
		mission.Reactivate, mission.RequestExtension:
		scheduleMissionJobs(s.jobClient, s.log, next)
	}

	s.log.Info("Mission transition applied",
		zap.String("mission_id", missionID),
		zap.String("transition", string(t)),
		zap.String("from", string(m.Status)),
		zap.String("to", string(next.Status)),
	)
	return &next, nil
}

func (s *MissionService) publishTransition(prev, next model.Mission, t mission.Transition, actor model.Actor) {
	event := map[string]interface{}{
		"type":      "mission." + string(t),
		"missionId": next.ID,
		"number":    next.Number,
		"status":    string(next.Status),
		"actorId":   actor.ID,
	}
	_ = s.bus.PublishMission(next.ID, event)

	regionals := []string{next.Regional}
	if prev.Regional != "" && !strings.EqualFold(prev.Regional, next.Regional) {
		regionals = append(regionals, prev.Regional)
	}
	for _, r := range regionals {
		if r != "" {
			_ = s.bus.PublishRegional(r, event)
		}
	}

	officials := []string{next.AssignedOfficial}
	if prev.AssignedOfficial != "" && prev.AssignedOfficial != next.AssignedOfficial {
		officials = append(officials, prev.AssignedOfficial)
	}
	for _, o := range officials {
		if o != "" {
			_ = s.bus.PublishOfficial(o, event)
		}
	}
}

func (s *MissionService) Get(ctx context.Context, id string) (*model.Mission, error) {
	m, err := s.store.GetMission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mission not found: %w", err)
	}
	return m, nil
}

// InboxItem is a mission plus the actions the viewer may offer on it
type InboxItem struct {
	Mission           model.Mission        `json:"mission"`
	Actions           []mission.Transition `json:"actions"`
	ExtensionEligible bool                 `json:"extensionEligible"`
}

// Inbox is one filtered work list
type Inbox struct {
	Filter mission.Filter `json:"filter"`
	Items  []InboxItem    `json:"items"`
}

// Inbox lists the missions visible to actor under filter. Officials see
// missions assigned to them; regional leads see their regional unit plus
// missions not yet routed to any regional.
func (s *MissionService) Inbox(ctx context.Context, actor model.Actor, f mission.Filter) (*Inbox, error) {
	var mf store.MissionFilter
	if actor.Role == model.RoleOfficial {
		mf.Official = actor.ID
	}

	all, err := s.store.ListMissions(ctx, mf)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	if actor.Role == model.RoleRegionalLead {
		scoped := all[:0]
		for _, m := range all {
			if m.Regional == "" || strings.EqualFold(m.Regional, actor.Regional) {
				scoped = append(scoped, m)
			}
		}
		all = scoped
	}

	today := s.now()
	actions := mission.ActionsFor(f, actor.Role)
	selected := mission.Select(all, f)
	out := &Inbox{Filter: f, Items: make([]InboxItem, 0, len(selected))}
	for _, m := range selected {
		out.Items = append(out.Items, InboxItem{
			Mission:           m,
			Actions:           actions,
			ExtensionEligible: mission.ExtensionEligible(m, today),
		})
	}
	return out, nil
}

// ExtensionStatus describes where a mission stands against its extension window
type ExtensionStatus struct {
	Eligible        bool      `json:"eligible"`
	AlreadyExtended bool      `json:"alreadyExtended"`
	DaysUntilDue    int       `json:"daysUntilDue"`
	DueDate         time.Time `json:"dueDate"`
	WindowOpensAt   time.Time `json:"windowOpensAt"`
}

func (s *MissionService) ExtensionStatus(ctx context.Context, id string) (*ExtensionStatus, error) {
	m, err := s.store.GetMission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mission not found: %w", err)
	}
	today := s.now()
	return &ExtensionStatus{
		Eligible:        mission.ExtensionEligible(*m, today),
		AlreadyExtended: m.ExtensionRequested,
		DaysUntilDue:    mission.DaysUntil(m.DueDate, today),
		DueDate:         m.DueDate,
		WindowOpensAt:   mission.ExtensionWindowOpensAt(*m),
	}, nil
}

// Reason returns the latest rationale recorded under tag. The tag may be a
// transition name or a tag prefix; the structured log is searched first and
// the rendered observations text second.
func (s *MissionService) Reason(ctx context.Context, id, tag string) (string, bool, error) {
	m, err := s.store.GetMission(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("mission not found: %w", err)
	}

	prefix := tag
	if t, ok := mission.ParseTransition(tag); ok {
		if p, ok := mission.TagPrefix(t); ok {
			prefix = p
		}
	}
	if e, ok := mission.LastEntry(m.Log, prefix); ok {
		return e.Reason, true, nil
	}
	r, ok := mission.ExtractReason(m.Observations, prefix)
	return r, ok, nil
}

// Document builds the printable view of a mission and its case
func (s *MissionService) Document(ctx context.Context, id string) (render.Document, error) {
	m, err := s.store.GetMission(ctx, id)
	if err != nil {
		return render.Document{}, fmt.Errorf("mission not found: %w", err)
	}
	c, err := s.store.GetCase(ctx, m.CaseID)
	if err != nil {
		return render.Document{}, fmt.Errorf("case not found: %w", err)
	}
	return render.MissionDocument(*m, *c, s.now()), nil
}
