package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"protectbox/internal/model"
	"protectbox/internal/refdata"
	"protectbox/internal/store"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// EventBus is the event fan-out used by the services
type EventBus interface {
	PublishMission(missionID string, event map[string]interface{}) error
	PublishRegional(regional string, event map[string]interface{}) error
	PublishOfficial(official string, event map[string]interface{}) error
	PublishRequest(requestID string, event map[string]interface{}) error
	PublishCase(caseID string, event map[string]interface{}) error
}

type RequestService struct {
	store     store.Store
	bus       EventBus
	jobClient JobClient
	log       *zap.Logger
	now       func() time.Time
}

func NewRequestService(st store.Store, bus EventBus, log *zap.Logger) *RequestService {
	return &RequestService{
		store:     st,
		bus:       bus,
		jobClient: nil, // Will be set if job client is available
		log:       log,
		now:       time.Now,
	}
}

// SetJobClient sets the job client for scheduling background jobs
func (s *RequestService) SetJobClient(client JobClient) {
	s.jobClient = client
}

// SetClock replaces the time source
func (s *RequestService) SetClock(now func() time.Time) {
	s.now = now
}

type CreateRequestInput struct {
	NUNC        string         `json:"nunc" validate:"required"`
	Applicant   model.Identity `json:"applicant"`
	Summary     string         `json:"summary,omitempty"`
	OfficialID  string         `json:"officialId,omitempty"`
	SubmittedBy string         `json:"-"`
}

func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*model.ProtectionRequest, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if _, ok := refdata.Lookup(refdata.DocumentTypes, input.Applicant.DocumentType); !ok {
		return nil, invalid("applicant.documentType", "unknown document type")
	}
	if input.OfficialID != "" {
		if _, ok := refdata.FindOfficial(input.OfficialID); !ok {
			return nil, invalid("officialId", "unknown official")
		}
	}

	req := &model.ProtectionRequest{
		ID:          ulid.Make().String(),
		NUNC:        strings.TrimSpace(input.NUNC),
		Status:      model.RequestStatusCreated,
		Applicant:   input.Applicant,
		Summary:     input.Summary,
		SubmittedAt: s.now(),
		SubmittedBy: input.SubmittedBy,
		OfficialID:  input.OfficialID,
		IsActive:    true,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	_ = s.bus.PublishRequest(req.ID, map[string]interface{}{
		"type":      "request.created",
		"requestId": req.ID,
	})

	s.log.Info("Request created", zap.String("request_id", req.ID), zap.String("nunc", req.NUNC))
	return req, nil
}

func (s *RequestService) Get(ctx context.Context, id string) (*model.ProtectionRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}
	return req, nil
}

func (s *RequestService) List(ctx context.Context, f store.RequestFilter) ([]model.ProtectionRequest, error) {
	return s.store.ListRequests(ctx, f)
}

// Deactivate soft-deletes a request. Deactivating twice is a no-op.
func (s *RequestService) Deactivate(ctx context.Context, id string) (*model.ProtectionRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}
	if !req.IsActive {
		return req, nil
	}
	req.IsActive = false
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to deactivate request: %w", err)
	}

	_ = s.bus.PublishRequest(id, map[string]interface{}{
		"type":      "request.deactivated",
		"requestId": id,
	})
	return req, nil
}

// File stamps a request with its radicado. Only active CREATED requests
// can be filed; the number is drawn after the guard so a rejected attempt
// never consumes one.
func (s *RequestService) File(ctx context.Context, actor model.Actor, id string) (*model.ProtectionRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}
	if req.Status != model.RequestStatusCreated {
		return nil, rejected("file", "request is already %s", req.Status)
	}
	if !req.IsActive {
		return nil, rejected("file", "request is inactive")
	}

	now := s.now()
	seq, err := s.store.NextSequence(ctx, fmt.Sprintf("radicado:%d", now.Year()))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate radicado: %w", err)
	}

	req.Radicado = FormatRadicado(now.Year(), seq)
	req.RadicationDate = &now
	req.Status = model.RequestStatusFiled
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to file request: %w", err)
	}

	event := map[string]interface{}{
		"type":      "request.filed",
		"requestId": id,
		"radicado":  req.Radicado,
		"filedBy":   actor.ID,
	}
	_ = s.bus.PublishRequest(id, event)

	if req.OfficialID != "" {
		if s.jobClient != nil {
			if err := s.jobClient.NotifyRequestFiled(id); err != nil {
				s.log.Warn("Failed to enqueue filing notification", zap.String("request_id", id), zap.Error(err))
			}
		} else {
			_ = s.bus.PublishOfficial(req.OfficialID, event)
		}
	}

	s.log.Info("Request filed", zap.String("request_id", id), zap.String("radicado", req.Radicado))
	return req, nil
}

// FormatRadicado renders a filing number from its year and sequence value
func FormatRadicado(year int, seq int64) string {
	return fmt.Sprintf("RAD-%d-%06d", year, seq)
}
