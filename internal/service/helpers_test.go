package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"protectbox/internal/ai"
	"protectbox/internal/forms"
	"protectbox/internal/model"
	"protectbox/internal/schema"
	"protectbox/internal/storage"
	"protectbox/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return now }

var (
	national = model.Actor{ID: "nat-001", Role: model.RoleNationalLead}
	regional = model.Actor{ID: "lead-001", Role: model.RoleRegionalLead, Regional: "Centro Sur"}
	official = model.Actor{ID: "off-001", Role: model.RoleOfficial, Regional: "Centro Sur"}
	fiscal   = model.Actor{ID: "fis-001", Role: model.RoleFiscal}
	opener   = model.Actor{ID: "open-001", Role: model.RoleCaseOpener}
)

type busEvent struct {
	channel string
	event   map[string]interface{}
}

// MockEventBus implements EventBus for testing
type MockEventBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (m *MockEventBus) record(channel string, event map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, busEvent{channel, event})
	return nil
}

func (m *MockEventBus) PublishMission(id string, e map[string]interface{}) error {
	return m.record("mission:"+id, e)
}

func (m *MockEventBus) PublishRegional(name string, e map[string]interface{}) error {
	return m.record("regional:"+name, e)
}

func (m *MockEventBus) PublishOfficial(id string, e map[string]interface{}) error {
	return m.record("official:"+id, e)
}

func (m *MockEventBus) PublishRequest(id string, e map[string]interface{}) error {
	return m.record("request:"+id, e)
}

func (m *MockEventBus) PublishCase(id string, e map[string]interface{}) error {
	return m.record("case:"+id, e)
}

func (m *MockEventBus) channels(eventType string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		if e.event["type"] == eventType {
			out = append(out, e.channel)
		}
	}
	return out
}

// MockJobClient records scheduling calls
type MockJobClient struct {
	mu       sync.Mutex
	windows  []string
	overdues []string
	filed    []string
}

func (m *MockJobClient) ScheduleExtensionWindow(ms model.Mission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, ms.ID)
	return nil
}

func (m *MockJobClient) ScheduleOverdue(ms model.Mission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overdues = append(m.overdues, ms.ID)
	return nil
}

func (m *MockJobClient) NotifyRequestFiled(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filed = append(m.filed, id)
	return nil
}

type fakeSummarizer struct {
	inputs []ai.Input
	reply  string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, in ai.Input) string {
	f.inputs = append(f.inputs, in)
	return f.reply
}

type fixture struct {
	store    *store.Memory
	bus      *MockEventBus
	jobs     *MockJobClient
	ai       *fakeSummarizer
	requests *RequestService
	cases    *CaseService
	missions *MissionService
	forms    *FormService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	st := store.NewMemory()
	bus := &MockEventBus{}
	jobs := &MockJobClient{}

	files, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	policy := storage.NewAttachmentPolicy(1, []string{"pdf", "png"})

	comp := schema.NewCompilerWithCache(16, time.Minute)
	require.NoError(t, forms.RegisterSchemas(comp))
	sum := &fakeSummarizer{reply: "Riesgo extraordinario."}

	f := &fixture{
		store:    st,
		bus:      bus,
		jobs:     jobs,
		ai:       sum,
		requests: NewRequestService(st, bus, log),
		cases:    NewCaseService(st, bus, files, policy, log),
		missions: NewMissionService(st, bus, log),
		forms:    NewFormService(st, comp, sum, bus, log),
	}
	f.requests.SetJobClient(jobs)
	f.cases.SetJobClient(jobs)
	f.missions.SetJobClient(jobs)
	f.requests.SetClock(clock)
	f.cases.SetClock(clock)
	f.missions.SetClock(clock)
	f.forms.SetClock(clock)
	return f
}

func applicant(doc string) model.Identity {
	return model.Identity{
		PersonName:     model.PersonName{FirstName: "Ana", FirstSurname: "Díaz"},
		DocumentType:   "CC",
		DocumentNumber: doc,
	}
}

// filedRequest creates and files a request for the given document
func (f *fixture) filedRequest(t *testing.T, doc string) *model.ProtectionRequest {
	t.Helper()
	ctx := context.Background()
	r, err := f.requests.Create(ctx, CreateRequestInput{NUNC: "410016000584202300123", Applicant: applicant(doc), OfficialID: "off-001", SubmittedBy: fiscal.ID})
	require.NoError(t, err)
	r, err = f.requests.File(ctx, fiscal, r.ID)
	require.NoError(t, err)
	return r
}

func draftFor(requestID string, generate bool) model.CaseDraft {
	due := now.AddDate(0, 0, 10)
	d := model.CaseDraft{
		RequestID:               requestID,
		DestinationRegional:     "Centro Sur",
		RemittingEntity:         "Fiscalía 12 Seccional",
		CandidateClassification: "TESTIGO",
		Subject:                 "Amenazas contra testigo",
		Area:                    "PROTECCION",
		Observations:            "Initial observation",
		GenerateMission:         generate,
	}
	if generate {
		d.MissionType = "EVR"
		d.DueDate = &due
	}
	return d
}

// openCase files a request and opens a case that spawns a mission
func (f *fixture) openCase(t *testing.T, doc string) (*model.ProtectionCase, *model.Mission) {
	t.Helper()
	r := f.filedRequest(t, doc)
	res, err := f.cases.BeginOpening(context.Background(), opener, draftFor(r.ID, true))
	require.NoError(t, err)
	require.NotNil(t, res.Case)
	require.NotNil(t, res.Mission)
	return res.Case, res.Mission
}

// assignedMission returns a mission assigned to off-001 in Centro Sur
func (f *fixture) assignedMission(t *testing.T, doc string) *model.Mission {
	t.Helper()
	_, m := f.openCase(t, doc)
	m, err := f.missions.Dispatch(context.Background(), regional, m.ID, "assign", DispatchInput{Official: "off-001", Regional: "Centro Sur"})
	require.NoError(t, err)
	return m
}
