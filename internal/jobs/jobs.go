package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"protectbox/internal/mission"
	"protectbox/internal/model"
	"protectbox/internal/store"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeExtensionWindow = "mission:extension_window"
	TypeOverdue         = "mission:overdue"
	TypeRequestFiled    = "request:filed"
)

// Publisher is the slice of the event bus the job handlers need
type Publisher interface {
	PublishMission(missionID string, event map[string]interface{}) error
	PublishRegional(regional string, event map[string]interface{}) error
	PublishOfficial(official string, event map[string]interface{}) error
}

// Enqueuer is satisfied by *asynq.Client
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Handlers process the background tasks. Every handler re-reads current
// state and does nothing when the record has moved on.
type Handlers struct {
	store store.Store
	bus   Publisher
	log   *zap.Logger
	now   func() time.Time
}

func NewHandlers(st store.Store, bus Publisher, log *zap.Logger) *Handlers {
	return &Handlers{store: st, bus: bus, log: log, now: time.Now}
}

// Register wires the handlers into a serve mux
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeExtensionWindow, h.HandleExtensionWindow)
	mux.HandleFunc(TypeOverdue, h.HandleOverdue)
	mux.HandleFunc(TypeRequestFiled, h.HandleRequestFiled)
}

type JobServer struct {
	server   *asynq.Server
	client   *asynq.Client
	handlers *Handlers
	log      *zap.Logger
}

func NewJobServer(redisAddr string, st store.Store, bus Publisher, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server:   server,
		client:   client,
		handlers: NewHandlers(st, bus, log),
		log:      log,
	}, client
}

func (js *JobServer) Start() error {
	mux := asynq.NewServeMux()
	js.handlers.Register(mux)
	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	js.server.Shutdown()
	js.client.Close()
}

// Job handlers

func (h *Handlers) HandleExtensionWindow(ctx context.Context, t *asynq.Task) error {
	missionID := string(t.Payload())

	m, err := h.store.GetMission(ctx, missionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get mission: %w", err)
	}

	if !mission.ExtensionEligible(*m, h.now()) {
		return nil
	}

	event := map[string]interface{}{
		"type":      "mission.extension_window_open",
		"missionId": m.ID,
		"number":    m.Number,
		"dueDate":   m.DueDate.Format(time.RFC3339),
	}
	_ = h.bus.PublishMission(m.ID, event)
	if m.Regional != "" {
		_ = h.bus.PublishRegional(m.Regional, event)
	}
	if m.AssignedOfficial != "" {
		_ = h.bus.PublishOfficial(m.AssignedOfficial, event)
	}

	h.log.Info("Extension window notification sent", zap.String("mission_id", m.ID))
	return nil
}

func (h *Handlers) HandleOverdue(ctx context.Context, t *asynq.Task) error {
	missionID := string(t.Payload())

	m, err := h.store.GetMission(ctx, missionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get mission: %w", err)
	}

	if m.Status == model.MissionStatusFinalized || m.Status == model.MissionStatusCancelled {
		return nil
	}
	// an extension may have moved the due date since this task was queued
	if h.now().Before(mission.OverdueAt(*m)) {
		return nil
	}

	event := map[string]interface{}{
		"type":      "mission.overdue",
		"missionId": m.ID,
		"number":    m.Number,
		"dueDate":   m.DueDate.Format(time.RFC3339),
	}
	_ = h.bus.PublishMission(m.ID, event)
	if m.Regional != "" {
		_ = h.bus.PublishRegional(m.Regional, event)
	}

	h.log.Info("Mission overdue", zap.String("mission_id", m.ID))
	return nil
}

func (h *Handlers) HandleRequestFiled(ctx context.Context, t *asynq.Task) error {
	requestID := string(t.Payload())

	req, err := h.store.GetRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get request: %w", err)
	}

	if req.Status != model.RequestStatusFiled || req.OfficialID == "" {
		return nil
	}

	_ = h.bus.PublishOfficial(req.OfficialID, map[string]interface{}{
		"type":      "request.filed",
		"requestId": req.ID,
		"radicado":  req.Radicado,
	})

	h.log.Info("Filing notification sent", zap.String("request_id", req.ID), zap.String("official", req.OfficialID))
	return nil
}

// Schedule jobs

func enqueueAt(client Enqueuer, taskType, id string, at time.Time, now time.Time) error {
	if at.Before(now) {
		return nil // already past
	}
	return enqueueIn(client, taskType, id, at, at.Sub(now))
}

// enqueueIn keys the task on the scheduled instant so rescheduling the same
// instant is a no-op
func enqueueIn(client Enqueuer, taskType, id string, at time.Time, delay time.Duration) error {
	task := asynq.NewTask(taskType, []byte(id))
	taskID := fmt.Sprintf("%s:%s:%d", taskType, id, at.Unix())
	_, err := client.Enqueue(task, asynq.ProcessIn(delay), asynq.TaskID(taskID))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ScheduleExtensionWindow queues the notification for when the mission's
// extension window opens. A window that is already open is notified right away.
func ScheduleExtensionWindow(client Enqueuer, m model.Mission, now time.Time) error {
	if m.ExtensionRequested || m.DueDate.IsZero() {
		return nil
	}
	opens := mission.ExtensionWindowOpensAt(m)
	if !opens.Before(now) {
		return enqueueIn(client, TypeExtensionWindow, m.ID, opens, opens.Sub(now))
	}
	if !mission.ExtensionEligible(m, now) {
		return nil
	}
	return enqueueIn(client, TypeExtensionWindow, m.ID, opens, 0)
}

// ScheduleOverdue queues the overdue check for the day after the due date
func ScheduleOverdue(client Enqueuer, m model.Mission, now time.Time) error {
	if m.DueDate.IsZero() {
		return nil
	}
	return enqueueAt(client, TypeOverdue, m.ID, mission.OverdueAt(m), now)
}

// NotifyRequestFiled queues the filing notification for immediate delivery
func NotifyRequestFiled(client Enqueuer, requestID string) error {
	task := asynq.NewTask(TypeRequestFiled, []byte(requestID))
	_, err := client.Enqueue(task, asynq.Queue("critical"))
	return err
}
