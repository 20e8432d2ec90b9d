package jobs

import (
	"context"
	"testing"
	"time"

	"protectbox/internal/model"
	"protectbox/internal/store"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	channel string
	event   map[string]interface{}
}

type fakeBus struct {
	events []published
}

func (b *fakeBus) PublishMission(id string, e map[string]interface{}) error {
	b.events = append(b.events, published{"mission:" + id, e})
	return nil
}

func (b *fakeBus) PublishRegional(name string, e map[string]interface{}) error {
	b.events = append(b.events, published{"regional:" + name, e})
	return nil
}

func (b *fakeBus) PublishOfficial(id string, e map[string]interface{}) error {
	b.events = append(b.events, published{"official:" + id, e})
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

var now = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

func setup(t *testing.T, m model.Mission) (*Handlers, *fakeBus, store.Store) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.CreateMission(context.Background(), &m))
	bus := &fakeBus{}
	h := NewHandlers(st, bus, zap.NewNop())
	h.now = func() time.Time { return now }
	return h, bus, st
}

func TestHandleExtensionWindow(t *testing.T) {
	m := model.Mission{ID: "m1", Number: "MIS-2025-00001", Status: model.MissionStatusAssigned, Regional: "Centro Sur", AssignedOfficial: "off-001", DueDate: now.AddDate(0, 0, 2)}
	h, bus, _ := setup(t, m)

	require.NoError(t, h.HandleExtensionWindow(context.Background(), asynq.NewTask(TypeExtensionWindow, []byte("m1"))))
	require.Len(t, bus.events, 3)
	assert.Equal(t, "mission:m1", bus.events[0].channel)
	assert.Equal(t, "mission.extension_window_open", bus.events[0].event["type"])
	assert.Equal(t, "regional:Centro Sur", bus.events[1].channel)
	assert.Equal(t, "official:off-001", bus.events[2].channel)
}

func TestHandleExtensionWindow_NoOpWhenAlreadyExtended(t *testing.T) {
	m := model.Mission{ID: "m1", Status: model.MissionStatusAssigned, DueDate: now.AddDate(0, 0, 2), ExtensionRequested: true}
	h, bus, _ := setup(t, m)

	require.NoError(t, h.HandleExtensionWindow(context.Background(), asynq.NewTask(TypeExtensionWindow, []byte("m1"))))
	assert.Empty(t, bus.events)
}

func TestHandleExtensionWindow_MissingMission(t *testing.T) {
	h, bus, _ := setup(t, model.Mission{ID: "m1"})
	require.NoError(t, h.HandleExtensionWindow(context.Background(), asynq.NewTask(TypeExtensionWindow, []byte("nope"))))
	assert.Empty(t, bus.events)
}

func TestHandleOverdue(t *testing.T) {
	tests := []struct {
		name   string
		status model.MissionStatus
		due    time.Time
		fires  bool
	}{
		{"active past due", model.MissionStatusActive, now.AddDate(0, 0, -1), true},
		{"finalized", model.MissionStatusFinalized, now.AddDate(0, 0, -1), false},
		{"cancelled", model.MissionStatusCancelled, now.AddDate(0, 0, -1), false},
		{"due today", model.MissionStatusActive, now, false},
		{"extended since", model.MissionStatusActive, now.AddDate(0, 0, 14), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, bus, _ := setup(t, model.Mission{ID: "m1", Status: tt.status, DueDate: tt.due})
			require.NoError(t, h.HandleOverdue(context.Background(), asynq.NewTask(TypeOverdue, []byte("m1"))))
			if tt.fires {
				require.Len(t, bus.events, 1)
				assert.Equal(t, "mission.overdue", bus.events[0].event["type"])
			} else {
				assert.Empty(t, bus.events)
			}
		})
	}
}

func TestHandleRequestFiled(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	filed := &model.ProtectionRequest{ID: "r1", Status: model.RequestStatusFiled, Radicado: "RAD-2025-000001", OfficialID: "off-001", IsActive: true}
	created := &model.ProtectionRequest{ID: "r2", Status: model.RequestStatusCreated, OfficialID: "off-001", IsActive: true}
	require.NoError(t, st.CreateRequest(ctx, filed))
	require.NoError(t, st.CreateRequest(ctx, created))

	bus := &fakeBus{}
	h := NewHandlers(st, bus, zap.NewNop())

	require.NoError(t, h.HandleRequestFiled(ctx, asynq.NewTask(TypeRequestFiled, []byte("r1"))))
	require.NoError(t, h.HandleRequestFiled(ctx, asynq.NewTask(TypeRequestFiled, []byte("r2"))))
	require.Len(t, bus.events, 1)
	assert.Equal(t, "official:off-001", bus.events[0].channel)
	assert.Equal(t, "RAD-2025-000001", bus.events[0].event["radicado"])
}

func TestScheduling(t *testing.T) {
	q := &fakeEnqueuer{}
	m := model.Mission{ID: "m1", DueDate: now.AddDate(0, 0, 10)}

	require.NoError(t, ScheduleExtensionWindow(q, m, now))
	require.NoError(t, ScheduleOverdue(q, m, now))
	require.NoError(t, NotifyRequestFiled(q, "r1"))
	require.Len(t, q.tasks, 3)
	assert.Equal(t, TypeExtensionWindow, q.tasks[0].Type())
	assert.Equal(t, "m1", string(q.tasks[0].Payload()))
	assert.Equal(t, TypeOverdue, q.tasks[1].Type())
	assert.Equal(t, TypeRequestFiled, q.tasks[2].Type())
}

func TestSchedulingOpenWindowFiresImmediately(t *testing.T) {
	q := &fakeEnqueuer{}

	open := model.Mission{ID: "m1", Status: model.MissionStatusActive, DueDate: now.AddDate(0, 0, 2)}
	require.NoError(t, ScheduleExtensionWindow(q, open, now))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TypeExtensionWindow, q.tasks[0].Type())
	assert.Equal(t, "m1", string(q.tasks[0].Payload()))

	// due today is still inside the window
	dueToday := model.Mission{ID: "m2", Status: model.MissionStatusAssigned, DueDate: now}
	require.NoError(t, ScheduleExtensionWindow(q, dueToday, now))
	require.Len(t, q.tasks, 2)

	closed := model.Mission{ID: "m3", Status: model.MissionStatusFinalized, DueDate: now.AddDate(0, 0, 2)}
	require.NoError(t, ScheduleExtensionWindow(q, closed, now))
	assert.Len(t, q.tasks, 2)
}

func TestSchedulingSkipsPastAndExtended(t *testing.T) {
	q := &fakeEnqueuer{}

	past := model.Mission{ID: "m1", DueDate: now.AddDate(0, 0, -5)}
	require.NoError(t, ScheduleExtensionWindow(q, past, now))
	require.NoError(t, ScheduleOverdue(q, past, now))

	extended := model.Mission{ID: "m2", DueDate: now.AddDate(0, 0, 20), ExtensionRequested: true}
	require.NoError(t, ScheduleExtensionWindow(q, extended, now))

	require.NoError(t, ScheduleOverdue(q, model.Mission{ID: "m3"}, now))
	assert.Empty(t, q.tasks)
}
