package pubsub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHub struct {
	mu       sync.Mutex
	channels []string
	events   []map[string]interface{}
}

func (h *recordingHub) Publish(channel string, message map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels = append(h.channels, channel)
	h.events = append(h.events, message)
}

func TestBusInProcessSequences(t *testing.T) {
	bus := New(nil, zap.NewNop())
	hub := &recordingHub{}
	bus.SetWSHub(hub)
	assert.Nil(t, bus.GetStreams())

	require.NoError(t, bus.PublishMission("m1", map[string]interface{}{"type": "mission.assign"}))
	require.NoError(t, bus.PublishMission("m1", map[string]interface{}{"type": "mission.accept"}))
	require.NoError(t, bus.PublishRegional("Pacífico", map[string]interface{}{"type": "mission.assign"}))

	require.Len(t, hub.events, 3)
	assert.Equal(t, []string{"mission:m1", "mission:m1", "regional:Pacífico"}, hub.channels)
	assert.Equal(t, int64(1), hub.events[0]["seq"])
	assert.Equal(t, int64(2), hub.events[1]["seq"])
	assert.Equal(t, int64(1), hub.events[2]["seq"])
}

func TestBusSubscribe(t *testing.T) {
	bus := New(nil, zap.NewNop())
	var got []string
	bus.Subscribe(func(channel string, event map[string]interface{}) {
		got = append(got, channel+" "+event["type"].(string))
	})

	require.NoError(t, bus.PublishRequest("r1", map[string]interface{}{"type": "request.filed"}))
	require.NoError(t, bus.PublishOfficial("off-001", map[string]interface{}{"type": "request.filed"}))
	assert.Equal(t, []string{"request:r1 request.filed", "official:off-001 request.filed"}, got)
}

func TestBusRejectsUnmarshalableEvent(t *testing.T) {
	bus := New(nil, zap.NewNop())
	err := bus.Publish("x", map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestParseStreamSeq(t *testing.T) {
	seq, err := parseStreamSeq("0-42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)

	_, err = parseStreamSeq("garbage")
	assert.Error(t, err)
}
