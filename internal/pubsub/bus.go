package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bus fans mission and request events out to Redis pub/sub, the replay
// stream and the WebSocket hub. With a nil Redis client it only reaches the hub.
type Bus struct {
	rdb     *redis.Client
	log     *zap.Logger
	ctx     context.Context
	wsHub   WSHub
	streams *Streams

	mu     sync.Mutex
	local  map[string]int64
	notify []func(channel string, event map[string]interface{})
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

func New(rdb *redis.Client, log *zap.Logger) *Bus {
	b := &Bus{
		rdb:   rdb,
		log:   log,
		ctx:   context.Background(),
		local: make(map[string]int64),
	}
	if rdb != nil {
		b.streams = NewStreams(rdb, log)
	}
	return b
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// GetStreams returns the streams provider, nil without Redis
func (b *Bus) GetStreams() *Streams {
	return b.streams
}

// Subscribe registers an in-process listener called for every published event
func (b *Bus) Subscribe(fn func(channel string, event map[string]interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = append(b.notify, fn)
}

// PublishMission publishes an event to a mission's channel
func (b *Bus) PublishMission(missionID string, event map[string]interface{}) error {
	return b.Publish("mission:"+missionID, event)
}

// PublishRegional publishes an event to a regional unit's inbox channel
func (b *Bus) PublishRegional(regional string, event map[string]interface{}) error {
	return b.Publish("regional:"+regional, event)
}

// PublishOfficial publishes an event to an official's channel
func (b *Bus) PublishOfficial(official string, event map[string]interface{}) error {
	return b.Publish("official:"+official, event)
}

// PublishRequest publishes an event to a protection request's channel
func (b *Bus) PublishRequest(requestID string, event map[string]interface{}) error {
	return b.Publish("request:"+requestID, event)
}

// PublishCase publishes an event to a case's channel
func (b *Bus) PublishCase(caseID string, event map[string]interface{}) error {
	return b.Publish("case:"+caseID, event)
}

// Publish publishes an event to a channel
func (b *Bus) Publish(channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var seq int64
	if b.rdb != nil {
		// Publish to Redis pub/sub
		if err := b.rdb.Publish(b.ctx, channel, data).Err(); err != nil {
			b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
			return err
		}

		// Also publish to Redis Streams for replay
		seq, err = b.streams.PublishEvent(channel, event)
		if err != nil {
			b.log.Warn("Failed to publish to stream", zap.String("channel", channel), zap.Error(err))
		}
	} else {
		b.mu.Lock()
		b.local[channel]++
		seq = b.local[channel]
		b.mu.Unlock()
	}

	// Add sequence number to event for WebSocket
	eventWithSeq := make(map[string]interface{}, len(event)+1)
	for k, v := range event {
		eventWithSeq[k] = v
	}
	eventWithSeq["seq"] = seq

	// Broadcast to WebSocket hub if available
	if b.wsHub != nil {
		b.wsHub.Publish(channel, eventWithSeq)
	}

	b.mu.Lock()
	listeners := append([]func(string, map[string]interface{}){}, b.notify...)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(channel, eventWithSeq)
	}

	b.log.Debug("Published event", zap.String("channel", channel), zap.Int64("seq", seq), zap.String("event", string(data)))
	return nil
}
