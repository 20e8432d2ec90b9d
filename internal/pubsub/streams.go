package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamMaxLen bounds each channel's replay history
const streamMaxLen = 1000

// StreamEvent represents an event stored in Redis Streams
type StreamEvent struct {
	Channel   string
	Sequence  int64
	Event     map[string]interface{}
	Timestamp time.Time
}

// Streams manages Redis Streams for event replay. Entries are written with
// explicit IDs of the form 0-<seq>, so replay is a plain range read.
type Streams struct {
	rdb *redis.Client
	log *zap.Logger
	ctx context.Context
}

// NewStreams creates a new Streams manager
func NewStreams(rdb *redis.Client, log *zap.Logger) *Streams {
	return &Streams{
		rdb: rdb,
		log: log,
		ctx: context.Background(),
	}
}

func streamKey(channel string) string {
	return fmt.Sprintf("stream:%s", channel)
}

// PublishEvent publishes an event to a Redis Stream with sequence number
func (s *Streams) PublishEvent(channel string, event map[string]interface{}) (int64, error) {
	// Get next sequence number
	seq, err := s.rdb.Incr(s.ctx, fmt.Sprintf("seq:%s", channel)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := s.rdb.XAdd(s.ctx, &redis.XAddArgs{
		Stream: streamKey(channel),
		ID:     fmt.Sprintf("0-%d", seq),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(eventData),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add to stream: %w", err)
	}

	s.log.Debug("Published event to stream",
		zap.String("channel", channel),
		zap.Int64("sequence", seq),
		zap.String("stream_id", id),
	)

	return seq, nil
}

// GetLastSequence gets the last acknowledged sequence for a channel and connection
func (s *Streams) GetLastSequence(channel, connectionID string) (int64, error) {
	seqStr, err := s.rdb.Get(s.ctx, fmt.Sprintf("ack:%s:%s", channel, connectionID)).Result()
	if err == redis.Nil {
		return 0, nil // No acknowledgment yet
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last sequence: %w", err)
	}

	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse sequence: %w", err)
	}
	return seq, nil
}

// AcknowledgeSequence records an acknowledgment for a sequence number
func (s *Streams) AcknowledgeSequence(channel, connectionID string, sequence int64) error {
	err := s.rdb.Set(s.ctx, fmt.Sprintf("ack:%s:%s", channel, connectionID), sequence, 24*time.Hour).Err()
	if err != nil {
		return fmt.Errorf("failed to acknowledge sequence: %w", err)
	}

	s.log.Debug("Acknowledged sequence",
		zap.String("channel", channel),
		zap.String("connection", connectionID),
		zap.Int64("sequence", sequence),
	)
	return nil
}

// ReplayEvents returns up to limit events with a sequence above sinceSeq
func (s *Streams) ReplayEvents(channel string, sinceSeq int64, limit int64) ([]StreamEvent, error) {
	msgs, err := s.rdb.XRangeN(s.ctx, streamKey(channel), fmt.Sprintf("0-%d", sinceSeq+1), "+", limit).Result()
	if err == redis.Nil {
		return []StreamEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	events := make([]StreamEvent, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}

		var event map[string]interface{}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			s.log.Warn("Failed to unmarshal event", zap.Error(err))
			continue
		}

		seq, err := parseStreamSeq(msg.ID)
		if err != nil {
			continue
		}

		timestamp := time.Now()
		if ts, ok := msg.Values["timestamp"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				timestamp = parsed
			}
		}

		events = append(events, StreamEvent{
			Channel:   channel,
			Sequence:  seq,
			Event:     event,
			Timestamp: timestamp,
		})
	}
	return events, nil
}

// parseStreamSeq extracts the sequence part of a 0-<seq> stream ID
func parseStreamSeq(id string) (int64, error) {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '-' {
			return strconv.ParseInt(id[i+1:], 10, 64)
		}
	}
	return 0, fmt.Errorf("invalid stream ID format: %s", id)
}
