package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"protectbox/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamEvent represents an event from streams
type StreamEvent struct {
	Channel   string
	Sequence  int64
	Event     map[string]interface{}
	Timestamp time.Time
}

// StreamsProvider interface for event replay
type StreamsProvider interface {
	GetLastSequence(channel, connectionID string) (int64, error)
	AcknowledgeSequence(channel, connectionID string, sequence int64) error
	ReplayEvents(channel string, sinceSeq int64, limit int64) ([]StreamEvent, error)
}

// replayLimit caps a single resume
const replayLimit = 100

// Hub manages WebSocket connections and channel subscriptions
type Hub struct {
	mu         sync.RWMutex
	conns      map[*Conn]bool
	subs       map[string]map[*Conn]bool // channel -> connections
	publish    chan Event
	log        *zap.Logger
	cmdHandler *CommandHandler
	ctx        context.Context
	streams    StreamsProvider // For sequence numbers and replay
}

// Conn represents a WebSocket connection. send is never closed; done is
// closed once when the hub drops the connection.
type Conn struct {
	ws    *websocket.Conn
	send  chan []byte
	done  chan struct{}
	hub   *Hub
	actor model.Actor
	subs  map[string]bool // subscribed channels
	ctx   context.Context
}

// Event represents a message to be published
type Event struct {
	Channel string
	Message map[string]interface{}
}

// NewHub creates a new WebSocket hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns:   make(map[*Conn]bool),
		subs:    make(map[string]map[*Conn]bool),
		publish: make(chan Event, 256),
		log:     log,
		ctx:     context.Background(),
	}
}

// SetCommandHandler sets the command handler for processing WebSocket commands
func (h *Hub) SetCommandHandler(handler *CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmdHandler = handler
}

// SetStreamsProvider sets the streams provider for event replay
func (h *Hub) SetStreamsProvider(provider StreamsProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streams = provider
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for event := range h.publish {
		h.deliver(event)
	}
}

func (h *Hub) deliver(event Event) {
	msg, err := json.Marshal(map[string]interface{}{
		"type":    "event",
		"channel": event.Channel,
		"data":    event.Message,
	})
	if err != nil {
		h.log.Warn("Failed to encode event", zap.String("channel", event.Channel), zap.Error(err))
		return
	}

	var slow []*Conn
	h.mu.RLock()
	for conn := range h.subs[event.Channel] {
		select {
		case conn.send <- msg:
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range slow {
		h.log.Warn("Dropping slow WebSocket connection", zap.String("actor", conn.actor.ID))
		h.unregister(conn)
	}
}

// Register adds a new connection to the hub
func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

// unregister removes a connection from the hub and releases its writer
func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(conn.done)
		for channel := range conn.subs {
			if subs := h.subs[channel]; subs != nil {
				delete(subs, conn)
				if len(subs) == 0 {
					delete(h.subs, channel)
				}
			}
		}
	}
}

// CanSubscribe reports whether actor may follow channel. Mission, request
// and case channels are open to any identified actor; regional and official
// feeds are restricted to their owner, with national leads seeing all.
func CanSubscribe(actor model.Actor, channel string) bool {
	kind, key, ok := strings.Cut(channel, ":")
	if !ok || key == "" || actor.ID == "" {
		return false
	}
	switch kind {
	case "mission", "request", "case":
		return true
	case "regional":
		return actor.Role == model.RoleNationalLead ||
			(actor.Role == model.RoleRegionalLead && strings.EqualFold(actor.Regional, key))
	case "official":
		return actor.Role == model.RoleNationalLead || actor.ID == key
	}
	return false
}

// Subscribe adds a connection to a channel
func (h *Hub) Subscribe(conn *Conn, channel string) bool {
	if !CanSubscribe(conn.actor, channel) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Conn]bool)
	}
	h.subs[channel][conn] = true
	conn.subs[channel] = true
	return true
}

// Unsubscribe removes a connection from a channel
func (h *Hub) Unsubscribe(conn *Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subs[channel]; subs != nil {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.subs, channel)
		}
	}
	delete(conn.subs, channel)
}

// Publish sends an event to all subscribers of a channel
func (h *Hub) Publish(channel string, message map[string]interface{}) {
	select {
	case h.publish <- Event{Channel: channel, Message: message}:
	default:
		h.log.Warn("Hub publish channel full, dropping event", zap.String("channel", channel))
	}
}

// NewConn creates a new connection
func NewConn(ws *websocket.Conn, hub *Hub, actor model.Actor) *Conn {
	return &Conn{
		ws:    ws,
		send:  make(chan []byte, 256),
		done:  make(chan struct{}),
		hub:   hub,
		actor: actor,
		subs:  make(map[string]bool),
		ctx:   hub.ctx,
	}
}

// ReadPump handles reading from the WebSocket connection
func (c *Conn) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Warn("Failed to parse message", zap.Error(err))
			continue
		}

		c.handleMessage(msg)
	}
}

// WritePump handles writing to the WebSocket connection
func (c *Conn) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) handleMessage(msg map[string]interface{}) {
	msgType, _ := msg["type"].(string)
	channel, _ := msg["channel"].(string)

	switch msgType {
	case "subscribe":
		if channel == "" {
			return
		}
		if !c.hub.Subscribe(c, channel) {
			c.sendError("forbidden", "cannot subscribe to "+channel)
			return
		}
		c.sendAck("subscribed", channel)
	case "unsubscribe":
		if channel != "" {
			c.hub.Unsubscribe(c, channel)
			c.sendAck("unsubscribed", channel)
		}
	case "ack":
		seq, _ := msg["seq"].(float64)
		if channel != "" && seq > 0 {
			c.hub.Acknowledge(c, channel, int64(seq))
		}
	case "resume":
		since, _ := msg["since"].(float64)
		if channel == "" || since < 0 {
			return
		}
		if !CanSubscribe(c.actor, channel) {
			c.sendError("forbidden", "cannot resume "+channel)
			return
		}
		c.hub.Resume(c, channel, int64(since))
	case "cmd":
		if c.hub.cmdHandler != nil {
			c.hub.cmdHandler.HandleCommand(c.ctx, c, msg)
		} else {
			c.hub.log.Warn("Command handler not set")
		}
	case "ping":
		c.sendAck("pong", "")
	default:
		c.hub.log.Warn("Unknown message type", zap.String("type", msgType))
	}
}

func (c *Conn) enqueue(v map[string]interface{}) {
	msg, _ := json.Marshal(v)
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.hub.log.Warn("Connection buffer full, dropping message", zap.String("actor", c.actor.ID))
	}
}

func (c *Conn) sendAck(msgType, channel string) {
	ack := map[string]interface{}{
		"type": "ack",
		"ack":  msgType,
	}
	if channel != "" {
		ack["channel"] = channel
	}
	c.enqueue(ack)
}

func (c *Conn) sendError(code, message string) {
	c.enqueue(map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	})
}

// Acknowledge records an acknowledgment for a sequence number
func (h *Hub) Acknowledge(conn *Conn, channel string, sequence int64) {
	if h.streams == nil {
		return
	}
	if err := h.streams.AcknowledgeSequence(channel, conn.actor.ID, sequence); err != nil {
		h.log.Warn("Failed to acknowledge sequence",
			zap.String("channel", channel),
			zap.Int64("sequence", sequence),
			zap.Error(err),
		)
	}
}

// Resume replays events after sinceSeq. A zero sinceSeq resumes from the
// connection's last acknowledged sequence.
func (h *Hub) Resume(conn *Conn, channel string, sinceSeq int64) {
	if h.streams == nil {
		h.log.Warn("Streams provider not set, cannot resume")
		return
	}
	if sinceSeq == 0 {
		if last, err := h.streams.GetLastSequence(channel, conn.actor.ID); err == nil {
			sinceSeq = last
		}
	}

	events, err := h.streams.ReplayEvents(channel, sinceSeq, replayLimit)
	if err != nil {
		h.log.Error("Failed to replay events",
			zap.String("channel", channel),
			zap.Int64("since", sinceSeq),
			zap.Error(err),
		)
		return
	}

	for _, event := range events {
		conn.enqueue(map[string]interface{}{
			"type":    "event",
			"channel": event.Channel,
			"seq":     event.Sequence,
			"data":    event.Event,
		})
	}

	h.log.Info("Resumed events",
		zap.String("channel", channel),
		zap.String("actor", conn.actor.ID),
		zap.Int64("since", sinceSeq),
		zap.Int("count", len(events)),
	)
}
