package ws

import (
	"context"

	"protectbox/internal/mission"
	"protectbox/internal/model"
	"protectbox/internal/service"

	"go.uber.org/zap"
)

// MissionCommands is the part of the mission service reachable over WebSocket
type MissionCommands interface {
	Get(ctx context.Context, id string) (*model.Mission, error)
	Dispatch(ctx context.Context, actor model.Actor, missionID string, t mission.Transition, in service.DispatchInput) (*model.Mission, error)
	Inbox(ctx context.Context, actor model.Actor, f mission.Filter) (*service.Inbox, error)
	ExtensionStatus(ctx context.Context, id string) (*service.ExtensionStatus, error)
}

// CommandHandler handles WebSocket commands
type CommandHandler struct {
	missions MissionCommands
	log      *zap.Logger
}

func NewCommandHandler(missions MissionCommands, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		missions: missions,
		log:      log,
	}
}

// HandleCommand processes a WebSocket command
func (h *CommandHandler) HandleCommand(ctx context.Context, conn *Conn, cmd map[string]interface{}) {
	op, _ := cmd["op"].(string)
	data, _ := cmd["data"].(map[string]interface{})
	msgID, _ := cmd["id"].(string)

	if conn.actor.ID == "" {
		h.sendError(conn, msgID, "unauthorized", "commands require an identified actor")
		return
	}

	switch op {
	case "getMission":
		h.handleGetMission(ctx, conn, msgID, data)
	case "dispatch":
		h.handleDispatch(ctx, conn, msgID, data)
	case "inbox":
		h.handleInbox(ctx, conn, msgID, data)
	case "extensionStatus":
		h.handleExtensionStatus(ctx, conn, msgID, data)
	default:
		h.sendError(conn, msgID, "unknown_command", "Unknown command: "+op)
	}
}

func (h *CommandHandler) handleGetMission(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	missionID, _ := data["missionId"].(string)
	if missionID == "" {
		h.sendError(conn, msgID, "invalid_input", "missionId required")
		return
	}

	m, err := h.missions.Get(ctx, missionID)
	if err != nil {
		h.sendServiceError(conn, msgID, err)
		return
	}
	h.sendResponse(conn, msgID, m)
}

func (h *CommandHandler) handleDispatch(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	missionID, _ := data["missionId"].(string)
	name, _ := data["transition"].(string)
	if missionID == "" || name == "" {
		h.sendError(conn, msgID, "invalid_input", "missionId and transition required")
		return
	}
	t, ok := mission.ParseTransition(name)
	if !ok {
		h.sendError(conn, msgID, "invalid_input", "unknown transition: "+name)
		return
	}

	in := service.DispatchInput{}
	if v, ok := data["version"].(float64); ok {
		in.Version = int64(v)
	}
	in.Official, _ = data["official"].(string)
	in.Regional, _ = data["regional"].(string)
	in.Reason, _ = data["reason"].(string)
	in.ExtensionReason, _ = data["extensionReason"].(string)

	m, err := h.missions.Dispatch(ctx, conn.actor, missionID, t, in)
	if err != nil {
		h.sendServiceError(conn, msgID, err)
		return
	}

	// follow the mission so later transitions by others reach this client
	conn.hub.Subscribe(conn, "mission:"+m.ID)
	h.sendResponse(conn, msgID, m)
}

func (h *CommandHandler) handleInbox(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	name, _ := data["filter"].(string)
	f, ok := mission.ParseFilter(name)
	if !ok {
		h.sendError(conn, msgID, "invalid_input", "unknown filter: "+name)
		return
	}

	box, err := h.missions.Inbox(ctx, conn.actor, f)
	if err != nil {
		h.sendServiceError(conn, msgID, err)
		return
	}
	h.sendResponse(conn, msgID, box)
}

func (h *CommandHandler) handleExtensionStatus(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	missionID, _ := data["missionId"].(string)
	if missionID == "" {
		h.sendError(conn, msgID, "invalid_input", "missionId required")
		return
	}

	st, err := h.missions.ExtensionStatus(ctx, missionID)
	if err != nil {
		h.sendServiceError(conn, msgID, err)
		return
	}
	h.sendResponse(conn, msgID, st)
}

func (h *CommandHandler) sendResponse(conn *Conn, msgID string, data interface{}) {
	response := map[string]interface{}{
		"type": "response",
		"data": data,
	}
	if msgID != "" {
		response["id"] = msgID
	}
	conn.enqueue(response)
}

func (h *CommandHandler) sendServiceError(conn *Conn, msgID string, err error) {
	code := service.Code(err)
	if code == service.CodeInternal {
		h.log.Error("WebSocket command failed", zap.String("actor", conn.actor.ID), zap.Error(err))
	}
	h.sendError(conn, msgID, code, err.Error())
}

func (h *CommandHandler) sendError(conn *Conn, msgID, code, message string) {
	resp := map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	}
	if msgID != "" {
		resp["id"] = msgID
	}
	conn.enqueue(resp)
}
