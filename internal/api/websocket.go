package api

import (
	"net/http"

	"protectbox/internal/auth"
	"protectbox/internal/ws"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsHandler upgrades an identified actor to the live feed. Browsers pass the
// token as ?token= since they cannot set headers on the handshake.
func (d Dependencies) wsHandler(w http.ResponseWriter, r *http.Request) {
	if d.Hub == nil {
		d.Log.Error("WebSocket hub not initialized")
		http.Error(w, "WebSocket hub not initialized", http.StatusInternalServerError)
		return
	}

	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "an identified actor is required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Log.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	d.Log.Info("WebSocket connection opened",
		zap.String("actor", actor.ID),
		zap.String("role", string(actor.Role)),
		zap.String("remote", r.RemoteAddr),
	)

	wsConn := ws.NewConn(conn, d.Hub, actor)
	d.Hub.Register(wsConn)

	go wsConn.WritePump()
	go wsConn.ReadPump()
}
