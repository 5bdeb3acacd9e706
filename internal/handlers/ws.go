package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mroshb/couple_journal/internal/middleware"
	"github.com/mroshb/couple_journal/internal/reconcile"
	"github.com/mroshb/couple_journal/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// frame is one message pushed to a connected client.
type frame struct {
	Type        string                     `json:"type"`
	Couple      *reconcile.CoupleState     `json:"couple,omitempty"`
	Invitations *reconcile.InvitationState `json:"invitations,omitempty"`
}

func (h *HandlerManager) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if h.Config.AppEnv != "production" {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return u
}

// Stream upgrades to a websocket and pushes the caller's couple and
// invitation state every time either changes, until the client goes away.
func (h *HandlerManager) Stream(c *gin.Context) {
	userID := middleware.UserID(c)

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debug("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	couple := reconcile.StartCoupleReconciler(ctx, h.Watcher, userID, h.Couples)
	defer couple.Close()
	invitations := reconcile.StartInvitationReconciler(ctx, h.Watcher, userID, h.Clock)
	defer invitations.Close()

	go readPump(conn, cancel)

	logger.Info("Client connected", "user_id", userID)
	defer logger.Info("Client disconnected", "user_id", userID)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var out frame
		select {
		case <-ctx.Done():
			return
		case state, ok := <-couple.Updates():
			if !ok {
				return
			}
			out = frame{Type: "couple", Couple: &state}
		case state, ok := <-invitations.Updates():
			if !ok {
				return
			}
			out = frame{Type: "invitations", Invitations: &state}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(out); err != nil {
			logger.Debug("Websocket write failed", "user_id", userID, "error", err)
			return
		}
	}
}

// readPump drains client frames so pongs and close messages are processed.
// Clients have nothing to say on this socket.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
