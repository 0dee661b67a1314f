package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/avelinsk/livevote-backend/internal/hub"
	"github.com/avelinsk/livevote-backend/internal/session"
)

const writeTimeout = 3 * time.Second

// Handler upgrades a connection, registers it with the session under the
// role declared in the query string, and pumps broadcast payloads to it.
// Clients act through the HTTP API; inbound frames are only read to detect
// disconnects.
func Handler(sess *session.Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roleParam := r.URL.Query().Get("role")
		if roleParam == "" {
			roleParam = string(hub.RoleDisplay)
		}
		role, ok := hub.ParseRole(roleParam)
		if !ok {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		client := hub.NewClient(role)
		sess.HandleConnect(client)
		defer sess.HandleDisconnect(client)

		// Writer: drain the client's outbox until the hub closes it.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range client.Outbox() {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					// Failed delivery removes the connection; the client
					// recovers by reconnecting and taking a snapshot.
					sess.HandleDisconnect(client)
					return
				}
			}
		}()

		// Reader: keep the connection alive, discard anything sent.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}
		}
	}
}
