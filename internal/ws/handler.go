package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler upgrades the connection and streams the requested session's
// events until the client disconnects. The socket is write-mostly; the
// read loop exists only to notice the peer going away.
func Handler(h *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		out := h.Join(sessionID, clientID)
		defer h.Leave(sessionID, clientID)

		writeCtx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			for ev := range out {
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				ctx, cancelWrite := context.WithTimeout(writeCtx, 3*time.Second)
				err = conn.Write(ctx, websocket.MessageText, payload)
				cancelWrite()
				if err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("websocket closed",
						zap.String("session_id", sessionID), zap.Error(err))
				}
				return
			}
			// Inbound frames are ignored; commands arrive over HTTP.
		}
	}
}
