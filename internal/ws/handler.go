package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tsvoboda/crisis-council-backend/internal/notify"
	"github.com/tsvoboda/crisis-council-backend/pkg/types"
)

// Handler is the wake-up fast path. It pushes payload-free change pings so
// clients poll immediately instead of waiting out their interval. Clients
// that never connect here still converge through polling alone.
func Handler(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.URL.Query().Get("session"))
		if err != nil {
			http.Error(w, "missing or invalid session", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan notify.Event, 8)
		clientID := randID(8)

		hub.Inbox() <- notify.Subscribe{SessionID: sessionID, ClientID: clientID, Outbox: out}
		defer func() {
			hub.Inbox() <- notify.Unsubscribe{SessionID: sessionID, ClientID: clientID}
		}()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				msg := types.PushMessage{Type: string(ev.Type), SessionID: ev.SessionID}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Clients never send state over this channel; the read loop only
		// notices disconnects.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
