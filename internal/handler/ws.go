// Package handler exposes the hub over websocket endpoints, one per actor
// type, and dispatches inbound envelopes to hub operations.
package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"hearthdesk/internal/hub"
	"hearthdesk/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The widget is embedded on marketplace pages served from other
	// origins; origin policy is enforced upstream.
	CheckOrigin: func(*http.Request) bool { return true },
}

// readPump reads envelopes off the socket and dispatches them until the
// connection drops, then unregisters the client.
func readPump(c *hub.Client, conn *websocket.Conn) {
	defer func() {
		c.Hub.UnregisterClient(c)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env model.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("id", c.Identity.ID).Msg("websocket read error")
			}
			return
		}
		dispatch(c, env)
	}
}

// writePump drains the client's send channel onto the socket and keeps
// the connection alive with pings. It exits when the hub closes the send
// channel or a write fails.
func writePump(c *hub.Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEvent pushes a named event to one client, best effort.
func sendEvent(c *hub.Client, event model.EventName, payload any) {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("encode event")
		return
	}
	select {
	case c.Send <- env:
	default:
		log.Warn().Str("id", c.Identity.ID).Str("event", string(event)).Msg("send buffer full")
	}
}

// sendError surfaces a business error to the client as a named error
// event; the client shows it as a notification and moves on.
func sendError(c *hub.Client, msg string) {
	sendEvent(c, model.EventError, model.ErrorPayload{Message: msg})
}
