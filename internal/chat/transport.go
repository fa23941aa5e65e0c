// Package chat implements the customer widget and agent console state on
// top of the realtime event channel: the conversation log with optimistic
// sends, the automated/agent handoff state machine, session binding,
// escalation and post-session rating.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"hearthdesk/internal/model"
)

// Handler receives the decoded payload of one inbound event.
type Handler func(payload any)

// Transport is the bidirectional event channel the chat core runs on.
// Emit is fire-and-forget; acknowledgement, if any, arrives as a separate
// named event. On returns an unsubscribe func that must be called when the
// owning component stops, so a remount can never leak a duplicate handler.
type Transport interface {
	Emit(event model.EventName, payload any) error
	On(event model.EventName, fn Handler) (off func())
	Connected() bool
}

// WSTransport is the gorilla/websocket Transport used against the hub.
// One transport per process is shared by every component that needs the
// channel; subscriptions are additive.
type WSTransport struct {
	url string

	mu       sync.Mutex
	conn     *websocket.Conn
	send     chan model.Envelope
	done     chan struct{}
	handlers map[model.EventName]map[int]Handler
	nextID   int
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// NewWSTransport creates a disconnected transport for the given ws url.
func NewWSTransport(url string) *WSTransport {
	return &WSTransport{
		url:      url,
		handlers: make(map[model.EventName]map[int]Handler),
	}
}

// Connect dials the hub and starts the read/write pumps. Calling Connect on
// an already connected transport is an error.
func (t *WSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return fmt.Errorf("chat: transport already connected to %s", t.url)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("chat: dial %s: %w", t.url, err)
	}

	t.conn = conn
	t.send = make(chan model.Envelope, sendBuffer)
	t.done = make(chan struct{})

	go t.writePump(conn, t.send, t.done)
	go t.readPump(conn)
	return nil
}

// Close tears the connection down. Registered handlers survive a Close so
// a reconnect keeps the same subscriptions.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	close(t.done)
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Connected reports whether the channel is up. The UI must not assume
// events will be delivered while this is false.
func (t *WSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Emit sends a named event. It fails fast when disconnected or when the
// outbound buffer is full.
func (t *WSTransport) Emit(event model.EventName, payload any) error {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	send := t.send
	connected := t.conn != nil
	t.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	select {
	case send <- env:
		return nil
	default:
		return fmt.Errorf("chat: emit %s: outbound buffer full", event)
	}
}

// On registers fn for event and returns the matching unsubscribe func.
func (t *WSTransport) On(event model.EventName, fn Handler) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	if t.handlers[event] == nil {
		t.handlers[event] = make(map[int]Handler)
	}
	t.handlers[event][id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.handlers[event], id)
	}
}

func (t *WSTransport) dispatch(env model.Envelope) {
	payload, err := env.Decode()
	if err != nil {
		// Malformed backend frames fail at the boundary; handlers never
		// see a half-filled payload.
		log.Warn().Err(err).Str("event", string(env.Event)).Msg("dropping malformed frame")
		return
	}

	t.mu.Lock()
	fns := make([]Handler, 0, len(t.handlers[env.Event]))
	for _, fn := range t.handlers[env.Event] {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

func (t *WSTransport) readPump(conn *websocket.Conn) {
	defer t.Close()
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env model.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("transport read error")
			}
			return
		}
		t.dispatch(env)
	}
}

func (t *WSTransport) writePump(conn *websocket.Conn, send chan model.Envelope, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				log.Warn().Err(err).Str("event", string(env.Event)).Msg("transport write error")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
