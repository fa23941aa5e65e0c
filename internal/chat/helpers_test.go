package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"hearthdesk/internal/model"
)

// fakeTransport records emits and lets tests push inbound events the same
// way the websocket transport would after decoding.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	emits     []emitted
	failEmit  map[model.EventName]error
	handlers  map[model.EventName]map[int]Handler
	nextID    int
}

type emitted struct {
	event   model.EventName
	payload any
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		connected: true,
		failEmit:  make(map[model.EventName]error),
		handlers:  make(map[model.EventName]map[int]Handler),
	}
}

func (f *fakeTransport) Emit(event model.EventName, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failEmit[event]; err != nil {
		return err
	}
	if !f.connected {
		return ErrNotConnected
	}
	f.emits = append(f.emits, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) On(event model.EventName, fn Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	if f.handlers[event] == nil {
		f.handlers[event] = make(map[int]Handler)
	}
	f.handlers[event][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[event], id)
	}
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// deliver pushes an inbound event through the envelope decoder, like a
// real frame would arrive.
func (f *fakeTransport) deliver(t *testing.T, event model.EventName, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	decoded, err := model.Envelope{Event: event, Payload: raw}.Decode()
	if err != nil {
		t.Fatalf("decode %s payload: %v", event, err)
	}

	f.mu.Lock()
	fns := make([]Handler, 0, len(f.handlers[event]))
	for _, fn := range f.handlers[event] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(decoded)
	}
}

func (f *fakeTransport) emitted(event model.EventName) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) handlerCount(event model.EventName) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[event])
}

// fakeAssistant returns scripted answers, or fails.
type fakeAssistant struct {
	mu      sync.Mutex
	answers []Answer
	err     error
	calls   int
	onAsk   func()
}

func (a *fakeAssistant) Ask(_ context.Context, _ string, _ []model.Message, _ string) (Answer, error) {
	a.mu.Lock()
	a.calls++
	onAsk := a.onAsk
	err := a.err
	var ans Answer
	if len(a.answers) > 0 {
		ans = a.answers[0]
		a.answers = a.answers[1:]
	}
	a.mu.Unlock()

	if onAsk != nil {
		onAsk()
	}
	if err != nil {
		return Answer{}, err
	}
	return ans, nil
}

func (a *fakeAssistant) askCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
