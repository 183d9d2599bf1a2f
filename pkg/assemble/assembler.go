// Package assemble turns the per-session event stream into a coherent
// response: answer fragments are accumulated, telemetry is merged,
// passages and related questions track the latest server state, and a
// terminal event freezes the result.
package assemble

import (
	"sync"
	"time"

	"github.com/fragend/fragend/pkg/api"
)

// Callbacks receive assembly milestones. All callbacks are optional and
// are invoked synchronously from the event dispatch goroutine, so they
// must not block.
type Callbacks struct {
	// OnProgress fires after every state-changing event before the
	// terminal one, with a snapshot of the response so far.
	OnProgress func(*api.AssembledResponse)

	// OnComplete fires once, when the complete event arrives.
	OnComplete func(*api.AssembledResponse)

	// OnError fires once, when the stream reports a fatal error.
	OnError func(*api.ProtocolError)
}

// eventSource is the subscription surface the assembler binds to.
// transport.EventChannel satisfies it.
type eventSource interface {
	On(kind api.EventKind, handler func(api.StreamEvent))
}

// Assembler accumulates one session's stream into an AssembledResponse.
// Once a terminal event (complete or error) has been applied, or Freeze
// has been called, further events are discarded.
type Assembler struct {
	mu        sync.Mutex
	resp      api.AssembledResponse
	terminal  bool
	callbacks Callbacks
}

// New returns an assembler for the given session.
func New(sessionID string, cb Callbacks) *Assembler {
	return &Assembler{
		resp:      api.AssembledResponse{SessionID: sessionID},
		callbacks: cb,
	}
}

// Bind subscribes the assembler to every event kind on src.
func (a *Assembler) Bind(src eventSource) {
	for _, kind := range api.Kinds {
		src.On(kind, a.Apply)
	}
}

// Apply folds one event into the response. Events after the terminal
// one are dropped silently. State is mutated and snapshotted under the
// lock; callbacks fire after it is released, so a callback may call
// back into the assembler.
func (a *Assembler) Apply(ev api.StreamEvent) {
	a.mu.Lock()
	if a.terminal {
		a.mu.Unlock()
		return
	}

	var (
		progress  *api.AssembledResponse
		completed *api.AssembledResponse
		streamErr *api.ProtocolError
	)

	switch ev.Kind {
	case api.EventAnswer:
		fragment := api.DecodeAnswer(ev.Data)
		if fragment == "" {
			a.mu.Unlock()
			return
		}
		if a.resp.Text != "" {
			a.resp.Text += " "
		}
		a.resp.Text += fragment

	case api.EventTelemetry:
		entries, err := api.DecodeTelemetry(ev.Data)
		if err != nil {
			a.mu.Unlock()
			return
		}
		if a.resp.Telemetry == nil {
			a.resp.Telemetry = make(map[string]any, len(entries))
		}
		// Later events win on key collisions.
		for k, v := range entries {
			a.resp.Telemetry[k] = v
		}

	case api.EventPassages:
		passages, err := api.DecodePassages(ev.Data)
		if err != nil {
			a.mu.Unlock()
			return
		}
		a.resp.Passages = passages

	case api.EventRelated:
		questions, err := api.DecodeRelated(ev.Data)
		if err != nil {
			a.mu.Unlock()
			return
		}
		a.resp.RelatedQuestions = questions

	case api.EventComplete:
		a.terminal = true
		if a.callbacks.OnComplete != nil {
			completed = a.resp.Clone()
		}

	case api.EventError:
		a.terminal = true
		if a.callbacks.OnError != nil {
			streamErr = api.NewStreamError(api.DecodeStreamError(ev.Data))
			streamErr.Context = api.ErrorContext{
				SessionID: a.resp.SessionID,
				Timestamp: time.Now(),
			}
		}

	default:
		a.mu.Unlock()
		return
	}

	if !a.terminal && a.callbacks.OnProgress != nil {
		progress = a.resp.Clone()
	}
	a.mu.Unlock()

	switch {
	case completed != nil:
		a.callbacks.OnComplete(completed)
	case streamErr != nil:
		a.callbacks.OnError(streamErr)
	case progress != nil:
		a.callbacks.OnProgress(progress)
	}
}

// Freeze marks the response final without a terminal event, as when the
// caller stops the exchange early. Idempotent.
func (a *Assembler) Freeze() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.terminal = true
}

// Terminal reports whether the response can no longer change.
func (a *Assembler) Terminal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.terminal
}

// Response returns a snapshot of the assembled state so far.
func (a *Assembler) Response() *api.AssembledResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resp.Clone()
}
