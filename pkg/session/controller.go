// Package session drives the question/answer lifecycle: it opens the
// event channel, submits the question, assembles the streamed response,
// and tears the exchange down on completion, error, or explicit stop.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/assemble"
	"github.com/fragend/fragend/pkg/debug"
	"github.com/fragend/fragend/pkg/middleware"
	"github.com/fragend/fragend/pkg/transport"
)

// ErrBusy is returned by Ask while an exchange is already in flight.
// The caller must Stop the active exchange before asking again.
var ErrBusy = errors.New("session busy: an exchange is already in flight")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("controller closed")

// ErrUnknownSession is returned when feedback or a lookup names a
// session this controller never ran.
var ErrUnknownSession = errors.New("unknown session")

// Callbacks surface assembly milestones to the caller. They are invoked
// from the event dispatch goroutine and must not call back into the
// controller synchronously.
type Callbacks struct {
	OnProgress func(*api.AssembledResponse)
	OnComplete func(*api.AssembledResponse)
	OnError    func(*api.ProtocolError)
}

// Config assembles a controller. Transport is required; everything else
// has usable zero-value defaults.
type Config struct {
	Transport  transport.Transport
	AskOptions transport.AskOptions
	Pipeline   middleware.PipelineConfig
	Callbacks  Callbacks
	Logger     *slog.Logger
}

// Controller owns at most one active exchange at a time and keeps the
// assembled response of every finished exchange for feedback.
type Controller struct {
	transport  transport.Transport
	pipeline   middleware.Handler
	askOpts    transport.AskOptions
	callbacks  Callbacks
	logger     *slog.Logger
	validation api.ValidationConfig

	mu        sync.Mutex
	state     api.SessionState
	sessionID string
	channel   transport.EventChannel
	assembler *assemble.Assembler
	history   map[string]*api.AssembledResponse
}

// NewController wires the middleware pipeline around the transport and
// starts in the idle state.
func NewController(cfg Config) *Controller {
	c := &Controller{
		transport:  cfg.Transport,
		askOpts:    cfg.AskOptions,
		callbacks:  cfg.Callbacks,
		logger:     cfg.Logger,
		validation: cfg.Pipeline.Validation,
		state:      api.StateIdle,
		history:    make(map[string]*api.AssembledResponse),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.pipeline = middleware.NewPipeline(middleware.HandlerFunc(c.dispatch), cfg.Pipeline)
	return c
}

// dispatch is the pipeline's final handler: it maps each operation onto
// the transport call that executes it.
func (c *Controller) dispatch(ctx context.Context, rc *api.RequestContext) (any, error) {
	switch rc.Operation {
	case api.OperationRegister:
		return c.transport.Open(ctx, rc.SessionID)
	case api.OperationAsk:
		return c.transport.Submit(ctx, rc.SessionID, rc.Question(), c.submitOptions(rc))
	case api.OperationStop:
		return nil, c.transport.Stop(ctx, rc.SessionID)
	case api.OperationFeedback:
		return nil, c.transport.Feedback(ctx, rc.SessionID, rc.FeedbackValue())
	default:
		return nil, api.NewInternalError("unhandled operation: " + string(rc.Operation))
	}
}

// submitOptions starts from the configured defaults and applies any
// per-request overrides carried in the request context.
func (c *Controller) submitOptions(rc *api.RequestContext) transport.AskOptions {
	opts := c.askOpts
	if v, ok := rc.Parameters[api.ParamProfileID].(string); ok && v != "" {
		opts.ProfileID = v
	}
	if v, ok := rc.Parameters[api.ParamSearchMode].(string); ok && v != "" {
		opts.SearchMode = v
	}
	if v, ok := rc.Parameters[api.ParamSearchDistance].(string); ok && v != "" {
		opts.SearchDistance = v
	}
	if v, ok := rc.Parameters[api.ParamFilter].([]transport.Filter); ok && len(v) > 0 {
		opts.Filters = v
	}
	return opts
}

// transitionLocked moves the session state machine. Callers hold c.mu.
func (c *Controller) transitionLocked(to api.SessionState) error {
	if err := api.ValidateSessionTransition(c.state, to); err != nil {
		return err
	}
	debug.Log("session", "state transition",
		"from", string(c.state), "to", string(to), "session_id", c.sessionID)
	c.state = to
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() api.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id of the active or most recent exchange.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Ask starts a new exchange: it registers a fresh session, binds the
// assembler to the event channel, and submits the question. It returns
// the session id as soon as the question is accepted; answers arrive
// through the callbacks. While an exchange is in flight Ask returns
// ErrBusy and leaves the active exchange untouched.
func (c *Controller) Ask(ctx context.Context, question string) (string, error) {
	c.mu.Lock()
	switch c.state {
	case api.StateClosed:
		c.mu.Unlock()
		return "", ErrClosed
	case api.StateConnecting, api.StateStreaming, api.StateStopping:
		c.mu.Unlock()
		return "", ErrBusy
	}

	sessionID := api.NewSessionID()

	// Reject a bad question here, before the register call opens a
	// channel that would only be torn down again.
	askRC := api.NewRequestContext(api.OperationAsk, sessionID, map[string]any{
		api.ParamQuestion: question,
	})
	if perr := api.ValidateContext(askRC, c.validation); perr != nil {
		c.mu.Unlock()
		return "", api.Normalize(perr, askRC)
	}

	if err := c.transitionLocked(api.StateConnecting); err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.sessionID = sessionID
	asm := assemble.New(sessionID, assemble.Callbacks{
		OnProgress: c.callbacks.OnProgress,
		OnComplete: func(resp *api.AssembledResponse) { c.onComplete(sessionID, resp) },
		OnError:    func(pe *api.ProtocolError) { c.onStreamError(sessionID, pe) },
	})
	c.assembler = asm
	c.mu.Unlock()

	result, err := c.pipeline.Handle(ctx,
		api.NewRequestContext(api.OperationRegister, sessionID, nil))
	if err != nil {
		c.abandon(sessionID)
		return "", err
	}
	ch, ok := result.(transport.EventChannel)
	if !ok {
		c.abandon(sessionID)
		return "", api.NewInternalError("register returned no event channel")
	}
	asm.Bind(ch)

	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()

	_, err = c.pipeline.Handle(ctx, askRC)
	if err != nil {
		ch.Close()
		c.abandon(sessionID)
		return "", err
	}

	// A very short stream may already have completed, moving the state
	// past connecting; only advance if nothing else did.
	c.mu.Lock()
	if c.state == api.StateConnecting {
		_ = c.transitionLocked(api.StateStreaming)
	}
	c.mu.Unlock()
	return sessionID, nil
}

// Stop aborts the active exchange. The partial response assembled so
// far is frozen and kept in history. Stop is a no-op when nothing is
// in flight, and repeated calls are safe.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == api.StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == api.StateIdle || c.state == api.StateStopping {
		c.mu.Unlock()
		return nil
	}
	if err := c.transitionLocked(api.StateStopping); err != nil {
		c.mu.Unlock()
		return err
	}
	sessionID := c.sessionID
	ch := c.channel
	asm := c.assembler
	c.channel = nil
	c.mu.Unlock()

	if asm != nil {
		asm.Freeze()
	}
	if ch != nil {
		ch.Close()
	}

	_, err := c.pipeline.Handle(ctx,
		api.NewRequestContext(api.OperationStop, sessionID, nil))

	c.mu.Lock()
	if asm != nil {
		c.history[sessionID] = asm.Response()
	}
	if c.state == api.StateStopping {
		_ = c.transitionLocked(api.StateIdle)
	}
	c.mu.Unlock()
	return err
}

// SubmitFeedback sends a rating for a finished exchange and records it
// on the stored response.
func (c *Controller) SubmitFeedback(ctx context.Context, sessionID string, fb api.Feedback) error {
	c.mu.Lock()
	if c.state == api.StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	_, known := c.history[sessionID]
	if !known && sessionID != c.sessionID {
		c.mu.Unlock()
		return ErrUnknownSession
	}
	c.mu.Unlock()

	_, err := c.pipeline.Handle(ctx,
		api.NewRequestContext(api.OperationFeedback, sessionID, map[string]any{
			api.ParamFeedback: fb,
		}))
	if err != nil {
		return err
	}

	c.mu.Lock()
	if resp, ok := c.history[sessionID]; ok {
		resp.Feedback = &fb
	}
	c.mu.Unlock()
	return nil
}

// Response returns the assembled response for a session: the live
// snapshot while it streams, the frozen result afterwards.
func (c *Controller) Response(sessionID string) (*api.AssembledResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp, ok := c.history[sessionID]; ok {
		return resp.Clone(), nil
	}
	if sessionID == c.sessionID && c.assembler != nil {
		return c.assembler.Response(), nil
	}
	return nil, ErrUnknownSession
}

// History returns the finished exchanges, keyed by session id.
func (c *Controller) History() map[string]*api.AssembledResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*api.AssembledResponse, len(c.history))
	for id, resp := range c.history {
		out[id] = resp.Clone()
	}
	return out
}

// Close shuts the controller down. The active channel, if any, is
// closed; every operation afterwards fails with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	ch := c.channel
	c.channel = nil
	_ = c.transitionLocked(api.StateClosed)
	c.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
	return nil
}

// onComplete runs when the stream signals completion: the result goes
// into history, the backend session is released, and the controller
// returns to idle. Runs on the dispatch goroutine.
func (c *Controller) onComplete(sessionID string, resp *api.AssembledResponse) {
	c.mu.Lock()
	c.history[sessionID] = resp
	stale := sessionID != c.sessionID || c.state == api.StateClosed
	var ch transport.EventChannel
	if !stale {
		ch = c.channel
		c.channel = nil
		_ = c.transitionLocked(api.StateStopping)
	}
	c.mu.Unlock()
	if stale {
		return
	}

	if ch != nil {
		ch.Close()
	}
	// Release the backend session. Best effort: the stream already
	// finished, so a failed stop only leaks server-side state.
	if _, err := c.pipeline.Handle(context.Background(),
		api.NewRequestContext(api.OperationStop, sessionID, nil)); err != nil {
		c.logger.Warn("stop after completion failed",
			"session_id", sessionID, "error", err)
	}

	c.mu.Lock()
	if c.state == api.StateStopping {
		_ = c.transitionLocked(api.StateIdle)
	}
	c.mu.Unlock()

	if c.callbacks.OnComplete != nil {
		c.callbacks.OnComplete(resp)
	}
}

// onStreamError mirrors onComplete for a fatal stream error: the
// partial response is kept, the session is released, and the error is
// surfaced to the caller.
func (c *Controller) onStreamError(sessionID string, pe *api.ProtocolError) {
	c.mu.Lock()
	if c.assembler != nil && sessionID == c.sessionID {
		c.history[sessionID] = c.assembler.Response()
	}
	stale := sessionID != c.sessionID || c.state == api.StateClosed
	var ch transport.EventChannel
	if !stale {
		ch = c.channel
		c.channel = nil
		_ = c.transitionLocked(api.StateStopping)
	}
	c.mu.Unlock()

	if !stale {
		if ch != nil {
			ch.Close()
		}
		if _, err := c.pipeline.Handle(context.Background(),
			api.NewRequestContext(api.OperationStop, sessionID, nil)); err != nil {
			c.logger.Warn("stop after stream error failed",
				"session_id", sessionID, "error", err)
		}
		c.mu.Lock()
		if c.state == api.StateStopping {
			_ = c.transitionLocked(api.StateIdle)
		}
		c.mu.Unlock()
	}

	if c.callbacks.OnError != nil {
		c.callbacks.OnError(pe)
	}
}

// abandon rolls the controller back to idle after a failed Ask.
func (c *Controller) abandon(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sessionID != c.sessionID || c.state == api.StateClosed {
		return
	}
	c.channel = nil
	c.assembler = nil
	if c.state != api.StateIdle {
		_ = c.transitionLocked(api.StateIdle)
	}
}
