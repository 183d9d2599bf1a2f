package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/debug"
	"github.com/fragend/fragend/pkg/observability"
)

// DefaultOpenTimeout bounds the channel-open handshake.
const DefaultOpenTimeout = 5 * time.Second

// SSE is the HTTP + server-sent-events implementation of Transport.
type SSE struct {
	// httpClient performs control calls and carries their timeout. The
	// event stream request runs without a client timeout; its lifetime is
	// controlled by the channel's context instead.
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	openTimeout  time.Duration
	channels     *channelRegistry
}

var _ Transport = (*SSE)(nil)

// SSEOption configures an SSE transport.
type SSEOption func(*SSE)

// WithOpenTimeout overrides the channel-open handshake timeout.
func WithOpenTimeout(d time.Duration) SSEOption {
	return func(s *SSE) { s.openTimeout = d }
}

// WithHTTPClient overrides the control-call client. Streaming always uses a
// derived client without a timeout.
func WithHTTPClient(c *http.Client) SSEOption {
	return func(s *SSE) {
		s.httpClient = c
		s.streamClient = &http.Client{Transport: c.Transport}
	}
}

// NewSSE creates an SSE transport for the backend at baseURL.
func NewSSE(baseURL string, opts ...SSEOption) *SSE {
	baseURL = strings.TrimRight(baseURL, "/")
	s := &SSE{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
		baseURL:      baseURL,
		openTimeout:  DefaultOpenTimeout,
		channels:     newChannelRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open establishes the event stream for a session via GET /register-client.
// It resolves once the backend acknowledges the stream with a 2xx response
// and fails with a CONNECTION_ERROR after the handshake timeout. Any
// previously open channel for the same session is closed first.
func (s *SSE) Open(ctx context.Context, sessionID string) (EventChannel, error) {
	// The channel outlives the Open call; its lifetime is bound to this
	// derived context, cancelled by Close.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	u := s.baseURL + "/register-client?uuid=" + url.QueryEscape(sessionID)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, api.NewConnectionError(fmt.Sprintf("building register request: %s", err.Error()))
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	type doResult struct {
		resp *http.Response
		err  error
	}
	resultCh := make(chan doResult, 1)
	go func() {
		resp, doErr := s.streamClient.Do(req)
		resultCh <- doResult{resp, doErr}
	}()

	timer := time.NewTimer(s.openTimeout)
	defer timer.Stop()

	var resp *http.Response
	select {
	case r := <-resultCh:
		if r.err != nil {
			cancel()
			return nil, api.NewConnectionError(fmt.Sprintf("opening event channel: %s", r.err.Error()))
		}
		resp = r.resp
	case <-timer.C:
		cancel()
		// Drain the late response, if any, so the connection is released.
		go func() {
			if r := <-resultCh; r.resp != nil {
				r.resp.Body.Close()
			}
		}()
		return nil, api.NewConnectionError(
			fmt.Sprintf("event channel did not open within %s", s.openTimeout))
	case <-ctx.Done():
		cancel()
		go func() {
			if r := <-resultCh; r.resp != nil {
				r.resp.Body.Close()
			}
		}()
		return nil, api.NewConnectionError(fmt.Sprintf("opening event channel: %s", ctx.Err().Error()))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(resp.Body)
		resp.Body.Close()
		cancel()
		if msg == "" {
			msg = fmt.Sprintf("backend refused event channel (HTTP %d)", resp.StatusCode)
		}
		return nil, api.NewConnectionError(msg)
	}

	ch := newSSEChannel(sessionID, cancel)
	if prev := s.channels.replace(sessionID, ch); prev != nil {
		prev.Close()
	}
	ch.onClose = func() {
		s.channels.remove(sessionID, ch)
		observability.ActiveChannels.Dec()
	}
	observability.ActiveChannels.Inc()

	go ch.readLoop(resp.Body)

	return ch, nil
}

// askRequest is the POST /ask body.
type askRequest struct {
	Question  string   `json:"question"`
	ProfileID string   `json:"profileId,omitempty"`
	Filter    []Filter `json:"filter,omitempty"`
}

// Submit posts the question to /ask, carrying the search mode and distance
// as query parameters and the profile and filters in the body.
func (s *SSE) Submit(ctx context.Context, sessionID, question string, opts AskOptions) ([]byte, error) {
	q := url.Values{}
	q.Set("uuid", sessionID)
	if opts.SearchMode != "" {
		q.Set("sSearchMode", opts.SearchMode)
	}
	if opts.SearchDistance != "" {
		q.Set("sSearchDistance", opts.SearchDistance)
	}

	body, err := json.Marshal(askRequest{
		Question:  question,
		ProfileID: opts.ProfileID,
		Filter:    opts.Filters,
	})
	if err != nil {
		return nil, api.NewInternalError(fmt.Sprintf("marshalling ask request: %s", err.Error()))
	}

	u := s.baseURL + "/ask?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewInternalError(fmt.Sprintf("building ask request: %s", err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, api.NewRequestError(fmt.Sprintf("submitting question: %s", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(resp.Body)
		if msg == "" {
			msg = fmt.Sprintf("ask failed (HTTP %d)", resp.StatusCode)
		}
		return nil, api.NewRequestError(msg)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, api.NewRequestError(fmt.Sprintf("reading ask response: %s", err.Error()))
	}
	return data, nil
}

// Stop asks the backend to release the session. Unknown sessions are fine:
// the call is idempotent, so 404 and 410 count as success.
func (s *SSE) Stop(ctx context.Context, sessionID string) error {
	u := s.baseURL + "/stop?uuid=" + url.QueryEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return api.NewInternalError(fmt.Sprintf("building stop request: %s", err.Error()))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return api.NewRequestError(fmt.Sprintf("stopping session: %s", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil
	}

	msg := extractErrorMessage(resp.Body)
	if msg == "" {
		msg = fmt.Sprintf("stop failed (HTTP %d)", resp.StatusCode)
	}
	return api.NewRequestError(msg)
}

// Feedback posts the user verdict to /feedback.
func (s *SSE) Feedback(ctx context.Context, sessionID string, fb api.Feedback) error {
	body, err := json.Marshal(map[string]string{"feedback": string(fb)})
	if err != nil {
		return api.NewInternalError(fmt.Sprintf("marshalling feedback: %s", err.Error()))
	}

	u := s.baseURL + "/feedback?uuid=" + url.QueryEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return api.NewInternalError(fmt.Sprintf("building feedback request: %s", err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return api.NewRequestError(fmt.Sprintf("submitting feedback: %s", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(resp.Body)
		if msg == "" {
			msg = fmt.Sprintf("feedback failed (HTTP %d)", resp.StatusCode)
		}
		return api.NewRequestError(msg)
	}
	return nil
}

// extractErrorMessage tries to parse the response body as {"error": "..."}
// and returns the message if found.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return ""
}

// sseChannel is the EventChannel implementation for one session's stream.
// A single reader goroutine parses frames and dispatches them, so handlers
// observe events in wire arrival order.
type sseChannel struct {
	sessionID string
	cancel    context.CancelFunc

	mu       sync.Mutex
	handlers map[api.EventKind][]func(api.StreamEvent)
	closed   bool

	closeOnce sync.Once
	done      chan struct{}
	onClose   func()
}

var _ EventChannel = (*sseChannel)(nil)

func newSSEChannel(sessionID string, cancel context.CancelFunc) *sseChannel {
	return &sseChannel{
		sessionID: sessionID,
		cancel:    cancel,
		handlers:  make(map[api.EventKind][]func(api.StreamEvent)),
		done:      make(chan struct{}),
	}
}

// On subscribes a handler for an event kind.
func (c *sseChannel) On(kind api.EventKind, handler func(api.StreamEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], handler)
}

// Close abandons the channel client-side. Safe to call more than once and
// concurrently with event delivery; events observed after Close are
// discarded.
func (c *sseChannel) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		close(c.done)
		if c.onClose != nil {
			c.onClose()
		}
	})
}

// Done reports channel termination.
func (c *sseChannel) Done() <-chan struct{} {
	return c.done
}

// dispatch invokes the handlers registered for the event's kind. Handlers
// are snapshotted under the lock and invoked outside it; a handler may
// close the channel without deadlocking.
func (c *sseChannel) dispatch(ev api.StreamEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	hs := append(([]func(api.StreamEvent))(nil), c.handlers[ev.Kind]...)
	c.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

// readLoop parses SSE frames from the response body until the stream ends
// or the channel is closed. Frames look like:
//
//	event: answer\n
//	data: RAG\n
//	\n
//
// Multi-line data is joined with newlines. Lines that are neither field
// nor blank (comments starting with ":") are ignored.
func (c *sseChannel) readLoop(body io.ReadCloser) {
	defer body.Close()
	defer c.Close()

	scanner := bufio.NewScanner(body)
	// Passage payloads can be large; allow frames up to 1MB.
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var kind api.EventKind
	var data []string

	flush := func() {
		if kind == "" && len(data) == 0 {
			return
		}
		ev := api.StreamEvent{Kind: kind, Data: []byte(strings.Join(data, "\n"))}
		kind = ""
		data = nil
		debug.Log("streaming", "event received",
			"session_id", c.sessionID, "kind", string(ev.Kind),
			"data", debug.Truncate(string(ev.Data), 256))
		c.dispatch(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			kind = api.EventKind(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()
}
