package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/middleware"
	"github.com/fragend/fragend/pkg/transport"
)

// fakeChannel dispatches emitted events synchronously to its handlers.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[api.EventKind][]func(api.StreamEvent)
	closed   bool
	done     chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers: make(map[api.EventKind][]func(api.StreamEvent)),
		done:     make(chan struct{}),
	}
}

func (f *fakeChannel) On(kind api.EventKind, handler func(api.StreamEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[kind] = append(f.handlers[kind], handler)
}

func (f *fakeChannel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
}

func (f *fakeChannel) Done() <-chan struct{} { return f.done }

func (f *fakeChannel) emit(kind api.EventKind, data string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	handlers := append(([]func(api.StreamEvent))(nil), f.handlers[kind]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(api.StreamEvent{Kind: kind, Data: []byte(data)})
	}
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeTransport records every call and hands out one prepared channel
// per Open.
type fakeTransport struct {
	mu        sync.Mutex
	channels  []*fakeChannel
	opens     int
	submits   []string
	stops     []string
	feedbacks []api.Feedback
	submitErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Open(ctx context.Context, sessionID string) (transport.EventChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	ch := newFakeChannel()
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *fakeTransport) Submit(ctx context.Context, sessionID, question string, opts transport.AskOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submits = append(f.submits, question)
	return []byte(`{"status":"accepted"}`), nil
}

func (f *fakeTransport) Stop(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, sessionID)
	return nil
}

func (f *fakeTransport) Feedback(ctx context.Context, sessionID string, fb api.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbacks = append(f.feedbacks, fb)
	return nil
}

func (f *fakeTransport) lastChannel() *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.channels) == 0 {
		return nil
	}
	return f.channels[len(f.channels)-1]
}

func (f *fakeTransport) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stops)
}

func testConfig(tr *fakeTransport, cb Callbacks) Config {
	return Config{
		Transport: tr,
		Callbacks: cb,
		Pipeline: middleware.PipelineConfig{
			RetryOptions: []middleware.RetryOption{
				middleware.WithRetrySleep(func(context.Context, time.Duration) error { return nil }),
			},
		},
	}
}

func TestFullExchange(t *testing.T) {
	tr := newFakeTransport()
	var completed *api.AssembledResponse
	c := NewController(testConfig(tr, Callbacks{
		OnComplete: func(r *api.AssembledResponse) { completed = r },
	}))

	sid, err := c.Ask(context.Background(), "What is hybrid retrieval?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if c.State() != api.StateStreaming {
		t.Fatalf("state = %s, want %s", c.State(), api.StateStreaming)
	}

	ch := tr.lastChannel()
	ch.emit(api.EventTelemetry, `{"telemetry":{"model":"m1"}}`)
	ch.emit(api.EventAnswer, "Hybrid retrieval combines")
	ch.emit(api.EventAnswer, "lexical and vector search.")
	ch.emit(api.EventPassages, `{"passages":[{"id":"p1","score":0.9}]}`)
	ch.emit(api.EventRelated, `{"questions":["What is BM25?"]}`)
	ch.emit(api.EventComplete, "")

	if completed == nil {
		t.Fatal("OnComplete never fired")
	}
	want := "Hybrid retrieval combines lexical and vector search."
	if completed.Text != want {
		t.Errorf("Text = %q, want %q", completed.Text, want)
	}
	if len(completed.Passages) != 1 || completed.Passages[0].ID != "p1" {
		t.Errorf("Passages = %+v", completed.Passages)
	}
	if len(completed.RelatedQuestions) != 1 {
		t.Errorf("RelatedQuestions = %v", completed.RelatedQuestions)
	}

	// Completion releases the backend session and returns to idle.
	if tr.stopCount() != 1 {
		t.Errorf("stops = %d, want 1", tr.stopCount())
	}
	if !ch.isClosed() {
		t.Error("channel left open after completion")
	}
	if c.State() != api.StateIdle {
		t.Errorf("state = %s, want %s", c.State(), api.StateIdle)
	}

	resp, err := c.Response(sid)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if resp.Text != want {
		t.Errorf("history Text = %q", resp.Text)
	}
}

func TestAskWhileStreamingReturnsBusy(t *testing.T) {
	tr := newFakeTransport()
	c := NewController(testConfig(tr, Callbacks{}))

	if _, err := c.Ask(context.Background(), "first?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := c.Ask(context.Background(), "second?"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if tr.opens != 1 || len(tr.submits) != 1 {
		t.Errorf("second ask reached the transport: opens=%d submits=%d", tr.opens, len(tr.submits))
	}
}

func TestEmptyQuestionNeverReachesTransport(t *testing.T) {
	tr := newFakeTransport()
	c := NewController(testConfig(tr, Callbacks{}))

	_, err := c.Ask(context.Background(), "")
	if api.CodeOf(err) != api.CodeValidation {
		t.Fatalf("error code = %s, want %s", api.CodeOf(err), api.CodeValidation)
	}
	if tr.opens != 0 || len(tr.submits) != 0 {
		t.Errorf("rejected ask reached the transport: opens=%d submits=%d", tr.opens, len(tr.submits))
	}
	if c.State() != api.StateIdle {
		t.Errorf("state = %s, want %s", c.State(), api.StateIdle)
	}
}

func TestStopFreezesPartialResponse(t *testing.T) {
	tr := newFakeTransport()
	c := NewController(testConfig(tr, Callbacks{}))

	sid, err := c.Ask(context.Background(), "long question?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	ch := tr.lastChannel()
	ch.emit(api.EventAnswer, "Partial answer")

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != api.StateIdle {
		t.Errorf("state = %s, want %s", c.State(), api.StateIdle)
	}
	if !ch.isClosed() {
		t.Error("channel still open after Stop")
	}
	if tr.stopCount() != 1 {
		t.Errorf("stops = %d, want 1", tr.stopCount())
	}

	// Events after the stop must not reach the frozen response.
	ch.emit(api.EventAnswer, "too late")
	resp, err := c.Response(sid)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if resp.Text != "Partial answer" {
		t.Errorf("Text = %q, want %q", resp.Text, "Partial answer")
	}

	// Stop with nothing in flight is a no-op.
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("idle Stop: %v", err)
	}
	if tr.stopCount() != 1 {
		t.Errorf("idle Stop reached the transport")
	}
}

func TestFeedbackUpdatesHistory(t *testing.T) {
	tr := newFakeTransport()
	c := NewController(testConfig(tr, Callbacks{}))

	sid, err := c.Ask(context.Background(), "rate me?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	ch := tr.lastChannel()
	ch.emit(api.EventAnswer, "An answer.")
	ch.emit(api.EventComplete, "")

	if err := c.SubmitFeedback(context.Background(), sid, api.FeedbackUp); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if len(tr.feedbacks) != 1 || tr.feedbacks[0] != api.FeedbackUp {
		t.Errorf("feedbacks = %v", tr.feedbacks)
	}

	resp, err := c.Response(sid)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if resp.Feedback == nil || *resp.Feedback != api.FeedbackUp {
		t.Errorf("history feedback = %v", resp.Feedback)
	}

	if err := c.SubmitFeedback(context.Background(), "not-a-session", api.FeedbackDown); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}

func TestStreamErrorKeepsPartialAndSurfaces(t *testing.T) {
	tr := newFakeTransport()
	var streamErr *api.ProtocolError
	c := NewController(testConfig(tr, Callbacks{
		OnError: func(pe *api.ProtocolError) { streamErr = pe },
	}))

	sid, err := c.Ask(context.Background(), "will fail?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	ch := tr.lastChannel()
	ch.emit(api.EventAnswer, "Half an")
	ch.emit(api.EventError, `{"error":"index unavailable"}`)

	if streamErr == nil || streamErr.Code != api.CodeStream {
		t.Fatalf("OnError = %+v", streamErr)
	}
	if c.State() != api.StateIdle {
		t.Errorf("state = %s, want %s", c.State(), api.StateIdle)
	}
	resp, err := c.Response(sid)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if resp.Text != "Half an" {
		t.Errorf("partial Text = %q", resp.Text)
	}
}

func TestFailedSubmitRollsBackToIdle(t *testing.T) {
	tr := newFakeTransport()
	tr.submitErr = api.NewRequestError("backend rejected the question")
	c := NewController(testConfig(tr, Callbacks{}))

	if _, err := c.Ask(context.Background(), "doomed?"); err == nil {
		t.Fatal("expected submit failure")
	}
	if c.State() != api.StateIdle {
		t.Errorf("state = %s, want %s", c.State(), api.StateIdle)
	}
	if ch := tr.lastChannel(); ch != nil && !ch.isClosed() {
		t.Error("channel leaked after failed submit")
	}

	// The controller recovers: a later ask works.
	tr.submitErr = nil
	if _, err := c.Ask(context.Background(), "alive again?"); err != nil {
		t.Fatalf("Ask after recovery: %v", err)
	}
}

func TestCloseRejectsFurtherOperations(t *testing.T) {
	tr := newFakeTransport()
	c := NewController(testConfig(tr, Callbacks{}))

	if _, err := c.Ask(context.Background(), "open?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	ch := tr.lastChannel()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ch.isClosed() {
		t.Error("active channel not closed")
	}
	if _, err := c.Ask(context.Background(), "after close?"); !errors.Is(err, ErrClosed) {
		t.Errorf("Ask after Close = %v", err)
	}
	if err := c.Stop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Stop after Close = %v", err)
	}
}
