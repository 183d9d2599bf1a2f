package transport

import (
	"context"

	"github.com/fragend/fragend/pkg/api"
)

// Well-known filter keys understood by the backend.
const (
	FilterKeyDocumentID = "id.keyword"
	FilterKeyQuery      = "query"
)

// Filter restricts retrieval for one ask call.
type Filter struct {
	Key       string   `json:"key"`
	Values    []string `json:"values"`
	IsNegated bool     `json:"isNegated,omitempty"`
}

// AskOptions carries the profile and retrieval parameters of an ask call.
type AskOptions struct {
	ProfileID      string
	SearchMode     string
	SearchDistance string
	Filters        []Filter
}

// EventChannel is the subscription handle for one session's event stream.
// Handlers for a kind are invoked in wire arrival order from a single
// dispatch goroutine. Close abandons the channel client-side; it is safe
// to call concurrently with event delivery and more than once.
type EventChannel interface {
	On(kind api.EventKind, handler func(api.StreamEvent))
	Close()
	// Done is closed when the channel reaches its terminal state, whether
	// by Close, a server disconnect, or end of stream.
	Done() <-chan struct{}
}

// Transport opens event channels and performs control calls against the
// backend. Implementations must keep at most one open channel per session:
// opening a new channel for a session closes the previous one.
type Transport interface {
	// Open establishes the event channel for a session. It fails with a
	// CONNECTION_ERROR when the channel cannot be established within the
	// configured timeout.
	Open(ctx context.Context, sessionID string) (EventChannel, error)

	// Submit sends the question and retrieval parameters, triggering the
	// backend to begin streaming. The returned bytes are the call's
	// response body. Fails with a REQUEST_ERROR carrying the backend
	// message on non-2xx.
	Submit(ctx context.Context, sessionID, question string, opts AskOptions) ([]byte, error)

	// Stop tells the backend to release the session's resources.
	// Idempotent: stopping twice or stopping an unknown session is not an
	// error.
	Stop(ctx context.Context, sessionID string) error

	// Feedback submits a user verdict for the session's answer.
	Feedback(ctx context.Context, sessionID string, fb api.Feedback) error
}
