package api

import "time"

// Operation identifies the logical call a request context represents.
type Operation string

const (
	OperationRegister Operation = "register"
	OperationAsk      Operation = "ask"
	OperationFeedback Operation = "feedback"
	OperationStop     Operation = "stop"
)

// Well-known parameter keys carried in RequestContext.Parameters.
const (
	ParamQuestion       = "question"
	ParamFeedback       = "feedback"
	ParamProfileID      = "profileId"
	ParamSearchMode     = "sSearchMode"
	ParamSearchDistance = "sSearchDistance"
	ParamFilter         = "filter"
)

// RequestContext carries one logical call through the middleware pipeline.
// It is created per call and discarded once the pipeline resolves or the
// final error propagates. All fields except Attempt are set at creation
// and never modified; Attempt is incremented by the retry step.
type RequestContext struct {
	Operation  Operation
	SessionID  string
	Parameters map[string]any
	CreatedAt  time.Time
	Attempt    int
}

// NewRequestContext builds a RequestContext for the given operation. The
// parameters map is used as-is; callers must not mutate it afterwards.
func NewRequestContext(op Operation, sessionID string, params map[string]any) *RequestContext {
	if params == nil {
		params = map[string]any{}
	}
	return &RequestContext{
		Operation:  op,
		SessionID:  sessionID,
		Parameters: params,
		CreatedAt:  time.Now(),
		Attempt:    1,
	}
}

// Question returns the question parameter, or "" when absent or not a string.
func (rc *RequestContext) Question() string {
	q, _ := rc.Parameters[ParamQuestion].(string)
	return q
}

// FeedbackValue returns the feedback parameter, accepting either a typed
// Feedback or its raw string form. Returns "" when absent.
func (rc *RequestContext) FeedbackValue() Feedback {
	switch v := rc.Parameters[ParamFeedback].(type) {
	case Feedback:
		return v
	case string:
		return Feedback(v)
	}
	return ""
}
