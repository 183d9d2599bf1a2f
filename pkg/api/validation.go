package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxQuestionLength int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQuestionLength: 16 * 1024,
	}
}

// ValidateContext checks a RequestContext for structural validity before
// any network I/O happens. It returns a ProtocolError with CodeValidation
// describing the first failure, or nil when the context is valid.
func ValidateContext(rc *RequestContext, cfg ValidationConfig) *ProtocolError {
	if rc == nil {
		return NewValidationError("", "request context is required")
	}

	switch rc.Operation {
	case OperationRegister, OperationAsk, OperationFeedback, OperationStop:
	default:
		return NewValidationError("operation",
			fmt.Sprintf("unknown operation %q", rc.Operation))
	}

	if !ValidateSessionID(rc.SessionID) {
		return NewValidationError("sessionId",
			fmt.Sprintf("malformed session id %q", rc.SessionID))
	}

	switch rc.Operation {
	case OperationAsk:
		q := rc.Question()
		if q == "" {
			return NewValidationError(ParamQuestion, "question is required")
		}
		if cfg.MaxQuestionLength > 0 && len(q) > cfg.MaxQuestionLength {
			return NewValidationError(ParamQuestion,
				fmt.Sprintf("question exceeds maximum of %d bytes", cfg.MaxQuestionLength))
		}

	case OperationFeedback:
		if !ValidFeedback(rc.FeedbackValue()) {
			return NewValidationError(ParamFeedback,
				fmt.Sprintf("feedback must be %q or %q", FeedbackUp, FeedbackDown))
		}
	}

	return nil
}
