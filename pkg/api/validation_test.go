package api

import (
	"strings"
	"testing"
)

func TestValidateContext(t *testing.T) {
	sid := NewSessionID()

	tests := []struct {
		name      string
		rc        *RequestContext
		wantParam string // "" means valid
	}{
		{
			name:      "nil_context",
			rc:        nil,
			wantParam: "",
		},
		{
			name:      "valid_register",
			rc:        NewRequestContext(OperationRegister, sid, nil),
			wantParam: "-",
		},
		{
			name:      "valid_ask",
			rc:        NewRequestContext(OperationAsk, sid, map[string]any{ParamQuestion: "What is RAG?"}),
			wantParam: "-",
		},
		{
			name:      "malformed_session_id",
			rc:        NewRequestContext(OperationAsk, "not-a-uuid", map[string]any{ParamQuestion: "x"}),
			wantParam: "sessionId",
		},
		{
			name:      "missing_question",
			rc:        NewRequestContext(OperationAsk, sid, nil),
			wantParam: ParamQuestion,
		},
		{
			name:      "empty_question",
			rc:        NewRequestContext(OperationAsk, sid, map[string]any{ParamQuestion: ""}),
			wantParam: ParamQuestion,
		},
		{
			name:      "oversized_question",
			rc:        NewRequestContext(OperationAsk, sid, map[string]any{ParamQuestion: strings.Repeat("a", 17*1024)}),
			wantParam: ParamQuestion,
		},
		{
			name:      "valid_feedback",
			rc:        NewRequestContext(OperationFeedback, sid, map[string]any{ParamFeedback: "thumbs_up"}),
			wantParam: "-",
		},
		{
			name:      "invalid_feedback_value",
			rc:        NewRequestContext(OperationFeedback, sid, map[string]any{ParamFeedback: "sideways"}),
			wantParam: ParamFeedback,
		},
		{
			name:      "missing_feedback",
			rc:        NewRequestContext(OperationFeedback, sid, nil),
			wantParam: ParamFeedback,
		},
		{
			name:      "valid_stop",
			rc:        NewRequestContext(OperationStop, sid, nil),
			wantParam: "-",
		},
		{
			name:      "unknown_operation",
			rc:        NewRequestContext(Operation("mystery"), sid, nil),
			wantParam: "operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContext(tt.rc, DefaultValidationConfig())

			if tt.wantParam == "-" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("expected a validation error")
			}
			if err.Code != CodeValidation {
				t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
			}
			if tt.wantParam != "" && err.Details["param"] != tt.wantParam {
				t.Errorf("expected param %q, got %v", tt.wantParam, err.Details["param"])
			}
		})
	}
}
