package api

import "testing"

func TestValidateSessionTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    SessionState
		to      SessionState
		allowed bool
	}{
		{"initial_to_idle", "", StateIdle, true},
		{"idle_to_connecting", StateIdle, StateConnecting, true},
		{"connecting_to_streaming", StateConnecting, StateStreaming, true},
		{"connecting_back_to_idle", StateConnecting, StateIdle, true},
		{"streaming_to_stopping", StateStreaming, StateStopping, true},
		{"streaming_to_idle", StateStreaming, StateIdle, true},
		{"stopping_to_idle", StateStopping, StateIdle, true},
		{"any_to_closed", StateStreaming, StateClosed, true},
		{"idle_to_closed", StateIdle, StateClosed, true},
		{"idle_to_streaming", StateIdle, StateStreaming, false},
		{"closed_is_terminal", StateClosed, StateIdle, false},
		{"stopping_to_streaming", StateStopping, StateStreaming, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionTransition(tt.from, tt.to)
			if tt.allowed && err != nil {
				t.Errorf("expected %s -> %s to be allowed, got %v", tt.from, tt.to, err)
			}
			if !tt.allowed && err == nil {
				t.Errorf("expected %s -> %s to be blocked", tt.from, tt.to)
			}
		})
	}
}
