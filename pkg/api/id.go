package api

import "github.com/google/uuid"

// NewSessionID generates an opaque session identifier. Session IDs are
// UUIDs; they travel as the uuid query parameter on every control call.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidateSessionID reports whether id is a well-formed session identifier.
func ValidateSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
