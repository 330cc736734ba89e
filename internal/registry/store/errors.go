package store

import (
	"errors"
	"fmt"
)

// NotFoundError indicates the resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError indicates a client-side validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// ConflictError indicates a uniqueness violation: a conversation or message
// with the same identity already exists.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotParticipantError indicates the sender is not one of the conversation's
// two participants.
type NotParticipantError struct {
	Username       string
	ConversationID string
}

func (e *NotParticipantError) Error() string {
	return fmt.Sprintf("user %s is not a participant of conversation %s", e.Username, e.ConversationID)
}
