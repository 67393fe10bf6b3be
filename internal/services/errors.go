package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by services and mapped to HTTP statuses in
// the handlers.
var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrUserNotFound     = errors.New("user not found")

	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAccessDenied     = errors.New("attempt belongs to another student")
	ErrAttemptAlreadyCompleted = errors.New("attempt is already completed")
	ErrAttemptNotCompleted     = errors.New("attempt is not completed yet")
	ErrQuestionNotInAttempt    = errors.New("question does not belong to this attempt")

	ErrQuotaExceeded = errors.New("quiz quota exceeded for this topic")

	// ErrMarkingUnavailable wraps every marking delegate failure. The
	// grader degrades to a zero score instead of failing the attempt.
	ErrMarkingUnavailable = errors.New("marking service unavailable")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// BusinessRuleError carries a violated domain rule with context for the
// client.
type BusinessRuleError struct {
	Message string         `json:"message"`
	Rule    string         `json:"rule"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

// PermissionError describes a denied action on a resource.
type PermissionError struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s on %s (%s)", e.Action, e.Resource, e.Reason)
}

func NewPermissionError(resource, action, reason string) *PermissionError {
	return &PermissionError{Resource: resource, Action: action, Reason: reason}
}
