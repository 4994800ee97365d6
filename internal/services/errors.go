package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the service layer. Handlers map these to HTTP
// status codes with errors.Is.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotActive    = errors.New("exam is not active")
	ErrQuestionNotFound = errors.New("question not found")

	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not active")
	ErrAttemptCannotStart      = errors.New("attempt cannot be started")
	ErrAttemptAlreadySubmitted = errors.New("attempt has already been submitted")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")
	ErrMaxAttemptsReached      = errors.New("maximum attempts reached")

	ErrGradingNotAllowed = errors.New("question type cannot be auto-graded")

	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrUserNotFound     = errors.New("user not found")
)

// PermissionError carries the denied action and resource for logging.
type PermissionError struct {
	UserID   string
	Action   string
	Resource string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s is not allowed to %s %s", e.UserID, e.Action, e.Resource)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

func NewPermissionError(userID, action, resource string) *PermissionError {
	return &PermissionError{UserID: userID, Action: action, Resource: resource}
}

// BusinessRuleError signals a domain rule violation that is not a permission
// or validation problem, such as submitting past the deadline.
type BusinessRuleError struct {
	Rule    string
	Message string
	Err     error
}

func (e *BusinessRuleError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Rule, e.Message)
	}
	return e.Rule
}

func (e *BusinessRuleError) Unwrap() error {
	return e.Err
}

func NewBusinessRuleError(rule, message string, err error) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Err: err}
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationErrors aggregates field failures from request validation.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field errors", len(e))
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

func NewValidationError(field, message string, value any) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message, Value: value}}
}
