// Package errors provides structured error types with fix suggestions for the
// support access service. Domain failures (authorization, not found, state
// conflict, validation) and wrapped AWS failures share one error shape so the
// CLI and callers can branch on codes and print actionable guidance.
package errors

import (
	stderrors "errors"
)

// AccessError provides additional context for error handling.
// It wraps underlying errors with error codes and actionable suggestions.
type AccessError interface {
	error
	Unwrap() error              // Original error or error kind
	Code() string               // Error code (e.g., "STATE_CONFLICT")
	Suggestion() string         // Actionable fix suggestion
	Context() map[string]string // Additional context (request_id, table, etc.)
}

// Error kinds. Every domain error unwraps to exactly one of these so callers
// can use errors.Is without caring about the message.
var (
	// ErrAuthorization is the kind for role or ownership violations.
	ErrAuthorization = stderrors.New("authorization error")

	// ErrNotFound is the kind for absent tenants, users or requests.
	ErrNotFound = stderrors.New("not found")

	// ErrStateConflict is the kind for mutations against a record that is not
	// in the required prior state.
	ErrStateConflict = stderrors.New("state conflict")

	// ErrValidation is the kind for rejected input such as stale signatures.
	ErrValidation = stderrors.New("validation error")
)

// Domain error codes
const (
	ErrCodeAuthorization = "AUTHORIZATION_DENIED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeStateConflict = "STATE_CONFLICT"
	ErrCodeValidation    = "VALIDATION_FAILED"
)

// DynamoDB error codes
const (
	ErrCodeDynamoDBAccessDenied    = "DYNAMODB_ACCESS_DENIED"
	ErrCodeDynamoDBTableNotFound   = "DYNAMODB_TABLE_NOT_FOUND"
	ErrCodeDynamoDBThrottled       = "DYNAMODB_THROTTLED"
	ErrCodeDynamoDBConditionFailed = "DYNAMODB_CONDITION_FAILED"
)

// SSM error codes
const (
	ErrCodeSSMAccessDenied      = "SSM_ACCESS_DENIED"
	ErrCodeSSMParameterNotFound = "SSM_PARAMETER_NOT_FOUND"
	ErrCodeSSMThrottled         = "SSM_THROTTLED"
)

// SNS error codes
const (
	ErrCodeSNSAccessDenied  = "SNS_ACCESS_DENIED"
	ErrCodeSNSTopicNotFound = "SNS_TOPIC_NOT_FOUND"
	ErrCodeSNSThrottled     = "SNS_THROTTLED"
)

// Config error codes
const (
	ErrCodeConfigInvalid          = "CONFIG_INVALID"
	ErrCodeConfigDirectoryMissing = "CONFIG_DIRECTORY_MISSING"
)

// accessError implements the AccessError interface.
type accessError struct {
	code       string
	message    string
	suggestion string
	context    map[string]string
	cause      error
}

// Error implements the error interface.
func (e *accessError) Error() string {
	return e.message
}

// Unwrap returns the underlying cause error.
func (e *accessError) Unwrap() error {
	return e.cause
}

// Code returns the error code.
func (e *accessError) Code() string {
	return e.code
}

// Suggestion returns the actionable fix suggestion.
func (e *accessError) Suggestion() string {
	return e.suggestion
}

// Context returns additional context about the error.
func (e *accessError) Context() map[string]string {
	return e.context
}

// New creates a new AccessError with the given code, message, suggestion, and cause.
func New(code, message, suggestion string, cause error) AccessError {
	return &accessError{
		code:       code,
		message:    message,
		suggestion: suggestion,
		context:    make(map[string]string),
		cause:      cause,
	}
}

// Authorization returns an AccessError of kind ErrAuthorization.
func Authorization(message string) AccessError {
	return New(ErrCodeAuthorization, message, Suggestions[ErrCodeAuthorization], ErrAuthorization)
}

// NotFound returns an AccessError of kind ErrNotFound.
func NotFound(message string) AccessError {
	return New(ErrCodeNotFound, message, Suggestions[ErrCodeNotFound], ErrNotFound)
}

// StateConflict returns an AccessError of kind ErrStateConflict.
func StateConflict(message string) AccessError {
	return New(ErrCodeStateConflict, message, Suggestions[ErrCodeStateConflict], ErrStateConflict)
}

// Validation returns an AccessError of kind ErrValidation.
func Validation(message string) AccessError {
	return New(ErrCodeValidation, message, Suggestions[ErrCodeValidation], ErrValidation)
}

// WithContext adds context to an error and returns a new AccessError.
// The original error is not modified.
func WithContext(err AccessError, key, value string) AccessError {
	existingCtx := err.Context()
	newCtx := make(map[string]string, len(existingCtx)+1)
	for k, v := range existingCtx {
		newCtx[k] = v
	}
	newCtx[key] = value

	return &accessError{
		code:       err.Code(),
		message:    err.Error(),
		suggestion: err.Suggestion(),
		context:    newCtx,
		cause:      err.Unwrap(),
	}
}

// IsAccessError finds the first AccessError in err's chain.
// If err is nil or carries no AccessError, returns (nil, false).
func IsAccessError(err error) (AccessError, bool) {
	if err == nil {
		return nil, false
	}
	var ae AccessError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// GetCode extracts the error code from an error.
// Returns empty string if err carries no AccessError.
func GetCode(err error) string {
	if ae, ok := IsAccessError(err); ok {
		return ae.Code()
	}
	return ""
}
