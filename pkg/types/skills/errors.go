package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Kind classifies an error into the taxonomy callers branch on.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindParameter       Kind = "parameter"
	KindExternalService Kind = "external_service"
	KindPersistence     Kind = "persistence"
	KindUnknown         Kind = "unknown"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (f FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// ValidationError is returned when a skill input is malformed, incomplete or
// outside an enumerated set. It is raised before any external call.
type ValidationError struct {
	Skill  string
	Fields []FieldError
}

// NewValidationError builds a ValidationError for the given skill.
func NewValidationError(skill string, fields ...FieldError) *ValidationError {
	return &ValidationError{Skill: skill, Fields: fields}
}

func (e *ValidationError) Error() string {
	var merr *multierror.Error
	for _, f := range e.Fields {
		merr = multierror.Append(merr, f)
	}
	if merr == nil {
		return fmt.Sprintf("invalid %s input", e.Skill)
	}
	merr.ErrorFormat = func(es []error) string {
		parts := make([]string, len(es))
		for i, err := range es {
			parts[i] = err.Error()
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprintf("invalid %s input: %s", e.Skill, merr.Error())
}

// HasField reports whether the given field was rejected.
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// ParameterError is a local, immediate rejection of a query parameter. No
// external lookup is attempted when it is returned.
type ParameterError struct {
	Param   string
	Value   string
	Allowed []string
}

func (e *ParameterError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("invalid %s %q", e.Param, e.Value)
	}
	return fmt.Sprintf("invalid %s %q: must be one of %s", e.Param, e.Value, strings.Join(e.Allowed, ", "))
}

// ErrorCode narrows an ExternalServiceError.
type ErrorCode string

const (
	CodeTimeout           ErrorCode = "timeout"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeUnavailable       ErrorCode = "unavailable"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeInvalidRequest    ErrorCode = "invalid_request"
	CodeNotFound          ErrorCode = "not_found"
	CodeMalformedResponse ErrorCode = "malformed_response"
	CodeUnsupported       ErrorCode = "unsupported"
	CodeProviderError     ErrorCode = "provider_error"
)

// Retryable reports the default retry classification of the code.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeTimeout, CodeRateLimited, CodeUnavailable:
		return true
	}
	return false
}

// ExternalServiceError wraps a failure of the injected service client. Provider
// specific error shapes stay in Err and are never exposed through the envelope.
type ExternalServiceError struct {
	Capability Capability
	Code       ErrorCode
	Message    string
	Retryable  bool
	Err        error
}

// NewExternalServiceError builds an error whose retryability follows the code.
func NewExternalServiceError(capability Capability, code ErrorCode, message string, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Capability: capability,
		Code:       code,
		Message:    message,
		Retryable:  code.Retryable(),
		Err:        err,
	}
}

func (e *ExternalServiceError) Error() string {
	msg := fmt.Sprintf("%s failed (%s): %s", e.Capability, e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// FromJobError translates a provider-reported job failure.
func FromJobError(capability Capability, jobErr *JobError) *ExternalServiceError {
	if jobErr == nil {
		return NewExternalServiceError(capability, CodeProviderError, "job failed without error details", nil)
	}
	code := ErrorCode(jobErr.Code)
	switch code {
	case CodeTimeout, CodeRateLimited, CodeUnavailable, CodeUnauthorized,
		CodeInvalidRequest, CodeNotFound, CodeMalformedResponse, CodeUnsupported:
	default:
		code = CodeProviderError
	}
	e := NewExternalServiceError(capability, code, jobErr.Message, nil)
	e.Retryable = e.Retryable || jobErr.Retryable
	return e
}

// FromContextError converts a context cancellation or deadline into an
// ExternalServiceError, returning nil for any other error.
func FromContextError(capability Capability, err error) *ExternalServiceError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewExternalServiceError(capability, CodeTimeout, "deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		e := NewExternalServiceError(capability, CodeUnavailable, "request cancelled", err)
		e.Retryable = false
		return e
	}
	return nil
}

// PersistenceError is a failure of the persistence client. When returned together
// with a skill output the generated artifact is still valid.
type PersistenceError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s for task %s failed: %v", e.Op, e.TaskID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsParameter reports whether err is a ParameterError.
func IsParameter(err error) bool {
	var target *ParameterError
	return errors.As(err, &target)
}

// IsExternalService reports whether err is an ExternalServiceError.
func IsExternalService(err error) bool {
	var target *ExternalServiceError
	return errors.As(err, &target)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

// IsRetryable reports whether err is an ExternalServiceError marked retryable.
func IsRetryable(err error) bool {
	var target *ExternalServiceError
	if errors.As(err, &target) {
		return target.Retryable
	}
	return false
}

// KindOf classifies err into the taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return KindValidation
	case IsParameter(err):
		return KindParameter
	case IsExternalService(err):
		return KindExternalService
	case IsPersistence(err):
		return KindPersistence
	}
	return KindUnknown
}
