package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// IsRetryable reports whether err carries a retryable AppError. Errors that
// are not AppError are treated as retryable: a runner that wants a failure to
// be final must classify it as permanent explicitly.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return err != nil
}

// CodeOf returns the error code of err, or ErrCodeInternal for plain errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// --- Graph Error Constructors ---

// CycleDetected creates a new AppError for a dependency cycle. The cycle is
// the ordered list of node names forming the loop.
func CycleDetected(scope string, cycle []string) *AppError {
	return &AppError{
		Code: ErrCodeCycleDetected, Message: fmt.Sprintf("Dependency cycle in %s: %s", scope, strings.Join(cycle, " -> ")),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"scope": scope, "cycle": cycle},
	}
}

// UnknownDependency creates a new AppError for a depends_on entry that does
// not resolve to a declared pipeline or job.
func UnknownDependency(scope, from, missing string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownDependency, Message: fmt.Sprintf("%q in %s depends on undeclared %q", from, scope, missing),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"scope": scope, "from": from, "missing": missing},
	}
}

// SelfDependency creates a new AppError for a node depending on itself.
func SelfDependency(scope, name string) *AppError {
	return &AppError{
		Code: ErrCodeSelfDependency, Message: fmt.Sprintf("%q in %s depends on itself", name, scope),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"scope": scope, "name": name},
	}
}

// --- Secrets Error Constructors ---

// MissingSecrets creates a new AppError aggregating every missing or invalid
// secret key so an operator can fix them in one pass.
func MissingSecrets(missing, invalid []string) *AppError {
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return &AppError{
		Code: ErrCodeMissingSecret, Message: "Secrets could not be resolved (" + strings.Join(parts, "; ") + ")",
		HTTPStatus: http.StatusPreconditionFailed, Retryable: false,
		Details: map[string]any{"missing": missing, "invalid": invalid},
	}
}

// --- Pipeline Error Constructors ---

// TransientPipeline creates a retryable AppError for a failed pipeline attempt.
func TransientPipeline(pipeline string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePipelineTransient, Message: fmt.Sprintf("Pipeline %q failed with a transient error", pipeline),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"pipeline": pipeline}, Cause: cause,
	}
}

// PermanentPipeline creates a non-retryable AppError for a failed pipeline.
func PermanentPipeline(pipeline string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePipelinePermanent, Message: fmt.Sprintf("Pipeline %q failed permanently", pipeline),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"pipeline": pipeline}, Cause: cause,
	}
}

// DependencySkipped creates a new AppError for a pipeline skipped because an
// upstream pipeline did not succeed. The upstream is a declared dependency,
// or the first failed pipeline when the job stops on failure.
func DependencySkipped(pipeline, dependency string) *AppError {
	return &AppError{
		Code: ErrCodeDependencySkipped, Message: fmt.Sprintf("Pipeline %q skipped: %q did not succeed", pipeline, dependency),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"pipeline": pipeline, "dependency": dependency},
	}
}

// SLAExceeded creates a new AppError for work truncated by the job SLA.
func SLAExceeded(job string, budget time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeSLAExceeded, Message: fmt.Sprintf("Job %q exceeded its SLA of %s", job, budget),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: false,
		Details: map[string]any{"job": job, "sla": budget.String()},
	}
}

// RunCanceled creates a new AppError for a pipeline skipped by run cancellation.
func RunCanceled(pipeline string) *AppError {
	return &AppError{
		Code: ErrCodeRunCanceled, Message: fmt.Sprintf("Pipeline %q skipped: run canceled", pipeline),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"pipeline": pipeline},
	}
}

// --- Configuration Error Constructors ---

// InvalidConfig creates a new AppError for a configuration that failed validation.
func InvalidConfig(path, reason string) *AppError {
	details := make(map[string]any)
	if path != "" {
		details["path"] = path
	}
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("Invalid configuration: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// JobNotFound creates a new AppError for an undeclared job.
func JobNotFound(name string) *AppError {
	return &AppError{
		Code: ErrCodeJobNotFound, Message: fmt.Sprintf("Job %q is not declared in this environment", name),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"job": name},
	}
}

// PipelineNotFound creates a new AppError for a pipeline without a definition.
func PipelineNotFound(name string) *AppError {
	return &AppError{
		Code: ErrCodePipelineNotFound, Message: fmt.Sprintf("Pipeline %q has no definition", name),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"pipeline": name},
	}
}

// --- Collaborator Error Constructors ---

// ConnectionFailed creates a new AppError for a failed connection to a source
// or destination system.
func ConnectionFailed(system string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("Unable to connect to %s", system),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"system": system}, Cause: cause,
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("Operation %s took too long", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// Unauthorized creates a new AppError for a trigger request that failed authentication.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
