package errors

import (
	stderrors "errors"
	"net/http"
)

// ErrorResponse is the JSON body the trigger endpoints return when a
// fire request is rejected.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the AppError fields a caller can act on. Retryable
// tells the caller whether re-posting the same request can succeed.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts an AppError to its wire shape.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:      e.Code,
			Message:   e.Message,
			Retryable: e.Retryable,
			Details:   e.Details,
		},
	}
}

// ResponseFor maps any error to an HTTP status and response body.
// Plain errors are reported as internal without leaking their text
// shape into the error code set.
func ResponseFor(err error) (int, ErrorResponse) {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus, appErr.ToResponse()
	}
	return http.StatusInternalServerError, Internal(err).ToResponse()
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
