package types

import "fmt"

// ErrorCode is a typed string for categorizing engine errors.
type ErrorCode string

// Error code constants. Services must use these instead of ad-hoc strings so
// callers can branch on category.
const (
	// Validation
	ErrCodeValidationInvalidLat     ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon     ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationTimeRange      ErrorCode = "validation_time_range_invalid"
	ErrCodeValidationStep           ErrorCode = "validation_step_invalid"
	ErrCodeValidationMissingPolygon ErrorCode = "validation_missing_polygon"

	// Conflict
	ErrCodeConflictRunActive ErrorCode = "conflict_run_already_active"
	ErrCodeConflictTerminal  ErrorCode = "conflict_schedule_terminal"

	// Not found
	ErrCodeNotFoundSchedule ErrorCode = "not_found_schedule"

	// Internal / upstream
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamWeather    ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamQueue      ErrorCode = "upstream_queue_unavailable"
	ErrCodeCacheUnavailable   ErrorCode = "cache_unavailable"
)

// AppError is the standard application error type for the engine. Domain and
// repository errors are expressed as AppError to enable consistent
// categorization and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}
