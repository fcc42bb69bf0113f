package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"gonomen/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches the domain sentinel of the error's code, so an AppError built
// without a cause still satisfies errors.Is checks against the core errors.
func (e *AppError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && stderrors.Is(sentinel, target)
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. Errors that are not yet
// AppErrors are classified by their domain sentinel.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError, or derives one from
// the domain sentinel the error wraps.
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case stderrors.Is(err, core.ErrInvalidConfig):
		return CodeConfigInvalid
	case stderrors.Is(err, core.ErrUnknownFormula):
		return CodeUnknownFormula
	case core.IsInputValidationError(err):
		return CodeInvalidInput
	case core.IsNotFoundError(err):
		return CodeNotFound
	case core.IsInsufficientDataError(err):
		return CodeInsufficientData
	case stderrors.Is(err, core.ErrDatasetUnavailable):
		return CodeDatasetUnavailable
	case core.IsDeterminismError(err):
		return CodeNonDeterministic
	}
	return CodeInternalError
}

// Predefined error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnknownFormula     = "UNKNOWN_FORMULA"
	CodeInsufficientData   = "INSUFFICIENT_DATA"
	CodeDatasetUnavailable = "DATASET_UNAVAILABLE"
	CodeNonDeterministic   = "NON_DETERMINISTIC"
	CodeConflict           = "CONFLICT"
)

var codeSentinels = map[string]error{
	CodeConfigInvalid:      core.ErrInvalidConfig,
	CodeInvalidInput:       core.ErrInputValidation,
	CodeUnknownFormula:     core.ErrUnknownFormula,
	CodeNotFound:           core.ErrNotFound,
	CodeInsufficientData:   core.ErrInsufficientData,
	CodeDatasetUnavailable: core.ErrDatasetUnavailable,
	CodeNonDeterministic:   core.ErrNonDeterministic,
}

var httpStatus = map[string]int{
	CodeConfigInvalid:      http.StatusBadRequest,
	CodeInvalidInput:       http.StatusBadRequest,
	CodeUnknownFormula:     http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeInsufficientData:   http.StatusUnprocessableEntity,
	CodeDatasetUnavailable: http.StatusServiceUnavailable,
	CodeDatabaseError:      http.StatusServiceUnavailable,
	CodeNonDeterministic:   http.StatusInternalServerError,
	CodeInternalError:      http.StatusInternalServerError,
}

// HTTPStatus maps an error to the status the API answers with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := httpStatus[GetCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}
