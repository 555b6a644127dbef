package errors

import (
	"net/http"

	"github.com/pkg/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() any      // Structured context, e.g. the conflicting record (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   any
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message string, details any) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// Is matches any BaseError carrying the same business code, so errors.Is works
// on copies produced by WithDetails.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return t.errorCode == e.errorCode
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() any {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details any) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Validation errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Los datos de la encuesta no son válidos",
		nil,
	)

	ErrDraftIncomplete = NewBaseError(
		http.StatusBadRequest,
		"DRAFT_INCOMPLETE",
		"La encuesta tiene etapas obligatorias sin diligenciar",
		nil,
	)

	// Not found errors
	ErrSurveyNotFound = NewBaseError(
		http.StatusNotFound,
		"SURVEY_NOT_FOUND",
		"No se encontró la encuesta",
		nil,
	)

	ErrDraftNotFound = NewBaseError(
		http.StatusNotFound,
		"DRAFT_NOT_FOUND",
		"No se encontró el borrador de encuesta",
		nil,
	)

	ErrMemberNotFound = NewBaseError(
		http.StatusNotFound,
		"MEMBER_NOT_FOUND",
		"No se encontró el integrante",
		nil,
	)

	ErrAutoSaveNotFound = NewBaseError(
		http.StatusNotFound,
		"AUTO_SAVE_NOT_FOUND",
		"No hay datos de autoguardado para este borrador",
		nil,
	)

	// Conflict errors
	ErrDuplicateFamily = NewBaseError(
		http.StatusConflict,
		"DUPLICATE_FAMILY",
		"Ya existe una familia con el mismo apellido, teléfono y dirección",
		nil,
	)

	ErrDuplicateAssociation = NewBaseError(
		http.StatusConflict,
		"DUPLICATE_ASSOCIATION",
		"La familia ya tiene registrado ese elemento del catálogo",
		nil,
	)

	ErrDraftClosed = NewBaseError(
		http.StatusConflict,
		"DRAFT_CLOSED",
		"El borrador ya fue completado o cancelado",
		nil,
	)

	ErrVersionConflict = NewBaseError(
		http.StatusConflict,
		"VERSION_CONFLICT",
		"El borrador fue modificado por otra sesión; recargue antes de guardar",
		nil,
	)

	// Fatal errors
	ErrIdentityExhausted = NewBaseError(
		http.StatusInternalServerError,
		"IDENTITY_EXHAUSTED",
		"No fue posible generar una identificación temporal única",
		nil,
	)

	ErrTransactionFailed = NewBaseError(
		http.StatusInternalServerError,
		"TRANSACTION_FAILED",
		"Falló la transacción en la base de datos",
		nil,
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Error interno del sistema",
		nil,
	)

	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"Se requiere autenticación",
		nil,
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the driver error
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "Falló la ejecución en la base de datos"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() any {
	return e.details
}
