package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for pipeline-level failures
const (
	ErrCodeExtractionFailed = "EXTRACTION_FAILED"
	ErrCodeNoSymptomsFound  = "NO_SYMPTOMS_FOUND"
	ErrCodeUnknownSymptom   = "UNKNOWN_SYMPTOM"
	ErrCodeModelUnavailable = "MODEL_UNAVAILABLE"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
)

// Sentinels matched with errors.Is
var (
	ErrExtractionFailed = errors.New("no OCR method produced text")
	ErrNoSymptomsFound  = errors.New("no known symptoms found in text")
	ErrModelUnavailable = errors.New("no model context loaded")
	ErrInvalidInput     = errors.New("invalid input")
)

var codeSentinels = map[string]error{
	ErrCodeExtractionFailed: ErrExtractionFailed,
	ErrCodeNoSymptomsFound:  ErrNoSymptomsFound,
	ErrCodeModelUnavailable: ErrModelUnavailable,
	ErrCodeInvalidInput:     ErrInvalidInput,
}

// DiagnosisError represents a standardized pipeline error
type DiagnosisError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface
func (e *DiagnosisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *DiagnosisError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel belonging to the error code.
func (e *DiagnosisError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// NewDiagnosisError creates a new DiagnosisError with timestamp
func NewDiagnosisError(code, message string, cause error) *DiagnosisError {
	return &DiagnosisError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

// ExtractionFailed reports that every OCR method came back empty.
func ExtractionFailed(details string) *DiagnosisError {
	err := NewDiagnosisError(ErrCodeExtractionFailed, "Could not extract text from file", nil)
	err.Details = details
	return err
}

// ModelUnavailable reports that no model context is loaded.
func ModelUnavailable(cause error) *DiagnosisError {
	return NewDiagnosisError(ErrCodeModelUnavailable, "Model is not loaded", cause)
}

// InvalidInput reports a rejected request payload.
func InvalidInput(message string) *DiagnosisError {
	return NewDiagnosisError(ErrCodeInvalidInput, message, nil)
}

// ErrorCode extracts the code from err, defaulting to INTERNAL_SERVER_ERROR.
func ErrorCode(err error) string {
	var de *DiagnosisError
	if errors.As(err, &de) {
		return de.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrCodeValidation
	}
	return ErrCodeInternalServer
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
