package errors

import (
	"fmt"
	"time"
)

// ErrorType categorizes errors by the failure domain they belong to.
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeDecode         ErrorType = "decode"
	ErrorTypeRegistration   ErrorType = "registration"
	ErrorTypeTransport      ErrorType = "transport"
	ErrorTypeBroker         ErrorType = "broker"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInternal       ErrorType = "internal"
)

// ErrorSeverity represents how much of the system an error affects.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"      // single event dropped, service continues
	SeverityMedium   ErrorSeverity = "medium"   // single connection affected
	SeverityHigh     ErrorSeverity = "high"     // a channel or subsystem degraded
	SeverityCritical ErrorSeverity = "critical" // startup cannot proceed
)

// AppError is a structured application error.
type AppError struct {
	Type        ErrorType     `json:"type"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     string        `json:"details,omitempty"`
	Severity    ErrorSeverity `json:"severity"`
	Timestamp   time.Time     `json:"timestamp"`
	UserMessage string        `json:"user_message,omitempty"`
	Cause       error         `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a structured error.
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errType,
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
	}
}

// Wrap attaches structure to an underlying error.
func Wrap(cause error, errType ErrorType, code, message string) *AppError {
	e := New(errType, code, message)
	e.Cause = cause
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func (e *AppError) WithSeverity(s ErrorSeverity) *AppError {
	e.Severity = s
	return e
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}
