package errors

import (
	"fmt"
	"strings"
)

// ErrorType classifies failures by how far they are allowed to propagate.
type ErrorType int

const (
	// ErrorTypeDocument marks a structurally invalid workflow document.
	// Document errors are the only ones that terminate analysis of a file.
	ErrorTypeDocument ErrorType = iota
	// ErrorTypeExpression marks a single guard that failed to parse or
	// evaluate; contained at the Job/Step boundary as an unresolved
	// annotation, never fatal.
	ErrorTypeExpression
	// ErrorTypeIO marks a failure to write a re-emitted file; logged and
	// surfaced as a boolean result.
	ErrorTypeIO
	// ErrorTypeConfig marks configuration loading failures.
	ErrorTypeConfig
	// ErrorTypeRepository marks repository access failures.
	ErrorTypeRepository
	// ErrorTypePolicy marks policy evaluation failures.
	ErrorTypePolicy
	// ErrorTypeReport marks report generation failures.
	ErrorTypeReport
)

// AnalysisError is a structured error with context.
type AnalysisError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Details     map[string]interface{}
	Suggestions []string
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	if len(e.Details) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Details {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is matches on error type so callers can branch on taxonomy.
func (e *AnalysisError) Is(target error) bool {
	if t, ok := target.(*AnalysisError); ok {
		return e.Type == t.Type
	}
	return false
}

// IsDocumentError reports whether err is a document-fatal error.
func IsDocumentError(err error) bool {
	t, ok := err.(*AnalysisError)
	return ok && t.Type == ErrorTypeDocument
}

// NewDocumentError creates a document-fatal error.
func NewDocumentError(message string, cause error, workflowName string) *AnalysisError {
	details := make(map[string]interface{})
	if workflowName != "" {
		details["workflow"] = workflowName
	}
	return &AnalysisError{
		Type:    ErrorTypeDocument,
		Message: message,
		Cause:   cause,
		Details: details,
	}
}

// NewExpressionError creates an expression-local error.
func NewExpressionError(message string, cause error, condition string) *AnalysisError {
	details := make(map[string]interface{})
	if condition != "" {
		details["condition"] = condition
	}
	return &AnalysisError{
		Type:    ErrorTypeExpression,
		Message: message,
		Cause:   cause,
		Details: details,
	}
}

// NewIOError creates an I/O-local error.
func NewIOError(message string, cause error, path string) *AnalysisError {
	details := make(map[string]interface{})
	if path != "" {
		details["path"] = path
	}
	return &AnalysisError{
		Type:    ErrorTypeIO,
		Message: message,
		Cause:   cause,
		Details: details,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error, suggestions ...string) *AnalysisError {
	return &AnalysisError{
		Type:        ErrorTypeConfig,
		Message:     message,
		Cause:       cause,
		Suggestions: suggestions,
		Details:     make(map[string]interface{}),
	}
}

// NewRepositoryError creates a repository access error.
func NewRepositoryError(message string, cause error, repoPath string, suggestions ...string) *AnalysisError {
	details := make(map[string]interface{})
	if repoPath != "" {
		details["repository"] = repoPath
	}
	return &AnalysisError{
		Type:        ErrorTypeRepository,
		Message:     message,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
	}
}

// NewPolicyError creates a policy evaluation error.
func NewPolicyError(message string, cause error, policyPath string, suggestions ...string) *AnalysisError {
	details := make(map[string]interface{})
	if policyPath != "" {
		details["policy"] = policyPath
	}
	return &AnalysisError{
		Type:        ErrorTypePolicy,
		Message:     message,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
	}
}

// NewReportError creates a report generation error.
func NewReportError(message string, cause error, outputPath string, suggestions ...string) *AnalysisError {
	details := make(map[string]interface{})
	if outputPath != "" {
		details["output"] = outputPath
	}
	return &AnalysisError{
		Type:        ErrorTypeReport,
		Message:     message,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
	}
}
