package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// DocError is the structured error type for docrag.
// It carries enough context for logging, CLI output, and typed handling.
type DocError struct {
	// Code is the unique error code (e.g., "ERR_301_DOCUMENT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DocError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works against sentinel DocErrors.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a DocError. Category, severity, and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocError from an existing error, reusing its message.
func Wrap(code string, err error) *DocError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound          = &DocError{Code: ErrCodeDocumentNotFound}
	ErrDuplicate         = &DocError{Code: ErrCodeDuplicateDocument}
	ErrInconsistent      = &DocError{Code: ErrCodeCorruptIndex}
	ErrEmbedding         = &DocError{Code: ErrCodeEmbeddingFailed}
	ErrPersistence       = &DocError{Code: ErrCodePersistFailed}
	ErrAnswer            = &DocError{Code: ErrCodeAnswerFailed}
	ErrDimensionMismatch = &DocError{Code: ErrCodeDimensionMismatch}
)

const knownIDsDetail = "known_ids"

// NotFound reports a document id that is not registered. The known ids are
// attached so callers can correct their selection.
func NotFound(documentID string, known []string) *DocError {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)
	return New(ErrCodeDocumentNotFound, fmt.Sprintf("document %q not found", documentID), nil).
		WithDetail("document_id", documentID).
		WithDetail(knownIDsDetail, strings.Join(sorted, "\n")).
		WithSuggestion("Run 'docrag files' to list known documents")
}

// KnownIDs returns the document ids attached to a NotFound error.
func KnownIDs(err error) []string {
	var de *DocError
	if !stderrors.As(err, &de) || de.Code != ErrCodeDocumentNotFound {
		return nil
	}
	joined := de.Details[knownIDsDetail]
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, "\n")
}

// Duplicate reports an ingest for an id that is already registered.
func Duplicate(documentID string) *DocError {
	return New(ErrCodeDuplicateDocument, fmt.Sprintf("document %q is already indexed", documentID), nil).
		WithDetail("document_id", documentID).
		WithSuggestion("Delete the existing document first or ingest under a different id")
}

// Inconsistent reports a violated index invariant.
func Inconsistent(format string, args ...any) *DocError {
	return New(ErrCodeCorruptIndex, fmt.Sprintf(format, args...), nil).
		WithSuggestion("Run 'docrag delete --all' and re-ingest the documents")
}

// DimensionMismatch reports an embedding whose length differs from the index.
func DimensionMismatch(expected, got int) *DocError {
	return New(ErrCodeDimensionMismatch,
		fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", expected, got), nil)
}

// Persistence wraps a failed snapshot write.
func Persistence(message string, cause error) *DocError {
	return New(ErrCodePersistFailed, message, cause)
}

// Embedding wraps a failed embedding provider call.
func Embedding(cause error) *DocError {
	return New(ErrCodeEmbeddingFailed, "embedding provider failed: "+cause.Error(), cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *DocError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var de *DocError
	return stderrors.As(err, &de) && de.Retryable
}

// GetCode extracts the error code, or "" for foreign errors.
func GetCode(err error) string {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}
