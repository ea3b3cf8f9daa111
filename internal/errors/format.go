package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

func asDocError(err error) *DocError {
	var de *DocError
	if stderrors.As(err, &de) {
		return de
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	de := asDocError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", de.Message))
	if de.Code == ErrCodeDocumentNotFound {
		if known := KnownIDs(de); len(known) > 0 {
			sb.WriteString("  Known documents:\n")
			for _, id := range known {
				sb.WriteString("    - " + id + "\n")
			}
		}
	}
	if de.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", de.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", de.Code))
	return sb.String()
}

// LogAttrs returns key-value pairs for slog.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	var de *DocError
	if !stderrors.As(err, &de) {
		return []any{"error", err.Error()}
	}
	attrs := []any{
		"error_code", de.Code,
		"error", de.Message,
		"severity", string(de.Severity),
	}
	if de.Cause != nil {
		attrs = append(attrs, "cause", de.Cause.Error())
	}
	return attrs
}
