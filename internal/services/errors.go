package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying generation engine failures. Steps use the
// classification to decide whether a retry can help.
var (
	// ErrValidation marks malformed input; never retried.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing referenced subject; never retried.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks an unreachable collaborator; retryable.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrExecution marks a collaborator that responded with a failure; retryable up to the attempt limit.
	ErrExecution = errors.New("engine execution error")
	// ErrTimeout marks a deadline exceeded for a step or batch item.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes engine and operation context
// while tagging it with the provided marker for later classification. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, engine, operation, message string, err error) error {
	detail := buildDetail(engine, operation, message)
	if marker == nil {
		marker = ErrExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the failure class permits another attempt.
// Context cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrExecution), errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

// Message extracts the human-readable portion of a wrapped engine error,
// stripping the sentinel prefix when present.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrValidation, ErrNotFound, ErrUnavailable, ErrExecution, ErrTimeout} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(engine, operation, message string) string {
	parts := make([]string, 0, 3)
	if engine = strings.TrimSpace(engine); engine != "" {
		parts = append(parts, engine)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}
