package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks network-level failures and unexpected server errors.
	// These are transient from the client's point of view: state is retained
	// and the next poll tick or manual action retries naturally.
	ErrTransport = errors.New("transport error")
	// ErrValidation marks requests the server (or the client, pre-flight)
	// rejected as malformed or premature, e.g. requesting audio before the
	// script stage completed.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks missing jobs and artifacts that are not ready yet.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks bearer-token rejection.
	ErrUnauthorized = errors.New("unauthorized")
)

// Wrap tags err with the provided sentinel while keeping operation context in
// the message. A nil marker defaults to ErrTransport.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}

// IsRetryable reports whether the failure leaves server state unknown but
// intact, so the caller may simply try again later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}
