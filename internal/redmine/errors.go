package redmine

import (
	"fmt"
	"strings"
)

// HTTPError is a non-2xx response without a structured validation body.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("redmine: server returned %s", e.Status)
}

// ValidationError carries the field-level messages Redmine returns with a
// 422 response, joined into a single user-facing message.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}
