package topology

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedTopology reports input that cannot be parsed as a topology document.
	ErrMalformedTopology = errors.New("malformed topology")

	// ErrInvalidTopology reports a parseable topology that violates a structural rule.
	ErrInvalidTopology = errors.New("invalid topology")
)

// ValidationError is a single field-level problem in a topology.
// Node is the zero-based node index, or -1 for cluster-wide fields.
type ValidationError struct {
	Node    int    `json:"node"`
	Host    string `json:"host,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	if e.Host != "" {
		return fmt.Sprintf("%s (host %q): %s", e.Field, e.Host, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidError carries every validation problem found in a topology.
type InvalidError struct {
	Problems []ValidationError
}

func (e *InvalidError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidTopology, strings.Join(parts, "; "))
}

func (e *InvalidError) Unwrap() error {
	return ErrInvalidTopology
}

// NewInvalidError builds an InvalidError for a single problem.
func NewInvalidError(node int, host, field, msg string) *InvalidError {
	return &InvalidError{Problems: []ValidationError{{
		Node:    node,
		Host:    host,
		Field:   field,
		Message: msg,
	}}}
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedTopology, err)
}
