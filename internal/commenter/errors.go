package commenter

import (
	"fmt"

	"github.com/Someblueman/codecomment/internal/llm"
	"github.com/cockroachdb/errors"
)

// ParseError reports source text that does not parse. Line and Column are 1-based.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// AuthenticationError reports a missing or unusable credential.
type AuthenticationError = llm.AuthenticationError

// ServiceError wraps a failure of the text-generation service.
type ServiceError struct {
	Cause error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return "comment service error"
	}
	return "comment service error: " + e.Cause.Error()
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// SynthesisError reports a response that cannot be turned into a comment.
type SynthesisError struct {
	Reason string
}

func (e *SynthesisError) Error() string {
	return "comment synthesis failed: " + e.Reason
}

// ErrLineOutOfRange is returned when a comment targets a line outside the source.
var ErrLineOutOfRange = errors.New("comment line out of range")
