// Package llm wraps the text-generation service used to write comments.
package llm

import (
	"context"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Request is a single text-generation round trip.
type Request struct {
	Model  string
	System string
	User   string
}

// Generator produces text for a request.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Middleware decorates a Generator with a cross-cutting concern.
type Middleware func(Generator) Generator

// Wrap applies middlewares in left-to-right order: Wrap(g, A, B) => A(B(g)).
func Wrap(inner Generator, mws ...Middleware) Generator {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}

// AuthenticationError reports a missing or unusable credential. It is raised
// before any network attempt.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Reason
}

// ErrEmptyResponse is returned when the service answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// ValidateAPIKey rejects blank keys and keys containing whitespace or control
// characters.
func ValidateAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return &AuthenticationError{Reason: "API key is not set"}
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return &AuthenticationError{Reason: "API key contains whitespace or control characters"}
		}
	}
	return nil
}
