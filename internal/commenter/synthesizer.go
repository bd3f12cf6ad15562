package commenter

import (
	"context"
	"strings"

	"github.com/Someblueman/codecomment/internal/llm"
	"github.com/cockroachdb/errors"
)

// Synthesizer asks a text generator for one comment per structural record.
type Synthesizer struct {
	Generator llm.Generator
	Model     string
}

// NewSynthesizer builds a Synthesizer for the given generator and model.
func NewSynthesizer(gen llm.Generator, model string) *Synthesizer {
	return &Synthesizer{Generator: gen, Model: model}
}

// Synthesize returns a single-line comment for rec. It makes exactly one
// request and never retries.
func (s *Synthesizer) Synthesize(ctx context.Context, rec StructuralRecord, style Style) (string, error) {
	if s == nil || s.Generator == nil {
		return "", &AuthenticationError{Reason: "no comment service configured"}
	}

	req := NewCommentRequest(rec, style)
	text, err := s.Generator.Generate(ctx, llm.Request{
		Model:  s.Model,
		System: req.SystemInstruction(),
		User:   req.UserInstruction(),
	})
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return "", err
		}
		if errors.Is(err, llm.ErrEmptyResponse) {
			return "", &SynthesisError{Reason: err.Error()}
		}
		return "", &ServiceError{Cause: err}
	}

	comment := normalizeComment(text)
	if comment == "" {
		return "", &SynthesisError{Reason: "empty response for " + string(rec.Kind)}
	}
	return comment, nil
}

// normalizeComment trims the response, drops comment markers the model may
// have added and folds it onto one line.
func normalizeComment(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	words := make([]string, 0, len(lines)*8)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "//"):
			line = strings.TrimLeft(line, "/")
		case strings.HasPrefix(line, "#"):
			line = strings.TrimLeft(line, "#")
		}
		words = append(words, strings.Fields(line)...)
	}
	return strings.Join(words, " ")
}
