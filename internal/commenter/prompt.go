package commenter

import (
	"fmt"
	"strings"
)

const systemInstruction = "You are a code documentation expert. Generate clear and concise comments."

// CommentRequest is the per-record input to the text generator.
type CommentRequest struct {
	Style      Style
	Kind       Kind
	SourceText string
}

// NewCommentRequest derives the request for a record.
func NewCommentRequest(rec StructuralRecord, style Style) CommentRequest {
	return CommentRequest{Style: style, Kind: rec.Kind, SourceText: rec.SourceText}
}

// SystemInstruction is fixed for every style.
func (r CommentRequest) SystemInstruction() string {
	return systemInstruction
}

// UserInstruction names the style and construct kind and embeds the source.
func (r CommentRequest) UserInstruction() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a %s comment for this %s:\n%s", r.Style, r.Kind, r.SourceText)
	if hint := styleHint(r.Style); hint != "" {
		sb.WriteString("\n\n")
		sb.WriteString(hint)
	}
	return sb.String()
}

func styleHint(style Style) string {
	switch style {
	case StyleBrief:
		return "Answer with one short sentence on a single line."
	case StyleDetailed:
		return "Answer on a single line; describe what it does and why."
	case StyleTechnical:
		return "Answer on a single line; use precise technical terminology and mention complexity or side effects."
	default:
		return ""
	}
}
