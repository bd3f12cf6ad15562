package commenter

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind classifies a structural record.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindLoop     Kind = "loop"
)

// Style selects the phrasing instruction sent to the text generator.
type Style string

const (
	StyleBrief     Style = "brief"
	StyleDetailed  Style = "detailed"
	StyleTechnical Style = "technical"
)

// DefaultStyle matches the style selector's initial value.
const DefaultStyle = StyleDetailed

// ErrUnknownStyle is returned by ParseStyle for values outside the fixed set.
var ErrUnknownStyle = errors.New("unknown comment style")

// Styles lists the selectable styles in display order.
func Styles() []Style {
	return []Style{StyleBrief, StyleDetailed, StyleTechnical}
}

// ParseStyle resolves a user-supplied style name.
func ParseStyle(raw string) (Style, error) {
	normalized := Style(strings.ToLower(strings.TrimSpace(raw)))
	if normalized == "" {
		return DefaultStyle, nil
	}
	for _, s := range Styles() {
		if s == normalized {
			return s, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownStyle, "%q", raw)
}

// StructuralRecord is one function, class or loop occurrence in a source file.
type StructuralRecord struct {
	Kind       Kind
	Name       string   // Empty for loops
	Line       int      // 1-based
	Params     []string // Functions only
	SourceText string
	Order      int // Zero-based traversal index
}

// Comment is a generated comment bound to the line of its construct.
type Comment struct {
	Line  int
	Order int
	Text  string
}

// Result is the outcome of one annotation batch.
type Result struct {
	BatchID  string
	Text     string
	Records  []StructuralRecord
	Comments []Comment
}
