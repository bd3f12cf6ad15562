package commenter

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultMarker prefixes every inserted comment line.
const DefaultMarker = "# "

// Splicer inserts comment lines above the constructs they describe.
type Splicer struct {
	Marker string
	// MatchIndent copies the leading whitespace of the target line.
	MatchIndent bool
}

// Splice inserts one line per comment into a copy of lines. Comments are
// applied highest line first so an insertion never shifts a pending one.
// Same-line comments end up top to bottom in ascending Order, then Text, so
// the result does not depend on the order of the comments slice.
func (s Splicer) Splice(lines []string, comments []Comment) ([]string, error) {
	out := make([]string, len(lines), len(lines)+len(comments))
	copy(out, lines)

	ordered := append([]Comment(nil), comments...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		if a.Order != b.Order {
			return a.Order > b.Order
		}
		return a.Text > b.Text
	})

	for _, c := range ordered {
		if c.Line < 1 || c.Line > len(lines)+1 {
			return nil, errors.Wrapf(ErrLineOutOfRange, "line %d (source has %d lines)", c.Line, len(lines))
		}
	}

	marker := s.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	for _, c := range ordered {
		idx := c.Line - 1
		indent, eol := "", ""
		if idx < len(out) {
			if s.MatchIndent {
				indent = leadingWhitespace(out[idx])
			}
			// CRLF sources keep their endings on the inserted line.
			if strings.HasSuffix(out[idx], "\r") {
				eol = "\r"
			}
		}
		out = append(out, "")
		copy(out[idx+1:], out[idx:])
		out[idx] = indent + marker + c.Text + eol
	}
	return out, nil
}

// SpliceText splits source on newlines, splices and joins the result.
func (s Splicer) SpliceText(source string, comments []Comment) (string, error) {
	lines, err := s.Splice(strings.Split(source, "\n"), comments)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// Splice applies the default Splicer.
func Splice(lines []string, comments []Comment) ([]string, error) {
	return Splicer{}.Splice(lines, comments)
}

// SpliceText applies the default Splicer to source text.
func SpliceText(source string, comments []Comment) (string, error) {
	return Splicer{}.SpliceText(source, comments)
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
