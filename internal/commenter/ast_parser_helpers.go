package commenter

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var pythonSyntaxLanguage = sitter.NewLanguage(tree_sitter_python.Language())

func newPythonParser() (*sitter.Parser, error) {
	parser := sitter.NewParser()
	if err := parser.SetLanguage(pythonSyntaxLanguage); err != nil {
		parser.Close()
		return nil, err
	}
	return parser, nil
}

func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Utf8Text(source)
}

func nodeLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// walkTreePreOrder visits nodes depth-first, parents before children, siblings
// left to right. Children of a node are skipped when visit returns false.
func walkTreePreOrder(root *sitter.Node, visit func(*sitter.Node) bool) {
	if root == nil || visit == nil {
		return
	}

	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(node) {
			continue
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			child := node.Child(uint(i))
			if child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// firstSyntaxError returns the first ERROR or MISSING node in pre-order.
func firstSyntaxError(root *sitter.Node) *sitter.Node {
	var found *sitter.Node
	walkTreePreOrder(root, func(node *sitter.Node) bool {
		if found != nil {
			return false
		}
		if node.IsError() || node.IsMissing() {
			found = node
			return false
		}
		return node.HasError()
	})
	return found
}

// reconstructText renders a construct's text with trailing whitespace removed
// and continuation lines shifted left by the construct's own indentation.
func reconstructText(node *sitter.Node, source []byte) string {
	text := nodeText(node, source)
	indent := int(node.StartPosition().Column)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if i > 0 && indent > 0 {
			line = trimIndent(line, indent)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func trimIndent(line string, width int) string {
	n := 0
	for n < len(line) && n < width && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return line[n:]
}
