package commenter

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Extract parses Python source and returns its functions, classes and loops in
// traversal order (top to bottom, outer before inner).
func Extract(source []byte) ([]StructuralRecord, error) {
	return ExtractContext(context.Background(), source)
}

// ExtractContext is Extract with cancellation checks around the parse.
func ExtractContext(ctx context.Context, source []byte) ([]StructuralRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser, err := newPythonParser()
	if err != nil {
		return nil, errors.Wrap(err, "create python parser")
	}
	defer parser.Close()

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, errors.New("python parser returned no tree")
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := tree.RootNode()
	if root == nil {
		return nil, errors.New("python parser returned no root node")
	}
	if root.HasError() {
		return nil, newParseError(root, source)
	}
	if perr := checkPythonSyntax(root, source); perr != nil {
		return nil, perr
	}

	records := make([]StructuralRecord, 0)
	walkTreePreOrder(root, func(node *sitter.Node) bool {
		rec, ok := recordForNode(node, source)
		if ok {
			rec.Order = len(records)
			records = append(records, rec)
		}
		return true
	})
	return records, nil
}

func recordForNode(node *sitter.Node, source []byte) (StructuralRecord, bool) {
	switch node.Kind() {
	case "function_definition":
		return StructuralRecord{
			Kind:       KindFunction,
			Name:       strings.TrimSpace(nodeText(node.ChildByFieldName("name"), source)),
			Line:       nodeLine(node),
			Params:     parameterNames(node.ChildByFieldName("parameters"), source),
			SourceText: reconstructText(node, source),
		}, true
	case "class_definition":
		return StructuralRecord{
			Kind:       KindClass,
			Name:       strings.TrimSpace(nodeText(node.ChildByFieldName("name"), source)),
			Line:       nodeLine(node),
			SourceText: reconstructText(node, source),
		}, true
	case "for_statement", "while_statement":
		return StructuralRecord{
			Kind:       KindLoop,
			Line:       nodeLine(node),
			SourceText: reconstructText(node, source),
		}, true
	default:
		return StructuralRecord{}, false
	}
}

// parameterNames lists declared parameters in order. Splat parameters keep
// their star prefix; bare "*" and "/" separators are dropped.
func parameterNames(params *sitter.Node, source []byte) []string {
	names := make([]string, 0)
	if params == nil {
		return names
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		child := params.NamedChild(i)
		if child == nil {
			continue
		}
		if name := parameterName(child, source); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func parameterName(node *sitter.Node, source []byte) string {
	switch node.Kind() {
	case "identifier", "list_splat_pattern", "dictionary_splat_pattern":
		return strings.TrimSpace(nodeText(node, source))
	case "default_parameter", "typed_default_parameter":
		return strings.TrimSpace(nodeText(node.ChildByFieldName("name"), source))
	case "typed_parameter":
		// The annotated target is the first named child.
		if node.NamedChildCount() == 0 {
			return ""
		}
		return parameterName(node.NamedChild(0), source)
	default:
		return ""
	}
}

func newParseError(root *sitter.Node, source []byte) *ParseError {
	node := firstSyntaxError(root)
	if node == nil {
		node = root
	}
	pos := node.StartPosition()

	msg := "invalid syntax"
	switch {
	case node.IsMissing():
		msg = "missing " + node.Kind()
	case node.IsError():
		snippet := strings.TrimSpace(firstLine(nodeText(node, source)))
		if snippet != "" {
			msg = "invalid syntax near " + truncate(snippet, 40)
		}
	}

	return &ParseError{
		Line:    int(pos.Row) + 1,
		Column:  int(pos.Column) + 1,
		Message: msg,
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
