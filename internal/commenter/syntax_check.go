package commenter

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// The grammar is more permissive than Python itself. checkPythonSyntax
// rejects what it lets through: empty suites, inconsistent dedents, Python 2
// print/exec statements and keywords parsed as names.

var compoundStatementKinds = map[string]bool{
	"function_definition": true,
	"class_definition":    true,
	"for_statement":       true,
	"while_statement":     true,
	"if_statement":        true,
	"elif_clause":         true,
	"else_clause":         true,
	"with_statement":      true,
	"try_statement":       true,
	"except_clause":       true,
	"except_group_clause": true,
	"finally_clause":      true,
	"match_statement":     true,
	"case_clause":         true,
}

// Reserved words that can never name anything. print, exec, async and await
// are left out; the grammar aliases them to identifiers on its own.
var reservedWords = map[string]bool{
	"and": true, "as": true, "assert": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

func checkPythonSyntax(root *sitter.Node, source []byte) *ParseError {
	indents := lineIndents(source)
	var found *ParseError
	walkTreePreOrder(root, func(node *sitter.Node) bool {
		if found != nil {
			return false
		}
		found = checkSyntaxNode(node, source, indents)
		return found == nil
	})
	return found
}

func checkSyntaxNode(node *sitter.Node, source []byte, indents []int) *ParseError {
	kind := node.Kind()
	switch {
	case kind == "print_statement":
		return parseErrorAt(node.StartPosition(), "missing parentheses in call to 'print'")
	case kind == "exec_statement":
		return parseErrorAt(node.StartPosition(), "missing parentheses in call to 'exec'")
	case kind == "identifier":
		if name := nodeText(node, source); reservedWords[name] {
			return parseErrorAt(node.StartPosition(), "invalid syntax near "+name)
		}
	case compoundStatementKinds[kind]:
		body := childOfKind(node, "block")
		if body == nil || len(statementNodes(body)) == 0 {
			return parseErrorAt(node.StartPosition(), "expected an indented block after "+headerKeyword(node, source))
		}
	case kind == "block":
		stmts := statementNodes(node)
		if len(stmts) == 0 {
			return parseErrorAt(node.StartPosition(), "expected an indented block")
		}
		return checkIndentation(stmts, indents, -1)
	case kind == "module":
		return checkIndentation(statementNodes(node), indents, 0)
	}
	return nil
}

// checkIndentation requires every statement that starts its own line to sit
// at the same column. want < 0 takes the column of the first such statement.
// Statements after a semicolon or on a header line are not checked.
func checkIndentation(stmts []*sitter.Node, indents []int, want int) *ParseError {
	for i, stmt := range stmts {
		pos := stmt.StartPosition()
		row, col := int(pos.Row), int(pos.Column)
		if row >= len(indents) || col != indents[row] {
			continue
		}
		if want < 0 {
			want = col
			continue
		}
		if col == want {
			continue
		}
		if col < want || (i > 0 && dedentedFrom(stmts[i-1], col, indents)) {
			return parseErrorAt(pos, "unindent does not match any outer indentation level")
		}
		return parseErrorAt(pos, "unexpected indent")
	}
	return nil
}

// dedentedFrom reports whether prev ends on a line indented deeper than col.
func dedentedFrom(prev *sitter.Node, col int, indents []int) bool {
	row := int(prev.EndPosition().Row)
	return row < len(indents) && indents[row] > col
}

// headerKeyword names a compound statement the way Python's own errors do,
// e.g. "'if' statement on line 3".
func headerKeyword(node *sitter.Node, source []byte) string {
	line := nodeLine(node)
	switch node.Kind() {
	case "function_definition":
		return fmt.Sprintf("function definition on line %d", line)
	case "class_definition":
		return fmt.Sprintf("class definition on line %d", line)
	}
	word := ""
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && !child.IsNamed() {
			word = nodeText(child, source)
			break
		}
	}
	return fmt.Sprintf("'%s' statement on line %d", word, line)
}

func statementNodes(parent *sitter.Node) []*sitter.Node {
	stmts := make([]*sitter.Node, 0, parent.NamedChildCount())
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		child := parent.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "comment", "line_continuation":
			continue
		}
		stmts = append(stmts, child)
	}
	return stmts
}

func childOfKind(node *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

// lineIndents holds the byte width of each line's leading whitespace.
func lineIndents(source []byte) []int {
	lines := strings.Split(string(source), "\n")
	out := make([]int, len(lines))
	for i, line := range lines {
		out[i] = len(line) - len(strings.TrimLeft(line, " \t\f"))
	}
	return out
}

func parseErrorAt(pos sitter.Point, msg string) *ParseError {
	return &ParseError{
		Line:    int(pos.Row) + 1,
		Column:  int(pos.Column) + 1,
		Message: msg,
	}
}
