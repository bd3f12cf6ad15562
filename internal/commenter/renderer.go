package commenter

import (
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

const outlineTemplate = `# Outline

{{if .}}| Line | Kind | Name | Params |
|------|------|------|--------|
{{- range .}}
| {{.Line}} | {{.Kind}} | {{displayName .}} | {{join .Params ", "}} |
{{- end}}
{{else}}No functions, classes or loops found.
{{end}}`

var outlineTmpl = template.Must(template.New("outline").Funcs(template.FuncMap{
	"join":        strings.Join,
	"displayName": displayName,
}).Parse(outlineTemplate))

// RenderOutline renders records as a Markdown table.
func RenderOutline(records []StructuralRecord) (string, error) {
	var sb strings.Builder
	if err := outlineTmpl.Execute(&sb, records); err != nil {
		return "", errors.Wrap(err, "execute outline template")
	}
	return sb.String(), nil
}

// Outline extracts records from source and renders them. The text generator is
// not involved.
func Outline(source string) (string, error) {
	records, err := Extract([]byte(source))
	if err != nil {
		return "", err
	}
	return RenderOutline(records)
}

func displayName(rec StructuralRecord) string {
	if rec.Name == "" {
		return "-"
	}
	return truncate(rec.Name, 40)
}

// truncate shortens s to maxLen runes, marking the cut with an ellipsis.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
