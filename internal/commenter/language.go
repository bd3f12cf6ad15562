package commenter

import (
	"path/filepath"
	"strings"
)

const languagePython = "python"

// LanguageSpec describes source file matching rules for a language.
type LanguageSpec struct {
	ID            string
	FileSuffixes  []string
	DefaultSuffix string
}

// PythonSpec is the only language the extractor understands.
var PythonSpec = LanguageSpec{
	ID:            languagePython,
	FileSuffixes:  []string{".py", ".pyi", ".pyw"},
	DefaultSuffix: ".py",
}

// IsSourcePath reports whether path names a Python source file.
func IsSourcePath(path string) bool {
	return hasAnySuffix(strings.ToLower(filepath.Base(path)), PythonSpec.FileSuffixes)
}

// WithDefaultSuffix appends the default suffix when path has no extension.
func WithDefaultSuffix(path string) string {
	if path == "" || filepath.Ext(path) != "" {
		return path
	}
	return path + PythonSpec.DefaultSuffix
}

func hasAnySuffix(value string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(value, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}
