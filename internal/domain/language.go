package domain

import (
	"path/filepath"
	"strings"
)

// languageByExtension maps file extensions to language tags used for chunk
// metadata and split-marker lookup.
var languageByExtension = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".c":     "c",
	".h":     "c",
	".cs":    "csharp",
	".php":   "php",
	".rb":    "ruby",
	".go":    "go",
	".rs":    "rust",
	".scala": "scala",
	".kt":    "kotlin",
	".swift": "swift",
	".r":     "r",
	".sql":   "sql",
	".md":    "markdown",
	".html":  "html",
	".css":   "css",
	".sh":    "bash",
	".yml":   "yaml",
	".yaml":  "yaml",
	".json":  "json",
	".xml":   "xml",
	".vue":   "vue",
	".txt":   "text",
}

// DetectLanguage infers the language tag from a file path's extension.
// Unknown extensions map to "text".
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "text"
}
