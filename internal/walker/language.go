package walker

import (
	"path/filepath"
	"strings"
)

// extensionToLanguage maps file extensions to canonical lowercase language
// identifiers. Lowercase matches the vocabulary the noise filter, ranker and
// call-graph builder test against ("rust", "go", "toml", ...).
var extensionToLanguage = map[string]string{
	".go":      "go",
	".py":      "python",
	".pyi":     "python",
	".ts":      "typescript",
	".tsx":     "typescript",
	".mts":     "typescript",
	".js":      "javascript",
	".jsx":     "javascript",
	".mjs":     "javascript",
	".cjs":     "javascript",
	".java":    "java",
	".rs":      "rust",
	".c":       "c",
	".h":       "c",
	".cpp":     "cpp",
	".cc":      "cpp",
	".cxx":     "cpp",
	".hpp":     "cpp",
	".hxx":     "cpp",
	".cs":      "csharp",
	".rb":      "ruby",
	".php":     "php",
	".swift":   "swift",
	".kt":      "kotlin",
	".kts":     "kotlin",
	".scala":   "scala",
	".sc":      "scala",
	".sh":      "shell",
	".bash":    "shell",
	".zsh":     "shell",
	".sql":     "sql",
	".html":    "html",
	".htm":     "html",
	".css":     "css",
	".scss":    "css",
	".sass":    "css",
	".less":    "css",
	".yaml":    "yaml",
	".yml":     "yaml",
	".json":    "json",
	".toml":    "toml",
	".tf":      "terraform",
	".tfvars":  "terraform",
	".md":      "markdown",
	".markdown": "markdown",
	".rst":     "markdown",
	".proto":   "protobuf",
	".lua":     "lua",
	".dart":    "dart",
	".ex":      "elixir",
	".exs":     "elixir",
	".hs":      "haskell",
	".pl":      "perl",
	".pm":      "perl",
	".vue":     "vue",
	".svelte":  "svelte",
}

// filenameToLanguage maps specific filenames to language identifiers.
var filenameToLanguage = map[string]string{
	"Dockerfile":          "dockerfile",
	"Makefile":            "makefile",
	"Jenkinsfile":         "groovy",
	"Vagrantfile":         "ruby",
	"Gemfile":             "ruby",
	"Rakefile":            "ruby",
	"go.mod":              "gomod",
	"go.sum":              "gosum",
	"Cargo.toml":          "toml",
	"pyproject.toml":      "toml",
	"package.json":        "json",
	"docker-compose.yml":  "yaml",
	"docker-compose.yaml": "yaml",
}

// DetectLanguage returns the canonical language identifier for a filename,
// based on an exact filename match first, then its extension. Returns ""
// for unrecognized files (mirrors an unset `Option<&str>` language on the
// Rust side of the file artifact).
func DetectLanguage(filename string) string {
	base := filepath.Base(filename)

	if lang, ok := filenameToLanguage[base]; ok {
		return lang
	}

	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		return ""
	}

	return extensionToLanguage[ext]
}
