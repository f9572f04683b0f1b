package utils

import (
	"mime"
	"path"
	"strings"
)

const defaultContentType = "application/octet-stream"

// text formats the mime table does not know on every platform
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".log":  true,
	".ini":  true,
	".go":   true,
	".rs":   true,
	".py":   true,
}

// DetectContentType guesses a content type from a container or local path.
func DetectContentType(p string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(p, `\`, "/")))
	if ext == "" {
		return defaultContentType
	}
	if textExtensions[ext] {
		return "text/plain; charset=utf-8"
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return defaultContentType
}
