package utils

import (
	"path/filepath"
	"strings"
)

const maxFileNameLength = 200

// SanitizeFileName replaces characters that are invalid in file names and
// keeps the name under a sane length, preserving the extension.
func SanitizeFileName(filename string) string {
	invalidChars := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	sanitized := strings.TrimSpace(filename)
	for _, char := range invalidChars {
		sanitized = strings.ReplaceAll(sanitized, char, "_")
	}

	if sanitized == "" {
		return "untitled"
	}

	if len(sanitized) > maxFileNameLength {
		ext := filepath.Ext(sanitized)
		if len(ext) > 16 {
			ext = ""
		}
		sanitized = sanitized[:maxFileNameLength-len(ext)] + ext
	}

	return sanitized
}
