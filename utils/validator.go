// utils/validator.go - Input validation and filename helpers
package utils

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxFilenameLength = 150

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}

// IsDigitsOnly reports whether s, once trimmed, is non-empty and made of decimal digits.
func IsDigitsOnly(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SafeFilename keeps letters, digits, '-', '_', '.' and spaces, turns spaces
// into underscores and caps the result at 150 characters. An empty result
// becomes "file".
func SafeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_. ", r) {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if cleaned == "" {
		return "file"
	}
	if runes := []rune(cleaned); len(runes) > maxFilenameLength {
		cleaned = string(runes[:maxFilenameLength])
	}
	return cleaned
}

// CleanForName lowercases an identifier for use inside a stored file name.
// Blank or fully stripped input becomes "unknown".
func CleanForName(value string, maxLen int) string {
	value = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), " ", "_")
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_-.@", r) {
			b.WriteRune(r)
		}
	}
	cleaned := []rune(b.String())
	if len(cleaned) == 0 {
		return "unknown"
	}
	if len(cleaned) > maxLen {
		cleaned = cleaned[:maxLen]
	}
	return string(cleaned)
}

// Extension returns the lowercased extension of name, including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

var extensionToMime = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentTypeForFilename maps a file extension to the content type sent on upload.
func ContentTypeForFilename(name string) string {
	if ct, ok := extensionToMime[Extension(name)]; ok {
		return ct
	}
	return "application/octet-stream"
}
