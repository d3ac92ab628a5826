package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/markdown":   true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// ValidateUpload checks filename and declared content type of an uploaded
// document before it is accepted into storage.
func ValidateUpload(filename, contentType string) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	// Block path traversal and shell metacharacters in filenames
	dangerous := []string{"../", "..", "$(", "`", "&", "|", ";", "\n", "\r", "\x00"}
	for _, d := range dangerous {
		if strings.Contains(filename, d) {
			return fmt.Errorf("invalid characters in filename")
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}

	if base != "" && allowedContentTypes[base] {
		return nil
	}
	if allowedExtensions[ext] {
		return nil
	}
	return fmt.Errorf("unsupported document type: %s (%s)", filename, contentType)
}

// ValidateOrgID validates org ID format
func ValidateOrgID(org string) error {
	if org == "" {
		return fmt.Errorf("org ID cannot be empty")
	}

	// Allow alphanumeric, dash, underscore (max 64 chars)
	pattern := `^[a-zA-Z0-9_-]{1,64}$`
	matched, _ := regexp.MatchString(pattern, org)
	if !matched {
		return fmt.Errorf("invalid org ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}

	return nil
}

// ValidateAuditID validates audit ID format
func ValidateAuditID(auditID string) error {
	if auditID == "" {
		return fmt.Errorf("audit ID cannot be empty")
	}

	pattern := `^[a-zA-Z0-9_-]{1,64}$`
	matched, _ := regexp.MatchString(pattern, auditID)
	if !matched {
		return fmt.Errorf("invalid audit ID format")
	}

	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
