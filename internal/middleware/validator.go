package middleware

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Input validation and sanitization utilities

// ValidateURL checks that rawURL is an absolute http(s) URL
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	// Parse URL
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	// Check scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// ValidateFilename accepts a bare file name: no directories, no traversal
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("filename must not contain a path")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid filename")
	}

	// Block dangerous patterns
	if strings.ContainsAny(name, "\x00\n\r") {
		return fmt.Errorf("invalid characters in filename")
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
		return 50 // default
	}
	if limit > 500 {
		return 500 // max limit
	}
	return limit
}
