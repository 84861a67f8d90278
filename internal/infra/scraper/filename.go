package scraper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxNameLen = 100

var (
	pricePattern      = regexp.MustCompile(`\$\d+\.?\d*`)
	invalidChars      = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedUnderline = regexp.MustCompile(`_+`)
	innerWhitespace   = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes a product name safe as a file name on every OS:
// prices and reserved characters go, spaces become underscores, length is capped.
func SanitizeFilename(name string) string {
	name = pricePattern.ReplaceAllString(name, "")
	name = invalidChars.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, " ", "_")
	name = repeatedUnderline.ReplaceAllString(name, "_")
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen])
	}
	return strings.Trim(name, "_")
}

// cleanProductName collapses whitespace and drops the wishlist button label.
func cleanProductName(text string) string {
	text = innerWhitespace.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "Not hearted", "")
	return strings.TrimSpace(text)
}

// UniquePath returns path, or path with _1, _2, ... before the extension when taken.
func UniquePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}
