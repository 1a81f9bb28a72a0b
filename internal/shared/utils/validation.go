package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Request and payload size limits (in bytes)
const (
	MaxPackRequestSize = 64 * 1024 // serve-mode pack request body limit
	MaxScriptSize      = 256 * 1024
	MaxProfileSize     = 512 * 1024
)

// String length limits
const (
	MaxProfileNameLength = 64
	MaxPatternLength     = 512
	MaxPatternCount      = 256
)

// Regular expressions for validation
var (
	// ProfileNamePattern allows alphanumeric, hyphens, underscores
	ProfileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// FormatPattern matches the supported output formats
	FormatPattern = regexp.MustCompile(`^(markdown|md|xml|json|plain)$`)
)

// ValidateProfileName checks a profile name is safe for resolution and
// filesystem lookup.
func ValidateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name required")
	}
	if len(name) > MaxProfileNameLength {
		return fmt.Errorf("profile name exceeds %d characters", MaxProfileNameLength)
	}
	if !ProfileNamePattern.MatchString(name) {
		return fmt.Errorf("profile name %q contains invalid characters", name)
	}
	return nil
}

// ValidateRoot checks that the pack root exists and is a directory.
func ValidateRoot(root string) error {
	if root == "" {
		return fmt.Errorf("root path required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path %q: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path %q is not a directory", root)
	}
	return nil
}

// ValidateFormat checks an output format name.
func ValidateFormat(format string) error {
	if !FormatPattern.MatchString(format) {
		return fmt.Errorf("unsupported format %q (want markdown, xml, json, or plain)", format)
	}
	return nil
}

// ValidatePatterns checks a glob pattern list for obvious abuse before the
// matcher sees it.
func ValidatePatterns(patterns []string) error {
	if len(patterns) > MaxPatternCount {
		return fmt.Errorf("too many patterns: %d exceeds %d", len(patterns), MaxPatternCount)
	}
	for _, p := range patterns {
		if p == "" {
			return fmt.Errorf("empty pattern")
		}
		if len(p) > MaxPatternLength {
			return fmt.Errorf("pattern %q exceeds %d characters", p[:32]+"...", MaxPatternLength)
		}
	}
	return nil
}

// SafeRelPath returns the slash-separated path of target relative to root,
// rejecting anything that escapes the root.
func SafeRelPath(root, target string) (string, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", fmt.Errorf("relativize %q: %w", target, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root", target)
	}
	return filepath.ToSlash(rel), nil
}

// ValidUTF8 reports whether data decodes as UTF-8 text.
func ValidUTF8(data []byte) bool {
	return utf8.Valid(data)
}
