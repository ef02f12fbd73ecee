// Package normalizers provides text cleanup functions applied to scraped
// fields before they reach the merge engine.
package normalizers

import (
	"regexp"
	"strings"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("repair_doubled", RepairDoubled)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CollapseWhitespace replaces runs of whitespace with a single space
func CollapseWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// RepairDoubled repairs a string that was accidentally concatenated to
// itself upstream ("JohnJohn" -> "John"). After trimming, if the string has
// even length >= 2 and its first half equals its second half, the first half
// is returned; otherwise the trimmed input is returned unchanged. Idempotent:
// RepairDoubled(RepairDoubled(s)) == RepairDoubled(s).
func RepairDoubled(s string) string {
	s = strings.TrimSpace(s)
	// repeat until a fixed point so quadrupled strings collapse fully
	for {
		n := len(s)
		if n < 2 || n%2 != 0 {
			return s
		}
		half := n / 2
		if s[:half] != s[half:] {
			return s
		}
		s = s[:half]
	}
}

// IsDoubled reports whether RepairDoubled would change s. Used by the
// startup backfill to find stored rows still carrying the corruption.
func IsDoubled(s string) bool {
	return RepairDoubled(s) != strings.TrimSpace(s)
}
