package util

import (
	"regexp"
	"strconv"
	"strings"
)

func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

// Full-width and no-break spaces are common on Japanese reservation pages.
var whitespaceRegex = regexp.MustCompile(`[\s\x{00a0}\x{3000}]+`)

// NormalizeSpace collapses whitespace runs to a single space and trims the result.
func NormalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// ParseBool accepts the usual env spellings ("1", "true", "yes", "on").
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
