package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// maxPathLen bounds URL paths in log output.
	maxPathLen = 500
	// maxErrorLen bounds error messages in log output.
	maxErrorLen = 1000
)

// SanitizePath makes a request path safe to log: invalid UTF-8 and
// control characters are stripped and the result is length-bounded.
// Request paths are attacker-controlled, so they never go to the log
// verbatim.
func SanitizePath(path string) string {
	return SanitizeString(path, maxPathLen)
}

// SanitizeError makes an error message safe to log. Errors can wrap
// user input (task titles, reminder payloads), so they get the same
// treatment as paths.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), maxErrorLen)
}

// SanitizeString strips control characters and invalid UTF-8 from s and
// truncates it to max bytes. Space, tab, newline and carriage return
// survive the filter.
func SanitizeString(s string, max int) string {
	if s == "" {
		return ""
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return r
		}
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)

	if max > 0 && len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
