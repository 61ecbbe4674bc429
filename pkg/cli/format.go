// Package cli provides shared formatting helpers for the netchange console transcript.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

// SetColor overrides NO_COLOR detection (used by --no-color and tests).
func SetColor(enabled bool) {
	colorEnabled = enabled
}

// Green wraps s in ANSI green. Returns s unchanged when color is disabled.
func Green(s string) string {
	return wrap("\033[32m", s)
}

// Yellow wraps s in ANSI yellow. Returns s unchanged when color is disabled.
func Yellow(s string) string {
	return wrap("\033[33m", s)
}

// Red wraps s in ANSI red. Returns s unchanged when color is disabled.
func Red(s string) string {
	return wrap("\033[31m", s)
}

// Bold wraps s in ANSI bold. Returns s unchanged when color is disabled.
func Bold(s string) string {
	return wrap("\033[1m", s)
}

// Dim wraps s in ANSI dim. Returns s unchanged when color is disabled.
func Dim(s string) string {
	return wrap("\033[2m", s)
}

func wrap(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// Marker renders a bracketed status tag such as "[OK]" or "[ERROR]",
// colored by severity.
func Marker(status string) string {
	tag := "[" + strings.ToUpper(status) + "]"
	switch strings.ToLower(status) {
	case "ok", "committed", "success", "no-change", "backed-up":
		return Green(tag)
	case "warning", "warn", "discarded", "skipped", "simulated":
		return Yellow(tag)
	case "error", "failed", "aborted", "unreachable":
		return Red(tag)
	default:
		return tag
	}
}

// DotPad pads name with dots to the given width.
// Example: DotPad("S1", 10) → "S1 ......."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}

// Banner renders a section header line, e.g. "=== Processing S1 (10.0.0.1) ===".
func Banner(title string) string {
	return Bold("=== " + title + " ===")
}
