package cli

import (
	"strings"
	"testing"
)

func TestDotPad(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{"normal case", "S1", 10, "S1 " + strings.Repeat(".", 7)},
		{"name equals width minus one", "abcde", 6, "abcde"},
		{"name longer than width", "very-long-name", 5, "very-long-name"},
		{"zero width", "S1", 0, "S1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DotPad(tt.input, tt.width); got != tt.expected {
				t.Errorf("DotPad(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.expected)
			}
		})
	}
}

func TestMarker_NoColor(t *testing.T) {
	SetColor(false)
	defer SetColor(true)

	tests := []struct {
		status string
		want   string
	}{
		{"ok", "[OK]"},
		{"error", "[ERROR]"},
		{"warning", "[WARNING]"},
		{"custom", "[CUSTOM]"},
	}
	for _, tt := range tests {
		if got := Marker(tt.status); got != tt.want {
			t.Errorf("Marker(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestColorWrapping(t *testing.T) {
	SetColor(true)
	if got := Red("x"); got != "\033[31mx\033[0m" {
		t.Errorf("Red() = %q", got)
	}
	SetColor(false)
	defer SetColor(true)
	if got := Red("x"); got != "x" {
		t.Errorf("Red() with color disabled = %q", got)
	}
}
