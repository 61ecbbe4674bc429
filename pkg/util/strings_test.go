package util

import (
	"reflect"
	"testing"
)

func TestSplitCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"S4", 1},
		{"S4,S5", 2},
		{"S4, S5, S6", 3},
		{"S4,,S5", 2},
	}

	for _, tt := range tests {
		got := SplitCommaSeparated(tt.input)
		if len(got) != tt.want {
			t.Errorf("SplitCommaSeparated(%q) = %v (len %d), want len %d", tt.input, got, len(got), tt.want)
		}
	}
}

func TestNonEmptyLines(t *testing.T) {
	got := NonEmptyLines("  vlan 50 \n\n\t\n name DATA\n")
	want := []string{"vlan 50", "name DATA"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NonEmptyLines() = %q, want %q", got, want)
	}

	if got := NonEmptyLines("   \n"); got != nil {
		t.Errorf("NonEmptyLines(blank) = %q, want nil", got)
	}
}

func TestIndent(t *testing.T) {
	if got := Indent("a\nb\n", "  "); got != "  a\n  b\n" {
		t.Errorf("Indent() = %q", got)
	}
	if got := Indent("", "  "); got != "" {
		t.Errorf("Indent(empty) = %q", got)
	}
}
