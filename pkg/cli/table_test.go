package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "DEVICE", "RESULT")
	tbl.Flush()
	if buf.Len() != 0 {
		t.Errorf("empty table wrote %q", buf.String())
	}
}

func TestTable_HeadersDividerAndRows(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "DEVICE", "RESULT").WithPrefix("  ")
	tbl.Row("S1", "committed")
	tbl.Row("R1", "discarded")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "  DEVICE") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "------") {
		t.Errorf("divider line = %q", lines[1])
	}
	if !strings.Contains(lines[3], "discarded") {
		t.Errorf("row line = %q", lines[3])
	}
}
