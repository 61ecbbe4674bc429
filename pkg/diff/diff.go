// Package diff produces line-based configuration diffs.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ContextLines is the number of unchanged lines shown around each hunk.
const ContextLines = 3

// Result is a computed or device-native diff.
type Result struct {
	// Text is the diff as shown to the approver.
	Text string

	Added   int
	Removed int

	// Native is set when Text came from the device's own compare.
	Native bool
}

// IsEmpty reports whether the diff has no inserted or deleted lines.
// It is the authoritative no-op signal for the change workflow.
func (r *Result) IsEmpty() bool {
	if r == nil {
		return true
	}
	if r.Native {
		return strings.TrimSpace(r.Text) == ""
	}
	return r.Added == 0 && r.Removed == 0
}

// Summary is a one-line "+N -M" description.
func (r *Result) Summary() string {
	if r.IsEmpty() {
		return "no change"
	}
	return fmt.Sprintf("+%d -%d", r.Added, r.Removed)
}

// Unified diffs two texts line by line with labelled headers.
func Unified(a, b, fromLabel, toLabel string) (*Result, error) {
	aLines, bLines := splitLines(a), splitLines(b)

	res := &Result{}
	for _, op := range difflib.NewMatcher(aLines, bLines).GetOpCodes() {
		switch op.Tag {
		case 'd':
			res.Removed += op.I2 - op.I1
		case 'i':
			res.Added += op.J2 - op.J1
		case 'r':
			res.Removed += op.I2 - op.I1
			res.Added += op.J2 - op.J1
		}
	}
	if res.IsEmpty() {
		return res, nil
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        aLines,
		B:        bLines,
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  ContextLines,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering diff: %w", err)
	}
	res.Text = text
	return res, nil
}

// Native wraps the compare output of a transactional device. Lines
// starting with "+" or "-" are counted, headers excluded.
func Native(text string) *Result {
	res := &Result{Text: text, Native: true}
	for _, ln := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(ln, "+++"), strings.HasPrefix(ln, "---"):
		case strings.HasPrefix(ln, "+"):
			res.Added++
		case strings.HasPrefix(ln, "-"):
			res.Removed++
		}
	}
	return res
}

// splitLines splits text keeping line endings, like a file read
// line by line. A missing final newline is added so the last line
// compares equal to a terminated one. CRLF endings compare equal to LF.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if last := lines[len(lines)-1]; !strings.HasSuffix(last, "\n") {
		lines[len(lines)-1] = last + "\n"
	}
	return lines
}
