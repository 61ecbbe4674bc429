// Package changeset models the configuration lines applied to devices.
package changeset

import (
	"fmt"
	"os"
	"strings"

	"github.com/newtron-network/netchange/pkg/util"
)

// Mode selects how a transactional device loads the candidate.
type Mode string

const (
	// Merge applies the lines on top of the existing configuration.
	Merge Mode = "merge"
	// Replace substitutes the entire configuration.
	Replace Mode = "replace"
)

// ChangeSet is an ordered list of configuration lines plus how and where
// to apply them.
type ChangeSet struct {
	// Source names where the lines came from (file path or snapshot key).
	Source string

	// Lines are the trimmed, non-blank lines in file order.
	Lines []string

	// Body, when set, is sent verbatim instead of the joined Lines.
	// Snapshot-based replace candidates use it to keep indentation.
	Body string

	Mode Mode

	// Scope is an allow-list of device names. Nil means every device
	// of the target role.
	Scope []string
}

// Parse builds a change set from text, dropping blank lines.
func Parse(source, text string, mode Mode) (*ChangeSet, error) {
	if mode != Merge && mode != Replace {
		return nil, fmt.Errorf("changeset %s: unknown mode %q: %w", source, mode, util.ErrInvalidConfig)
	}
	return &ChangeSet{
		Source: source,
		Lines:  util.NonEmptyLines(text),
		Mode:   mode,
	}, nil
}

// Load reads a newline-delimited change set file.
func Load(path string, mode Mode) (*ChangeSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading changeset: %w", err)
	}
	return Parse(path, string(data), mode)
}

// FromSnapshot builds a replace-mode change set whose body is a
// previously captured configuration.
func FromSnapshot(source, content string) *ChangeSet {
	return &ChangeSet{
		Source: source,
		Lines:  util.NonEmptyLines(content),
		Body:   content,
		Mode:   Replace,
	}
}

// WithScope returns a copy restricted to the named devices.
func (c *ChangeSet) WithScope(names ...string) *ChangeSet {
	out := *c
	out.Scope = make([]string, len(names))
	copy(out.Scope, names)
	return &out
}

// Text is the candidate text sent to the device: Body if set, otherwise
// the lines joined with a trailing newline.
func (c *ChangeSet) Text() string {
	if c.Body != "" {
		return c.Body
	}
	if len(c.Lines) == 0 {
		return ""
	}
	return strings.Join(c.Lines, "\n") + "\n"
}

// IsEmpty reports whether there is nothing to apply.
func (c *ChangeSet) IsEmpty() bool {
	return len(c.Lines) == 0 && strings.TrimSpace(c.Body) == ""
}

// InScope reports whether the named device may receive this change set.
func (c *ChangeSet) InScope(name string) bool {
	if c.Scope == nil {
		return true
	}
	for _, s := range c.Scope {
		if s == name {
			return true
		}
	}
	return false
}
