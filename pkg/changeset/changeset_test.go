package changeset

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cs, err := Parse("vlan.cfg", "\n  vlan 50 \n\n\t name users\n   \nvlan 60\n", Merge)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	want := []string{"vlan 50", "name users", "vlan 60"}
	if !reflect.DeepEqual(cs.Lines, want) {
		t.Errorf("Lines = %q, want %q", cs.Lines, want)
	}
	if cs.Text() != "vlan 50\nname users\nvlan 60\n" {
		t.Errorf("Text() = %q", cs.Text())
	}
	if cs.Scope != nil || !cs.InScope("anything") {
		t.Error("unscoped change set should admit every device")
	}
}

func TestParse_BadMode(t *testing.T) {
	if _, err := Parse("x", "vlan 50", Mode("patch")); err == nil {
		t.Error("Parse() with unknown mode should fail")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback_vlan.cfg")
	if err := os.WriteFile(path, []byte("no vlan 50\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cs, err := Load(path, Merge)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cs.Source != path || len(cs.Lines) != 1 || cs.Lines[0] != "no vlan 50" {
		t.Errorf("Load() = %+v", cs)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.cfg"), Merge); err == nil {
		t.Error("Load() of missing file should fail")
	}
}

func TestFromSnapshot_KeepsIndentation(t *testing.T) {
	body := "interfaces {\n    ge-0/0/0 {\n        unit 0;\n    }\n}\n"
	cs := FromSnapshot("S1_pre", body)
	if cs.Mode != Replace {
		t.Errorf("Mode = %q, want replace", cs.Mode)
	}
	if cs.Text() != body {
		t.Errorf("Text() = %q, want verbatim body", cs.Text())
	}
	if cs.Lines[1] != "ge-0/0/0 {" {
		t.Errorf("Lines[1] = %q, want trimmed line", cs.Lines[1])
	}
}

func TestWithScope(t *testing.T) {
	base, _ := Parse("rb", "no vlan 50", Merge)
	scoped := base.WithScope("S4", "S5", "S6")

	if base.Scope != nil {
		t.Error("WithScope() should not modify the receiver")
	}
	for _, n := range []string{"S4", "S5", "S6"} {
		if !scoped.InScope(n) {
			t.Errorf("InScope(%s) = false", n)
		}
	}
	if scoped.InScope("S1") {
		t.Error("InScope(S1) = true, want false")
	}

	empty := base.WithScope()
	if empty.InScope("S4") {
		t.Error("empty allow-list should admit nothing")
	}
}

func TestIsEmpty(t *testing.T) {
	cs, _ := Parse("x", "  \n\n", Merge)
	if !cs.IsEmpty() || cs.Text() != "" {
		t.Error("blank change set should be empty")
	}
}
