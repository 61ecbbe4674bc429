package rollback

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/newtron-network/netchange/internal/testutil"
	"github.com/newtron-network/netchange/pkg/changeset"
	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/orchestrator"
	"github.com/newtron-network/netchange/pkg/snapshot"
	"github.com/newtron-network/netchange/pkg/util"
)

const baseConfig = "hostname lab\nvlan 10\n"

func newOrch(t *testing.T, conn *testutil.FakeConnector, decision orchestrator.Decision) *orchestrator.Orchestrator {
	t.Helper()
	st, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	o := orchestrator.New(conn, st, orchestrator.StaticApprover(decision))
	o.Out = &bytes.Buffer{}
	return o
}

func savePre(t *testing.T, o *orchestrator.Orchestrator, dev, content string) {
	t.Helper()
	if err := o.Store.Save(context.Background(), snapshot.New(dev, snapshot.Pre, content)); err != nil {
		t.Fatal(err)
	}
}

func TestRestore_Transactional(t *testing.T) {
	inv, conn := testutil.Fleet(baseConfig+"vlan 50\n", "S1")
	o := newOrch(t, conn, orchestrator.DecisionCommit)
	savePre(t, o, "S1", baseConfig)

	report, err := New(o).Restore(context.Background(), inv, Options{})
	if err != nil {
		t.Fatal(err)
	}
	out := report.Outcome("S1")
	if out.Result != orchestrator.ResultCommitted {
		t.Fatalf("Result = %s, Err = %v", out.Result, out.Err)
	}
	fake := conn.Transactional("S1")
	if fake.Running() != baseConfig {
		t.Errorf("running = %q, want restored %q", fake.Running(), baseConfig)
	}
	if fake.Count(testutil.OpLoadReplace) != 1 || fake.Count(testutil.OpLoadMerge) != 0 {
		t.Error("restore must stage a replace candidate")
	}

	// the restore point survives the rollback
	pre, err := o.Store.Load(context.Background(), "S1", snapshot.Pre)
	if err != nil || pre.Content != baseConfig {
		t.Errorf("pre snapshot after restore = %v, %v", pre, err)
	}
	post, err := o.Store.Load(context.Background(), "S1", snapshot.Post)
	if err != nil || post.Content != baseConfig {
		t.Errorf("post snapshot after restore = %v, %v", post, err)
	}
}

func TestRestore_PreservesIndentation(t *testing.T) {
	pre := "interfaces {\n    ge-0/0/0 {\n        unit 0;\n    }\n}\n"
	inv, conn := testutil.Fleet("interfaces {\n}\n", "S1")
	o := newOrch(t, conn, orchestrator.DecisionCommit)
	savePre(t, o, "S1", pre)

	if _, err := New(o).Restore(context.Background(), inv, Options{}); err != nil {
		t.Fatal(err)
	}
	if got := conn.Transactional("S1").Running(); got != pre {
		t.Errorf("running = %q, want snapshot body verbatim %q", got, pre)
	}
}

func TestRestore_Simulate(t *testing.T) {
	inv, conn := testutil.Fleet(baseConfig+"vlan 50\n", "S1")
	o := newOrch(t, conn, orchestrator.DecisionCommit)
	savePre(t, o, "S1", baseConfig)

	report, err := New(o).Restore(context.Background(), inv, Options{Simulate: true})
	if err != nil {
		t.Fatal(err)
	}
	out := report.Outcome("S1")
	if out.Result != orchestrator.ResultSimulated {
		t.Errorf("Result = %s, want simulated", out.Result)
	}
	if out.Diff == nil || !strings.Contains(out.Diff.Text, "-vlan 50") {
		t.Errorf("diff = %v, want vlan 50 removal", out.Diff)
	}
	fake := conn.Transactional("S1")
	if fake.Count(testutil.OpCommit) != 0 || fake.Count(testutil.OpDiscard) != 1 {
		t.Errorf("commit/discard = %d/%d, want 0/1", fake.Count(testutil.OpCommit), fake.Count(testutil.OpDiscard))
	}
}

func TestRestore_ImperativeIsReadOnly(t *testing.T) {
	inv, conn := testutil.Fleet(baseConfig+"interface Loopback1\n", "R1")
	o := newOrch(t, conn, orchestrator.DecisionCommit)
	savePre(t, o, "R1", baseConfig)

	report, err := New(o).Restore(context.Background(), inv, Options{})
	if err != nil {
		t.Fatal(err)
	}
	out := report.Outcome("R1")
	if out.Result != orchestrator.ResultSimulated {
		t.Errorf("Result = %s, want simulated", out.Result)
	}
	if out.Diff == nil || !strings.Contains(out.Diff.Text, "-interface Loopback1") {
		t.Errorf("diff = %v, want running vs backup_pre", out.Diff)
	}
	fake := conn.Imperative("R1")
	if fake.Count(testutil.OpRunConfig) != 0 {
		t.Error("restore pushed commands to an imperative device")
	}
	if fake.Count(testutil.OpClose) != 1 {
		t.Errorf("Close called %d times, want 1", fake.Count(testutil.OpClose))
	}
}

func TestRestore_MissingSnapshotSkipsWithoutConnecting(t *testing.T) {
	inv, conn := testutil.Fleet(baseConfig, "S1", "R1")
	o := newOrch(t, conn, orchestrator.DecisionCommit)

	report, err := New(o).Restore(context.Background(), inv, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(orchestrator.ResultSkipped) != 2 {
		t.Errorf("summary = %s, want 2 skipped", report.SummaryLine())
	}
	if len(conn.Opened()) != 0 {
		t.Errorf("opened %v, want none", conn.Opened())
	}
}

func TestMerge_Scope(t *testing.T) {
	inv, conn := testutil.Fleet(baseConfig+"vlan 50\n", "S1", "S4", "R1")
	o := newOrch(t, conn, orchestrator.DecisionCommit)
	cs, err := changeset.Parse("rollback_vlan.cfg", "no vlan 50", changeset.Merge)
	if err != nil {
		t.Fatal(err)
	}

	report, err := New(o).Merge(context.Background(), inv, cs.WithScope("S4", "R1"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := report.Outcome("S4").Result; got != orchestrator.ResultCommitted {
		t.Errorf("S4 = %s, want committed", got)
	}
	if got := report.Outcome("S1"); got.Result != orchestrator.ResultSkipped || !strings.Contains(got.Reason, "scope") {
		t.Errorf("S1 = %s (%s), want skipped outside scope", got.Result, got.Reason)
	}
	if got := report.Outcome("R1"); got.Result != orchestrator.ResultSkipped || !strings.Contains(got.Reason, "imperative") {
		t.Errorf("R1 = %s (%s), want skipped as imperative", got.Result, got.Reason)
	}
	if opened := conn.Opened(); len(opened) != 1 || opened[0] != "S4" {
		t.Errorf("opened %v, want only S4", opened)
	}
	if strings.Contains(conn.Transactional("S4").Running(), "vlan 50") {
		t.Error("vlan 50 still on S4")
	}
	if !strings.Contains(conn.Transactional("S1").Running(), "vlan 50") {
		t.Error("S1 was changed")
	}
}

func TestMerge_Rejects(t *testing.T) {
	inv, conn := testutil.Fleet(baseConfig, "S1")
	c := New(newOrch(t, conn, orchestrator.DecisionCommit))
	merge, _ := changeset.Parse("rb.cfg", "no vlan 50", changeset.Merge)

	tests := []struct {
		name string
		cs   *changeset.ChangeSet
	}{
		{"no scope", merge},
		{"replace mode", changeset.FromSnapshot("S1_pre", baseConfig).WithScope("S1")},
		{"empty", &changeset.ChangeSet{Mode: changeset.Merge, Scope: []string{"S1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Merge(context.Background(), inv, tt.cs, Options{}); !errors.Is(err, util.ErrInvalidConfig) {
				t.Errorf("Merge() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
	if len(conn.Opened()) != 0 {
		t.Error("rejected rollback connected to a device")
	}
}

func TestMerge_DeclinedLeavesDevice(t *testing.T) {
	inv, conn := testutil.Fleet(baseConfig+"vlan 50\n", "S4")
	o := newOrch(t, conn, orchestrator.DecisionDiscard)
	cs, _ := changeset.Parse("rb.cfg", "no vlan 50", changeset.Merge)

	report, err := New(o).Merge(context.Background(), inv, cs.WithScope("S4"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := report.Outcome("S4").Result; got != orchestrator.ResultDiscarded {
		t.Errorf("S4 = %s, want discarded", got)
	}
	if !strings.Contains(conn.Transactional("S4").Running(), "vlan 50") {
		t.Error("declined rollback changed the device")
	}
}

func TestRestore_EmptyInventory(t *testing.T) {
	c := New(newOrch(t, testutil.NewFakeConnector(), orchestrator.DecisionCommit))
	if _, err := c.Restore(context.Background(), &inventory.Inventory{}, Options{}); orchestrator.KindOf(err) != orchestrator.KindFatal {
		t.Errorf("Restore() error = %v, want fatal", err)
	}
}
