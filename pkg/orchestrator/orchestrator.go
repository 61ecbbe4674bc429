// Package orchestrator drives the per-device change workflow: connect,
// back up, stage, diff, gate, commit or discard, and close.
//
// Devices are processed sequentially and independently. A failure on
// one device is recorded in its Outcome and the run moves on; only an
// unusable inventory aborts a run.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os/user"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/netchange/pkg/audit"
	"github.com/newtron-network/netchange/pkg/changeset"
	"github.com/newtron-network/netchange/pkg/cli"
	"github.com/newtron-network/netchange/pkg/device"
	"github.com/newtron-network/netchange/pkg/diff"
	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/metrics"
	"github.com/newtron-network/netchange/pkg/snapshot"
	"github.com/newtron-network/netchange/pkg/util"
)

// DefaultCallTimeout bounds each individual device call.
const DefaultCallTimeout = 30 * time.Second

// Orchestrator holds the collaborators shared by every device attempt.
// It has no per-device state; one value can serve several runs.
type Orchestrator struct {
	Connector device.Connector
	Store     snapshot.Store
	Approver  Approver

	// Out receives the human-readable transcript. Nil discards it.
	Out io.Writer

	// CallTimeout bounds each device call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration

	// User is recorded in audit events.
	User string

	// Audit and Metrics are optional.
	Audit   audit.Sink
	Metrics *metrics.Recorder
}

// New creates an orchestrator with the required collaborators.
func New(conn device.Connector, store snapshot.Store, approver Approver) *Orchestrator {
	return &Orchestrator{
		Connector: conn,
		Store:     store,
		Approver:  approver,
		User:      currentUser(),
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func (o *Orchestrator) callTimeout() time.Duration {
	if o.CallTimeout > 0 {
		return o.CallTimeout
	}
	return DefaultCallTimeout
}

// Printf writes to the transcript.
func (o *Orchestrator) Printf(format string, args ...interface{}) {
	if o.Out != nil {
		fmt.Fprintf(o.Out, format, args...)
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// DeviceOptions tune one device attempt.
type DeviceOptions struct {
	Backup BackupPolicy

	// Simulate compares and then always discards; the approver is
	// never consulted.
	Simulate bool
}

// Plan describes one change run over an inventory.
type Plan struct {
	Operation string

	// ChangeSets per role. Devices of a role without a change set are
	// skipped. A change set scope skips devices outside it without
	// connecting.
	ChangeSets map[inventory.Role]*changeset.ChangeSet

	DeviceOptions
}

// CheckInventory returns a fatal error for an inventory no run can
// start from.
func CheckInventory(inv *inventory.Inventory) error {
	if inv == nil || len(inv.Devices) == 0 {
		return stepError(KindFatal, "", "load inventory", fmt.Errorf("inventory is empty: %w", util.ErrInvalidConfig))
	}
	return nil
}

// Run applies the plan to every device in inventory order.
func (o *Orchestrator) Run(ctx context.Context, inv *inventory.Inventory, plan Plan) (*Report, error) {
	if err := CheckInventory(inv); err != nil {
		return nil, err
	}

	report := NewReport(NewRunID(), plan.Operation)
	log := util.WithRun(report.RunID, "").WithField("operation", plan.Operation)
	log.Infof("Starting run over %d devices", len(inv.Devices))
	o.Printf("\n%s\n", cli.Banner("netchange "+plan.Operation))

	for _, dev := range inv.Devices {
		if ctx.Err() != nil {
			report.Add(o.Skip(report.RunID, plan.Operation, dev, "run cancelled"))
			continue
		}
		cs := plan.ChangeSets[dev.Role()]
		switch {
		case cs == nil:
			report.Add(o.Skip(report.RunID, plan.Operation, dev, fmt.Sprintf("no changeset for %s devices", dev.Role())))
		case !cs.InScope(dev.Name):
			report.Add(o.Skip(report.RunID, plan.Operation, dev, "outside changeset scope"))
		default:
			report.Add(o.ProcessDevice(ctx, report.RunID, plan.Operation, dev, cs, plan.DeviceOptions))
		}
	}

	report.Finish()
	o.Metrics.RunDone(report.Finished)
	log.Infof("Run finished: %s", report.SummaryLine())
	return report, nil
}

// ProcessDevice runs the full workflow on one device. The session is
// closed exactly once on every path.
func (o *Orchestrator) ProcessDevice(ctx context.Context, runID, operation string, dev inventory.Device,
	cs *changeset.ChangeSet, opts DeviceOptions) (out *Outcome) {

	start := time.Now()
	out = NewOutcome(operation, dev)
	if cs != nil {
		out.ChangeSet = cs.Source
	}
	defer func() { o.Record(runID, out, start) }()

	o.Printf("\n--- %s [%s] ---\n", dev.Label(), dev.Role())

	if err := dev.Validate(); err != nil {
		out.skip("incomplete device record", stepError(KindValidation, dev.Name, "validate", err))
		o.Printf("  %s %v\n", cli.Marker("skipped"), err)
		return out
	}

	tx := o.NewTransaction(runID, operation, dev)
	defer func() { out.CloseErr = tx.Close() }()

	if err := tx.Connect(ctx); err != nil {
		return o.failed(out, err)
	}
	o.Printf("  %s connected\n", cli.Marker("ok"))

	pre, err := tx.BackupPre(ctx, opts.Backup)
	if err != nil {
		return o.failed(out, err)
	}
	o.Printf("  pre snapshot %s (%d bytes)\n", pre.Key(), len(pre.Content))

	if !dev.Role().Transactional() && cs != nil {
		o.Printf("\n  Planned commands for %s (from %s):\n", dev.Name, cs.Source)
		for _, ln := range cs.Lines {
			o.Printf("    %s\n", ln)
		}
	}

	if err := tx.Stage(ctx, cs); err != nil {
		return o.failed(out, err)
	}
	d, err := tx.Diff(ctx)
	if err != nil {
		return o.failed(out, err)
	}
	out.Diff = d
	o.PrintDiff(dev.Name, d)

	if opts.Simulate {
		if err := tx.Discard(ctx); err != nil {
			return o.failed(out, err)
		}
		out.Result = ResultSimulated
		o.Printf("  %s compared and discarded\n", cli.Marker("simulated"))
		return out
	}

	decision, gateErr := tx.Gate(ctx, o.Approver)
	if gateErr != nil {
		tx.log.Warnf("Approval failed, discarding: %v", gateErr)
		out.Reason = "approval failed: " + gateErr.Error()
	}
	if decision != DecisionCommit {
		if err := tx.Discard(ctx); err != nil {
			return o.failed(out, err)
		}
		if d.IsEmpty() {
			out.Result = ResultNoChange
		} else {
			out.Result = ResultDiscarded
			o.Printf("  %s discarded on %s\n", cli.Marker("discarded"), dev.Name)
		}
		return out
	}

	post, err := tx.Commit(ctx)
	if err != nil {
		if tx.State() == StateCommitted {
			// committed, but the post snapshot could not be recorded
			out.Result = ResultCommitted
			out.Err = err
			o.Printf("  %s committed, %v\n", cli.Marker("warning"), err)
			return out
		}
		return o.failed(out, err)
	}
	out.Result = ResultCommitted
	out.Post = post
	o.Printf("  %s committed, post snapshot %s\n", cli.Marker("committed"), post.Key())
	return out
}

// Backup captures a pre snapshot of every device without changing
// anything.
func (o *Orchestrator) Backup(ctx context.Context, inv *inventory.Inventory) (*Report, error) {
	if err := CheckInventory(inv); err != nil {
		return nil, err
	}
	report := NewReport(NewRunID(), audit.OpBackup)
	o.Printf("\n%s\n", cli.Banner("netchange backup"))

	for _, dev := range inv.Devices {
		if ctx.Err() != nil {
			report.Add(o.Skip(report.RunID, audit.OpBackup, dev, "run cancelled"))
			continue
		}
		report.Add(o.Inspect(ctx, report.RunID, audit.OpBackup, dev,
			func(ctx context.Context, tx *Transaction, out *Outcome) error {
				pre, err := tx.BackupPre(ctx, CapturePre)
				if err != nil {
					return err
				}
				out.Result = ResultBackedUp
				o.Printf("  %s saved %s\n", cli.Marker("ok"), pre.Key())
				return nil
			}))
	}
	report.Finish()
	o.Metrics.RunDone(report.Finished)
	return report, nil
}

// InspectFunc is the body of a read-only device visit. It sets the
// outcome result; a returned error marks the device failed.
type InspectFunc func(ctx context.Context, tx *Transaction, out *Outcome) error

// Inspect validates the record, connects, runs fn and closes the
// session. Nothing is staged, so fn must only read from the device.
func (o *Orchestrator) Inspect(ctx context.Context, runID, operation string, dev inventory.Device, fn InspectFunc) (out *Outcome) {
	start := time.Now()
	out = NewOutcome(operation, dev)
	defer func() { o.Record(runID, out, start) }()

	o.Printf("\n--- %s [%s] ---\n", dev.Label(), dev.Role())
	if err := dev.Validate(); err != nil {
		out.skip("incomplete device record", stepError(KindValidation, dev.Name, "validate", err))
		o.Printf("  %s %v\n", cli.Marker("skipped"), err)
		return out
	}

	tx := o.NewTransaction(runID, operation, dev)
	defer func() { out.CloseErr = tx.Close() }()

	if err := tx.Connect(ctx); err != nil {
		return o.failed(out, err)
	}
	if err := fn(ctx, tx, out); err != nil {
		return o.failed(out, err)
	}
	return out
}

// Skip records a device that is never connected.
func (o *Orchestrator) Skip(runID, operation string, dev inventory.Device, reason string) *Outcome {
	out := NewOutcome(operation, dev)
	out.skip(reason, nil)
	o.Printf("\n--- %s: %s %s\n", dev.Name, cli.Marker("skipped"), reason)
	return o.Record(runID, out, time.Now())
}

// Fail records a device that failed before a session was opened.
func (o *Orchestrator) Fail(runID, operation string, dev inventory.Device, err error) *Outcome {
	out := NewOutcome(operation, dev)
	o.Printf("\n--- %s ---\n", dev.Label())
	return o.Record(runID, o.failed(out, err), time.Now())
}

func (o *Orchestrator) failed(out *Outcome, err error) *Outcome {
	out.Result = ResultFailed
	out.Err = err
	o.Printf("  %s %v\n", cli.Marker("failed"), err)
	return out
}

// PrintDiff writes a diff block, or "no change", to the transcript.
func (o *Orchestrator) PrintDiff(name string, d *diff.Result) {
	if d.IsEmpty() {
		o.Printf("  Diff for %s: no change\n", name)
		return
	}
	o.Printf("\n  Diff for %s (%s):\n%s\n", name, d.Summary(), util.Indent(d.Text, "    "))
}

// Record stamps the duration and publishes the outcome to audit and
// metrics. Sink failures are logged only.
func (o *Orchestrator) Record(runID string, out *Outcome, start time.Time) *Outcome {
	out.Duration = time.Since(start)
	o.Metrics.DeviceDone(out.Operation, string(out.Role), string(out.Result))

	if out.CloseErr != nil {
		o.Printf("  %s closing session: %v\n", cli.Marker("warning"), out.CloseErr)
	}
	if o.Audit == nil {
		return out
	}
	event := audit.NewEvent(o.User, runID, out.Device, out.Operation).
		WithRole(string(out.Role)).
		WithChangeSet(out.ChangeSet).
		WithDuration(out.Duration)
	diffText := ""
	if out.Diff != nil {
		diffText = out.Diff.Text
	}
	event.WithResult(string(out.Result), diffText)
	if out.Err != nil {
		event.WithError(string(KindOf(out.Err)), out.Err)
	} else if out.Result != ResultSkipped {
		event.WithSuccess()
	}
	if err := o.Audit.Log(event); err != nil {
		util.WithRun(runID, out.Device).Warnf("audit: %v", err)
	}
	return out
}
