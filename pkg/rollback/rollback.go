// Package rollback reverses earlier changes using the orchestrator's
// stage, diff, gate and commit pipeline.
//
// Two modes exist. A full restore replaces the configuration of a
// transactional device with its stored pre snapshot; imperative devices
// have no replace primitive, so their restore is a read-only comparison
// of running config against the snapshot and nothing is pushed. A
// partial merge applies a scoped merge change set, typically "no ..."
// lines, to transactional devices inside the scope only.
package rollback

import (
	"context"
	"errors"
	"fmt"

	"github.com/newtron-network/netchange/pkg/audit"
	"github.com/newtron-network/netchange/pkg/changeset"
	"github.com/newtron-network/netchange/pkg/cli"
	"github.com/newtron-network/netchange/pkg/diff"
	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/orchestrator"
	"github.com/newtron-network/netchange/pkg/snapshot"
	"github.com/newtron-network/netchange/pkg/util"
)

// Options tune a rollback run.
type Options struct {
	// Simulate compares and always discards. The approver is never
	// consulted and nothing is committed.
	Simulate bool
}

// Coordinator runs rollbacks through an orchestrator.
type Coordinator struct {
	orch *orchestrator.Orchestrator
}

// New creates a coordinator. The orchestrator's store supplies the
// restore points.
func New(o *orchestrator.Orchestrator) *Coordinator {
	return &Coordinator{orch: o}
}

func (o Options) device() orchestrator.DeviceOptions {
	// The stored pre snapshot is the restore point; capturing a new one
	// would overwrite it with the state being rolled back.
	return orchestrator.DeviceOptions{Backup: orchestrator.KeepExistingPre, Simulate: o.Simulate}
}

// Restore returns every device to its stored pre snapshot.
func (c *Coordinator) Restore(ctx context.Context, inv *inventory.Inventory, opts Options) (*orchestrator.Report, error) {
	if err := orchestrator.CheckInventory(inv); err != nil {
		return nil, err
	}
	op := audit.OpRollbackRestore
	report := orchestrator.NewReport(orchestrator.NewRunID(), op)
	log := util.WithRun(report.RunID, "").WithField("operation", op)
	log.Infof("Starting full restore over %d devices (simulate=%v)", len(inv.Devices), opts.Simulate)
	c.orch.Printf("\n%s\n", cli.Banner("netchange rollback restore"))

	for _, dev := range inv.Devices {
		if ctx.Err() != nil {
			report.Add(c.orch.Skip(report.RunID, op, dev, "run cancelled"))
			continue
		}
		report.Add(c.restoreDevice(ctx, report.RunID, dev, opts))
	}

	report.Finish()
	c.orch.Metrics.RunDone(report.Finished)
	log.Infof("Restore finished: %s", report.SummaryLine())
	return report, nil
}

func (c *Coordinator) restoreDevice(ctx context.Context, runID string, dev inventory.Device, opts Options) *orchestrator.Outcome {
	op := audit.OpRollbackRestore
	snap, err := c.orch.Store.Load(ctx, dev.Name, snapshot.Pre)
	if errors.Is(err, util.ErrNotFound) {
		return c.orch.Skip(runID, op, dev, "no pre snapshot to restore")
	}
	if err != nil {
		return c.orch.Fail(runID, op, dev, &orchestrator.StepError{
			Kind: orchestrator.KindRead, Device: dev.Name, Step: "load pre snapshot", Err: err,
		})
	}

	if dev.Role().Transactional() {
		cs := changeset.FromSnapshot(snap.Key(), snap.Content)
		return c.orch.ProcessDevice(ctx, runID, op, dev, cs, opts.device())
	}
	return c.compareImperative(ctx, runID, dev, snap)
}

// compareImperative shows what a restore would change on a device that
// cannot stage a replace. It never pushes.
func (c *Coordinator) compareImperative(ctx context.Context, runID string, dev inventory.Device, snap *snapshot.Snapshot) *orchestrator.Outcome {
	op := audit.OpRollbackRestore
	return c.orch.Inspect(ctx, runID, op, dev, func(ctx context.Context, tx *orchestrator.Transaction, out *orchestrator.Outcome) error {
		out.ChangeSet = snap.Key()
		running, err := tx.FetchRunning(ctx)
		if err != nil {
			return err
		}
		d, err := diff.Unified(running, snap.Content, "current", "backup_pre")
		if err != nil {
			return &orchestrator.StepError{Kind: orchestrator.KindCompare, Device: dev.Name, Step: "diff", Err: err}
		}
		out.Diff = d
		out.Result = orchestrator.ResultSimulated
		out.Reason = "imperative device, restore is read-only"
		c.orch.PrintDiff(dev.Name, d)
		c.orch.Printf("  %s no changes applied to %s\n", cli.Marker("simulated"), dev.Name)
		return nil
	})
}

// Merge applies a scoped merge change set to the transactional devices
// in its scope. Devices outside the scope are never connected;
// imperative devices inside it are skipped.
func (c *Coordinator) Merge(ctx context.Context, inv *inventory.Inventory, cs *changeset.ChangeSet, opts Options) (*orchestrator.Report, error) {
	if cs == nil || cs.IsEmpty() {
		return nil, fmt.Errorf("rollback merge: empty changeset: %w", util.ErrInvalidConfig)
	}
	if cs.Mode != changeset.Merge {
		return nil, fmt.Errorf("rollback merge: changeset %s is %s mode: %w", cs.Source, cs.Mode, util.ErrInvalidConfig)
	}
	if cs.Scope == nil {
		return nil, fmt.Errorf("rollback merge: changeset %s has no device scope: %w", cs.Source, util.ErrInvalidConfig)
	}
	if err := orchestrator.CheckInventory(inv); err != nil {
		return nil, err
	}

	op := audit.OpRollbackMerge
	report := orchestrator.NewReport(orchestrator.NewRunID(), op)
	log := util.WithRun(report.RunID, "").WithField("operation", op)
	log.Infof("Starting partial rollback of %s on %v", cs.Source, cs.Scope)
	c.orch.Printf("\n%s\n", cli.Banner("netchange rollback merge"))

	for _, dev := range inv.Devices {
		switch {
		case ctx.Err() != nil:
			report.Add(c.orch.Skip(report.RunID, op, dev, "run cancelled"))
		case !cs.InScope(dev.Name):
			report.Add(c.orch.Skip(report.RunID, op, dev, "outside rollback scope"))
		case !dev.Role().Transactional():
			report.Add(c.orch.Skip(report.RunID, op, dev, "imperative device, partial rollback needs a staged candidate"))
		default:
			report.Add(c.orch.ProcessDevice(ctx, report.RunID, op, dev, cs, opts.device()))
		}
	}

	report.Finish()
	c.orch.Metrics.RunDone(report.Finished)
	log.Infof("Partial rollback finished: %s", report.SummaryLine())
	return report, nil
}
