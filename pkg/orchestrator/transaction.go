package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/netchange/pkg/changeset"
	"github.com/newtron-network/netchange/pkg/device"
	"github.com/newtron-network/netchange/pkg/diff"
	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/snapshot"
	"github.com/newtron-network/netchange/pkg/util"
)

// BackupPolicy selects how BackupPre treats an existing pre snapshot.
type BackupPolicy int

const (
	// CapturePre always captures running config as the new pre snapshot.
	CapturePre BackupPolicy = iota
	// KeepExistingPre reuses a stored pre snapshot and only captures
	// when none exists. Rollback runs use it so the restore point is
	// not overwritten by the state being rolled back.
	KeepExistingPre
)

// cleanupTimeout bounds discards that may run after the caller's
// context has ended.
const cleanupTimeout = 15 * time.Second

// Transaction is the ephemeral state of one device attempt. Steps must
// be called in workflow order; an out-of-order call returns an error
// wrapping ErrInvalidTransition and touches nothing.
type Transaction struct {
	Device    inventory.Device
	Role      inventory.Role
	RunID     string
	Operation string

	ChangeSet    *changeset.ChangeSet
	LastDiff     *diff.Result
	PreSnapshot  *snapshot.Snapshot
	PostSnapshot *snapshot.Snapshot

	o      *Orchestrator
	log    *logrus.Entry
	state  State
	trans  device.TransactionalSession
	imper  device.ImperativeSession
	staged bool // a device-side candidate may exist
	closed bool
}

// NewTransaction starts an idle transaction for one device.
func (o *Orchestrator) NewTransaction(runID, operation string, dev inventory.Device) *Transaction {
	return &Transaction{
		Device:    dev,
		Role:      dev.Role(),
		RunID:     runID,
		Operation: operation,
		o:         o,
		log:       util.WithRun(runID, dev.Name).WithField("operation", operation),
		state:     StateIdle,
	}
}

// State returns the current workflow state.
func (tx *Transaction) State() State { return tx.state }

func (tx *Transaction) moveTo(to State) {
	tx.log.Debugf("%s -> %s", tx.state, to)
	tx.state = to
}

func (tx *Transaction) require(to State) error {
	if !canTransition(tx.state, to) {
		return transitionError(tx.state, to)
	}
	return nil
}

// step runs fn under the per-call timeout and records its duration.
func (tx *Transaction) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, tx.o.callTimeout())
	defer cancel()
	start := time.Now()
	err := fn(callCtx)
	tx.o.Metrics.ObserveStep(tx.Operation, name, time.Since(start), err)
	return err
}

// Connect opens the session variant selected by the device role.
func (tx *Transaction) Connect(ctx context.Context) error {
	if err := tx.require(StateConnected); err != nil {
		return err
	}
	err := tx.step(ctx, "connect", func(ctx context.Context) error {
		var err error
		if tx.Role.Transactional() {
			tx.trans, err = tx.o.Connector.OpenTransactional(ctx, tx.Device)
		} else {
			tx.imper, err = tx.o.Connector.OpenImperative(ctx, tx.Device)
		}
		return err
	})
	if err != nil {
		tx.moveTo(StateAborted)
		return stepError(KindConnect, tx.Device.Name, "connect", err)
	}
	tx.moveTo(StateConnected)
	return nil
}

// FetchRunning reads the running configuration. It is read-only and
// valid in any state with an open session.
func (tx *Transaction) FetchRunning(ctx context.Context) (string, error) {
	if (tx.trans == nil && tx.imper == nil) || tx.closed {
		return "", stepError(KindRead, tx.Device.Name, "get running config", util.ErrNotConnected)
	}
	var running string
	err := tx.step(ctx, "get-running", func(ctx context.Context) error {
		var err error
		if tx.trans != nil {
			running, err = tx.trans.GetRunningConfig(ctx)
		} else {
			running, err = device.RunningConfig(ctx, tx.imper)
		}
		return err
	})
	if err != nil {
		return "", stepError(KindRead, tx.Device.Name, "get running config", err)
	}
	return running, nil
}

// Interfaces reads interface status. Only imperative sessions expose it.
func (tx *Transaction) Interfaces(ctx context.Context) (map[string]device.Interface, error) {
	if tx.imper == nil || tx.closed {
		return nil, stepError(KindRead, tx.Device.Name, "get interfaces", util.ErrUnsupported)
	}
	var intfs map[string]device.Interface
	err := tx.step(ctx, "get-interfaces", func(ctx context.Context) error {
		var err error
		intfs, err = device.Interfaces(ctx, tx.imper)
		return err
	})
	if err != nil {
		return nil, stepError(KindRead, tx.Device.Name, "get interfaces", err)
	}
	return intfs, nil
}

// BackupPre records the pre snapshot. A failure aborts the transaction.
func (tx *Transaction) BackupPre(ctx context.Context, policy BackupPolicy) (*snapshot.Snapshot, error) {
	if err := tx.require(StateBackedUp); err != nil {
		return nil, err
	}

	if policy == KeepExistingPre {
		snap, err := tx.o.Store.Load(ctx, tx.Device.Name, snapshot.Pre)
		switch {
		case err == nil:
			tx.log.Infof("Reusing pre snapshot from %s", snap.CapturedAt.Format(time.RFC3339))
			tx.PreSnapshot = snap
			tx.moveTo(StateBackedUp)
			return snap, nil
		case !errors.Is(err, util.ErrNotFound):
			tx.moveTo(StateAborted)
			return nil, stepError(KindRead, tx.Device.Name, "load pre snapshot", err)
		}
	}

	running, err := tx.FetchRunning(ctx)
	if err != nil {
		tx.moveTo(StateAborted)
		return nil, err
	}
	snap := snapshot.New(tx.Device.Name, snapshot.Pre, running)
	if err := tx.o.Store.Save(ctx, snap); err != nil {
		tx.moveTo(StateAborted)
		return nil, stepError(KindRead, tx.Device.Name, "save pre snapshot", err)
	}
	tx.PreSnapshot = snap
	tx.moveTo(StateBackedUp)
	return snap, nil
}

// Stage loads the candidate on a transactional device, or holds the
// change set in memory for an imperative one.
func (tx *Transaction) Stage(ctx context.Context, cs *changeset.ChangeSet) error {
	if err := tx.require(StateStaged); err != nil {
		return err
	}
	if cs == nil || cs.IsEmpty() {
		return tx.fail(ctx, KindStage, "stage", fmt.Errorf("empty changeset: %w", util.ErrInvalidConfig))
	}

	if tx.imper != nil {
		if cs.Mode != changeset.Merge {
			return tx.fail(ctx, KindStage, "stage",
				fmt.Errorf("%s mode on an imperative device: %w", cs.Mode, util.ErrUnsupported))
		}
		tx.ChangeSet = cs
		tx.moveTo(StateStaged)
		return nil
	}

	tx.staged = true
	err := tx.step(ctx, "stage", func(ctx context.Context) error {
		if cs.Mode == changeset.Replace {
			return tx.trans.LoadReplaceCandidate(ctx, cs.Text())
		}
		return tx.trans.LoadMergeCandidate(ctx, cs.Text())
	})
	if err != nil {
		return tx.fail(ctx, KindStage, "load "+string(cs.Mode)+" candidate", err)
	}
	tx.ChangeSet = cs
	tx.moveTo(StateStaged)
	return nil
}

// Diff produces the reviewable diff of the staged change.
//
// Transactional devices report their native compare. Imperative devices
// cannot preview a merge, so the diff is computed between the pre
// snapshot and the planned lines; it approximates, and does not
// predict, the post-apply configuration.
func (tx *Transaction) Diff(ctx context.Context) (*diff.Result, error) {
	if err := tx.require(StateDiffed); err != nil {
		return nil, err
	}

	var res *diff.Result
	if tx.imper != nil {
		var err error
		res, err = diff.Unified(tx.PreSnapshot.Content, tx.ChangeSet.Text(), "running", "planned")
		if err != nil {
			return nil, tx.fail(ctx, KindCompare, "diff", err)
		}
	} else {
		err := tx.step(ctx, "compare", func(ctx context.Context) error {
			text, err := tx.trans.CompareCandidate(ctx)
			res = diff.Native(text)
			return err
		})
		if err != nil {
			return nil, tx.fail(ctx, KindCompare, "compare", err)
		}
	}
	tx.LastDiff = res
	tx.moveTo(StateDiffed)
	return res, nil
}

// Gate decides between commit and discard. An empty diff is discarded
// without consulting the approver. An approver error is returned with
// DecisionDiscard.
func (tx *Transaction) Gate(ctx context.Context, approver Approver) (Decision, error) {
	if tx.state != StateDiffed {
		return DecisionDiscard, transitionError(tx.state, StateDiffed)
	}
	if tx.LastDiff.IsEmpty() {
		return DecisionDiscard, nil
	}
	req := &Request{
		Operation: tx.Operation,
		Device:    tx.Device.Name,
		Role:      tx.Role,
		Diff:      tx.LastDiff,
	}
	if tx.imper != nil {
		req.Planned = tx.ChangeSet.Lines
	}
	d, err := approver.Approve(ctx, req)
	if err != nil {
		return DecisionDiscard, err
	}
	if d != DecisionCommit {
		return DecisionDiscard, nil
	}
	return DecisionCommit, nil
}

// Commit applies the change and records the post snapshot.
//
// A pre snapshot and a diff of the current change set are required.
// When a transactional commit fails the candidate is discarded on a
// best-effort basis and the commit error is returned.
func (tx *Transaction) Commit(ctx context.Context) (*snapshot.Snapshot, error) {
	if err := tx.require(StateCommitted); err != nil {
		return nil, err
	}
	if tx.PreSnapshot == nil {
		return nil, stepError(KindCommit, tx.Device.Name, "commit",
			util.NewPreconditionError("commit", tx.Device.Name, "pre snapshot recorded", ""))
	}
	if tx.LastDiff == nil {
		return nil, stepError(KindCommit, tx.Device.Name, "commit",
			util.NewPreconditionError("commit", tx.Device.Name, "diff computed for current changeset", ""))
	}

	err := tx.step(ctx, "commit", func(ctx context.Context) error {
		if tx.trans != nil {
			return tx.trans.CommitCandidate(ctx)
		}
		out, err := tx.imper.RunConfig(ctx, tx.ChangeSet.Lines)
		if out != "" {
			tx.log.Debugf("config output:\n%s", out)
		}
		return err
	})
	if err != nil {
		return nil, tx.fail(ctx, KindCommit, "commit", err)
	}
	tx.staged = false
	tx.moveTo(StateCommitted)
	tx.log.Info("Committed")

	running, err := tx.FetchRunning(ctx)
	if err != nil {
		return nil, err
	}
	post := snapshot.New(tx.Device.Name, snapshot.Post, running)
	if err := tx.o.Store.Save(ctx, post); err != nil {
		return nil, stepError(KindRead, tx.Device.Name, "save post snapshot", err)
	}
	tx.PostSnapshot = post
	return post, nil
}

// Discard abandons the staged change. Imperative devices have nothing
// staged, so it only records the decision.
func (tx *Transaction) Discard(ctx context.Context) error {
	if err := tx.require(StateDiscarded); err != nil {
		return err
	}
	tx.moveTo(StateDiscarded)
	if tx.trans == nil {
		return nil
	}
	// A cancelled run still discards the candidate it staged.
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	err := tx.step(cctx, "discard", func(ctx context.Context) error {
		return tx.trans.DiscardCandidate(ctx)
	})
	if err != nil {
		return stepError(KindStage, tx.Device.Name, "discard", err)
	}
	tx.staged = false
	return nil
}

// cleanupContext detaches ctx from cancellation, bounded by cleanupTimeout.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// fail aborts the transaction after a step error: a possibly staged
// candidate is discarded best-effort, and the primary error returned.
func (tx *Transaction) fail(ctx context.Context, kind Kind, step string, err error) error {
	primary := stepError(kind, tx.Device.Name, step, err)
	tx.log.Warnf("%s failed: %v", step, err)
	if tx.trans != nil && tx.staged {
		cctx, cancel := cleanupContext(ctx)
		if derr := tx.trans.DiscardCandidate(cctx); derr != nil {
			tx.log.Errorf("Discard after %s failure also failed: %v", step, derr)
		} else {
			tx.log.Info("Candidate discarded after failure")
		}
		cancel()
		tx.staged = false
	}
	tx.moveTo(StateAborted)
	return primary
}

// Close releases the session. Only the first call has any effect; later
// calls return nil. The close error is logged and returned for
// reporting, it never replaces a step error.
func (tx *Transaction) Close() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	tx.moveTo(StateClosed)

	var err error
	switch {
	case tx.trans != nil:
		err = tx.trans.Close()
	case tx.imper != nil:
		err = tx.imper.Close()
	default:
		return nil
	}
	if err != nil {
		tx.log.Warnf("Closing session failed: %v", err)
	}
	return err
}
