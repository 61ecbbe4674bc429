// Package verify checks devices against a judged verification policy.
//
// Verification is read-only: it connects, reads the running
// configuration (and interface status on routers), runs the role's
// checks and closes. Nothing is staged, committed or discarded.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/newtron-network/netchange/pkg/audit"
	"github.com/newtron-network/netchange/pkg/cli"
	"github.com/newtron-network/netchange/pkg/device"
	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/orchestrator"
	"github.com/newtron-network/netchange/pkg/util"
)

// DeviceReport is the verification result of one device.
type DeviceReport struct {
	Device    string         `json:"device"`
	Host      string         `json:"host"`
	Role      inventory.Role `json:"role"`
	Timestamp time.Time      `json:"timestamp"`
	Overall   Status         `json:"overall"`
	Results   []Result       `json:"results"`
	Duration  time.Duration  `json:"duration"`

	// Err is set when the device could not be read.
	Err error `json:"-"`
}

func (r *DeviceReport) add(res Result) {
	r.Results = append(r.Results, res)
	r.Overall = Worse(r.Overall, res.Status)
}

// Detail is the most relevant message: the first non-OK one, or the
// last one.
func (r *DeviceReport) Detail() string {
	for _, res := range r.Results {
		if res.Status != StatusOK {
			return res.Message
		}
	}
	if len(r.Results) == 0 {
		return ""
	}
	return r.Results[len(r.Results)-1].Message
}

// Report collects the device reports of one verification run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Devices  []*DeviceReport
}

// Device returns the report for a device, or nil.
func (r *Report) Device(name string) *DeviceReport {
	for _, d := range r.Devices {
		if d.Device == name {
			return d
		}
	}
	return nil
}

// Count returns how many devices ended with the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, d := range r.Devices {
		if d.Overall == s {
			n++
		}
	}
	return n
}

// HasErrors reports whether any device failed verification or could
// not be reached.
func (r *Report) HasErrors() bool {
	return r.Count(StatusError) > 0 || r.Count(StatusUnreachable) > 0
}

// SummaryLine is a one-line count of statuses.
func (r *Report) SummaryLine() string {
	var parts []string
	for _, s := range []Status{StatusOK, StatusWarning, StatusError, StatusUnreachable} {
		if n := r.Count(s); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "no devices"
	}
	return strings.Join(parts, ", ")
}

// WriteSummary prints the per-device summary table.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", cli.Banner("Summary: verify"))
	t := cli.NewTable(w, "DEVICE", "ROLE", "STATUS", "DETAIL")
	for _, d := range r.Devices {
		t.Row(d.Device, string(d.Role), cli.Marker(string(d.Overall)), d.Detail())
	}
	t.Flush()
	fmt.Fprintf(w, "\n%s (run %s)\n", r.SummaryLine(), r.RunID)
}

// Engine runs verification through an orchestrator's connector, so
// sessions, timeouts, audit and metrics are shared with change runs.
type Engine struct {
	orch    *orchestrator.Orchestrator
	checker *Checker
}

// NewEngine creates a verification engine.
func NewEngine(o *orchestrator.Orchestrator, checker *Checker) *Engine {
	return &Engine{orch: o, checker: checker}
}

// Run verifies every device in inventory order.
func (e *Engine) Run(ctx context.Context, inv *inventory.Inventory) (*Report, error) {
	return e.run(ctx, inv, e.checker)
}

// Observe reports what each device shows without judging it against
// the expectation table.
//
// Deprecated: Observe cannot tell a device that kept a change from one
// that was rolled back. Use Run.
func (e *Engine) Observe(ctx context.Context, inv *inventory.Inventory) (*Report, error) {
	return e.run(ctx, inv, e.checker.neutral())
}

func (e *Engine) run(ctx context.Context, inv *inventory.Inventory, checker *Checker) (*Report, error) {
	if err := orchestrator.CheckInventory(inv); err != nil {
		return nil, err
	}
	report := &Report{RunID: orchestrator.NewRunID(), Started: time.Now()}
	e.orch.Printf("\n%s\n", cli.Banner("netchange verify"))

	for _, dev := range inv.Devices {
		if ctx.Err() != nil {
			break
		}
		report.Devices = append(report.Devices, e.VerifyDevice(ctx, report.RunID, dev, checker))
	}

	report.Finished = time.Now()
	e.orch.Metrics.RunDone(report.Finished)
	util.WithRun(report.RunID, "").Infof("Verification finished: %s", report.SummaryLine())
	return report, ctx.Err()
}

// VerifyDevice reads one device and runs the checks for its role.
func (e *Engine) VerifyDevice(ctx context.Context, runID string, dev inventory.Device, checker *Checker) (rep *DeviceReport) {
	start := time.Now()
	rep = &DeviceReport{
		Device:    dev.Name,
		Host:      dev.Host,
		Role:      dev.Role(),
		Timestamp: start,
		Overall:   StatusOK,
	}
	defer func() {
		rep.Duration = time.Since(start)
		e.record(runID, rep)
	}()

	e.orch.Printf("\n--- Verify %s [%s] ---\n", dev.Label(), dev.Role())
	if err := dev.Validate(); err != nil {
		rep.Err = &orchestrator.StepError{Kind: orchestrator.KindValidation, Device: dev.Name, Step: "validate", Err: err}
		e.add(rep, Result{Check: "record", Status: StatusWarning, Message: "skipped, incomplete device record: " + err.Error()})
		return rep
	}

	tx := e.orch.NewTransaction(runID, audit.OpVerify, dev)
	defer func() {
		if err := tx.Close(); err != nil {
			e.add(rep, Result{Check: "session", Status: StatusWarning, Message: "closing session: " + err.Error()})
		}
	}()

	if err := tx.Connect(ctx); err != nil {
		rep.Err = err
		e.add(rep, Result{Check: "connect", Status: StatusUnreachable, Message: err.Error()})
		return rep
	}
	running, err := tx.FetchRunning(ctx)
	if err != nil {
		rep.Err = err
		e.add(rep, Result{Check: "running-config", Status: StatusError, Message: err.Error()})
		return rep
	}

	obs := &Observation{Device: dev, Running: running}
	if !dev.Role().Transactional() {
		intfs, err := tx.Interfaces(ctx)
		if err != nil {
			// judged as if no interface exists
			e.add(rep, Result{Check: "interfaces", Status: StatusWarning, Message: "reading interfaces: " + err.Error()})
			intfs = map[string]device.Interface{}
		}
		obs.Interfaces = intfs
	}

	results := checker.Run(ctx, obs)
	if len(results) == 0 {
		e.add(rep, Result{Check: "policy", Status: StatusWarning, Message: fmt.Sprintf("no checks for %s devices", dev.Role())})
	}
	for _, r := range results {
		e.add(rep, r)
	}
	return rep
}

func (e *Engine) add(rep *DeviceReport, r Result) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	rep.add(r)
	e.orch.Printf("  %s %s: %s\n", cli.Marker(string(r.Status)), r.Check, r.Message)
}

func (e *Engine) record(runID string, rep *DeviceReport) {
	e.orch.Metrics.DeviceDone(audit.OpVerify, string(rep.Role), string(rep.Overall))
	if e.orch.Audit == nil {
		return
	}
	event := audit.NewEvent(e.orch.User, runID, rep.Device, audit.OpVerify).
		WithRole(string(rep.Role)).
		WithResult(string(rep.Overall), "").
		WithDuration(rep.Duration)
	switch {
	case rep.Err != nil:
		event.WithError(string(orchestrator.KindOf(rep.Err)), rep.Err)
	case rep.Overall == StatusError:
		event.WithError(string(orchestrator.KindVerify), errors.New(rep.Detail()))
	default:
		event.WithSuccess()
	}
	if err := e.orch.Audit.Log(event); err != nil {
		util.WithRun(runID, rep.Device).Warnf("audit: %v", err)
	}
}
