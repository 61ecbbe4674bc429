package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/newtron-network/netchange/pkg/cli"
	"github.com/newtron-network/netchange/pkg/diff"
	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/snapshot"
)

// Result is the final disposition of one device attempt.
type Result string

const (
	ResultCommitted Result = "committed"
	ResultDiscarded Result = "discarded"
	ResultNoChange  Result = "no-change"
	ResultSimulated Result = "simulated"
	ResultBackedUp  Result = "backed-up"
	ResultSkipped   Result = "skipped"
	ResultFailed    Result = "failed"
)

// Outcome is the record of one device attempt.
type Outcome struct {
	Device    string
	Host      string
	Role      inventory.Role
	Operation string
	ChangeSet string

	Result Result
	Reason string
	Diff   *diff.Result
	Post   *snapshot.Snapshot

	// Err is the primary step error, if any.
	Err error
	// CloseErr is reported separately and never replaces Err.
	CloseErr error

	Duration time.Duration
}

// NewOutcome starts the record of one device attempt.
func NewOutcome(operation string, dev inventory.Device) *Outcome {
	return &Outcome{
		Device:    dev.Name,
		Host:      dev.Host,
		Role:      dev.Role(),
		Operation: operation,
	}
}

func (o *Outcome) skip(reason string, err error) {
	o.Result = ResultSkipped
	o.Reason = reason
	o.Err = err
}

// Kind returns the error kind of the primary error.
func (o *Outcome) Kind() Kind { return KindOf(o.Err) }

// Detail is the short explanation shown in the summary table.
func (o *Outcome) Detail() string {
	switch {
	case o.Err != nil:
		return o.Err.Error()
	case o.Reason != "":
		return o.Reason
	case o.Diff != nil:
		return o.Diff.Summary()
	}
	return ""
}

// Report collects the outcomes of one run.
type Report struct {
	RunID     string
	Operation string
	Started   time.Time
	Finished  time.Time
	Outcomes  []*Outcome
}

// NewReport starts a report.
func NewReport(runID, operation string) *Report {
	return &Report{RunID: runID, Operation: operation, Started: time.Now()}
}

// Add appends an outcome.
func (r *Report) Add(o *Outcome) { r.Outcomes = append(r.Outcomes, o) }

// Finish stamps the end time.
func (r *Report) Finish() { r.Finished = time.Now() }

// Outcome returns the outcome for a device, or nil.
func (r *Report) Outcome(device string) *Outcome {
	for _, o := range r.Outcomes {
		if o.Device == device {
			return o
		}
	}
	return nil
}

// Count returns how many outcomes have the given result.
func (r *Report) Count(result Result) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Result == result {
			n++
		}
	}
	return n
}

// HasFailures reports whether any device failed.
func (r *Report) HasFailures() bool {
	return r.Count(ResultFailed) > 0
}

// SummaryLine is a one-line count of results.
func (r *Report) SummaryLine() string {
	var parts []string
	for _, res := range []Result{ResultCommitted, ResultDiscarded, ResultNoChange, ResultSimulated,
		ResultBackedUp, ResultSkipped, ResultFailed} {
		if n := r.Count(res); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, res))
		}
	}
	if len(parts) == 0 {
		return "no devices"
	}
	return strings.Join(parts, ", ")
}

// WriteSummary prints the per-device summary table.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", cli.Banner("Summary: "+r.Operation))
	t := cli.NewTable(w, "DEVICE", "ROLE", "RESULT", "DETAIL")
	for _, o := range r.Outcomes {
		t.Row(o.Device, string(o.Role), cli.Marker(string(o.Result)), o.Detail())
	}
	t.Flush()
	fmt.Fprintf(w, "\n%s (run %s, %s)\n", r.SummaryLine(), r.RunID, r.Finished.Sub(r.Started).Round(time.Millisecond))
}
