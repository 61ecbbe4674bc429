package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/newtron-network/netchange/pkg/diff"
	"github.com/newtron-network/netchange/pkg/inventory"
)

// Decision is the outcome of the approval gate.
type Decision string

const (
	DecisionCommit  Decision = "commit"
	DecisionDiscard Decision = "discard"
)

// Request is what the approver is asked to review.
type Request struct {
	Operation string
	Device    string
	Role      inventory.Role
	Diff      *diff.Result
	// Planned is set for imperative devices: the exact lines that
	// will be pushed.
	Planned []string
}

// Approver decides whether a reviewed diff is committed.
type Approver interface {
	Approve(ctx context.Context, req *Request) (Decision, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req *Request) (Decision, error)

func (f ApproverFunc) Approve(ctx context.Context, req *Request) (Decision, error) {
	return f(ctx, req)
}

// StaticApprover returns the same decision for every request.
type StaticApprover Decision

func (s StaticApprover) Approve(context.Context, *Request) (Decision, error) {
	return Decision(s), nil
}

// ChannelApprover forwards requests to an external decider. Each send
// on Requests is answered by exactly one receive from Decisions.
type ChannelApprover struct {
	Requests  chan<- *Request
	Decisions <-chan Decision
}

func (c *ChannelApprover) Approve(ctx context.Context, req *Request) (Decision, error) {
	select {
	case c.Requests <- req:
	case <-ctx.Done():
		return DecisionDiscard, ctx.Err()
	}
	select {
	case d := <-c.Decisions:
		return d, nil
	case <-ctx.Done():
		return DecisionDiscard, ctx.Err()
	}
}

// TerminalApprover asks an operator on the terminal. It refuses to run
// when stdin is not a terminal so unattended runs never hang.
type TerminalApprover struct {
	In  *os.File
	Out io.Writer

	// AssumeTTY skips the terminal check, for piped input.
	AssumeTTY bool

	reader *bufio.Reader
}

// NewTerminalApprover prompts on stdin/stdout.
func NewTerminalApprover() *TerminalApprover {
	return &TerminalApprover{In: os.Stdin, Out: os.Stdout}
}

func (t *TerminalApprover) Approve(ctx context.Context, req *Request) (Decision, error) {
	if !t.AssumeTTY && !term.IsTerminal(int(t.In.Fd())) {
		return DecisionDiscard, fmt.Errorf("stdin is not a terminal; use --yes or --no for unattended runs")
	}
	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}
	return promptDecision(ctx, t.reader, t.Out, req)
}

func promptDecision(ctx context.Context, in *bufio.Reader, out io.Writer, req *Request) (Decision, error) {
	verb := "Commit"
	if req.Operation != "" && req.Operation != "commit" {
		verb = "Commit " + req.Operation
	}
	fmt.Fprintf(out, "  %s on %s? [y/N] ", verb, req.Device)

	answer := make(chan string, 1)
	go func() {
		line, _ := in.ReadString('\n')
		answer <- line
	}()
	select {
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return DecisionCommit, nil
		}
		return DecisionDiscard, nil
	case <-ctx.Done():
		fmt.Fprintln(out)
		return DecisionDiscard, ctx.Err()
	}
}
