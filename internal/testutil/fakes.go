// Package testutil provides in-memory device fakes for unit tests and
// Redis helpers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/newtron-network/netchange/pkg/device"
	"github.com/newtron-network/netchange/pkg/diff"
	"github.com/newtron-network/netchange/pkg/inventory"
)

// Operation names used for call counting and error injection.
const (
	OpGetRunning  = "get-running"
	OpLoadMerge   = "load-merge"
	OpLoadReplace = "load-replace"
	OpCompare     = "compare"
	OpCommit      = "commit"
	OpDiscard     = "discard"
	OpRunRead     = "run-read"
	OpRunConfig   = "run-config"
	OpClose       = "close"
)

// calls counts invocations and holds injected failures.
type calls struct {
	mu     sync.Mutex
	counts map[string]int
	errs   map[string]error
	order  []string
}

func (c *calls) record(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[op]++
	c.order = append(c.order, op)
	return c.errs[op]
}

// FailOn makes every later call of op return err.
func (c *calls) FailOn(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errs == nil {
		c.errs = make(map[string]error)
	}
	c.errs[op] = err
}

// Count returns how many times op was called.
func (c *calls) Count(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[op]
}

// Order returns the operations in call order.
func (c *calls) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// ApplyLines is the default line-merge behaviour of the fakes: a line
// starting with "no " removes the rest of the line from the config,
// any other line is appended unless already present.
func ApplyLines(config string, lines []string) string {
	var out []string
	present := make(map[string]bool)
	for _, ln := range strings.Split(strings.TrimRight(config, "\n"), "\n") {
		if ln == "" {
			continue
		}
		out = append(out, ln)
		present[strings.TrimSpace(ln)] = true
	}
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(ln, "no "); ok {
			kept := out[:0]
			for _, o := range out {
				if strings.TrimSpace(o) != rest {
					kept = append(kept, o)
				}
			}
			out = kept
			delete(present, rest)
			continue
		}
		if !present[ln] {
			out = append(out, ln)
			present[ln] = true
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}

// FakeTransactional is an in-memory TransactionalSession.
type FakeTransactional struct {
	calls

	mu        sync.Mutex
	running   string
	candidate *string
}

// NewFakeTransactional creates a fake device with the given running config.
func NewFakeTransactional(running string) *FakeTransactional {
	return &FakeTransactional{running: running}
}

// Running returns the current running config.
func (f *FakeTransactional) Running() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// HasCandidate reports whether a candidate is staged.
func (f *FakeTransactional) HasCandidate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candidate != nil
}

func (f *FakeTransactional) GetRunningConfig(context.Context) (string, error) {
	if err := f.record(OpGetRunning); err != nil {
		return "", err
	}
	return f.Running(), nil
}

func (f *FakeTransactional) LoadMergeCandidate(_ context.Context, text string) error {
	if err := f.record(OpLoadMerge); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	base := f.running
	if f.candidate != nil {
		base = *f.candidate
	}
	c := ApplyLines(base, strings.Split(text, "\n"))
	f.candidate = &c
	return nil
}

func (f *FakeTransactional) LoadReplaceCandidate(_ context.Context, text string) error {
	if err := f.record(OpLoadReplace); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidate = &text
	return nil
}

func (f *FakeTransactional) CompareCandidate(context.Context) (string, error) {
	if err := f.record(OpCompare); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidate == nil {
		return "", nil
	}
	res, err := diff.Unified(f.running, *f.candidate, "running", "candidate")
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (f *FakeTransactional) CommitCandidate(context.Context) error {
	if err := f.record(OpCommit); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidate != nil {
		f.running = *f.candidate
		f.candidate = nil
	}
	return nil
}

func (f *FakeTransactional) DiscardCandidate(ctx context.Context) error {
	if err := f.record(OpDiscard); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidate = nil
	return nil
}

func (f *FakeTransactional) Close() error {
	return f.record(OpClose)
}

// FakeImperative is an in-memory ImperativeSession.
type FakeImperative struct {
	calls

	mu      sync.Mutex
	running string

	// Brief is returned for "show ip interface brief".
	Brief string

	// Apply overrides how pushed lines change the running config.
	Apply func(running string, lines []string) string

	briefErr error
}

// FailBrief makes the interface status command fail while other reads
// keep working.
func (f *FakeImperative) FailBrief(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.briefErr = err
}

// NewFakeImperative creates a fake router with the given running config.
func NewFakeImperative(running string) *FakeImperative {
	return &FakeImperative{running: running}
}

// Running returns the current running config.
func (f *FakeImperative) Running() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FakeImperative) RunRead(_ context.Context, command string) (string, error) {
	if err := f.record(OpRunRead); err != nil {
		return "", err
	}
	switch command {
	case device.ShowRunningConfig:
		return f.Running(), nil
	case device.ShowInterfacesBrief:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.briefErr != nil {
			return "", f.briefErr
		}
		return f.Brief, nil
	}
	return "", fmt.Errorf("unknown command %q", command)
}

func (f *FakeImperative) RunConfig(_ context.Context, lines []string) (string, error) {
	if err := f.record(OpRunConfig); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	apply := f.Apply
	if apply == nil {
		apply = ApplyLines
	}
	f.running = apply(f.running, lines)
	return "R1(config)#end\n", nil
}

func (f *FakeImperative) Close() error {
	return f.record(OpClose)
}

// FakeConnector hands out pre-registered fake sessions by device name.
type FakeConnector struct {
	mu          sync.Mutex
	trans       map[string]*FakeTransactional
	imper       map[string]*FakeImperative
	connectErrs map[string]error
	opened      []string
}

// NewFakeConnector creates an empty connector.
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		trans:       make(map[string]*FakeTransactional),
		imper:       make(map[string]*FakeImperative),
		connectErrs: make(map[string]error),
	}
}

// AddTransactional registers a transactional fake for a device.
func (c *FakeConnector) AddTransactional(name string, f *FakeTransactional) *FakeTransactional {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trans[name] = f
	return f
}

// AddImperative registers an imperative fake for a device.
func (c *FakeConnector) AddImperative(name string, f *FakeImperative) *FakeImperative {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imper[name] = f
	return f
}

// FailConnect makes opening the named device fail.
func (c *FakeConnector) FailConnect(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErrs[name] = err
}

// Transactional returns the fake registered for name.
func (c *FakeConnector) Transactional(name string) *FakeTransactional {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trans[name]
}

// Imperative returns the fake registered for name.
func (c *FakeConnector) Imperative(name string) *FakeImperative {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imper[name]
}

// Opened lists device names in the order sessions were opened.
func (c *FakeConnector) Opened() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.opened...)
}

func (c *FakeConnector) OpenTransactional(_ context.Context, dev inventory.Device) (device.TransactionalSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, dev.Name)
	if err := c.connectErrs[dev.Name]; err != nil {
		return nil, err
	}
	f, ok := c.trans[dev.Name]
	if !ok {
		return nil, fmt.Errorf("no transactional fake for %s", dev.Name)
	}
	return f, nil
}

func (c *FakeConnector) OpenImperative(_ context.Context, dev inventory.Device) (device.ImperativeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, dev.Name)
	if err := c.connectErrs[dev.Name]; err != nil {
		return nil, err
	}
	f, ok := c.imper[dev.Name]
	if !ok {
		return nil, fmt.Errorf("no imperative fake for %s", dev.Name)
	}
	return f, nil
}

// Device returns a complete inventory record for name.
func Device(name string) inventory.Device {
	driver := "junos"
	if inventory.Classify(name) == inventory.RoleRouter {
		driver = "ios"
	}
	return inventory.Device{
		Name:           name,
		Host:           "192.0.2.1",
		Username:       "admin",
		Password:       "admin",
		EnablePassword: "secret",
		Driver:         driver,
	}
}

// Fleet builds an inventory and a connector with one fake per name,
// chosen by role. Every device starts with running config base.
func Fleet(base string, names ...string) (*inventory.Inventory, *FakeConnector) {
	inv := &inventory.Inventory{}
	conn := NewFakeConnector()
	for _, n := range names {
		inv.Devices = append(inv.Devices, Device(n))
		if inventory.Classify(n) == inventory.RoleRouter {
			conn.AddImperative(n, NewFakeImperative(base))
		} else {
			conn.AddTransactional(n, NewFakeTransactional(base))
		}
	}
	return inv, conn
}
