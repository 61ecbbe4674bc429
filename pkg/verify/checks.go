package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newtron-network/netchange/pkg/device"
	"github.com/newtron-network/netchange/pkg/inventory"
)

// Status represents a verification status.
type Status string

const (
	StatusOK          Status = "ok"
	StatusWarning     Status = "warning"
	StatusError       Status = "error"
	StatusUnreachable Status = "unreachable"
)

// severity orders statuses from best to worst.
func (s Status) severity() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusError:
		return 2
	case StatusUnreachable:
		return 3
	}
	return 2
}

// Worse returns the more severe of two statuses.
func Worse(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// Observation is the state read from one device.
type Observation struct {
	Device     inventory.Device
	Running    string
	Interfaces map[string]device.Interface
}

// Result is the outcome of one check.
type Result struct {
	Check     string        `json:"check"`
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Check judges one aspect of an observation.
type Check interface {
	Name() string
	Run(ctx context.Context, obs *Observation) Result
}

// MarkerCheck judges whether a marker line is present or absent as the
// per-device expectation table says. Devices without an entry get a
// warning.
type MarkerCheck struct {
	Marker string
	Expect map[string]Expectation
}

func (c *MarkerCheck) Name() string { return "marker" }

func (c *MarkerCheck) Run(ctx context.Context, obs *Observation) Result {
	r := Result{Check: c.Name(), Timestamp: time.Now()}
	present := strings.Contains(obs.Running, c.Marker)
	state := ExpectAbsent
	if present {
		state = ExpectPresent
	}

	want, ok := c.Expect[obs.Device.Name]
	switch {
	case !ok:
		r.Status = StatusWarning
		r.Message = fmt.Sprintf("%q %s, no expectation for %s", c.Marker, state, obs.Device.Name)
	case want == state:
		r.Status = StatusOK
		r.Message = fmt.Sprintf("%q %s as expected", c.Marker, state)
	default:
		r.Status = StatusError
		r.Message = fmt.Sprintf("%q %s, expected %s", c.Marker, state, want)
	}
	return r
}

// InterfaceCheck judges the operational state of one interface.
type InterfaceCheck struct {
	Interface string
	ExpectUp  bool
}

func (c *InterfaceCheck) Name() string { return "interface" }

func (c *InterfaceCheck) Run(ctx context.Context, obs *Observation) Result {
	r := Result{Check: c.Name(), Timestamp: time.Now()}
	intf, ok := obs.Interfaces[c.Interface]
	switch {
	case !ok:
		r.Status = StatusError
		r.Message = fmt.Sprintf("%s not found", c.Interface)
	case intf.IsUp() == c.ExpectUp:
		r.Status = StatusOK
		r.Message = fmt.Sprintf("%s is %s", c.Interface, upDown(intf.IsUp()))
	default:
		r.Status = StatusError
		r.Message = fmt.Sprintf("%s is %s, expected %s", c.Interface, upDown(intf.IsUp()), upDown(c.ExpectUp))
	}
	return r
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

// Checker holds the checks to run per role.
type Checker struct {
	checks map[inventory.Role][]Check
}

// NewChecker builds the checks a policy describes.
func NewChecker(p *Policy) *Checker {
	c := &Checker{checks: make(map[inventory.Role][]Check)}
	if p.Switch.Marker != "" {
		c.AddCheck(inventory.RoleSwitch, &MarkerCheck{Marker: p.Switch.Marker, Expect: p.Switch.Expect})
	}
	if p.Router.Interface != "" {
		c.AddCheck(inventory.RoleRouter, &InterfaceCheck{Interface: p.Router.Interface, ExpectUp: p.Router.WantUp()})
	}
	return c
}

// AddCheck adds a check for a role.
func (c *Checker) AddCheck(role inventory.Role, check Check) {
	c.checks[role] = append(c.checks[role], check)
}

// ListChecks returns the check names for a role.
func (c *Checker) ListChecks(role inventory.Role) []string {
	names := make([]string, 0, len(c.checks[role]))
	for _, check := range c.checks[role] {
		names = append(names, check.Name())
	}
	return names
}

// Run runs every check for the observed device's role.
func (c *Checker) Run(ctx context.Context, obs *Observation) []Result {
	var results []Result
	for _, check := range c.checks[obs.Device.Role()] {
		start := time.Now()
		r := check.Run(ctx, obs)
		r.Duration = time.Since(start)
		results = append(results, r)
	}
	return results
}
