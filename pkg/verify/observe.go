package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newtron-network/netchange/pkg/inventory"
)

// neutral returns a checker that reports observed state only.
func (c *Checker) neutral() *Checker {
	n := &Checker{checks: make(map[inventory.Role][]Check)}
	for role, checks := range c.checks {
		for _, check := range checks {
			switch ch := check.(type) {
			case *MarkerCheck:
				n.AddCheck(role, observeMarker(ch.Marker))
			case *InterfaceCheck:
				n.AddCheck(role, observeInterface(ch.Interface))
			default:
				n.AddCheck(role, check)
			}
		}
	}
	return n
}

type observeMarker string

func (m observeMarker) Name() string { return "marker" }

func (m observeMarker) Run(ctx context.Context, obs *Observation) Result {
	state := ExpectAbsent
	if strings.Contains(obs.Running, string(m)) {
		state = ExpectPresent
	}
	return Result{Check: m.Name(), Status: StatusOK, Message: fmt.Sprintf("%q %s", string(m), state), Timestamp: time.Now()}
}

type observeInterface string

func (i observeInterface) Name() string { return "interface" }

func (i observeInterface) Run(ctx context.Context, obs *Observation) Result {
	r := Result{Check: i.Name(), Timestamp: time.Now()}
	intf, ok := obs.Interfaces[string(i)]
	if !ok {
		r.Status = StatusWarning
		r.Message = fmt.Sprintf("%s not found", string(i))
		return r
	}
	r.Status = StatusOK
	r.Message = fmt.Sprintf("%s is %s", string(i), upDown(intf.IsUp()))
	return r
}
