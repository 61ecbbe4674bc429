// Package device defines the two session capability models used to change
// device configuration, and the drivers that implement them.
//
// A TransactionalSession stages a candidate configuration that can be
// compared, committed or discarded. An ImperativeSession can only run
// read commands and push configuration lines; nothing is staged.
package device

import (
	"context"
	"strings"
)

// Commands sent to imperative devices.
const (
	ShowRunningConfig   = "show running-config"
	ShowInterfacesBrief = "show ip interface brief"
)

// TransactionalSession is a connection to a device with a candidate
// configuration datastore.
type TransactionalSession interface {
	GetRunningConfig(ctx context.Context) (string, error)
	LoadMergeCandidate(ctx context.Context, text string) error
	LoadReplaceCandidate(ctx context.Context, text string) error
	// CompareCandidate returns the candidate-vs-running diff text.
	// Empty output means the candidate changes nothing.
	CompareCandidate(ctx context.Context) (string, error)
	CommitCandidate(ctx context.Context) error
	// DiscardCandidate returns the candidate to the running state.
	DiscardCandidate(ctx context.Context) error
	Close() error
}

// ImperativeSession is a connection to a device that applies
// configuration directly.
type ImperativeSession interface {
	RunRead(ctx context.Context, command string) (string, error)
	// RunConfig enters configuration mode, sends lines in order and
	// leaves configuration mode. Output is the device transcript.
	RunConfig(ctx context.Context, lines []string) (string, error)
	Close() error
}

// Interface is one row of an interface status listing.
type Interface struct {
	Name     string
	Address  string
	Status   string
	Protocol string
}

// IsUp reports whether the interface is both administratively and
// operationally up.
func (i Interface) IsUp() bool {
	return strings.EqualFold(i.Status, "up") && strings.EqualFold(i.Protocol, "up")
}

// ParseInterfaceBrief parses "show ip interface brief" output into a map
// keyed by interface name. Header and malformed lines are ignored. The
// status column may contain spaces ("administratively down").
func ParseInterfaceBrief(output string) map[string]Interface {
	intfs := make(map[string]Interface)
	for _, ln := range strings.Split(output, "\n") {
		fields := strings.Fields(ln)
		if len(fields) < 6 || fields[0] == "Interface" {
			continue
		}
		// Interface IP-Address OK? Method Status Protocol
		intf := Interface{
			Name:     fields[0],
			Address:  fields[1],
			Status:   strings.Join(fields[4:len(fields)-1], " "),
			Protocol: fields[len(fields)-1],
		}
		intfs[intf.Name] = intf
	}
	return intfs
}

// RunningConfig fetches the running configuration of an imperative device.
func RunningConfig(ctx context.Context, s ImperativeSession) (string, error) {
	return s.RunRead(ctx, ShowRunningConfig)
}

// Interfaces fetches and parses the interface status of an imperative device.
func Interfaces(ctx context.Context, s ImperativeSession) (map[string]Interface, error) {
	out, err := s.RunRead(ctx, ShowInterfacesBrief)
	if err != nil {
		return nil, err
	}
	return ParseInterfaceBrief(out), nil
}
