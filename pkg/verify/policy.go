package verify

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/netchange/pkg/util"
)

// Expectation is the judged state of the switch marker on one device.
type Expectation string

const (
	ExpectPresent Expectation = "present"
	ExpectAbsent  Expectation = "absent"
)

// SwitchPolicy judges switches by the presence of a marker line in the
// running configuration.
type SwitchPolicy struct {
	Marker string                 `yaml:"marker"`
	Expect map[string]Expectation `yaml:"expect"`
}

// RouterPolicy judges routers by the state of one interface.
type RouterPolicy struct {
	Interface string `yaml:"interface"`
	// ExpectUp defaults to true when omitted.
	ExpectUp *bool `yaml:"expect_up,omitempty"`
}

// WantUp reports whether the interface is expected to be up.
func (r RouterPolicy) WantUp() bool {
	return r.ExpectUp == nil || *r.ExpectUp
}

// Policy is the role-keyed verification policy.
//
// Example policy.yaml:
//
//	switch:
//	  marker: vlan 50
//	  expect:
//	    S1: present
//	    S4: absent
//	router:
//	  interface: Loopback1
//	  expect_up: true
type Policy struct {
	Switch SwitchPolicy `yaml:"switch"`
	Router RouterPolicy `yaml:"router"`
}

// DefaultPolicy is the lab policy after the vlan 50 change and the
// S4-S6 partial rollback.
func DefaultPolicy() *Policy {
	return &Policy{
		Switch: SwitchPolicy{
			Marker: "vlan 50",
			Expect: map[string]Expectation{
				"S1": ExpectPresent, "S2": ExpectPresent, "S3": ExpectPresent,
				"S4": ExpectAbsent, "S5": ExpectAbsent, "S6": ExpectAbsent,
			},
		},
		Router: RouterPolicy{Interface: "Loopback1"},
	}
}

// LoadPolicy reads a policy YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses and validates policy YAML.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that the policy can judge something.
func (p *Policy) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(p.Switch.Marker != "" || p.Router.Interface != "", "policy needs a switch marker or a router interface")
	v.Add(len(p.Switch.Expect) == 0 || p.Switch.Marker != "", "switch expectations need a marker")
	for _, name := range p.ExpectedDevices() {
		e := p.Switch.Expect[name]
		if e != ExpectPresent && e != ExpectAbsent {
			v.AddErrorf("device %s: expectation %q must be present or absent", name, e)
		}
	}
	return v.Build()
}

// ExpectedDevices lists the devices with a switch expectation, sorted.
func (p *Policy) ExpectedDevices() []string {
	names := make([]string, 0, len(p.Switch.Expect))
	for n := range p.Switch.Expect {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
