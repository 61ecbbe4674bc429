// Package inventory loads the device inventory and derives device roles.
package inventory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/netchange/pkg/util"
)

// Role is the change-application class of a device.
type Role string

const (
	// RoleSwitch devices support staged, transactional configuration.
	RoleSwitch Role = "switch"
	// RoleRouter devices only accept imperative command pushes.
	RoleRouter Role = "router"
)

// Transactional reports whether devices of this role stage a candidate.
func (r Role) Transactional() bool { return r == RoleSwitch }

// Classify maps a device name to its role. Names starting with "r"
// (any case) are routers; everything else is a switch.
//
// This is the only place a role is derived from a name.
func Classify(name string) Role {
	if strings.HasPrefix(strings.ToLower(name), "r") {
		return RoleRouter
	}
	return RoleSwitch
}

// Device is a single inventory record.
type Device struct {
	Name           string `yaml:"name"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port,omitempty"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	EnablePassword string `yaml:"enable_password"`
	Driver         string `yaml:"driver"`
	// Jump is an optional SSH bastion ("host[:port]") the device is
	// reached through, using the device credentials.
	Jump string `yaml:"jump,omitempty"`
}

// Role returns the derived role of the device.
func (d Device) Role() Role { return Classify(d.Name) }

// Label is the "name (host)" form used in transcripts.
func (d Device) Label() string {
	if d.Name == "" {
		return fmt.Sprintf("<unnamed> (%s)", d.Host)
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Host)
}

// Validate checks that every required field is present.
func (d Device) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(d.Name != "", "name is required")
	v.Add(d.Host != "", "host is required")
	v.Add(d.Username != "", "username is required")
	v.Add(d.Password != "", "password is required")
	v.Add(d.EnablePassword != "", "enable_password is required")
	v.Add(d.Driver != "", "driver is required")
	v.Add(d.Port >= 0 && d.Port <= 65535, fmt.Sprintf("port %d out of range", d.Port))
	return v.Build()
}

// Inventory is the ordered device list of one run.
type Inventory struct {
	Devices []Device
}

// Load reads an inventory YAML file: a top-level sequence of device
// records. An unreadable, unparsable or empty file is an error; records
// with missing fields are kept and rejected later by Validate.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}
	return Parse(data)
}

// Parse decodes inventory YAML from memory.
func Parse(data []byte) (*Inventory, error) {
	var devices []Device
	if err := yaml.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("parsing inventory YAML: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("inventory is empty: %w", util.ErrInvalidConfig)
	}
	return &Inventory{Devices: devices}, nil
}

// Find returns the device with the given name.
func (inv *Inventory) Find(name string) (Device, error) {
	for _, d := range inv.Devices {
		if d.Name == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("device %q: %w", name, util.ErrNotFound)
}

// Filter returns an inventory restricted to the named devices, keeping
// inventory order. An empty name list returns the inventory unchanged.
func (inv *Inventory) Filter(names []string) *Inventory {
	if len(names) == 0 {
		return inv
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := &Inventory{}
	for _, d := range inv.Devices {
		if want[d.Name] {
			out.Devices = append(out.Devices, d)
		}
	}
	return out
}
