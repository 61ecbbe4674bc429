package inventory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/newtron-network/netchange/pkg/util"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Role
	}{
		{"R1", RoleRouter},
		{"Router1", RoleRouter},
		{"r1", RoleRouter},
		{"S1", RoleSwitch},
		{"SW4", RoleSwitch},
		{"core-1", RoleSwitch},
		{"", RoleSwitch},
	}
	for _, tt := range tests {
		if got := Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRole_Transactional(t *testing.T) {
	if !RoleSwitch.Transactional() {
		t.Error("switch role should be transactional")
	}
	if RoleRouter.Transactional() {
		t.Error("router role should not be transactional")
	}
}

func validDevice() Device {
	return Device{
		Name:           "S1",
		Host:           "10.0.0.1",
		Username:       "admin",
		Password:       "admin",
		EnablePassword: "secret",
		Driver:         "junos",
	}
}

func TestDevice_Validate(t *testing.T) {
	if err := validDevice().Validate(); err != nil {
		t.Fatalf("Validate() on complete record: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(d *Device)
	}{
		{"no name", func(d *Device) { d.Name = "" }},
		{"no host", func(d *Device) { d.Host = "" }},
		{"no username", func(d *Device) { d.Username = "" }},
		{"no password", func(d *Device) { d.Password = "" }},
		{"no enable", func(d *Device) { d.EnablePassword = "" }},
		{"no driver", func(d *Device) { d.Driver = "" }},
		{"bad port", func(d *Device) { d.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDevice()
			tt.mutate(&d)
			err := d.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("error should wrap ErrValidationFailed: %v", err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
- name: S1
  host: 10.0.0.1
  username: admin
  password: admin
  enable_password: secret
  driver: junos
- name: R1
  host: 10.0.0.9
  port: 2222
  jump: bastion.lab
  username: admin
  password: admin
  enable_password: secret
  driver: ios
- name: S9
  host: 10.0.0.99
`)
	inv, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(inv.Devices) != 3 {
		t.Fatalf("len(Devices) = %d, want 3", len(inv.Devices))
	}
	if inv.Devices[1].Port != 2222 || inv.Devices[1].Jump != "bastion.lab" || inv.Devices[1].Role() != RoleRouter {
		t.Errorf("R1 = %+v", inv.Devices[1])
	}
	if inv.Devices[2].Validate() == nil {
		t.Error("incomplete S9 record should fail validation")
	}
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "[]", "# nothing\n"} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

func TestLoad(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte("- name: S1\n  host: h\n"), 0644); err != nil {
		t.Fatal(err)
	}
	inv, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if inv.Devices[0].Name != "S1" {
		t.Errorf("Devices[0].Name = %q", inv.Devices[0].Name)
	}
}

func TestInventory_FindFilter(t *testing.T) {
	inv := &Inventory{Devices: []Device{{Name: "S1"}, {Name: "S2"}, {Name: "R1"}}}

	if _, err := inv.Find("R1"); err != nil {
		t.Errorf("Find(R1) failed: %v", err)
	}
	if _, err := inv.Find("X"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Find(X) error = %v, want ErrNotFound", err)
	}

	got := inv.Filter([]string{"R1", "S1"})
	if len(got.Devices) != 2 || got.Devices[0].Name != "S1" || got.Devices[1].Name != "R1" {
		t.Errorf("Filter() = %+v, want inventory order S1, R1", got.Devices)
	}
	if inv.Filter(nil) != inv {
		t.Error("Filter(nil) should return the inventory unchanged")
	}
}

func TestDevice_Label(t *testing.T) {
	if got := validDevice().Label(); got != "S1 (10.0.0.1)" {
		t.Errorf("Label() = %q", got)
	}
}
