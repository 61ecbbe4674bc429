package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/changeset"
	"github.com/newtron-network/netchange/pkg/orchestrator"
	"github.com/newtron-network/netchange/pkg/settings"
)

func TestLoadChangeset(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "vlan.cfg")
	os.WriteFile(existing, []byte("vlan 50\n\n"), 0644)
	missing := filepath.Join(dir, "loopback.cfg")

	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("router-changeset", "", "")
		return cmd
	}

	cs, err := loadChangeset(newCmd(), "router-changeset", existing, changeset.Merge)
	if err != nil || cs == nil || len(cs.Lines) != 1 {
		t.Fatalf("loadChangeset(existing) = %v, %v", cs, err)
	}

	cs, err = loadChangeset(newCmd(), "router-changeset", missing, changeset.Merge)
	if err != nil || cs != nil {
		t.Errorf("missing default file = %v, %v; want nil, nil", cs, err)
	}

	cmd := newCmd()
	cmd.Flags().Set("router-changeset", missing)
	if _, err := loadChangeset(cmd, "router-changeset", missing, changeset.Merge); err == nil {
		t.Error("missing file named by flag should be an error")
	}
}

func TestApproverFor(t *testing.T) {
	if a, ok := approverFor(true, false).(orchestrator.StaticApprover); !ok || orchestrator.Decision(a) != orchestrator.DecisionCommit {
		t.Errorf("--yes approver = %#v", approverFor(true, false))
	}
	if a, ok := approverFor(false, true).(orchestrator.StaticApprover); !ok || orchestrator.Decision(a) != orchestrator.DecisionDiscard {
		t.Errorf("--no approver = %#v", approverFor(false, true))
	}
	if _, ok := approverFor(false, false).(*orchestrator.TerminalApprover); !ok {
		t.Errorf("default approver = %#v, want terminal", approverFor(false, false))
	}
}

func TestRotationConfig(t *testing.T) {
	got := rotationConfig(&settings.Settings{})
	if got.MaxSize != 10*1024*1024 || got.MaxBackups != 10 {
		t.Errorf("defaults = %+v", got)
	}
	got = rotationConfig(&settings.Settings{AuditMaxSizeMB: 1, AuditMaxBackups: 3})
	if got.MaxSize != 1024*1024 || got.MaxBackups != 3 {
		t.Errorf("configured = %+v", got)
	}
}

func TestLoadInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	os.WriteFile(path, []byte(`
- name: S1
  host: 192.0.2.1
  username: admin
  password: admin
  enable_password: secret
  driver: junos
- name: R1
  host: 192.0.2.11
  username: admin
  password: admin
  enable_password: secret
  driver: ios
`), 0644)

	saved, savedDevices := userSettings, devicesFlag
	defer func() { userSettings, devicesFlag = saved, savedDevices }()

	userSettings = &settings.Settings{Inventory: path}
	devicesFlag = "R1"
	inv, err := loadInventory()
	if err != nil {
		t.Fatalf("loadInventory() failed: %v", err)
	}
	if len(inv.Devices) != 1 || inv.Devices[0].Name != "R1" {
		t.Errorf("devices = %+v", inv.Devices)
	}

	devicesFlag = "X9"
	if _, err := loadInventory(); err == nil {
		t.Error("selecting no device should be an error")
	}
}
