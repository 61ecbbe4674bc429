package device

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/util"
)

const briefOutput = `Interface              IP-Address      OK? Method Status                Protocol
GigabitEthernet0/0     192.168.1.1     YES NVRAM  up                    up
GigabitEthernet0/1     unassigned      YES NVRAM  administratively down down
Loopback1              1.1.1.1         YES manual up                    up
Loopback2              2.2.2.2         YES manual up                    down
R1#
`

func TestParseInterfaceBrief(t *testing.T) {
	intfs := ParseInterfaceBrief(briefOutput)

	if len(intfs) != 4 {
		t.Fatalf("len = %d, want 4: %+v", len(intfs), intfs)
	}

	tests := []struct {
		name   string
		status string
		up     bool
	}{
		{"GigabitEthernet0/0", "up", true},
		{"GigabitEthernet0/1", "administratively down", false},
		{"Loopback1", "up", true},
		{"Loopback2", "up", false},
	}
	for _, tt := range tests {
		intf, ok := intfs[tt.name]
		if !ok {
			t.Errorf("%s not parsed", tt.name)
			continue
		}
		if intf.Status != tt.status {
			t.Errorf("%s Status = %q, want %q", tt.name, intf.Status, tt.status)
		}
		if intf.IsUp() != tt.up {
			t.Errorf("%s IsUp() = %v, want %v", tt.name, intf.IsUp(), tt.up)
		}
	}
	if intfs["Loopback1"].Address != "1.1.1.1" {
		t.Errorf("Loopback1 Address = %q", intfs["Loopback1"].Address)
	}
}

func TestParseInterfaceBrief_Empty(t *testing.T) {
	if got := ParseInterfaceBrief(""); len(got) != 0 {
		t.Errorf("ParseInterfaceBrief(\"\") = %v, want empty", got)
	}
}

func TestConfigScript(t *testing.T) {
	got := configScript([]string{"interface Loopback1", "ip address 1.1.1.1 255.255.255.255"}, "cisco")
	want := "terminal length 0\nenable\ncisco\nconfigure terminal\n" +
		"interface Loopback1\nip address 1.1.1.1 255.255.255.255\nend\nexit\n"
	if got != want {
		t.Errorf("configScript() = %q, want %q", got, want)
	}

	if strings.Contains(configScript(nil, ""), "enable") {
		t.Error("configScript() without secret should not enter enable")
	}
}

func TestReadScript(t *testing.T) {
	got := readScript(ShowRunningConfig, "cisco")
	want := "terminal length 0\nenable\ncisco\nshow running-config\nexit\n"
	if got != want {
		t.Errorf("readScript() = %q, want %q", got, want)
	}
	if strings.Index(got, "enable") > strings.Index(got, ShowRunningConfig) {
		t.Error("enable must precede the read command")
	}

	if got := readScript(ShowInterfacesBrief, ""); strings.Contains(got, "enable") {
		t.Errorf("readScript() without secret = %q, should not enter enable", got)
	}
}

func TestParseReadOutput(t *testing.T) {
	transcript := "\r\nR1>terminal length 0\r\nR1>enable\r\nPassword: \r\n" +
		"R1#show running-config\r\nBuilding configuration...\r\n\r\n" +
		"hostname R1\r\n!\r\ninterface Loopback1\r\n ip address 1.1.1.1 255.255.255.255\r\n!\r\nend\r\n\r\nR1#exit\r\n"

	got, err := parseReadOutput(transcript, ShowRunningConfig, true)
	if err != nil {
		t.Fatalf("parseReadOutput() failed: %v", err)
	}
	want := "Building configuration...\n\nhostname R1\n!\ninterface Loopback1\n ip address 1.1.1.1 255.255.255.255\n!\nend\n"
	if got != want {
		t.Errorf("parseReadOutput() = %q, want %q", got, want)
	}
	if strings.Contains(got, "\r") {
		t.Error("output still carries carriage returns")
	}
}

func TestParseReadOutput_Errors(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		privileged bool
		wantErr    string
	}{
		{
			name:       "enable rejected",
			transcript: "R1>enable\r\nPassword: \r\n% Access denied\r\nR1>show running-config\r\n% Invalid input detected at '^' marker.\r\nR1>exit\r\n",
			privileged: true,
			wantErr:    "enable failed",
		},
		{
			name:       "no echo",
			transcript: "% Connection closed\r\n",
			privileged: true,
			wantErr:    "no echo",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseReadOutput(tt.transcript, ShowRunningConfig, tt.privileged)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("parseReadOutput() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseReadOutput_UserMode(t *testing.T) {
	transcript := "R1>terminal length 0\nR1>show ip interface brief\nInterface  IP-Address  OK? Method Status Protocol\nR1>exit\n"
	got, err := parseReadOutput(transcript, ShowInterfacesBrief, false)
	if err != nil {
		t.Fatalf("parseReadOutput() failed: %v", err)
	}
	if !strings.HasPrefix(got, "Interface") || strings.Contains(got, "R1>") {
		t.Errorf("parseReadOutput() = %q", got)
	}
}

func TestLoadConfigurationRPC(t *testing.T) {
	got := loadConfigurationRPC("override", "vlans {\n    v50 { vlan-id 50; }\n}\n")
	if !strings.HasPrefix(got, `<load-configuration action="override" format="text"><configuration-text>`) {
		t.Errorf("override RPC = %s", got)
	}

	got = loadConfigurationRPC("merge", "set vlans v50 vlan-id 50\ndelete vlans v60\n")
	if !strings.Contains(got, `action="set"`) || !strings.Contains(got, "<configuration-set>") {
		t.Errorf("set-format merge RPC = %s", got)
	}

	got = loadConfigurationRPC("merge", "vlan 50 <users> & more")
	if !strings.Contains(got, "vlan 50 &lt;users&gt; &amp; more") {
		t.Errorf("payload not escaped: %s", got)
	}
	if !strings.Contains(got, `action="merge"`) {
		t.Errorf("text merge RPC = %s", got)
	}
}

func TestIsSetFormat(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"set vlans v50 vlan-id 50", true},
		{"set a\n\ndelete b\n", true},
		{"vlan 50", false},
		{"set a\nvlan 50", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isSetFormat(tt.in); got != tt.want {
			t.Errorf("isSetFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseConfigurationText(t *testing.T) {
	data := "\n<configuration-text>\nsystem {\n    host-name S1;\n}\n</configuration-text>\n"
	got, err := parseConfigurationText(data)
	if err != nil {
		t.Fatalf("parseConfigurationText() failed: %v", err)
	}
	if !strings.Contains(got, "host-name S1;") {
		t.Errorf("got %q", got)
	}
}

func TestParseConfigurationOutput(t *testing.T) {
	data := "<configuration-information><configuration-output>\n[edit vlans]\n+   v50 {\n+       vlan-id 50;\n+   }\n</configuration-output></configuration-information>"
	got, err := parseConfigurationOutput(data)
	if err != nil {
		t.Fatalf("parseConfigurationOutput() failed: %v", err)
	}
	if !strings.HasPrefix(got, "[edit vlans]") || !strings.HasSuffix(got, "+   }") {
		t.Errorf("got %q", got)
	}

	got, _ = parseConfigurationOutput("<configuration-information><configuration-output>\n</configuration-output></configuration-information>")
	if got != "" {
		t.Errorf("empty compare = %q, want empty", got)
	}
}

func TestNetConnector_UnsupportedDriver(t *testing.T) {
	c := NewConnector(time.Second)
	_, err := c.OpenTransactional(context.Background(), inventory.Device{Name: "S1", Host: "127.0.0.1", Driver: "ios"})
	if !errors.Is(err, util.ErrUnsupported) {
		t.Errorf("OpenTransactional(ios) error = %v, want ErrUnsupported", err)
	}
}

func TestAddress(t *testing.T) {
	if got := address(inventory.Device{Host: "10.0.0.1"}, DefaultNETCONFPort); got != "10.0.0.1:830" {
		t.Errorf("address() = %q", got)
	}
	if got := address(inventory.Device{Host: "::1", Port: 2222}, DefaultSSHPort); got != "[::1]:2222" {
		t.Errorf("address() = %q", got)
	}
}

func TestCallWithContext(t *testing.T) {
	v, err := callWithContext(context.Background(), nil, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("callWithContext() = %d, %v", v, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	aborted := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	_, err = callWithContext(ctx, func() { close(aborted) }, func() (int, error) {
		<-release
		return 0, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
	select {
	case <-aborted:
	default:
		t.Error("abort not invoked on timeout")
	}
}

func TestJumpAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"bastion", "bastion:22"},
		{"bastion:2200", "bastion:2200"},
		{"10.0.0.9", "10.0.0.9:22"},
	}
	for _, tt := range tests {
		if got := jumpAddress(tt.in); got != tt.want {
			t.Errorf("jumpAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type closeCounter struct {
	ImperativeSession
	closed int
	err    error
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.err
}

func TestTunneledImperative_ClosesBoth(t *testing.T) {
	sess := &closeCounter{err: errors.New("session gone")}
	tun := &closeCounter{}
	s := &tunneledImperative{ImperativeSession: sess, tunnel: tun}

	err := s.Close()
	if sess.closed != 1 || tun.closed != 1 {
		t.Errorf("closed session=%d tunnel=%d, want 1 each", sess.closed, tun.closed)
	}
	if err == nil || !strings.Contains(err.Error(), "session gone") {
		t.Errorf("Close() error = %v, want session error", err)
	}
}

func TestNetConnector_JumpHostUnreachable(t *testing.T) {
	c := NewConnector(time.Second)
	dev := inventory.Device{Name: "R1", Host: "10.0.0.1", Username: "u", Password: "p", Jump: "127.0.0.1:1"}
	_, err := c.OpenImperative(context.Background(), dev)
	if err == nil || !strings.Contains(err.Error(), "jump host") {
		t.Errorf("OpenImperative() error = %v, want jump host failure", err)
	}
}
