package device

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/Juniper/go-netconf/netconf"
	"golang.org/x/crypto/ssh"
)

// NETCONFSession drives a transactional device over NETCONF. The
// candidate datastore is locked for the life of the session.
type NETCONFSession struct {
	addr    string
	session *netconf.Session
	locked  bool
}

// DialNETCONF opens a NETCONF-over-SSH session and locks the candidate.
func DialNETCONF(ctx context.Context, addr, user, pass string, timeout time.Duration) (*NETCONFSession, error) {
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{ssh.Password(pass)},
		// Host keys are not verified; inventories target lab devices.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	sess, err := callWithContext(ctx, nil, func() (*netconf.Session, error) {
		return netconf.DialSSHTimeout(addr, config, timeout)
	})
	if err != nil {
		return nil, fmt.Errorf("NETCONF dial %s: %w", addr, err)
	}

	s := &NETCONFSession{addr: addr, session: sess}
	if _, err := s.exec(ctx, rpcLockCandidate); err != nil {
		sess.Close()
		return nil, fmt.Errorf("locking candidate on %s: %w", addr, err)
	}
	s.locked = true
	return s, nil
}

// RPC bodies.
const (
	rpcLockCandidate   = "<lock><target><candidate/></target></lock>"
	rpcUnlockCandidate = "<unlock><target><candidate/></target></unlock>"
	rpcGetRunning      = `<get-configuration database="committed" format="text"/>`
	rpcCompare         = `<get-configuration compare="rollback" rollback="0" format="text"/>`
	rpcCommit          = "<commit-configuration/>"
	rpcDiscard         = "<discard-changes/>"
)

func (s *NETCONFSession) exec(ctx context.Context, rpc string) (*netconf.RPCReply, error) {
	return callWithContext(ctx, func() { s.session.Close() }, func() (*netconf.RPCReply, error) {
		return s.session.Exec(netconf.RawMethod(rpc))
	})
}

func (s *NETCONFSession) GetRunningConfig(ctx context.Context) (string, error) {
	reply, err := s.exec(ctx, rpcGetRunning)
	if err != nil {
		return "", fmt.Errorf("get-configuration: %w", err)
	}
	return parseConfigurationText(reply.Data)
}

func (s *NETCONFSession) LoadMergeCandidate(ctx context.Context, text string) error {
	if _, err := s.exec(ctx, loadConfigurationRPC("merge", text)); err != nil {
		return fmt.Errorf("load-configuration merge: %w", err)
	}
	return nil
}

func (s *NETCONFSession) LoadReplaceCandidate(ctx context.Context, text string) error {
	if _, err := s.exec(ctx, loadConfigurationRPC("override", text)); err != nil {
		return fmt.Errorf("load-configuration override: %w", err)
	}
	return nil
}

func (s *NETCONFSession) CompareCandidate(ctx context.Context) (string, error) {
	reply, err := s.exec(ctx, rpcCompare)
	if err != nil {
		return "", fmt.Errorf("compare: %w", err)
	}
	return parseConfigurationOutput(reply.Data)
}

func (s *NETCONFSession) CommitCandidate(ctx context.Context) error {
	if _, err := s.exec(ctx, rpcCommit); err != nil {
		return fmt.Errorf("commit-configuration: %w", err)
	}
	return nil
}

func (s *NETCONFSession) DiscardCandidate(ctx context.Context) error {
	if _, err := s.exec(ctx, rpcDiscard); err != nil {
		return fmt.Errorf("discard-changes: %w", err)
	}
	return nil
}

// Close releases the candidate lock and closes the session.
func (s *NETCONFSession) Close() error {
	if s.locked {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s.exec(ctx, rpcUnlockCandidate)
		cancel()
		s.locked = false
	}
	return s.session.Close()
}

// loadConfigurationRPC builds a load-configuration request. Merge
// payloads made only of set/delete commands are loaded in set format;
// everything else is curly-brace text.
func loadConfigurationRPC(action, text string) string {
	var payload strings.Builder
	xml.EscapeText(&payload, []byte(text))

	if action == "merge" && isSetFormat(text) {
		return fmt.Sprintf(`<load-configuration action="set" format="text"><configuration-set>%s</configuration-set></load-configuration>`,
			payload.String())
	}
	return fmt.Sprintf(`<load-configuration action="%s" format="text"><configuration-text>%s</configuration-text></load-configuration>`,
		action, payload.String())
}

func isSetFormat(text string) bool {
	seen := false
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		verb, _, _ := strings.Cut(ln, " ")
		switch verb {
		case "set", "delete", "activate", "deactivate":
			seen = true
		default:
			return false
		}
	}
	return seen
}

func parseConfigurationText(data string) (string, error) {
	var v struct {
		Text string `xml:"configuration-text"`
	}
	if err := xml.Unmarshal([]byte("<r>"+data+"</r>"), &v); err != nil {
		return "", fmt.Errorf("parsing configuration-text: %w", err)
	}
	return v.Text, nil
}

func parseConfigurationOutput(data string) (string, error) {
	var v struct {
		Output string `xml:"configuration-information>configuration-output"`
	}
	if err := xml.Unmarshal([]byte("<r>"+data+"</r>"), &v); err != nil {
		return "", fmt.Errorf("parsing configuration-output: %w", err)
	}
	return strings.Trim(v.Output, "\n"), nil
}
