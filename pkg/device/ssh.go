package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHSession drives an imperative device over its SSH command line.
type SSHSession struct {
	addr      string
	client    *ssh.Client
	enableSec string
}

// DialSSH connects and authenticates with a password.
func DialSSH(ctx context.Context, addr, user, pass, enableSecret string, timeout time.Duration) (*SSHSession, error) {
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(pass),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pass
				}
				return answers, nil
			}),
		},
		// Host keys are not verified; inventories target lab devices.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", addr, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake %s: %w", addr, err)
	}
	// Handshake deadline only; calls carry their own context.
	conn.SetDeadline(time.Time{})

	return &SSHSession{
		addr:      addr,
		client:    ssh.NewClient(c, chans, reqs),
		enableSec: enableSecret,
	}, nil
}

// RunRead runs a read command in an interactive shell, in privileged
// mode when an enable secret is set, and returns the command output
// without the echo and prompts.
func (s *SSHSession) RunRead(ctx context.Context, cmd string) (string, error) {
	out, err := s.runShell(ctx, readScript(cmd, s.enableSec))
	if err != nil {
		return "", fmt.Errorf("SSH exec '%s': %w", cmd, err)
	}
	return parseReadOutput(out, cmd, s.enableSec != "")
}

// RunConfig feeds the configuration script to an interactive shell.
func (s *SSHSession) RunConfig(ctx context.Context, lines []string) (string, error) {
	out, err := s.runShell(ctx, configScript(lines, s.enableSec))
	if err != nil {
		return out, fmt.Errorf("SSH config push: %w", err)
	}
	return out, nil
}

// runShell writes script to a fresh shell and returns the transcript
// with line endings normalized.
func (s *SSHSession) runShell(ctx context.Context, script string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	stdin, err := session.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("SSH stdin: %w", err)
	}
	if err := session.Shell(); err != nil {
		return "", fmt.Errorf("SSH shell: %w", err)
	}

	_, err = callWithContext(ctx, func() { session.Close() }, func() (struct{}, error) {
		if _, err := io.WriteString(stdin, script); err != nil {
			return struct{}{}, err
		}
		stdin.Close()
		return struct{}{}, session.Wait()
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return normalizeNewlines(out.String()), err
	}
	return normalizeNewlines(out.String()), nil
}

// Close closes the SSH connection.
func (s *SSHSession) Close() error {
	return s.client.Close()
}

// privilegeScript is the common prefix of every script: no paging,
// then privileged mode when a secret is set.
func privilegeScript(b *strings.Builder, enableSecret string) {
	b.WriteString("terminal length 0\n")
	if enableSecret != "" {
		b.WriteString("enable\n")
		b.WriteString(enableSecret + "\n")
	}
}

// readScript is the keystroke sequence for one read command.
func readScript(cmd, enableSecret string) string {
	var b strings.Builder
	privilegeScript(&b, enableSecret)
	b.WriteString(cmd + "\n")
	b.WriteString("exit\n")
	return b.String()
}

// configScript is the keystroke sequence for one configuration batch:
// privileged mode, configure terminal, the lines, then back out.
func configScript(lines []string, enableSecret string) string {
	var b strings.Builder
	privilegeScript(&b, enableSecret)
	b.WriteString("configure terminal\n")
	for _, ln := range lines {
		b.WriteString(ln + "\n")
	}
	b.WriteString("end\n")
	b.WriteString("exit\n")
	return b.String()
}

// parseReadOutput extracts the output of cmd from a shell transcript:
// the lines after the echoed "<prompt>cmd" up to the next prompt. A
// user-mode prompt ("R1>") when privileged mode was requested means
// enable failed, and the output is rejected.
func parseReadOutput(transcript, cmd string, privileged bool) (string, error) {
	lines := strings.Split(normalizeNewlines(transcript), "\n")
	echo := -1
	var prompt string
	for i, ln := range lines {
		ln = strings.TrimRight(ln, " ")
		if ln != cmd && strings.HasSuffix(ln, cmd) {
			if p := strings.TrimSpace(strings.TrimSuffix(ln, cmd)); isPrompt(p) {
				echo, prompt = i, p
				break
			}
		}
	}
	if echo < 0 {
		return "", fmt.Errorf("no echo of %q in shell output", cmd)
	}
	if privileged && strings.HasSuffix(prompt, ">") {
		return "", fmt.Errorf("enable failed, still at user prompt %q", prompt)
	}

	var body []string
	for _, ln := range lines[echo+1:] {
		if strings.HasPrefix(ln, prompt) {
			break
		}
		body = append(body, ln)
	}
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return "", nil
	}
	return strings.Join(body, "\n") + "\n", nil
}

// isPrompt reports whether s looks like a CLI prompt such as "R1#",
// "R1>" or "R1(config)#".
func isPrompt(s string) bool {
	if len(s) < 2 || strings.ContainsAny(s, " \t") {
		return false
	}
	return strings.HasSuffix(s, "#") || strings.HasSuffix(s, ">")
}

// normalizeNewlines converts CRLF and stray CR line endings to LF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "")
}
