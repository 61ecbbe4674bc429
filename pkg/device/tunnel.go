package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHTunnel forwards a local TCP port to a target address through an SSH
// jump host. Devices reachable only from a bastion are dialed through
// LocalAddr instead of their own address.
type SSHTunnel struct {
	localAddr string // "127.0.0.1:<port>"
	target    string
	sshClient *ssh.Client
	listener  net.Listener
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSSHTunnel dials SSH on the jump host and opens a local listener on a
// random port. Connections to the local port are forwarded to target as
// seen from the jump host.
func NewSSHTunnel(ctx context.Context, jump, user, pass, target string, timeout time.Duration) (*SSHTunnel, error) {
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(pass),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", jump)
	if err != nil {
		return nil, fmt.Errorf("jump host %s: %w", jump, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, jump, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jump host %s: %w", jump, err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("local listen: %w", err)
	}

	t := &SSHTunnel{
		localAddr: listener.Addr().String(),
		target:    target,
		sshClient: sshClient,
		listener:  listener,
		done:      make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	return t, nil
}

// LocalAddr returns the local address (e.g. "127.0.0.1:54321") that
// forwards to the target.
func (t *SSHTunnel) LocalAddr() string {
	return t.localAddr
}

// Close stops the listener, closes the SSH connection, and waits for
// all forwarding goroutines to finish.
func (t *SSHTunnel) Close() error {
	close(t.done)
	t.listener.Close()
	err := t.sshClient.Close()
	t.wg.Wait()
	return err
}

func (t *SSHTunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *SSHTunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.sshClient.Dial("tcp", t.target)
	if err != nil {
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}

// jumpAddress adds the default SSH port to a jump host given without one.
func jumpAddress(jump string) string {
	if _, _, err := net.SplitHostPort(jump); err == nil {
		return jump
	}
	return net.JoinHostPort(jump, strconv.Itoa(DefaultSSHPort))
}

// tunneledTransactional closes the tunnel after the session.
type tunneledTransactional struct {
	TransactionalSession
	tunnel io.Closer
}

func (s *tunneledTransactional) Close() error {
	return errors.Join(s.TransactionalSession.Close(), s.tunnel.Close())
}

type tunneledImperative struct {
	ImperativeSession
	tunnel io.Closer
}

func (s *tunneledImperative) Close() error {
	return errors.Join(s.ImperativeSession.Close(), s.tunnel.Close())
}
