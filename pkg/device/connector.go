package device

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/util"
)

// Default ports per transport.
const (
	DefaultSSHPort     = 22
	DefaultNETCONFPort = 830
)

// Connector opens sessions to inventory devices. The caller picks the
// variant from the device role; a Connector never probes capabilities.
type Connector interface {
	OpenTransactional(ctx context.Context, dev inventory.Device) (TransactionalSession, error)
	OpenImperative(ctx context.Context, dev inventory.Device) (ImperativeSession, error)
}

// transactionalDrivers are the driver names served by NETCONF.
var transactionalDrivers = map[string]bool{
	"junos":   true,
	"netconf": true,
}

// NetConnector dials real devices: NETCONF over SSH for transactional
// devices and an interactive SSH CLI for imperative ones.
type NetConnector struct {
	// DialTimeout bounds connection setup when ctx has no deadline.
	DialTimeout time.Duration
}

// NewConnector creates a connector with the given dial timeout.
func NewConnector(dialTimeout time.Duration) *NetConnector {
	return &NetConnector{DialTimeout: dialTimeout}
}

// OpenTransactional dials NETCONF and locks the candidate datastore.
func (c *NetConnector) OpenTransactional(ctx context.Context, dev inventory.Device) (TransactionalSession, error) {
	driver := strings.ToLower(dev.Driver)
	if !transactionalDrivers[driver] {
		return nil, fmt.Errorf("driver %q has no transactional session: %w", dev.Driver, util.ErrUnsupported)
	}
	addr, tunnel, err := c.dialAddress(ctx, dev, DefaultNETCONFPort)
	if err != nil {
		return nil, err
	}
	sess, err := DialNETCONF(ctx, addr, dev.Username, dev.Password, c.timeout(ctx))
	if err != nil {
		if tunnel != nil {
			tunnel.Close()
		}
		return nil, err
	}
	if tunnel != nil {
		return &tunneledTransactional{TransactionalSession: sess, tunnel: tunnel}, nil
	}
	return sess, nil
}

// OpenImperative dials SSH for command-line configuration.
func (c *NetConnector) OpenImperative(ctx context.Context, dev inventory.Device) (ImperativeSession, error) {
	addr, tunnel, err := c.dialAddress(ctx, dev, DefaultSSHPort)
	if err != nil {
		return nil, err
	}
	sess, err := DialSSH(ctx, addr, dev.Username, dev.Password, dev.EnablePassword, c.timeout(ctx))
	if err != nil {
		if tunnel != nil {
			tunnel.Close()
		}
		return nil, err
	}
	if tunnel != nil {
		return &tunneledImperative{ImperativeSession: sess, tunnel: tunnel}, nil
	}
	return sess, nil
}

// dialAddress returns the address to dial for dev. Devices with a jump
// host get a tunnel, which the caller owns.
func (c *NetConnector) dialAddress(ctx context.Context, dev inventory.Device, defaultPort int) (string, *SSHTunnel, error) {
	addr := address(dev, defaultPort)
	if dev.Jump == "" {
		return addr, nil, nil
	}
	tunnel, err := NewSSHTunnel(ctx, jumpAddress(dev.Jump), dev.Username, dev.Password, addr, c.timeout(ctx))
	if err != nil {
		return "", nil, err
	}
	util.WithDevice(dev.Name).Debugf("Dialing %s through %s", addr, dev.Jump)
	return tunnel.LocalAddr(), tunnel, nil
}

func (c *NetConnector) timeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 30 * time.Second
}

func address(dev inventory.Device, defaultPort int) string {
	port := dev.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(dev.Host, strconv.Itoa(port))
}

// callWithContext runs fn and returns early if ctx ends first. abort is
// invoked on cancellation to unblock fn.
func callWithContext[T any](ctx context.Context, abort func(), fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		if abort != nil {
			abort()
		}
		var zero T
		return zero, ctx.Err()
	}
}
