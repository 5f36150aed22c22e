// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dhcp acquires IPv4 leases for zone interfaces.
//
// The preferred path is the platform's own agent: we start it if it is
// not yet listening and then ask it over its loopback IPC endpoint to
// take ownership of a lease. When the native root ships no agent at all
// the client falls back to speaking the protocol itself and installing
// the acquired address through a caller-supplied hook.
package dhcp

import (
	"net"
	"net/netip"
	"os"
	"time"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/logging"
	"grimm.is/zoneinit/internal/proc"
)

const (
	agentPath = "/sbin/dhcpagent"
	agentAddr = "127.0.0.1:4999"

	// ipcTimeoutSec matches the agent's own request timeout.
	ipcTimeoutSec = 5

	startPollInterval = 100 * time.Millisecond
)

// InstallFunc assigns a leased address to an interface. It is only used
// on the fallback path; the agent installs addresses itself.
type InstallFunc func(iface string, addr netip.Prefix) error

// Client starts and talks to the lease agent.
type Client struct {
	run     *proc.Runner
	log     *logging.Logger
	install InstallFunc

	addr   string
	native bool

	// dial is swappable for tests.
	dial func(addr string, timeout time.Duration) (net.Conn, error)
}

// NewClient returns a client that resolves the agent through run and
// falls back to install when no agent binary exists.
func NewClient(run *proc.Runner, install InstallFunc, log *logging.Logger) *Client {
	return &Client{
		run:     run,
		log:     log.WithComponent("dhcp"),
		install: install,
		addr:    agentAddr,
		dial: func(addr string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, timeout)
		},
	}
}

// Ensure makes sure a lease agent is reachable, starting one if needed.
// With no agent binary on the system the client switches to its builtin
// protocol implementation and Ensure succeeds without a daemon.
func (c *Client) Ensure(timeout time.Duration) error {
	if c.native {
		return nil
	}
	if conn, err := c.dial(c.addr, startPollInterval); err == nil {
		conn.Close()
		return nil
	}

	agent := c.run.Resolve(agentPath)
	if _, err := os.Stat(agent); err != nil {
		c.log.Warn("no lease agent on this system, using builtin client", "path", agent)
		c.native = true
		return nil
	}

	// The agent daemonizes, so a clean exit here only means the fork
	// succeeded. Poll the IPC endpoint until it answers.
	if err := c.run.Exec(agentPath); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "failed to start dhcpagent")
	}
	deadline := time.Now().Add(timeout)
	for {
		conn, err := c.dial(c.addr, startPollInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrap(err, errors.KindTimeout, "dhcpagent did not start listening")
		}
		time.Sleep(startPollInterval)
	}
}

// Start asks the agent to acquire and manage a lease on iface.
func (c *Client) Start(iface string) error {
	if c.native {
		return c.nativeStart(iface)
	}

	req, err := encodeStart(iface, ipcTimeoutSec)
	if err != nil {
		return err
	}

	conn, err := c.dial(c.addr, ipcTimeoutSec*time.Second)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "connect to dhcpagent for %s", iface)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(ipcTimeoutSec * time.Second))

	if _, err := conn.Write(req); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "send start request for %s", iface)
	}
	code, err := decodeReply(conn)
	if err != nil {
		return errors.Wrapf(err, errors.GetKind(err), "start DHCP on %s", iface)
	}
	if code != 0 {
		return errors.Errorf(errors.KindInternal, "failed to start DHCP on %s: agent error %d", iface, code)
	}
	return nil
}
