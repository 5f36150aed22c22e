// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netconf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/ipadm"
	"grimm.is/zoneinit/internal/logging"
	"grimm.is/zoneinit/internal/zonecfg"
)

type fakeDHCP struct {
	ensureErr error
	startErr  error
	ensured   int
	started   []string

	// onStart lets tests observe ordering against the mock handle.
	onStart func(iface string)
}

func (f *fakeDHCP) Ensure(timeout time.Duration) error {
	f.ensured++
	return f.ensureErr
}

func (f *fakeDHCP) Start(iface string) error {
	if f.onStart != nil {
		f.onStart(iface)
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, iface)
	return nil
}

type fakeAddrconf struct {
	calls  int
	ifaces []string
	err    error
}

func (f *fakeAddrconf) Start(ifaces []string) error {
	f.calls++
	f.ifaces = ifaces
	return f.err
}

type fixture struct {
	mock     *ipadm.Mock
	dhcp     *fakeDHCP
	autoconf *fakeAddrconf
	orch     *Orchestrator
	logbuf   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mock:     ipadm.NewMock(),
		dhcp:     &fakeDHCP{},
		autoconf: &fakeAddrconf{},
		logbuf:   &bytes.Buffer{},
	}
	log := logging.New(logging.Config{Output: f.logbuf, Level: logging.LevelWarn})
	f.orch = New(f.mock, f.dhcp, f.autoconf, log)
	return f
}

func parseDoc(t *testing.T, src string) *zonecfg.Document {
	t.Helper()
	doc, err := zonecfg.Parse([]byte(`ip_type = "exclusive"`+"\n"+src), "testzone")
	require.NoError(t, err)
	return doc
}

func TestSetupLoopback(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SetupLoopback())

	assert.Equal(t, []ipadm.Op{
		"create-if lo0 v4",
		"create-if lo0 v6",
		"create-addr lo0/addr0 lo0 127.0.0.1/8",
		"up-linklocal lo0",
	}, f.mock.Ops())
}

func TestSetupLoopbackIPv6Disabled(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
attr {
  name  = "ipv6"
  value = "false"
}
`)
	require.NoError(t, f.orch.ZoneIPv6(doc))
	require.NoError(t, f.orch.SetupLoopback())

	assert.Equal(t, []ipadm.Op{
		"create-if lo0 v4",
		"create-addr lo0/addr0 lo0 127.0.0.1/8",
	}, f.mock.Ops())
	assert.Contains(t, f.logbuf.String(), "IPv6 is disabled by zone configuration")
}

func TestZoneIPv6InvalidValue(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
attr {
  name  = "ipv6"
  value = "maybe"
}
`)
	require.Error(t, f.orch.ZoneIPv6(doc))
}

func TestStaticPrimaryInterface(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "10.0.0.5/24"
  }
  attr {
    name  = "primary"
    value = "true"
  }
  attr {
    name  = "gateway"
    value = "10.0.0.1"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	assert.Equal(t, []ipadm.Op{
		"create-if net0 v4",
		"create-if net0 v6",
		"up-linklocal net0",
		"create-addr net0/addr0 net0 10.0.0.5/24",
		"add-route net0 default via 10.0.0.1",
	}, f.mock.Ops())
}

func TestSecondAddressGetsLogicalInterface(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "10.0.0.5/24,10.0.0.6/24"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	assert.Equal(t, []ipadm.Op{
		"create-if net0 v4",
		"create-if net0 v6",
		"up-linklocal net0",
		"create-addr net0/addr0 net0 10.0.0.5/24",
		"add-logical-if net0:1 v4",
		"create-addr net0:1/addr1 net0:1 10.0.0.6/24",
	}, f.mock.Ops())
}

func TestIPv6AddressAlwaysGetsLogicalInterface(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "fd00::5/64"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	assert.Equal(t, []ipadm.Op{
		"create-if net0 v4",
		"create-if net0 v6",
		"up-linklocal net0",
		"add-logical-if net0:1 v6",
		"create-addr net0:1/addr0 net0:1 fd00::5/64",
	}, f.mock.Ops())
}

func TestDHCPRunsBeforeStaticAddresses(t *testing.T) {
	f := newFixture(t)
	var opsAtStart int
	f.dhcp.onStart = func(iface string) {
		opsAtStart = len(f.mock.Ops())
		assert.Equal(t, "net0", iface)
	}
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "10.0.0.5/24,dhcp"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	assert.Equal(t, 1, f.dhcp.ensured)
	assert.Equal(t, []string{"net0"}, f.dhcp.started)
	// At the time the lease was requested, only plumbing and the
	// link-local bring-up had happened.
	assert.Equal(t, 3, opsAtStart)

	// The lease took the physical interface and address object addr0,
	// so the static address is forced onto a logical one as addr1.
	ops := f.mock.Ops()
	assert.Contains(t, ops, ipadm.Op("add-logical-if net0:1 v4"))
	assert.Contains(t, ops, ipadm.Op("create-addr net0:1/addr1 net0:1 10.0.0.5/24"))
}

func TestDHCPWithStaticIPv6Address(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "dhcp,fe80::2/64"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	assert.Equal(t, []string{"net0"}, f.dhcp.started)
	ops := f.mock.Ops()
	assert.Contains(t, ops, ipadm.Op("add-logical-if net0:1 v6"))
	assert.Contains(t, ops, ipadm.Op("create-addr net0:1/addr1 net0:1 fe80::2/64"))
}

func TestDHCPAgentStartupFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.dhcp.ensureErr = errors.New(errors.KindUnavailable, "agent did not come up")
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "dhcp"
  }
}
`)
	err := f.orch.ConfigureInterfaces(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to start dhcpagent")
}

func TestDHCPLeaseFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.dhcp.startErr = errors.New(errors.KindTimeout, "no offer")
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "dhcp,10.0.0.5/24"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))
	assert.Contains(t, f.logbuf.String(), "Failed to start DHCP on net0")

	// The failed lease never took the physical interface, so the
	// static address lands on it. The lease attempt still burned an
	// address object number.
	assert.Contains(t, f.mock.Ops(), ipadm.Op("create-addr net0/addr1 net0 10.0.0.5/24"))
}

func TestAllowedAddressWins(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
  allowed_address = "192.168.7.2/24"
  defrouter       = "192.168.7.1"

  attr {
    name  = "ips"
    value = "10.0.0.5/24"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	ops := f.mock.Ops()
	assert.Contains(t, ops, ipadm.Op("create-addr net0/addr0 net0 192.168.7.2/24"))
	assert.Contains(t, ops, ipadm.Op("add-route net0 default via 192.168.7.1"))
	assert.NotContains(t, ops, ipadm.Op("create-addr net0/addr0 net0 10.0.0.5/24"))
}

func TestUnconfiguredInterfaceStillGetsLinkLocal(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	assert.Equal(t, []ipadm.Op{
		"create-if net0 v4",
		"create-if net0 v6",
		"up-linklocal net0",
	}, f.mock.Ops())
	assert.Contains(t, f.logbuf.String(), "Could not find network configuration for the net0 interface")
}

func TestInterfaceCannotWidenIPv6(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
attr {
  name  = "ipv6"
  value = "false"
}

net "net0" {
  attr {
    name  = "ipv6"
    value = "true"
  }
  attr {
    name  = "ips"
    value = "10.0.0.5/24"
  }
}
`)
	require.NoError(t, f.orch.ZoneIPv6(doc))
	err := f.orch.ConfigureInterfaces(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled for the zone")
}

func TestInterfaceNarrowsIPv6(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ipv6"
    value = "false"
  }
  attr {
    name  = "ips"
    value = "10.0.0.5/24"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	// With ipv6 narrowed off the v6 side is never plumbed and no
	// link-local comes up.
	assert.Equal(t, []ipadm.Op{
		"create-if net0 v4",
		"create-addr net0/addr0 net0 10.0.0.5/24",
	}, f.mock.Ops())
}

func TestAddrconfStartedOnceForAllInterfaces(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "addrconf"
  }
}

net "net1" {
  attr {
    name  = "ips"
    value = "addrconf,10.0.1.5/24"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	assert.Equal(t, 1, f.autoconf.calls)
	assert.Equal(t, []string{"net0", "net1"}, f.autoconf.ifaces)
}

func TestAddressNumberingSpansInterfaces(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SetupLoopback())

	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "10.0.0.5/24"
  }
}

net "net1" {
  attr {
    name  = "ips"
    value = "10.0.1.5/24"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))

	ops := f.mock.Ops()
	// Loopback consumed addr0; the two interfaces continue the count.
	assert.Contains(t, ops, ipadm.Op("create-addr lo0/addr0 lo0 127.0.0.1/8"))
	assert.Contains(t, ops, ipadm.Op("create-addr net0/addr1 net0 10.0.0.5/24"))
	assert.Contains(t, ops, ipadm.Op("create-addr net1/addr2 net1 10.0.1.5/24"))
}

func TestBadStaticAddressIsAWarning(t *testing.T) {
	f := newFixture(t)
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "not-an-address,10.0.0.5/24"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))
	assert.Contains(t, f.logbuf.String(), "Unable to add new IP address (not-an-address)")
	assert.Contains(t, f.mock.Ops(), ipadm.Op("create-addr net0/addr1 net0 10.0.0.5/24"))
}

func TestDefaultRouteFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.mock.Observer = func(op ipadm.Op) error {
		if op == "add-route net0 default via 10.0.0.1" {
			return errors.New(errors.KindInternal, "network unreachable")
		}
		return nil
	}
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "10.0.0.5/24"
  }
  attr {
    name  = "primary"
    value = "true"
  }
  attr {
    name  = "gateway"
    value = "10.0.0.1"
  }
}
`)
	err := f.orch.ConfigureInterfaces(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default route on net0 -> 10.0.0.1 failed")
}

func TestPlumbToleratesExistingInterface(t *testing.T) {
	f := newFixture(t)
	f.mock.Observer = func(op ipadm.Op) error {
		if op == "create-if net0 v4" {
			return ipadm.ErrIfExists
		}
		return nil
	}
	doc := parseDoc(t, `
net "net0" {
  attr {
    name  = "ips"
    value = "10.0.0.5/24"
  }
}
`)
	require.NoError(t, f.orch.ConfigureInterfaces(doc))
	assert.Contains(t, f.mock.Ops(), ipadm.Op("create-addr net0/addr0 net0 10.0.0.5/24"))
}
