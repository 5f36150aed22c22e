// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ipadm manages IP interfaces, addresses, routes and protocol
// properties behind a platform-neutral handle. The solaris provider
// drives the native address-management daemon and link ioctls; the
// linux provider speaks netlink.
package ipadm

import (
	"net/netip"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/logging"
)

// Family selects an address family for interface operations.
type Family int

const (
	V4 Family = iota
	V6
)

func (f Family) String() string {
	if f == V6 {
		return "v6"
	}
	return "v4"
}

// Proto names a transport protocol for property tuning.
type Proto string

const (
	TCP   Proto = "tcp"
	UDP   Proto = "udp"
	SCTP  Proto = "sctp"
	RawIP Proto = "icmp"
)

// ErrIfExists reports that an interface is already plumbed for the
// requested family. Callers treat it as success.
var ErrIfExists = errors.New(errors.KindConflict, "interface already exists")

// Route is a unicast IPv4 route. An invalid Dst prefix means the
// default route. Iface, when set, binds the route to that interface.
type Route struct {
	Iface   string
	Dst     netip.Prefix
	Gateway netip.Addr
}

// Handle is an open session with the platform's IP configuration layer.
type Handle interface {
	// CreateIf plumbs iface for the given family.
	CreateIf(iface string, fam Family) error

	// AddLogicalIf allocates the next logical interface on iface and
	// returns its name (for example net0:1).
	AddLogicalIf(iface string, fam Family) (string, error)

	// CreateAddr assigns a static address to the named logical
	// interface under the given address object name.
	CreateAddr(aobjname, iface string, addr netip.Prefix) error

	// BringUpLinkLocal marks the IPv6 link-local interface up so that
	// neighbor discovery can run.
	BringUpLinkLocal(iface string) error

	// SetProp sets a protocol property, ipadm set-prop style.
	SetProp(proto Proto, prop, value string) error

	// AddRoute installs a unicast route.
	AddRoute(r Route) error

	Close() error
}

// Open returns a handle backed by the platform provider.
func Open(log *logging.Logger) (Handle, error) {
	return newHandle(log.WithComponent("ipadm"))
}
