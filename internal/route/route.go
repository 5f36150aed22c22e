// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package route composes routing-socket messages and writes them to the
// platform's raw routing socket.
//
// A route add is a fixed-size message: an rt_msghdr followed by three
// sockaddr_in slots (destination, gateway, netmask). A default route
// leaves destination and netmask zeroed except for the address family.
package route

import (
	"encoding/binary"
	"io"
	"net"
	"net/netip"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/logging"
)

// Routing message constants, per the platform's route.h. Defined locally
// so the codec (and its tests) build everywhere.
const (
	msgVersion = 3 // RTM_VERSION
	msgTypeAdd = 1 // RTM_ADD

	flagUp      = 0x1   // RTF_UP
	flagGateway = 0x2   // RTF_GATEWAY
	flagStatic  = 0x800 // RTF_STATIC

	addrDst     = 0x1 // RTA_DST
	addrGateway = 0x2 // RTA_GATEWAY
	addrNetmask = 0x4 // RTA_NETMASK

	afInet = 2 // AF_INET

	// sizeof(struct rt_msghdr); the trailing 40 bytes are rt_metrics.
	hdrSize      = 76
	sockaddrSize = 16

	// MessageSize is the exact size of a route-add message:
	// header plus destination, gateway and netmask slots.
	MessageSize = hdrSize + 3*sockaddrSize
)

// Message is a single route-add request. Routes are always IPv4.
type Message struct {
	// Index binds the route to an interface; zero leaves it unbound.
	Index int

	// Pid identifies the requesting process in the message header.
	Pid int

	// Dst is the destination network. The zero Prefix means default
	// route.
	Dst netip.Prefix

	// Gateway is the IPv4 next hop.
	Gateway netip.Addr
}

// Encode renders the message in the routing socket's wire layout.
// Header fields are host byte order; addresses stay in network order.
func (m *Message) Encode() []byte {
	buf := make([]byte, MessageSize)

	binary.NativeEndian.PutUint16(buf[0:2], MessageSize)
	buf[2] = msgVersion
	buf[3] = msgTypeAdd
	binary.NativeEndian.PutUint16(buf[4:6], uint16(m.Index))
	binary.NativeEndian.PutUint32(buf[8:12], flagUp|flagGateway|flagStatic)
	binary.NativeEndian.PutUint32(buf[12:16], addrDst|addrGateway|addrNetmask)
	binary.NativeEndian.PutUint32(buf[16:20], uint32(m.Pid))

	dst := buf[hdrSize : hdrSize+sockaddrSize]
	gw := buf[hdrSize+sockaddrSize : hdrSize+2*sockaddrSize]
	mask := buf[hdrSize+2*sockaddrSize:]

	// The destination and netmask slots stay zeroed for a default route.
	binary.NativeEndian.PutUint16(dst[0:2], afInet)
	binary.NativeEndian.PutUint16(mask[0:2], afInet)
	if m.Dst.IsValid() {
		a := m.Dst.Addr().As4()
		copy(dst[4:8], a[:])
		copy(mask[4:8], net.CIDRMask(m.Dst.Bits(), 32))
	}

	binary.NativeEndian.PutUint16(gw[0:2], afInet)
	a := m.Gateway.As4()
	copy(gw[4:8], a[:])

	return buf
}

// OpenFunc opens a raw routing socket.
type OpenFunc func() (io.WriteCloser, error)

// Installer writes route-add messages to the routing socket.
type Installer struct {
	open OpenFunc
	pid  int
	log  *logging.Logger
}

// NewInstaller returns an Installer backed by the platform routing socket.
func NewInstaller(pid int, log *logging.Logger) *Installer {
	return &Installer{open: openRouteSocket, pid: pid, log: log}
}

// NewInstallerWithOpener returns an Installer with a custom socket opener.
func NewInstallerWithOpener(open OpenFunc, pid int, log *logging.Logger) *Installer {
	return &Installer{open: open, pid: pid, log: log}
}

// Add installs one IPv4 route. iface, when non-empty, binds the route to
// that interface; the zero dst prefix installs a default route.
func (in *Installer) Add(iface string, dst netip.Prefix, gw netip.Addr) error {
	msg := Message{Pid: in.pid, Dst: dst, Gateway: gw}

	if iface != "" {
		ifi, err := net.InterfaceByName(iface)
		if err != nil {
			return errors.Wrapf(err, errors.KindNotFound, "unable to get interface index for %s", iface)
		}
		msg.Index = ifi.Index
	}

	sock, err := in.open()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "socket(PF_ROUTE)")
	}
	defer sock.Close()

	buf := msg.Encode()
	n, err := sock.Write(buf)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "could not write rtmsg")
	}
	if n < len(buf) {
		return errors.New(errors.KindInternal, "write() rtmsg incomplete")
	}
	return nil
}
