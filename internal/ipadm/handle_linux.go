// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package ipadm

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/logging"
)

const procSysRoot = "/proc/sys"

// linuxHandle drives the stack over netlink. Linux has no logical
// interfaces; they are emulated with address labels so the rest of the
// program can keep its unit accounting.
type linuxHandle struct {
	ns      netns.NsHandle
	logical map[string]int
	log     *logging.Logger
}

func newHandle(log *logging.Logger) (Handle, error) {
	ns, err := netns.Get()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "get network namespace")
	}
	return &linuxHandle{ns: ns, logical: make(map[string]int), log: log}, nil
}

func (h *linuxHandle) CreateIf(iface string, fam Family) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "link %s", iface)
	}
	if fam == V6 {
		if err := writeSysctl(filepath.Join("net/ipv6/conf", iface, "disable_ipv6"), "0"); err != nil {
			return err
		}
	}
	if link.Attrs().Flags&net.FlagUp != 0 {
		return ErrIfExists
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "link up %s", iface)
	}
	return nil
}

func (h *linuxHandle) AddLogicalIf(iface string, fam Family) (string, error) {
	if _, err := netlink.LinkByName(iface); err != nil {
		return "", errors.Wrapf(err, errors.KindNotFound, "link %s", iface)
	}
	h.logical[iface]++
	return fmt.Sprintf("%s:%d", iface, h.logical[iface]), nil
}

func (h *linuxHandle) CreateAddr(aobjname, iface string, addr netip.Prefix) error {
	phys, _, _ := cutLogical(iface)
	link, err := netlink.LinkByName(phys)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "link %s", phys)
	}
	nla, err := netlink.ParseAddr(addr.String())
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "address %s", addr)
	}
	// Kernel labels are v4-only and must start with the device name.
	if addr.Addr().Is4() {
		nla.Label = iface
	}
	if err := netlink.AddrAdd(link, nla); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "add address %s to %s", aobjname, iface)
	}
	return nil
}

func (h *linuxHandle) BringUpLinkLocal(iface string) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "link %s", iface)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "link up %s", iface)
	}
	return nil
}

// SetProp translates buffer properties into their nearest global sysctl.
// Linux keys the knobs by direction rather than protocol, so the proto
// only picks whether the property applies at all.
func (h *linuxHandle) SetProp(proto Proto, prop, value string) error {
	var paths []string
	switch prop {
	case "max_buf":
		paths = []string{"net/core/rmem_max", "net/core/wmem_max"}
	case "send_buf":
		paths = []string{"net/core/wmem_default"}
	case "recv_buf":
		paths = []string{"net/core/rmem_default"}
	default:
		h.log.Debug("no sysctl mapping for property", "proto", string(proto), "prop", prop)
		return nil
	}
	for _, p := range paths {
		if err := writeSysctl(p, value); err != nil {
			return err
		}
	}
	return nil
}

func (h *linuxHandle) AddRoute(r Route) error {
	rt := &netlink.Route{Gw: r.Gateway.AsSlice()}
	if r.Dst.IsValid() {
		rt.Dst = &net.IPNet{
			IP:   r.Dst.Addr().AsSlice(),
			Mask: net.CIDRMask(r.Dst.Bits(), r.Dst.Addr().BitLen()),
		}
	}
	if r.Iface != "" {
		link, err := netlink.LinkByName(r.Iface)
		if err != nil {
			return errors.Wrapf(err, errors.KindNotFound, "link %s", r.Iface)
		}
		rt.LinkIndex = link.Attrs().Index
	}
	if err := netlink.RouteAdd(rt); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "add route via %s", r.Gateway)
	}
	return nil
}

func (h *linuxHandle) Close() error {
	return h.ns.Close()
}

func writeSysctl(rel, value string) error {
	path := filepath.Join(procSysRoot, rel)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "sysctl %s", rel)
	}
	return nil
}

// cutLogical splits net0:2 into its physical name and unit number.
func cutLogical(iface string) (phys string, unit int, ok bool) {
	for i := 0; i < len(iface); i++ {
		if iface[i] == ':' {
			n := 0
			for _, c := range iface[i+1:] {
				if c < '0' || c > '9' {
					return iface, 0, false
				}
				n = n*10 + int(c-'0')
			}
			return iface[:i], n, true
		}
	}
	return iface, 0, false
}
