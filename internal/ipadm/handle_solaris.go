// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build solaris

package ipadm

import (
	"net/netip"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/logging"
	"grimm.is/zoneinit/internal/proc"
	"grimm.is/zoneinit/internal/route"
)

// solarisHandle mixes the native administration CLIs with raw lif ioctls.
// Logical interface allocation and link-local flag twiddling have no CLI
// equivalent that targets a specific logical unit, so those go straight
// to the kernel.
type solarisHandle struct {
	run    *proc.Runner
	routes *route.Installer
	s4     int
	s6     int
	log    *logging.Logger
}

func newHandle(log *logging.Logger) (Handle, error) {
	s4, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "socket(AF_INET)")
	}
	s6, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM, 0)
	if err != nil {
		unix.Close(s4)
		return nil, errors.Wrap(err, errors.KindUnavailable, "socket(AF_INET6)")
	}
	return &solarisHandle{
		run:    proc.NewRunner(log),
		routes: route.NewInstaller(os.Getpid(), log),
		s4:     s4,
		s6:     s6,
		log:    log,
	}, nil
}

func (h *solarisHandle) sock(fam Family) int {
	if fam == V6 {
		return h.s6
	}
	return h.s4
}

func (h *solarisHandle) CreateIf(iface string, fam Family) error {
	if err := h.run.Exec(ifconfigCmd, plumbArgs(iface, fam)...); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "already exists") || strings.Contains(msg, "Device busy") {
			return ErrIfExists
		}
		return err
	}
	return nil
}

func (h *solarisHandle) AddLogicalIf(iface string, fam Family) (string, error) {
	var l unix.Lifreq
	if err := l.SetName(iface); err != nil {
		return "", errors.Wrapf(err, errors.KindValidation, "interface name %s", iface)
	}
	// The address union stays zeroed; the kernel picks the unit number
	// and writes the new logical name back into the request.
	if err := unix.IoctlLifreq(h.sock(fam), unix.SIOCLIFADDIF, &l); err != nil {
		return "", errors.Wrapf(err, errors.KindInternal,
			"unable to add %s logical interface on %s", fam, iface)
	}
	return lifrName(&l), nil
}

func (h *solarisHandle) CreateAddr(aobjname, iface string, addr netip.Prefix) error {
	// The address object name carries the logical interface, so ipadm
	// needs no separate interface argument.
	if err := h.run.Exec(ipadmCmd, createAddrArgs(aobjname, addr)...); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "create address %s on %s", aobjname, iface)
	}
	h.log.Debug("address object created", "aobj", aobjname, "addr", addr.String())
	return nil
}

func (h *solarisHandle) BringUpLinkLocal(iface string) error {
	var l unix.Lifreq
	if err := l.SetName(iface); err != nil {
		return errors.Wrapf(err, errors.KindValidation, "interface name %s", iface)
	}
	if err := unix.IoctlLifreq(h.s6, unix.SIOCGLIFFLAGS, &l); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "SIOCGLIFFLAGS %s", iface)
	}
	flags := l.GetLifruUint()
	if flags&unix.IFF_UP != 0 {
		return nil
	}
	l.SetLifruUint(flags | unix.IFF_UP)
	if err := unix.IoctlLifreq(h.s6, unix.SIOCSLIFFLAGS, &l); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "SIOCSLIFFLAGS %s", iface)
	}
	return nil
}

func (h *solarisHandle) SetProp(proto Proto, prop, value string) error {
	return h.run.Exec(ipadmCmd, setPropArgs(proto, prop, value)...)
}

func (h *solarisHandle) AddRoute(r Route) error {
	return h.routes.Add(r.Iface, r.Dst, r.Gateway)
}

func (h *solarisHandle) Close() error {
	err4 := unix.Close(h.s4)
	err6 := unix.Close(h.s6)
	if err4 != nil {
		return err4
	}
	return err6
}

func lifrName(l *unix.Lifreq) string {
	b := make([]byte, 0, len(l.Name))
	for _, c := range l.Name {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}
