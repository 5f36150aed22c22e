// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package addrconf handles stateless IPv6 address autoconfiguration.
//
// The normal path starts the platform's neighbor discovery daemon,
// which owns autoconfiguration for the whole stack from then on. When
// the native root has no such daemon the service performs a single
// router solicitation per interface itself and installs the resulting
// addresses through a caller-supplied hook.
package addrconf

import (
	"net/netip"
	"os"

	"grimm.is/zoneinit/internal/logging"
	"grimm.is/zoneinit/internal/proc"
)

const (
	ndpdPath = "/usr/lib/inet/in.ndpd"
	ndpdFMRI = "SMF_FMRI=svc:/network/routing/ndp:default"
)

// InstallFunc assigns an autoconfigured address to an interface. Only
// the fallback path uses it.
type InstallFunc func(iface string, addr netip.Prefix) error

type Service struct {
	run     *proc.Runner
	log     *logging.Logger
	install InstallFunc
}

func NewService(run *proc.Runner, install InstallFunc, log *logging.Logger) *Service {
	return &Service{run: run, log: log.WithComponent("addrconf"), install: install}
}

// Start kicks off autoconfiguration for the interfaces that asked for
// it. With a daemon available the list is ignored, since the daemon
// configures every interface the kernel marks for autoconf.
func (s *Service) Start(ifaces []string) error {
	if _, err := os.Stat(s.run.Resolve(ndpdPath)); err == nil {
		return s.run.Run("in.ndpd", ndpdPath, []string{ndpdFMRI})
	}
	s.log.Warn("no NDP daemon on this system, soliciting routers directly")
	s.solicit(ifaces)
	return nil
}
