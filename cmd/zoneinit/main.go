// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command zoneinit is the first process inside a freshly booted zone.
// It brings up the zone's network from its configuration document and
// then replaces itself with the guest's real init.
package main

import (
	"net/netip"
	"os"

	"grimm.is/zoneinit/internal/addrconf"
	"grimm.is/zoneinit/internal/console"
	"grimm.is/zoneinit/internal/dhcp"
	"grimm.is/zoneinit/internal/ipadm"
	"grimm.is/zoneinit/internal/logging"
	"grimm.is/zoneinit/internal/netconf"
	"grimm.is/zoneinit/internal/proc"
	"grimm.is/zoneinit/internal/tuner"
	"grimm.is/zoneinit/internal/zonecfg"
)

const (
	ipmgmtdPath = "/lib/inet/ipmgmtd"
	ipmgmtdFMRI = "SMF_FMRI=svc:/network/ip-interface-management:default"

	hookPostnetPath = "/usr/lib/brand/lx/lx_hook_postnet"
)

func main() {
	// Without a console there is nowhere to complain; bail quietly.
	con, err := console.Open(console.DevicePath)
	if err != nil {
		os.Exit(1)
	}
	if err := con.Redirect(); err != nil {
		os.Exit(1)
	}

	log := logging.New(logging.DefaultConfig())
	logging.SetDefault(log)

	run := proc.NewRunner(log)

	// The interface management daemon must be up before any handle can
	// open.
	if err := run.Run("ipmgmtd", ipmgmtdPath, []string{ipmgmtdFMRI}); err != nil {
		log.WithError(err).Fatal("Error starting ipmgmtd")
	}

	handle, err := ipadm.Open(log)
	if err != nil {
		log.WithError(err).Fatal("Error opening ipadm handle")
	}

	doc, err := zonecfg.Open()
	if err != nil {
		log.WithError(err).Fatal("Error opening zone configuration")
	}

	install := func(iface string, addr netip.Prefix) error {
		return handle.CreateAddr(iface+"/lease", iface, addr)
	}
	orch := netconf.New(handle,
		dhcp.NewClient(run, install, log),
		addrconf.NewService(run, install, log),
		log)

	if err := orch.ZoneIPv6(doc); err != nil {
		log.WithError(err).Fatal("Error reading ipv6 attribute")
	}
	if err := orch.SetupLoopback(); err != nil {
		log.WithError(err).Fatal("Error configuring loopback")
	}
	if err := orch.ConfigureInterfaces(doc); err != nil {
		log.WithError(err).Fatal("Error configuring network interfaces")
	}

	if err := tuner.Normalize(doc, handle, log); err != nil {
		log.WithError(err).Fatal("Error normalizing protocol buffers")
	}

	if err := doc.Close(); err != nil {
		log.WithError(err).Warn("error closing zone configuration")
	}

	if err := netconf.InstallStaticRoutes(run, handle, log); err != nil {
		log.WithError(err).Fatal("Error installing static routes")
	}

	if err := handle.Close(); err != nil {
		log.WithError(err).Warn("error closing ipadm handle")
	}

	if err := run.RunHook(hookPostnetPath); err != nil {
		log.WithError(err).Fatal("Error running post-network hook")
	}

	if err := con.Close(); err != nil {
		// The console is gone; nothing sensible left to do but exec.
		_ = err
	}

	execInit(os.Args)
}
