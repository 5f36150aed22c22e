// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netconf

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/ipadm"
	"grimm.is/zoneinit/internal/logging"
)

// routeinfoPath is an optional platform helper that prints one static
// route per line.
const routeinfoPath = "/usr/lib/brand/lx/routeinfo"

// LineRunner runs a helper binary and streams its output lines. The
// process runner satisfies it.
type LineRunner interface {
	Resolve(path string) string
	RunLines(name, path string, fn func(line string) error) error
}

// InstallStaticRoutes asks the platform's route helper for static
// routes and installs each one. A platform without the helper simply
// has no static routes.
func InstallStaticRoutes(run LineRunner, handle ipadm.Handle, log *logging.Logger) error {
	log = log.WithComponent("netconf")

	cmd := run.Resolve(routeinfoPath)
	st, err := os.Stat(cmd)
	if err != nil || !st.Mode().IsRegular() {
		return nil
	}

	return run.RunLines("routeinfo", routeinfoPath, func(line string) error {
		rt, linklocal, err := parseRouteLine(line)
		if err != nil {
			log.WithError(err).Warn(fmt.Sprintf("invalid static route: %s", line))
			return nil
		}
		// Only next hop routes are supported.
		if linklocal != "false" {
			log.Warn(fmt.Sprintf("invalid static route: %s", line))
			return nil
		}
		if err := handle.AddRoute(rt); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "failed to add route: %s -> %s",
				rt.Dst, rt.Gateway)
		}
		return nil
	})
}

// parseRouteLine splits a "gateway|destination/prefix|linklocal" line.
func parseRouteLine(line string) (ipadm.Route, string, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return ipadm.Route{}, "", errors.Errorf(errors.KindValidation, "malformed route line %q", line)
	}
	gw, err := netip.ParseAddr(parts[0])
	if err != nil {
		return ipadm.Route{}, "", errors.Wrapf(err, errors.KindValidation, "bad gateway %q", parts[0])
	}
	dst, err := netip.ParsePrefix(parts[1])
	if err != nil {
		return ipadm.Route{}, "", errors.Wrapf(err, errors.KindValidation, "bad destination network %q", parts[1])
	}
	return ipadm.Route{Dst: dst, Gateway: gw}, parts[2], nil
}
