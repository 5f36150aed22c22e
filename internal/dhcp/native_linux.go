// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package dhcp

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4/nclient4"

	"grimm.is/zoneinit/internal/errors"
)

// nativeStart runs one DISCOVER/REQUEST exchange itself and installs
// the result. Renewal is left to the guest's own tooling.
func (c *Client) nativeStart(iface string) error {
	if c.install == nil {
		return errors.New(errors.KindInternal, "no address installer for builtin DHCP")
	}

	// Leases always attach to the physical device.
	phys, _, _ := strings.Cut(iface, ":")

	client, err := nclient4.New(phys)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "open DHCP client on %s", phys)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), ipcTimeoutSec*time.Second)
	defer cancel()

	lease, err := client.Request(ctx)
	if err != nil {
		return errors.Wrapf(err, errors.KindTimeout, "no DHCP lease on %s", phys)
	}

	ack := lease.ACK
	ip, ok := netip.AddrFromSlice(ack.YourIPAddr.To4())
	if !ok {
		return errors.Errorf(errors.KindInternal, "no address in DHCP ack on %s", phys)
	}
	ones := 24
	if mask := ack.SubnetMask(); mask != nil {
		ones, _ = mask.Size()
	}
	addr := netip.PrefixFrom(ip, ones)

	c.log.Info("acquired lease", "iface", iface, "addr", addr.String())
	return c.install(iface, addr)
}
