// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package dhcp

import "grimm.is/zoneinit/internal/errors"

// The builtin client needs raw packet sockets, which only the linux
// build carries. Everywhere else the platform agent is expected.
func (c *Client) nativeStart(iface string) error {
	return errors.Errorf(errors.KindUnavailable, "no builtin DHCP client on this platform (iface %s)", iface)
}
