// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ipadm

import "net/netip"

// Command lines for the native administration tools. Kept apart from the
// build-tagged provider so the exact argument vectors stay testable on
// every platform.
const (
	ipadmCmd    = "/usr/sbin/ipadm"
	ifconfigCmd = "/sbin/ifconfig"
)

// plumbArgs builds the ifconfig invocation that plumbs one address
// family of an interface. The ipadm CLI has no per-family create-if, so
// plumbing stays on ifconfig.
func plumbArgs(iface string, fam Family) []string {
	if fam == V6 {
		return []string{iface, "inet6", "plumb"}
	}
	return []string{iface, "plumb"}
}

// createAddrArgs builds the ipadm invocation that registers a named,
// temporary static address object and brings it up.
func createAddrArgs(aobjname string, addr netip.Prefix) []string {
	return []string{"create-addr", "-t", "-T", "static", "-a", "local=" + addr.String(), aobjname}
}

// setPropArgs builds the ipadm invocation that sets one temporary
// per-protocol property.
func setPropArgs(proto Proto, prop, value string) []string {
	return []string{"set-prop", "-t", "-p", prop + "=" + value, string(proto)}
}
