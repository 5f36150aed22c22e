// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netconf wires a fresh zone's network together from its
// configuration document: loopback, per-interface plumbing and
// addressing, default routes and static routes.
//
// Failures split two ways. Anything that leaves the zone unable to
// reach the network as configured (plumbing, default routes, starting
// the lease agent) is an error the caller treats as fatal. Everything
// else (a single address, a lease request, link-local bring-up) is
// logged and skipped, since a partially configured zone is still more
// useful than a reboot loop.
package netconf

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/ipadm"
	"grimm.is/zoneinit/internal/logging"
	"grimm.is/zoneinit/internal/zonecfg"
)

// agentStartTimeout bounds both lease agent startup and its requests.
const agentStartTimeout = 5 * time.Second

// DHCPAgent acquires IPv4 leases.
type DHCPAgent interface {
	// Ensure makes a lease agent reachable, starting one if needed.
	Ensure(timeout time.Duration) error
	// Start asks the agent to manage a lease on iface.
	Start(iface string) error
}

// Addrconf starts stateless IPv6 autoconfiguration.
type Addrconf interface {
	Start(ifaces []string) error
}

// Orchestrator applies the zone document to the live stack.
type Orchestrator struct {
	handle   ipadm.Handle
	dhcp     DHCPAgent
	autoconf Addrconf
	log      *logging.Logger

	// ipv6Enable is the zone-wide flag; interfaces may only narrow it.
	ipv6Enable bool

	// addrNum numbers address objects across the whole run, loopback
	// included.
	addrNum int

	addrconfIfaces []string
}

func New(handle ipadm.Handle, dhcp DHCPAgent, autoconf Addrconf, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		handle:     handle,
		dhcp:       dhcp,
		autoconf:   autoconf,
		log:        log.WithComponent("netconf"),
		ipv6Enable: true,
	}
}

// ZoneIPv6 applies the zone-wide ipv6 attribute. IPv6 defaults to on;
// an absent attribute changes nothing and anything but true or false is
// an error.
func (o *Orchestrator) ZoneIPv6(doc *zonecfg.Document) error {
	val, err := doc.LookupAttr("ipv6")
	if err != nil {
		if errors.GetKind(err) == errors.KindNotFound {
			return nil
		}
		return err
	}
	switch val {
	case "true":
		o.ipv6Enable = true
	case "false":
		o.ipv6Enable = false
	default:
		return errors.New(errors.KindValidation, "invalid value for 'ipv6' attribute")
	}
	state := "enabled"
	if !o.ipv6Enable {
		state = "disabled"
	}
	o.log.Warn(fmt.Sprintf("IPv6 is %s by zone configuration", state))
	return nil
}

// SetupLoopback plumbs lo0 and puts 127.0.0.1/8 on it. The loopback
// address runs through the same numbering as everything else.
func (o *Orchestrator) SetupLoopback() error {
	const iface = "lo0"

	if err := o.plumb(iface, o.ipv6Enable); err != nil {
		return err
	}
	firstV4 := false
	if err := o.addStaticAddress(iface, "127.0.0.1/8", &firstV4); err != nil {
		o.log.WithError(err).Warn("unable to add loopback address")
	}
	if o.ipv6Enable {
		if err := o.handle.BringUpLinkLocal(iface); err != nil {
			o.log.WithError(err).Warn("unable to bring up link-local address on interface lo0")
		}
	}
	return nil
}

// ConfigureInterfaces walks every network resource in the document and
// configures it. If any interface asked for autoconfiguration, the
// autoconf service is started once at the end.
func (o *Orchestrator) ConfigureInterfaces(doc *zonecfg.Document) error {
	iter, err := doc.Interfaces()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.Next() {
		if err := o.configureInterface(iter.Record()); err != nil {
			return err
		}
	}

	if len(o.addrconfIfaces) > 0 {
		if err := o.autoconf.Start(o.addrconfIfaces); err != nil {
			return errors.Wrap(err, errors.GetKind(err), "failed to start addrconf")
		}
	}
	return nil
}

func (o *Orchestrator) configureInterface(nic zonecfg.NetworkInterface) error {
	iface := nic.Physical
	firstV4 := false

	// The per-interface ipv6 attribute may only narrow the zone flag.
	// It has to be resolved first because it decides whether the v6
	// side gets plumbed at all.
	ipv6 := o.ipv6Enable
	if v, ok := nic.Attr("ipv6"); ok {
		switch v {
		case "true":
			if !o.ipv6Enable {
				return errors.New(errors.KindValidation,
					"cannot enable ipv6 for an interface when it is disabled for the zone")
			}
		case "false":
			ipv6 = false
		default:
			return errors.New(errors.KindValidation, "invalid value for 'ipv6' attribute")
		}
	}

	// Plumb every physical interface, configured or not.
	if err := o.plumb(iface, ipv6); err != nil {
		return err
	}

	// allowed-address wins over the ips attribute: the global zone has
	// already locked the link down to that address.
	var ipaddrs string
	noConfig := false
	if nic.AllowedAddress != "" {
		ipaddrs = nic.AllowedAddress
	} else if v, ok := nic.Attr("ips"); ok {
		ipaddrs = v
	} else {
		o.log.Warn(fmt.Sprintf("Could not find network configuration for the %s interface", iface))
		noConfig = true
	}

	if ipv6 {
		if err := o.handle.BringUpLinkLocal(iface); err != nil {
			o.log.WithError(err).Warn(fmt.Sprintf(
				"unable to bring up link-local address on interface %s", iface))
		}
	}

	if noConfig {
		return nil
	}

	// DHCP has to go first: the lease agent refuses to operate on
	// nonzero logical interfaces.
	if strings.Contains(ipaddrs, "dhcp") {
		if err := o.startDHCP(iface, &firstV4); err != nil {
			return err
		}
	}

	for _, tok := range strings.Split(ipaddrs, ",") {
		tok = strings.TrimSpace(tok)
		switch tok {
		case "":
			continue
		case "addrconf":
			o.markAddrconf(iface)
		case "dhcp":
			continue
		default:
			if err := o.addStaticAddress(iface, tok, &firstV4); err != nil {
				o.log.WithError(err).Warn(fmt.Sprintf(
					"Unable to add new IP address (%s) to interface %s", tok, iface))
			}
		}
	}

	// A defrouter configured alongside allowed-address wins; otherwise
	// the primary interface may name a gateway attribute.
	gw := nic.DefRouter
	if gw == "" {
		if p, ok := nic.Attr("primary"); ok && p == "true" {
			gw, _ = nic.Attr("gateway")
		}
	}
	if gw != "" {
		gwAddr, err := netip.ParseAddr(gw)
		if err == nil {
			err = o.handle.AddRoute(ipadm.Route{Iface: iface, Gateway: gwAddr})
		}
		if err != nil {
			return errors.Wrapf(err, errors.KindInternal,
				"default route on %s -> %s failed", iface, gw)
		}
	}
	return nil
}

// plumb creates the v4 interface and, when ipv6 is in effect for it,
// the v6 one. Already plumbed is fine.
func (o *Orchestrator) plumb(iface string, ipv6 bool) error {
	if err := o.handle.CreateIf(iface, ipadm.V4); err != nil && !errors.Is(err, ipadm.ErrIfExists) {
		return errors.Wrapf(err, errors.GetKind(err), "create interface %s/v4", iface)
	}
	if ipv6 {
		if err := o.handle.CreateIf(iface, ipadm.V6); err != nil && !errors.Is(err, ipadm.ErrIfExists) {
			return errors.Wrapf(err, errors.GetKind(err), "create interface %s/v6", iface)
		}
	}
	return nil
}

// getIf picks the interface an address lands on. Every address needs a
// fresh logical interface except the very first IPv4 one, which goes on
// the physical interface itself.
func (o *Orchestrator) getIf(iface string, fam ipadm.Family, firstV4 bool) (string, error) {
	if fam == ipadm.V6 || firstV4 {
		return o.handle.AddLogicalIf(iface, fam)
	}
	return iface, nil
}

// addStaticAddress puts one address token on the interface. The address
// object number is consumed even when the token turns out to be bad, so
// numbering stays stable across retries of the same document.
func (o *Orchestrator) addStaticAddress(iface, tok string, firstV4 *bool) error {
	fam := ipadm.V4
	if strings.Contains(tok, ":") {
		fam = ipadm.V6
	}

	lif, err := o.getIf(iface, fam, *firstV4)
	if err != nil {
		return errors.Wrapf(err, errors.GetKind(err),
			"failed to create new logical interface on %s", iface)
	}

	aobj := fmt.Sprintf("%s/addr%d", lif, o.addrNum)
	o.addrNum++

	addr, err := parseAddrToken(tok)
	if err != nil {
		return err
	}

	if err := o.handle.CreateAddr(aobj, lif, addr); err != nil {
		return err
	}
	if fam == ipadm.V4 {
		*firstV4 = true
	}
	return nil
}

func (o *Orchestrator) startDHCP(iface string, firstV4 *bool) error {
	lif, err := o.getIf(iface, ipadm.V4, *firstV4)
	if err != nil {
		o.log.WithError(err).Warn(fmt.Sprintf(
			"failed to create new logical interface on %s", iface))
		return nil
	}

	// A DHCP lease occupies an address object slot whether or not the
	// agent ends up delivering one.
	o.addrNum++

	if err := o.dhcp.Ensure(agentStartTimeout); err != nil {
		return errors.Wrap(err, errors.GetKind(err), "Failed to start dhcpagent")
	}
	if err := o.dhcp.Start(lif); err != nil {
		o.log.WithError(err).Warn(fmt.Sprintf("Failed to start DHCP on %s", lif))
		return nil
	}
	*firstV4 = true
	return nil
}

func (o *Orchestrator) markAddrconf(iface string) {
	for _, v := range o.addrconfIfaces {
		if v == iface {
			return
		}
	}
	o.addrconfIfaces = append(o.addrconfIfaces, iface)
}

// parseAddrToken reads an address with an optional prefix length; a
// bare address gets its family's host mask.
func parseAddrToken(tok string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(tok); err == nil {
		return p, nil
	}
	a, err := netip.ParseAddr(tok)
	if err != nil {
		return netip.Prefix{}, errors.Wrapf(err, errors.KindValidation, "address %q", tok)
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}
