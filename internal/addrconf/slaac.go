// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package addrconf

import (
	"net"
	"net/netip"
	"time"

	"github.com/mdlayher/ndp"

	"grimm.is/zoneinit/internal/errors"
)

const solicitTimeout = 5 * time.Second

// solicit runs one router solicitation round per interface. Failures
// are warnings; a zone without routable IPv6 still boots.
func (s *Service) solicit(ifaces []string) {
	for _, name := range ifaces {
		if err := s.solicitOne(name); err != nil {
			s.log.WithError(err).Warn("autoconfiguration failed", "iface", name)
		}
	}
}

func (s *Service) solicitOne(name string) error {
	if s.install == nil {
		return errors.New(errors.KindInternal, "no address installer")
	}

	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "interface %s", name)
	}

	conn, _, err := ndp.Listen(ifi, ndp.LinkLocal)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "NDP listen on %s", name)
	}
	defer conn.Close()

	rs := &ndp.RouterSolicitation{
		Options: []ndp.Option{
			&ndp.LinkLayerAddress{Direction: ndp.Source, Addr: ifi.HardwareAddr},
		},
	}
	if err := conn.WriteTo(rs, nil, netip.IPv6LinkLocalAllRouters()); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "send router solicitation on %s", name)
	}

	if err := conn.SetReadDeadline(time.Now().Add(solicitTimeout)); err != nil {
		return errors.Wrap(err, errors.KindInternal, "set read deadline")
	}
	for {
		msg, _, _, err := conn.ReadFrom()
		if err != nil {
			return errors.Wrapf(err, errors.KindTimeout, "no router advertisement on %s", name)
		}
		ra, ok := msg.(*ndp.RouterAdvertisement)
		if !ok {
			continue
		}

		installed := 0
		for _, opt := range ra.Options {
			pi, ok := opt.(*ndp.PrefixInformation)
			if !ok || !pi.AutonomousAddressConfiguration || pi.PrefixLength != 64 {
				continue
			}
			addr := netip.PrefixFrom(eui64(pi.Prefix, ifi.HardwareAddr), 64)
			if err := s.install(name, addr); err != nil {
				s.log.WithError(err).Warn("could not install address",
					"iface", name, "addr", addr.String())
				continue
			}
			installed++
		}
		if installed > 0 {
			return nil
		}
	}
}

// eui64 forms the interface identifier from a 48-bit MAC, per RFC 4291
// appendix A, and merges it into the advertised /64 prefix.
func eui64(prefix netip.Addr, mac net.HardwareAddr) netip.Addr {
	b := prefix.As16()
	if len(mac) == 6 {
		b[8] = mac[0] ^ 0x02
		b[9] = mac[1]
		b[10] = mac[2]
		b[11] = 0xff
		b[12] = 0xfe
		b[13] = mac[3]
		b[14] = mac[4]
		b[15] = mac[5]
	}
	return netip.AddrFrom16(b)
}
