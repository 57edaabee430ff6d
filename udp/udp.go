// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package udp holds the validation and field-extraction logic shared by
// every UDP-based probe module: the cookie checks on direct UDP replies and
// the recursive checks on probes quoted inside ICMP error signals.
package udp

import (
	"net/netip"

	"github.com/sweepnet/sweep/cookie"
	"github.com/sweepnet/sweep/packet"
	"github.com/sweepnet/sweep/probe"
)

// ValidatePacket applies the transport-level cookie checks common to all
// UDP modules. For a direct UDP reply it checks that the destination port is
// one the cookie scheme selected for some plausible attempt and that the
// responder's source port is a port we actually probed. For an ICMP error
// it locates the quoted original probe and re-applies the same checks to the
// inner header, with the vector re-derived in send orientation.
//
// On Valid, the returned address is the probe destination the response
// corresponds to: the reply source for UDP, the quoted original destination
// for ICMP (the reporting hop may be a different host). Modules layer their
// protocol-specific checks on top of this.
func ValidatePacket(ip packet.IPv4Frame, vec cookie.Vector, conf *probe.ScanConfig,
	ports *probe.PortConfig) (netip.Addr, probe.Verdict) {
	switch ip.Protocol() {
	case packet.ProtoUDP:
		udpf, err := packet.NewUDPFrame(ip.Payload())
		if err != nil {
			return netip.Addr{}, probe.Invalid
		}
		if !checkPorts(udpf.SrcPort(), udpf.DstPort(), vec, conf, ports) {
			return netip.Addr{}, probe.Invalid
		}
		return ip.Src(), probe.Valid

	case packet.ProtoICMPv4:
		return validateQuoted(ip, conf, ports)

	default:
		return netip.Addr{}, probe.Invalid
	}
}

// validateQuoted re-applies the UDP cookie checks to the original probe
// quoted inside an ICMP error body. The quoted packet is in send
// orientation, so the reflected source port is the one the cookie selected
// and the quoted destination port is the target port.
func validateQuoted(ip packet.IPv4Frame, conf *probe.ScanConfig,
	ports *probe.PortConfig) (netip.Addr, probe.Verdict) {
	icmpf, err := packet.NewICMPv4Frame(ip.Payload())
	if err != nil {
		return netip.Addr{}, probe.Invalid
	}
	inner, err := icmpf.Quoted()
	if err != nil {
		return netip.Addr{}, probe.Invalid
	}
	if inner.Protocol() != packet.ProtoUDP {
		return netip.Addr{}, probe.Invalid
	}
	innerUDP, err := packet.NewUDPFrame(inner.Payload())
	if err != nil {
		return netip.Addr{}, probe.Invalid
	}

	vec := conf.Cookie.Vector(inner.Src(), inner.Dst(), innerUDP.DstPort())
	if !checkPorts(innerUDP.DstPort(), innerUDP.SrcPort(), vec, conf, ports) {
		return netip.Addr{}, probe.Invalid
	}
	return inner.Dst(), probe.Valid
}

// checkPorts verifies the cookie-selected port and the probed target port.
// theirPort is the remote side's port (reply source, or quoted destination);
// ourPort is our side's port (reply destination, or quoted source).
func checkPorts(theirPort, ourPort uint16, vec cookie.Vector, conf *probe.ScanConfig,
	ports *probe.PortConfig) bool {
	if conf.ValidateSourcePort &&
		!cookie.CheckSourcePort(ourPort, conf.SourcePortFirst, conf.NumSourcePorts(),
			conf.ProbesPerTarget, vec) {
		return false
	}
	return ports.Contains(theirPort)
}
