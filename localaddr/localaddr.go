// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package localaddr resolves the link-layer path a scan transmits on: the
// outbound interface, the source address and MAC to stamp into frames, and
// the first-hop gateway MAC to address them to.
package localaddr

import (
	"net"
	"net/netip"
)

// Path describes everything needed to hand-build Ethernet frames toward a
// destination.
type Path struct {
	IfIndex    int
	IfName     string
	SrcIP      netip.Addr
	SrcMAC     net.HardwareAddr
	GatewayIP  netip.Addr
	GatewayMAC net.HardwareAddr
}

// Discover resolves the transmit path toward dst. The result is stable for
// the duration of a scan; callers resolve once and reuse it for every frame.
func Discover(dst netip.Addr) (Path, error) {
	return discoverPath(dst)
}
