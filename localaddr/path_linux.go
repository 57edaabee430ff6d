// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

//go:build linux

package localaddr

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
)

// netlink calls are swappable for tests
var (
	routeGet    = netlink.RouteGet
	linkByIndex = netlink.LinkByIndex
	neighList   = netlink.NeighList
)

func discoverPath(dst netip.Addr) (Path, error) {
	routes, err := routeGet(dst.AsSlice())
	if err != nil {
		return Path{}, fmt.Errorf("netlink route lookup for %s failed: %w", dst, err)
	}

	route, err := pickRoute(dst, routes)
	if err != nil {
		return Path{}, err
	}

	srcIP, ok := netip.AddrFromSlice(route.Src.To4())
	if !ok {
		return Path{}, fmt.Errorf("route for %s has invalid source %v", dst, route.Src)
	}

	link, err := linkByIndex(route.LinkIndex)
	if err != nil {
		return Path{}, fmt.Errorf("failed to resolve link %d: %w", route.LinkIndex, err)
	}
	attrs := link.Attrs()
	if len(attrs.HardwareAddr) == 0 {
		return Path{}, fmt.Errorf("link %s has no hardware address", attrs.Name)
	}

	p := Path{
		IfIndex: route.LinkIndex,
		IfName:  attrs.Name,
		SrcIP:   srcIP,
		SrcMAC:  attrs.HardwareAddr,
	}

	// the next hop is the gateway when one exists, the destination itself
	// when the route is on-link
	nextHop := dst
	if route.Gw != nil {
		gw, ok := netip.AddrFromSlice(route.Gw.To4())
		if !ok {
			return Path{}, fmt.Errorf("route for %s has invalid gateway %v", dst, route.Gw)
		}
		p.GatewayIP = gw
		nextHop = gw
	}

	mac, err := resolveNeighborMAC(route.LinkIndex, nextHop)
	if err != nil {
		return Path{}, err
	}
	p.GatewayMAC = mac

	return p, nil
}

func pickRoute(dst netip.Addr, routes []netlink.Route) (netlink.Route, error) {
	for _, r := range routes {
		if len(r.Src) == 0 || r.LinkIndex <= 0 {
			continue
		}
		return r, nil
	}
	return netlink.Route{}, fmt.Errorf("no usable route found for %s", dst)
}

func resolveNeighborMAC(ifIndex int, nextHop netip.Addr) (net.HardwareAddr, error) {
	neighbors, err := neighList(ifIndex, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("netlink neighbor lookup failed: %w", err)
	}
	for _, n := range neighbors {
		if len(n.HardwareAddr) == 0 {
			continue
		}
		ip, ok := netip.AddrFromSlice(n.IP.To4())
		if !ok {
			continue
		}
		if ip == nextHop {
			return n.HardwareAddr, nil
		}
	}
	return nil, fmt.Errorf("no neighbor entry for next hop %s on ifindex %d", nextHop, ifIndex)
}
