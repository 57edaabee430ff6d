// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

//go:build linux

package localaddr

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
)

type fakeLink struct {
	attrs netlink.LinkAttrs
}

func (l *fakeLink) Attrs() *netlink.LinkAttrs { return &l.attrs }
func (l *fakeLink) Type() string              { return "fake" }

func installFakes(t *testing.T, routes []netlink.Route, link netlink.Link, neighbors []netlink.Neigh) {
	origRouteGet, origLinkByIndex, origNeighList := routeGet, linkByIndex, neighList
	t.Cleanup(func() {
		routeGet, linkByIndex, neighList = origRouteGet, origLinkByIndex, origNeighList
	})

	routeGet = func(dst net.IP) ([]netlink.Route, error) {
		return routes, nil
	}
	linkByIndex = func(idx int) (netlink.Link, error) {
		if link == nil {
			return nil, errors.New("no such link")
		}
		return link, nil
	}
	neighList = func(idx, family int) ([]netlink.Neigh, error) {
		return neighbors, nil
	}
}

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func TestDiscoverViaGateway(t *testing.T) {
	srcMAC := mustMAC(t, "00:00:5e:00:53:01")
	gwMAC := mustMAC(t, "00:00:5e:00:53:fe")

	link := &fakeLink{}
	link.attrs.Index = 2
	link.attrs.Name = "eth0"
	link.attrs.HardwareAddr = srcMAC

	installFakes(t,
		[]netlink.Route{{
			LinkIndex: 2,
			Src:       net.ParseIP("192.0.2.10"),
			Gw:        net.ParseIP("192.0.2.1"),
		}},
		link,
		[]netlink.Neigh{
			{IP: net.ParseIP("192.0.2.99"), HardwareAddr: mustMAC(t, "00:00:5e:00:53:99")},
			{IP: net.ParseIP("192.0.2.1"), HardwareAddr: gwMAC},
		},
	)

	p, err := Discover(netip.MustParseAddr("203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, 2, p.IfIndex)
	assert.Equal(t, "eth0", p.IfName)
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), p.SrcIP)
	assert.Equal(t, srcMAC, p.SrcMAC)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), p.GatewayIP)
	assert.Equal(t, gwMAC, p.GatewayMAC)
}

func TestDiscoverOnLink(t *testing.T) {
	dstMAC := mustMAC(t, "00:00:5e:00:53:22")

	link := &fakeLink{}
	link.attrs.Index = 3
	link.attrs.Name = "eth1"
	link.attrs.HardwareAddr = mustMAC(t, "00:00:5e:00:53:01")

	installFakes(t,
		[]netlink.Route{{
			LinkIndex: 3,
			Src:       net.ParseIP("192.0.2.10"),
		}},
		link,
		[]netlink.Neigh{
			{IP: net.ParseIP("192.0.2.22"), HardwareAddr: dstMAC},
		},
	)

	p, err := Discover(netip.MustParseAddr("192.0.2.22"))
	require.NoError(t, err)
	assert.False(t, p.GatewayIP.IsValid())
	assert.Equal(t, dstMAC, p.GatewayMAC)
}

func TestDiscoverSkipsRoutesWithoutSource(t *testing.T) {
	link := &fakeLink{}
	link.attrs.Index = 2
	link.attrs.Name = "eth0"
	link.attrs.HardwareAddr = mustMAC(t, "00:00:5e:00:53:01")

	installFakes(t,
		[]netlink.Route{
			{LinkIndex: 2},
			{LinkIndex: 2, Src: net.ParseIP("192.0.2.10"), Gw: net.ParseIP("192.0.2.1")},
		},
		link,
		[]netlink.Neigh{
			{IP: net.ParseIP("192.0.2.1"), HardwareAddr: mustMAC(t, "00:00:5e:00:53:fe")},
		},
	)

	p, err := Discover(netip.MustParseAddr("203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), p.SrcIP)
}

func TestDiscoverNoNeighborEntry(t *testing.T) {
	link := &fakeLink{}
	link.attrs.Index = 2
	link.attrs.Name = "eth0"
	link.attrs.HardwareAddr = mustMAC(t, "00:00:5e:00:53:01")

	installFakes(t,
		[]netlink.Route{{
			LinkIndex: 2,
			Src:       net.ParseIP("192.0.2.10"),
			Gw:        net.ParseIP("192.0.2.1"),
		}},
		link,
		nil,
	)

	_, err := Discover(netip.MustParseAddr("203.0.113.7"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no neighbor entry")
}

func TestDiscoverNoUsableRoute(t *testing.T) {
	installFakes(t, []netlink.Route{{LinkIndex: 0}}, nil, nil)

	_, err := Discover(netip.MustParseAddr("203.0.113.7"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable route")
}
