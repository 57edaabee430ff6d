// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package publicip determines the public source address of the scanning
// host, for run metadata when the machine sits behind NAT.
package publicip

import (
	"fmt"
	"net/netip"
	"time"

	externalip "github.com/glendc/go-external-ip"

	"github.com/sweepnet/sweep/cache"
)

const defaultCacheExpiration = 2 * time.Hour

// Fetcher resolves the host's public IP.
type Fetcher interface {
	Get() (netip.Addr, error)
}

// NewFetcher returns the default consensus-based Fetcher. Results are
// memoized; the public address of a scanning host does not churn mid-run.
func NewFetcher() Fetcher {
	return &cachedFetcher{inner: &consensusFetcher{}}
}

type cachedFetcher struct {
	inner Fetcher
}

func (f *cachedFetcher) Get() (netip.Addr, error) {
	return cache.GetWithExpiration("source_public_ip", f.inner.Get, defaultCacheExpiration)
}

type consensusFetcher struct{}

func (f *consensusFetcher) Get() (netip.Addr, error) {
	// default consensus polls several well-known checkers and majority-votes
	consensus := externalip.DefaultConsensus(nil, nil)
	consensus.UseIPProtocol(4)

	ip, err := consensus.ExternalIP()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("public IP consensus failed: %w", err)
	}
	addr, ok := netip.AddrFromSlice(ip.To4())
	if !ok {
		return netip.Addr{}, fmt.Errorf("public IP consensus returned non-IPv4 address %s", ip)
	}
	return addr, nil
}
