// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

//go:build !linux

package localaddr

import (
	"fmt"
	"net/netip"
)

func discoverPath(dst netip.Addr) (Path, error) {
	return Path{}, fmt.Errorf("transmit path discovery unsupported on this platform")
}
