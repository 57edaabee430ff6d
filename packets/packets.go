// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package packets abstracts the raw capture and transmit collaborators the
// scan engine plugs into. The engine itself never opens sockets; it hands
// finished frames to a Sink and pulls captured frames from a Source.
package packets

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupported is returned by constructors on platforms without a raw
// packet implementation.
var ErrUnsupported = errors.New("raw packet access not supported on this platform")

// Source captures raw link-layer frames.
type Source interface {
	// Read fills buf with the next captured frame and returns the captured
	// length and a capture timestamp. The engine treats the bytes as fully
	// untrusted.
	Read(buf []byte) (int, time.Time, error)
	// SetPacketFilter installs a kernel-level filter built from spec.
	SetPacketFilter(spec FilterSpec) error
	// SetReadDeadline bounds the next Read.
	SetReadDeadline(t time.Time) error
	Close() error
}

// Sink transmits raw link-layer frames at line rate. Implementations offer
// no delivery guarantee; the engine never retries.
type Sink interface {
	WriteFrame(buf []byte) error
	Close() error
}

// FilterType selects which protocol mix a Source should capture.
type FilterType int

const (
	// FilterTypeNone captures everything.
	FilterTypeNone FilterType = iota
	// FilterTypeICMP captures only ICMPv4.
	FilterTypeICMP
	// FilterTypeUDP captures UDP and ICMPv4 (ICMP carries the error signals
	// for UDP probes).
	FilterTypeUDP
)

// FilterSpec defines how a Source should filter captured packets.
type FilterSpec struct {
	Type FilterType
}

// FilterFromExpression maps a probe module's declared capture filter
// expression onto a FilterSpec.
func FilterFromExpression(expr string) (FilterSpec, error) {
	switch expr {
	case "":
		return FilterSpec{Type: FilterTypeNone}, nil
	case "icmp":
		return FilterSpec{Type: FilterTypeICMP}, nil
	case "udp || icmp", "icmp || udp":
		return FilterSpec{Type: FilterTypeUDP}, nil
	default:
		return FilterSpec{}, fmt.Errorf("unsupported capture filter expression %q", expr)
	}
}
