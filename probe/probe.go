// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package probe defines the contract every protocol module implements and
// the registry the scan engine selects modules from. The engine drives one
// generic lifecycle; everything protocol specific lives behind the Module
// interface.
package probe

import (
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"time"

	"github.com/sweepnet/sweep/cookie"
	"github.com/sweepnet/sweep/fieldset"
	"github.com/sweepnet/sweep/packet"
)

// Verdict is the outcome of packet validation.
type Verdict int

const (
	// Invalid marks a frame that did not authenticate as a response to one
	// of our probes. Invalid frames are dropped silently.
	Invalid Verdict = iota
	// Valid marks an authenticated response.
	Valid
)

func (v Verdict) String() string {
	if v == Valid {
		return "valid"
	}
	return "invalid"
}

// WorkerState is the per-worker state a module may use. Each worker owns
// exactly one; it is never shared or locked.
type WorkerState struct {
	// Rand is a worker-exclusive generator, seeded by ThreadInitialize from
	// the process-wide keyed sequence.
	Rand *rand.Rand
}

// Descriptor is a module's static registration record. Immutable for the
// process lifetime.
type Descriptor struct {
	// Name identifies the module in the registry and in output records.
	Name string
	// Filter is the capture filter expression handed to capture setup.
	Filter string
	// MaxPacketLength is the exact length of packets this module emits.
	MaxPacketLength int
	// Snaplen is the capture snapshot length to configure.
	Snaplen int
	// PortArgs is how many target port arguments the module requires.
	PortArgs int
	// Fields is the module's output schema. Every processed packet
	// populates every field, in order.
	Fields fieldset.Schema
}

// Module is the lifecycle contract for one wire protocol.
//
// Call order: GlobalInitialize once, single threaded, before any worker
// starts; then per worker ThreadInitialize and PreparePacket once, followed
// by MakePacket for every probe. The receive path calls ValidatePacket for
// every captured frame and ProcessPacket only for frames that validated.
// Close runs at shutdown; it must be idempotent and safe with zero sends.
type Module interface {
	// Descriptor returns the module's static registration record.
	Descriptor() *Descriptor

	// GlobalInitialize consumes the scan-wide configuration. An error here
	// is fatal to the scan and is never retried.
	GlobalInitialize(conf *ScanConfig) error

	// ThreadInitialize prepares one worker's exclusive state, including its
	// pseudorandom generator. No two workers share generator state.
	ThreadInitialize(ws *WorkerState) error

	// PreparePacket writes the invariant packet skeleton into buf. It runs
	// once per worker; the buffer is reused for every subsequent probe.
	PreparePacket(buf []byte, srcMAC, gwMAC net.HardwareAddr, ws *WorkerState) error

	// MakePacket overwrites only the per-probe fields of the prepared
	// template and returns the final packet length. It runs on the hot send
	// path: bounded time, no allocation.
	MakePacket(buf []byte, src, dst netip.Addr, dstPort uint16, ttl uint8,
		vec cookie.Vector, probeNum int, ipID uint16, ws *WorkerState) (int, error)

	// ValidatePacket decides whether a captured frame authenticates as a
	// response to one of our probes. ip is a bounds-verified view over the
	// captured bytes starting at the network header; every field beyond that
	// is untrusted. vec is derived from the outer addresses in reply
	// orientation; for network-layer error signals the module re-derives it
	// from the quoted original header. On Valid, the returned address is the
	// probe destination the response corresponds to (for error signals, the
	// original target rather than the reporting hop).
	ValidatePacket(ip packet.IPv4Frame, vec cookie.Vector, ports *PortConfig) (netip.Addr, Verdict)

	// ProcessPacket turns a validated frame into one output record,
	// assigning every schema field exactly once. frame holds raw link-layer
	// bytes; the caller guarantees it already passed ValidatePacket.
	ProcessPacket(frame []byte, fs *fieldset.FieldSet, vec cookie.Vector, ts time.Time)

	// Close releases module-wide resources. Idempotent; safe even if no
	// packets were sent.
	Close(conf *ScanConfig) error
}

// PacketFormatter is implemented by modules that can render one of their
// own probe frames for human inspection, for dry runs and debugging.
type PacketFormatter interface {
	FormatPacket(frame []byte) (string, error)
}

// ScanConfig is the read-only scan-wide configuration. It is constructed
// once before any worker starts; that happens-before edge is the only
// synchronization its readers need.
type ScanConfig struct {
	// SourcePortFirst and SourcePortLast bound the source port range
	// (inclusive) the cookie scheme selects from.
	SourcePortFirst uint16
	SourcePortLast  uint16

	// ValidateSourcePort controls the receive-side source-port cookie
	// check. Disabling it is an explicit override for middleboxes that
	// rewrite ports.
	ValidateSourcePort bool

	// ProbesPerTarget is how many probes each destination receives.
	ProbesPerTarget int

	// Cookie computes validation vectors under the process secret.
	Cookie *cookie.Validator

	// Entropy hands each worker one seed word at startup.
	Entropy *cookie.KeyedSequence
}

// NumSourcePorts returns the size of the configured source port range.
func (c *ScanConfig) NumSourcePorts() int {
	return int(c.SourcePortLast) - int(c.SourcePortFirst) + 1
}

// Validate reports fatal configuration errors. It runs before
// GlobalInitialize; failures terminate the scan.
func (c *ScanConfig) Validate() error {
	if c.SourcePortFirst == 0 {
		return fmt.Errorf("source port range cannot start at 0")
	}
	if c.SourcePortLast < c.SourcePortFirst {
		return fmt.Errorf("invalid source port range [%d, %d]", c.SourcePortFirst, c.SourcePortLast)
	}
	if c.ProbesPerTarget < 1 {
		return fmt.Errorf("probes per target must be at least 1, got %d", c.ProbesPerTarget)
	}
	if c.ProbesPerTarget > c.NumSourcePorts() {
		return fmt.Errorf("probes per target (%d) exceeds the %d configured source ports",
			c.ProbesPerTarget, c.NumSourcePorts())
	}
	if c.Cookie == nil || c.Entropy == nil {
		return fmt.Errorf("scan config is missing key material")
	}
	return nil
}

// PortConfig is the set of target ports this scan probes, consulted by
// validation to reject responses from ports we never touched.
type PortConfig struct {
	Ports []uint16
}

// Contains reports whether port is one of the scanned target ports.
func (p *PortConfig) Contains(port uint16) bool {
	for _, q := range p.Ports {
		if q == port {
			return true
		}
	}
	return false
}
