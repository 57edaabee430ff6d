// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package packets

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// FrameParser decodes captured Ethernet frames without allocating per
// packet. One parser belongs to one receive loop; it is not safe for
// concurrent use.
type FrameParser struct {
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType

	Eth   layers.Ethernet
	IP4   layers.IPv4
	UDP   layers.UDP
	ICMP4 layers.ICMPv4
}

// NewFrameParser returns a parser for Ethernet/IPv4/{UDP,ICMPv4} frames.
func NewFrameParser() *FrameParser {
	fp := &FrameParser{}
	fp.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet,
		&fp.Eth, &fp.IP4, &fp.UDP, &fp.ICMP4, &gopacket.Payload{})
	// trailing protocols we don't model are fine; the decoded prefix is
	// what the engine inspects
	fp.parser.IgnoreUnsupported = true
	return fp
}

// Parse decodes buf in place. Layer fields are only meaningful for layers
// reported by Decoded.
func (fp *FrameParser) Parse(buf []byte) error {
	fp.decoded = fp.decoded[:0]
	if err := fp.parser.DecodeLayers(buf, &fp.decoded); err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	return nil
}

// Decoded returns the layer types decoded by the last Parse.
func (fp *FrameParser) Decoded() []gopacket.LayerType {
	return fp.decoded
}

// HasIPv4 reports whether the last frame carried IPv4.
func (fp *FrameParser) HasIPv4() bool {
	for _, lt := range fp.decoded {
		if lt == layers.LayerTypeIPv4 {
			return true
		}
	}
	return false
}
