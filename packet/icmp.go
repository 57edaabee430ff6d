// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package packet

import "errors"

// ICMPv4 message types that quote the original datagram.
const (
	ICMPv4TypeDestinationUnreachable = 3
	ICMPv4TypeRedirect               = 5
	ICMPv4TypeTimeExceeded           = 11
	ICMPv4TypeParameterProblem       = 12
)

// ICMPv4 destination-unreachable codes.
const (
	ICMPv4CodeNetUnreachable   = 0
	ICMPv4CodeHostUnreachable  = 1
	ICMPv4CodeProtoUnreachable = 2
	ICMPv4CodePortUnreachable  = 3
)

// ErrNoQuotedPacket means the ICMP body does not carry a usable copy of the
// original datagram.
var ErrNoQuotedPacket = errors.New("icmp error quotes no usable packet")

// ICMPv4Frame is a view over an ICMPv4 message starting at the ICMP header.
type ICMPv4Frame struct {
	buf []byte
}

// NewICMPv4Frame returns a view over buf, which must hold at least the fixed
// ICMP header.
func NewICMPv4Frame(buf []byte) (ICMPv4Frame, error) {
	if len(buf) < ICMPv4HeaderLen {
		return ICMPv4Frame{}, ErrTruncated
	}
	return ICMPv4Frame{buf: buf}, nil
}

// Type returns the ICMP type field.
func (f ICMPv4Frame) Type() uint8 {
	return f.buf[0]
}

// Code returns the ICMP code field.
func (f ICMPv4Frame) Code() uint8 {
	return f.buf[1]
}

// IsError reports whether the message is one of the error classes that quote
// the datagram which triggered them.
func (f ICMPv4Frame) IsError() bool {
	switch f.Type() {
	case ICMPv4TypeDestinationUnreachable, ICMPv4TypeRedirect,
		ICMPv4TypeTimeExceeded, ICMPv4TypeParameterProblem:
		return true
	default:
		return false
	}
}

// Quoted extracts the original datagram quoted in an ICMP error body. The
// quote must contain a full inner IPv4 header plus at least the first eight
// transport bytes, the minimum RFC 792 requires and the amount response
// matching needs. Returns ErrNoQuotedPacket otherwise.
func (f ICMPv4Frame) Quoted() (IPv4Frame, error) {
	if !f.IsError() {
		return IPv4Frame{}, ErrNoQuotedPacket
	}
	quote := f.buf[ICMPv4HeaderLen:]
	inner, err := NewIPv4Frame(quote)
	if err != nil {
		return IPv4Frame{}, ErrNoQuotedPacket
	}
	if len(inner.Payload()) < 8 {
		return IPv4Frame{}, ErrNoQuotedPacket
	}
	return inner, nil
}

// UnreachableString maps a destination-unreachable code to a stable
// descriptive name shared by all probe modules.
func UnreachableString(code uint8) string {
	switch code {
	case ICMPv4CodeNetUnreachable:
		return "network-unreachable"
	case ICMPv4CodeHostUnreachable:
		return "host-unreachable"
	case ICMPv4CodeProtoUnreachable:
		return "protocol-unreachable"
	case ICMPv4CodePortUnreachable:
		return "port-unreachable"
	case 4:
		return "fragments-required"
	case 5:
		return "source-route-failed"
	case 6:
		return "dest-network-unknown"
	case 7:
		return "dest-host-unknown"
	case 8:
		return "source-host-isolated"
	case 9:
		return "network-admin-prohibited"
	case 10:
		return "host-admin-prohibited"
	case 11:
		return "network-unreachable-tos"
	case 12:
		return "host-unreachable-tos"
	case 13:
		return "communication-admin-prohibited"
	default:
		return "unknown"
	}
}
