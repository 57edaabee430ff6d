// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package packet provides bounds-checked, zero-copy views over raw packet
// bytes plus the header writers used to build probe templates. Every view
// validates the minimum header size at construction; accessors never read
// past the buffer they were created with.
package packet

import (
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
)

const (
	// EthernetHeaderLen is the length of an Ethernet II header.
	EthernetHeaderLen = 14
	// IPv4HeaderLen is the length of an IPv4 header without options.
	IPv4HeaderLen = 20
	// UDPHeaderLen is the length of a UDP header.
	UDPHeaderLen = 8
	// ICMPv4HeaderLen is the length of the fixed part of an ICMPv4 message.
	ICMPv4HeaderLen = 8

	// MaxPacketSize caps the size of any probe template buffer.
	MaxPacketSize = 4096

	// DefaultTTL is the initial time-to-live written into probe templates.
	DefaultTTL = 255

	// ProtoICMPv4 is the IP protocol number for ICMPv4.
	ProtoICMPv4 = 1
	// ProtoUDP is the IP protocol number for UDP.
	ProtoUDP = 17

	etherTypeIPv4 = 0x0800
)

var (
	// ErrTruncated means the buffer is too short for the requested header.
	ErrTruncated = errors.New("packet truncated")
	// ErrNotIPv4 means the buffer does not hold an IPv4 header.
	ErrNotIPv4 = errors.New("not an IPv4 packet")
)

// EthernetFrame is a view over an Ethernet II frame.
type EthernetFrame struct {
	buf []byte
}

// NewEthernetFrame returns a view over buf, which must hold at least a full
// Ethernet header.
func NewEthernetFrame(buf []byte) (EthernetFrame, error) {
	if len(buf) < EthernetHeaderLen {
		return EthernetFrame{}, ErrTruncated
	}
	return EthernetFrame{buf: buf}, nil
}

// DstMAC returns the destination hardware address.
func (f EthernetFrame) DstMAC() net.HardwareAddr {
	return net.HardwareAddr(f.buf[0:6])
}

// SrcMAC returns the source hardware address.
func (f EthernetFrame) SrcMAC() net.HardwareAddr {
	return net.HardwareAddr(f.buf[6:12])
}

// EtherType returns the frame's EtherType field.
func (f EthernetFrame) EtherType() uint16 {
	return binary.BigEndian.Uint16(f.buf[12:14])
}

// IsIPv4 reports whether the frame carries an IPv4 packet.
func (f EthernetFrame) IsIPv4() bool {
	return f.EtherType() == etherTypeIPv4
}

// Payload returns the bytes following the Ethernet header.
func (f EthernetFrame) Payload() []byte {
	return f.buf[EthernetHeaderLen:]
}

// PutEthernetHeader writes an Ethernet II header carrying IPv4 into buf.
// The destination is the gateway: probes are always addressed to the first
// hop at the link layer.
func PutEthernetHeader(buf []byte, srcMAC, gwMAC net.HardwareAddr) error {
	if len(buf) < EthernetHeaderLen {
		return ErrTruncated
	}
	if len(srcMAC) != 6 || len(gwMAC) != 6 {
		return errors.New("hardware addresses must be 6 bytes")
	}
	copy(buf[0:6], gwMAC)
	copy(buf[6:12], srcMAC)
	binary.BigEndian.PutUint16(buf[12:14], etherTypeIPv4)
	return nil
}

// IPv4Frame is a view over an IPv4 packet starting at the IP header.
type IPv4Frame struct {
	buf []byte
}

// NewIPv4Frame returns a view over buf, which must start with a structurally
// plausible IPv4 header: version 4 and a header length covered by the buffer.
func NewIPv4Frame(buf []byte) (IPv4Frame, error) {
	if len(buf) < IPv4HeaderLen {
		return IPv4Frame{}, ErrTruncated
	}
	if buf[0]>>4 != 4 {
		return IPv4Frame{}, ErrNotIPv4
	}
	hl := int(buf[0]&0x0f) * 4
	if hl < IPv4HeaderLen || hl > len(buf) {
		return IPv4Frame{}, ErrTruncated
	}
	return IPv4Frame{buf: buf}, nil
}

// HeaderLen returns the header length in bytes, already verified to be
// covered by the underlying buffer.
func (f IPv4Frame) HeaderLen() int {
	return int(f.buf[0]&0x0f) * 4
}

// TotalLen returns the total-length field. It is untrusted: callers must not
// use it to index beyond the captured bytes.
func (f IPv4Frame) TotalLen() uint16 {
	return binary.BigEndian.Uint16(f.buf[2:4])
}

// ID returns the identification field.
func (f IPv4Frame) ID() uint16 {
	return binary.BigEndian.Uint16(f.buf[4:6])
}

// SetID sets the identification field.
func (f IPv4Frame) SetID(id uint16) {
	binary.BigEndian.PutUint16(f.buf[4:6], id)
}

// TTL returns the time-to-live field.
func (f IPv4Frame) TTL() uint8 {
	return f.buf[8]
}

// SetTTL sets the time-to-live field.
func (f IPv4Frame) SetTTL(ttl uint8) {
	f.buf[8] = ttl
}

// Protocol returns the transport protocol number.
func (f IPv4Frame) Protocol() uint8 {
	return f.buf[9]
}

// Checksum returns the header checksum field.
func (f IPv4Frame) Checksum() uint16 {
	return binary.BigEndian.Uint16(f.buf[10:12])
}

// Src returns the source address.
func (f IPv4Frame) Src() netip.Addr {
	return netip.AddrFrom4([4]byte(f.buf[12:16]))
}

// SetSrc sets the source address. addr must be IPv4.
func (f IPv4Frame) SetSrc(addr netip.Addr) {
	a := addr.As4()
	copy(f.buf[12:16], a[:])
}

// Dst returns the destination address.
func (f IPv4Frame) Dst() netip.Addr {
	return netip.AddrFrom4([4]byte(f.buf[16:20]))
}

// SetDst sets the destination address. addr must be IPv4.
func (f IPv4Frame) SetDst(addr netip.Addr) {
	a := addr.As4()
	copy(f.buf[16:20], a[:])
}

// Payload returns the bytes following the IP header, capped at the captured
// length. The total-length field is deliberately ignored here.
func (f IPv4Frame) Payload() []byte {
	return f.buf[f.HeaderLen():]
}

// FinalizeChecksum recomputes and stores the header checksum. It must be
// called after any mutation of header bytes.
func (f IPv4Frame) FinalizeChecksum() {
	f.buf[10] = 0
	f.buf[11] = 0
	binary.BigEndian.PutUint16(f.buf[10:12], Checksum(f.buf[:f.HeaderLen()]))
}

// PutIPv4Header writes an option-less IPv4 header skeleton into buf with the
// given protocol and total length. Addresses, id, ttl, and checksum are left
// for per-probe mutation.
func PutIPv4Header(buf []byte, proto uint8, totalLen uint16) error {
	if len(buf) < IPv4HeaderLen {
		return ErrTruncated
	}
	buf[0] = 0x45 // version 4, 5-word header
	buf[1] = 0    // DSCP/ECN
	binary.BigEndian.PutUint16(buf[2:4], totalLen)
	binary.BigEndian.PutUint16(buf[4:6], 0) // id
	binary.BigEndian.PutUint16(buf[6:8], 0) // flags, fragment offset
	buf[8] = DefaultTTL
	buf[9] = proto
	binary.BigEndian.PutUint16(buf[10:12], 0) // checksum
	for i := 12; i < 20; i++ {
		buf[i] = 0
	}
	return nil
}

// UDPFrame is a view over a UDP datagram starting at the UDP header.
type UDPFrame struct {
	buf []byte
}

// NewUDPFrame returns a view over buf, which must hold at least a full
// UDP header.
func NewUDPFrame(buf []byte) (UDPFrame, error) {
	if len(buf) < UDPHeaderLen {
		return UDPFrame{}, ErrTruncated
	}
	return UDPFrame{buf: buf}, nil
}

// SrcPort returns the source port.
func (f UDPFrame) SrcPort() uint16 {
	return binary.BigEndian.Uint16(f.buf[0:2])
}

// SetSrcPort sets the source port.
func (f UDPFrame) SetSrcPort(p uint16) {
	binary.BigEndian.PutUint16(f.buf[0:2], p)
}

// DstPort returns the destination port.
func (f UDPFrame) DstPort() uint16 {
	return binary.BigEndian.Uint16(f.buf[2:4])
}

// SetDstPort sets the destination port.
func (f UDPFrame) SetDstPort(p uint16) {
	binary.BigEndian.PutUint16(f.buf[2:4], p)
}

// Length returns the UDP length field. Untrusted; bounds come from the
// captured length, not from here.
func (f UDPFrame) Length() uint16 {
	return binary.BigEndian.Uint16(f.buf[4:6])
}

// Payload returns the bytes following the UDP header, capped at the
// captured length.
func (f UDPFrame) Payload() []byte {
	return f.buf[UDPHeaderLen:]
}

// PutUDPHeader writes a UDP header with the given payload length into buf.
// Ports are left zero for per-probe mutation. The checksum stays zero, which
// is legal for UDP over IPv4.
func PutUDPHeader(buf []byte, payloadLen uint16) error {
	if len(buf) < UDPHeaderLen {
		return ErrTruncated
	}
	binary.BigEndian.PutUint16(buf[0:2], 0) // source port
	binary.BigEndian.PutUint16(buf[2:4], 0) // destination port
	binary.BigEndian.PutUint16(buf[4:6], UDPHeaderLen+payloadLen)
	binary.BigEndian.PutUint16(buf[6:8], 0) // checksum
	return nil
}
