// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package bacnet implements the BACnet/IP probe module: one ReadProperty
// request per target, carried over UDP to port 47808. It is the reference
// module exercising every lifecycle hook.
package bacnet

import (
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/sweepnet/sweep/cookie"
	"github.com/sweepnet/sweep/fieldset"
	"github.com/sweepnet/sweep/log"
	"github.com/sweepnet/sweep/packet"
	"github.com/sweepnet/sweep/probe"
	"github.com/sweepnet/sweep/udp"
)

// BVLC (BACnet Virtual Link Control) constants for BACnet/IP.
const (
	bvlcTypeBACnetIP    = 0x81
	bvlcFunctionUnicast = 0x0a
	bvlcHeaderLen       = 4

	npduVersionASHRAE1995  = 0x01
	npduControlExpectReply = 0x04

	apduConfirmedRequest = 0x00
	apduMaxSegments      = 0x05
	apduReadProperty     = 0x0c
)

// payloadLen is the full BVLC+NPDU+APDU probe payload length.
const payloadLen = 0x11

// PacketLength is the exact on-wire length of every BACnet probe.
const PacketLength = packet.EthernetHeaderLen + packet.IPv4HeaderLen + packet.UDPHeaderLen + payloadLen

// readPropertyBody asks the device object (wildcard instance 4194303) for
// its object-identifier property.
var readPropertyBody = []byte{0x0c, 0x02, 0x3f, 0xff, 0xff, 0x19, 0x4b}

// invokeID is the validation byte embedded in the APDU; responders echo the
// invoke ID in their acknowledgement.
func invokeID(vec cookie.Vector) uint8 {
	return uint8(vec[1] >> 24)
}

// Module is the BACnet probe module. One instance serves the whole process;
// all mutable state is fixed at GlobalInitialize, before workers start.
type Module struct {
	desc probe.Descriptor
	conf *probe.ScanConfig
}

// New returns the BACnet module with its static descriptor.
func New() *Module {
	return &Module{
		desc: probe.Descriptor{
			Name:            "bacnet",
			Filter:          "udp || icmp",
			MaxPacketLength: PacketLength,
			Snaplen:         1500,
			PortArgs:        1,
			Fields:          buildSchema(),
		},
	}
}

func buildSchema() fieldset.Schema {
	schema := fieldset.Schema{
		{Name: "sport", Kind: fieldset.KindUint, Desc: "UDP source port"},
		{Name: "dport", Kind: fieldset.KindUint, Desc: "UDP destination port"},
	}
	schema = append(schema, udp.ClassificationFieldDefs...)
	schema = append(schema, fieldset.FieldDef{
		Name: "udp_payload", Kind: fieldset.KindBinary, Desc: "UDP payload",
	})
	schema = append(schema, udp.ICMPFieldDefs...)
	return schema
}

func init() {
	probe.Register(New())
}

// Descriptor returns the module's registration record.
func (m *Module) Descriptor() *probe.Descriptor {
	return &m.desc
}

// GlobalInitialize captures the scan-wide configuration. Runs once, single
// threaded, before any worker starts.
func (m *Module) GlobalInitialize(conf *probe.ScanConfig) error {
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("bacnet: %w", err)
	}
	if !conf.ValidateSourcePort {
		log.Debugf("bacnet: source port validation disabled")
	}
	m.conf = conf
	return nil
}

// ThreadInitialize seeds the worker's exclusive generator from the
// process-wide keyed sequence.
func (m *Module) ThreadInitialize(ws *probe.WorkerState) error {
	ws.Rand = rand.New(rand.NewSource(int64(m.conf.Entropy.NextWord())))
	return nil
}

// PreparePacket writes the invariant probe skeleton. The buffer is reused
// for every probe this worker sends.
func (m *Module) PreparePacket(buf []byte, srcMAC, gwMAC net.HardwareAddr, ws *probe.WorkerState) error {
	if len(buf) < PacketLength {
		return packet.ErrTruncated
	}
	for i := range buf {
		buf[i] = 0
	}
	if err := packet.PutEthernetHeader(buf, srcMAC, gwMAC); err != nil {
		return err
	}
	if err := packet.PutIPv4Header(buf[packet.EthernetHeaderLen:], packet.ProtoUDP,
		packet.IPv4HeaderLen+packet.UDPHeaderLen+payloadLen); err != nil {
		return err
	}
	if err := packet.PutUDPHeader(buf[packet.EthernetHeaderLen+packet.IPv4HeaderLen:], payloadLen); err != nil {
		return err
	}

	p := buf[packet.EthernetHeaderLen+packet.IPv4HeaderLen+packet.UDPHeaderLen:]
	p[0] = bvlcTypeBACnetIP
	p[1] = bvlcFunctionUnicast
	p[2] = 0x00
	p[3] = payloadLen
	p[4] = npduVersionASHRAE1995
	p[5] = npduControlExpectReply
	p[6] = apduConfirmedRequest
	p[7] = apduMaxSegments
	// p[8] is the invoke ID, set per probe
	p[9] = apduReadProperty
	copy(p[10:], readPropertyBody)
	return nil
}

// MakePacket rewrites only the per-probe fields and recomputes the IP
// checksum. Allocation free.
func (m *Module) MakePacket(buf []byte, src, dst netip.Addr, dstPort uint16, ttl uint8,
	vec cookie.Vector, probeNum int, ipID uint16, ws *probe.WorkerState) (int, error) {
	ip, err := packet.NewIPv4Frame(buf[packet.EthernetHeaderLen:PacketLength])
	if err != nil {
		return 0, err
	}
	ip.SetSrc(src)
	ip.SetDst(dst)
	ip.SetTTL(ttl)
	ip.SetID(ipID)

	udpf, err := packet.NewUDPFrame(ip.Payload())
	if err != nil {
		return 0, err
	}
	udpf.SetSrcPort(cookie.SourcePort(m.conf.SourcePortFirst, m.conf.NumSourcePorts(), probeNum, vec))
	udpf.SetDstPort(dstPort)

	udpf.Payload()[8] = invokeID(vec)

	ip.FinalizeChecksum()
	return PacketLength, nil
}

// ValidatePacket layers the BACnet dialect check on top of the shared UDP
// cookie checks. ICMP error signals are fully handled by the shared layer.
func (m *Module) ValidatePacket(ip packet.IPv4Frame, vec cookie.Vector,
	ports *probe.PortConfig) (netip.Addr, probe.Verdict) {
	src, verdict := udp.ValidatePacket(ip, vec, m.conf, ports)
	if verdict == probe.Invalid {
		return netip.Addr{}, probe.Invalid
	}
	if ip.Protocol() == packet.ProtoUDP {
		// already bounds checked by the shared layer
		udpf, err := packet.NewUDPFrame(ip.Payload())
		if err != nil {
			return netip.Addr{}, probe.Invalid
		}
		payload := udpf.Payload()
		if len(payload) < bvlcHeaderLen {
			return netip.Addr{}, probe.Invalid
		}
		if payload[0] != bvlcTypeBACnetIP {
			return netip.Addr{}, probe.Invalid
		}
	}
	return src, probe.Valid
}

// ProcessPacket extracts one output record. The frame already passed
// ValidatePacket; offsets are still bounds checked because they come from
// untrusted header fields.
func (m *Module) ProcessPacket(frame []byte, fs *fieldset.FieldSet, vec cookie.Vector, ts time.Time) {
	eth, err := packet.NewEthernetFrame(frame)
	if err != nil {
		return
	}
	ip, err := packet.NewIPv4Frame(eth.Payload())
	if err != nil {
		return
	}

	switch ip.Protocol() {
	case packet.ProtoUDP:
		udpf, err := packet.NewUDPFrame(ip.Payload())
		if err != nil {
			return
		}
		fs.AddUint("sport", uint64(udpf.SrcPort()))
		fs.AddUint("dport", uint64(udpf.DstPort()))
		fs.AddString("classification", "bacnet")
		fs.AddBool("success", true)
		fs.AddBinary("udp_payload", udpf.Payload())
		udp.AddICMPNulls(fs)

	case packet.ProtoICMPv4:
		fs.AddNull("sport")
		fs.AddNull("dport")
		fs.AddString("classification", "icmp")
		fs.AddBool("success", false)
		fs.AddNull("udp_payload")
		udp.AddICMPFields(fs, ip)
	}
}

// FormatPacket renders a probe frame one header per line, for dry runs.
func (m *Module) FormatPacket(frame []byte) (string, error) {
	eth, err := packet.NewEthernetFrame(frame)
	if err != nil {
		return "", err
	}
	ip, err := packet.NewIPv4Frame(eth.Payload())
	if err != nil {
		return "", err
	}
	udpf, err := packet.NewUDPFrame(ip.Payload())
	if err != nil {
		return "", err
	}
	payload := udpf.Payload()
	if len(payload) < payloadLen {
		return "", packet.ErrTruncated
	}

	var b strings.Builder
	fmt.Fprintf(&b, "eth { src: %s | dst: %s }\n", eth.SrcMAC(), eth.DstMAC())
	fmt.Fprintf(&b, "ip { src: %s | dst: %s | ttl: %d | id: %d | checksum: %#04x }\n",
		ip.Src(), ip.Dst(), ip.TTL(), ip.ID(), ip.Checksum())
	fmt.Fprintf(&b, "udp { sport: %d | dport: %d | len: %d }\n",
		udpf.SrcPort(), udpf.DstPort(), udpf.Length())
	fmt.Fprintf(&b, "bacnet { fn: %#02x | invoke: %d }", payload[1], payload[8])
	return b.String(), nil
}

// Close releases module-wide resources. The BACnet module holds none, but
// the hook stays idempotent and safe with zero prior sends.
func (m *Module) Close(conf *probe.ScanConfig) error {
	return nil
}
