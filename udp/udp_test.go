// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package udp

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweepnet/sweep/cookie"
	"github.com/sweepnet/sweep/fieldset"
	"github.com/sweepnet/sweep/packet"
	"github.com/sweepnet/sweep/probe"
)

var (
	scannerIP  = netip.MustParseAddr("10.0.0.1")
	targetIP   = netip.MustParseAddr("192.0.2.7")
	targetPort = uint16(47808)
)

func testConfig(t *testing.T) *probe.ScanConfig {
	t.Helper()
	secret := [cookie.SecretLen]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	validator, err := cookie.NewValidator(secret)
	require.NoError(t, err)
	entropy, err := cookie.NewKeyedSequence(secret)
	require.NoError(t, err)
	conf := &probe.ScanConfig{
		SourcePortFirst:    40000,
		SourcePortLast:     40099,
		ValidateSourcePort: true,
		ProbesPerTarget:    1,
		Cookie:             validator,
		Entropy:            entropy,
	}
	require.NoError(t, conf.Validate())
	return conf
}

func sendVector(conf *probe.ScanConfig) cookie.Vector {
	return conf.Cookie.Vector(scannerIP, targetIP, targetPort)
}

func cookiePort(conf *probe.ScanConfig) uint16 {
	return cookie.SourcePort(conf.SourcePortFirst, conf.NumSourcePorts(), 0, sendVector(conf))
}

// buildReply serializes a direct UDP reply from the target back to the
// cookie-selected source port.
func buildReply(t *testing.T, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	ipLayer := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(targetIP.AsSlice()),
		DstIP:    net.IP(scannerIP.AsSlice()),
	}
	udpLayer := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	require.NoError(t, udpLayer.SetNetworkLayerForChecksum(ipLayer))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ipLayer, udpLayer, gopacket.Payload(payload)))
	return buf.Bytes()
}

// buildUnreachable serializes an ICMP error from hop that quotes our
// original probe (scanner -> target).
func buildUnreachable(t *testing.T, hop netip.Addr, quotedSrcPort, quotedDstPort uint16) []byte {
	t.Helper()
	innerIP := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      1,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(scannerIP.AsSlice()),
		DstIP:    net.IP(targetIP.AsSlice()),
	}
	innerUDP := &layers.UDP{
		SrcPort: layers.UDPPort(quotedSrcPort),
		DstPort: layers.UDPPort(quotedDstPort),
	}
	require.NoError(t, innerUDP.SetNetworkLayerForChecksum(innerIP))
	inner := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(inner, opts, innerIP, innerUDP))

	outerIP := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      63,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IP(hop.AsSlice()),
		DstIP:    net.IP(scannerIP.AsSlice()),
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodePort),
	}
	outer := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(outer, opts, outerIP, icmp, gopacket.Payload(inner.Bytes())))
	return outer.Bytes()
}

func mustIPv4(t *testing.T, raw []byte) packet.IPv4Frame {
	t.Helper()
	ip, err := packet.NewIPv4Frame(raw)
	require.NoError(t, err)
	return ip
}

func TestValidateDirectReply(t *testing.T) {
	conf := testConfig(t)
	ports := &probe.PortConfig{Ports: []uint16{targetPort}}
	vec := sendVector(conf)

	t.Run("cookie round trip", func(t *testing.T) {
		raw := buildReply(t, targetPort, cookiePort(conf), []byte{0x41})
		src, verdict := ValidatePacket(mustIPv4(t, raw), vec, conf, ports)
		require.Equal(t, probe.Valid, verdict)
		assert.Equal(t, targetIP, src)
	})

	t.Run("wrong destination port", func(t *testing.T) {
		raw := buildReply(t, targetPort, conf.SourcePortLast+1, []byte{0x41})
		_, verdict := ValidatePacket(mustIPv4(t, raw), vec, conf, ports)
		assert.Equal(t, probe.Invalid, verdict)
	})

	t.Run("in-range port not selected by cookie", func(t *testing.T) {
		// with one probe per target exactly one port in the range validates
		bad := cookiePort(conf) + 1
		if bad > conf.SourcePortLast {
			bad = conf.SourcePortFirst
		}
		raw := buildReply(t, targetPort, bad, []byte{0x41})
		_, verdict := ValidatePacket(mustIPv4(t, raw), vec, conf, ports)
		assert.Equal(t, probe.Invalid, verdict)
	})

	t.Run("source port validation overridden off", func(t *testing.T) {
		loose := *conf
		loose.ValidateSourcePort = false
		raw := buildReply(t, targetPort, conf.SourcePortLast+1, []byte{0x41})
		_, verdict := ValidatePacket(mustIPv4(t, raw), vec, &loose, ports)
		assert.Equal(t, probe.Valid, verdict)
	})

	t.Run("responder port never probed", func(t *testing.T) {
		raw := buildReply(t, 9999, cookiePort(conf), []byte{0x41})
		_, verdict := ValidatePacket(mustIPv4(t, raw), vec, conf, ports)
		assert.Equal(t, probe.Invalid, verdict)
	})

	t.Run("truncated udp header", func(t *testing.T) {
		raw := buildReply(t, targetPort, cookiePort(conf), []byte{0x41})
		short := raw[:packet.IPv4HeaderLen+4]
		_, verdict := ValidatePacket(mustIPv4(t, short), vec, conf, ports)
		assert.Equal(t, probe.Invalid, verdict)
	})
}

func TestValidateQuotedProbe(t *testing.T) {
	conf := testConfig(t)
	ports := &probe.PortConfig{Ports: []uint16{targetPort}}
	hop := netip.MustParseAddr("203.0.113.1")

	// the outer vector is meaningless for ICMP; the validator must re-derive
	// it from the quoted header, so pass a garbage vector deliberately
	var garbage cookie.Vector

	t.Run("quoted probe validates", func(t *testing.T) {
		raw := buildUnreachable(t, hop, cookiePort(conf), targetPort)
		src, verdict := ValidatePacket(mustIPv4(t, raw), garbage, conf, ports)
		require.Equal(t, probe.Valid, verdict)
		assert.Equal(t, targetIP, src, "ICMP source is the hop, output address must be the original target")
	})

	t.Run("quoted source port forged", func(t *testing.T) {
		raw := buildUnreachable(t, hop, cookiePort(conf)+1, targetPort)
		_, verdict := ValidatePacket(mustIPv4(t, raw), garbage, conf, ports)
		assert.Equal(t, probe.Invalid, verdict)
	})

	t.Run("quoted destination port never probed", func(t *testing.T) {
		raw := buildUnreachable(t, hop, cookiePort(conf), 9999)
		_, verdict := ValidatePacket(mustIPv4(t, raw), garbage, conf, ports)
		assert.Equal(t, probe.Invalid, verdict)
	})

	t.Run("quote truncated", func(t *testing.T) {
		raw := buildUnreachable(t, hop, cookiePort(conf), targetPort)
		short := raw[:len(raw)-20]
		_, verdict := ValidatePacket(mustIPv4(t, short), garbage, conf, ports)
		assert.Equal(t, probe.Invalid, verdict)
	})
}

func TestValidateOtherProtocols(t *testing.T) {
	conf := testConfig(t)
	ports := &probe.PortConfig{Ports: []uint16{targetPort}}

	ipLayer := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP(targetIP.AsSlice()),
		DstIP:    net.IP(scannerIP.AsSlice()),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ipLayer, gopacket.Payload(make([]byte, 20))))

	_, verdict := ValidatePacket(mustIPv4(t, buf.Bytes()), sendVector(conf), conf, ports)
	assert.Equal(t, probe.Invalid, verdict)
}

func TestICMPFieldHelpers(t *testing.T) {
	schema := ICMPFieldDefs
	hop := netip.MustParseAddr("203.0.113.1")
	conf := testConfig(t)

	t.Run("populated from error frame", func(t *testing.T) {
		raw := buildUnreachable(t, hop, cookiePort(conf), targetPort)
		fs := fieldset.New(schema)
		AddICMPFields(fs, mustIPv4(t, raw))
		require.True(t, fs.Complete())

		v, _ := fs.Get("icmp_responder")
		assert.Equal(t, "203.0.113.1", v.Str)
		v, _ = fs.Get("icmp_type")
		assert.Equal(t, uint64(packet.ICMPv4TypeDestinationUnreachable), v.Uint)
		v, _ = fs.Get("icmp_code")
		assert.Equal(t, uint64(packet.ICMPv4CodePortUnreachable), v.Uint)
		v, _ = fs.Get("icmp_unreach_str")
		assert.Equal(t, "port-unreachable", v.Str)
	})

	t.Run("nulls", func(t *testing.T) {
		fs := fieldset.New(schema)
		AddICMPNulls(fs)
		require.True(t, fs.Complete())
		v, _ := fs.Get("icmp_responder")
		assert.True(t, v.Null)
	})
}
