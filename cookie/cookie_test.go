// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package cookie

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = [SecretLen]byte{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
}

func TestVectorDeterminism(t *testing.T) {
	v1, err := NewValidator(testSecret)
	require.NoError(t, err)
	v2, err := NewValidator(testSecret)
	require.NoError(t, err)

	src := netip.MustParseAddr("10.0.0.1")
	dst := netip.MustParseAddr("192.0.2.7")

	a := v1.Vector(src, dst, 47808)
	b := v2.Vector(src, dst, 47808)
	assert.Equal(t, a, b, "vector must be a pure function of inputs and secret")

	// any input change must change the vector
	assert.NotEqual(t, a, v1.Vector(src, dst, 47809))
	assert.NotEqual(t, a, v1.Vector(src, netip.MustParseAddr("192.0.2.8"), 47808))
	assert.NotEqual(t, a, v1.Vector(netip.MustParseAddr("10.0.0.2"), dst, 47808))
}

func TestVectorSecretDependence(t *testing.T) {
	v1, err := NewValidator(testSecret)
	require.NoError(t, err)

	other := testSecret
	other[0] ^= 0x80
	v2, err := NewValidator(other)
	require.NoError(t, err)

	src := netip.MustParseAddr("10.0.0.1")
	dst := netip.MustParseAddr("192.0.2.7")
	assert.NotEqual(t, v1.Vector(src, dst, 80), v2.Vector(src, dst, 80))
}

func TestSourcePortPureAndCoversRange(t *testing.T) {
	v, err := NewValidator(testSecret)
	require.NoError(t, err)
	vec := v.Vector(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("192.0.2.7"), 47808)

	const first = uint16(32768)
	const numPorts = 64

	seen := make(map[uint16]bool)
	for probe := 0; probe < numPorts; probe++ {
		p := SourcePort(first, numPorts, probe, vec)
		assert.Equal(t, p, SourcePort(first, numPorts, probe, vec), "selection must be deterministic")
		assert.GreaterOrEqual(t, p, first)
		assert.Less(t, int(p), int(first)+numPorts)
		seen[p] = true
	}
	assert.Len(t, seen, numPorts, "sweeping the attempt number must cover every configured port")
}

func TestCheckSourcePortRoundTrip(t *testing.T) {
	v, err := NewValidator(testSecret)
	require.NoError(t, err)
	vec := v.Vector(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("192.0.2.7"), 47808)

	const first = uint16(40000)
	const numPorts = 100

	for _, probeCount := range []int{1, 3, numPorts} {
		for probe := 0; probe < probeCount; probe++ {
			p := SourcePort(first, numPorts, probe, vec)
			assert.True(t, CheckSourcePort(p, first, numPorts, probeCount, vec),
				"port selected for attempt %d of %d must validate", probe, probeCount)

			n, ok := ProbeNumber(p, first, numPorts, vec)
			require.True(t, ok)
			assert.Equal(t, probe, n)
		}
	}

	// ports outside the configured range never validate
	assert.False(t, CheckSourcePort(first-1, first, numPorts, numPorts, vec))
	assert.False(t, CheckSourcePort(first+uint16(numPorts), first, numPorts, numPorts, vec))

	// with a single attempt only one port in the range validates
	matched := 0
	for off := 0; off < numPorts; off++ {
		if CheckSourcePort(first+uint16(off), first, numPorts, 1, vec) {
			matched++
		}
	}
	assert.Equal(t, 1, matched)
}

func TestKeyedSequence(t *testing.T) {
	s1, err := NewKeyedSequence(testSecret)
	require.NoError(t, err)
	s2, err := NewKeyedSequence(testSecret)
	require.NoError(t, err)

	var a, b []uint32
	for i := 0; i < 8; i++ {
		a = append(a, s1.NextWord())
		b = append(b, s2.NextWord())
	}
	assert.Equal(t, a, b, "same secret must replay the same sequence")

	distinct := make(map[uint32]bool)
	for _, w := range a {
		distinct[w] = true
	}
	assert.Greater(t, len(distinct), 1, "sequence must not be constant")
}

func TestNewSecret(t *testing.T) {
	a, err := NewSecret()
	require.NoError(t, err)
	b, err := NewSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
