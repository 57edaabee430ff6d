// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweepnet/sweep/cookie"
)

func validConfig(t *testing.T) *ScanConfig {
	t.Helper()
	secret, err := cookie.NewSecret()
	require.NoError(t, err)
	validator, err := cookie.NewValidator(secret)
	require.NoError(t, err)
	entropy, err := cookie.NewKeyedSequence(secret)
	require.NoError(t, err)

	return &ScanConfig{
		SourcePortFirst:    32768,
		SourcePortLast:     61000,
		ValidateSourcePort: true,
		ProbesPerTarget:    1,
		Cookie:             validator,
		Entropy:            entropy,
	}
}

func TestScanConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validConfig(t).Validate())
	})

	t.Run("zero first port", func(t *testing.T) {
		c := validConfig(t)
		c.SourcePortFirst = 0
		require.Error(t, c.Validate())
	})

	t.Run("inverted range", func(t *testing.T) {
		c := validConfig(t)
		c.SourcePortFirst = 50000
		c.SourcePortLast = 40000
		require.Error(t, c.Validate())
	})

	t.Run("zero probes", func(t *testing.T) {
		c := validConfig(t)
		c.ProbesPerTarget = 0
		require.Error(t, c.Validate())
	})

	t.Run("more probes than source ports", func(t *testing.T) {
		c := validConfig(t)
		c.SourcePortFirst = 40000
		c.SourcePortLast = 40003
		c.ProbesPerTarget = 5
		require.Error(t, c.Validate())
	})

	t.Run("missing key material", func(t *testing.T) {
		c := validConfig(t)
		c.Cookie = nil
		require.Error(t, c.Validate())
	})
}

func TestNumSourcePorts(t *testing.T) {
	c := &ScanConfig{SourcePortFirst: 40000, SourcePortLast: 40000}
	assert.Equal(t, 1, c.NumSourcePorts())

	c.SourcePortLast = 40099
	assert.Equal(t, 100, c.NumSourcePorts())
}

func TestPortConfigContains(t *testing.T) {
	p := &PortConfig{Ports: []uint16{47808, 161}}
	assert.True(t, p.Contains(47808))
	assert.True(t, p.Contains(161))
	assert.False(t, p.Contains(53))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "invalid", Invalid.String())
}
