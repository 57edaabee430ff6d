// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package cookie derives the validation vectors that authenticate scan
// responses without a connection table. A vector is a pure function of
// (source address, destination address, one extra word) under a process-wide
// AES key, so the sender and the receive path compute it independently and
// agree without storing per-target state.
//
// The key is security critical: a remote party that can predict it can forge
// responses that pass validation. Always derive it with NewSecret (crypto/rand)
// unless replaying a scan deterministically for tests.
package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/netip"
	"sync"
)

// Vector is the ordered pseudorandom words derived for one probe. It is
// recomputed wherever needed, never stored per destination.
type Vector [4]uint32

// SecretLen is the length of the process secret in bytes.
const SecretLen = 16

// NewSecret draws a fresh process secret from the operating system CSPRNG.
func NewSecret() ([SecretLen]byte, error) {
	var secret [SecretLen]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, fmt.Errorf("failed to draw scan secret: %w", err)
	}
	return secret, nil
}

// Validator computes validation vectors under one process secret. Safe for
// concurrent use: the underlying cipher is read-only after construction.
type Validator struct {
	block cipher.Block
}

// NewValidator returns a Validator keyed with the given secret.
func NewValidator(secret [SecretLen]byte) (*Validator, error) {
	block, err := aes.NewCipher(secret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to key validator: %w", err)
	}
	return &Validator{block: block}, nil
}

// Vector derives the validation vector for one (src, dst, extra) triple.
// src and dst are the probe's source and destination addresses in send
// orientation; the receive path passes the reply's addresses swapped back.
// extra carries the destination port (or an attempt number for portless
// protocols). Pure and deterministic for a fixed secret.
func (v *Validator) Vector(src, dst netip.Addr, extra uint16) Vector {
	var in, out [aes.BlockSize]byte
	s := src.As4()
	d := dst.As4()
	copy(in[0:4], s[:])
	copy(in[4:8], d[:])
	binary.BigEndian.PutUint16(in[8:10], extra)
	v.block.Encrypt(out[:], in[:])

	var vec Vector
	for i := range vec {
		vec[i] = binary.BigEndian.Uint32(out[i*4 : i*4+4])
	}
	return vec
}

// SourcePort maps a probe attempt onto exactly one port of the configured
// source range. Identical inputs always yield the same port, and sweeping
// probeNum over numPorts attempts covers the whole range.
func SourcePort(first uint16, numPorts int, probeNum int, vec Vector) uint16 {
	return first + uint16((uint32(probeNum)+vec[1])%uint32(numPorts))
}

// CheckSourcePort reports whether port could have been selected by
// SourcePort for some attempt number below probeCount. This is the
// receive-side half of the port cookie.
func CheckSourcePort(port uint16, first uint16, numPorts int, probeCount int, vec Vector) bool {
	if port < first {
		return false
	}
	off := int(port - first)
	if off >= numPorts {
		return false
	}
	base := int(vec[1] % uint32(numPorts))
	idx := off - base
	if idx < 0 {
		idx += numPorts
	}
	return idx < probeCount
}

// ProbeNumber recovers the attempt number that selected port, for callers
// that need the originating attempt context. ok is false when the port is
// outside the configured range.
func ProbeNumber(port uint16, first uint16, numPorts int, vec Vector) (int, bool) {
	if port < first {
		return 0, false
	}
	off := int(port - first)
	if off >= numPorts {
		return 0, false
	}
	base := int(vec[1] % uint32(numPorts))
	idx := off - base
	if idx < 0 {
		idx += numPorts
	}
	return idx, true
}

// KeyedSequence is the process-wide keyed generator that hands each worker
// one seed word. It runs the process secret in counter mode, so words are
// unpredictable to remote parties but reproducible for a fixed secret.
type KeyedSequence struct {
	mu      sync.Mutex
	block   cipher.Block
	counter uint64
}

// NewKeyedSequence returns a keyed generator over the given secret.
func NewKeyedSequence(secret [SecretLen]byte) (*KeyedSequence, error) {
	block, err := aes.NewCipher(secret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to key sequence: %w", err)
	}
	return &KeyedSequence{block: block}, nil
}

// NextWord returns the next 32-bit word of the sequence. Safe for concurrent
// use; it is called once per worker at startup, never on the hot path.
func (k *KeyedSequence) NextWord() uint32 {
	k.mu.Lock()
	ctr := k.counter
	k.counter++
	k.mu.Unlock()

	var in, out [aes.BlockSize]byte
	binary.BigEndian.PutUint64(in[0:8], ctr)
	k.block.Encrypt(out[:], in[:])
	return binary.BigEndian.Uint32(out[0:4])
}
