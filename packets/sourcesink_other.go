// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

//go:build !linux

package packets

// NewSource returns ErrUnsupported: capture requires Linux AF_PACKET.
func NewSource(ifIndex int) (Source, error) {
	return nil, ErrUnsupported
}

// NewSink returns ErrUnsupported: transmit requires Linux AF_PACKET.
func NewSink(ifIndex int) (Sink, error) {
	return nil, ErrUnsupported
}
