// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

//go:build linux

package packets

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// sinkLinux transmits full Ethernet frames through an AF_PACKET socket.
type sinkLinux struct {
	fd      int
	ifIndex int
}

var _ Sink = &sinkLinux{}

// NewSink returns a Sink transmitting on the interface with the given index.
func NewSink(ifIndex int) (Sink, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create transmit socket: %w", err)
	}
	return &sinkLinux{fd: fd, ifIndex: ifIndex}, nil
}

// WriteFrame transmits one frame. buf starts at the Ethernet header; the
// link destination comes from the frame itself.
func (s *sinkLinux) WriteFrame(buf []byte) error {
	if len(buf) < 14 {
		return fmt.Errorf("frame too short to transmit: %d bytes", len(buf))
	}
	sll := &unix.SockaddrLinklayer{
		Ifindex: s.ifIndex,
		Halen:   6,
	}
	copy(sll.Addr[:6], buf[0:6])

	for {
		err := unix.Sendto(s.fd, buf, 0, sll)
		if err == nil {
			return nil
		}
		// the ring can momentarily fill at sustained rates
		if err == unix.EAGAIN || err == unix.EINTR {
			continue
		}
		return fmt.Errorf("transmit failed: %w", err)
	}
}

// Close closes the transmit socket.
func (s *sinkLinux) Close() error {
	return unix.Close(s.fd)
}
