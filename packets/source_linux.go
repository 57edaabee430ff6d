// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

//go:build linux

package packets

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// sourceLinux captures frames through an AF_PACKET socket bound to one
// interface.
type sourceLinux struct {
	fd       int
	deadline time.Time
}

var _ Source = &sourceLinux{}

// NewSource returns a Source capturing IPv4 frames on the interface with
// the given index.
func NewSource(ifIndex int) (Source, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_IP)))
	if err != nil {
		return nil, fmt.Errorf("failed to create capture socket: %w", err)
	}
	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_IP),
		Ifindex:  ifIndex,
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind capture socket to ifindex %d: %w", ifIndex, err)
	}
	return &sourceLinux{fd: fd}, nil
}

// SetPacketFilter attaches the classic BPF program for spec to the socket.
func (s *sourceLinux) SetPacketFilter(spec FilterSpec) error {
	if spec.Type == FilterTypeNone {
		return nil
	}
	raw, err := assembleFilter(spec)
	if err != nil {
		return err
	}
	filters := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filters[i] = unix.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(filters)),
		Filter: &filters[0],
	}
	if err := unix.SetsockoptSockFprog(s.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog); err != nil {
		return fmt.Errorf("failed to attach packet filter: %w", err)
	}
	return nil
}

// SetReadDeadline bounds the next Read.
func (s *sourceLinux) SetReadDeadline(t time.Time) error {
	s.deadline = t
	return nil
}

// Read waits for the next frame, up to the configured deadline, then fills
// buf and timestamps the capture. The kernel truncates to len(buf), so the
// caller sizes buf from the module's declared snaplen.
func (s *sourceLinux) Read(buf []byte) (int, time.Time, error) {
	timeout := readTimeout(s.deadline)
	pfd := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	nReady, err := unix.Poll(pfd, int(timeout.Milliseconds()))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("capture poll failed: %w", err)
	}
	if nReady == 0 {
		return 0, time.Time{}, unix.EAGAIN
	}
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("capture read failed: %w", err)
	}
	return n, time.Now(), nil
}

// Close closes the capture socket.
func (s *sourceLinux) Close() error {
	return unix.Close(s.fd)
}

func readTimeout(deadline time.Time) time.Duration {
	const (
		defaultTimeout = 1000 * time.Millisecond
		minTimeout     = 100 * time.Millisecond
	)
	// never block forever: shutdown depends on the loop waking up
	if deadline.IsZero() {
		return defaultTimeout
	}
	timeout := time.Until(deadline)
	if timeout < minTimeout {
		return minTimeout
	}
	return timeout
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
