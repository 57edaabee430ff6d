// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package packets

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// bpfMaxPacketLen is the capture length returned by accepting filter
// branches; large enough for any snaplen a module declares.
const bpfMaxPacketLen = 262144

// filterProgram builds the classic BPF program for spec. The capture socket
// yields Ethernet-framed packets; only IPv4 matters to the engine, so
// everything else is dropped in the kernel before it costs a syscall.
func filterProgram(spec FilterSpec) ([]bpf.Instruction, error) {
	switch spec.Type {
	case FilterTypeICMP:
		return []bpf.Instruction{
			// EtherType must be IPv4
			bpf.LoadAbsolute{Size: 2, Off: 12},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipTrue: 0, SkipFalse: 3},
			// IP protocol (14 + 9) must be ICMPv4
			bpf.LoadAbsolute{Size: 1, Off: 23},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 1, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: bpfMaxPacketLen},
			bpf.RetConstant{Val: 0},
		}, nil
	case FilterTypeUDP:
		return []bpf.Instruction{
			bpf.LoadAbsolute{Size: 2, Off: 12},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipTrue: 0, SkipFalse: 4},
			// accept ICMPv4 (error signals) and UDP (direct replies)
			bpf.LoadAbsolute{Size: 1, Off: 23},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 1, SkipTrue: 1, SkipFalse: 0},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: bpfMaxPacketLen},
			bpf.RetConstant{Val: 0},
		}, nil
	default:
		return nil, fmt.Errorf("no BPF program for filter type %d", spec.Type)
	}
}

// assembleFilter returns the raw instructions ready to attach to a socket.
func assembleFilter(spec FilterSpec) ([]bpf.RawInstruction, error) {
	prog, err := filterProgram(spec)
	if err != nil {
		return nil, err
	}
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble packet filter: %w", err)
	}
	return raw, nil
}
