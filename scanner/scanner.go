// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package scanner drives a probe module through its lifecycle: global
// initialization once, per-worker template build and send loops, and one
// receive loop that validates, deduplicates, and extracts records.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweepnet/sweep/cache"
	"github.com/sweepnet/sweep/cookie"
	"github.com/sweepnet/sweep/fieldset"
	"github.com/sweepnet/sweep/localaddr"
	"github.com/sweepnet/sweep/log"
	"github.com/sweepnet/sweep/packet"
	"github.com/sweepnet/sweep/packets"
	"github.com/sweepnet/sweep/probe"
	"github.com/sweepnet/sweep/result"
)

// Target is one destination to probe.
type Target struct {
	Addr netip.Addr
	Port uint16
}

// Params tunes the engine; zero values get sensible defaults from New.
type Params struct {
	// Workers is the number of concurrent send workers.
	Workers int
	// TTL is stamped into every probe.
	TTL uint8
	// Cooldown is how long the receive loop keeps running after the last
	// probe went out, to catch stragglers.
	Cooldown time.Duration
	// DedupWindow suppresses repeat records from the same responder within
	// the window. Zero disables deduplication.
	DedupWindow time.Duration
}

const (
	defaultWorkers  = 1
	defaultCooldown = 8 * time.Second
	readDeadline    = time.Second
)

// Engine runs one scan. Construct with New; an Engine is good for a single
// Run call.
type Engine struct {
	module probe.Module
	conf   *probe.ScanConfig
	params Params
	path   localaddr.Path
	source packets.Source
	sink   packets.Sink
	stats  result.Stats
}

// New validates the configuration and assembles an engine around the given
// capture and transmit endpoints.
func New(module probe.Module, conf *probe.ScanConfig, params Params,
	path localaddr.Path, source packets.Source, sink packets.Sink) (*Engine, error) {
	if err := conf.Validate(); err != nil {
		return nil, &InvalidConfigError{Err: err}
	}
	if params.Workers < 1 {
		params.Workers = defaultWorkers
	}
	if params.TTL == 0 {
		params.TTL = packet.DefaultTTL
	}
	if params.Cooldown == 0 {
		params.Cooldown = defaultCooldown
	}
	return &Engine{
		module: module,
		conf:   conf,
		params: params,
		path:   path,
		source: source,
		sink:   sink,
	}, nil
}

// Run executes the scan against targets, invoking emit for every validated
// record. emit is called from a single goroutine. Run returns once sending,
// the cooldown window, and module shutdown have all finished.
func (e *Engine) Run(ctx context.Context, targets []Target, emit func(result.Record)) (*result.Run, error) {
	desc := e.module.Descriptor()

	if err := e.module.GlobalInitialize(e.conf); err != nil {
		return nil, fmt.Errorf("module %s initialization failed: %w", desc.Name, err)
	}

	spec, err := packets.FilterFromExpression(desc.Filter)
	if err != nil {
		return nil, err
	}
	if err := e.source.SetPacketFilter(spec); err != nil {
		return nil, fmt.Errorf("failed to install capture filter: %w", err)
	}

	ports := targetPorts(targets)
	var dedup *cache.Cache
	if e.params.DedupWindow > 0 {
		dedup = cache.New(e.params.DedupWindow)
	}

	run := result.NewRun(desc.Name)
	log.Infof("scan %s: module=%s targets=%d workers=%d", run.ID, desc.Name, len(targets), e.params.Workers)

	recvCtx, stopRecv := context.WithCancel(context.Background())
	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		e.receiveLoop(recvCtx, ports, dedup, emit)
	}()

	g, sendCtx := errgroup.WithContext(ctx)
	for _, shard := range shardTargets(targets, e.params.Workers) {
		g.Go(func() error {
			return e.sendLoop(sendCtx, shard)
		})
	}
	sendErr := g.Wait()

	if sendErr == nil {
		// stragglers keep arriving after the last probe
		select {
		case <-time.After(e.params.Cooldown):
		case <-ctx.Done():
		}
	}
	stopRecv()
	<-recvDone

	run.Finish(&e.stats)
	closeErr := e.module.Close(e.conf)
	if err := errors.Join(sendErr, closeErr); err != nil {
		return run, err
	}

	snap := run.Stats
	log.Infof("scan %s: sent=%d received=%d valid=%d invalid=%d duplicates=%d",
		run.ID, snap.Sent, snap.Received, snap.Valid, snap.Invalid, snap.Duplicates)
	return run, nil
}

// sendLoop is one worker: exclusive state, one reusable template, then a
// probe per target and probe number.
func (e *Engine) sendLoop(ctx context.Context, targets []Target) error {
	ws := &probe.WorkerState{}
	if err := e.module.ThreadInitialize(ws); err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}

	var buf [packet.MaxPacketSize]byte
	if err := e.module.PreparePacket(buf[:], e.path.SrcMAC, e.path.GatewayMAC, ws); err != nil {
		return fmt.Errorf("failed to prepare packet template: %w", err)
	}

	for _, t := range targets {
		for probeNum := 0; probeNum < e.conf.ProbesPerTarget; probeNum++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			vec := e.conf.Cookie.Vector(e.path.SrcIP, t.Addr, t.Port)
			ipID := uint16(ws.Rand.Uint32())
			n, err := e.module.MakePacket(buf[:], e.path.SrcIP, t.Addr, t.Port,
				e.params.TTL, vec, probeNum, ipID, ws)
			if err != nil {
				return fmt.Errorf("failed to build probe for %s: %w", t.Addr, err)
			}
			if err := e.sink.WriteFrame(buf[:n]); err != nil {
				// transient transmit failures cost one probe, not the scan
				log.Warnf("send to %s failed: %s", t.Addr, err)
				continue
			}
			e.stats.AddSent(1)
		}
	}
	return nil
}

// receiveLoop pulls captured frames until its context ends. Every frame is
// untrusted until the module validates it.
func (e *Engine) receiveLoop(ctx context.Context, ports *probe.PortConfig,
	dedup *cache.Cache, emit func(result.Record)) {
	desc := e.module.Descriptor()
	snaplen := desc.Snaplen
	if snaplen <= 0 {
		snaplen = packet.MaxPacketSize
	}
	buf := make([]byte, snaplen)
	fp := packets.NewFrameParser()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := e.source.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			log.Warnf("failed to set read deadline: %s", err)
		}
		n, ts, err := e.source.Read(buf)
		if err != nil {
			if !errors.Is(err, syscall.EAGAIN) {
				log.Tracef("capture read error: %s", err)
			}
			continue
		}
		e.stats.AddReceived()

		frame := buf[:n]
		if err := fp.Parse(frame); err != nil || !fp.HasIPv4() {
			e.stats.AddInvalid()
			log.Tracef("undecodable frame (%d bytes)", n)
			continue
		}
		ip, err := packet.NewIPv4Frame(fp.Eth.Payload)
		if err != nil {
			e.stats.AddInvalid()
			continue
		}

		vec := e.replyVector(ip)
		responder, verdict := e.module.ValidatePacket(ip, vec, ports)
		if verdict != probe.Valid {
			e.stats.AddInvalid()
			log.Tracef("rejected frame from %s", ip.Src())
			continue
		}
		e.stats.AddValid()

		if dedup != nil && dedup.Seen(responder.String()) {
			e.stats.AddDuplicate()
			continue
		}

		fs := fieldset.New(desc.Fields)
		e.module.ProcessPacket(frame, fs, vec, ts)
		if !fs.Complete() {
			// the module bailed out on a malformed frame mid-record
			e.stats.AddInvalid()
			continue
		}
		emit(result.Record{Responder: responder, ReceivedAt: ts, Fields: fs})
	}
}

// replyVector computes the validation vector in reply orientation. Error
// signals carry a zero vector; modules re-derive it from the quoted header.
func (e *Engine) replyVector(ip packet.IPv4Frame) cookie.Vector {
	if ip.Protocol() == packet.ProtoUDP {
		if udpf, err := packet.NewUDPFrame(ip.Payload()); err == nil {
			return e.conf.Cookie.Vector(ip.Dst(), ip.Src(), udpf.SrcPort())
		}
	}
	return cookie.Vector{}
}

func targetPorts(targets []Target) *probe.PortConfig {
	seen := make(map[uint16]struct{})
	pc := &probe.PortConfig{}
	for _, t := range targets {
		if _, ok := seen[t.Port]; ok {
			continue
		}
		seen[t.Port] = struct{}{}
		pc.Ports = append(pc.Ports, t.Port)
	}
	return pc
}

func shardTargets(targets []Target, workers int) [][]Target {
	if workers > len(targets) && len(targets) > 0 {
		workers = len(targets)
	}
	shards := make([][]Target, 0, workers)
	for i := 0; i < workers; i++ {
		lo := i * len(targets) / workers
		hi := (i + 1) * len(targets) / workers
		shards = append(shards, targets[lo:hi])
	}
	return shards
}
