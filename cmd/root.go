// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package cmd

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweepnet/sweep/cookie"
	"github.com/sweepnet/sweep/localaddr"
	"github.com/sweepnet/sweep/log"
	"github.com/sweepnet/sweep/packet"
	"github.com/sweepnet/sweep/packets"
	"github.com/sweepnet/sweep/probe"
	"github.com/sweepnet/sweep/publicip"
	"github.com/sweepnet/sweep/result"
	"github.com/sweepnet/sweep/scanner"

	// registers the module
	_ "github.com/sweepnet/sweep/bacnet"
)

var Args scanArgs

var rootCmd = &cobra.Command{
	Use:   "sweep [targets...]",
	Short: "Stateless single-packet network scanner",
	Long:  `sweep sends one crafted probe per target and authenticates responses statelessly, without per-target state. Targets are IPv4 addresses or CIDR prefixes.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(Args.logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)

		module, err := probe.Lookup(Args.module)
		if err != nil {
			return err
		}

		targets, err := parseTargets(args, Args.targetPort)
		if err != nil {
			return err
		}

		conf, err := buildScanConfig()
		if err != nil {
			return err
		}

		if Args.dryRun {
			return dryRun(module, conf, targets)
		}

		path, err := localaddr.Discover(targets[0].Addr)
		if err != nil {
			return fmt.Errorf("failed to resolve transmit path: %w", err)
		}
		if Args.iface != "" && Args.iface != path.IfName {
			return fmt.Errorf("route to %s uses interface %s, not %s",
				targets[0].Addr, path.IfName, Args.iface)
		}
		log.Debugf("transmit path: iface=%s src=%s gw=%s", path.IfName, path.SrcIP, path.GatewayIP)

		if Args.publicIP {
			if ip, err := publicip.NewFetcher().Get(); err != nil {
				log.Warnf("public IP lookup failed: %s", err)
			} else {
				log.Infof("public source IP: %s", ip)
			}
		}

		source, err := packets.NewSource(path.IfIndex)
		if err != nil {
			return classified(fmt.Errorf("failed to open capture socket: %w", err))
		}
		defer source.Close()
		sink, err := packets.NewSink(path.IfIndex)
		if err != nil {
			return classified(fmt.Errorf("failed to open transmit socket: %w", err))
		}
		defer sink.Close()

		eng, err := scanner.New(module, conf, scanner.Params{
			Workers:     Args.workers,
			TTL:         uint8(Args.ttl),
			Cooldown:    Args.cooldown,
			DedupWindow: Args.dedupWindow,
		}, path, source, sink)
		if err != nil {
			return classified(err)
		}

		enc := json.NewEncoder(os.Stdout)
		run, err := eng.Run(cmd.Context(), targets, func(r result.Record) {
			if encErr := enc.Encode(r); encErr != nil {
				log.Errorf("failed to encode record: %s", encErr)
			}
		})
		if err != nil {
			return classified(err)
		}
		return enc.Encode(run)
	},
}

// dryRun builds every probe the scan would send and prints the module's
// rendering instead of transmitting. Link-layer fields are placeholders
// since no route is resolved.
func dryRun(module probe.Module, conf *probe.ScanConfig, targets []scanner.Target) error {
	formatter, ok := module.(probe.PacketFormatter)
	if !ok {
		return fmt.Errorf("module %q cannot render packets", module.Descriptor().Name)
	}
	if err := module.GlobalInitialize(conf); err != nil {
		return err
	}
	ws := &probe.WorkerState{}
	if err := module.ThreadInitialize(ws); err != nil {
		return err
	}

	var placeholderMAC net.HardwareAddr = []byte{0, 0, 0, 0, 0, 0}
	src := netip.IPv4Unspecified()
	var buf [packet.MaxPacketSize]byte
	if err := module.PreparePacket(buf[:], placeholderMAC, placeholderMAC, ws); err != nil {
		return err
	}

	for _, t := range targets {
		for probeNum := 0; probeNum < conf.ProbesPerTarget; probeNum++ {
			vec := conf.Cookie.Vector(src, t.Addr, t.Port)
			ipID := uint16(ws.Rand.Uint32())
			n, err := module.MakePacket(buf[:], src, t.Addr, t.Port,
				uint8(Args.ttl), vec, probeNum, ipID, ws)
			if err != nil {
				return err
			}
			rendered, err := formatter.FormatPacket(buf[:n])
			if err != nil {
				return err
			}
			fmt.Println(rendered)
		}
	}
	return module.Close(conf)
}

func classified(err error) error {
	scanErr := scanner.ClassifyError(err)
	log.Errorf("scan failed (%s): %s", scanErr.Code, scanErr.Message)
	return scanErr
}

func buildScanConfig() (*probe.ScanConfig, error) {
	first, last, err := parsePortRange(Args.sourcePorts)
	if err != nil {
		return nil, err
	}

	var secret [cookie.SecretLen]byte
	if Args.seed != 0 {
		binary.BigEndian.PutUint64(secret[0:8], Args.seed)
		binary.BigEndian.PutUint64(secret[8:16], ^Args.seed)
	} else {
		secret, err = cookie.NewSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate scan secret: %w", err)
		}
	}
	validator, err := cookie.NewValidator(secret)
	if err != nil {
		return nil, err
	}
	entropy, err := cookie.NewKeyedSequence(secret)
	if err != nil {
		return nil, err
	}

	return &probe.ScanConfig{
		SourcePortFirst:    first,
		SourcePortLast:     last,
		ValidateSourcePort: !Args.skipPortCheck,
		ProbesPerTarget:    Args.probes,
		Cookie:             validator,
		Entropy:            entropy,
	}, nil
}

func parsePortRange(s string) (uint16, uint16, error) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	first, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid source port range %q: %w", s, err)
	}
	last, err := strconv.ParseUint(strings.TrimSpace(hi), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid source port range %q: %w", s, err)
	}
	if first == 0 || last < first {
		return 0, 0, fmt.Errorf("invalid source port range %q", s)
	}
	return uint16(first), uint16(last), nil
}

// parseTargets expands address and CIDR arguments into the probe list.
func parseTargets(args []string, targetPort int) ([]scanner.Target, error) {
	if targetPort < 1 || targetPort > 65535 {
		return nil, fmt.Errorf("invalid destination port %d", targetPort)
	}
	port := uint16(targetPort)
	var targets []scanner.Target
	for _, arg := range args {
		if strings.Contains(arg, "/") {
			prefix, err := netip.ParsePrefix(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid target %q: %w", arg, err)
			}
			if !prefix.Addr().Is4() {
				return nil, fmt.Errorf("invalid target %q: only IPv4 is supported", arg)
			}
			for addr := prefix.Masked().Addr(); prefix.Contains(addr); addr = addr.Next() {
				targets = append(targets, scanner.Target{Addr: addr, Port: port})
			}
			continue
		}
		addr, err := netip.ParseAddr(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", arg, err)
		}
		if !addr.Is4() {
			return nil, fmt.Errorf("invalid target %q: only IPv4 is supported", arg)
		}
		targets = append(targets, scanner.Target{Addr: addr, Port: port})
	}
	return targets, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&Args.module, "module", "M", "bacnet", "Probe module to run")
	rootCmd.Flags().IntVarP(&Args.targetPort, "port", "p", 47808, "Destination port")
	rootCmd.Flags().StringVarP(&Args.sourcePorts, "source-ports", "s", "32768-61000", "Source port range (first-last)")
	rootCmd.Flags().StringVarP(&Args.iface, "interface", "i", "", "Require this outbound interface")
	rootCmd.Flags().IntVarP(&Args.probes, "probes", "P", 1, "Probes per target")
	rootCmd.Flags().IntVarP(&Args.workers, "workers", "w", 1, "Concurrent send workers")
	rootCmd.Flags().IntVarP(&Args.ttl, "ttl", "t", 255, "IP time to live")
	rootCmd.Flags().DurationVarP(&Args.cooldown, "cooldown", "c", 8*time.Second, "How long to keep receiving after the last probe")
	rootCmd.Flags().DurationVarP(&Args.dedupWindow, "dedup-window", "", 5*time.Minute, "Suppress repeat responders within this window (0 disables)")
	rootCmd.Flags().Uint64VarP(&Args.seed, "seed", "", 0, "Deterministic scan seed (0 uses a random secret)")
	rootCmd.Flags().StringVarP(&Args.logLevel, "log-level", "l", "info", "Log level (error, warn, info, debug, trace)")
	rootCmd.Flags().BoolVarP(&Args.skipPortCheck, "skip-port-check", "", false, "Accept responses whose source port fails the cookie check")
	rootCmd.Flags().BoolVarP(&Args.publicIP, "public-ip", "", false, "Resolve and log the public source IP before scanning")
	rootCmd.Flags().BoolVarP(&Args.dryRun, "dry-run", "d", false, "Print rendered probes instead of sending them")
}
