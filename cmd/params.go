package cmd

import "time"

type scanArgs struct {
	module        string
	targetPort    int
	sourcePorts   string
	iface         string
	probes        int
	workers       int
	ttl           int
	cooldown      time.Duration
	dedupWindow   time.Duration
	seed          uint64
	logLevel      string
	skipPortCheck bool
	publicIP      bool
	dryRun        bool
}
