// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package main is the sweep scanner CLI.
package main

import (
	"github.com/sweepnet/sweep/cmd"
)

func main() {
	cmd.Execute()
}
