// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package probe

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Module{}
)

// Register adds a module to the registry under its descriptor name.
// It is called from module init functions; registering two modules with the
// same name is a programming error and panics.
func Register(m Module) {
	name := m.Descriptor().Name
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("probe: module %q registered twice", name))
	}
	registry[name] = m
}

// Lookup returns the module registered under name.
func Lookup(name string) (Module, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown probe module %q (have: %v)", name, names())
	}
	return m, nil
}

// Names returns the registered module names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return names()
}

func names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
