// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package cache wraps an expiring in-memory store. The receive path uses it
// to deduplicate responders; ancillary lookups use it to memoize expensive
// results.
package cache

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultExpire = 5 * time.Minute
	defaultPurge  = 30 * time.Second
)

// Cache is an expiring key:value store safe for concurrent use.
type Cache struct {
	store *cache.Cache
}

// New returns a Cache whose entries expire after the given duration.
// A non-positive expire keeps entries forever.
func New(expire time.Duration) *Cache {
	if expire <= 0 {
		expire = cache.NoExpiration
	}
	return &Cache{store: cache.New(expire, defaultPurge)}
}

// Seen records key and reports whether it was already present. The first
// caller for a key gets false; every later caller within the expiry window
// gets true.
func (c *Cache) Seen(key string) bool {
	// Add fails when the key exists, which is exactly the dedup signal
	return c.store.Add(key, struct{}{}, cache.DefaultExpiration) != nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// shared store backing the package-level memoization helpers
var defaultStore = cache.New(defaultExpire, defaultPurge)

// Get returns the value for 'key'.
//
// cache hit:
//
//	pull the value from the cache and returns it.
//
// cache miss:
//
//	call 'cb' function to get a new value. If the callback doesn't return an error the returned value is
//	cached with no expiration date and returned.
func Get[T any](key string, cb func() (T, error)) (T, error) {
	return GetWithExpiration[T](key, cb, cache.NoExpiration)
}

// GetWithExpiration returns the value for 'key'.
//
// cache hit:
//
//	pull the value from the cache and returns it.
//
// cache miss:
//
//	call 'cb' function to get a new value. If the callback doesn't return an error the returned value is
//	cached with the given expire duration and returned.
func GetWithExpiration[T any](key string, cb func() (T, error), expire time.Duration) (T, error) {
	if x, found := defaultStore.Get(key); found {
		return x.(T), nil
	}

	res, err := cb()
	// We don't cache errors
	if err == nil {
		defaultStore.Set(key, res, expire)
	}
	return res, err
}
