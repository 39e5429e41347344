// File: expiring/map.go
// Package expiring provides a bounded-lifetime key/value map.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every inserted value expires after the configured period; a periodic
// sweep removes expired entries. The sweeper is an explicit, cancellable
// task owned by the map's lifecycle: Start launches it, Stop joins it
// deterministically. Consumed by protocol-level retry bookkeeping; the
// reactor has no dependency on it.

package expiring

import (
	"sync"
	"time"
)

type expiringValue[V any] struct {
	value    V
	deadline time.Time
}

// Map is a thread-safe map whose entries live for a fixed period.
type Map[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]expiringValue[V]

	ttl        time.Duration
	sweepEvery time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

const (
	// DefaultTTL is the default time to live for an entry.
	DefaultTTL = 30 * time.Second
	// DefaultSweepPeriod is the default period between two sweeps.
	DefaultSweepPeriod = 10 * time.Second
)

// NewMap creates a map whose entries expire ttl after insertion, swept
// every sweepEvery. Non-positive arguments fall back to the defaults.
func NewMap[K comparable, V any](ttl, sweepEvery time.Duration) *Map[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepPeriod
	}
	return &Map[K, V]{
		entries:    make(map[K]expiringValue[V]),
		ttl:        ttl,
		sweepEvery: sweepEvery,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the sweeper. Idempotent.
func (m *Map[K, V]) Start() {
	m.startOnce.Do(func() {
		go m.sweeper()
	})
}

// Stop cancels the sweeper and waits for it to exit. Idempotent; safe
// to call without a prior Start.
func (m *Map[K, V]) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.startOnce.Do(func() { close(m.done) }) // sweeper never launched
	<-m.done
}

func (m *Map[K, V]) sweeper() {
	defer close(m.done)
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

// sweep removes all entries whose deadline passed.
func (m *Map[K, V]) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if e.deadline.Before(now) {
			delete(m.entries, k)
		}
	}
}

// Put inserts value under key with a fresh lifetime, replacing any
// previous entry.
func (m *Map[K, V]) Put(key K, value V) {
	m.mu.Lock()
	m.entries[key] = expiringValue[V]{value: value, deadline: time.Now().Add(m.ttl)}
	m.mu.Unlock()
}

// Get returns the live value for key. Entries past their deadline are
// never returned, even before the sweep removes them.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || e.deadline.Before(time.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Remove deletes and returns the value stored under key.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(m.entries, key)
	return e.value, true
}

// Len counts entries still present, expired or not.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[K]expiringValue[V])
	m.mu.Unlock()
}

// Keys returns the keys of all live entries.
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	keys := make([]K, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.deadline.Before(now) {
			keys = append(keys, k)
		}
	}
	return keys
}
