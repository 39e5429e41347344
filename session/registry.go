// File: session/registry.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe session registry keyed by session identity.
// This is the front-door lookup used by Write and Close submissions;
// the reactor keeps its own handle-keyed view of open sessions.

package session

import (
	"hash/fnv"
	"sync"
)

// Registry stores sessions in power-of-two shards for low contention.
type Registry struct {
	shards []*registryShard
	mask   uint32
}

type registryShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry constructs a sharded registry with shardCount shards.
func NewRegistry(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = 16
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*registryShard, m)
	for i := range shards {
		shards[i] = &registryShard{sessions: make(map[string]*Session)}
	}
	return &Registry{shards: shards, mask: m - 1}
}

func (r *Registry) shard(id string) *registryShard {
	return r.shards[fnv32(id)&r.mask]
}

// Put stores a session under its identity.
func (r *Registry) Put(s *Session) {
	sh := r.shard(s.ID())
	sh.mu.Lock()
	sh.sessions[s.ID()] = s
	sh.mu.Unlock()
}

// Get fetches a session if present.
func (r *Registry) Get(id string) (*Session, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	return s, ok
}

// Delete removes a session from the registry. The lifecycle transition
// itself belongs to the reactor, not the registry.
func (r *Registry) Delete(id string) {
	sh := r.shard(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
}

// Range applies fn to all registered sessions.
func (r *Registry) Range(fn func(*Session)) {
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			fn(s)
		}
		sh.mu.RUnlock()
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// fnv32 hashes a session identity to a shard index.
func fnv32(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
