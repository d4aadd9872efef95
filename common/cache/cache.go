/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package cache implements a sharded in-memory LRU cache with per-entry expiry.
package cache

import (
	"container/list"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// NoExpiry marks an entry that never expires.
const NoExpiry = time.Duration(-1)

const (
	shardCount         = 8
	maxLifetime        = 10 * 365 * 24 * time.Hour
	offsetBasis uint32 = 2166136261
	prime32     uint32 = 16777619
)

var (
	errNotInit = errors.New("cache not initialized")
	errParam   = errors.New("parameter error")
)

type entry struct {
	key      string
	value    interface{}
	deadline int64
}

type shard struct {
	capacity int
	index    map[string]*list.Element
	lru      *list.List
	clk      clock.Clock
	mu       sync.Mutex
}

// ShardedCache spreads entries over a fixed set of independently locked
// shards so concurrent HTTP paths do not contend on a single mutex.
type ShardedCache struct {
	shards [shardCount]*shard
}

// New builds a ShardedCache holding at most maxEntries entries overall.
func New(maxEntries int) *ShardedCache {
	return newWithClock(maxEntries, clock.RealClock{})
}

func newWithClock(maxEntries int, clk clock.Clock) *ShardedCache {
	if maxEntries <= 0 {
		return nil
	}
	perShard := (maxEntries + shardCount - 1) / shardCount
	c := &ShardedCache{}
	for i := range c.shards {
		c.shards[i] = &shard{
			capacity: perShard,
			index:    make(map[string]*list.Element, perShard),
			lru:      list.New(),
			clk:      clk,
		}
	}
	return c
}

// shardOf picks the shard for key using FNV-1a.
func (c *ShardedCache) shardOf(key string) *shard {
	hash := offsetBasis
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= prime32
	}
	return c.shards[hash&(shardCount-1)]
}

func (c *ShardedCache) check(lifetime time.Duration) error {
	if c == nil || c.shards[0] == nil {
		return errNotInit
	}
	if lifetime != NoExpiry && (lifetime <= 0 || lifetime > maxLifetime) {
		return errParam
	}
	return nil
}

// Set stores value under key, replacing any previous entry.
func (c *ShardedCache) Set(key string, value interface{}, lifetime time.Duration) error {
	if err := c.check(lifetime); err != nil {
		return err
	}
	return c.shardOf(key).set(key, value, lifetime)
}

// Get returns the live value stored under key.
func (c *ShardedCache) Get(key string) (interface{}, error) {
	if err := c.check(NoExpiry); err != nil {
		return nil, err
	}
	return c.shardOf(key).get(key)
}

// Delete drops key if present.
func (c *ShardedCache) Delete(key string) {
	if c.check(NoExpiry) != nil {
		return
	}
	c.shardOf(key).delete(key)
}

// SetIfAbsent stores value only when key is missing or expired and reports
// whether it stored anything.
func (c *ShardedCache) SetIfAbsent(key string, value interface{}, lifetime time.Duration) bool {
	if c.check(lifetime) != nil {
		return false
	}
	return c.shardOf(key).setIfAbsent(key, value, lifetime)
}

// Increment adds one to the int64 counter under key. A missing or expired
// entry restarts the counter at one.
func (c *ShardedCache) Increment(key string, lifetime time.Duration) (int64, error) {
	if err := c.check(lifetime); err != nil {
		return 0, err
	}
	return c.shardOf(key).add(key, 1, lifetime)
}

// Decrement subtracts one from the int64 counter under key. A missing or
// expired entry restarts the counter at zero.
func (c *ShardedCache) Decrement(key string, lifetime time.Duration) (int64, error) {
	if err := c.check(lifetime); err != nil {
		return 0, err
	}
	return c.shardOf(key).add(key, -1, lifetime)
}

func (s *shard) now() int64 { return s.clk.Now().UnixNano() }

func (s *shard) deadlineFor(lifetime time.Duration) int64 {
	if lifetime == NoExpiry {
		return int64(NoExpiry)
	}
	return s.now() + int64(lifetime)
}

func (s *shard) expired(e *entry) bool {
	return e.deadline != int64(NoExpiry) && s.now() > e.deadline
}

func (s *shard) set(key string, value interface{}, lifetime time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.index[key]
	if !ok {
		s.insert(key, value, lifetime)
		return nil
	}
	e := el.Value.(*entry)
	s.lru.MoveToFront(el)
	e.value = value
	e.deadline = s.deadlineFor(lifetime)
	return nil
}

func (s *shard) get(key string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.index[key]
	if !ok {
		return nil, fmt.Errorf("no entry for key %q", key)
	}
	e := el.Value.(*entry)
	if s.expired(e) {
		s.remove(el, e)
		return nil, fmt.Errorf("entry for key %q expired", key)
	}
	s.lru.MoveToFront(el)
	return e.value, nil
}

func (s *shard) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.index[key]; ok {
		s.remove(el, el.Value.(*entry))
	}
}

func (s *shard) setIfAbsent(key string, value interface{}, lifetime time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.index[key]
	if !ok {
		s.insert(key, value, lifetime)
		return true
	}
	e := el.Value.(*entry)
	s.lru.MoveToFront(el)
	if !s.expired(e) {
		return false
	}
	e.value = value
	e.deadline = s.deadlineFor(lifetime)
	return true
}

func (s *shard) add(key string, delta int64, lifetime time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := int64(0)
	if delta > 0 {
		start = delta
	}
	el, ok := s.index[key]
	if !ok {
		s.insert(key, start, lifetime)
		return start, nil
	}
	e := el.Value.(*entry)
	s.lru.MoveToFront(el)
	if s.expired(e) {
		e.value = start
		e.deadline = s.deadlineFor(lifetime)
		return start, nil
	}
	current, isCounter := e.value.(int64)
	if !isCounter || current == math.MaxInt64 || current == math.MinInt64 {
		return 0, fmt.Errorf("entry for key %q is not a counter", key)
	}
	current += delta
	e.value = current
	e.deadline = s.deadlineFor(lifetime)
	return current, nil
}

// insert assumes the caller holds the shard lock and key is absent.
func (s *shard) insert(key string, value interface{}, lifetime time.Duration) {
	if s.lru.Len()+1 > s.capacity {
		s.evictOldest()
	}
	e := &entry{key: key, value: value, deadline: s.deadlineFor(lifetime)}
	s.index[key] = s.lru.PushFront(e)
}

func (s *shard) remove(el *list.Element, e *entry) {
	s.lru.Remove(el)
	delete(s.index, e.key)
}

func (s *shard) evictOldest() {
	el := s.lru.Back()
	if el == nil {
		return
	}
	s.remove(el, el.Value.(*entry))
}
