/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package limiter

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"huawei.com/hmp-core/common/cache"
)

const (
	maxTotalConns = 1024
	maxConnsPerIP = 512
	ipCountGrace  = time.Hour
)

// NewLimitListener wraps l so that at most totalLimit connections are open at
// the same time and a single peer address holds at most perIPLimit of them.
func NewLimitListener(l net.Listener, totalLimit, perIPLimit, cacheSize int) (net.Listener, error) {
	if totalLimit < 0 || totalLimit > maxTotalConns {
		return nil, errors.New("totalLimit out of range")
	}
	if perIPLimit < 0 || perIPLimit > maxConnsPerIP {
		return nil, errors.New("perIPLimit out of range")
	}
	ll := &limitListener{
		Listener:   l,
		slots:      make(chan struct{}, totalLimit),
		perIPLimit: int64(perIPLimit),
	}
	if cacheSize > 0 {
		ll.ipCache = cache.New(cacheSize)
	}
	return ll, nil
}

type limitListener struct {
	net.Listener
	slots      chan struct{}
	closeOnce  sync.Once
	ipCache    *cache.ShardedCache
	perIPLimit int64
}

func (l *limitListener) acquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *limitListener) release() { <-l.slots }

// Accept implements net.Listener. Connections over either limit are closed
// right away instead of queueing behind live ones.
func (l *limitListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	ip, key := peerKey(c)
	if ip != "" && l.ipCache != nil {
		if n, err := l.ipCache.Increment(key, cache.NoExpiry); err == nil && n > l.perIPLimit {
			return l.reject(c, key), nil
		}
	}
	if !l.acquire() {
		return l.reject(c, key), nil
	}
	return &countedConn{Conn: c, release: l.release, ipCache: l.ipCache}, nil
}

// reject closes the connection and hands back a wrapper that holds no slot,
// so the serving loop stays alive.
func (l *limitListener) reject(c net.Conn, key string) net.Conn {
	if key != "" && l.ipCache != nil {
		_, _ = l.ipCache.Decrement(key, ipCountGrace)
	}
	_ = c.Close()
	return &countedConn{Conn: c, release: func() {}}
}

// Close implements net.Listener.
func (l *limitListener) Close() error {
	err := l.Listener.Close()
	l.closeOnce.Do(func() { close(l.slots) })
	return err
}

// peerKey derives the remote IP and its connection-count cache key.
func peerKey(c net.Conn) (string, string) {
	addr := c.RemoteAddr()
	if addr == nil {
		return "", ""
	}
	ip, _, err := net.SplitHostPort(addr.String())
	if err != nil || ip == "" {
		return "", ""
	}
	return ip, fmt.Sprintf("conn-count-%s", ip)
}

type countedConn struct {
	net.Conn
	releaseOnce sync.Once
	release     func()
	ipCache     *cache.ShardedCache
}

// Close implements net.Conn. Slot and per-IP bookkeeping run once even when
// the connection is closed repeatedly.
func (c *countedConn) Close() error {
	err := c.Conn.Close()
	c.releaseOnce.Do(func() {
		c.release()
		if ip, key := peerKey(c.Conn); ip != "" && c.ipCache != nil {
			_, _ = c.ipCache.Decrement(key, ipCountGrace)
		}
	})
	return err
}
