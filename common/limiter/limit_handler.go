/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package limiter implements connection and request throttling for the
// metrics endpoint.
package limiter

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"huawei.com/hmp-core/common/cache"
	"huawei.com/hmp-core/common/utils"
	"huawei.com/hmp-core/pkg/log"
)

const (
	// DefaultBodyLimit caps the accepted request body size.
	DefaultBodyLimit = 1024 * 1024 * 10
	// DefaultCacheSize is the fallback entry count for the per-IP cache.
	DefaultCacheSize = 1024 * 100
	// RatePattern validates per-IP rate strings such as "2/1".
	RatePattern = `^[1-9]\d{0,2}/[1-9]\d{0,2}$`

	maxConcurrency = 1024
	maxMethodLen   = 10
	tokenWaitLimit = 5 * time.Second
)

// HandlerConfig tunes NewLimitHandler.
type HandlerConfig struct {
	// AccessLog emits a debug log line for every served request.
	AccessLog bool
	// Method restricts requests to a single HTTP method when non-empty.
	Method string
	// BodyLimit caps the request body size in bytes.
	BodyLimit int64
	// TotalConcurrency caps in-flight requests across all clients.
	TotalConcurrency int
	// PerIPRate limits requests from one address, written as "requests/seconds".
	PerIPRate string
	// CacheSize bounds the per-IP bookkeeping cache.
	CacheSize int
}

type limitHandler struct {
	tokens    chan struct{}
	next      http.Handler
	accessLog bool
	method    string
	bodyLimit int64
	ipWindow  time.Duration
	ipCache   *cache.ShardedCache
}

// StatusResponseWriter remembers the status code written by the wrapped
// handler.
type StatusResponseWriter struct {
	http.ResponseWriter
	http.Hijacker
	Status int
}

// WriteHeader implements http.ResponseWriter.
func (w *StatusResponseWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.Status = status
}

// NewLimitHandler wraps handler with the concurrency, per-IP and body-size
// limits in conf.
func NewLimitHandler(handler http.Handler, conf *HandlerConfig) (http.Handler, error) {
	if handler == nil || conf == nil {
		return nil, errors.New("parameter error")
	}
	if conf.TotalConcurrency < 1 || conf.TotalConcurrency > maxConcurrency {
		return nil, errors.New("totalConcurrency out of range")
	}
	if len(conf.Method) > maxMethodLen {
		return nil, errors.New("method name too long")
	}
	window, err := parseRate(conf.PerIPRate)
	if err != nil {
		return nil, err
	}
	if conf.CacheSize <= 0 {
		conf.CacheSize = DefaultCacheSize
	}
	if conf.BodyLimit <= 0 {
		conf.BodyLimit = DefaultBodyLimit
	}
	h := &limitHandler{
		tokens:    make(chan struct{}, conf.TotalConcurrency),
		next:      handler,
		accessLog: conf.AccessLog,
		method:    conf.Method,
		bodyLimit: conf.BodyLimit,
		ipWindow:  window,
		ipCache:   cache.New(conf.CacheSize),
	}
	for i := 0; i < cap(h.tokens); i++ {
		h.tokens <- struct{}{}
	}
	return h, nil
}

// parseRate converts "requests/seconds" into the smallest interval a single
// client may leave between requests.
func parseRate(rate string) (time.Duration, error) {
	if !regexp.MustCompile(RatePattern).MatchString(rate) {
		return 0, fmt.Errorf("per-IP rate %q malformed, want requests/seconds", rate)
	}
	parts := strings.Split(rate, "/")
	requests, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || requests == 0 {
		return 0, fmt.Errorf("per-IP rate %q malformed: %v", rate, err)
	}
	seconds, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("per-IP rate %q malformed: %v", rate, err)
	}
	return time.Duration(seconds * int64(time.Second) / requests), nil
}

// ServeHTTP implements http.Handler.
func (h *limitHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, h.bodyLimit)
	clientIP := utils.ClientIP(req)
	if clientIP != "" && h.ipCache != nil {
		if !h.ipCache.SetIfAbsent(fmt.Sprintf("rate-%s", clientIP), "v", h.ipWindow) {
			http.Error(w, "429 too many requests", http.StatusTooManyRequests)
			return
		}
	}
	select {
	case _, ok := <-h.tokens:
		if !ok {
			return
		}
		if h.method != "" && req.Method != h.method {
			http.NotFound(w, req)
			h.tokens <- struct{}{}
			return
		}
		h.serve(w, req, clientIP)
	default:
		http.Error(w, "503 too busy", http.StatusServiceUnavailable)
	}
}

func (h *limitHandler) serve(w http.ResponseWriter, req *http.Request, clientIP string) {
	done := make(chan struct{})
	go repayToken(done, h.tokens)
	res := wrapResponse(w)
	start := time.Now()
	h.next.ServeHTTP(res, req)
	close(done)
	if h.accessLog {
		log.Debugf("%s %s from %s status %d in %v",
			req.Method, req.URL.Path, clientIP, res.Status, time.Since(start))
	}
}

// repayToken gives the slot back once the request finishes or has run for
// tokenWaitLimit, whichever comes first. A stuck handler must not pin the
// whole request budget.
func repayToken(done <-chan struct{}, tokens chan<- struct{}) {
	select {
	case <-time.After(tokenWaitLimit):
	case <-done:
	}
	tokens <- struct{}{}
}

func wrapResponse(w http.ResponseWriter) *StatusResponseWriter {
	hj, _ := w.(http.Hijacker)
	return &StatusResponseWriter{ResponseWriter: w, Hijacker: hj, Status: http.StatusOK}
}
