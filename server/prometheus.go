/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package server implements the HTTP service for Prometheus to obtain
// monitoring data.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"huawei.com/hmp-core/collector"
	"huawei.com/hmp-core/common/limiter"
	"huawei.com/hmp-core/pkg/log"
)

const (
	portMin         = 1025
	portMax         = 40000
	requestTimeout  = 10 * time.Second
	maxHeaderBytes  = 3072
	maxIPConnLimit  = 128
	maxConcurrency  = 512
	shutdownTimeout = 30 * time.Second
)

// ExporterServer provides the HTTP service for Prometheus to obtain
// monitoring data.
type ExporterServer struct {
	// Ip identifies the address that the server is listening on
	Ip string
	// Port for the http service
	Port int
	// Concurrency identifies the maximum concurrency of the http service
	Concurrency int
	// LimitIPReq is the per-IP request rate, written as "requests/seconds"
	LimitIPReq string
	// LimitIPConn is the maximum number of connections per IP address
	LimitIPConn int
	// LimitTotalConn is the maximum number of connections the service handles
	LimitTotalConn int

	collectService collector.ICollectorService
	mux            *http.ServeMux
}

// VerifyServerParams verify server params valid
func (s *ExporterServer) VerifyServerParams() error {
	if s.Port < portMin || s.Port > portMax {
		return errors.New("the Port is invalid")
	}
	parsedIP := net.ParseIP(s.Ip)
	if parsedIP == nil {
		return errors.New("the listen Ip is invalid")
	}
	s.Ip = parsedIP.String()

	if !regexp.MustCompile(limiter.RatePattern).MatchString(s.LimitIPReq) {
		return errors.New("limitIPReq format error")
	}
	if s.LimitIPConn < 1 || s.LimitIPConn > maxIPConnLimit {
		return errors.New("limitIPConn is invalid")
	}
	if s.LimitTotalConn < 1 || s.LimitTotalConn > maxConcurrency {
		return errors.New("limitTotalConn is invalid")
	}
	if s.Concurrency < 1 || s.Concurrency > maxConcurrency {
		return errors.New("concurrency is invalid")
	}
	return nil
}

func (s *ExporterServer) indexHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(
		`<html>
		<head><title>HMP-Core</title></head>
		<body>
		<h1 align="center">HMP-Core</h1>
		<p align="center">The Prometheus metrics url is http://IP:` + strconv.Itoa(s.Port) + `/metrics: <a href="./metrics">Metrics</a></p>
		</body>
		</html>`))
}

func (s *ExporterServer) initConfig() *limiter.HandlerConfig {
	return &limiter.HandlerConfig{
		AccessLog:        true,
		Method:           http.MethodGet,
		BodyLimit:        limiter.DefaultBodyLimit,
		TotalConcurrency: s.Concurrency,
		PerIPRate:        s.LimitIPReq,
		CacheSize:        limiter.DefaultCacheSize,
	}
}

func (s *ExporterServer) newServer(conf *limiter.HandlerConfig) (*http.Server, net.Listener, error) {
	handler, err := limiter.NewLimitHandler(s.mux, conf)
	if err != nil {
		return nil, nil, err
	}

	server := &http.Server{
		Addr:           s.Ip + ":" + strconv.Itoa(s.Port),
		Handler:        handler,
		ReadTimeout:    requestTimeout,
		WriteTimeout:   requestTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}

	l, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen IP and port error: %v", err)
	}
	limitLs, err := limiter.NewLimitListener(l, s.LimitTotalConn, s.LimitIPConn, limiter.DefaultCacheSize)
	if err != nil {
		_ = l.Close()
		return nil, nil, fmt.Errorf("limit listener error: %v", err)
	}
	return server, limitLs, nil
}

// StartServe runs the metrics endpoint until ctx is cancelled, then shuts
// down gracefully. Any serve failure cancels the whole service.
func (s *ExporterServer) StartServe(ctx context.Context, cancel context.CancelFunc, reg *prometheus.Registry) {
	s.mux = http.NewServeMux()
	s.mux.Handle("/metrics", promhttp.HandlerFor(reg,
		promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}))
	s.mux.HandleFunc("/", s.indexHandler)

	server, listener, err := s.newServer(s.initConfig())
	if err != nil {
		log.Errorf("build metrics server failed: %v", err)
		cancel()
		return
	}
	log.Infof("metrics server listening on %s", server.Addr)

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server stopped: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("metrics server shutdown: %v", err)
	}
}

// RegisterCollectorService registers the collector service feeding the
// exporter.
func (s *ExporterServer) RegisterCollectorService(c collector.ICollectorService) error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}
	if c == nil {
		return fmt.Errorf("collector service is nil")
	}
	s.collectService = c
	return nil
}

// CreateCollector create a matching collector.
func (s *ExporterServer) CreateCollector(cacheTime time.Duration, updateTime time.Duration) prometheus.Collector {
	return s.collectService.CreateCollector(cacheTime, updateTime)
}

// StartCollect starting periodic SoC information collection
func (s *ExporterServer) StartCollect(ctx context.Context, fn context.CancelFunc) {
	s.collectService.Start(ctx, fn)
}
