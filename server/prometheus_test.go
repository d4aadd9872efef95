/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package server implements the HTTP service for Prometheus to obtain
// monitoring data.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

const testPort = 19285

type mockCollectorService struct {
	created atomic.Bool
	started atomic.Bool
}

func (m *mockCollectorService) CreateCollector(_, _ time.Duration) prometheus.Collector {
	m.created.Store(true)
	return nil
}

func (m *mockCollectorService) Start(ctx context.Context, _ context.CancelFunc) {
	m.started.Store(true)
	<-ctx.Done()
}

func (m *mockCollectorService) GetName() string {
	return "mock-collector"
}

func baseServer() *ExporterServer {
	return &ExporterServer{
		Ip:             "127.0.0.1",
		Port:           testPort,
		Concurrency:    8,
		LimitIPReq:     "999/1",
		LimitIPConn:    10,
		LimitTotalConn: 20,
	}
}

func TestVerifyServerParams(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *ExporterServer)
		wantErr bool
	}{
		{name: "valid config", mutate: func(s *ExporterServer) {}},
		{name: "port too low", mutate: func(s *ExporterServer) { s.Port = 1024 }, wantErr: true},
		{name: "port too high", mutate: func(s *ExporterServer) { s.Port = 40001 }, wantErr: true},
		{name: "invalid ip", mutate: func(s *ExporterServer) { s.Ip = "invalid.ip" }, wantErr: true},
		{name: "bad request rate", mutate: func(s *ExporterServer) { s.LimitIPReq = "0/1" }, wantErr: true},
		{name: "ip conn limit low", mutate: func(s *ExporterServer) { s.LimitIPConn = 0 }, wantErr: true},
		{name: "ip conn limit high", mutate: func(s *ExporterServer) { s.LimitIPConn = maxIPConnLimit + 1 }, wantErr: true},
		{name: "total conn limit low", mutate: func(s *ExporterServer) { s.LimitTotalConn = 0 }, wantErr: true},
		{name: "total conn limit high", mutate: func(s *ExporterServer) { s.LimitTotalConn = maxConcurrency + 1 }, wantErr: true},
		{name: "concurrency low", mutate: func(s *ExporterServer) { s.Concurrency = 0 }, wantErr: true},
		{name: "concurrency high", mutate: func(s *ExporterServer) { s.Concurrency = maxConcurrency + 1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseServer()
			tt.mutate(s)
			err := s.VerifyServerParams()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterCollectorService(t *testing.T) {
	s := &ExporterServer{}
	mock := &mockCollectorService{}

	t.Run("valid registration", func(t *testing.T) {
		err := s.RegisterCollectorService(mock)
		assert.NoError(t, err)
		assert.Equal(t, mock, s.collectService)
	})

	t.Run("nil collector", func(t *testing.T) {
		assert.Error(t, s.RegisterCollectorService(nil))
	})

	t.Run("nil server", func(t *testing.T) {
		var nilServer *ExporterServer
		assert.Error(t, nilServer.RegisterCollectorService(mock))
	})
}

func TestCollectorPassthrough(t *testing.T) {
	s := &ExporterServer{}
	mock := &mockCollectorService{}
	assert.NoError(t, s.RegisterCollectorService(mock))

	s.CreateCollector(time.Minute, time.Minute)
	assert.True(t, mock.created.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.StartCollect(ctx, cancel)
	assert.True(t, mock.started.Load())
}

func TestStartServeServesMetricsAndShutsDown(t *testing.T) {
	s := baseServer()
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_metric", Help: "test metric"})
	gauge.Set(42)
	reg.MustRegister(gauge)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.StartServe(ctx, cancel, reg)
		close(done)
	}()

	url := "http://127.0.0.1:19285/metrics"
	var body string
	assert.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(raw)
		return true
	}, 5*time.Second, 50*time.Millisecond)
	assert.True(t, strings.Contains(body, "test_metric 42"))

	time.Sleep(10 * time.Millisecond)
	resp, err := http.Get("http://127.0.0.1:19285/")
	if assert.NoError(t, err) {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.True(t, strings.Contains(string(raw), "HMP-Core"))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StartServe did not stop on cancel")
	}
}

func TestStartServeCancelsOnBadHandlerConfig(t *testing.T) {
	s := baseServer()
	s.Concurrency = 0
	ctx, cancel := context.WithCancel(context.Background())
	s.StartServe(ctx, cancel, prometheus.NewRegistry())
	assert.Error(t, ctx.Err())
}

func TestStartServeCancelsWhenListenFails(t *testing.T) {
	patches := gomonkey.ApplyFunc(net.Listen, func(string, string) (net.Listener, error) {
		return nil, errors.New("address in use")
	})
	defer patches.Reset()

	s := baseServer()
	ctx, cancel := context.WithCancel(context.Background())
	s.StartServe(ctx, cancel, prometheus.NewRegistry())
	assert.Error(t, ctx.Err())
}
