/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package socservice exports SoC scheduling and accelerator metrics for
// Prometheus.
package socservice

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"huawei.com/hmp-core/collector"
	"huawei.com/hmp-core/common/cache"
	"huawei.com/hmp-core/pkg/multicore"
	"huawei.com/hmp-core/pkg/npu"
	"huawei.com/hmp-core/pkg/sched"
)

// CollectorName for the SoC collector
const CollectorName = "soc"

type socCollectorService struct {
	serviceName string
	collector   socCollector
}

// New creates a SoC collector service reading the given subsystems.
func New(name string, table *multicore.CoreTable, scheduler *sched.Scheduler,
	npus *npu.Registry) collector.ICollectorService {
	return &socCollectorService{
		serviceName: name,
		collector: socCollector{
			table:     table,
			scheduler: scheduler,
			npus:      npus,
		},
	}
}

// GetName obtains the service name.
func (s *socCollectorService) GetName() string {
	return s.serviceName
}

// CreateCollector builds the SoC collector instance that implements the
// Prometheus collector interface.
func (s *socCollectorService) CreateCollector(cacheTime time.Duration, updateTime time.Duration) prometheus.Collector {
	s.collector.cache = cache.New(cacheSize)
	s.collector.cacheTime = cacheTime
	s.collector.updateTime = updateTime
	return &s.collector
}

// Start refreshes the snapshot cache on the update interval until ctx is
// cancelled.
func (s *socCollectorService) Start(ctx context.Context, _ context.CancelFunc) {
	ticker := time.NewTicker(s.collector.updateTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collector.refresh()
		}
	}
}
