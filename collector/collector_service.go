/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package collector defines the collection service interface.
package collector

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ICollectorService abstracts a metrics collection service so the exporter
// server stays independent of the subsystem being scraped.
type ICollectorService interface {
	// CreateCollector builds the prometheus collector. Snapshots older than
	// cacheTime are rebuilt on scrape, updateTime paces background refreshes.
	CreateCollector(cacheTime time.Duration, updateTime time.Duration) prometheus.Collector

	// Start runs the background refresh loop until ctx is cancelled.
	Start(ctx context.Context, fn context.CancelFunc)

	// GetName returns the name of the collector service.
	GetName() string
}
