/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package socservice exports SoC scheduling and accelerator metrics for
// Prometheus.
package socservice

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"k8s.io/utils/clock"

	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/multicore"
	"huawei.com/hmp-core/pkg/npu"
	"huawei.com/hmp-core/pkg/sched"
)

type noopSignaler struct{}

func (noopSignaler) SignalCores(uint32, cpuset.Set) {}

// newTestService wires a small system: cores 0, 1 and 4 online, three tasks
// placed, two accelerator contexts at 80 and 40 percent.
func newTestService(t *testing.T) (*socCollectorService, *npu.Registry) {
	topo := multicore.DefaultTopology()
	table := multicore.NewCoreTable(topo, noopSignaler{}, clock.RealClock{}, multicore.FixedAffinity(0))
	for _, id := range []cpuset.CoreID{0, 1, 4} {
		if err := table.MarkOnline(id); err != nil {
			t.Fatalf("mark core %d online: %v", id, err)
		}
	}

	scheduler := sched.New(topo, sched.DefaultConfig())
	scheduler.Submit(sched.NewTask(1, 10, sched.HighPerformance))
	scheduler.Submit(sched.NewTask(2, 10, sched.HighPerformance))
	scheduler.Submit(sched.NewTask(3, 10, sched.LowPower))

	registry := npu.NewRegistry()
	for i, util := range []uint32{80, 40} {
		ctx := npu.NewContext(uint32(i+1), "resnet50")
		ctx.SetUtilization(util)
		if _, err := registry.Register(ctx); err != nil {
			t.Fatalf("register context: %v", err)
		}
	}

	svc, ok := New(CollectorName, table, scheduler, registry).(*socCollectorService)
	if !ok {
		t.Fatal("unexpected service type")
	}
	return svc, registry
}

func collectAll(c prometheus.Collector) []prometheus.Metric {
	ch := make(chan prometheus.Metric, 256)
	c.Collect(ch)
	close(ch)
	var out []prometheus.Metric
	for m := range ch {
		out = append(out, m)
	}
	return out
}

func countByDesc(metrics []prometheus.Metric) map[*prometheus.Desc]int {
	counts := make(map[*prometheus.Desc]int)
	for _, m := range metrics {
		counts[m.Desc()]++
	}
	return counts
}

func TestGetName(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Equal(t, CollectorName, svc.GetName())
}

func TestTakeSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	svc.CreateCollector(time.Minute, time.Minute)
	snap := svc.collector.takeSnapshot()

	assert.Len(t, snap.cores, 8)
	assert.Equal(t, multicore.Online, snap.cores[0].state)
	assert.Equal(t, multicore.Online, snap.cores[4].state)
	assert.Equal(t, multicore.Offline, snap.cores[5].state)
	assert.Equal(t, multicore.Performance, snap.cores[1].cluster)
	assert.Equal(t, multicore.Efficiency, snap.cores[4].cluster)
	assert.Equal(t, 2, snap.perfOnline)
	assert.Equal(t, 1, snap.effOnline)

	assert.Len(t, snap.loads, 8)
	assert.Equal(t, uint32(1), snap.loads[0].TaskCount)
	assert.Equal(t, uint32(25), snap.loads[0].LoadPercent)
	assert.Equal(t, uint32(12), snap.summary.PerfAvg)
	assert.Equal(t, uint32(6), snap.summary.EffAvg)
	assert.Equal(t, uint32(9), snap.summary.TotalAvg)
	assert.Equal(t, 3, snap.queueDepth)

	assert.Len(t, snap.contexts, 2)
	assert.Equal(t, "resnet50", snap.contexts[0].model)
	assert.Equal(t, uint32(80), snap.contexts[0].util)
	assert.Equal(t, uint32(60), snap.npuUtil)
}

func TestDescribeListsEveryMetric(t *testing.T) {
	svc, _ := newTestService(t)
	c := svc.CreateCollector(time.Minute, time.Minute)

	ch := make(chan *prometheus.Desc, 64)
	c.Describe(ch)
	close(ch)
	got := 0
	for range ch {
		got++
	}
	assert.Equal(t, len(descriptions), got)

	assert.NotPanics(t, func() { c.Describe(nil) })
}

func TestCollectEmitsMetrics(t *testing.T) {
	svc, _ := newTestService(t)
	c := svc.CreateCollector(time.Minute, time.Minute)

	metrics := collectAll(c)
	counts := countByDesc(metrics)
	assert.Equal(t, 1, counts[versionInfoDesc])
	assert.Equal(t, 8, counts[coreStateDesc])
	assert.Equal(t, 2, counts[clusterOnlineDesc])
	assert.Equal(t, 8, counts[coreLoadDesc])
	assert.Equal(t, 8, counts[coreTasksDesc])
	assert.Equal(t, 3, counts[loadAverageDesc])
	assert.Equal(t, 1, counts[queueDepthDesc])
	assert.Equal(t, 1, counts[npuContextsDesc])
	assert.Equal(t, 1, counts[npuUtilizationDesc])
	assert.Equal(t, 2, counts[npuContextUtilDesc])
	assert.Len(t, metrics, 35)
}

func TestCollectServesCachedSnapshot(t *testing.T) {
	svc, registry := newTestService(t)
	c := svc.CreateCollector(time.Minute, time.Minute)
	assert.Len(t, collectAll(c), 35)

	// a new context is invisible until the snapshot is refreshed
	if _, err := registry.Register(npu.NewContext(3, "bert")); err != nil {
		t.Fatalf("register context: %v", err)
	}
	assert.Len(t, collectAll(c), 35)

	svc.collector.refresh()
	assert.Len(t, collectAll(c), 36)
}

func TestCollectGuardsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	c := svc.CreateCollector(time.Minute, time.Minute)
	assert.NotPanics(t, func() { c.Collect(nil) })

	empty, ok := New(CollectorName, nil, nil, nil).(*socCollectorService)
	assert.True(t, ok)
	assert.Len(t, collectAll(empty.CreateCollector(time.Minute, time.Minute)), 0)
}

func TestStartRefreshesUntilCancelled(t *testing.T) {
	svc, registry := newTestService(t)
	c := svc.CreateCollector(time.Minute, 5*time.Millisecond)
	assert.Len(t, collectAll(c), 35)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx, cancel)
		close(done)
	}()

	if _, err := registry.Register(npu.NewContext(3, "bert")); err != nil {
		t.Fatalf("register context: %v", err)
	}
	assert.Eventually(t, func() bool { return len(collectAll(c)) == 36 },
		time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not stop on cancel")
	}
}
