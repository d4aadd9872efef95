/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package socservice exports SoC scheduling and accelerator metrics for
// Prometheus.
package socservice

import (
	"reflect"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"huawei.com/hmp-core/common/cache"
	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/log"
	"huawei.com/hmp-core/pkg/multicore"
	"huawei.com/hmp-core/pkg/npu"
	"huawei.com/hmp-core/pkg/sched"
	"huawei.com/hmp-core/versions"
)

const (
	labelCore    = "core"
	labelCluster = "cluster"
	labelScope   = "scope"
	labelContext = "context_id"
	labelModel   = "model"
	labelPhase   = "phase"
	labelState   = "state"

	scopePerformance = "performance"
	scopeEfficiency  = "efficiency"
	scopeTotal       = "total"

	cacheSize        = 128
	snapshotCacheKey = "hmp-core-soc-snapshot"
)

var (
	coreLabels    = []string{labelCore, labelCluster}
	contextLabels = []string{labelContext, labelModel, labelPhase, labelState}
)

var (
	versionInfoDesc = prometheus.NewDesc("hmp_exporter_version_info",
		"exporter version with value '1'", []string{"exporterVersion"}, nil)
	coreStateDesc = prometheus.NewDesc("hmp_core_state",
		"core lifecycle state, 0 offline 1 starting 2 online", coreLabels, nil)
	coreLoadDesc = prometheus.NewDesc("hmp_core_load_percent",
		"scheduler load of a single core", coreLabels, nil)
	coreTasksDesc = prometheus.NewDesc("hmp_core_tasks",
		"tasks currently placed on a single core", coreLabels, nil)
	clusterOnlineDesc = prometheus.NewDesc("hmp_cluster_cores_online",
		"number of online cores in a cluster", []string{labelCluster}, nil)
	loadAverageDesc = prometheus.NewDesc("hmp_load_average_percent",
		"average scheduler load over a core scope", []string{labelScope}, nil)
	queueDepthDesc = prometheus.NewDesc("hmp_sched_queue_depth",
		"tasks tracked by the scheduler", nil, nil)
	npuContextsDesc = prometheus.NewDesc("hmp_npu_contexts",
		"registered accelerator contexts", nil, nil)
	npuUtilizationDesc = prometheus.NewDesc("hmp_npu_utilization_percent",
		"mean utilization over all accelerator contexts", nil, nil)
	npuContextUtilDesc = prometheus.NewDesc("hmp_npu_context_util_percent",
		"utilization of a single accelerator context", contextLabels, nil)

	descriptions = []*prometheus.Desc{versionInfoDesc, coreStateDesc, coreLoadDesc, coreTasksDesc,
		clusterOnlineDesc, loadAverageDesc, queueDepthDesc, npuContextsDesc, npuUtilizationDesc,
		npuContextUtilDesc}
)

type coreStatus struct {
	id      cpuset.CoreID
	cluster multicore.ClusterKind
	state   multicore.CoreState
}

type contextStatus struct {
	id    uint32
	model string
	phase npu.Phase
	state npu.InferenceState
	util  uint32
}

// socSnapshot is one consistent reading of every exported subsystem.
type socSnapshot struct {
	cores      []coreStatus
	loads      []sched.CoreLoad
	summary    sched.Summary
	queueDepth int
	perfOnline int
	effOnline  int
	contexts   []contextStatus
	npuUtil    uint32
}

type socCollector struct {
	table      *multicore.CoreTable
	scheduler  *sched.Scheduler
	npus       *npu.Registry
	cache      *cache.ShardedCache
	cacheTime  time.Duration
	updateTime time.Duration
}

// Describe implements prometheus.Collector
func (n *socCollector) Describe(ch chan<- *prometheus.Desc) {
	if ch == nil {
		log.Warningln("invalid param in function Describe")
		return
	}
	for _, desc := range descriptions {
		ch <- desc
	}
}

// Collect implements prometheus.Collector
func (n *socCollector) Collect(ch chan<- prometheus.Metric) {
	if !validate(ch, n.table, n.scheduler, n.npus) {
		log.Warningln("invalid param in function Collect")
		return
	}
	snap := n.cachedSnapshot()
	if snap == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(versionInfoDesc, prometheus.GaugeValue, 1,
		versions.Version())
	updateCoreMetrics(ch, snap)
	updateSchedMetrics(ch, snap)
	updateNPUMetrics(ch, snap)
}

// cachedSnapshot returns the cached reading, rebuilding it when missing or
// expired.
func (n *socCollector) cachedSnapshot() *socSnapshot {
	obj, err := n.cache.Get(snapshotCacheKey)
	if err == nil {
		if snap, ok := obj.(*socSnapshot); ok {
			return snap
		}
	}
	log.Warningln("no snapshot cached, reading subsystems directly")
	return n.refresh()
}

// refresh reads every subsystem and stores the result under the cache key.
func (n *socCollector) refresh() *socSnapshot {
	snap := n.takeSnapshot()
	if err := n.cache.Set(snapshotCacheKey, snap, n.cacheTime); err != nil {
		log.Errorf("cache snapshot failed: %v", err)
	}
	return snap
}

func (n *socCollector) takeSnapshot() *socSnapshot {
	topo := n.table.Topology()
	snap := &socSnapshot{
		loads:      n.scheduler.Snapshot(),
		summary:    n.scheduler.LoadSummary(),
		queueDepth: n.scheduler.QueueDepth(),
		perfOnline: n.table.OnlineInCluster(multicore.Performance),
		effOnline:  n.table.OnlineInCluster(multicore.Efficiency),
		npuUtil:    n.npus.TotalUtilization(),
	}
	for id := 0; id < topo.Total(); id++ {
		core := cpuset.CoreID(id)
		snap.cores = append(snap.cores, coreStatus{
			id:      core,
			cluster: topo.ClusterOf(core),
			state:   n.table.State(core),
		})
	}
	for _, ctx := range n.npus.Contexts() {
		snap.contexts = append(snap.contexts, contextStatus{
			id:    ctx.ID,
			model: ctx.Model,
			phase: ctx.Phase,
			state: ctx.State,
			util:  ctx.Utilization(),
		})
	}
	return snap
}

func updateCoreMetrics(ch chan<- prometheus.Metric, snap *socSnapshot) {
	for _, core := range snap.cores {
		labels := []string{strconv.Itoa(int(core.id)), core.cluster.String()}
		ch <- prometheus.MustNewConstMetric(coreStateDesc, prometheus.GaugeValue,
			float64(core.state), labels...)
	}
	ch <- prometheus.MustNewConstMetric(clusterOnlineDesc, prometheus.GaugeValue,
		float64(snap.perfOnline), scopePerformance)
	ch <- prometheus.MustNewConstMetric(clusterOnlineDesc, prometheus.GaugeValue,
		float64(snap.effOnline), scopeEfficiency)
}

func updateSchedMetrics(ch chan<- prometheus.Metric, snap *socSnapshot) {
	clusterFor := func(i int) string {
		if i < len(snap.cores) {
			return snap.cores[i].cluster.String()
		}
		return scopeTotal
	}
	for i, load := range snap.loads {
		labels := []string{strconv.Itoa(int(load.Core)), clusterFor(i)}
		ch <- prometheus.MustNewConstMetric(coreLoadDesc, prometheus.GaugeValue,
			float64(load.LoadPercent), labels...)
		ch <- prometheus.MustNewConstMetric(coreTasksDesc, prometheus.GaugeValue,
			float64(load.TaskCount), labels...)
	}
	ch <- prometheus.MustNewConstMetric(loadAverageDesc, prometheus.GaugeValue,
		float64(snap.summary.PerfAvg), scopePerformance)
	ch <- prometheus.MustNewConstMetric(loadAverageDesc, prometheus.GaugeValue,
		float64(snap.summary.EffAvg), scopeEfficiency)
	ch <- prometheus.MustNewConstMetric(loadAverageDesc, prometheus.GaugeValue,
		float64(snap.summary.TotalAvg), scopeTotal)
	ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue,
		float64(snap.queueDepth))
}

func updateNPUMetrics(ch chan<- prometheus.Metric, snap *socSnapshot) {
	ch <- prometheus.MustNewConstMetric(npuContextsDesc, prometheus.GaugeValue,
		float64(len(snap.contexts)))
	ch <- prometheus.MustNewConstMetric(npuUtilizationDesc, prometheus.GaugeValue,
		float64(snap.npuUtil))
	for _, ctx := range snap.contexts {
		labels := []string{strconv.Itoa(int(ctx.id)), ctx.model, ctx.phase.String(), ctx.state.String()}
		ch <- prometheus.MustNewConstMetric(npuContextUtilDesc, prometheus.GaugeValue,
			float64(ctx.util), labels...)
	}
}

func validate(ch chan<- prometheus.Metric, objs ...interface{}) bool {
	if ch == nil {
		return false
	}
	for _, v := range objs {
		val := reflect.ValueOf(v)
		if val.Kind() != reflect.Ptr {
			return false
		}
		if val.IsNil() {
			return false
		}
	}
	return true
}
