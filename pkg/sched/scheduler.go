/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package sched places tasks on the heterogeneous core complex. Placement
// is hint-driven over a synthetic per-core load figure; there is no
// preemption and no migration of running tasks.
package sched

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/log"
	"huawei.com/hmp-core/pkg/multicore"
)

// ErrTaskNotFound reports a Finish for a task id the queue does not hold.
var ErrTaskNotFound = errors.New("task not found")

// Each running task contributes loadPerTask percent, saturating at loadCap.
const (
	loadPerTask uint32 = 25
	loadCap     uint32 = 100
)

// Default thresholds.
const (
	defaultEffThreshold  uint32 = 60
	defaultPerfThreshold uint32 = 50
	defaultRebalance            = 100 * time.Millisecond
)

// Config carries the scheduler knobs. Zero numeric fields take the
// defaults; the zero flag leaves load balancing off.
type Config struct {
	// EffLoadThreshold is the efficiency-cluster average load above which
	// low-power tasks spill onto the performance cluster.
	EffLoadThreshold uint32
	// PerfLoadThreshold is the performance-cluster headroom mark. It is
	// informational; placement does not act on it.
	PerfLoadThreshold uint32
	// EnableLoadBalance gates the periodic rebalance pass.
	EnableLoadBalance bool
	// RebalanceInterval is the period of that pass.
	RebalanceInterval time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		EffLoadThreshold:  defaultEffThreshold,
		PerfLoadThreshold: defaultPerfThreshold,
		EnableLoadBalance: true,
		RebalanceInterval: defaultRebalance,
	}
}

func (c Config) withDefaults() Config {
	if c.EffLoadThreshold == 0 {
		c.EffLoadThreshold = defaultEffThreshold
	}
	if c.PerfLoadThreshold == 0 {
		c.PerfLoadThreshold = defaultPerfThreshold
	}
	if c.RebalanceInterval == 0 {
		c.RebalanceInterval = defaultRebalance
	}
	return c
}

// CoreLoad is the synthetic load of one core. LoadPercent is always derived
// from TaskCount and never set independently.
type CoreLoad struct {
	Core        cpuset.CoreID
	TaskCount   uint32
	LoadPercent uint32
}

func (l *CoreLoad) addTask() {
	l.TaskCount++
	l.recompute()
}

func (l *CoreLoad) removeTask() {
	if l.TaskCount > 0 {
		l.TaskCount--
	}
	l.recompute()
}

func (l *CoreLoad) recompute() {
	load := l.TaskCount * loadPerTask
	if load > loadCap {
		load = loadCap
	}
	l.LoadPercent = load
}

// Summary aggregates the cluster load averages.
type Summary struct {
	PerfAvg  uint32
	EffAvg   uint32
	TotalAvg uint32
}

// Scheduler tracks per-core load and the active task queue behind one
// mutex. Construct one per complex and share it by reference.
type Scheduler struct {
	mutex sync.Mutex
	topo  multicore.Topology
	perf  []CoreLoad
	eff   []CoreLoad
	queue []*Task
	cfg   Config
}

// New returns a scheduler for the given topology. Zero fields of cfg take
// the defaults.
func New(topo multicore.Topology, cfg Config) *Scheduler {
	s := &Scheduler{topo: topo, cfg: cfg.withDefaults()}
	for id := 0; id < topo.PerfCores; id++ {
		s.perf = append(s.perf, CoreLoad{Core: cpuset.CoreID(id)})
	}
	for id := topo.PerfCores; id < topo.Total(); id++ {
		s.eff = append(s.eff, CoreLoad{Core: cpuset.CoreID(id)})
	}
	return s
}

// DecideCore returns the core the task would be placed on, without placing
// it.
func (s *Scheduler) DecideCore(task *Task) cpuset.CoreID {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.decideLocked(task)
}

func (s *Scheduler) decideLocked(task *Task) cpuset.CoreID {
	if task.Hint == LowPower && len(s.eff) > 0 && avgLoad(s.eff) < s.cfg.EffLoadThreshold {
		return leastLoaded(s.eff)
	}
	// High-performance and accelerator stages pin to the performance
	// cluster; low-power spills here once the efficiency cluster is busy.
	return leastLoaded(s.perf)
}

// leastLoaded picks the first strictly least loaded entry, so ties go to
// the lowest core id.
func leastLoaded(loads []CoreLoad) cpuset.CoreID {
	minIdx := 0
	for i := 1; i < len(loads); i++ {
		if loads[i].LoadPercent < loads[minIdx].LoadPercent {
			minIdx = i
		}
	}
	return loads[minIdx].Core
}

func avgLoad(loads []CoreLoad) uint32 {
	if len(loads) == 0 {
		return 0
	}
	sum := uint32(0)
	for _, l := range loads {
		sum += l.LoadPercent
	}
	return sum / uint32(len(loads))
}

// Submit places the task: it is stamped Running with its core, the core's
// load is recomputed and the task joins the active queue. Submit always
// succeeds and returns the chosen core.
func (s *Scheduler) Submit(task *Task) cpuset.CoreID {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	core := s.decideLocked(task)
	task.Core = core
	task.Scheduled = true
	task.State = Running
	s.loadOf(core).addTask()
	s.queue = append(s.queue, task)

	log.Debugf("task %d (%s) placed on core %d", task.ID, task.Hint, core)
	return core
}

// Finish retires a task: its core's count drops (saturating at zero), the
// load is recomputed and the task leaves the queue. Unknown ids return
// ErrTaskNotFound with the queue untouched.
func (s *Scheduler) Finish(id uint32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, task := range s.queue {
		if task.ID != id {
			continue
		}
		if task.Scheduled {
			s.loadOf(task.Core).removeTask()
		}
		task.State = Done
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		return nil
	}
	return fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
}

func (s *Scheduler) loadOf(core cpuset.CoreID) *CoreLoad {
	if int(core) < s.topo.PerfCores {
		return &s.perf[core]
	}
	return &s.eff[int(core)-s.topo.PerfCores]
}

// LoadSummary returns the cluster averages, integer math throughout.
func (s *Scheduler) LoadSummary() Summary {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	perfAvg := avgLoad(s.perf)
	effAvg := avgLoad(s.eff)
	return Summary{
		PerfAvg:  perfAvg,
		EffAvg:   effAvg,
		TotalAvg: (perfAvg + effAvg) / 2,
	}
}

// Snapshot copies the per-core loads in core id order, performance cluster
// first.
func (s *Scheduler) Snapshot() []CoreLoad {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]CoreLoad, 0, len(s.perf)+len(s.eff))
	out = append(out, s.perf...)
	out = append(out, s.eff...)
	return out
}

// QueueDepth returns the number of active tasks.
func (s *Scheduler) QueueDepth() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.queue)
}

// Config returns the active configuration.
func (s *Scheduler) Config() Config {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.cfg
}

// Reconfigure swaps the thresholds at runtime. Zero fields take the
// defaults, as in New.
func (s *Scheduler) Reconfigure(cfg Config) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cfg = cfg.withDefaults()
	log.Infof("scheduler reconfigured: eff threshold %d, perf threshold %d, balance %v",
		s.cfg.EffLoadThreshold, s.cfg.PerfLoadThreshold, s.cfg.EnableLoadBalance)
}
