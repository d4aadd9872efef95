/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package multicore brings secondary cores of the big.LITTLE complex online
// and dispatches inter-processor interrupts. Core state lives in a CoreTable
// built at boot; a wake SGI plus a deadline-bounded wait replaces platform
// firmware handshakes.
package multicore

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/log"
)

// ErrInvalidCore reports a core id outside the configured topology, or an
// operation the boot core does not accept.
var ErrInvalidCore = errors.New("invalid core id")

// BootCore is the id of the primary core, online from reset.
const BootCore cpuset.CoreID = 0

// WakeVector is the SGI number reserved for waking secondary cores.
const WakeVector uint32 = 15

// CoreState is the bring-up state of one core. Transitions only move
// forward: Offline, Starting, Online.
type CoreState uint32

// Core bring-up states.
const (
	Offline CoreState = iota
	Starting
	Online
)

// String returns the state name for logs.
func (s CoreState) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Online:
		return "Online"
	default:
		return "Offline"
	}
}

// ClusterKind distinguishes the two clusters of the complex.
type ClusterKind uint32

// Cluster kinds. Performance maps to the Cortex-A76 cluster, Efficiency to
// the Cortex-A55 cluster.
const (
	Performance ClusterKind = iota
	Efficiency
)

// String returns the cluster name for logs and metric labels.
func (k ClusterKind) String() string {
	if k == Efficiency {
		return "efficiency"
	}
	return "performance"
}

// Topology describes how many cores each cluster carries. Performance cores
// occupy the low ids, efficiency cores follow.
type Topology struct {
	PerfCores int
	EffCores  int
}

// DefaultTopology is the RK3588 layout: cores 0-3 performance, 4-7
// efficiency.
func DefaultTopology() Topology {
	return Topology{PerfCores: 4, EffCores: 4}
}

// Total returns the number of cores in the complex.
func (t Topology) Total() int {
	return t.PerfCores + t.EffCores
}

// ClusterOf maps a core id to its cluster.
func (t Topology) ClusterOf(id cpuset.CoreID) ClusterKind {
	if int(id) < t.PerfCores {
		return Performance
	}
	return Efficiency
}

// PerformanceSet returns the ids of the performance cluster.
func (t Topology) PerformanceSet() cpuset.Set {
	return cpuset.Range(0, cpuset.CoreID(t.PerfCores))
}

// EfficiencySet returns the ids of the efficiency cluster.
func (t Topology) EfficiencySet() cpuset.Set {
	return cpuset.Range(cpuset.CoreID(t.PerfCores), cpuset.CoreID(t.Total()))
}

// Signaler is the slice of the interrupt controller this package needs.
type Signaler interface {
	SignalCores(vector uint32, targets cpuset.Set)
}

// AffinityReader reports the id of the executing core. The hardware backend
// reads MPIDR_EL1 affinity level 0; host-side backends return a fixed value.
type AffinityReader interface {
	CurrentCoreID() cpuset.CoreID
}

// FixedAffinity pins CurrentCoreID to one value, for host-side runs where
// every goroutine plays the boot core.
type FixedAffinity cpuset.CoreID

// CurrentCoreID returns the pinned core id.
func (f FixedAffinity) CurrentCoreID() cpuset.CoreID {
	return cpuset.CoreID(f)
}

// CoreRecord tracks one core. The state field is atomic so the woken core
// and the boot core touch it without a lock.
type CoreRecord struct {
	ID      cpuset.CoreID
	Cluster ClusterKind
	state   atomic.Uint32
}

// State returns the current bring-up state.
func (c *CoreRecord) State() CoreState {
	return CoreState(c.state.Load())
}

func (c *CoreRecord) setState(s CoreState) {
	c.state.Store(uint32(s))
}

// BootReport summarizes one BringUpAll pass.
type BootReport struct {
	PerfOnline int
	EffOnline  int
	Total      int
}

// CoreTable owns the per-core records and drives bring-up through the
// interrupt controller. Construct one at boot and share it by reference.
type CoreTable struct {
	topo     Topology
	records  []*CoreRecord
	ic       Signaler
	clock    clock.Clock
	affinity AffinityReader
}

// NewCoreTable builds the table for the given topology. All cores start
// Offline, the boot core included; BringUpAll flips it Online.
func NewCoreTable(topo Topology, ic Signaler, clk clock.Clock, affinity AffinityReader) *CoreTable {
	records := make([]*CoreRecord, 0, topo.Total())
	for id := 0; id < topo.Total(); id++ {
		core := cpuset.CoreID(id)
		records = append(records, &CoreRecord{ID: core, Cluster: topo.ClusterOf(core)})
	}
	return &CoreTable{topo: topo, records: records, ic: ic, clock: clk, affinity: affinity}
}

// Topology returns the configured core layout.
func (t *CoreTable) Topology() Topology {
	return t.topo
}

func (t *CoreTable) record(id cpuset.CoreID) (*CoreRecord, error) {
	if int(id) >= len(t.records) {
		return nil, fmt.Errorf("core %d outside topology of %d: %w", id, len(t.records), ErrInvalidCore)
	}
	return t.records[id], nil
}

// StartCore wakes one secondary core: the record moves to Starting and the
// wake SGI is raised on that core alone. The boot core cannot be started.
func (t *CoreTable) StartCore(id cpuset.CoreID) error {
	rec, err := t.record(id)
	if err != nil {
		return err
	}
	if id == BootCore {
		return fmt.Errorf("core %d is the boot core: %w", id, ErrInvalidCore)
	}

	rec.setState(Starting)
	t.ic.SignalCores(WakeVector, cpuset.New(id))
	log.Infof("starting core %d", id)
	return nil
}

// WaitOnline polls a core's state until it reaches Online (true), falls
// back to Offline (false) or the deadline passes (false). The busy-wait is
// acceptable only inside the boot window.
func (t *CoreTable) WaitOnline(id cpuset.CoreID, timeout time.Duration) bool {
	rec, err := t.record(id)
	if err != nil {
		return false
	}

	deadline := t.clock.Now().Add(timeout)
	for {
		switch rec.State() {
		case Online:
			return true
		case Offline:
			return false
		}
		if !t.clock.Now().Before(deadline) {
			log.Warningf("core %d startup timeout after %v", id, timeout)
			return false
		}
		runtime.Gosched()
	}
}

// BringUpAll marks the boot core Online, then starts and awaits every
// secondary core. Failures reduce the counts but never abort the pass.
func (t *CoreTable) BringUpAll(timeout time.Duration) BootReport {
	report := BootReport{}

	t.records[BootCore].setState(Online)
	t.tally(&report, BootCore)
	log.Infof("core %d (boot) is online", BootCore)

	for _, rec := range t.records {
		if rec.ID == BootCore {
			continue
		}
		if err := t.StartCore(rec.ID); err != nil {
			log.Errorf("start core %d: %v", rec.ID, err)
			continue
		}
		if !t.WaitOnline(rec.ID, timeout) {
			log.Warningf("core %d failed to start", rec.ID)
			continue
		}
		t.tally(&report, rec.ID)
		log.Infof("core %d is online", rec.ID)
	}

	log.Infof("system online: %d cores (%d performance, %d efficiency)",
		report.Total, report.PerfOnline, report.EffOnline)
	return report
}

func (t *CoreTable) tally(report *BootReport, id cpuset.CoreID) {
	report.Total++
	if t.topo.ClusterOf(id) == Performance {
		report.PerfOnline++
	} else {
		report.EffOnline++
	}
}

// SetState stores a core's state. The trampoline contract is the main
// caller: a woken core initializes its redistributor frame and then marks
// itself Online.
func (t *CoreTable) SetState(id cpuset.CoreID, state CoreState) error {
	rec, err := t.record(id)
	if err != nil {
		return err
	}
	rec.setState(state)
	return nil
}

// MarkOnline flips a core to Online.
func (t *CoreTable) MarkOnline(id cpuset.CoreID) error {
	return t.SetState(id, Online)
}

// State returns a core's bring-up state. Ids outside the topology read
// Offline.
func (t *CoreTable) State(id cpuset.CoreID) CoreState {
	rec, err := t.record(id)
	if err != nil {
		return Offline
	}
	return rec.State()
}

// OnlineCount returns how many cores are Online.
func (t *CoreTable) OnlineCount() int {
	count := 0
	for _, rec := range t.records {
		if rec.State() == Online {
			count++
		}
	}
	return count
}

// OnlineInCluster returns how many cores of one cluster are Online.
func (t *CoreTable) OnlineInCluster(kind ClusterKind) int {
	count := 0
	for _, rec := range t.records {
		if rec.Cluster == kind && rec.State() == Online {
			count++
		}
	}
	return count
}

// ClusterOf maps a core id to its cluster.
func (t *CoreTable) ClusterOf(id cpuset.CoreID) ClusterKind {
	return t.topo.ClusterOf(id)
}

// CurrentCoreID reports the id of the executing core through the affinity
// capability.
func (t *CoreTable) CurrentCoreID() cpuset.CoreID {
	return t.affinity.CurrentCoreID()
}

// CurrentCluster reports the cluster of the executing core.
func (t *CoreTable) CurrentCluster() ClusterKind {
	return t.topo.ClusterOf(t.affinity.CurrentCoreID())
}
