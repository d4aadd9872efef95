/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package gic

import (
	"sync"

	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/mmio"
)

// Completion records one end-of-interrupt write for inspection.
type Completion struct {
	Core cpuset.CoreID
	ID   uint32
}

// SimCPUInterface models the banked CPU-interface registers for host-side
// runs. SGI values are decoded the way the hardware would and queued on
// each targeted core in FIFO order.
type SimCPUInterface struct {
	mutex       sync.Mutex
	pending     [][]uint32
	completions []Completion
}

// NewSimCPUInterface returns a simulated CPU interface serving the given
// number of cores.
func NewSimCPUInterface(cores int) *SimCPUInterface {
	return &SimCPUInterface{pending: make([][]uint32, cores)}
}

// SendSGI decodes an ICC_SGI1R value and queues the vector on every core
// whose bit is set in the target mask.
func (s *SimCPUInterface) SendSGI(value uint64) {
	vector := uint32(value & 0xF)
	mask := uint32((value >> 16) & 0xFFFFFF)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for core := range s.pending {
		if mask&(1<<uint(core)) != 0 {
			s.pending[core] = append(s.pending[core], vector)
		}
	}
}

// Acknowledge pops the oldest pending vector for core, SpuriousID when the
// queue is empty or the core is unknown.
func (s *SimCPUInterface) Acknowledge(core cpuset.CoreID) uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if int(core) >= len(s.pending) || len(s.pending[core]) == 0 {
		return SpuriousID
	}
	id := s.pending[core][0]
	s.pending[core] = s.pending[core][1:]
	return id
}

// Complete records the end-of-interrupt write.
func (s *SimCPUInterface) Complete(core cpuset.CoreID, id uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.completions = append(s.completions, Completion{Core: core, ID: id})
}

// Completions returns a copy of every end-of-interrupt recorded so far.
func (s *SimCPUInterface) Completions() []Completion {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]Completion, len(s.completions))
	copy(out, s.completions)
	return out
}

// PendingCount returns how many vectors are queued for core.
func (s *SimCPUInterface) PendingCount(core cpuset.CoreID) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if int(core) >= len(s.pending) {
		return 0
	}
	return len(s.pending[core])
}

// SeedSimTyper programs a simulated distributor's TYPER register so that
// InitDistributor sizes its banks for the given number of interrupt lines.
// lines is rounded down to a multiple of 32.
func SeedSimTyper(sim *mmio.SimBlock, lines uint32) {
	if lines < 32 {
		lines = 32
	}
	sim.Seed(gicdTYPER, lines/32-1)
}
