/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package gic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/mmio"
)

// sgiRecorder captures raw SGI values without routing them anywhere.
type sgiRecorder struct {
	values []uint64
}

func (r *sgiRecorder) SendSGI(value uint64)             { r.values = append(r.values, value) }
func (r *sgiRecorder) Acknowledge(cpuset.CoreID) uint32 { return SpuriousID }
func (r *sgiRecorder) Complete(cpuset.CoreID, uint32)   {}

func newSimGic(cores int) (*Gic500, *mmio.SimBlock, *mmio.SimBlock, *SimCPUInterface) {
	dist := mmio.NewSimBlock()
	redist := mmio.NewSimBlock()
	cpu := NewSimCPUInterface(cores)
	return New(dist, redist, cpu), dist, redist, cpu
}

func TestInitDistributorProgramsAllSPIBanks(t *testing.T) {
	g, dist, _, _ := newSimGic(8)
	// TYPER low 5 bits = 1 gives ((1+1)*32) = 64 lines, SPIs 32..63.
	dist.Seed(gicdTYPER, 0x1)

	g.InitDistributor()

	assert.Equal(t, uint32(0xFFFFFFFF), dist.Read32(gicdICENABLER+4))
	assert.Equal(t, uint32(0xFFFFFFFF), dist.Read32(gicdICPENDR+4))
	assert.True(t, dist.Written(gicdIGROUPR+4))
	assert.Equal(t, uint32(0), dist.Read32(gicdIGROUPR+4))
	for id := uint64(32); id < 64; id++ {
		assert.Equal(t, uint8(0xF0), dist.Read8(gicdIPRIORITYR+id))
	}
	assert.True(t, dist.Written(gicdICFGR+8))
	assert.True(t, dist.Written(gicdICFGR+12))
	assert.Equal(t, uint32(0x1), dist.Read32(gicdCTLR))
}

func TestInitDistributorLeavesPrivateBanksAlone(t *testing.T) {
	g, dist, _, _ := newSimGic(8)
	dist.Seed(gicdTYPER, 0x1)

	g.InitDistributor()

	// Word 0 of the enable/pending banks covers SGIs and PPIs, which the
	// distributor pass never touches.
	assert.False(t, dist.Written(gicdICENABLER))
	assert.False(t, dist.Written(gicdICPENDR))
	assert.False(t, dist.Written(gicdIGROUPR))
	assert.Equal(t, uint8(0), dist.Read8(gicdIPRIORITYR+16))
}

func TestInitDistributorLineCountFollowsTyper(t *testing.T) {
	g, dist, _, _ := newSimGic(8)
	// TYPER low 5 bits = 3 gives 128 lines, so word 3 of each bank is hit.
	dist.Seed(gicdTYPER, 0x3)

	g.InitDistributor()

	assert.Equal(t, uint32(0xFFFFFFFF), dist.Read32(gicdICENABLER+12))
	assert.False(t, dist.Written(gicdICENABLER+16))
}

func TestSeedSimTyperEncodesLineCount(t *testing.T) {
	dist := mmio.NewSimBlock()

	SeedSimTyper(dist, 256)
	assert.Equal(t, uint32(7), dist.Read32(gicdTYPER))

	SeedSimTyper(dist, 0)
	assert.Equal(t, uint32(0), dist.Read32(gicdTYPER))
}

func TestInitCorePrivateProgramsOwnFrame(t *testing.T) {
	g, _, redist, _ := newSimGic(8)

	g.InitCorePrivate(2)

	base := uint64(2) * RedistStride
	assert.Equal(t, uint32(0xFFFFFFFF), redist.Read32(base+gicrSGIICENABLER0))
	assert.Equal(t, uint32(0xFFFFFFFF), redist.Read32(base+gicrSGIICPENDR0))
	assert.Equal(t, uint32(0xFFFFFFFF), redist.Read32(base+gicrSGIICACTIVER0))
	for i := uint64(0); i < 8; i++ {
		assert.Equal(t, uint32(0xF0F0F0F0), redist.Read32(base+gicrSGIIPRIORITYR0+i*4))
	}
	assert.True(t, redist.Written(base+gicrSGIICFGR1))
	assert.Equal(t, uint32(0), redist.Read32(base+gicrSGIICFGR1))

	// Core 0's frame stays untouched.
	assert.False(t, redist.Written(gicrSGIICENABLER0))
}

func TestEnableLineBitPlacement(t *testing.T) {
	tests := []struct {
		name   string
		id     uint32
		offset uint64
		value  uint32
	}{
		{"first spi", 32, gicdISENABLER, 0x1},
		{"last of word zero", 63, gicdISENABLER, 0x80000000},
		{"first of word one", 64, gicdISENABLER + 4, 0x1},
		{"mid word", 42, gicdISENABLER, 1 << 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, dist, _, _ := newSimGic(8)
			g.EnableLine(tt.id)
			assert.Equal(t, tt.value, dist.Read32(tt.offset))
		})
	}
}

func TestDisableLineBitPlacement(t *testing.T) {
	g, dist, _, _ := newSimGic(8)
	g.DisableLine(100)
	assert.Equal(t, uint32(1<<4), dist.Read32(gicdICENABLER+8))
}

func TestLineOpsIgnoreNonSPIRange(t *testing.T) {
	g, dist, _, _ := newSimGic(8)

	g.EnableLine(15)
	g.EnableLine(16)
	g.DisableLine(8)
	g.EnableLine(1020)
	g.SetPriority(31, 0x10)

	assert.False(t, dist.Written(gicdISENABLER))
	assert.False(t, dist.Written(gicdICENABLER))
	assert.Equal(t, uint8(0), dist.Read8(gicdIPRIORITYR+31))
}

func TestSetPriorityWritesLineByte(t *testing.T) {
	g, dist, _, _ := newSimGic(8)

	g.SetPriority(40, 0x20)

	assert.Equal(t, uint8(0x20), dist.Read8(gicdIPRIORITYR+40))
	assert.Equal(t, uint8(0), dist.Read8(gicdIPRIORITYR+41))
}

func TestSignalCoresComposesSGIValue(t *testing.T) {
	rec := &sgiRecorder{}
	g := New(mmio.NewSimBlock(), mmio.NewSimBlock(), rec)

	g.SignalCores(5, cpuset.New(0, 1, 2, 3))

	assert.Len(t, rec.values, 1)
	assert.Equal(t, uint64(0x0F)<<16|5, rec.values[0])
}

func TestSignalCoresSingleTarget(t *testing.T) {
	rec := &sgiRecorder{}
	g := New(mmio.NewSimBlock(), mmio.NewSimBlock(), rec)

	g.SignalCores(15, cpuset.New(6))

	assert.Len(t, rec.values, 1)
	assert.Equal(t, uint64(1<<6)<<16|15, rec.values[0])
}

func TestSignalCoresRejectsOutOfRangeVector(t *testing.T) {
	rec := &sgiRecorder{}
	g := New(mmio.NewSimBlock(), mmio.NewSimBlock(), rec)

	g.SignalCores(16, cpuset.New(0))

	assert.Empty(t, rec.values)
}

// dirtyIAR returns acknowledge values with stale bits above the id field.
type dirtyIAR struct {
	sgiRecorder
	iar uint32
}

func (d *dirtyIAR) Acknowledge(cpuset.CoreID) uint32 { return d.iar }

func TestAcknowledgeKeepsLow24Bits(t *testing.T) {
	cpu := &dirtyIAR{iar: 0xFF00000F}
	g := New(mmio.NewSimBlock(), mmio.NewSimBlock(), cpu)

	assert.Equal(t, uint32(0xF), g.Acknowledge(0))
}

func TestAcknowledgeDrainsPendingVector(t *testing.T) {
	g, _, _, _ := newSimGic(4)

	g.SignalCores(7, cpuset.New(1))

	assert.Equal(t, uint32(7), g.Acknowledge(1))
	assert.Equal(t, SpuriousID, g.Acknowledge(1))
}

func TestSimCPUInterfaceRoutesByMask(t *testing.T) {
	cpu := NewSimCPUInterface(8)

	cpu.SendSGI(uint64(0xF0)<<16 | 3)

	for core := cpuset.CoreID(0); core < 4; core++ {
		assert.Equal(t, 0, cpu.PendingCount(core))
	}
	for core := cpuset.CoreID(4); core < 8; core++ {
		assert.Equal(t, 1, cpu.PendingCount(core))
		assert.Equal(t, uint32(3), cpu.Acknowledge(core))
	}
}

func TestSimCPUInterfaceFIFOOrder(t *testing.T) {
	cpu := NewSimCPUInterface(2)

	cpu.SendSGI(uint64(1)<<16 | 2)
	cpu.SendSGI(uint64(1)<<16 | 9)

	assert.Equal(t, uint32(2), cpu.Acknowledge(0))
	assert.Equal(t, uint32(9), cpu.Acknowledge(0))
	assert.Equal(t, SpuriousID, cpu.Acknowledge(0))
}

func TestSimCPUInterfaceUnknownCoreIsSpurious(t *testing.T) {
	cpu := NewSimCPUInterface(2)
	assert.Equal(t, SpuriousID, cpu.Acknowledge(9))
}

func TestSimCPUInterfaceRecordsCompletions(t *testing.T) {
	cpu := NewSimCPUInterface(2)

	cpu.Complete(1, 15)
	cpu.Complete(0, 3)

	done := cpu.Completions()
	assert.Equal(t, []Completion{{Core: 1, ID: 15}, {Core: 0, ID: 3}}, done)
}
