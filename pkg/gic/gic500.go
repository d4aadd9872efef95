/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package gic drives the GIC-500 interrupt controller of RK3588-class SoCs:
// one distributor for shared peripheral interrupts plus a redistributor
// frame per core for the core-private lines. All register traffic goes
// through mmio.RegisterBlock, so the same controller code runs over real
// device memory and over the in-memory simulator.
package gic

import (
	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/log"
	"huawei.com/hmp-core/pkg/mmio"
)

// Physical bases of the controller on RK3588.
const (
	// GICDBase is the distributor register frame.
	GICDBase uintptr = 0xfe600000
	// GICRBase is the first redistributor frame.
	GICRBase uintptr = 0xfe700000
)

// RedistStride is the size of one core's redistributor frame.
const RedistStride uint64 = 0x20000

// Interrupt line classes of the GICv3 numbering space.
const (
	SGIRangeStart uint32 = 0
	SGIRangeEnd   uint32 = 15
	PPIRangeStart uint32 = 16
	PPIRangeEnd   uint32 = 31
	SPIRangeStart uint32 = 32
	SPIRangeEnd   uint32 = 1019
)

// SpuriousID reads back from the acknowledge register when no interrupt is
// pending for the core.
const SpuriousID uint32 = 1023

// defaultPriority is the lowest usable priority level.
const defaultPriority uint8 = 0xF0

// Distributor register offsets.
const (
	gicdCTLR       uint64 = 0x0
	gicdTYPER      uint64 = 0x4
	gicdIGROUPR    uint64 = 0x80
	gicdISENABLER  uint64 = 0x100
	gicdICENABLER  uint64 = 0x180
	gicdISPENDR    uint64 = 0x200
	gicdICPENDR    uint64 = 0x280
	gicdISACTIVER  uint64 = 0x300
	gicdICACTIVER  uint64 = 0x380
	gicdIPRIORITYR uint64 = 0x400
	gicdICFGR      uint64 = 0xC00
	gicdIROUTER    uint64 = 0x6000
)

// Redistributor SGI-frame register offsets, relative to a core's frame base.
const (
	gicrCTLR           uint64 = 0x0
	gicrIIDR           uint64 = 0x4
	gicrTYPER          uint64 = 0x8
	gicrSGIISENABLER0  uint64 = 0x100080
	gicrSGIICENABLER0  uint64 = 0x100100
	gicrSGIISPENDR0    uint64 = 0x100200
	gicrSGIICPENDR0    uint64 = 0x100280
	gicrSGIISACTIVER0  uint64 = 0x100300
	gicrSGIICACTIVER0  uint64 = 0x100380
	gicrSGIIPRIORITYR0 uint64 = 0x100400
	gicrSGIICFGR0      uint64 = 0x100C00
	gicrSGIICFGR1      uint64 = 0x100C04
)

// CPUInterface abstracts the banked CPU-interface system registers
// (ICC_SGI1R_EL1, ICC_IAR1_EL1, ICC_EOIR1_EL1). The platform layer supplies
// the hardware backend; SimCPUInterface routes SGIs between in-process
// cores for host-side runs.
type CPUInterface interface {
	// SendSGI issues a fully composed ICC_SGI1R value.
	SendSGI(value uint64)
	// Acknowledge reads the pending interrupt id for core, SpuriousID when
	// nothing is pending.
	Acknowledge(core cpuset.CoreID) uint32
	// Complete performs the end-of-interrupt write for an acknowledged id.
	Complete(core cpuset.CoreID, id uint32)
}

// Gic500 programs one distributor and the per-core redistributor frames.
// It holds no interrupt state of its own; construct one per controller and
// share it by reference.
type Gic500 struct {
	dist   mmio.RegisterBlock
	redist mmio.RegisterBlock
	cpu    CPUInterface
}

// New returns a controller over the given distributor and redistributor
// register blocks and the banked CPU interface.
func New(dist, redist mmio.RegisterBlock, cpu CPUInterface) *Gic500 {
	return &Gic500{dist: dist, redist: redist, cpu: cpu}
}

// InitDistributor resets the distributor to a known state: forwarding off,
// every SPI disabled, pending state cleared, group 0, lowest priority and
// level-triggered, then forwarding back on. Runs exactly once, on the boot
// core, before any InitCorePrivate.
func (g *Gic500) InitDistributor() {
	g.dist.Write32(gicdCTLR, 0)

	typer := g.dist.Read32(gicdTYPER)
	lines := uint64(((typer & 0x1F) + 1) * 32)

	for i := uint64(SPIRangeStart); i < lines; i += 32 {
		g.dist.Write32(gicdICENABLER+i/32*4, 0xFFFFFFFF)
	}
	for i := uint64(SPIRangeStart); i < lines; i += 32 {
		g.dist.Write32(gicdICPENDR+i/32*4, 0xFFFFFFFF)
	}
	for i := uint64(SPIRangeStart); i < lines; i += 32 {
		g.dist.Write32(gicdIGROUPR+i/32*4, 0)
	}
	// Priority registers are byte-addressable, one byte per line.
	for i := uint64(SPIRangeStart); i < lines; i++ {
		g.dist.Write8(gicdIPRIORITYR+i, defaultPriority)
	}
	for i := uint64(SPIRangeStart); i < lines; i += 16 {
		g.dist.Write32(gicdICFGR+i/16*4, 0)
	}

	g.dist.Write32(gicdCTLR, 0x1)
	log.Infof("gicd initialized, %d interrupt lines", lines)
}

// InitCorePrivate resets one core's redistributor SGI frame: core-private
// lines disabled, pending and active state cleared, lowest priority, PPIs
// level-triggered. Each core runs this once before taking interrupts.
func (g *Gic500) InitCorePrivate(core cpuset.CoreID) {
	base := uint64(core) * RedistStride

	g.redist.Write32(base+gicrSGIICENABLER0, 0xFFFFFFFF)
	g.redist.Write32(base+gicrSGIICPENDR0, 0xFFFFFFFF)
	g.redist.Write32(base+gicrSGIICACTIVER0, 0xFFFFFFFF)
	for i := uint64(0); i < 8; i++ {
		g.redist.Write32(base+gicrSGIIPRIORITYR0+i*4, 0xF0F0F0F0)
	}
	g.redist.Write32(base+gicrSGIICFGR1, 0)

	log.Debugf("gicr frame initialized for core %d", core)
}

// EnableLine unmasks one shared peripheral interrupt. Ids outside the SPI
// range are ignored.
func (g *Gic500) EnableLine(id uint32) {
	if id < SPIRangeStart || id > SPIRangeEnd {
		log.Debugf("enable ignored, line %d is not an SPI", id)
		return
	}
	word := uint64(id-SPIRangeStart) / 32
	bit := (id - SPIRangeStart) % 32
	g.dist.Write32(gicdISENABLER+word*4, 1<<bit)
}

// DisableLine masks one shared peripheral interrupt. Ids outside the SPI
// range are ignored.
func (g *Gic500) DisableLine(id uint32) {
	if id < SPIRangeStart || id > SPIRangeEnd {
		log.Debugf("disable ignored, line %d is not an SPI", id)
		return
	}
	word := uint64(id-SPIRangeStart) / 32
	bit := (id - SPIRangeStart) % 32
	g.dist.Write32(gicdICENABLER+word*4, 1<<bit)
}

// SetPriority assigns the priority byte of one shared peripheral interrupt,
// lower value meaning higher priority. Ids outside the SPI range are
// ignored.
func (g *Gic500) SetPriority(id uint32, priority uint8) {
	if id < SPIRangeStart || id > SPIRangeEnd {
		log.Debugf("priority ignored, line %d is not an SPI", id)
		return
	}
	g.dist.Write8(gicdIPRIORITYR+uint64(id), priority)
}

// SignalCores raises a software-generated interrupt on every core in the
// target set. Vectors above the SGI range are ignored. This is the only
// point where a core set is lowered to the raw SGI target mask.
func (g *Gic500) SignalCores(vector uint32, targets cpuset.Set) {
	if vector > SGIRangeEnd {
		log.Debugf("sgi ignored, vector %d out of range", vector)
		return
	}
	// ICC_SGI1R layout: target mask in [39:16], SGI number in [3:0].
	value := uint64(targets.Mask())<<16 | uint64(vector)
	g.cpu.SendSGI(value)
}

// Acknowledge reads the pending interrupt id for core. The id lives in the
// low 24 bits of IAR; SpuriousID means nothing was pending. Callers pair
// every acknowledge with exactly one Complete, on error paths too.
func (g *Gic500) Acknowledge(core cpuset.CoreID) uint32 {
	return g.cpu.Acknowledge(core) & 0xFFFFFF
}

// Complete performs the end-of-interrupt write for an id previously
// returned by Acknowledge on the same core.
func (g *Gic500) Complete(core cpuset.CoreID, id uint32) {
	g.cpu.Complete(core, id)
}
