/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package mmio provides register-block access for memory-mapped devices.
// A RegisterBlock is addressed by byte offset from the block base, so the
// same controller code drives real hardware and the in-memory simulator.
package mmio

import (
	"sync"
	"unsafe"
)

// RegisterBlock is a window of device registers addressed by byte offset.
type RegisterBlock interface {
	// Read32 returns the 32-bit register at the given byte offset.
	Read32(offset uint64) uint32
	// Write32 stores a 32-bit value at the given byte offset.
	Write32(offset uint64, value uint32)
	// Read8 returns the byte at the given offset. Some registers, priority
	// banks among them, are byte-addressable.
	Read8(offset uint64) uint8
	// Write8 stores one byte at the given offset.
	Write8(offset uint64, value uint8)
	// Read64 returns the 64-bit register at the given byte offset.
	Read64(offset uint64) uint64
	// Write64 stores a 64-bit value at the given byte offset.
	Write64(offset uint64, value uint64)
}

// DeviceBlock maps a RegisterBlock onto a physical base address. Offsets
// are resolved with pointer arithmetic, so the base must stay mapped for
// the lifetime of the block.
type DeviceBlock struct {
	base uintptr
}

// NewDeviceBlock returns a DeviceBlock rooted at the given base address.
func NewDeviceBlock(base uintptr) *DeviceBlock {
	return &DeviceBlock{base: base}
}

// Read32 loads the register at base+offset.
func (d *DeviceBlock) Read32(offset uint64) uint32 {
	return *(*uint32)(unsafe.Pointer(d.base + uintptr(offset)))
}

// Write32 stores value at base+offset.
func (d *DeviceBlock) Write32(offset uint64, value uint32) {
	*(*uint32)(unsafe.Pointer(d.base + uintptr(offset))) = value
}

// Read8 loads the byte at base+offset.
func (d *DeviceBlock) Read8(offset uint64) uint8 {
	return *(*uint8)(unsafe.Pointer(d.base + uintptr(offset)))
}

// Write8 stores one byte at base+offset.
func (d *DeviceBlock) Write8(offset uint64, value uint8) {
	*(*uint8)(unsafe.Pointer(d.base + uintptr(offset))) = value
}

// Read64 loads the 64-bit register at base+offset.
func (d *DeviceBlock) Read64(offset uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(d.base + uintptr(offset)))
}

// Write64 stores a 64-bit value at base+offset.
func (d *DeviceBlock) Write64(offset uint64, value uint64) {
	*(*uint64)(unsafe.Pointer(d.base + uintptr(offset))) = value
}

// SimBlock is an in-memory RegisterBlock backed by a sparse register map.
// Unwritten registers read as zero. It is safe for concurrent use.
type SimBlock struct {
	mutex sync.RWMutex
	regs  map[uint64]uint32
}

// NewSimBlock returns an empty simulated register block.
func NewSimBlock() *SimBlock {
	return &SimBlock{regs: make(map[uint64]uint32)}
}

// Seed presets a register value, typically a read-only identification
// register the device under simulation would expose.
func (s *SimBlock) Seed(offset uint64, value uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.regs[offset] = value
}

// Read32 returns the register at offset, zero if never written.
func (s *SimBlock) Read32(offset uint64) uint32 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.regs[offset]
}

// Write32 stores value at offset.
func (s *SimBlock) Write32(offset uint64, value uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.regs[offset] = value
}

// Read8 extracts one byte from the containing aligned 32-bit register.
func (s *SimBlock) Read8(offset uint64) uint8 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	shift := (offset & 3) * 8
	return uint8(s.regs[offset&^3] >> shift)
}

// Write8 read-modify-writes one byte of the containing aligned 32-bit
// register, so byte and word access stay coherent.
func (s *SimBlock) Write8(offset uint64, value uint8) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	aligned := offset &^ 3
	shift := (offset & 3) * 8
	s.regs[aligned] = s.regs[aligned]&^(0xFF<<shift) | uint32(value)<<shift
}

// Read64 assembles a 64-bit value from two consecutive 32-bit registers,
// low word first.
func (s *SimBlock) Read64(offset uint64) uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	low := uint64(s.regs[offset])
	high := uint64(s.regs[offset+4])
	return high<<32 | low
}

// Write64 splits a 64-bit value across two consecutive 32-bit registers,
// low word first.
func (s *SimBlock) Write64(offset uint64, value uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.regs[offset] = uint32(value)
	s.regs[offset+4] = uint32(value >> 32)
}

// SetBits ors mask into the register at offset.
func (s *SimBlock) SetBits(offset uint64, mask uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.regs[offset] |= mask
}

// Written reports whether the register at offset has ever been stored to.
func (s *SimBlock) Written(offset uint64) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.regs[offset]
	return ok
}
