/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package mmio

import (
	"encoding/binary"
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestSimBlockReadsZeroWhenUnwritten(t *testing.T) {
	block := NewSimBlock()
	assert.Equal(t, uint32(0), block.Read32(0x100))
	assert.False(t, block.Written(0x100))
}

func TestSimBlockWriteRead(t *testing.T) {
	block := NewSimBlock()
	block.Write32(0x0, 0x1)
	block.Write32(0x400, 0xF0F0F0F0)
	assert.Equal(t, uint32(0x1), block.Read32(0x0))
	assert.Equal(t, uint32(0xF0F0F0F0), block.Read32(0x400))
	assert.True(t, block.Written(0x400))
}

func TestSimBlockSeed(t *testing.T) {
	block := NewSimBlock()
	block.Seed(0x4, 0x1F)
	assert.Equal(t, uint32(0x1F), block.Read32(0x4))
}

func TestSimBlock64BitSplitsWords(t *testing.T) {
	block := NewSimBlock()
	block.Write64(0x6000, 0x0000000100000003)
	assert.Equal(t, uint32(0x3), block.Read32(0x6000))
	assert.Equal(t, uint32(0x1), block.Read32(0x6004))
	assert.Equal(t, uint64(0x0000000100000003), block.Read64(0x6000))
}

func TestSimBlockByteAccessStaysWordCoherent(t *testing.T) {
	block := NewSimBlock()
	block.Write8(0x400, 0xF0)
	block.Write8(0x401, 0xF0)
	block.Write8(0x402, 0xF0)
	block.Write8(0x403, 0xF0)
	assert.Equal(t, uint32(0xF0F0F0F0), block.Read32(0x400))

	block.Write8(0x401, 0x20)
	assert.Equal(t, uint32(0xF0F020F0), block.Read32(0x400))
	assert.Equal(t, uint8(0x20), block.Read8(0x401))
	assert.Equal(t, uint8(0xF0), block.Read8(0x403))
}

func TestSimBlockSetBits(t *testing.T) {
	block := NewSimBlock()
	block.Write32(0x100, 0x1)
	block.SetBits(0x100, 0x8000)
	assert.Equal(t, uint32(0x8001), block.Read32(0x100))
}

func TestDeviceBlockOffsetArithmetic(t *testing.T) {
	buf := make([]byte, 64)
	block := NewDeviceBlock(uintptr(unsafe.Pointer(&buf[0])))

	block.Write32(0, 0xDEADBEEF)
	block.Write32(8, 0x00C0FFEE)
	assert.Equal(t, uint32(0xDEADBEEF), binary.LittleEndian.Uint32(buf[0:4]))
	assert.Equal(t, uint32(0x00C0FFEE), binary.LittleEndian.Uint32(buf[8:12]))
	assert.Equal(t, uint32(0xDEADBEEF), block.Read32(0))
	assert.Equal(t, uint32(0x00C0FFEE), block.Read32(8))

	block.Write64(16, 0x1122334455667788)
	assert.Equal(t, uint64(0x1122334455667788), block.Read64(16))
	assert.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(buf[16:24]))

	block.Write8(33, 0xA5)
	assert.Equal(t, uint8(0xA5), buf[33])
	assert.Equal(t, uint8(0xA5), block.Read8(33))

	runtime.KeepAlive(buf)
}
