/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package multicore

import (
	"errors"
	"fmt"
	"sync"

	"huawei.com/hmp-core/pkg/cpuset"
	"huawei.com/hmp-core/pkg/log"
)

// ipiSlots is the number of SGI vectors the hardware provides.
const ipiSlots = 16

// ErrInvalidVector reports an IPI vector outside 0-15.
var ErrInvalidVector = errors.New("invalid ipi vector")

// ErrReservedVector reports an attempt to register the core-wake vector.
var ErrReservedVector = errors.New("ipi vector reserved for core wake")

// Handler processes one inter-processor interrupt. It receives the vector
// and the id of the core that observed the interrupt, and runs without the
// registry lock held.
type Handler func(vector uint32, source cpuset.CoreID)

// IPIRegistry maps the 16 SGI vectors to handlers. Registration overwrites;
// vectors without a handler are dropped on dispatch.
type IPIRegistry struct {
	mutex    sync.Mutex
	handlers [ipiSlots]Handler
	ic       Signaler
}

// NewIPIRegistry returns an empty registry sending through the given
// controller.
func NewIPIRegistry(ic Signaler) *IPIRegistry {
	return &IPIRegistry{ic: ic}
}

// Register installs fn for a vector, replacing any previous handler.
// Vector 15 belongs to core wake and cannot be taken.
func (r *IPIRegistry) Register(vector uint32, fn Handler) error {
	if vector >= ipiSlots {
		return fmt.Errorf("vector %d: %w", vector, ErrInvalidVector)
	}
	if vector == WakeVector {
		return fmt.Errorf("vector %d: %w", vector, ErrReservedVector)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.handlers[vector] = fn
	return nil
}

// Send raises the vector on every core in the target set. Range checking
// happens at the controller.
func (r *IPIRegistry) Send(vector uint32, targets cpuset.Set) {
	r.ic.SignalCores(vector, targets)
}

// Dispatch routes an acknowledged vector to its handler. Vectors without a
// handler are ignored.
func (r *IPIRegistry) Dispatch(vector uint32, source cpuset.CoreID) {
	if vector >= ipiSlots {
		log.Debugf("ipi vector %d out of range, dropped", vector)
		return
	}

	r.mutex.Lock()
	fn := r.handlers[vector]
	r.mutex.Unlock()

	if fn == nil {
		log.Debugf("ipi vector %d has no handler, dropped", vector)
		return
	}
	fn(vector, source)
}
