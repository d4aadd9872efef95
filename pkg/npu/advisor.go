/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package npu advises the scheduler on CPU placement around accelerator
// work. Advise is a pure policy-by-phase matrix; the Registry bounds how
// many model contexts are live at once.
package npu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"huawei.com/hmp-core/pkg/cpuset"
)

// MaxContexts bounds the live contexts the accelerator runtime can serve.
const MaxContexts = 8

// ErrCapacityExceeded reports a Register past MaxContexts.
var ErrCapacityExceeded = errors.New("context registry full")

// ErrContextNotFound reports a Release for an unknown context id.
var ErrContextNotFound = errors.New("context not found")

// Policy selects the advisor's trade-off.
type Policy uint8

// Advisor policies.
const (
	// ASAP minimizes latency.
	ASAP Policy = iota
	// MinPower minimizes energy.
	MinPower
	// Balanced trades between the two.
	Balanced
)

// String returns the policy name for logs and config values.
func (p Policy) String() string {
	switch p {
	case MinPower:
		return "min-power"
	case Balanced:
		return "balanced"
	default:
		return "asap"
	}
}

// Cluster sets as the advisor matrix sees the default topology.
var (
	perfCores = cpuset.FromMask(0x0F)
	effCores  = cpuset.FromMask(0xF0)
	allCores  = cpuset.FromMask(0xFF)
)

// Decision is the advisor's suggestion for one pipeline phase.
type Decision struct {
	// SuggestedCores are the cores fit to run the phase.
	SuggestedCores cpuset.Set
	// Preferred is the single best core, valid only when HasPreferred.
	Preferred    cpuset.CoreID
	HasPreferred bool
	// FreqLevel is the recommended frequency step, 0 lowest to 4 highest.
	FreqLevel uint8
	// Estimated is the expected duration of the phase.
	Estimated time.Duration
}

// String renders the decision for logs.
func (d Decision) String() string {
	preferred := "none"
	if d.HasPreferred {
		preferred = fmt.Sprintf("%d", d.Preferred)
	}
	return fmt.Sprintf("cores=%s preferred=%s freq=%d est=%v",
		d.SuggestedCores, preferred, d.FreqLevel, d.Estimated)
}

// Advise maps a policy and pipeline phase to a placement suggestion. The
// function is pure: identical inputs yield identical decisions. Unknown
// policies fall back to ASAP.
func Advise(policy Policy, phase Phase) Decision {
	switch policy {
	case MinPower:
		return adviseMinPower(phase)
	case Balanced:
		return adviseBalanced(phase)
	default:
		return adviseASAP(phase)
	}
}

func adviseASAP(phase Phase) Decision {
	switch phase {
	case Inference:
		// The accelerator runs alone; keep only efficiency cores busy.
		return Decision{SuggestedCores: effCores, Estimated: 50 * time.Millisecond}
	case Postprocess:
		return Decision{SuggestedCores: perfCores, Preferred: 1, HasPreferred: true,
			FreqLevel: 4, Estimated: 10 * time.Millisecond}
	default:
		return Decision{SuggestedCores: perfCores, Preferred: 0, HasPreferred: true,
			FreqLevel: 4, Estimated: 10 * time.Millisecond}
	}
}

func adviseMinPower(phase Phase) Decision {
	switch phase {
	case Inference:
		return Decision{SuggestedCores: effCores, Estimated: 50 * time.Millisecond}
	case Postprocess:
		return Decision{SuggestedCores: effCores, Preferred: 5, HasPreferred: true,
			FreqLevel: 1, Estimated: 20 * time.Millisecond}
	default:
		return Decision{SuggestedCores: effCores, Preferred: 4, HasPreferred: true,
			FreqLevel: 1, Estimated: 20 * time.Millisecond}
	}
}

func adviseBalanced(phase Phase) Decision {
	switch phase {
	case Inference:
		return Decision{SuggestedCores: allCores, Estimated: 50 * time.Millisecond}
	case Postprocess:
		return Decision{SuggestedCores: perfCores, Preferred: 1, HasPreferred: true,
			FreqLevel: 3, Estimated: 15 * time.Millisecond}
	default:
		return Decision{SuggestedCores: perfCores, Preferred: 0, HasPreferred: true,
			FreqLevel: 3, Estimated: 15 * time.Millisecond}
	}
}

// Registry tracks the live contexts behind a mutex.
type Registry struct {
	mutex    sync.Mutex
	contexts []*Context
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register admits a context. Once MaxContexts are live, further registers
// fail with ErrCapacityExceeded until a slot is released.
func (r *Registry) Register(ctx *Context) (uint32, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.contexts) >= MaxContexts {
		return 0, fmt.Errorf("%d contexts live: %w", len(r.contexts), ErrCapacityExceeded)
	}
	r.contexts = append(r.contexts, ctx)
	return ctx.ID, nil
}

// Release drops the context with the given id, freeing its slot.
func (r *Registry) Release(id uint32) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, ctx := range r.contexts {
		if ctx.ID == id {
			r.contexts = append(r.contexts[:i], r.contexts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("context %d: %w", id, ErrContextNotFound)
}

// Contexts returns the live contexts in registration order.
func (r *Registry) Contexts() []*Context {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	out := make([]*Context, len(r.contexts))
	copy(out, r.contexts)
	return out
}

// Count returns the number of live contexts.
func (r *Registry) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.contexts)
}

// TotalUtilization returns the mean utilization across live contexts,
// zero when none are live, capped at 100.
func (r *Registry) TotalUtilization() uint32 {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.contexts) == 0 {
		return 0
	}
	sum := uint32(0)
	for _, ctx := range r.contexts {
		sum += ctx.Utilization()
	}
	avg := sum / uint32(len(r.contexts))
	if avg > 100 {
		avg = 100
	}
	return avg
}
