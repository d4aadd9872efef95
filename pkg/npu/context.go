/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package npu

import "sync/atomic"

// Phase is the pipeline stage a context is in.
type Phase uint8

// Pipeline phases of one inference pass.
const (
	Preprocess Phase = iota
	Inference
	Postprocess
)

// String returns the phase name for logs.
func (p Phase) String() string {
	switch p {
	case Inference:
		return "Inference"
	case Postprocess:
		return "Postprocess"
	default:
		return "Preprocess"
	}
}

// InferenceState tracks whether the accelerator is working for a context.
type InferenceState uint32

// Inference states.
const (
	Idle InferenceState = iota
	Running
	AwaitingResult
)

// String returns the state name for logs.
func (s InferenceState) String() string {
	switch s {
	case Running:
		return "Running"
	case AwaitingResult:
		return "AwaitingResult"
	default:
		return "Idle"
	}
}

// Context tracks one loaded model through its pipeline phases. Phase and
// State belong to the owning goroutine; utilization is atomic because the
// metrics path reads it concurrently.
type Context struct {
	ID    uint32
	Model string
	Phase Phase
	State InferenceState

	utilization atomic.Uint32
}

// NewContext returns an idle context at the head of the pipeline.
func NewContext(id uint32, model string) *Context {
	return &Context{ID: id, Model: model, Phase: Preprocess, State: Idle}
}

// StartPreprocess enters the data preparation phase.
func (c *Context) StartPreprocess() {
	c.Phase = Preprocess
}

// StartInference hands the batch to the accelerator.
func (c *Context) StartInference() {
	c.Phase = Inference
	c.State = Running
}

// FinishInference records that the accelerator is done and the result is
// ready for postprocessing.
func (c *Context) FinishInference() {
	c.State = AwaitingResult
	c.Phase = Postprocess
}

// StartPostprocess enters the result handling phase.
func (c *Context) StartPostprocess() {
	c.Phase = Postprocess
}

// Done retires the pass: the context goes idle and its utilization resets.
func (c *Context) Done() {
	c.State = Idle
	c.utilization.Store(0)
}

// Utilization returns the context's accelerator utilization, 0-100.
func (c *Context) Utilization() uint32 {
	return c.utilization.Load()
}

// SetUtilization stores the utilization, clamped to 100.
func (c *Context) SetUtilization(value uint32) {
	if value > 100 {
		value = 100
	}
	c.utilization.Store(value)
}
