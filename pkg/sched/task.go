/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package sched

import "huawei.com/hmp-core/pkg/cpuset"

// Hint tells the scheduler what a task needs from its core.
type Hint uint32

// Placement hints.
const (
	// HighPerformance pins heavy compute to the performance cluster.
	HighPerformance Hint = iota
	// LowPower prefers the efficiency cluster while it has headroom.
	LowPower
	// AcceleratorPrePost keeps accelerator pre- and postprocessing on the
	// performance cluster so both stages share a fast core.
	AcceleratorPrePost
)

// String returns the hint name for logs.
func (h Hint) String() string {
	switch h {
	case LowPower:
		return "low-power"
	case AcceleratorPrePost:
		return "accel-prepost"
	default:
		return "high-performance"
	}
}

// TaskState is the lifecycle state of a task.
type TaskState uint8

// Task lifecycle states.
const (
	Pending TaskState = iota
	Running
	Waiting
	Done
)

// String returns the state name for logs.
func (s TaskState) String() string {
	switch s {
	case Running:
		return "Running"
	case Waiting:
		return "Waiting"
	case Done:
		return "Done"
	default:
		return "Pending"
	}
}

// Task is one schedulable unit of work. Core and Scheduled are stamped by
// Submit; until then the task has no placement.
type Task struct {
	ID        uint32
	Priority  uint8
	Hint      Hint
	State     TaskState
	Core      cpuset.CoreID
	Scheduled bool
}

// NewTask returns a pending task. Priority 0 is highest, 255 lowest.
func NewTask(id uint32, priority uint8, hint Hint) *Task {
	return &Task{ID: id, Priority: priority, Hint: hint, State: Pending}
}
