/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package config loads the scheduling policy file. The file is YAML and
// optional: missing keys keep their defaults, so a partial file only
// overrides what it names.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"huawei.com/hmp-core/pkg/npu"
	"huawei.com/hmp-core/pkg/sched"
)

// Accelerator policy names accepted in the file.
const (
	PolicyASAP     = "asap"
	PolicyMinPower = "min-power"
	PolicyBalanced = "balanced"
)

// SchedulerPolicy is the scheduler section of the policy file.
type SchedulerPolicy struct {
	EffLoadThreshold    uint32 `yaml:"effLoadThreshold"`
	PerfLoadThreshold   uint32 `yaml:"perfLoadThreshold"`
	EnableLoadBalance   bool   `yaml:"enableLoadBalance"`
	RebalanceIntervalMs uint32 `yaml:"rebalanceIntervalMs"`
}

// AcceleratorPolicy is the accelerator section of the policy file.
type AcceleratorPolicy struct {
	Policy string `yaml:"policy"`
}

// PolicyFile is the full policy document.
type PolicyFile struct {
	Scheduler   SchedulerPolicy   `yaml:"scheduler"`
	Accelerator AcceleratorPolicy `yaml:"accelerator"`
}

// Default returns the stock policy: thresholds 60/50, balancing on every
// 100ms, balanced accelerator placement.
func Default() *PolicyFile {
	return &PolicyFile{
		Scheduler: SchedulerPolicy{
			EffLoadThreshold:    60,
			PerfLoadThreshold:   50,
			EnableLoadBalance:   true,
			RebalanceIntervalMs: 100,
		},
		Accelerator: AcceleratorPolicy{Policy: PolicyBalanced},
	}
}

// Load reads and validates the policy file at path. The document is
// unmarshalled over the defaults, so absent keys stay at their stock
// values.
func Load(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	policy := Default()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return policy, nil
}

// Validate rejects thresholds beyond 100 percent and unknown accelerator
// policy names.
func (p *PolicyFile) Validate() error {
	if p.Scheduler.EffLoadThreshold > 100 {
		return fmt.Errorf("effLoadThreshold %d exceeds 100", p.Scheduler.EffLoadThreshold)
	}
	if p.Scheduler.PerfLoadThreshold > 100 {
		return fmt.Errorf("perfLoadThreshold %d exceeds 100", p.Scheduler.PerfLoadThreshold)
	}
	if _, err := ParsePolicy(p.Accelerator.Policy); err != nil {
		return err
	}
	return nil
}

// SchedConfig converts the scheduler section to the scheduler's config.
func (p *PolicyFile) SchedConfig() sched.Config {
	return sched.Config{
		EffLoadThreshold:  p.Scheduler.EffLoadThreshold,
		PerfLoadThreshold: p.Scheduler.PerfLoadThreshold,
		EnableLoadBalance: p.Scheduler.EnableLoadBalance,
		RebalanceInterval: time.Duration(p.Scheduler.RebalanceIntervalMs) * time.Millisecond,
	}
}

// AdvisorPolicy returns the accelerator policy the file selects.
func (p *PolicyFile) AdvisorPolicy() npu.Policy {
	policy, err := ParsePolicy(p.Accelerator.Policy)
	if err != nil {
		return npu.Balanced
	}
	return policy
}

// ParsePolicy maps a policy name to the advisor policy. The empty name
// means balanced.
func ParsePolicy(name string) (npu.Policy, error) {
	switch name {
	case "", PolicyBalanced:
		return npu.Balanced, nil
	case PolicyASAP:
		return npu.ASAP, nil
	case PolicyMinPower:
		return npu.MinPower, nil
	default:
		return npu.Balanced, fmt.Errorf("unknown accelerator policy %q", name)
	}
}
