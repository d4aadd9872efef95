/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package cpuset provides a typed set of CPU core ids. Core groups travel
// through the system as Set values; the raw interrupt-controller target mask
// is produced only at the point a signal is sent.
package cpuset

import (
	"fmt"
	"sort"
	"strings"
)

// CoreID identifies a single CPU core.
type CoreID uint32

// MaxMaskCores is the number of cores representable in a signal target mask.
const MaxMaskCores = 32

// Set is an immutable collection of core ids.
type Set struct {
	elems map[CoreID]struct{}
}

// New builds a Set from the given core ids.
func New(cores ...CoreID) Set {
	s := Set{elems: make(map[CoreID]struct{}, len(cores))}
	for _, c := range cores {
		s.elems[c] = struct{}{}
	}
	return s
}

// FromMask builds a Set from a bitmask where bit n marks core n.
func FromMask(mask uint32) Set {
	s := Set{elems: make(map[CoreID]struct{})}
	for i := 0; i < MaxMaskCores; i++ {
		if mask&(1<<uint(i)) != 0 {
			s.elems[CoreID(i)] = struct{}{}
		}
	}
	return s
}

// Mask converts the set to a bitmask where bit n marks core n. Cores whose
// id does not fit in the mask are ignored.
func (s Set) Mask() uint32 {
	var mask uint32
	for c := range s.elems {
		if c < MaxMaskCores {
			mask |= 1 << uint(c)
		}
	}
	return mask
}

// Contains reports whether core is in the set.
func (s Set) Contains(core CoreID) bool {
	_, ok := s.elems[core]
	return ok
}

// Size returns the number of cores in the set.
func (s Set) Size() int {
	return len(s.elems)
}

// IsEmpty reports whether the set has no cores.
func (s Set) IsEmpty() bool {
	return len(s.elems) == 0
}

// Union returns a new Set holding the cores of both sets.
func (s Set) Union(other Set) Set {
	merged := Set{elems: make(map[CoreID]struct{}, len(s.elems)+len(other.elems))}
	for c := range s.elems {
		merged.elems[c] = struct{}{}
	}
	for c := range other.elems {
		merged.elems[c] = struct{}{}
	}
	return merged
}

// List returns the core ids in ascending order.
func (s Set) List() []CoreID {
	out := make([]CoreID, 0, len(s.elems))
	for c := range s.elems {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as a comma separated id list, e.g. "0,1,2,3".
func (s Set) String() string {
	ids := s.List()
	parts := make([]string, 0, len(ids))
	for _, c := range ids {
		parts = append(parts, fmt.Sprintf("%d", c))
	}
	return strings.Join(parts, ",")
}

// Range builds the Set of ids in [start, end).
func Range(start, end CoreID) Set {
	s := Set{elems: make(map[CoreID]struct{}, int(end-start))}
	for c := start; c < end; c++ {
		s.elems[c] = struct{}{}
	}
	return s
}
