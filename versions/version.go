/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package versions record the program version
package versions

var (
	// BuildVersion record the program build version, injected at link time
	BuildVersion string
	// BuildName record the program build name, injected at link time
	BuildName string
)

// Version returns the build version, or "unknown" for binaries built
// without the link-time injection.
func Version() string {
	if BuildVersion == "" {
		return "unknown"
	}
	return BuildVersion
}
