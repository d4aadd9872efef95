/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package utils offers small helpers shared by the HTTP layer.
package utils

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the originating client address of an HTTP request,
// preferring proxy headers over the socket peer.
func ClientIP(r *http.Request) string {
	forwarded := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	if len(forwarded) >= 1 {
		if ip := strings.TrimSpace(forwarded[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if ip, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil {
		return ip
	}
	return ""
}
