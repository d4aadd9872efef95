/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package common implement some test utilities.
package common

import (
	"reflect"
	"testing"
)

// AssertEquals fails the test when expect and act differ by DeepEqual.
func AssertEquals(expect, act interface{}, t testing.TB) {
	t.Helper()
	if !reflect.DeepEqual(expect, act) {
		t.Fatalf("expect: %v (%T), got: %v (%T)", expect, expect, act, act)
	}
}

// AssertIsNil fails the test when obtained is non-nil.
func AssertIsNil(obtained interface{}, t testing.TB) {
	t.Helper()
	if !isNil(obtained) {
		t.Fatalf("expected nil, got: %v", obtained)
	}
}

// AssertNotNil fails the test when obtained is nil.
func AssertNotNil(obtained interface{}, t testing.TB) {
	t.Helper()
	if isNil(obtained) {
		t.Fatalf("expected non-nil, got: %v", obtained)
	}
}

// isNil answers for both untyped nil and nil-valued reference kinds.
func isNil(obj interface{}) bool {
	if obj == nil {
		return true
	}
	switch v := reflect.ValueOf(obj); v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
