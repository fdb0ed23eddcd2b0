// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package testutil holds synchronization helpers for tests that wait on
// background goroutines
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// WaitForCondition polls condition every 10ms until it returns true or the
// timeout expires
func WaitForCondition(
	t *testing.T,
	condition func() bool,
	timeout time.Duration,
	msg string,
) {
	t.Helper()
	require.Eventually(
		t,
		condition,
		timeout,
		10*time.Millisecond,
		msg,
	)
}

// RequireReceive waits for a value on ch. The test fails if the timeout
// expires or ch is closed.
func RequireReceive[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting: %s", msg)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for channel receive: %s", msg)
	}
	var zero T
	return zero
}

// RequireClosed waits for ch to be closed. Values received before the close
// fail the test.
func RequireClosed[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value received on channel: %v: %s", v, msg)
		}
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for channel close: %s", msg)
	}
}

// RequireNoReceive verifies that nothing arrives on ch for the given duration
func RequireNoReceive[T any](
	t *testing.T,
	ch <-chan T,
	duration time.Duration,
	msg string,
) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value received on channel: %v: %s", v, msg)
	case <-time.After(duration):
	}
}
