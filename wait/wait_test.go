// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ttbt-io/mapcheck/driver/drivertest"
)

func TestSleep(t *testing.T) {
	start := time.Now()
	if err := Sleep(t.Context(), 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if d := time.Since(start); d < 20*time.Millisecond {
		t.Errorf("Sleep returned after %v", d)
	}

	if err := Sleep(t.Context(), 0); err != nil {
		t.Errorf("Sleep(0): %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestUntil(t *testing.T) {
	p := drivertest.New()
	p.MustRun(t, `window.ticks = 0;`)

	err := Until(t.Context(), p, "three ticks", `function(n) { window.ticks++; return window.ticks >= n; }`, []any{3}, time.Second)
	if err != nil {
		t.Fatalf("Until: %v", err)
	}
	if got := p.MustRun(t, `window.ticks`).ToInteger(); got != 3 {
		t.Errorf("ticks = %d, want 3", got)
	}
}

func TestUntilTimeout(t *testing.T) {
	p := drivertest.New()
	err := Until(t.Context(), p, "never", `function() { return false; }`, nil, 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Until = %v, want ErrTimeout", err)
	}
}

func TestUntilScriptError(t *testing.T) {
	p := drivertest.New()
	err := Until(t.Context(), p, "broken", `function() { throw new Error('boom'); }`, nil, time.Second)
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("Until = %v, want script error", err)
	}
}
