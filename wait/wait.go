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

// Package wait holds the two synchronization primitives used against the
// live map: unconditional delays and bounded condition polls.
//
// They are not interchangeable. A condition poll ends as soon as the page
// reports the awaited state and fails hard on its deadline. A fixed delay
// guesses how long an unobservable transition takes; every call site is a
// known source of flakiness whose duration needs revalidating whenever the
// application's animations change.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ttbt-io/mapcheck/driver"
)

// ErrTimeout is wrapped by errors returned from Until when the deadline
// passes before the predicate holds.
var ErrTimeout = errors.New("condition not met before deadline")

// Deadlines for the engine conditions.
const (
	LoadTimeout = 30 * time.Second
	IdleTimeout = 10 * time.Second
)

// Poller evaluates an in-page predicate until it holds.
type Poller interface {
	Poll(ctx context.Context, fn string, args []any, timeout time.Duration) error
}

// Sleep pauses for d, or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Until polls predicate (a JavaScript function source called with args)
// until it returns a truthy value. name describes the condition in errors.
func Until(ctx context.Context, p Poller, name, predicate string, args []any, timeout time.Duration) error {
	err := p.Poll(ctx, predicate, args, timeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, driver.ErrPollTimeout):
		return fmt.Errorf("waiting for %s: %w (%v)", name, ErrTimeout, timeout)
	default:
		return fmt.Errorf("waiting for %s: %w", name, err)
	}
}
