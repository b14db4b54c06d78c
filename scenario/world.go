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

// Package scenario runs map scenarios: named step sequences executed against
// a fresh browser session each, with per-scenario memory for steps that
// compare against earlier values.
package scenario

import (
	"time"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/engine"
	"github.com/ttbt-io/mapcheck/mappage"
	"github.com/ttbt-io/mapcheck/session"
)

// Memory holds values recorded by one step for a later step of the same
// scenario. It starts empty with every scenario and is never shared.
type Memory struct {
	SavedZoom      *float64
	SavedCenter    *engine.Coordinate
	SelectedLayers []string
	PopupContent   *string
}

// Reset forgets everything recorded.
func (m *Memory) Reset() {
	*m = Memory{}
}

// Waits are the fixed pauses some steps take before looking at the page.
type Waits struct {
	MarkerLoad    time.Duration
	MarkerZoomOut time.Duration
	PopupShow     time.Duration
	SearchSubmit  time.Duration
	SearchClear   time.Duration
}

// DefaultWaits returns the waits tuned against the live site.
func DefaultWaits() Waits {
	return Waits{
		MarkerLoad:    2 * time.Second,
		MarkerZoomOut: time.Second,
		PopupShow:     500 * time.Millisecond,
		SearchSubmit:  time.Second,
		SearchClear:   500 * time.Millisecond,
	}
}

// World is the state of one running scenario.
type World struct {
	Name    string
	Session *session.Session
	Map     *mappage.MapPage
	Memory  Memory
	Waits   Waits
	Logger  *zap.Logger

	ScreenshotDir string
	GoldenDir     string
	UpdateGoldens bool

	// Screenshots lists every screenshot taken during the scenario.
	Screenshots []string
}

// Bridge returns the engine bridge of the scenario's page.
func (w *World) Bridge() *engine.Bridge {
	return w.Map.Bridge()
}
