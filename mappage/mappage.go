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

// Package mappage drives the map application's user interface.
//
// Every control is found through a Locator of selector variants. The first
// variant with a visible first match wins. A control that cannot be found
// turns the corresponding action into a no-op and the corresponding query
// into false or empty; only failures of the browser itself are returned as
// errors.
package mappage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/driver"
	"github.com/ttbt-io/mapcheck/engine"
	"github.com/ttbt-io/mapcheck/wait"
)

// DefaultBaseURL is the application under test.
const DefaultBaseURL = "https://maps.yaizu-smartcity.jp/"

// ErrUnknownAffordance is returned for affordance names missing from the
// catalog.
var ErrUnknownAffordance = errors.New("unknown affordance")

const visiblePollInterval = 100 * time.Millisecond

// Delays are the fixed pauses taken after actions whose effect the page does
// not signal. Each one is a guess at an animation or network round trip.
type Delays struct {
	MapSettle       time.Duration
	OverlayCheck    time.Duration
	OverlayClick    time.Duration
	Escape          time.Duration
	Search          time.Duration
	LayerPanel      time.Duration
	LayerToggle     time.Duration
	MarkerClick     time.Duration
	PopupClose      time.Duration
	ZoomButton      time.Duration
	ZoomAPI         time.Duration
	SetView         time.Duration
	FlyTo           time.Duration
	Pan             time.Duration
	DoubleClick     time.Duration
	CurrentLocation time.Duration
}

// DefaultDelays returns the delays tuned against the live site.
func DefaultDelays() Delays {
	return Delays{
		MapSettle:       2 * time.Second,
		OverlayCheck:    time.Second,
		OverlayClick:    500 * time.Millisecond,
		Escape:          300 * time.Millisecond,
		Search:          time.Second,
		LayerPanel:      500 * time.Millisecond,
		LayerToggle:     500 * time.Millisecond,
		MarkerClick:     500 * time.Millisecond,
		PopupClose:      300 * time.Millisecond,
		ZoomButton:      time.Second,
		ZoomAPI:         500 * time.Millisecond,
		SetView:         500 * time.Millisecond,
		FlyTo:           2 * time.Second,
		Pan:             500 * time.Millisecond,
		DoubleClick:     500 * time.Millisecond,
		CurrentLocation: time.Second,
	}
}

// MapPage is the map application open in one browser page.
type MapPage struct {
	page        driver.Page
	bridge      *engine.Bridge
	catalog     Catalog
	baseURL     string
	delays      Delays
	loadTimeout time.Duration
	logger      *zap.Logger
}

// Option configures a MapPage.
type Option func(*MapPage)

// WithBaseURL sets the URL opened by Open.
func WithBaseURL(u string) Option {
	return func(m *MapPage) {
		m.baseURL = u
	}
}

// WithCatalog replaces DefaultCatalog.
func WithCatalog(c Catalog) Option {
	return func(m *MapPage) {
		m.catalog = c
	}
}

// WithDelays replaces DefaultDelays.
func WithDelays(d Delays) Option {
	return func(m *MapPage) {
		m.delays = d
	}
}

// WithLoadTimeout sets how long WaitForMapLoad waits for the map container.
func WithLoadTimeout(d time.Duration) Option {
	return func(m *MapPage) {
		m.loadTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *MapPage) {
		m.logger = l
	}
}

// New returns a MapPage over page. bridge is used for the zoom fallbacks and
// camera helpers.
func New(page driver.Page, bridge *engine.Bridge, opts ...Option) *MapPage {
	m := &MapPage{
		page:        page,
		bridge:      bridge,
		catalog:     DefaultCatalog(),
		baseURL:     DefaultBaseURL,
		delays:      DefaultDelays(),
		loadTimeout: wait.LoadTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("mappage")
	return m
}

// Page returns the underlying browser page.
func (m *MapPage) Page() driver.Page {
	return m.page
}

// Bridge returns the engine bridge.
func (m *MapPage) Bridge() *engine.Bridge {
	return m.bridge
}

// Catalog returns the locators in use.
func (m *MapPage) Catalog() Catalog {
	return m.catalog
}

// target is a resolved element.
type target struct {
	sel     driver.Selector
	nth     int
	found   bool
	visible bool
}

func (m *MapPage) locator(a Affordance) (Locator, error) {
	loc, ok := m.catalog[a]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAffordance, a)
	}
	return loc, nil
}

// resolve picks the first variant whose first match is visible, or failing
// that the first variant with any match at all.
func (m *MapPage) resolve(ctx context.Context, a Affordance) (target, error) {
	loc, err := m.locator(a)
	if err != nil {
		return target{}, err
	}
	var fallback target
	for _, sel := range loc {
		vis, err := m.page.IsVisible(ctx, sel, 0)
		if err != nil {
			return target{}, fmt.Errorf("resolve %s: %w", a, err)
		}
		if vis {
			return target{sel: sel, found: true, visible: true}, nil
		}
		if fallback.found {
			continue
		}
		n, err := m.page.Count(ctx, sel)
		if err != nil {
			return target{}, fmt.Errorf("resolve %s: %w", a, err)
		}
		if n > 0 {
			fallback = target{sel: sel, found: true}
		}
	}
	if !fallback.found {
		m.logger.Debug("affordance not found", zap.String("affordance", string(a)))
	}
	return fallback, nil
}

// waitVisible waits up to timeout for any variant of a to become visible.
func (m *MapPage) waitVisible(ctx context.Context, a Affordance, timeout time.Duration) (target, error) {
	loc, err := m.locator(a)
	if err != nil {
		return target{}, err
	}
	if len(loc) == 1 {
		vis, err := m.page.WaitVisible(ctx, loc[0], 0, timeout)
		if err != nil {
			return target{}, err
		}
		return target{sel: loc[0], found: vis, visible: vis}, nil
	}
	deadline := time.Now().Add(timeout)
	for {
		t, err := m.resolve(ctx, a)
		if err != nil || t.visible {
			return t, err
		}
		left := time.Until(deadline)
		if left <= 0 {
			return t, nil
		}
		if err := wait.Sleep(ctx, min(left, visiblePollInterval)); err != nil {
			return target{}, err
		}
	}
}

// click clicks t. An element that vanished in the meantime is ignored.
func (m *MapPage) click(ctx context.Context, t target) error {
	err := m.page.Click(ctx, t.sel, t.nth)
	if errors.Is(err, driver.ErrNoElement) {
		m.logger.Debug("element gone before click", zap.Stringer("selector", t.sel))
		return nil
	}
	return err
}

func (m *MapPage) visible(ctx context.Context, a Affordance) (bool, error) {
	t, err := m.resolve(ctx, a)
	return t.visible, err
}

// Open navigates to the base URL and waits for the map to load.
func (m *MapPage) Open(ctx context.Context) error {
	m.logger.Info("opening map", zap.String("url", m.baseURL))
	if err := m.page.Navigate(ctx, m.baseURL); err != nil {
		return fmt.Errorf("open %s: %w", m.baseURL, err)
	}
	return m.WaitForMapLoad(ctx)
}

// WaitForMapLoad waits for the map container to become visible, lets the
// tiles settle, then dismisses blocking overlays. A container that never
// shows up fails with wait.ErrTimeout.
func (m *MapPage) WaitForMapLoad(ctx context.Context) error {
	t, err := m.waitVisible(ctx, MapContainer, m.loadTimeout)
	if err != nil {
		return fmt.Errorf("waiting for map container: %w", err)
	}
	if !t.visible {
		return fmt.Errorf("waiting for map container: %w (%v)", wait.ErrTimeout, m.loadTimeout)
	}
	if err := wait.Sleep(ctx, m.delays.MapSettle); err != nil {
		return err
	}
	m.DismissOverlays(ctx)
	return ctx.Err()
}

// Title returns the document title.
func (m *MapPage) Title(ctx context.Context) (string, error) {
	return m.page.Title(ctx)
}

// IsMapVisible reports whether the map container is visible.
func (m *MapPage) IsMapVisible(ctx context.Context) (bool, error) {
	return m.visible(ctx, MapContainer)
}

// AffordanceExists reports whether any variant of the named affordance
// matches at least one element, visible or not.
func (m *MapPage) AffordanceExists(ctx context.Context, name string) (bool, error) {
	t, err := m.resolve(ctx, Affordance(name))
	return t.found, err
}
