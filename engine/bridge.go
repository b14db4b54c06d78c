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

// Package engine bridges into the map engine instance living in the page.
//
// The engine is never held on the Go side. Every call looks it up again from
// an ordered list of global bindings, so an instance replaced by the
// application is picked up on the next call. When no binding resolves, or
// the resolved object lacks the method needed, reads return a documented
// default value and mutators do nothing.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/wait"
)

// MaxFeatures caps the number of features returned by QueryRenderedFeatures.
const MaxFeatures = 100

// Defaults returned when the engine or one of its methods is unavailable.
const (
	DefaultZoom    = -1.0
	DefaultBearing = 0.0
	DefaultPitch   = 0.0
)

// Binding is a named path from the page's global object to the engine.
type Binding struct {
	Name string
	Path []string
}

// ParseBinding parses a dotted path such as "geolonia.map".
func ParseBinding(s string) (Binding, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Binding{}, fmt.Errorf("empty binding")
	}
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return Binding{}, fmt.Errorf("invalid binding %q", s)
		}
	}
	return Binding{Name: s, Path: parts}, nil
}

// ParseBindings parses every entry of list, keeping its order.
func ParseBindings(list []string) ([]Binding, error) {
	out := make([]Binding, 0, len(list))
	for _, s := range list {
		b, err := ParseBinding(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// DefaultBindings are tried in this order.
func DefaultBindings() []Binding {
	return []Binding{
		{Name: "map", Path: []string{"map"}},
		{Name: "geoloniaMap", Path: []string{"geoloniaMap"}},
		{Name: "geolonia.map", Path: []string{"geolonia", "map"}},
	}
}

// Page is the part of the browser page the bridge needs.
type Page interface {
	wait.Poller
	Evaluate(ctx context.Context, fn string, args []any, out any) error
}

// Bridge reads and drives the map engine through script evaluation.
type Bridge struct {
	page        Page
	bindings    []Binding
	paths       [][]string
	logger      *zap.Logger
	loadTimeout time.Duration
	idleTimeout time.Duration
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithBindings replaces the default binding list.
func WithBindings(b ...Binding) Option {
	return func(br *Bridge) {
		br.bindings = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(br *Bridge) {
		br.logger = l
	}
}

// WithTimeouts overrides the style-load and idle deadlines. Zero keeps the
// default.
func WithTimeouts(load, idle time.Duration) Option {
	return func(br *Bridge) {
		if load > 0 {
			br.loadTimeout = load
		}
		if idle > 0 {
			br.idleTimeout = idle
		}
	}
}

// NewBridge returns a bridge over page.
func NewBridge(page Page, opts ...Option) *Bridge {
	br := &Bridge{
		page:        page,
		bindings:    DefaultBindings(),
		logger:      zap.NewNop(),
		loadTimeout: wait.LoadTimeout,
		idleTimeout: wait.IdleTimeout,
	}
	for _, opt := range opts {
		opt(br)
	}
	br.paths = make([][]string, len(br.bindings))
	for i, b := range br.bindings {
		br.paths[i] = b.Path
	}
	br.logger = br.logger.Named("engine")
	return br
}

// Bindings returns the configured binding list.
func (b *Bridge) Bindings() []Binding {
	return b.bindings
}

func (b *Bridge) eval(ctx context.Context, name, fn string, arg any, out any) error {
	if err := b.page.Evaluate(ctx, fn, []any{b.paths, arg}, out); err != nil {
		return fmt.Errorf("engine %s: %w", name, err)
	}
	return nil
}

func (b *Bridge) mutate(ctx context.Context, name, fn string, arg any) error {
	var applied bool
	if err := b.eval(ctx, name, fn, arg, &applied); err != nil {
		return err
	}
	if !applied {
		b.logger.Debug("engine method unavailable, ignored", zap.String("op", name))
	}
	return nil
}

// ResolvedBinding returns the name of the binding the engine currently
// resolves through, or "" when none does.
func (b *Bridge) ResolvedBinding(ctx context.Context) (string, error) {
	idx := -1
	if err := b.eval(ctx, "resolve", resolvedScript, nil, &idx); err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(b.bindings) {
		return "", nil
	}
	return b.bindings[idx].Name, nil
}

// HasEngine reports whether any binding resolves.
func (b *Bridge) HasEngine(ctx context.Context) (bool, error) {
	name, err := b.ResolvedBinding(ctx)
	return name != "", err
}

// Zoom returns the current zoom level, or DefaultZoom.
func (b *Bridge) Zoom(ctx context.Context) (float64, error) {
	z := DefaultZoom
	if err := b.eval(ctx, "getZoom", zoomScript, nil, &z); err != nil {
		return DefaultZoom, err
	}
	return z, nil
}

// SetZoom jumps to zoom level z.
func (b *Bridge) SetZoom(ctx context.Context, z float64) error {
	return b.mutate(ctx, "setZoom", setZoomScript, z)
}

// ZoomInAPI zooms in by one level through the engine.
func (b *Bridge) ZoomInAPI(ctx context.Context) error {
	return b.mutate(ctx, "zoomIn", zoomInScript, nil)
}

// ZoomOutAPI zooms out by one level through the engine.
func (b *Bridge) ZoomOutAPI(ctx context.Context) error {
	return b.mutate(ctx, "zoomOut", zoomOutScript, nil)
}

// Center returns the current center, or the zero coordinate.
func (b *Bridge) Center(ctx context.Context) (Coordinate, error) {
	var p orb.Point
	if err := b.eval(ctx, "getCenter", centerScript, nil, &p); err != nil {
		return Coordinate{}, err
	}
	return CoordinateFromPoint(p), nil
}

// SetCenter jumps to c.
func (b *Bridge) SetCenter(ctx context.Context, c Coordinate) error {
	p := c.Point()
	return b.mutate(ctx, "setCenter", setCenterScript, []float64{p[0], p[1]})
}

// FlyTo animates to c, and to zoom when it is not nil. The call returns as
// soon as the animation starts.
func (b *Bridge) FlyTo(ctx context.Context, c Coordinate, zoom *float64) error {
	p := c.Point()
	arg := map[string]any{
		"center": []float64{p[0], p[1]},
		"zoom":   zoom,
	}
	return b.mutate(ctx, "flyTo", flyToScript, arg)
}

// Bounds returns the visible bounds, or zero bounds.
func (b *Bridge) Bounds(ctx context.Context) (ViewBounds, error) {
	var vb ViewBounds
	if err := b.eval(ctx, "getBounds", boundsScript, nil, &vb); err != nil {
		return ViewBounds{}, err
	}
	return vb, nil
}

// Bearing returns the rotation in degrees, or DefaultBearing.
func (b *Bridge) Bearing(ctx context.Context) (float64, error) {
	v := DefaultBearing
	if err := b.eval(ctx, "getBearing", bearingScript, nil, &v); err != nil {
		return DefaultBearing, err
	}
	return v, nil
}

// Pitch returns the tilt in degrees, or DefaultPitch.
func (b *Bridge) Pitch(ctx context.Context) (float64, error) {
	v := DefaultPitch
	if err := b.eval(ctx, "getPitch", pitchScript, nil, &v); err != nil {
		return DefaultPitch, err
	}
	return v, nil
}

// IsMoving reports whether a camera transition is in progress.
func (b *Bridge) IsMoving(ctx context.Context) (bool, error) {
	var v bool
	err := b.eval(ctx, "isMoving", movingScript, nil, &v)
	return v, err
}

// IsStyleLoaded reports whether the style has finished loading.
func (b *Bridge) IsStyleLoaded(ctx context.Context) (bool, error) {
	var v bool
	err := b.eval(ctx, "isStyleLoaded", styleLoadedScript, nil, &v)
	return v, err
}

// LayerIDs lists the style's layer ids in render order.
func (b *Bridge) LayerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := b.eval(ctx, "getStyle", layerIDsScript, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SourceIDs lists the style's source ids.
func (b *Bridge) SourceIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := b.eval(ctx, "getStyle", sourceIDsScript, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// IsLayerVisible reports whether layer id exists and its visibility is not
// "none". Unknown layers are not visible.
func (b *Bridge) IsLayerVisible(ctx context.Context, id string) (bool, error) {
	var v bool
	err := b.eval(ctx, "getLayoutProperty", layerVisibleScript, id, &v)
	return v, err
}

// QueryRenderedFeatures returns at most MaxFeatures features matching q.
func (b *Bridge) QueryRenderedFeatures(ctx context.Context, q FeatureQuery) ([]RenderedFeature, error) {
	arg := map[string]any{"limit": MaxFeatures}
	if q.Point != nil {
		arg["point"] = map[string]float64{"x": q.Point.X, "y": q.Point.Y}
	}
	if len(q.Layers) > 0 {
		arg["layers"] = q.Layers
	}
	var features []RenderedFeature
	if err := b.eval(ctx, "queryRenderedFeatures", queryFeaturesScript, arg, &features); err != nil {
		return nil, err
	}
	if len(features) > MaxFeatures {
		features = features[:MaxFeatures]
	}
	return features, nil
}

// WaitForStyleLoad blocks until the style reports loaded. Without an engine
// it waits for the map canvas to be present instead.
func (b *Bridge) WaitForStyleLoad(ctx context.Context) error {
	return wait.Until(ctx, b.page, "map style load", styleLoadedPredicate, []any{b.paths, nil}, b.loadTimeout)
}

// WaitForIdle blocks until no camera transition is in progress. It returns
// immediately when no engine is resolvable.
func (b *Bridge) WaitForIdle(ctx context.Context) error {
	return wait.Until(ctx, b.page, "map idle", idlePredicate, []any{b.paths, nil}, b.idleTimeout)
}
