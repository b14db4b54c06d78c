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

package scenario

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ttbt-io/mapcheck/config"
	"github.com/ttbt-io/mapcheck/driver"
	"github.com/ttbt-io/mapcheck/driver/drivertest"
	"github.com/ttbt-io/mapcheck/session"
)

// testMap is a map instance whose camera moves complete after two isMoving
// calls.
const testMap = `
window.map = {
	zoom: 12,
	center: {lng: 138.3245, lat: 34.8671},
	moving: 0,
	layers: [
		{id: 'background', layout: {}},
		{id: 'shelters', layout: {visibility: 'visible'}},
		{id: 'hazard', layout: {visibility: 'none'}}
	],
	getZoom: function() { return this.zoom; },
	setZoom: function(z) { this.zoom = z; },
	zoomIn: function() { this.zoom++; this.moving = 2; },
	zoomOut: function() { this.zoom--; this.moving = 2; },
	getCenter: function() { return {lng: this.center.lng, lat: this.center.lat}; },
	setCenter: function(c) { this.center = {lng: c[0], lat: c[1]}; },
	flyTo: function(o) {
		this.center = {lng: o.center[0], lat: o.center[1]};
		if (o.zoom !== undefined) this.zoom = o.zoom;
		this.moving = 2;
	},
	getBounds: function() {
		var c = this.center;
		return {
			getNorth: function() { return c.lat + 0.05; },
			getSouth: function() { return c.lat - 0.05; },
			getEast: function() { return c.lng + 0.05; },
			getWest: function() { return c.lng - 0.05; }
		};
	},
	getBearing: function() { return 0; },
	getPitch: function() { return 0; },
	isMoving: function() {
		if (this.moving > 0) { this.moving--; return true; }
		return false;
	},
	isStyleLoaded: function() { return true; },
	getStyle: function() { return {layers: this.layers, sources: {base: {}, shelters: {}}}; },
	getLayer: function(id) {
		for (var i = 0; i < this.layers.length; i++) {
			if (this.layers[i].id === id) return this.layers[i];
		}
	},
	getLayoutProperty: function(id, name) { return this.getLayer(id).layout[name]; },
	queryRenderedFeatures: function(point, opts) {
		if (opts && opts.layers && opts.layers[0] !== 'shelters') return [];
		return [
			{id: 1, type: 'Feature', properties: {name: '焼津小学校'}, geometry: {type: 'Point', coordinates: [138.32, 34.86]}, layer: {id: 'shelters', type: 'circle'}},
			{id: 2, type: 'Feature', properties: {name: '焼津中学校'}, geometry: {type: 'Point', coordinates: [138.33, 34.87]}, layer: {id: 'shelters', type: 'circle'}}
		];
	}
};
`

// fixture is a fake map application served to scenarios through Hooks.
type fixture struct {
	page     *drivertest.Page
	hooks    *Hooks
	dir      string
	acquired int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{page: drivertest.New(), dir: t.TempDir()}
	p := f.page
	p.TitleText = "焼津市スマートシティマップ"
	p.Add(driver.CSS("#map"), &drivertest.Element{Box: driver.Box{Width: 1280, Height: 720}})
	p.MustRun(t, testMap)

	cfg := config.Default()
	cfg.BaseURL = "http://maps.test/"
	cfg.Suite.FastDelays = true
	cfg.Timeouts.Load = 100 * time.Millisecond
	cfg.Timeouts.Idle = time.Second
	cfg.Reports.Dir = f.dir
	cfg.Reports.ScreenshotDir = filepath.Join(f.dir, "screenshots")

	f.hooks = &Hooks{
		Config: cfg,
		Logger: zaptest.NewLogger(t),
		Acquire: func(_ context.Context, b config.Browser, opts ...session.Option) (*session.Session, error) {
			f.acquired++
			return session.Attach(p, b, opts...), nil
		},
		GoldenDir: filepath.Join(f.dir, "golden"),
	}
	return f
}

// world opens a world on the fixture page without running Open.
func (f *fixture) world(t *testing.T) *World {
	t.Helper()
	w, err := f.hooks.Before(t.Context(), t.Name())
	require.NoError(t, err)
	return w
}

// run executes steps in order, stopping at the first error.
func run(t *testing.T, w *World, steps ...Step) error {
	t.Helper()
	reg := DefaultRegistry()
	require.NoError(t, reg.Check(steps))
	for _, st := range steps {
		def, _ := reg.Lookup(st.Name)
		if err := def.Fn(t.Context(), w, st.Args); err != nil {
			return err
		}
	}
	return nil
}

func step(name string, args ...string) Step {
	return Step{Name: name, Args: args}
}
