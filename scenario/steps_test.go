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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttbt-io/mapcheck/driver"
	"github.com/ttbt-io/mapcheck/driver/drivertest"
	"github.com/ttbt-io/mapcheck/engine"
	"github.com/ttbt-io/mapcheck/mappage"
)

func unionOf(t *testing.T, a mappage.Affordance) driver.Selector {
	t.Helper()
	sel, ok := mappage.DefaultCatalog()[a].Union()
	require.True(t, ok, a)
	return sel
}

func assertionFailed(t *testing.T, err error) *AssertionError {
	t.Helper()
	var ae *AssertionError
	require.True(t, errors.As(err, &ae), "err = %v", err)
	return ae
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{"open the map", "assert zoom", "select layers", "click marker", "search", "assert layers match golden"} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, name)
	}
	names := r.Names()
	assert.IsNonDecreasing(t, names)

	assert.NoError(t, r.Check([]Step{step("open the map"), step("fly to", "34.86", "138.32"), step("fly to", "34.86", "138.32", "14")}))
	assert.ErrorIs(t, r.Check([]Step{step("open the map"), step("launch rockets")}), ErrUndefinedStep)
	assert.ErrorContains(t, r.Check([]Step{step("set zoom")}), "takes 1 to 1 arguments, got 0")
	assert.Error(t, r.Check([]Step{step("open the map", "now")}))

	assert.Panics(t, func() {
		r.Register("open the map", 0, 0, func(context.Context, *World, Args) error { return nil })
	})
}

func TestArgs(t *testing.T) {
	a := Args{"34.8671", " 138.3245 ", "12", "x"}

	c, err := a.Coordinate(0)
	require.NoError(t, err)
	assert.Equal(t, engine.Coordinate{Lat: 34.8671, Lng: 138.3245}, c)

	n, err := a.Int(2)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = a.Float(3)
	assert.ErrorContains(t, err, "argument 4")
	_, err = a.String(4)
	assert.ErrorContains(t, err, "missing argument 5")
	_, err = a.Coordinate(3)
	assert.Error(t, err)
}

func TestCloseTo(t *testing.T) {
	assert.True(t, closeTo(12.04, 12, 1))
	assert.False(t, closeTo(12.06, 12, 1))
	assert.True(t, closeTo(138.3245, 138.32, 2))
	assert.False(t, closeTo(34.8671, 34.86, 2))
}

func TestMapSteps(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)

	require.NoError(t, run(t, w,
		step("open the map"),
		step("assert title contains", "焼津"),
		step("assert map visible"),
		step("assert engine bound"),
		step("wait for style load"),
		step("assert affordance exists", "map"),
		step("assert affordance missing", "current-location"),
	))
	assert.Equal(t, "http://maps.test/", f.page.URL)

	err := run(t, w, step("assert title contains", "東京"))
	ae := assertionFailed(t, err)
	assert.Equal(t, "焼津市スマートシティマップ", ae.Actual)

	err = run(t, w, step("assert affordance exists", "compass"))
	assert.ErrorIs(t, err, mappage.ErrUnknownAffordance)

	require.NoError(t, run(t, w, step("take screenshot", "after load")))
	require.Len(t, w.Screenshots, 1)
	assert.FileExists(t, w.Screenshots[0])
	assert.Equal(t, filepath.Join(f.dir, "screenshots"), filepath.Dir(w.Screenshots[0]))
}

func TestZoomSteps(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)

	require.NoError(t, run(t, w,
		step("record zoom"),
		step("click zoom in"),
		step("assert zoom increased"),
		step("assert zoom", "13"),
		step("record zoom"),
		step("zoom out via api"),
		step("zoom out via api"),
		step("assert zoom decreased"),
		step("assert map idle"),
		step("assert zoom at least", "10.5"),
		step("assert zoom at most", "11"),
		step("set zoom", "15.5"),
		step("assert zoom", "15.5"),
	))

	err := run(t, w, step("assert zoom decreased"))
	assertionFailed(t, err)

	w.Memory.Reset()
	err = run(t, w, step("assert zoom decreased"))
	assert.ErrorIs(t, err, ErrNotRecorded)

	err = run(t, w, step("assert zoom", "abc"))
	assert.ErrorContains(t, err, "argument 1")
}

func TestCenterSteps(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	f.page.OnDrag = func(from, to driver.Point) {
		f.page.VM.RunString(`window.map.center.lng -= 0.01;`)
	}

	require.NoError(t, run(t, w,
		step("set center", "34.8671", "138.3245"),
		step("assert center", "34.87", "138.32"),
		step("assert bounds valid"),
		step("assert bounds contain", "34.8671", "138.3245"),
	))
	assert.Equal(t, 138.3245, f.page.MustRun(t, `window.map.center.lng`).ToFloat())
	assert.Equal(t, 34.8671, f.page.MustRun(t, `window.map.center.lat`).ToFloat())

	err := run(t, w, step("assert center moved"))
	assert.ErrorIs(t, err, ErrNotRecorded)

	require.NoError(t, run(t, w,
		step("record center"),
		step("drag map right", "200"),
		step("assert center moved"),
		step("assert center moved", "500"),
	))
	assertionFailed(t, run(t, w, step("assert center moved", "2000")))

	require.NoError(t, run(t, w,
		step("fly to", "35.0", "138.5", "14"),
		step("wait for map idle"),
		step("assert center", "35", "138.5"),
		step("assert zoom", "14"),
		step("assert bearing", "0"),
		step("assert pitch", "0"),
	))

	err = run(t, w, step("assert bounds contain", "34.8671", "138.3245"))
	assertionFailed(t, err)
}

func TestStyleSteps(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)

	require.NoError(t, run(t, w,
		step("assert layer exists", "shelters"),
		step("assert layer visible", "shelters"),
		step("assert layer hidden", "hazard"),
		step("assert layer hidden", "no-such-layer"),
		step("assert source exists", "shelters"),
		step("assert features rendered"),
		step("assert layer features at least", "shelters", "2"),
		step("assert features at point", "640", "360"),
	))

	assertionFailed(t, run(t, w, step("assert layer exists", "rivers")))
	assertionFailed(t, run(t, w, step("assert layer visible", "hazard")))
	assertionFailed(t, run(t, w, step("assert layer features at least", "hazard", "1")))
}

func TestPointerSteps(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	loc := &drivertest.Element{}
	f.page.Add(driver.CSS(".geolocate"), loc)

	require.NoError(t, run(t, w,
		step("drag map", "-50", "20"),
		step("double click map center"),
		step("double click map at", "100", "200"),
		step("click current location"),
	))
	assert.Equal(t, []string{
		"drag 640,360->590,380",
		"dblclick 640,360",
		"dblclick 100,200",
		"click .geolocate[0]",
	}, f.page.Actions)
	assert.Equal(t, 1, loc.Clicks)
}

func addLayerPanel(f *fixture, t *testing.T, names ...string) map[string]*drivertest.Element {
	panel := &drivertest.Element{Hidden: true}
	f.page.Add(driver.CSS(".layer-panel"), panel)
	f.page.Add(driver.CSS(".layer-toggle"), &drivertest.Element{OnClick: func() { panel.Hidden = false }})
	toggles := make(map[string]*drivertest.Element)
	for _, n := range names {
		f.page.Add(unionOf(t, mappage.LayerEntry), &drivertest.Element{Text: n})
		toggles[n] = &drivertest.Element{}
		f.page.Add(driver.Text(n), toggles[n])
	}
	return toggles
}

func TestLayerSteps(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	toggles := addLayerPanel(f, t, "避難所", "ハザードマップ", "AED")

	assertionFailed(t, run(t, w, step("assert layer panel visible")))
	require.NoError(t, run(t, w,
		step("open layer panel"),
		step("assert layer panel visible"),
		step("assert layer options shown"),
		step("select layers"),
	))
	assert.Equal(t, []string{"避難所", "ハザードマップ"}, w.Memory.SelectedLayers)
	assert.Equal(t, 1, toggles["ハザードマップ"].Clicks)

	require.NoError(t, run(t, w, step("disable selected layer")))
	assert.Equal(t, 2, toggles["避難所"].Clicks)

	require.NoError(t, run(t, w, step("select layers", "10")))
	assert.Len(t, w.Memory.SelectedLayers, 3)

	require.NoError(t, run(t, w, step("enable first layer")))
	assert.Equal(t, []string{"避難所"}, w.Memory.SelectedLayers)

	w.Memory.Reset()
	require.NoError(t, run(t, w, step("disable selected layer")), "nothing selected is not an error")
}

func TestLayerOptionsMissing(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	assertionFailed(t, run(t, w, step("assert layer options shown")))
	require.NoError(t, run(t, w, step("select layer")))
	assert.Empty(t, w.Memory.SelectedLayers)
}

func TestGoldenLayers(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	addLayerPanel(f, t, "避難所", "ハザードマップ")

	err := run(t, w, step("assert layers match golden", "layers.txt"))
	assert.ErrorContains(t, err, "golden file missing")

	w.UpdateGoldens = true
	require.NoError(t, run(t, w, step("assert layers match golden", "layers.txt")))
	data, err := os.ReadFile(filepath.Join(f.dir, "golden", "layers.txt"))
	require.NoError(t, err)
	assert.Equal(t, "避難所\nハザードマップ\n", string(data))

	w.UpdateGoldens = false
	require.NoError(t, run(t, w, step("assert layers match golden", "layers.txt")))

	f.page.Add(unionOf(t, mappage.LayerEntry), &drivertest.Element{Text: "AED"})
	ae := assertionFailed(t, run(t, w, step("assert layers match golden", "layers.txt")))
	assert.Contains(t, ae.Actual, "+AED")
}

func TestMarkerSteps(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)

	assertionFailed(t, run(t, w, step("assert markers shown")))
	require.NoError(t, run(t, w, step("ensure markers shown")))
	assert.Equal(t, 11.0, f.page.MustRun(t, `window.map.zoom`).ToFloat(), "zoomed out looking for markers")
	require.NoError(t, run(t, w, step("ensure popup shown")), "no markers, nothing to click")

	popup := &drivertest.Element{Hidden: true}
	f.page.Add(driver.CSS(".popup"), popup)
	show := func(text string) func() {
		return func() {
			popup.Hidden = false
			popup.Text = text
		}
	}
	f.page.Add(unionOf(t, mappage.Marker),
		&drivertest.Element{OnClick: show("焼津小学校")},
		&drivertest.Element{OnClick: show("焼津中学校")},
	)

	assertionFailed(t, run(t, w, step("assert popup visible")))
	require.NoError(t, run(t, w,
		step("assert markers shown"),
		step("assert multiple markers"),
		step("ensure markers shown"),
		step("click first marker"),
		step("assert popup visible"),
		step("assert popup has content"),
		step("record popup content"),
		step("click another marker"),
		step("assert popup content changed"),
	))
	require.NotNil(t, w.Memory.PopupContent)
	assert.Equal(t, "焼津小学校", *w.Memory.PopupContent)
	assert.Equal(t, "焼津中学校", popup.Text)

	// Same content twice is logged, not failed.
	require.NoError(t, run(t, w, step("record popup content"), step("assert popup content changed")))

	closeBtn := &drivertest.Element{OnClick: func() { popup.Hidden = true }}
	f.page.Add(driver.CSS(".popup .close"), closeBtn)
	require.NoError(t, run(t, w,
		step("close popup"),
		step("assert popup hidden"),
	))
	assert.Equal(t, 1, closeBtn.Clicks)

	require.NoError(t, run(t, w, step("ensure popup shown"), step("click marker", "1")))
	assert.Equal(t, "焼津中学校", popup.Text)
	assert.ErrorContains(t, run(t, w, step("click marker", "first")), "argument 1")
}

func TestSearchSteps(t *testing.T) {
	f := newFixture(t)
	w := f.world(t)
	in := &drivertest.Element{}
	f.page.Add(driver.CSS(`input[type="search"]`), in)
	f.page.Add(driver.CSS(`button[type="submit"]`), &drivertest.Element{})

	require.NoError(t, run(t, w,
		step("assert search input visible"),
		step("search", "焼津駅"),
		step("submit search"),
		step("assert search completed"),
	))
	assert.Equal(t, "焼津駅", in.Value)

	require.NoError(t, run(t, w,
		step("clear search"),
		step("assert search cleared"),
	))
	assert.Empty(t, in.Value)

	in.Hidden = true
	assertionFailed(t, run(t, w, step("assert search input visible")))
}
