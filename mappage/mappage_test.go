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

package mappage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ttbt-io/mapcheck/driver"
	"github.com/ttbt-io/mapcheck/driver/drivertest"
	"github.com/ttbt-io/mapcheck/engine"
	"github.com/ttbt-io/mapcheck/wait"
)

func newMapPage(t *testing.T, opts ...Option) (*MapPage, *drivertest.Page) {
	t.Helper()
	p := drivertest.New()
	br := engine.NewBridge(p, engine.WithLogger(zaptest.NewLogger(t)))
	opts = append([]Option{
		WithDelays(Delays{}),
		WithLoadTimeout(50 * time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	return New(p, br, opts...), p
}

func union(t *testing.T, a Affordance) driver.Selector {
	t.Helper()
	sel, ok := DefaultCatalog()[a].Union()
	require.True(t, ok, a)
	return sel
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	for _, a := range []Affordance{
		MapContainer, SearchInput, SearchButton, LayerToggle, LayerPanel, LayerEntry,
		Marker, Popup, PopupClose, ZoomInButton, ZoomOutButton, CurrentLocation, OverlayClose,
	} {
		assert.NotEmpty(t, cat[a], a)
	}
	assert.Len(t, cat.Names(), 13)

	assert.Equal(t, driver.CSS(`.marker, .leaflet-marker-icon, [class*="marker"], .mapboxgl-marker`), union(t, Marker))
	_, ok := cat[OverlayClose].Union()
	assert.False(t, ok, "has-text variants cannot be joined")

	assert.Equal(t, driver.CSS(".popup .close"), cat[PopupClose][0])
	assert.Equal(t, driver.Selector{CSS: ".dialog button", HasText: "同意"}, cat[OverlayClose][6])
}

func TestParseCatalog(t *testing.T) {
	cat, err := ParseCatalog([]byte(`
replace: [zoom-in]
affordances:
  zoom-in:
    - css: .maplibregl-ctrl-zoom-in
  marker:
    - css: .poi-pin
  popup-close:
    - css: .dialog button
      hasText: 閉じる
`))
	require.NoError(t, err)
	assert.Equal(t, Locator{driver.CSS(".maplibregl-ctrl-zoom-in")}, cat[ZoomInButton])
	assert.Equal(t, driver.CSS(".poi-pin"), cat[Marker][0])
	assert.Len(t, cat[Marker], len(DefaultCatalog()[Marker])+1)
	assert.Equal(t, driver.Selector{CSS: ".dialog button", HasText: "閉じる"}, cat[PopupClose][0])

	_, err = ParseCatalog([]byte("replace: [marker]\n"))
	assert.Error(t, err)
	_, err = ParseCatalog([]byte("affordances:\n  marker:\n    - {}\n"))
	assert.Error(t, err)
	_, err = ParseCatalog([]byte("affordances: [\n"))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	m, p := newMapPage(t, WithBaseURL("http://example.test/"))
	p.Add(driver.CSS("#map"), &drivertest.Element{Hidden: true})
	p.Add(driver.CSS(".map-container"), &drivertest.Element{})
	terms := &drivertest.Element{}
	terms.OnClick = func() { terms.Hidden = true }
	p.Add(driver.Selector{CSS: ".dialog button", HasText: "同意"}, terms)

	require.NoError(t, m.Open(t.Context()))

	assert.Equal(t, "http://example.test/", p.URL)
	assert.Equal(t, 1, terms.Clicks)
	assert.Equal(t, []string{
		"navigate http://example.test/",
		`click .dialog button:has-text("同意")[0]`,
		"key Escape",
	}, p.Actions)

	vis, err := m.IsMapVisible(t.Context())
	require.NoError(t, err)
	assert.True(t, vis)
}

func TestWaitForMapLoadTimeout(t *testing.T) {
	m, p := newMapPage(t)
	p.Add(driver.CSS("#map"), &drivertest.Element{Hidden: true})

	err := m.WaitForMapLoad(t.Context())
	require.ErrorIs(t, err, wait.ErrTimeout)
	assert.Empty(t, p.Actions, "overlays are not touched when the map never loads")
}

func TestDismissOverlaysNeverFails(t *testing.T) {
	m, p := newMapPage(t)
	m.DismissOverlays(t.Context())
	assert.Equal(t, []string{"key Escape"}, p.Actions)

	p.Closed = true
	m.DismissOverlays(t.Context())
}

func TestResolvePrefersVisibleVariant(t *testing.T) {
	m, p := newMapPage(t)
	p.Add(driver.CSS(".popup"), &drivertest.Element{Text: "stale", Hidden: true})
	p.Add(driver.CSS(".mapboxgl-popup"), &drivertest.Element{Text: "焼津市役所"})

	text, err := m.PopupContent(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "焼津市役所", text)

	p.Remove(driver.CSS(".mapboxgl-popup"))
	text, err = m.PopupContent(t.Context())
	require.NoError(t, err)
	assert.Empty(t, text)
	vis, err := m.IsPopupVisible(t.Context())
	require.NoError(t, err)
	assert.False(t, vis)

	exists, err := m.AffordanceExists(t.Context(), "popup")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAffordanceExists(t *testing.T) {
	m, p := newMapPage(t)
	ok, err := m.AffordanceExists(t.Context(), "current-location")
	require.NoError(t, err)
	assert.False(t, ok)

	p.Add(driver.CSS(".geolocate"), &drivertest.Element{Hidden: true})
	ok, err = m.AffordanceExists(t.Context(), "current-location")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = m.AffordanceExists(t.Context(), "compass")
	assert.ErrorIs(t, err, ErrUnknownAffordance)
}

func TestSearch(t *testing.T) {
	ctx := t.Context()

	t.Run("button", func(t *testing.T) {
		m, p := newMapPage(t)
		in := &drivertest.Element{}
		p.Add(driver.CSS(`input[placeholder*="検索"]`), in)
		p.Add(driver.CSS(`button[type="submit"]`), &drivertest.Element{})

		require.NoError(t, m.Search(ctx, "焼津駅"))
		assert.Equal(t, "焼津駅", in.Value)
		assert.Equal(t, []string{
			`fill input[placeholder*="検索"][0]=焼津駅`,
			`click button[type="submit"][0]`,
		}, p.Actions)

		require.NoError(t, m.ClearSearch(ctx))
		assert.Empty(t, in.Value)
	})

	t.Run("enter", func(t *testing.T) {
		m, p := newMapPage(t)
		var pressed string
		p.Add(driver.CSS(`input[type="search"]`), &drivertest.Element{OnKey: func(k string) { pressed = k }})
		p.Add(driver.CSS(".search-button"), &drivertest.Element{Hidden: true})

		require.NoError(t, m.Search(ctx, "港"))
		assert.Equal(t, driver.KeyEnter, pressed)
	})

	t.Run("missing", func(t *testing.T) {
		m, p := newMapPage(t)
		require.NoError(t, m.Search(ctx, "港"))
		require.NoError(t, m.ClearSearch(ctx))
		assert.Empty(t, p.Actions)
		vis, err := m.IsSearchInputVisible(ctx)
		require.NoError(t, err)
		assert.False(t, vis)
	})
}

func TestLayers(t *testing.T) {
	m, p := newMapPage(t)
	ctx := t.Context()
	panel := &drivertest.Element{Hidden: true}
	p.Add(driver.CSS(".layer-panel"), panel)
	p.Add(driver.CSS(".layer-toggle"), &drivertest.Element{OnClick: func() { panel.Hidden = false }})
	p.Add(union(t, LayerEntry),
		&drivertest.Element{Text: " 避難所 "},
		&drivertest.Element{Text: "  "},
		&drivertest.Element{Text: "ハザードマップ"},
	)
	shelters := &drivertest.Element{}
	p.Add(driver.Text("避難所"), shelters)

	vis, err := m.IsLayerPanelVisible(ctx)
	require.NoError(t, err)
	assert.False(t, vis)

	layers, err := m.AvailableLayers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"避難所", "ハザードマップ"}, layers)

	vis, err = m.IsLayerPanelVisible(ctx)
	require.NoError(t, err)
	assert.True(t, vis)

	require.NoError(t, m.ToggleLayer(ctx, "避難所"))
	assert.Equal(t, 1, shelters.Clicks)

	// An unknown layer is silently skipped.
	require.NoError(t, m.ToggleLayer(ctx, "存在しない"))
}

func TestLayerPanelStaysOpen(t *testing.T) {
	m, p := newMapPage(t)
	ctx := t.Context()
	panel := &drivertest.Element{Hidden: true}
	shelters := &drivertest.Element{Text: "避難所", Hidden: true}
	hazard := &drivertest.Element{Text: "ハザードマップ", Hidden: true}
	toggle := &drivertest.Element{}
	toggle.OnClick = func() {
		for _, e := range []*drivertest.Element{panel, shelters, hazard} {
			e.Hidden = !e.Hidden
		}
	}
	p.Add(driver.CSS(".layer-panel"), panel)
	p.Add(driver.CSS(".layer-toggle"), toggle)
	p.Add(union(t, LayerEntry), shelters, hazard)
	p.Add(driver.Text("避難所"), shelters)
	p.Add(driver.Text("ハザードマップ"), hazard)

	layers, err := m.AvailableLayers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"避難所", "ハザードマップ"}, layers)

	require.NoError(t, m.ToggleLayer(ctx, "避難所"))
	require.NoError(t, m.ToggleLayer(ctx, "ハザードマップ"))
	require.NoError(t, m.OpenLayerPanel(ctx))

	assert.Equal(t, 1, toggle.Clicks)
	assert.Equal(t, 1, shelters.Clicks)
	assert.Equal(t, 1, hazard.Clicks)
	assert.False(t, panel.Hidden)
}

func TestMarkers(t *testing.T) {
	m, p := newMapPage(t)
	ctx := t.Context()
	popup := &drivertest.Element{Hidden: true, Text: "焼津漁港"}
	p.Add(driver.CSS(".popup"), popup)
	first := &drivertest.Element{}
	second := &drivertest.Element{OnClick: func() { popup.Hidden = false }}
	p.Add(union(t, Marker), first, second)

	n, err := m.MarkerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, m.ClickMarker(ctx, 5))
	assert.Zero(t, first.Clicks+second.Clicks)

	require.NoError(t, m.ClickMarker(ctx, 1))
	assert.Equal(t, 1, second.Clicks)

	text, err := m.PopupContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "焼津漁港", text)

	closeBtn := &drivertest.Element{OnClick: func() { popup.Hidden = true }}
	p.Add(driver.CSS(`.popup button[aria-label*="閉じる"]`), closeBtn)
	require.NoError(t, m.ClosePopup(ctx))
	assert.Equal(t, 1, closeBtn.Clicks)
	vis, err := m.IsPopupVisible(ctx)
	require.NoError(t, err)
	assert.False(t, vis)

	p.Remove(driver.CSS(`.popup button[aria-label*="閉じる"]`))
	p.Actions = nil
	require.NoError(t, m.ClosePopup(ctx))
	assert.Equal(t, []string{"key Escape"}, p.Actions)
}

func TestZoomFallsBackToEngine(t *testing.T) {
	m, p := newMapPage(t)
	ctx := t.Context()
	p.MustRun(t, `window.map = {
		z: 12,
		getZoom: function() { return this.z; },
		zoomIn: function() { this.z++; },
		zoomOut: function() { this.z--; }
	};`)

	require.NoError(t, m.ZoomIn(ctx))
	require.NoError(t, m.ZoomIn(ctx))
	require.NoError(t, m.ZoomOut(ctx))
	z, err := m.Bridge().Zoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13.0, z)
	assert.Empty(t, p.Actions)

	btn := &drivertest.Element{}
	p.Add(driver.CSS(".leaflet-control-zoom-in"), btn)
	require.NoError(t, m.ZoomIn(ctx))
	assert.Equal(t, 1, btn.Clicks)
	z, err = m.Bridge().Zoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13.0, z, "button click does not go through the engine")
}

func TestPanAndDoubleClick(t *testing.T) {
	m, p := newMapPage(t)
	ctx := t.Context()

	require.NoError(t, m.PanMap(ctx, 100, 0))
	assert.Empty(t, p.Actions, "no map, no drag")

	p.Add(driver.CSS("#map"), &drivertest.Element{Box: driver.Box{X: 0, Y: 0, Width: 1280, Height: 720}})
	require.NoError(t, m.PanMap(ctx, 100, -50))
	require.NoError(t, m.DoubleClickZoom(ctx, nil))
	require.NoError(t, m.DoubleClickZoom(ctx, &driver.Point{X: 10, Y: 20}))
	assert.Equal(t, []string{
		"drag 640,360->740,310",
		"dblclick 640,360",
		"dblclick 10,20",
	}, p.Actions)
}

func TestClickCurrentLocation(t *testing.T) {
	m, p := newMapPage(t)
	ctx := t.Context()
	require.NoError(t, m.ClickCurrentLocation(ctx))

	btn := &drivertest.Element{}
	p.Add(driver.CSS(`[aria-label*="現在地"]`), btn)
	require.NoError(t, m.ClickCurrentLocation(ctx))
	assert.Equal(t, 1, btn.Clicks)
}

func TestClosedPagePropagates(t *testing.T) {
	m, p := newMapPage(t)
	p.Closed = true
	_, err := m.IsMapVisible(t.Context())
	assert.True(t, errors.Is(err, driver.ErrPageClosed), "err = %v", err)
	err = m.Search(t.Context(), "x")
	assert.True(t, strings.Contains(err.Error(), "page closed"))
}

func TestShippedCatalog(t *testing.T) {
	cat, err := LoadCatalog("../configs/catalog.yaml")
	require.NoError(t, err)
	assert.Equal(t, driver.CSS(".maplibregl-ctrl-zoom-in"), cat[ZoomInButton][0])
	assert.Len(t, cat[ZoomInButton], len(DefaultCatalog()[ZoomInButton])+1)
	sel, ok := cat[Marker].Union()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(sel.CSS, ".maplibregl-marker, "))
}
