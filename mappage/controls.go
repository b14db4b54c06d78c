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
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/driver"
	"github.com/ttbt-io/mapcheck/engine"
	"github.com/ttbt-io/mapcheck/wait"
)

// panSteps is the number of intermediate mouse moves of a drag.
const panSteps = 10

// Search types query into the search box and submits it, with the search
// button when one is visible and Enter otherwise.
func (m *MapPage) Search(ctx context.Context, query string) error {
	in, err := m.resolve(ctx, SearchInput)
	if err != nil || !in.found {
		return err
	}
	if err := m.page.Fill(ctx, in.sel, in.nth, query); err != nil {
		return ignoreMissing(err)
	}
	btn, err := m.resolve(ctx, SearchButton)
	if err != nil {
		return err
	}
	if btn.visible {
		err = m.click(ctx, btn)
	} else {
		err = ignoreMissing(m.page.Press(ctx, in.sel, in.nth, driver.KeyEnter))
	}
	if err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.Search)
}

// ClearSearch empties the search box.
func (m *MapPage) ClearSearch(ctx context.Context) error {
	in, err := m.resolve(ctx, SearchInput)
	if err != nil || !in.found {
		return err
	}
	return ignoreMissing(m.page.Fill(ctx, in.sel, in.nth, ""))
}

// IsSearchInputVisible reports whether the search box is visible.
func (m *MapPage) IsSearchInputVisible(ctx context.Context) (bool, error) {
	return m.visible(ctx, SearchInput)
}

// OpenLayerPanel clicks the layer toggle when it is visible and the panel
// is not already open.
func (m *MapPage) OpenLayerPanel(ctx context.Context) error {
	open, err := m.IsLayerPanelVisible(ctx)
	if err != nil || open {
		return err
	}
	t, err := m.resolve(ctx, LayerToggle)
	if err != nil || !t.visible {
		return err
	}
	if err := m.click(ctx, t); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.LayerPanel)
}

// IsLayerPanelVisible reports whether the layer panel is visible.
func (m *MapPage) IsLayerPanelVisible(ctx context.Context) (bool, error) {
	return m.visible(ctx, LayerPanel)
}

// ToggleLayer opens the layer panel if needed and clicks the entry labelled
// name.
func (m *MapPage) ToggleLayer(ctx context.Context, name string) error {
	if err := m.OpenLayerPanel(ctx); err != nil {
		return err
	}
	entry := driver.Text(name)
	vis, err := m.page.IsVisible(ctx, entry, 0)
	if err != nil {
		return err
	}
	if vis {
		if err := m.click(ctx, target{sel: entry, found: true, visible: true}); err != nil {
			return err
		}
	} else {
		m.logger.Debug("layer entry not visible", zap.String("layer", name))
	}
	return wait.Sleep(ctx, m.delays.LayerToggle)
}

// AvailableLayers opens the layer panel if needed and returns the non-empty labels of
// its entries.
func (m *MapPage) AvailableLayers(ctx context.Context) ([]string, error) {
	if err := m.OpenLayerPanel(ctx); err != nil {
		return nil, err
	}
	texts, err := m.allTexts(ctx, LayerEntry)
	if err != nil {
		return nil, err
	}
	var layers []string
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			layers = append(layers, t)
		}
	}
	return layers, nil
}

func (m *MapPage) allTexts(ctx context.Context, a Affordance) ([]string, error) {
	loc, err := m.locator(a)
	if err != nil {
		return nil, err
	}
	if u, ok := loc.Union(); ok {
		return m.page.AllTextContents(ctx, u)
	}
	var all []string
	for _, sel := range loc {
		texts, err := m.page.AllTextContents(ctx, sel)
		if err != nil {
			return nil, err
		}
		all = append(all, texts...)
	}
	return all, nil
}

// markers returns a selector addressing all markers in document order.
func (m *MapPage) markers() (driver.Selector, error) {
	loc, err := m.locator(Marker)
	if err != nil {
		return driver.Selector{}, err
	}
	if u, ok := loc.Union(); ok {
		return u, nil
	}
	return loc[0], nil
}

// MarkerCount returns the number of markers on the page.
func (m *MapPage) MarkerCount(ctx context.Context) (int, error) {
	sel, err := m.markers()
	if err != nil {
		return 0, err
	}
	return m.page.Count(ctx, sel)
}

// ClickMarker clicks the marker at index, counted in document order. It does
// nothing when there are not that many markers.
func (m *MapPage) ClickMarker(ctx context.Context, index int) error {
	sel, err := m.markers()
	if err != nil {
		return err
	}
	n, err := m.page.Count(ctx, sel)
	if err != nil {
		return err
	}
	if index < 0 || index >= n {
		m.logger.Debug("no such marker", zap.Int("index", index), zap.Int("count", n))
		return nil
	}
	if err := m.click(ctx, target{sel: sel, nth: index, found: true}); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.MarkerClick)
}

// IsPopupVisible reports whether a popup is visible.
func (m *MapPage) IsPopupVisible(ctx context.Context) (bool, error) {
	return m.visible(ctx, Popup)
}

// PopupContent returns the text of the visible popup, or "".
func (m *MapPage) PopupContent(ctx context.Context) (string, error) {
	t, err := m.resolve(ctx, Popup)
	if err != nil || !t.visible {
		return "", err
	}
	return m.page.TextContent(ctx, t.sel, t.nth)
}

// ClosePopup clicks the popup's close button, or presses Escape when there
// is none.
func (m *MapPage) ClosePopup(ctx context.Context) error {
	t, err := m.resolve(ctx, PopupClose)
	if err != nil {
		return err
	}
	if t.visible {
		err = m.click(ctx, t)
	} else {
		err = m.page.Keyboard(ctx, driver.KeyEscape)
	}
	if err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.PopupClose)
}

func (m *MapPage) zoom(ctx context.Context, button Affordance, api func(context.Context) error) error {
	t, err := m.resolve(ctx, button)
	if err != nil {
		return err
	}
	if t.visible {
		if err := m.click(ctx, t); err != nil {
			return err
		}
		return wait.Sleep(ctx, m.delays.ZoomButton)
	}
	m.logger.Debug("zoom control not visible, using engine", zap.String("affordance", string(button)))
	if err := api(ctx); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.ZoomAPI)
}

// ZoomIn clicks the zoom-in control, or zooms through the engine when the
// control is not visible.
func (m *MapPage) ZoomIn(ctx context.Context) error {
	return m.zoom(ctx, ZoomInButton, m.bridge.ZoomInAPI)
}

// ZoomOut clicks the zoom-out control, or zooms through the engine when the
// control is not visible.
func (m *MapPage) ZoomOut(ctx context.Context) error {
	return m.zoom(ctx, ZoomOutButton, m.bridge.ZoomOutAPI)
}

// ZoomInAPI zooms in through the engine.
func (m *MapPage) ZoomInAPI(ctx context.Context) error {
	if err := m.bridge.ZoomInAPI(ctx); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.ZoomAPI)
}

// ZoomOutAPI zooms out through the engine.
func (m *MapPage) ZoomOutAPI(ctx context.Context) error {
	if err := m.bridge.ZoomOutAPI(ctx); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.ZoomAPI)
}

// SetZoom jumps to zoom level z.
func (m *MapPage) SetZoom(ctx context.Context, z float64) error {
	if err := m.bridge.SetZoom(ctx, z); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.SetView)
}

// SetCenter jumps to c.
func (m *MapPage) SetCenter(ctx context.Context, c engine.Coordinate) error {
	if err := m.bridge.SetCenter(ctx, c); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.SetView)
}

// FlyTo starts a camera flight and gives it time to finish.
func (m *MapPage) FlyTo(ctx context.Context, c engine.Coordinate, zoom *float64) error {
	if err := m.bridge.FlyTo(ctx, c, zoom); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.FlyTo)
}

func (m *MapPage) mapBox(ctx context.Context) (*driver.Box, error) {
	t, err := m.resolve(ctx, MapContainer)
	if err != nil || !t.visible {
		return nil, err
	}
	return m.page.BoundingBox(ctx, t.sel, t.nth)
}

// PanMap drags the map from its center by (dx, dy) pixels.
func (m *MapPage) PanMap(ctx context.Context, dx, dy float64) error {
	box, err := m.mapBox(ctx)
	if err != nil || box == nil {
		return err
	}
	from := box.Center()
	to := driver.Point{X: from.X + dx, Y: from.Y + dy}
	if err := m.page.MouseDrag(ctx, from, to, panSteps); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.Pan)
}

// DoubleClickZoom double-clicks the map at the given viewport point, or at
// the map's center when at is nil.
func (m *MapPage) DoubleClickZoom(ctx context.Context, at *driver.Point) error {
	box, err := m.mapBox(ctx)
	if err != nil || box == nil {
		return err
	}
	pt := box.Center()
	if at != nil {
		pt = *at
	}
	if err := m.page.MouseDoubleClick(ctx, pt); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.DoubleClick)
}

// ClickCurrentLocation clicks the current-location control when visible.
func (m *MapPage) ClickCurrentLocation(ctx context.Context) error {
	t, err := m.resolve(ctx, CurrentLocation)
	if err != nil || !t.visible {
		return err
	}
	if err := m.click(ctx, t); err != nil {
		return err
	}
	return wait.Sleep(ctx, m.delays.CurrentLocation)
}

func ignoreMissing(err error) error {
	if errors.Is(err, driver.ErrNoElement) {
		return nil
	}
	return err
}
