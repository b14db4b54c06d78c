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
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ttbt-io/mapcheck/driver"
)

// Affordance names a user-facing control of the map application.
type Affordance string

const (
	MapContainer    Affordance = "map"
	SearchInput     Affordance = "search-input"
	SearchButton    Affordance = "search-button"
	LayerToggle     Affordance = "layer-toggle"
	LayerPanel      Affordance = "layer-panel"
	LayerEntry      Affordance = "layer-entry"
	Marker          Affordance = "marker"
	Popup           Affordance = "popup"
	PopupClose      Affordance = "popup-close"
	ZoomInButton    Affordance = "zoom-in"
	ZoomOutButton   Affordance = "zoom-out"
	CurrentLocation Affordance = "current-location"
	OverlayClose    Affordance = "overlay-close"
)

// Locator is an ordered list of selector variants for one affordance.
type Locator []driver.Selector

// Union returns one selector matching every variant in document order. It is
// only possible when all variants are plain CSS.
func (l Locator) Union() (driver.Selector, bool) {
	parts := make([]string, 0, len(l))
	for _, s := range l {
		if s.CSS == "" || s.HasText != "" || s.Text != "" {
			return driver.Selector{}, false
		}
		parts = append(parts, s.CSS)
	}
	if len(parts) == 0 {
		return driver.Selector{}, false
	}
	return driver.CSS(strings.Join(parts, ", ")), true
}

// Catalog maps affordances to their locators.
type Catalog map[Affordance]Locator

func css(exprs ...string) Locator {
	l := make(Locator, len(exprs))
	for i, e := range exprs {
		l[i] = driver.CSS(e)
	}
	return l
}

func within(parents Locator, child string) Locator {
	l := make(Locator, 0, len(parents))
	for _, p := range parents {
		l = append(l, driver.CSS(p.CSS+" "+child))
	}
	return l
}

// DefaultCatalog returns the built-in locators for the Yaizu smart city map.
func DefaultCatalog() Catalog {
	popup := css(".popup", ".leaflet-popup", ".mapboxgl-popup", `[class*="popup"]`)
	panel := css(".layer-panel", ".layer-list", `[class*="layer-panel"]`)
	return Catalog{
		MapContainer: css("#map", ".map-container", `[class*="map"]`),
		SearchInput: css(
			`input[type="search"]`,
			`input[placeholder*="検索"]`,
			".search-input",
			`[class*="search"] input`,
		),
		SearchButton: css(`button[type="submit"]`, ".search-button", `[class*="search"] button`),
		LayerToggle: css(
			".layer-toggle",
			".layer-control",
			`[class*="layer"]`,
			`button[aria-label*="レイヤー"]`,
		),
		LayerPanel: panel,
		LayerEntry: append(within(panel, "label"), within(panel, `[role="checkbox"]`)...),
		Marker:     css(".marker", ".leaflet-marker-icon", `[class*="marker"]`, ".mapboxgl-marker"),
		Popup:      popup,
		PopupClose: append(within(popup, ".close"), within(popup, `button[aria-label*="閉じる"]`)...),
		ZoomInButton: css(
			".zoom-in",
			".leaflet-control-zoom-in",
			`[aria-label*="ズームイン"]`,
			`button[title*="拡大"]`,
		),
		ZoomOutButton: css(
			".zoom-out",
			".leaflet-control-zoom-out",
			`[aria-label*="ズームアウト"]`,
			`button[title*="縮小"]`,
		),
		CurrentLocation: css(
			".current-location",
			".geolocate",
			`[aria-label*="現在地"]`,
			`button[title*="現在地"]`,
		),
		OverlayClose: Locator{
			driver.CSS(".dialog-overlay button"),
			driver.CSS(".dialog-overlay .close"),
			driver.CSS(".modal-close"),
			driver.CSS(`button[aria-label="閉じる"]`),
			{CSS: ".dialog button", HasText: "閉じる"},
			{CSS: ".dialog button", HasText: "OK"},
			{CSS: ".dialog button", HasText: "同意"},
			driver.CSS(".overlay-close"),
		},
	}
}

// Clone returns a deep copy of c.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = slices.Clone(v)
	}
	return out
}

// Names returns the affordance names in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, string(k))
	}
	slices.Sort(names)
	return names
}

type catalogFile struct {
	// Affordances lists extra variants, tried before the built-in ones.
	Affordances map[Affordance]Locator `yaml:"affordances"`
	// Replace lists affordances whose built-in variants are dropped.
	Replace []Affordance `yaml:"replace"`
}

// LoadCatalog reads a YAML catalog file and merges it over DefaultCatalog.
//
//	replace: [marker]
//	affordances:
//	  marker:
//	    - css: .poi-pin
//	  popup-close:
//	    - css: .dialog button
//	      hasText: 閉じる
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog is LoadCatalog for in-memory YAML.
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	cat := DefaultCatalog()
	for _, name := range f.Replace {
		if _, ok := f.Affordances[name]; !ok {
			return nil, fmt.Errorf("catalog replaces %q without giving variants", name)
		}
		delete(cat, name)
	}
	for name, loc := range f.Affordances {
		for i, s := range loc {
			if s.IsZero() {
				return nil, fmt.Errorf("catalog %q variant %d is empty", name, i)
			}
		}
		cat[name] = append(slices.Clone(loc), cat[name]...)
	}
	return cat, nil
}
