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

package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/ttbt-io/mapcheck/driver"
)

// Coordinate is a geodetic position. Scenarios speak (latitude, longitude)
// while the engine takes [longitude, latitude]; conversions go through Point
// and CoordinateFromPoint only.
type Coordinate struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Point returns the coordinate in engine order.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// CoordinateFromPoint converts an engine-order point.
func CoordinateFromPoint(p orb.Point) Coordinate {
	return Coordinate{Lng: p.Lon(), Lat: p.Lat()}
}

// Near reports whether both components are within tol degrees of o.
func (c Coordinate) Near(o Coordinate, tol float64) bool {
	return math.Abs(c.Lng-o.Lng) <= tol && math.Abs(c.Lat-o.Lat) <= tol
}

// DistanceTo returns the great-circle distance to o in meters.
func (c Coordinate) DistanceTo(o Coordinate) float64 {
	return geo.Distance(c.Point(), o.Point())
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(lat %.6f, lng %.6f)", c.Lat, c.Lng)
}

// ViewBounds is the visible rectangle in degrees. Antimeridian crossing is
// not modeled.
type ViewBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Valid reports whether north is not below south.
func (b ViewBounds) Valid() bool {
	return b.North >= b.South
}

// Bound returns the bounds as an orb.Bound in engine order.
func (b ViewBounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// Contains reports whether c lies inside the bounds, edges included.
func (b ViewBounds) Contains(c Coordinate) bool {
	return b.Bound().Contains(c.Point())
}

// FeatureID is a feature identifier, which the engine reports either as a
// string or as a number.
type FeatureID string

func (id *FeatureID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FeatureID(s)
		return nil
	}
	*id = FeatureID(strings.TrimSpace(string(b)))
	return nil
}

// Geometry is a feature geometry as rendered. Coordinates are left opaque.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// Orb decodes the geometry.
func (g Geometry) Orb() (orb.Geometry, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s geometry: %w", g.Type, err)
	}
	return geom.Geometry(), nil
}

// LayerRef names the style layer a feature was rendered in.
type LayerRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// RenderedFeature is a snapshot of one rendered feature at query time. It is
// not updated when the map changes.
type RenderedFeature struct {
	ID           *FeatureID     `json:"id,omitempty"`
	GeometryType string         `json:"geometryType"`
	Properties   map[string]any `json:"properties"`
	Geometry     Geometry       `json:"geometry"`
	Layer        LayerRef       `json:"layer"`
}

// FeatureQuery restricts QueryRenderedFeatures to a screen point (CSS
// pixels relative to the map canvas) and/or a set of layers. The zero value
// queries the whole viewport.
type FeatureQuery struct {
	Point  *driver.Point
	Layers []string
}
