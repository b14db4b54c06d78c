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
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestCoordinateFromPoint(t *testing.T) {
	c := CoordinateFromPoint(orb.Point{138.3245, 34.8671})
	assert.Equal(t, Coordinate{Lng: 138.3245, Lat: 34.8671}, c)
	assert.Equal(t, orb.Point{138.3245, 34.8671}, c.Point())
}

func TestDistanceTo(t *testing.T) {
	station := Coordinate{Lng: 138.3245, Lat: 34.8671}
	assert.Zero(t, station.DistanceTo(station))

	// One hundredth of a degree of longitude at Yaizu is about 914m.
	east := Coordinate{Lng: 138.3345, Lat: 34.8671}
	assert.InDelta(t, 914, station.DistanceTo(east), 5)
	assert.InDelta(t, station.DistanceTo(east), east.DistanceTo(station), 1e-9)

	// A degree of latitude is about 111km.
	north := Coordinate{Lng: 138.3245, Lat: 35.8671}
	assert.InDelta(t, 111_300, station.DistanceTo(north), 500)
}
