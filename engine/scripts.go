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

// Every bridge script is a function(paths, arg) that first resolves the
// engine from the ordered binding paths, leaving it in m (null when nothing
// resolved). Scripts stay ES5 so that they run unchanged in any page.
const resolvePrelude = `
	function resolve(paths) {
		for (var i = 0; i < paths.length; i++) {
			var cur = window;
			for (var j = 0; j < paths[i].length && cur; j++) {
				cur = cur[paths[i][j]];
			}
			if (cur) return {map: cur, index: i};
		}
		return {map: null, index: -1};
	}
	var found = resolve(paths);
	var m = found.map;
	function can(name) { return !!m && typeof m[name] === 'function'; }
`

func script(body string) string {
	return "function(paths, arg) {" + resolvePrelude + body + "\n}"
}

var (
	resolvedScript = script(`return found.index;`)

	zoomScript = script(`
	if (can('getZoom')) return m.getZoom();
	return -1;`)

	setZoomScript = script(`
	if (!can('setZoom')) return false;
	m.setZoom(arg);
	return true;`)

	zoomInScript = script(`
	if (!can('zoomIn')) return false;
	m.zoomIn();
	return true;`)

	zoomOutScript = script(`
	if (!can('zoomOut')) return false;
	m.zoomOut();
	return true;`)

	centerScript = script(`
	if (can('getCenter')) {
		var c = m.getCenter();
		return [c.lng, c.lat];
	}
	return [0, 0];`)

	setCenterScript = script(`
	if (!can('setCenter')) return false;
	m.setCenter(arg);
	return true;`)

	flyToScript = script(`
	if (!can('flyTo')) return false;
	var opts = {center: arg.center};
	if (arg.zoom !== null && arg.zoom !== undefined) opts.zoom = arg.zoom;
	m.flyTo(opts);
	return true;`)

	boundsScript = script(`
	if (can('getBounds')) {
		var b = m.getBounds();
		return {north: b.getNorth(), south: b.getSouth(), east: b.getEast(), west: b.getWest()};
	}
	return {north: 0, south: 0, east: 0, west: 0};`)

	bearingScript = script(`
	if (can('getBearing')) return m.getBearing();
	return 0;`)

	pitchScript = script(`
	if (can('getPitch')) return m.getPitch();
	return 0;`)

	movingScript = script(`
	if (can('isMoving')) return !!m.isMoving();
	return false;`)

	styleLoadedScript = script(`
	if (can('isStyleLoaded')) return !!m.isStyleLoaded();
	return false;`)

	layerIDsScript = script(`
	if (!can('getStyle')) return [];
	var style = m.getStyle();
	var layers = (style && style.layers) || [];
	return layers.map(function(l) { return l.id; });`)

	sourceIDsScript = script(`
	if (!can('getStyle')) return [];
	var style = m.getStyle();
	return Object.keys((style && style.sources) || {});`)

	layerVisibleScript = script(`
	if (!can('getLayoutProperty')) return false;
	try {
		if (can('getLayer') && !m.getLayer(arg)) return false;
		return m.getLayoutProperty(arg, 'visibility') !== 'none';
	} catch (e) {
		return false;
	}`)

	queryFeaturesScript = script(`
	if (!can('queryRenderedFeatures')) return [];
	var opts = arg.layers ? {layers: arg.layers} : undefined;
	var point = arg.point ? [arg.point.x, arg.point.y] : undefined;
	var features = m.queryRenderedFeatures(point, opts) || [];
	return features.slice(0, arg.limit).map(function(f) {
		var g = f.geometry || {};
		var l = f.layer || {};
		return {
			id: f.id,
			geometryType: String(f.type),
			properties: f.properties || {},
			geometry: {type: g.type, coordinates: g.coordinates},
			layer: {id: l.id, type: l.type}
		};
	});`)

	// Condition predicates for Poll.

	styleLoadedPredicate = script(`
	if (can('isStyleLoaded')) return !!m.isStyleLoaded();
	return !!document.querySelector('.maplibregl-canvas, .mapboxgl-canvas');`)

	idlePredicate = script(`
	if (can('isMoving')) return !m.isMoving();
	return true;`)
)
