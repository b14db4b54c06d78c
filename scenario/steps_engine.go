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
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/driver"
	"github.com/ttbt-io/mapcheck/engine"
)

// centerMoveThreshold is the default distance in meters the center has to
// travel to count as moved.
const centerMoveThreshold = 10.0

func registerEngineSteps(r *Registry) {
	r.Register("assert zoom", 1, 1, func(ctx context.Context, w *World, a Args) error {
		want, err := a.Float(0)
		if err != nil {
			return err
		}
		z, err := w.Bridge().Zoom(ctx)
		if err != nil {
			return err
		}
		return expect(closeTo(z, want, 1), "zoom", want, z)
	})

	r.Register("assert zoom at least", 1, 1, func(ctx context.Context, w *World, a Args) error {
		lo, err := a.Float(0)
		if err != nil {
			return err
		}
		z, err := w.Bridge().Zoom(ctx)
		if err != nil {
			return err
		}
		return expect(z >= lo, "zoom", fmt.Sprintf(">= %v", lo), z)
	})

	r.Register("assert zoom at most", 1, 1, func(ctx context.Context, w *World, a Args) error {
		hi, err := a.Float(0)
		if err != nil {
			return err
		}
		z, err := w.Bridge().Zoom(ctx)
		if err != nil {
			return err
		}
		return expect(z <= hi, "zoom", fmt.Sprintf("<= %v", hi), z)
	})

	r.Register("assert center", 2, 2, func(ctx context.Context, w *World, a Args) error {
		want, err := a.Coordinate(0)
		if err != nil {
			return err
		}
		c, err := w.Bridge().Center(ctx)
		if err != nil {
			return err
		}
		return expect(closeTo(c.Lat, want.Lat, 2) && closeTo(c.Lng, want.Lng, 2), "center", want, c)
	})

	r.Register("assert bounds contain", 2, 2, func(ctx context.Context, w *World, a Args) error {
		c, err := a.Coordinate(0)
		if err != nil {
			return err
		}
		b, err := w.Bridge().Bounds(ctx)
		if err != nil {
			return err
		}
		return expect(b.Contains(c), "bounds", "containing "+c.String(), b)
	})

	r.Register("assert bounds valid", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		b, err := w.Bridge().Bounds(ctx)
		if err != nil {
			return err
		}
		return expect(b.Valid(), "bounds", "north >= south", b)
	})

	r.Register("set zoom", 1, 1, func(ctx context.Context, w *World, a Args) error {
		z, err := a.Float(0)
		if err != nil {
			return err
		}
		return w.Map.SetZoom(ctx, z)
	})

	r.Register("set center", 2, 2, func(ctx context.Context, w *World, a Args) error {
		c, err := a.Coordinate(0)
		if err != nil {
			return err
		}
		return w.Map.SetCenter(ctx, c)
	})

	r.Register("fly to", 2, 3, func(ctx context.Context, w *World, a Args) error {
		c, err := a.Coordinate(0)
		if err != nil {
			return err
		}
		var zoom *float64
		if len(a) == 3 {
			z, err := a.Float(2)
			if err != nil {
				return err
			}
			zoom = &z
		}
		return w.Map.FlyTo(ctx, c, zoom)
	})

	r.Register("zoom in via api", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ZoomInAPI(ctx)
	})

	r.Register("zoom out via api", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ZoomOutAPI(ctx)
	})

	r.Register("assert layer exists", 1, 1, func(ctx context.Context, w *World, a Args) error {
		id, _ := a.String(0)
		ids, err := w.Bridge().LayerIDs(ctx)
		if err != nil {
			return err
		}
		return expect(slices.Contains(ids, id), "style layers", "containing "+id, ids)
	})

	r.Register("assert layer visible", 1, 1, func(ctx context.Context, w *World, a Args) error {
		id, _ := a.String(0)
		vis, err := w.Bridge().IsLayerVisible(ctx, id)
		if err != nil {
			return err
		}
		return expect(vis, "layer "+id+" visible", true, vis)
	})

	r.Register("assert layer hidden", 1, 1, func(ctx context.Context, w *World, a Args) error {
		id, _ := a.String(0)
		vis, err := w.Bridge().IsLayerVisible(ctx, id)
		if err != nil {
			return err
		}
		return expect(!vis, "layer "+id+" visible", false, vis)
	})

	r.Register("assert features rendered", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		fs, err := w.Bridge().QueryRenderedFeatures(ctx, engine.FeatureQuery{})
		if err != nil {
			return err
		}
		return expect(len(fs) > 0, "rendered features", "> 0", len(fs))
	})

	r.Register("assert layer features at least", 2, 2, func(ctx context.Context, w *World, a Args) error {
		id, _ := a.String(0)
		n, err := a.Int(1)
		if err != nil {
			return err
		}
		fs, err := w.Bridge().QueryRenderedFeatures(ctx, engine.FeatureQuery{Layers: []string{id}})
		if err != nil {
			return err
		}
		return expect(len(fs) >= n, "features in "+id, fmt.Sprintf(">= %d", n), len(fs))
	})

	r.Register("assert features at point", 2, 2, func(ctx context.Context, w *World, a Args) error {
		x, err := a.Float(0)
		if err != nil {
			return err
		}
		y, err := a.Float(1)
		if err != nil {
			return err
		}
		fs, err := w.Bridge().QueryRenderedFeatures(ctx, engine.FeatureQuery{Point: &driver.Point{X: x, Y: y}})
		if err != nil {
			return err
		}
		return expect(len(fs) > 0, fmt.Sprintf("features at (%v, %v)", x, y), "> 0", len(fs))
	})

	r.Register("wait for map idle", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Bridge().WaitForIdle(ctx)
	})

	r.Register("wait for style load", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Bridge().WaitForStyleLoad(ctx)
	})

	r.Register("assert map idle", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		if err := w.Bridge().WaitForIdle(ctx); err != nil {
			return err
		}
		moving, err := w.Bridge().IsMoving(ctx)
		if err != nil {
			return err
		}
		return expect(!moving, "map moving", false, moving)
	})

	r.Register("assert bearing", 1, 1, func(ctx context.Context, w *World, a Args) error {
		want, err := a.Float(0)
		if err != nil {
			return err
		}
		got, err := w.Bridge().Bearing(ctx)
		if err != nil {
			return err
		}
		return expect(closeTo(got, want, 1), "bearing", want, got)
	})

	r.Register("assert pitch", 1, 1, func(ctx context.Context, w *World, a Args) error {
		want, err := a.Float(0)
		if err != nil {
			return err
		}
		got, err := w.Bridge().Pitch(ctx)
		if err != nil {
			return err
		}
		return expect(closeTo(got, want, 1), "pitch", want, got)
	})

	r.Register("assert source exists", 1, 1, func(ctx context.Context, w *World, a Args) error {
		id, _ := a.String(0)
		ids, err := w.Bridge().SourceIDs(ctx)
		if err != nil {
			return err
		}
		return expect(slices.Contains(ids, id), "style sources", "containing "+id, ids)
	})

	r.Register("assert engine bound", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		name, err := w.Bridge().ResolvedBinding(ctx)
		if err != nil {
			return err
		}
		w.Logger.Info("engine binding", zap.String("binding", name))
		return expect(name != "", "engine binding", "any", "none")
	})

	r.Register("record zoom", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		z, err := idleZoom(ctx, w)
		if err != nil {
			return err
		}
		w.Memory.SavedZoom = &z
		return nil
	})

	r.Register("assert zoom increased", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return compareZoom(ctx, w, "increased", func(now, before float64) bool { return now > before })
	})

	r.Register("assert zoom decreased", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return compareZoom(ctx, w, "decreased", func(now, before float64) bool { return now < before })
	})

	r.Register("record center", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		c, err := idleCenter(ctx, w)
		if err != nil {
			return err
		}
		w.Memory.SavedCenter = &c
		return nil
	})

	r.Register("assert center moved", 0, 1, func(ctx context.Context, w *World, a Args) error {
		if w.Memory.SavedCenter == nil {
			return fmt.Errorf("center: %w", ErrNotRecorded)
		}
		minMeters := centerMoveThreshold
		if len(a) > 0 {
			var err error
			if minMeters, err = a.Float(0); err != nil {
				return err
			}
		}
		before := *w.Memory.SavedCenter
		c, err := idleCenter(ctx, w)
		if err != nil {
			return err
		}
		d := before.DistanceTo(c)
		return expect(d >= minMeters, "center",
			fmt.Sprintf("moved at least %.0fm from %s", minMeters, before),
			fmt.Sprintf("%s, %.0fm away", c, d))
	})
}

func idleZoom(ctx context.Context, w *World) (float64, error) {
	if err := w.Bridge().WaitForIdle(ctx); err != nil {
		return 0, err
	}
	return w.Bridge().Zoom(ctx)
}

func idleCenter(ctx context.Context, w *World) (engine.Coordinate, error) {
	if err := w.Bridge().WaitForIdle(ctx); err != nil {
		return engine.Coordinate{}, err
	}
	return w.Bridge().Center(ctx)
}

func compareZoom(ctx context.Context, w *World, how string, ok func(now, before float64) bool) error {
	if w.Memory.SavedZoom == nil {
		return fmt.Errorf("zoom: %w", ErrNotRecorded)
	}
	before := *w.Memory.SavedZoom
	z, err := idleZoom(ctx, w)
	if err != nil {
		return err
	}
	return expect(ok(z, before), "zoom", fmt.Sprintf("%s from %v", how, before), z)
}
