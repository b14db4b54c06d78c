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
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/artifacts"
	"github.com/ttbt-io/mapcheck/driver"
)

func registerMapSteps(r *Registry) {
	r.Register("open the map", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.Open(ctx)
	})

	r.Register("assert title contains", 1, 1, func(ctx context.Context, w *World, a Args) error {
		want, _ := a.String(0)
		title, err := w.Map.Title(ctx)
		if err != nil {
			return err
		}
		return expect(strings.Contains(title, want), "page title", "containing "+want, title)
	})

	r.Register("assert map visible", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		if err := assertMapVisible(ctx, w); err != nil {
			return err
		}
		c, err := w.Bridge().Center(ctx)
		if err != nil {
			return err
		}
		w.Logger.Info("map center", zap.Float64("lat", c.Lat), zap.Float64("lng", c.Lng))
		return nil
	})

	r.Register("click zoom in", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ZoomIn(ctx)
	})

	r.Register("click zoom out", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ZoomOut(ctx)
	})

	r.Register("drag map right", 1, 1, func(ctx context.Context, w *World, a Args) error {
		px, err := a.Int(0)
		if err != nil {
			return err
		}
		return w.Map.PanMap(ctx, float64(px), 0)
	})

	r.Register("drag map", 2, 2, func(ctx context.Context, w *World, a Args) error {
		dx, err := a.Float(0)
		if err != nil {
			return err
		}
		dy, err := a.Float(1)
		if err != nil {
			return err
		}
		return w.Map.PanMap(ctx, dx, dy)
	})

	r.Register("double click map center", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.DoubleClickZoom(ctx, nil)
	})

	r.Register("double click map at", 2, 2, func(ctx context.Context, w *World, a Args) error {
		x, err := a.Float(0)
		if err != nil {
			return err
		}
		y, err := a.Float(1)
		if err != nil {
			return err
		}
		return w.Map.DoubleClickZoom(ctx, &driver.Point{X: x, Y: y})
	})

	r.Register("click current location", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ClickCurrentLocation(ctx)
	})

	r.Register("assert affordance exists", 1, 1, func(ctx context.Context, w *World, a Args) error {
		name, _ := a.String(0)
		ok, err := w.Map.AffordanceExists(ctx, name)
		if err != nil {
			return err
		}
		return expect(ok, "affordance "+name, "present", "absent")
	})

	r.Register("assert affordance missing", 1, 1, func(ctx context.Context, w *World, a Args) error {
		name, _ := a.String(0)
		ok, err := w.Map.AffordanceExists(ctx, name)
		if err != nil {
			return err
		}
		return expect(!ok, "affordance "+name, "absent", "present")
	})

	r.Register("take screenshot", 1, 1, func(ctx context.Context, w *World, a Args) error {
		name, _ := a.String(0)
		png, err := w.Map.Page().Screenshot(ctx, true)
		if err != nil {
			return err
		}
		path, err := artifacts.WriteScreenshot(w.ScreenshotDir, name, time.Now(), png)
		if err != nil {
			return err
		}
		w.Screenshots = append(w.Screenshots, path)
		return nil
	})
}

func assertMapVisible(ctx context.Context, w *World) error {
	vis, err := w.Map.IsMapVisible(ctx)
	if err != nil {
		return err
	}
	return expect(vis, "map visible", true, vis)
}
