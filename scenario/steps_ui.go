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
	"strings"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/wait"
)

func registerLayerSteps(r *Registry) {
	r.Register("open layer panel", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.OpenLayerPanel(ctx)
	})

	r.Register("assert layer panel visible", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		vis, err := w.Map.IsLayerPanelVisible(ctx)
		if err != nil {
			return err
		}
		return expect(vis, "layer panel visible", true, vis)
	})

	r.Register("assert layer options shown", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		layers, err := w.Map.AvailableLayers(ctx)
		if err != nil {
			return err
		}
		return expect(len(layers) > 0, "layer options", "> 0", len(layers))
	})

	r.Register("select layer", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return selectLayers(ctx, w, 1)
	})

	r.Register("enable first layer", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		if err := w.Map.OpenLayerPanel(ctx); err != nil {
			return err
		}
		return selectLayers(ctx, w, 1)
	})

	r.Register("select layers", 0, 1, func(ctx context.Context, w *World, a Args) error {
		n := 2
		if len(a) > 0 {
			var err error
			if n, err = a.Int(0); err != nil {
				return err
			}
			if n < 0 {
				return fmt.Errorf("layer count %d is negative", n)
			}
		}
		return selectLayers(ctx, w, n)
	})

	r.Register("disable selected layer", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		if len(w.Memory.SelectedLayers) == 0 {
			w.Logger.Info("no layer selected, nothing to disable")
			return nil
		}
		return w.Map.ToggleLayer(ctx, w.Memory.SelectedLayers[0])
	})

	r.Register("assert layers match golden", 1, 1, func(ctx context.Context, w *World, a Args) error {
		name, _ := a.String(0)
		layers, err := w.Map.AvailableLayers(ctx)
		if err != nil {
			return err
		}
		return verifyGolden(w, name, strings.Join(layers, "\n"))
	})
}

// selectLayers toggles the first n available layers and remembers them.
func selectLayers(ctx context.Context, w *World, n int) error {
	layers, err := w.Map.AvailableLayers(ctx)
	if err != nil {
		return err
	}
	w.Memory.SelectedLayers = nil
	for _, l := range layers[:max(0, min(n, len(layers)))] {
		if err := w.Map.ToggleLayer(ctx, l); err != nil {
			return err
		}
		w.Memory.SelectedLayers = append(w.Memory.SelectedLayers, l)
	}
	return nil
}

func registerMarkerSteps(r *Registry) {
	r.Register("assert markers shown", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		n, err := markerCountAfterLoad(ctx, w)
		if err != nil {
			return err
		}
		return expect(n > 0, "markers", "> 0", n)
	})

	r.Register("assert multiple markers", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		n, err := markerCountAfterLoad(ctx, w)
		if err != nil {
			return err
		}
		return expect(n > 1, "markers", "> 1", n)
	})

	// Zooming out usually brings markers into view when none are shown.
	r.Register("ensure markers shown", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		n, err := markerCountAfterLoad(ctx, w)
		if err != nil || n > 0 {
			return err
		}
		if err := w.Map.ZoomOut(ctx); err != nil {
			return err
		}
		return wait.Sleep(ctx, w.Waits.MarkerZoomOut)
	})

	r.Register("click marker", 0, 1, func(ctx context.Context, w *World, a Args) error {
		i := 0
		if len(a) > 0 {
			var err error
			if i, err = a.Int(0); err != nil {
				return err
			}
		}
		return w.Map.ClickMarker(ctx, i)
	})

	r.Register("click first marker", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ClickMarker(ctx, 0)
	})

	r.Register("click another marker", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ClickMarker(ctx, 1)
	})

	r.Register("ensure popup shown", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		n, err := markerCountAfterLoad(ctx, w)
		if err != nil || n == 0 {
			return err
		}
		if err := w.Map.ClickMarker(ctx, 0); err != nil {
			return err
		}
		return wait.Sleep(ctx, w.Waits.PopupShow)
	})

	r.Register("assert popup visible", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return assertPopup(ctx, w, true)
	})

	r.Register("assert popup hidden", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return assertPopup(ctx, w, false)
	})

	r.Register("assert popup has content", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		text, err := w.Map.PopupContent(ctx)
		if err != nil {
			return err
		}
		return expect(strings.TrimSpace(text) != "", "popup content", "non-empty", fmt.Sprintf("%q", text))
	})

	r.Register("record popup content", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		text, err := w.Map.PopupContent(ctx)
		if err != nil {
			return err
		}
		w.Memory.PopupContent = &text
		return nil
	})

	// Neighbouring markers may carry the same information, so an unchanged
	// text is logged rather than failed.
	r.Register("assert popup content changed", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		text, err := w.Map.PopupContent(ctx)
		if err != nil {
			return err
		}
		if w.Memory.PopupContent != nil && *w.Memory.PopupContent == text {
			w.Logger.Info("popup content unchanged", zap.String("content", text))
		}
		return expect(text != "", "popup content", "non-empty", fmt.Sprintf("%q", text))
	})

	r.Register("close popup", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ClosePopup(ctx)
	})
}

func markerCountAfterLoad(ctx context.Context, w *World) (int, error) {
	if err := wait.Sleep(ctx, w.Waits.MarkerLoad); err != nil {
		return 0, err
	}
	return w.Map.MarkerCount(ctx)
}

func assertPopup(ctx context.Context, w *World, want bool) error {
	if err := wait.Sleep(ctx, w.Waits.PopupShow); err != nil {
		return err
	}
	vis, err := w.Map.IsPopupVisible(ctx)
	if err != nil {
		return err
	}
	return expect(vis == want, "popup visible", want, vis)
}

func registerSearchSteps(r *Registry) {
	r.Register("assert search input visible", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		vis, err := w.Map.IsSearchInputVisible(ctx)
		if err != nil {
			return err
		}
		return expect(vis, "search input visible", true, vis)
	})

	r.Register("search", 1, 1, func(ctx context.Context, w *World, a Args) error {
		q, _ := a.String(0)
		return w.Map.Search(ctx, q)
	})

	// Search submits as part of "search"; this only waits for results.
	r.Register("submit search", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return wait.Sleep(ctx, w.Waits.SearchSubmit)
	})

	r.Register("clear search", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return w.Map.ClearSearch(ctx)
	})

	r.Register("assert search cleared", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		if err := wait.Sleep(ctx, w.Waits.SearchClear); err != nil {
			return err
		}
		vis, err := w.Map.IsSearchInputVisible(ctx)
		if err != nil {
			return err
		}
		return expect(vis, "search input visible", true, vis)
	})

	r.Register("assert search completed", 0, 0, func(ctx context.Context, w *World, _ Args) error {
		return assertMapVisible(ctx, w)
	})
}
