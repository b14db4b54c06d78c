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
	"os"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/config"
	"github.com/ttbt-io/mapcheck/engine"
	"github.com/ttbt-io/mapcheck/mappage"
	"github.com/ttbt-io/mapcheck/session"
)

// Status is the outcome of a scenario or step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// AcquireFunc opens a browser session.
type AcquireFunc func(ctx context.Context, cfg config.Browser, opts ...session.Option) (*session.Session, error)

// Hooks are the suite lifecycle callbacks. Before gives every scenario its
// own session and empty memory; After captures a screenshot when the
// scenario failed and releases the session.
type Hooks struct {
	Config  *config.Config
	Catalog mappage.Catalog
	Logger  *zap.Logger
	// Acquire defaults to session.Acquire.
	Acquire AcquireFunc

	GoldenDir     string
	UpdateGoldens bool
}

func (h *Hooks) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// BeforeAll prepares the report directories.
func (h *Hooks) BeforeAll() error {
	for _, dir := range []string{h.Config.Reports.Dir, h.Config.Reports.ScreenshotDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Before opens a session for the scenario called name and builds its world.
func (h *Hooks) Before(ctx context.Context, name string) (*World, error) {
	cfg := h.Config
	bindings, err := cfg.EngineBindings()
	if err != nil {
		return nil, err
	}
	acquire := h.Acquire
	if acquire == nil {
		acquire = session.Acquire
	}
	logger := h.logger().With(zap.String("scenario", name))

	s, err := acquire(ctx, cfg.Browser, session.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	logger = s.Logger().With(zap.String("scenario", name))

	delays, waits := mappage.DefaultDelays(), DefaultWaits()
	if cfg.Suite.FastDelays {
		delays, waits = mappage.Delays{}, Waits{}
	}
	catalog := h.Catalog
	if catalog == nil {
		catalog = mappage.DefaultCatalog()
	}

	bridge := engine.NewBridge(s.Page(),
		engine.WithBindings(bindings...),
		engine.WithTimeouts(cfg.Timeouts.Load, cfg.Timeouts.Idle),
		engine.WithLogger(logger),
	)
	mp := mappage.New(s.Page(), bridge,
		mappage.WithBaseURL(cfg.BaseURL),
		mappage.WithCatalog(catalog),
		mappage.WithDelays(delays),
		mappage.WithLoadTimeout(cfg.Timeouts.Load),
		mappage.WithLogger(logger),
	)
	return &World{
		Name:          name,
		Session:       s,
		Map:           mp,
		Waits:         waits,
		Logger:        logger,
		ScreenshotDir: cfg.Reports.ScreenshotDir,
		GoldenDir:     h.GoldenDir,
		UpdateGoldens: h.UpdateGoldens,
	}, nil
}

// After ends the scenario. Errors are logged and never returned.
func (h *Hooks) After(ctx context.Context, w *World, status Status) {
	if w == nil || w.Session == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if status == StatusFailed {
		if path, err := session.CaptureFailure(ctx, w.Session, w.Name, w.ScreenshotDir); err == nil {
			w.Screenshots = append(w.Screenshots, path)
		}
	}
	if err := w.Session.Release(ctx); err != nil {
		w.Logger.Warn("release session", zap.Error(err))
	}
	w.Memory.Reset()
}
