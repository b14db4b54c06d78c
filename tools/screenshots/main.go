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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ttbt-io/mapcheck/artifacts"
	"github.com/ttbt-io/mapcheck/config"
	"github.com/ttbt-io/mapcheck/engine"
	"github.com/ttbt-io/mapcheck/mappage"
	"github.com/ttbt-io/mapcheck/session"
)

var (
	chromeURL  = flag.String("chrome-url", "", "The url of the remote debugging port. A local browser is started when empty")
	outputDir  = flag.String("output-dir", "screenshots", "Directory to save screenshots")
	baseURL    = flag.String("base-url", mappage.DefaultBaseURL, "URL of the map application")
	configFile = flag.String("config", "", "Path to the config file")
)

// view is a reference camera position.
type view struct {
	name   string
	center engine.Coordinate
	zoom   float64
}

var views = []view{
	{"overview", engine.Coordinate{Lat: 34.8671, Lng: 138.3245}, 12},
	{"city-hall", engine.Coordinate{Lat: 34.8671, Lng: 138.3245}, 16},
	{"yaizu-station", engine.Coordinate{Lat: 34.8700, Lng: 138.3186}, 16},
	{"yaizu-port", engine.Coordinate{Lat: 34.8636, Lng: 138.3301}, 15},
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.BaseURL = *baseURL
	if *chromeURL != "" {
		cfg.Browser.RemoteURL = *chromeURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second) // very generous timeout
	defer cancel()

	// Ensure output dir exists
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	s, err := session.Acquire(ctx, cfg.Browser)
	if err != nil {
		log.Fatalf("Failed to start browser: %v", err)
	}
	defer s.Release(ctx)

	bindings, err := cfg.EngineBindings()
	if err != nil {
		log.Fatalf("Invalid bindings: %v", err)
	}
	bridge := engine.NewBridge(s.Page(),
		engine.WithBindings(bindings...),
		engine.WithTimeouts(cfg.Timeouts.Load, cfg.Timeouts.Idle),
	)
	m := mappage.New(s.Page(), bridge,
		mappage.WithBaseURL(cfg.BaseURL),
		mappage.WithLoadTimeout(cfg.Timeouts.Load),
	)

	log.Println("Starting screenshot generation...")
	if err := runAction(ctx, m, "open", m.Open); err != nil {
		log.Fatalf("Failed to open the map: %v", err)
	}
	if err := runAction(ctx, m, "style", bridge.WaitForStyleLoad); err != nil {
		log.Printf("Style did not report loaded, continuing: %v", err)
	}

	for _, v := range views {
		if err := captureView(ctx, m, v); err != nil {
			log.Fatalf("Failed to capture %s: %v", v.name, err)
		}
	}
	log.Println("Screenshots generated successfully.")
}

func captureView(ctx context.Context, m *mappage.MapPage, v view) error {
	err := runAction(ctx, m, v.name, func(ctx context.Context) error {
		if err := m.SetCenter(ctx, v.center); err != nil {
			return err
		}
		if err := m.SetZoom(ctx, v.zoom); err != nil {
			return err
		}
		return m.Bridge().WaitForIdle(ctx)
	})
	if err != nil {
		return err
	}
	buf, err := m.Page().Screenshot(ctx, false)
	if err != nil {
		return err
	}
	path := filepath.Join(*outputDir, artifacts.SanitizeName(v.name)+".png")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return err
	}
	z, _ := m.Bridge().Zoom(ctx)
	c, _ := m.Bridge().Center(ctx)
	log.Printf("Saved %s (center %s, zoom %.1f)", path, c, z)
	return nil
}

func debugFailure(ctx context.Context, m *mappage.MapPage, name string) {
	log.Printf("DEBUG: capturing failure info for %s", name)
	var htmlContent string
	if err := m.Page().Evaluate(ctx, `function() { return document.documentElement.outerHTML; }`, nil, &htmlContent); err != nil {
		log.Printf("DEBUG: Failed to capture HTML: %v", err)
	} else {
		log.Printf("DEBUG: HTML Dump for %s:\n%s", name, htmlContent)
	}

	if buf, err := m.Page().Screenshot(ctx, false); err == nil {
		os.WriteFile(filepath.Join(*outputDir, fmt.Sprintf("debug-%s.png", name)), buf, 0644)
		log.Printf("DEBUG: Saved screenshot to debug-%s.png", name)
	} else {
		log.Printf("DEBUG: Failed to capture screenshot: %v", err)
	}
}

// runAction runs fn with a timeout and captures debug info on failure.
func runAction(ctx context.Context, m *mappage.MapPage, name string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := fn(stepCtx); err != nil {
		log.Printf("Action '%s' failed: %v", name, err)
		debugFailure(ctx, m, name+"-failed")
		return err
	}
	return nil
}
