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

// Package config loads mapcheck settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ttbt-io/mapcheck/engine"
)

// Config holds all settings.
type Config struct {
	BaseURL     string   `mapstructure:"base_url"`
	Bindings    []string `mapstructure:"bindings"`
	CatalogFile string   `mapstructure:"catalog_file"`
	Browser     Browser  `mapstructure:"browser"`
	Timeouts    Timeouts `mapstructure:"timeouts"`
	Reports     Reports  `mapstructure:"reports"`
	Suite       Suite    `mapstructure:"suite"`
}

// Browser configures the browser session of one scenario.
type Browser struct {
	Headless bool `mapstructure:"headless"`
	// RemoteURL attaches to a running browser's DevTools endpoint instead of
	// launching one.
	RemoteURL        string        `mapstructure:"remote_url"`
	ExecPath         string        `mapstructure:"exec_path"`
	InteractionDelay time.Duration `mapstructure:"interaction_delay"`
	Viewport         Viewport      `mapstructure:"viewport"`
	Locale           string        `mapstructure:"locale"`
	Geolocation      Geolocation   `mapstructure:"geolocation"`
	Permissions      []string      `mapstructure:"permissions"`
}

type Viewport struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

type Geolocation struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Accuracy  float64 `mapstructure:"accuracy"`
}

type Timeouts struct {
	Load time.Duration `mapstructure:"load"`
	Idle time.Duration `mapstructure:"idle"`
}

type Reports struct {
	Dir           string `mapstructure:"dir"`
	ScreenshotDir string `mapstructure:"screenshot_dir"`
	RunsDir       string `mapstructure:"runs_dir"`
}

type Suite struct {
	Parallel        int           `mapstructure:"parallel"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout"`
	// FastDelays zeroes the fixed settle delays. Only useful against pages
	// without animations.
	FastDelays bool `mapstructure:"fast_delays"`
}

// DebugInteractionDelay is the pause inserted between browser actions when
// DEBUG=true.
const DebugInteractionDelay = 100 * time.Millisecond

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://maps.yaizu-smartcity.jp/")
	v.SetDefault("bindings", []string{"map", "geoloniaMap", "geolonia.map"})
	v.SetDefault("catalog_file", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.interaction_delay", time.Duration(0))
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.locale", "ja-JP")
	v.SetDefault("browser.geolocation.latitude", 34.8671)
	v.SetDefault("browser.geolocation.longitude", 138.3245)
	v.SetDefault("browser.geolocation.accuracy", 10.0)
	v.SetDefault("browser.permissions", []string{"geolocation"})
	v.SetDefault("timeouts.load", 30*time.Second)
	v.SetDefault("timeouts.idle", 10*time.Second)
	v.SetDefault("reports.dir", "reports")
	v.SetDefault("reports.screenshot_dir", "reports/screenshots")
	v.SetDefault("reports.runs_dir", "reports/runs")
	v.SetDefault("suite.parallel", 1)
	v.SetDefault("suite.scenario_timeout", 5*time.Minute)
	v.SetDefault("suite.fast_delays", false)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// Load reads configuration. When path is empty, mapcheck.yaml is looked up
// in . and ./configs and may be missing. Environment variables override the
// file: MAPCHECK_BROWSER_LOCALE sets browser.locale. HEADLESS=false and
// DEBUG=true are honored as well.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MAPCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := load(v, path)
	if err != nil {
		return nil, err
	}
	if os.Getenv("HEADLESS") == "false" {
		cfg.Browser.Headless = false
	}
	if os.Getenv("DEBUG") == "true" && cfg.Browser.InteractionDelay == 0 {
		cfg.Browser.InteractionDelay = DebugInteractionDelay
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("mapcheck")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// EngineBindings parses Bindings.
func (c *Config) EngineBindings() ([]engine.Binding, error) {
	return engine.ParseBindings(c.Bindings)
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("base_url must be an absolute http(s) URL, got %q", c.BaseURL))
	}
	if len(c.Bindings) == 0 {
		errs = append(errs, "bindings must not be empty")
	} else if _, err := c.EngineBindings(); err != nil {
		errs = append(errs, fmt.Sprintf("bindings: %v", err))
	}
	if c.Browser.RemoteURL != "" {
		if u, err := url.Parse(c.Browser.RemoteURL); err != nil || u.Scheme == "" {
			errs = append(errs, fmt.Sprintf("browser.remote_url is not a URL: %q", c.Browser.RemoteURL))
		}
	}
	if c.Browser.InteractionDelay < 0 {
		errs = append(errs, "browser.interaction_delay must not be negative")
	}
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		errs = append(errs, fmt.Sprintf("browser.viewport must be positive, got %dx%d", c.Browser.Viewport.Width, c.Browser.Viewport.Height))
	}
	if c.Browser.Locale == "" {
		errs = append(errs, "browser.locale is required")
	}
	if g := c.Browser.Geolocation; g.Latitude < -90 || g.Latitude > 90 || g.Longitude < -180 || g.Longitude > 180 {
		errs = append(errs, fmt.Sprintf("browser.geolocation out of range: %v,%v", g.Latitude, g.Longitude))
	}
	if c.Timeouts.Load <= 0 {
		errs = append(errs, "timeouts.load must be positive")
	}
	if c.Timeouts.Idle <= 0 {
		errs = append(errs, "timeouts.idle must be positive")
	}
	if c.Reports.ScreenshotDir == "" {
		errs = append(errs, "reports.screenshot_dir is required")
	}
	if c.Reports.RunsDir == "" {
		errs = append(errs, "reports.runs_dir is required")
	}
	if c.Suite.Parallel < 1 {
		errs = append(errs, fmt.Sprintf("suite.parallel must be at least 1, got %d", c.Suite.Parallel))
	}
	if c.Suite.ScenarioTimeout <= 0 {
		errs = append(errs, "suite.scenario_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
