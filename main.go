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
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/artifacts"
	"github.com/ttbt-io/mapcheck/config"
	"github.com/ttbt-io/mapcheck/mappage"
	"github.com/ttbt-io/mapcheck/scenario"
)

var (
	configFile    = flag.String("config", "", "Path to the config file. Defaults to mapcheck.yaml in . or ./configs")
	scenarioGlob  = flag.String("scenarios", "scenarios/*.yaml", "Comma-separated list of scenario file globs")
	tags          = flag.String("tags", "", "Comma-separated list of tags. Only scenarios with one of them run")
	parallel      = flag.Int("parallel", 0, "Number of scenarios run at once. Overrides suite.parallel")
	remoteURL     = flag.String("remote", "", "DevTools URL of a running browser. Overrides browser.remote_url")
	headed        = flag.Bool("headed", false, "Show the browser window")
	baseURL       = flag.String("base-url", "", "URL of the map application. Overrides base_url")
	traceFile     = flag.String("trace", "", "Write scenario and step spans to this file")
	goldenDir     = flag.String("golden-dir", "testdata/golden", "Directory of golden files")
	updateGoldens = flag.Bool("update-goldens", false, "Rewrite golden files instead of comparing")
	listSteps     = flag.Bool("list-steps", false, "Print the step vocabulary and exit")
	debugMode     = flag.Bool("debug", false, "Enable debug logging")
)

// main runs the scenario suite against the map application.
func main() {
	flag.Parse()

	if *listSteps {
		for _, name := range scenario.DefaultRegistry().Names() {
			fmt.Println(name)
		}
		return
	}
	os.Exit(run())
}

// run returns the process exit code: 1 when any scenario failed.
func run() int {

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *parallel > 0 {
		cfg.Suite.Parallel = *parallel
	}
	if *remoteURL != "" {
		cfg.Browser.RemoteURL = *remoteURL
	}
	if *headed {
		cfg.Browser.Headless = false
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := newLogger(*debugMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	catalog := mappage.DefaultCatalog()
	if cfg.CatalogFile != "" {
		if catalog, err = mappage.LoadCatalog(cfg.CatalogFile); err != nil {
			log.Fatalf("Failed to load selector catalog: %v", err)
		}
	}

	scenarios, err := loadScenarios(*scenarioGlob)
	if err != nil {
		log.Fatalf("Failed to load scenarios: %v", err)
	}
	if *tags != "" {
		scenarios = scenario.FilterTags(scenarios, strings.Split(*tags, ","))
	}
	if len(scenarios) == 0 {
		log.Fatalf("No scenarios match %q", *scenarioGlob)
	}

	passphrase := os.Getenv("MAPCHECK_MASTER_KEY")
	if passphrase == "" {
		keyFile := filepath.Join(cfg.Reports.RunsDir, "master.key")
		if _, err := os.Stat(keyFile); err == nil {
			log.Fatalf("%s exists but MAPCHECK_MASTER_KEY is not set. Refusing to mix encrypted and plain run records.", keyFile)
		}
	}
	store, err := artifacts.Open(cfg.Reports.RunsDir, passphrase)
	if err != nil {
		log.Fatalf("Failed to open run store: %v", err)
	}

	opts := []scenario.RunnerOption{scenario.WithStore(store)}
	if *traceFile != "" {
		tp, closeTrace, err := newTracerProvider(*traceFile)
		if err != nil {
			log.Fatalf("Failed to set up tracing: %v", err)
		}
		defer closeTrace()
		opts = append(opts, scenario.WithTracerProvider(tp))
	}

	hooks := &scenario.Hooks{
		Config:        cfg,
		Catalog:       catalog,
		Logger:        logger,
		GoldenDir:     *goldenDir,
		UpdateGoldens: *updateGoldens,
	}
	suite := &scenario.Suite{
		Runner:   scenario.NewRunner(hooks, opts...),
		Parallel: cfg.Suite.Parallel,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Running %d scenarios against %s", len(scenarios), cfg.BaseURL)
	results, err := suite.Run(ctx, scenarios)
	if err != nil {
		log.Printf("Suite stopped: %v", err)
	}
	for _, r := range results {
		line := fmt.Sprintf("%-7s %s (%v)", r.Status, r.Scenario.Name, r.Finished.Sub(r.Started).Round(time.Millisecond))
		if r.Err != nil {
			line += ": " + r.Err.Error()
		}
		log.Println(line)
		for _, s := range r.Screenshots {
			log.Printf("        screenshot: %s", s)
		}
	}
	sum := scenario.Summarize(results)
	log.Printf("%d passed, %d failed, %d skipped", sum.Passed, sum.Failed, sum.Skipped)
	if sum.Failed > 0 || err != nil {
		return 1
	}
	return 0
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadScenarios(globs string) ([]scenario.Scenario, error) {
	var files []string
	for _, g := range strings.Split(globs, ",") {
		matches, err := filepath.Glob(strings.TrimSpace(g))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return scenario.LoadFiles(files)
}

func newTracerProvider(path string) (*sdktrace.TracerProvider, func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "mapcheck"))),
	)
	return tp, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Trace shutdown error: %v", err)
		}
		f.Close()
	}, nil
}
