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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ttbt-io/mapcheck/artifacts"
)

const tracerName = "github.com/ttbt-io/mapcheck/scenario"

// StepResult is the outcome of one step.
type StepResult struct {
	Step     Step
	Status   Status
	Err      error
	Duration time.Duration
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario    Scenario
	RunID       string
	SessionID   string
	Status      Status
	Err         error
	Steps       []StepResult
	Screenshots []string
	Started     time.Time
	Finished    time.Time
}

// Runner executes scenarios one at a time through a set of hooks.
type Runner struct {
	hooks    *Hooks
	registry *Registry
	tracer   trace.Tracer
	store    *artifacts.Store
	logger   *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRegistry replaces the default step registry.
func WithRegistry(r *Registry) RunnerOption {
	return func(rn *Runner) {
		rn.registry = r
	}
}

// WithTracerProvider sets where spans go. The global provider is used by
// default.
func WithTracerProvider(tp trace.TracerProvider) RunnerOption {
	return func(rn *Runner) {
		rn.tracer = tp.Tracer(tracerName)
	}
}

// WithStore saves a record of every scenario run.
func WithStore(s *artifacts.Store) RunnerOption {
	return func(rn *Runner) {
		rn.store = s
	}
}

// NewRunner returns a runner using hooks.
func NewRunner(hooks *Hooks, opts ...RunnerOption) *Runner {
	r := &Runner{
		hooks:    hooks,
		registry: DefaultRegistry(),
		tracer:   otel.Tracer(tracerName),
		logger:   hooks.logger().Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the runner's step registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run executes sc in a fresh session. Steps after the first failure are
// skipped. A scenario with undefined steps fails without opening a browser.
func (r *Runner) Run(ctx context.Context, sc Scenario) (res Result) {
	res = Result{Scenario: sc, RunID: artifacts.NewRunID(), Started: time.Now()}

	ctx, span := r.tracer.Start(ctx, "scenario",
		trace.WithAttributes(
			attribute.String("scenario.name", sc.Name),
			attribute.String("scenario.source", sc.Source),
			attribute.String("run.id", res.RunID),
		))
	defer span.End()
	logger := r.logger.With(zap.String("scenario", sc.Name), zap.String("run", res.RunID))

	defer func() {
		res.Finished = time.Now()
		span.SetAttributes(attribute.String("scenario.status", string(res.Status)))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		logger.Info("scenario finished",
			zap.String("status", string(res.Status)),
			zap.Duration("duration", res.Finished.Sub(res.Started)),
			zap.Error(res.Err),
		)
	}()

	if err := r.registry.Check(sc.Steps); err != nil {
		res.Status, res.Err = StatusFailed, err
		for _, st := range sc.Steps {
			res.Steps = append(res.Steps, StepResult{Step: st, Status: StatusSkipped})
		}
		r.save(&res, logger)
		return res
	}

	if d := r.hooks.Config.Suite.ScenarioTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	w, err := r.hooks.Before(ctx, sc.Name)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		r.save(&res, logger)
		return res
	}
	res.SessionID = w.Session.ID()
	span.SetAttributes(attribute.String("session.id", res.SessionID))
	defer r.finish(ctx, w, &res, logger)

	res.Status = StatusPassed
	for _, st := range sc.Steps {
		if res.Status == StatusFailed {
			res.Steps = append(res.Steps, StepResult{Step: st, Status: StatusSkipped})
			continue
		}
		sr := r.runStep(ctx, w, st)
		res.Steps = append(res.Steps, sr)
		if sr.Err != nil {
			res.Status = StatusFailed
			res.Err = fmt.Errorf("step %q: %w", st.Name, sr.Err)
		}
	}
	res.Screenshots = slices.Clone(w.Screenshots)
	r.save(&res, logger)
	return res
}

// finish releases the scenario's session and attaches any failure
// screenshots taken on the way out. It runs on every exit path once the
// session exists.
func (r *Runner) finish(ctx context.Context, w *World, res *Result, logger *zap.Logger) {
	if res.Status == "" {
		res.Status = StatusFailed
	}
	taken := len(w.Screenshots)
	r.hooks.After(ctx, w, res.Status)
	for _, p := range w.Screenshots[taken:] {
		res.Screenshots = append(res.Screenshots, p)
		if r.store == nil {
			continue
		}
		if err := r.store.AttachScreenshot(res.RunID, p); err != nil {
			logger.Warn("attach screenshot", zap.String("path", p), zap.Error(err))
		}
	}
}

func (r *Runner) runStep(ctx context.Context, w *World, st Step) (sr StepResult) {
	def, _ := r.registry.Lookup(st.Name)
	ctx, span := r.tracer.Start(ctx, "step",
		trace.WithAttributes(
			attribute.String("step.name", st.Name),
			attribute.StringSlice("step.args", st.Args),
		))
	defer span.End()

	start := time.Now()
	sr = StepResult{Step: st, Status: StatusPassed}
	defer func() {
		if p := recover(); p != nil {
			sr.Err = fmt.Errorf("%w: %v", ErrStepPanicked, p)
		}
		sr.Duration = time.Since(start)
		if sr.Err != nil {
			sr.Status = StatusFailed
			span.RecordError(sr.Err)
			span.SetStatus(codes.Error, sr.Err.Error())
			w.Logger.Error("step failed", zap.String("step", st.Name), zap.Strings("args", st.Args), zap.Error(sr.Err))
		} else {
			w.Logger.Debug("step passed", zap.String("step", st.Name), zap.Duration("duration", sr.Duration))
		}
	}()
	sr.Err = def.Fn(ctx, w, st.Args)
	return sr
}

func (r *Runner) save(res *Result, logger *zap.Logger) {
	if r.store == nil {
		return
	}
	rec := &artifacts.RunRecord{
		ID:          res.RunID,
		SessionID:   res.SessionID,
		Scenario:    res.Scenario.Name,
		Source:      res.Scenario.Source,
		Status:      string(res.Status),
		Started:     res.Started,
		Finished:    time.Now(),
		Screenshots: res.Screenshots,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	for _, sr := range res.Steps {
		s := artifacts.StepRecord{Name: sr.Step.Name, Status: string(sr.Status), Duration: sr.Duration}
		if sr.Err != nil {
			s.Error = sr.Err.Error()
		}
		rec.Steps = append(rec.Steps, s)
	}
	if err := r.store.SaveRun(rec); err != nil {
		logger.Warn("save run record", zap.Error(err))
	}
}

// Suite runs many scenarios, each in its own session.
type Suite struct {
	Runner *Runner
	// Parallel is the number of scenarios run at once. Values below one run
	// them sequentially.
	Parallel int
}

// Run calls BeforeAll and then runs every scenario. Results are in the order
// of scenarios. The error is non-nil only when the suite could not run at
// all or ctx ended; failed scenarios are reported in their results.
func (s *Suite) Run(ctx context.Context, scenarios []Scenario) ([]Result, error) {
	if err := s.Runner.hooks.BeforeAll(); err != nil {
		return nil, err
	}
	results := make([]Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Parallel, 1))
	for i, sc := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Scenario: sc, Status: StatusSkipped, Err: err}
				return err
			}
			results[i] = s.Runner.Run(ctx, sc)
			return nil
		})
	}
	return results, g.Wait()
}

// Summary counts results by status.
type Summary struct {
	Passed  int
	Failed  int
	Skipped int
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		default:
			s.Skipped++
		}
	}
	return s
}
