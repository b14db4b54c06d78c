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
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ttbt-io/mapcheck/engine"
)

var (
	// ErrUndefinedStep is returned for step names missing from the registry.
	ErrUndefinedStep = errors.New("undefined step")
	// ErrNotRecorded is returned by comparison steps run before the
	// matching record step.
	ErrNotRecorded = errors.New("nothing recorded")
	// ErrStepPanicked wraps a panic raised by a step function.
	ErrStepPanicked = errors.New("step panicked")
)

// AssertionError reports a check that did not hold.
type AssertionError struct {
	What     string
	Expected any
	Actual   any
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %v, got %v", e.What, e.Expected, e.Actual)
}

func expect(ok bool, what string, expected, actual any) error {
	if ok {
		return nil
	}
	return &AssertionError{What: what, Expected: expected, Actual: actual}
}

// closeTo compares like a "digits decimal places" check: |a-b| < 10^-d / 2.
func closeTo(a, b float64, digits int) bool {
	return math.Abs(a-b) < math.Pow(10, -float64(digits))/2
}

// Args are the literal arguments of a step.
type Args []string

func (a Args) arg(i int) (string, error) {
	if i < 0 || i >= len(a) {
		return "", fmt.Errorf("missing argument %d", i+1)
	}
	return a[i], nil
}

// String returns argument i.
func (a Args) String(i int) (string, error) {
	return a.arg(i)
}

// Float parses argument i.
func (a Args) Float(i int) (float64, error) {
	s, err := a.arg(i)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return f, nil
}

// Int parses argument i.
func (a Args) Int(i int) (int, error) {
	s, err := a.arg(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return n, nil
}

// Coordinate parses arguments i and i+1 as latitude and longitude, the
// order scenarios are written in.
func (a Args) Coordinate(i int) (engine.Coordinate, error) {
	lat, err := a.Float(i)
	if err != nil {
		return engine.Coordinate{}, err
	}
	lng, err := a.Float(i + 1)
	if err != nil {
		return engine.Coordinate{}, err
	}
	return engine.Coordinate{Lat: lat, Lng: lng}, nil
}

// StepFunc implements a step.
type StepFunc func(ctx context.Context, w *World, args Args) error

// StepDef is a registered step.
type StepDef struct {
	Name    string
	MinArgs int
	MaxArgs int
	Fn      StepFunc
}

// Registry maps step names to implementations.
type Registry struct {
	steps map[string]StepDef
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]StepDef)}
}

// Register adds a step taking between minArgs and maxArgs arguments. It
// panics on duplicate names.
func (r *Registry) Register(name string, minArgs, maxArgs int, fn StepFunc) {
	if _, dup := r.steps[name]; dup {
		panic("scenario: duplicate step " + strconv.Quote(name))
	}
	r.steps[name] = StepDef{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Fn: fn}
}

// Lookup returns the step called name.
func (r *Registry) Lookup(name string) (StepDef, bool) {
	d, ok := r.steps[name]
	return d, ok
}

// Names returns all step names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.steps))
	for n := range r.steps {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Check reports the first step of steps that is undefined or has the wrong
// number of arguments.
func (r *Registry) Check(steps []Step) error {
	for i, s := range steps {
		d, ok := r.steps[s.Name]
		if !ok {
			return fmt.Errorf("step %d %q: %w", i+1, s.Name, ErrUndefinedStep)
		}
		if n := len(s.Args); n < d.MinArgs || n > d.MaxArgs {
			return fmt.Errorf("step %d %q takes %d to %d arguments, got %d", i+1, s.Name, d.MinArgs, d.MaxArgs, n)
		}
	}
	return nil
}

// DefaultRegistry returns a registry with every built-in step.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerMapSteps(r)
	registerEngineSteps(r)
	registerLayerSteps(r)
	registerMarkerSteps(r)
	registerSearchSteps(r)
	return r
}
