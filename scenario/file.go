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
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Step is one line of a scenario: a registered step name and its literal
// arguments. In YAML a step is either a bare name or a single-key mapping
// from the name to one argument or a list of arguments:
//
//   - open the map
//   - search: 焼津駅
//   - set center: [34.8671, 138.3245]
type Step struct {
	Name string
	Args Args
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = Step{Name: node.Value}
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: step must have exactly one name", node.Line)
		}
		key, val := node.Content[0], node.Content[1]
		if key.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: step name must be a string", key.Line)
		}
		st := Step{Name: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			st.Args = Args{val.Value}
		case yaml.SequenceNode:
			for _, n := range val.Content {
				if n.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: step %q: arguments must be scalars", n.Line, st.Name)
				}
				st.Args = append(st.Args, n.Value)
			}
		default:
			return fmt.Errorf("line %d: step %q: arguments must be a scalar or a list", val.Line, st.Name)
		}
		*s = st
		return nil
	}
	return fmt.Errorf("line %d: invalid step", node.Line)
}

// MarshalYAML implements yaml.Marshaler.
func (s Step) MarshalYAML() (any, error) {
	switch len(s.Args) {
	case 0:
		return s.Name, nil
	case 1:
		return map[string]string{s.Name: s.Args[0]}, nil
	}
	return map[string][]string{s.Name: s.Args}, nil
}

// Scenario is a named list of steps.
type Scenario struct {
	Name  string   `yaml:"name"`
	Tags  []string `yaml:"tags,omitempty"`
	Steps []Step   `yaml:"steps"`

	// Source is the file the scenario was loaded from.
	Source string `yaml:"-"`
}

// HasTag reports whether the scenario carries tag.
func (s Scenario) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// File is a scenario file. Background steps run before the steps of every
// scenario in the file.
type File struct {
	Feature    string     `yaml:"feature"`
	Background []Step     `yaml:"background,omitempty"`
	Scenarios  []Scenario `yaml:"scenarios"`
}

// Parse decodes a scenario file and returns its scenarios with the
// background steps prepended.
func Parse(data []byte, source string) ([]Scenario, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("%s: no scenarios", source)
	}
	out := make([]Scenario, 0, len(f.Scenarios))
	for i, sc := range f.Scenarios {
		if sc.Name == "" {
			return nil, fmt.Errorf("%s: scenario %d has no name", source, i+1)
		}
		if f.Feature != "" {
			sc.Name = f.Feature + ": " + sc.Name
		}
		sc.Steps = append(slices.Clone(f.Background), sc.Steps...)
		sc.Source = source
		out = append(out, sc)
	}
	return out, nil
}

// LoadFile reads and parses the scenario file at path.
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// LoadFiles loads every file in paths, in order.
func LoadFiles(paths []string) ([]Scenario, error) {
	var all []Scenario
	for _, p := range paths {
		sc, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, sc...)
	}
	return all, nil
}

// FilterTags returns the scenarios carrying at least one of tags. No tags
// selects everything.
func FilterTags(all []Scenario, tags []string) []Scenario {
	if len(tags) == 0 {
		return all
	}
	var out []Scenario
	for _, sc := range all {
		if slices.ContainsFunc(tags, sc.HasTag) {
			out = append(out, sc)
		}
	}
	return out
}
