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

package e2e

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/ttbt-io/mapcheck/mappage"
)

// VerifyLayerList captures the layer panel entries and compares them to a
// golden file. If UPDATE_GOLDENS is true, it writes the file instead. Without
// a recorded file the check is skipped, since the list depends on the
// deployment under test.
func VerifyLayerList(t *testing.T, ctx context.Context, m *mappage.MapPage, goldenFilename string) {
	t.Helper()
	layers, err := m.AvailableLayers(ctx)
	if err != nil {
		t.Fatalf("Failed to read layer list: %v", err)
	}
	actual := strings.TrimSpace(strings.Join(layers, "\n"))
	if len(actual) == 0 {
		t.Fatal("Layer list is empty")
	}

	goldenPath := filepath.Join("goldens", goldenFilename)

	if os.Getenv("UPDATE_GOLDENS") == "true" {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			t.Fatalf("Failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, []byte(actual), 0644); err != nil {
			t.Fatalf("Failed to write golden file %s: %v", goldenPath, err)
		}
		t.Logf("Updated golden file: %s", goldenPath)
		return
	}

	expectedBytes, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Skipf("Golden file missing: %s. Run with UPDATE_GOLDENS=true to record it.\nActual Content:\n%s", goldenPath, actual)
		}
		t.Fatalf("Failed to read golden file %s: %v", goldenPath, err)
	}
	expected := strings.TrimSpace(string(expectedBytes))
	if actual != expected {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(expected),
			B:        difflib.SplitLines(actual),
			FromFile: "Expected",
			ToFile:   "Actual",
			Context:  3,
		})
		t.Errorf("Layer list mismatch for %s:\n%s", goldenFilename, diff)
	}
}
