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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
)

// verifyGolden compares actual with the golden file name under the world's
// golden directory, or rewrites the file when goldens are being updated.
func verifyGolden(w *World, name, actual string) error {
	actual = strings.TrimSpace(actual)
	path := filepath.Join(w.GoldenDir, name)

	if w.UpdateGoldens {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(actual+"\n"), 0o644); err != nil {
			return fmt.Errorf("write golden %s: %w", path, err)
		}
		w.Logger.Info("updated golden file", zap.String("path", path))
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("golden file missing: %s, rerun with goldens updating to create it:\n%s", path, actual)
	}
	if err != nil {
		return fmt.Errorf("read golden %s: %w", path, err)
	}
	expected := strings.TrimSpace(string(data))
	if actual == expected {
		return nil
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  3,
	})
	return &AssertionError{What: "golden " + name, Expected: "no diff", Actual: "\n" + diff}
}
