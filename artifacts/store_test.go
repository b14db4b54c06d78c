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

package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"Map loads", "Map_loads"},
		{"search: 焼津駅", "search_____"},
		{"a/b\\c.d", "a_b_c_d"},
		{"ok123", "ok123"},
	} {
		assert.Equal(t, tc.want, SanitizeName(tc.in), tc.in)
	}
}

func TestWriteScreenshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports", "screenshots")
	at := time.UnixMilli(1767225600123)
	path, err := WriteScreenshot(dir, "zoom in works", at, []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zoom_in_works_1767225600123.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, storage.New(dir, nil))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	second := &RunRecord{Scenario: "pan", Status: "passed", Started: base.Add(time.Minute)}
	first := &RunRecord{
		Scenario: "search",
		Status:   "failed",
		Error:    "popup not visible",
		Started:  base,
		Finished: base.Add(10 * time.Second),
		Steps: []StepRecord{
			{Name: "open the map", Status: "passed", Duration: 3 * time.Second},
			{Name: "search for", Status: "failed", Error: "popup not visible"},
		},
	}
	require.NoError(t, st.SaveRun(second))
	require.NoError(t, st.SaveRun(first))
	require.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := st.LoadRun(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Steps, got.Steps)
	assert.True(t, first.Finished.Equal(got.Finished))

	require.NoError(t, st.AttachScreenshot(first.ID, "reports/screenshots/search_1.png"))
	got, err = st.LoadRun(first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/screenshots/search_1.png"}, got.Screenshots)

	list, err := st.ListRuns()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "failed", list[0].Status)
	assert.Equal(t, "pan", list[1].Scenario)

	_, err = st.LoadRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound), "err = %v", err)
	assert.True(t, errors.Is(st.AttachScreenshot("missing", "x.png"), ErrNotFound))
}

func TestOpenEncrypted(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir, "correct horse")
	require.NoError(t, err)
	r := &RunRecord{Scenario: "smoke", Status: "passed", Started: time.Now()}
	require.NoError(t, st.SaveRun(r))
	assert.FileExists(t, filepath.Join(dir, "master.key"))

	reopened, err := Open(dir, "correct horse")
	require.NoError(t, err)
	got, err := reopened.LoadRun(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "smoke", got.Scenario)

	_, err = Open(dir, "wrong")
	assert.Error(t, err)
}

func TestListRunsEmpty(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, storage.New(dir, nil))
	list, err := st.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, list)
}
