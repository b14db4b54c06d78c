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

// Package artifacts persists what a run leaves behind: failure screenshots
// and one record per executed scenario.
package artifacts

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown run ids.
var ErrNotFound = errors.New("run not found")

const runsDir = "runs"

// StepRecord is the outcome of one step.
type StepRecord struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunRecord is the outcome of one scenario.
type RunRecord struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId,omitempty"`
	Scenario    string       `json:"scenario"`
	Source      string       `json:"source,omitempty"`
	Status      string       `json:"status"`
	Error       string       `json:"error,omitempty"`
	Started     time.Time    `json:"started"`
	Finished    time.Time    `json:"finished"`
	Steps       []StepRecord `json:"steps,omitempty"`
	Screenshots []string     `json:"screenshots,omitempty"`
}

// RunMetadata is the sidecar kept next to each record for cheap listing.
type RunMetadata struct {
	ID       string    `json:"id"`
	Scenario string    `json:"scenario"`
	Status   string    `json:"status"`
	Started  time.Time `json:"started"`
}

// Store keeps run records in a storage directory.
type Store struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Mutex
}

// NewStore returns a store on s, whose root directory is dataDir.
func NewStore(dataDir string, s *storage.Storage) *Store {
	return &Store{DataDir: dataDir, storage: s}
}

// Open creates the storage for dataDir. With a non-empty passphrase the
// records are encrypted with a master key kept in dataDir/master.key, which
// is created on first use.
func Open(dataDir, passphrase string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, runsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	var masterKey crypto.MasterKey
	if passphrase != "" {
		keyFile := filepath.Join(dataDir, "master.key")
		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if errors.Is(err, os.ErrNotExist) {
			log.Println("Initializing new master encryption key...")
			if masterKey, err = crypto.CreateMasterKey(); err != nil {
				return nil, fmt.Errorf("create master key: %w", err)
			}
			if err = masterKey.Save([]byte(passphrase), keyFile); err != nil {
				return nil, fmt.Errorf("save master key: %w", err)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("read master key: %w", err)
		}
	}
	s := storage.New(dataDir, masterKey)
	s.EnableCompression(true)
	return NewStore(dataDir, s), nil
}

func recordFiles(id string) (string, string) {
	enc := url.PathEscape(id)
	return filepath.Join(runsDir, enc+".json"), filepath.Join(runsDir, enc+".meta.json")
}

// NewRunID returns a fresh run id.
func NewRunID() string {
	return uuid.NewString()
}

// SaveRun writes r and its metadata sidecar. An empty ID is filled in.
func (st *Store) SaveRun(r *RunRecord) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.saveLocked(r)
}

func (st *Store) saveLocked(r *RunRecord) error {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	filename, metaFilename := recordFiles(r.ID)
	if err := os.MkdirAll(filepath.Join(st.DataDir, runsDir), 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	if err := st.storage.SaveDataFile(filename, r); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	meta := RunMetadata{
		ID:       r.ID,
		Scenario: r.Scenario,
		Status:   r.Status,
		Started:  r.Started,
	}
	if err := st.storage.SaveDataFile(metaFilename, &meta); err != nil {
		log.Printf("Warning: Failed to save metadata sidecar for run %s: %v", r.ID, err)
	}
	return nil
}

// LoadRun reads the record with the given id.
func (st *Store) LoadRun(id string) (*RunRecord, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.loadLocked(id)
}

func (st *Store) loadLocked(id string) (*RunRecord, error) {
	filename, _ := recordFiles(id)
	var r RunRecord
	if err := st.storage.ReadDataFile(filename, &r); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("storage.ReadDataFile: %w", err)
	}
	return &r, nil
}

// AttachScreenshot appends a screenshot path to a stored record.
func (st *Store) AttachScreenshot(id, path string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	r, err := st.loadLocked(id)
	if err != nil {
		return err
	}
	r.Screenshots = append(r.Screenshots, path)
	return st.saveLocked(r)
}

// ListRuns returns the metadata of every stored run, oldest first.
func (st *Store) ListRuns() ([]RunMetadata, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(st.DataDir, runsDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []RunMetadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".meta.json") {
			continue
		}
		var meta RunMetadata
		if err := st.storage.ReadDataFile(filepath.Join(runsDir, e.Name()), &meta); err != nil {
			log.Printf("Warning: Skipping unreadable run metadata %s: %v", e.Name(), err)
			continue
		}
		list = append(list, meta)
	}
	slices.SortFunc(list, func(a, b RunMetadata) int {
		if c := a.Started.Compare(b.Started); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return list, nil
}
