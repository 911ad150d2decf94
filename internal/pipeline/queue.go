// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Queue file names under the state directory. Written on graceful shutdown,
// reloaded on the next startup.
const (
	InferenceQueueFile = "pending_inferences.json"
	PageQueueFile      = "pending_pages.json"
)

// PendingInference marks a lab that arrived before its patient's
// demographics. Re-evaluated by the inference drainer until the admit
// shows up.
type PendingInference struct {
	MRN       string    `json:"mrn"`
	Timestamp time.Time `json:"timestamp"`
}

// InferenceQueue is the shared pending-inference collection. The ingest
// loop appends, the drainer scans and removes.
type InferenceQueue struct {
	mtx     sync.Mutex
	entries []PendingInference
}

func NewInferenceQueue() *InferenceQueue {
	return &InferenceQueue{}
}

func (q *InferenceQueue) Add(e PendingInference) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.entries = append(q.entries, e)
}

// Entries returns a copy in arrival order.
func (q *InferenceQueue) Entries() []PendingInference {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return append([]PendingInference(nil), q.entries...)
}

func (q *InferenceQueue) Remove(e PendingInference) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	for i, entry := range q.entries {
		if entry.MRN == e.MRN && entry.Timestamp.Equal(e.Timestamp) {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func (q *InferenceQueue) Len() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return len(q.entries)
}

// Restore reloads entries persisted by a previous run.
func (q *InferenceQueue) Restore(entries []PendingInference) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.entries = append(q.entries, entries...)
}

// PersistQueues serializes both pending queues to the state directory.
// Part of graceful shutdown; a crash loses only the in-memory queues, never
// the store.
func PersistQueues(stateDir string, inferences []PendingInference, pages []string) error {
	if err := writeJSON(filepath.Join(stateDir, InferenceQueueFile), inferences); err != nil {
		return err
	}
	return writeJSON(filepath.Join(stateDir, PageQueueFile), pages)
}

// LoadQueues reads queue files left by a previous shutdown. Missing files
// mean empty queues.
func LoadQueues(stateDir string) ([]PendingInference, []string, error) {
	var inferences []PendingInference
	if err := readJSON(filepath.Join(stateDir, InferenceQueueFile), &inferences); err != nil {
		return nil, nil, err
	}
	var pages []string
	if err := readJSON(filepath.Join(stateDir, PageQueueFile), &pages); err != nil {
		return nil, nil, err
	}
	return inferences, pages, nil
}

func writeJSON(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("persist queue file '%s': %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load queue file '%s': %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("load queue file '%s': %w", path, err)
	}
	return nil
}
