// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"path/filepath"
	"testing"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*PatientRepository, string) {
	t.Helper()
	cclog.Init("warn", true)

	dbfile := filepath.Join(t.TempDir(), "patients.db")
	require.NoError(t, MigrateDB(dbfile))

	repo := NewPatientRepository(Connect(dbfile))
	t.Cleanup(func() { repo.Close() })
	return repo, dbfile
}

func ts(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSnapshotNotFound(t *testing.T) {
	repo, _ := setup(t)

	_, err := repo.Snapshot("1001", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertDemographicsLastWriterWins(t *testing.T) {
	repo, _ := setup(t)

	require.NoError(t, repo.UpsertDemographics("1001", ts("1960-01-01 00:00:00"), 0))
	require.NoError(t, repo.UpsertDemographics("1001", ts("1961-02-02 00:00:00"), 1))

	view, err := repo.Snapshot("1001", nil)
	require.NoError(t, err)
	assert.Equal(t, ts("1961-02-02 00:00:00"), view.DOB)
	assert.Equal(t, 1, view.Sex)
	assert.Empty(t, view.CreatinineLevels)
}

func TestAppendLabAndSnapshotOrder(t *testing.T) {
	repo, _ := setup(t)

	require.NoError(t, repo.UpsertDemographics("1001", ts("1960-01-01 00:00:00"), 0))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-02 12:00:00"), 120))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-01 12:00:00"), 100))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-03 12:00:00"), 140))

	view, err := repo.Snapshot("1001", nil)
	require.NoError(t, err)

	// Insertion order, not chronological order.
	assert.Equal(t, []float64{120, 100, 140}, view.CreatinineLevels)
	assert.Equal(t, []time.Time{
		ts("2024-01-02 12:00:00"), ts("2024-01-01 12:00:00"), ts("2024-01-03 12:00:00"),
	}, view.Dates)
}

func TestSnapshotTimeBounded(t *testing.T) {
	repo, _ := setup(t)

	require.NoError(t, repo.UpsertDemographics("1001", ts("1960-01-01 00:00:00"), 0))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-01 12:00:00"), 100))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-02 12:00:00"), 120))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-03 12:00:00"), 140))

	upTo := ts("2024-01-02 12:00:00")
	view, err := repo.Snapshot("1001", &upTo)
	require.NoError(t, err)

	// Labs newer than upTo are excluded; the bound itself is included.
	assert.Equal(t, []float64{100, 120}, view.CreatinineLevels)
}

func TestAppendLabKeepsDuplicates(t *testing.T) {
	repo, _ := setup(t)

	require.NoError(t, repo.UpsertDemographics("1001", ts("1960-01-01 00:00:00"), 0))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-01 12:00:00"), 100))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-01 12:00:00"), 100))

	view, err := repo.Snapshot("1001", nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 100}, view.CreatinineLevels)
}

// Labs with no admit yet are stored; only Snapshot requires demographics.
func TestLabsBeforeDemographics(t *testing.T) {
	repo, _ := setup(t)

	require.NoError(t, repo.AppendLab("1001", ts("2024-01-01 12:00:00"), 100))
	_, err := repo.Snapshot("1001", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.UpsertDemographics("1001", ts("1960-01-01 00:00:00"), 0))
	view, err := repo.Snapshot("1001", nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, view.CreatinineLevels)
}

func TestIsPopulated(t *testing.T) {
	repo, _ := setup(t)

	populated, err := repo.IsPopulated()
	require.NoError(t, err)
	assert.False(t, populated)

	require.NoError(t, repo.AppendLab("1001", ts("2024-01-01 12:00:00"), 100))
	populated, err = repo.IsPopulated()
	require.NoError(t, err)
	assert.True(t, populated)
}

// The store survives a close and reopen with identical contents.
func TestDurabilityAcrossReopen(t *testing.T) {
	repo, dbfile := setup(t)

	require.NoError(t, repo.UpsertDemographics("1001", ts("1960-01-01 00:00:00"), 1))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-01 12:00:00"), 100))
	before, err := repo.Snapshot("1001", nil)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened := NewPatientRepository(Connect(dbfile))
	defer reopened.Close()

	after, err := reopened.Snapshot("1001", nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// The drainers read through an independent read-only handle while the
// writer stays open.
func TestReadOnlyHandle(t *testing.T) {
	repo, dbfile := setup(t)

	require.NoError(t, repo.UpsertDemographics("1001", ts("1960-01-01 00:00:00"), 0))
	require.NoError(t, repo.AppendLab("1001", ts("2024-01-01 12:00:00"), 100))

	readDB, err := OpenReadOnly(dbfile)
	require.NoError(t, err)
	reader := NewPatientRepository(readDB)
	defer reader.Close()

	view, err := reader.Snapshot("1001", nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, view.CreatinineLevels)

	assert.Error(t, reader.AppendLab("1001", ts("2024-01-02 12:00:00"), 120))
}
