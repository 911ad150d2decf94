// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southriverside/aki-backend/internal/repository"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtract(t *testing.T) {
	view := &repository.PatientView{
		MRN: "1001",
		DOB: date(1960, 1, 1),
		Sex: 1,
		Dates: []time.Time{
			date(2024, 1, 1), date(2024, 1, 2), date(2024, 1, 3), date(2024, 1, 4),
		},
		CreatinineLevels: []float64{110, 90, 150, 120},
	}

	vector, err := Extract(view, date(2024, 1, 4))
	require.NoError(t, err)
	require.Len(t, vector, NumFeatures)

	assert.Equal(t, 90.0, vector[0], "min")
	assert.Equal(t, 115.0, vector[1], "median of even count")
	assert.Equal(t, 64.0, vector[2], "age")
	assert.Equal(t, 1.0, vector[3], "sex")
	assert.Equal(t, 120.0, vector[4], "latest")
}

func TestExtractSingleObservation(t *testing.T) {
	view := &repository.PatientView{
		MRN:              "1002",
		DOB:              date(1995, 10, 25),
		Sex:              0,
		Dates:            []time.Time{date(2023, 2, 10)},
		CreatinineLevels: []float64{90.5},
	}

	vector, err := Extract(view, date(2023, 2, 10))
	require.NoError(t, err)

	// A single observation is its own min, median and latest.
	assert.Equal(t, vector[0], vector[1])
	assert.Equal(t, vector[0], vector[4])
	assert.Equal(t, 90.5, vector[0])
	assert.Equal(t, 27.0, vector[2])
}

func TestExtractOddMedian(t *testing.T) {
	view := &repository.PatientView{
		MRN:              "1003",
		DOB:              date(1980, 5, 15),
		Sex:              1,
		Dates:            []time.Time{date(2023, 1, 1), date(2023, 3, 1), date(2023, 6, 15)},
		CreatinineLevels: []float64{1.4, 1.0, 1.2},
	}

	vector, err := Extract(view, date(2023, 6, 15))
	require.NoError(t, err)
	assert.Equal(t, 1.2, vector[1])
	assert.Equal(t, 1.2, vector[4])
}

// Age is floor((D - dob).days / 365.25): the day before a birthday still
// counts the old age.
func TestExtractAgeBoundary(t *testing.T) {
	view := &repository.PatientView{
		MRN:              "1004",
		DOB:              date(2000, 6, 15),
		Sex:              0,
		Dates:            []time.Time{date(2024, 6, 14)},
		CreatinineLevels: []float64{100},
	}

	vector, err := Extract(view, date(2024, 6, 14))
	require.NoError(t, err)
	assert.Equal(t, 23.0, vector[2])

	vector, err = Extract(view, date(2024, 6, 16))
	require.NoError(t, err)
	assert.Equal(t, 24.0, vector[2])
}

func TestExtractNoLabs(t *testing.T) {
	view := &repository.PatientView{MRN: "1005", DOB: date(1990, 1, 1)}

	_, err := Extract(view, date(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// The vector must be bit-identical across runs for a fixed view.
func TestExtractDeterminism(t *testing.T) {
	view := &repository.PatientView{
		MRN:              "1006",
		DOB:              date(1975, 3, 3),
		Sex:              1,
		Dates:            []time.Time{date(2024, 1, 1), date(2024, 1, 2)},
		CreatinineLevels: []float64{104.50414808079834, 170.21986290958355},
	}

	first, err := Extract(view, date(2024, 1, 2))
	require.NoError(t, err)
	for range 10 {
		again, err := Extract(view, date(2024, 1, 2))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
