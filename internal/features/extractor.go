// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package features turns a patient snapshot into the fixed-length vector
// the classifier was trained on.
package features

import (
	"errors"
	"sort"
	"time"

	"github.com/southriverside/aki-backend/internal/repository"
)

var ErrInsufficientData = errors.New("no creatinine results for patient")

// NumFeatures is the model input width.
const NumFeatures = 5

const daysPerYear = 365.25

// Extract computes [min, median, age, sex, latest] from a snapshot, in the
// exact order the model expects. refDate anchors the age computation.
func Extract(view *repository.PatientView, refDate time.Time) ([]float64, error) {
	if len(view.CreatinineLevels) == 0 {
		return nil, ErrInsufficientData
	}

	days := int(refDate.Sub(view.DOB).Hours() / 24)
	age := int(float64(days) / daysPerYear)

	return []float64{
		minOf(view.CreatinineLevels),
		median(view.CreatinineLevels),
		float64(age),
		float64(view.Sex),
		view.CreatinineLevels[len(view.CreatinineLevels)-1],
	}, nil
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// median of the values; for even counts, the mean of the two central ones.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
