// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("patient not found")

// Timestamps and dates are stored as TEXT in this layout. It sorts
// lexicographically in chronological order, so SQL range comparisons on the
// raw column are correct.
const TimeLayout = "2006-01-02 15:04:05"

// PatientView is the snapshot handed to the feature extractor. Dates and
// CreatinineLevels are parallel, in insertion order.
type PatientView struct {
	MRN              string
	DOB              time.Time
	Sex              int
	Dates            []time.Time
	CreatinineLevels []float64
}

type PatientRepository struct {
	DB        *sqlx.DB
	stmtCache *sq.StmtCache
}

func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{
		DB:        db,
		stmtCache: sq.NewStmtCache(db),
	}
}

// UpsertDemographics writes the demographics for mrn, last-writer-wins.
func (r *PatientRepository) UpsertDemographics(mrn string, dob time.Time, sex int) error {
	_, err := r.DB.Exec(`INSERT INTO patients (mrn, dob, sex) VALUES (?, ?, ?)
		ON CONFLICT(mrn) DO UPDATE SET dob = excluded.dob, sex = excluded.sex`,
		mrn, dob.Format(TimeLayout), sex)
	if err != nil {
		cclog.Errorf("upsert demographics for %s failed: %v", mrn, err)
		return err
	}

	return nil
}

// AppendLab stores one creatinine observation. Duplicates at identical
// (mrn, timestamp) are retained.
func (r *PatientRepository) AppendLab(mrn string, timestamp time.Time, value float64) error {
	_, err := r.DB.Exec(`INSERT INTO blood_tests (mrn, timestamp, creatinine_level) VALUES (?, ?, ?)`,
		mrn, timestamp.Format(TimeLayout), value)
	if err != nil {
		cclog.Errorf("append lab for %s failed: %v", mrn, err)
		return err
	}

	return nil
}

// Snapshot returns the patient's demographics and lab series. With a
// non-nil upTo, labs newer than upTo are excluded so that re-scoring an old
// observation cannot see into its future. Returns ErrNotFound when no
// demographics exist for mrn.
func (r *PatientRepository) Snapshot(mrn string, upTo *time.Time) (*PatientView, error) {
	view := &PatientView{MRN: mrn}

	var dob string
	err := sq.Select("patients.dob", "patients.sex").From("patients").
		Where("patients.mrn = ?", mrn).
		RunWith(r.stmtCache).QueryRow().Scan(&dob, &view.Sex)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	if view.DOB, err = time.Parse(TimeLayout, dob); err != nil {
		return nil, fmt.Errorf("corrupt dob for %s: %w", mrn, err)
	}

	query := sq.Select("blood_tests.timestamp", "blood_tests.creatinine_level").
		From("blood_tests").
		Where("blood_tests.mrn = ?", mrn).
		OrderBy("blood_tests.rowid")
	if upTo != nil {
		query = query.Where("blood_tests.timestamp <= ?", upTo.Format(TimeLayout))
	}

	rows, err := query.RunWith(r.stmtCache).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ts string
		var value float64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, err
		}
		t, err := time.Parse(TimeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("corrupt lab timestamp for %s: %w", mrn, err)
		}
		view.Dates = append(view.Dates, t)
		view.CreatinineLevels = append(view.CreatinineLevels, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return view, nil
}

// IsPopulated reports whether any labs exist. Gates the one-time history
// bootstrap.
func (r *PatientRepository) IsPopulated() (bool, error) {
	var n int
	if err := r.DB.QueryRow(`SELECT EXISTS (SELECT 1 FROM blood_tests)`).Scan(&n); err != nil {
		return false, err
	}
	return n != 0, nil
}

// Close closes the underlying handle.
func (r *PatientRepository) Close() error {
	return r.DB.Close()
}
