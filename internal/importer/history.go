// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package importer loads the historical creatinine bootstrap CSV into the
// patient store. Once ingested, historical labs are indistinguishable from
// labs received over the wire.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/jmoiron/sqlx"

	"github.com/southriverside/aki-backend/internal/repository"
)

// The history file uses ISO-8601 cells; both plain dates and full
// timestamps occur.
var csvTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Bundle this many rows into one transaction for better performance.
const txBatchSize = 100

// BootstrapHistory loads the wide-format history CSV on first launch only.
// Each row is `mrn, date_0, result_0, date_1, result_1, ...`; a blank cell
// terminates that patient's history. A store that already holds labs is
// left untouched.
func BootstrapHistory(repo *repository.PatientRepository, path string) error {
	populated, err := repo.IsPopulated()
	if err != nil {
		return err
	}
	if populated {
		cclog.Info("Store already populated, skipping history bootstrap")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	start := time.Now()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// Header row.
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("read history header: %w", err)
	}

	tx, err := repo.DB.Beginx()
	if err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO blood_tests (mrn, timestamp, creatinine_level) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}

	rowCount, labCount := 0, 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("read history row: %w", err)
		}
		if len(record) == 0 || record[0] == "" {
			continue
		}
		mrn := record[0]

		for i := 1; i+1 < len(record); i += 2 {
			if record[i] == "" || record[i+1] == "" {
				break
			}
			timestamp, err := parseCSVTime(record[i])
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("history row for %s: %w", mrn, err)
			}
			value, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("history row for %s: bad creatinine value %q", mrn, record[i+1])
			}
			if _, err := stmt.Exec(mrn, timestamp.Format(repository.TimeLayout), value); err != nil {
				tx.Rollback()
				return err
			}
			labCount++
		}

		rowCount++
		if rowCount%txBatchSize == 0 {
			if tx, stmt, err = commitAndReopen(repo, tx, stmt); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	cclog.Infof("History bootstrap done: %d labs for %d patients in %s",
		labCount, rowCount, time.Since(start))
	return nil
}

func commitAndReopen(repo *repository.PatientRepository, tx *sqlx.Tx, stmt *sqlx.Stmt) (*sqlx.Tx, *sqlx.Stmt, error) {
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	tx, err := repo.DB.Beginx()
	if err != nil {
		return nil, nil, err
	}
	stmt, err = tx.Preparex(`INSERT INTO blood_tests (mrn, timestamp, creatinine_level) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	return tx, stmt, nil
}

func parseCSVTime(s string) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date cell %q", s)
}
