// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package repository is the durable patient store: a sqlite database with
// the patients and blood_tests tables. A single writer connection is owned
// by the ingest pipeline; background drainers read through independent
// read-only handles.
package repository

import (
	"database/sql"
	"fmt"
	"sync"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

var registerDriverOnce sync.Once

const hookedDriver = "sqlite3WithHooks"

func registerDriver() {
	registerDriverOnce.Do(func() {
		sql.Register(hookedDriver, sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
	})
}

// Connect opens the writer handle. sqlite does not multithread; more than
// one open connection would just mean waiting for locks.
func Connect(dbfile string) *sqlx.DB {
	registerDriver()

	db, err := sqlx.Open(hookedDriver, fmt.Sprintf("%s?_foreign_keys=on", dbfile))
	if err != nil {
		cclog.Abortf("Repository Connect: could not open sqlite file '%s'.\nError: %s\n", dbfile, err.Error())
	}
	db.SetMaxOpenConns(1)

	return db
}

// OpenReadOnly opens an independent read-only handle onto the same file,
// for the inference drainer.
func OpenReadOnly(dbfile string) (*sqlx.DB, error) {
	registerDriver()

	db, err := sqlx.Open(hookedDriver, fmt.Sprintf("file:%s?mode=ro&_foreign_keys=on", dbfile))
	if err != nil {
		return nil, fmt.Errorf("open read-only handle on '%s': %w", dbfile, err)
	}
	db.SetMaxOpenConns(1)

	return db, nil
}
