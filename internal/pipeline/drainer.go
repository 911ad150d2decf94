// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"

	"github.com/southriverside/aki-backend/internal/repository"
)

const drainInterval = time.Second

// StartDrainers schedules the two background workers: the inference
// drainer re-evaluates labs that arrived before their admit, the pager
// drainer retries undelivered pages. The inference drainer reads through
// its own read-only handle; the ingest loop keeps the only writer.
func (p *Pipeline) StartDrainers(ctx context.Context, dbfile string) (gocron.Scheduler, error) {
	readDB, err := repository.OpenReadOnly(dbfile)
	if err != nil {
		return nil, err
	}
	readRepo := repository.NewPatientRepository(readDB)

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := s.NewJob(gocron.DurationJob(drainInterval),
		gocron.NewTask(func() { p.DrainInferences(readRepo) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule)); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(gocron.DurationJob(drainInterval),
		gocron.NewTask(func() { p.Pager.DrainOnce(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule)); err != nil {
		return nil, err
	}

	s.Start()
	cclog.Debug("Drainers started")
	return s, nil
}

// DrainInferences re-attempts every queued inference once. An entry leaves
// the queue as soon as its demographics exist and a verdict was produced.
func (p *Pipeline) DrainInferences(readRepo *repository.PatientRepository) {
	for _, entry := range p.Inferences.Entries() {
		view, err := readRepo.Snapshot(entry.MRN, &entry.Timestamp)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			cclog.Errorf("Drainer snapshot for MRN %s failed: %v", entry.MRN, err)
			continue
		}

		p.Inferences.Remove(entry)
		p.score(view, entry.Timestamp)
	}
}
