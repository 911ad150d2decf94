// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"fmt"
	"os"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/southriverside/aki-backend/internal/features"
	"github.com/southriverside/aki-backend/internal/hl7"
	"github.com/southriverside/aki-backend/internal/mllp"
	"github.com/southriverside/aki-backend/internal/predictor"
	"github.com/southriverside/aki-backend/internal/repository"
)

// ReplayResult is one positive verdict from an offline replay.
type ReplayResult struct {
	MRN       string
	Timestamp time.Time
}

// Replay scores a recorded MLLP stream offline: no socket, no ACKs, no
// pager. Messages flow through the same framer, parser, store and model as
// the live path; positives are returned for the caller to write out.
func Replay(path string, repo *repository.PatientRepository, pred predictor.Predictor) ([]ReplayResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}

	var framer mllp.Framer
	framer.Push(raw)

	var results []ReplayResult
	seen := make(map[string]struct{})
	dropped := 0

	for {
		payload, ok := framer.Next()
		if !ok {
			break
		}

		event, err := hl7.Parse(string(payload))
		if err != nil {
			dropped++
			continue
		}

		switch e := event.(type) {
		case hl7.Admit:
			if err := repo.UpsertDemographics(e.MRN, e.DOB, e.Sex); err != nil {
				return nil, err
			}
		case hl7.Discharge:
			// ignored
		case hl7.LabResult:
			for _, obs := range e.Observations {
				if err := repo.AppendLab(e.MRN, obs.Timestamp, obs.Value); err != nil {
					return nil, err
				}

				view, err := repo.Snapshot(e.MRN, &obs.Timestamp)
				if errors.Is(err, repository.ErrNotFound) {
					// Replay files carry admits before labs; a missing
					// admit means the history never had one.
					continue
				} else if err != nil {
					return nil, err
				}

				vector, err := features.Extract(view, obs.Timestamp)
				if err != nil {
					continue
				}
				verdict, err := pred.Predict(vector)
				if err != nil {
					return nil, err
				}
				if verdict != 1 {
					continue
				}

				key := fmt.Sprintf("%s,%s", e.MRN, hl7.FormatTimestamp(obs.Timestamp))
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				results = append(results, ReplayResult{MRN: e.MRN, Timestamp: obs.Timestamp})
			}
		}
	}

	if dropped > 0 {
		cclog.Warnf("Replay dropped %d unparseable messages", dropped)
	}
	return results, nil
}
