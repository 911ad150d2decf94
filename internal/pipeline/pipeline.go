// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline is the streaming ingest engine: the MLLP connect and
// reconnect loop, message framing and parsing, store updates, inference
// and acknowledgement, plus the two background drainers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/southriverside/aki-backend/internal/features"
	"github.com/southriverside/aki-backend/internal/hl7"
	"github.com/southriverside/aki-backend/internal/metrics"
	"github.com/southriverside/aki-backend/internal/mllp"
	"github.com/southriverside/aki-backend/internal/pager"
	"github.com/southriverside/aki-backend/internal/predictor"
	"github.com/southriverside/aki-backend/internal/repository"
)

const (
	connectRetryInterval = time.Second
	recvBufferSize       = 1024
)

// Pipeline owns the foreground ingest loop. One writer connection to the
// store; the drainers read through their own handles.
type Pipeline struct {
	MLLPAddress string
	Repo        *repository.PatientRepository
	Predictor   predictor.Predictor
	Pager       *pager.Dispatcher
	Metrics     *metrics.Metrics
	Inferences  *InferenceQueue

	framer mllp.Framer

	connMtx sync.Mutex
	conn    net.Conn

	// Recently paged (mrn, timestamp) pairs. The orchestrator and the
	// inference drainer can race on the same observation; the pager
	// endpoint is idempotent, this just avoids the noise.
	pagedMtx sync.Mutex
	paged    map[string]struct{}
}

func New(mllpAddress string, repo *repository.PatientRepository, pred predictor.Predictor,
	pg *pager.Dispatcher, m *metrics.Metrics, inferences *InferenceQueue,
) *Pipeline {
	return &Pipeline{
		MLLPAddress: mllpAddress,
		Repo:        repo,
		Predictor:   pred,
		Pager:       pg,
		Metrics:     m,
		Inferences:  inferences,
		paged:       make(map[string]struct{}),
	}
}

// Run drives the ingest loop until ctx is cancelled. Per message: frame,
// parse, dispatch, infer, then exactly one ACK before the next recv.
func (p *Pipeline) Run(ctx context.Context) {
	// Unblock the in-flight recv when shutdown arrives.
	go func() {
		<-ctx.Done()
		p.dropConn()
	}()

	buf := make([]byte, recvBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		conn := p.currentConn()
		if conn == nil {
			if err := p.connect(ctx); err != nil {
				return
			}
			continue
		}

		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			if ctx.Err() != nil {
				return
			}
			cclog.Warnf("MLLP connection lost: %v. Reconnecting", err)
			p.dropConn()
			continue
		}

		p.framer.Push(buf[:n])
		for {
			payload, ok := p.framer.Next()
			if !ok {
				break
			}
			code := p.handleMessage(string(payload))
			if !p.sendAck(ctx, code) {
				return
			}
		}
	}
}

// connect dials until it succeeds or ctx is cancelled, one attempt per
// second. Every attempt counts on mllp_connections_made.
func (p *Pipeline) connect(ctx context.Context) error {
	dialer := net.Dialer{}
	for {
		p.Metrics.MllpConnectionsMade.Inc()
		conn, err := dialer.DialContext(ctx, "tcp", p.MLLPAddress)
		if err == nil {
			cclog.Infof("Connected to MLLP server at %s", p.MLLPAddress)
			p.setConn(ctx, conn)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cclog.Warnf("MLLP connection failed: %v. Retrying in %s", err, connectRetryInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectRetryInterval):
		}
	}
}

// handleMessage parses and dispatches one framed payload and picks the ACK
// code. Parse failures drop the message; the producer will not resend.
func (p *Pipeline) handleMessage(payload string) mllp.AckCode {
	p.Metrics.MessagesReceived.Inc()

	event, err := hl7.Parse(payload)
	if err != nil {
		var perr *hl7.ParseError
		if errors.As(err, &perr) {
			cclog.Warnf("Dropping unparseable message (%s): %q", perr.Reason, perr.Payload)
		} else {
			cclog.Warnf("Dropping unparseable message: %v", err)
		}
		return mllp.AckError
	}

	switch e := event.(type) {
	case hl7.Admit:
		if err := p.Repo.UpsertDemographics(e.MRN, e.DOB, e.Sex); err != nil {
			cclog.Abortf("Store write failed for MRN %s: %s\n", e.MRN, err.Error())
		}
		cclog.Debugf("Admit stored for MRN %s", e.MRN)
	case hl7.Discharge:
		// Observed, no state change. Labs of discharged patients remain
		// scoreable.
		cclog.Debugf("Discharge observed for MRN %s", e.MRN)
	case hl7.LabResult:
		p.Metrics.BloodTestReceived.Inc()
		for _, obs := range e.Observations {
			if err := p.Repo.AppendLab(e.MRN, obs.Timestamp, obs.Value); err != nil {
				cclog.Abortf("Store write failed for MRN %s: %s\n", e.MRN, err.Error())
			}
			p.infer(p.Repo, e.MRN, obs.Timestamp)
		}
	}

	return mllp.AckAccept
}

// infer scores one observation against the store's view at that timestamp.
// Missing demographics park the observation on the pending queue; that is
// not an error towards the producer.
func (p *Pipeline) infer(repo *repository.PatientRepository, mrn string, timestamp time.Time) {
	view, err := repo.Snapshot(mrn, &timestamp)
	if errors.Is(err, repository.ErrNotFound) {
		cclog.Infof("No demographics yet for MRN %s, inference queued", mrn)
		p.Inferences.Add(PendingInference{MRN: mrn, Timestamp: timestamp})
		return
	}
	if err != nil {
		cclog.Errorf("Snapshot for MRN %s failed: %v", mrn, err)
		return
	}

	p.score(view, timestamp)
}

// score runs extraction and prediction; a positive verdict goes to the
// pager keyed by the observation timestamp.
func (p *Pipeline) score(view *repository.PatientView, timestamp time.Time) {
	vector, err := features.Extract(view, timestamp)
	if err != nil {
		cclog.Errorf("Feature extraction for MRN %s failed: %v", view.MRN, err)
		return
	}

	verdict, err := p.Predictor.Predict(vector)
	if err != nil {
		cclog.Errorf("Prediction for MRN %s failed: %v", view.MRN, err)
		return
	}
	cclog.Infof("Prediction %d for MRN %s at %s", verdict, view.MRN, hl7.FormatTimestamp(timestamp))

	if verdict != 1 {
		return
	}
	if !p.markPaged(view.MRN, timestamp) {
		return
	}
	p.Metrics.PosPredictions.Inc()
	p.Pager.Dispatch(view.MRN, timestamp)
}

// markPaged records the pair and reports whether it was new.
func (p *Pipeline) markPaged(mrn string, timestamp time.Time) bool {
	key := fmt.Sprintf("%s,%s", mrn, hl7.FormatTimestamp(timestamp))
	p.pagedMtx.Lock()
	defer p.pagedMtx.Unlock()
	if _, seen := p.paged[key]; seen {
		return false
	}
	p.paged[key] = struct{}{}
	return true
}

// sendAck delivers exactly one acknowledgement, reconnecting and resending
// on failure. ACKs are idempotent from the producer's perspective. Returns
// false only when ctx is cancelled.
func (p *Pipeline) sendAck(ctx context.Context, code mllp.AckCode) bool {
	ack := mllp.Ack(code, time.Now().Format(hl7.TimestampLayout))
	for {
		if ctx.Err() != nil {
			return false
		}
		conn := p.currentConn()
		if conn == nil {
			if err := p.connect(ctx); err != nil {
				return false
			}
			continue
		}
		if _, err := conn.Write(ack); err != nil {
			cclog.Warnf("ACK send failed: %v. Reconnecting", err)
			p.dropConn()
			continue
		}
		cclog.Debugf("Acknowledgement %s sent", code)
		return true
	}
}

func (p *Pipeline) currentConn() net.Conn {
	p.connMtx.Lock()
	defer p.connMtx.Unlock()
	return p.conn
}

// setConn installs a fresh connection and resets the framer: a partial
// frame from the previous connection can never complete.
func (p *Pipeline) setConn(ctx context.Context, conn net.Conn) {
	p.connMtx.Lock()
	defer p.connMtx.Unlock()
	if ctx.Err() != nil {
		conn.Close()
		return
	}
	p.conn = conn
	p.framer.Reset()
}

func (p *Pipeline) dropConn() {
	p.connMtx.Lock()
	defer p.connMtx.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}
