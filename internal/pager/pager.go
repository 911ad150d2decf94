// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pager delivers positive AKI verdicts to the hospital paging
// endpoint. A payload that cannot be delivered is parked on the pending
// queue and retried by a background drainer until the endpoint accepts it.
package pager

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"golang.org/x/time/rate"

	"github.com/southriverside/aki-backend/internal/metrics"
)

const (
	requestTimeout  = time.Second
	timestampLayout = "20060102150405"
)

// Dispatcher posts page payloads. Safe for use by the ingest loop and the
// drainer concurrently.
type Dispatcher struct {
	endpoint string
	client   *http.Client
	m        *metrics.Metrics

	// Paces retry attempts to one per second.
	limiter *rate.Limiter

	mtx     sync.Mutex
	pending []string
}

func New(address string, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		endpoint: fmt.Sprintf("http://%s/page", address),
		client:   &http.Client{Timeout: requestTimeout},
		m:        m,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Payload encodes a page as the endpoint expects it: "<mrn>,<YYYYMMDDHHMMSS>".
func Payload(mrn string, triggered time.Time) string {
	return fmt.Sprintf("%s,%s", mrn, triggered.Format(timestampLayout))
}

// Dispatch attempts synchronous delivery of one positive verdict. On any
// failure the payload is enqueued for the drainer; delivery is then
// eventually-once, never dropped.
func (d *Dispatcher) Dispatch(mrn string, triggered time.Time) {
	payload := Payload(mrn, triggered)
	if err := d.send(payload); err != nil {
		d.m.FailedHTTP.Inc()
		cclog.Warnf("Pager request for %s failed: %v. Queued for retry", mrn, err)
		d.enqueue(payload)
		return
	}
	cclog.Infof("Pager request sent for MRN %s", mrn)
}

// DrainOnce retries every parked payload once, spaced one second apart.
// Delivered payloads leave the queue; the rest stay for the next pass.
func (d *Dispatcher) DrainOnce(ctx context.Context) {
	for _, payload := range d.Pending() {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
		if err := d.send(payload); err != nil {
			d.m.FailedHTTP.Inc()
			cclog.Debugf("Pager retry failed: %v", err)
			continue
		}
		cclog.Infof("Pager retry delivered: %s", payload)
		d.remove(payload)
	}
}

// send posts the payload. Any 2xx status is success.
func (d *Dispatcher) send(payload string) error {
	resp, err := d.client.Post(d.endpoint, "text/plain", strings.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("pager returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) enqueue(payload string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.pending = append(d.pending, payload)
}

func (d *Dispatcher) remove(payload string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	for i, p := range d.pending {
		if p == payload {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return
		}
	}
}

// Pending returns a copy of the queue, oldest first.
func (d *Dispatcher) Pending() []string {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return append([]string(nil), d.pending...)
}

// Restore reloads payloads persisted by a previous run.
func (d *Dispatcher) Restore(payloads []string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.pending = append(d.pending, payloads...)
}
