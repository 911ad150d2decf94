// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics holds the prometheus counters exported on /metrics.
// A single Metrics value is built at startup and passed to each component;
// there are no process-wide counter singletons.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registry *prometheus.Registry

	MessagesReceived    prometheus.Counter
	BloodTestReceived   prometheus.Counter
	MllpConnectionsMade prometheus.Counter
	FailedHTTP          prometheus.Counter
	PosPredictions      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "messages_received",
			Help: "Number of messages received",
		}),
		BloodTestReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "blood_test_received",
			Help: "Number of LIMS messages received",
		}),
		MllpConnectionsMade: factory.NewCounter(prometheus.CounterOpts{
			Name: "mllp_connections_made",
			Help: "Number of connection attempts to the MLLP socket",
		}),
		FailedHTTP: factory.NewCounter(prometheus.CounterOpts{
			Name: "failed_http",
			Help: "Number of times the pager HTTP request failed",
		}),
		PosPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_predictions",
			Help: "Number of positive AKI predictions made",
		}),
	}
}
