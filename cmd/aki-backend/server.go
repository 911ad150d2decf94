// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"net/http"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/southriverside/aki-backend/internal/config"
	"github.com/southriverside/aki-backend/internal/metrics"
)

var (
	router *mux.Router
	server *http.Server
)

func serverInit(m *metrics.Metrics) {
	router = mux.NewRouter()

	router.Handle("/metrics",
		promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Add("Content-Type", "text/plain")
		rw.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))

	server = &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Handler:      router,
		Addr:         config.Keys.Addr,
	}
}

func startServer() {
	cclog.Infof("Metrics server listening at %s", config.Keys.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cclog.Fatalf("Metrics server: %s", err.Error())
	}
}

func shutdownServer() {
	if err := server.Shutdown(context.Background()); err != nil {
		cclog.Errorf("Metrics server shutdown: %v", err)
	}
}
