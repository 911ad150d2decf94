// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/gops/agent"
	"github.com/joho/godotenv"

	"github.com/southriverside/aki-backend/internal/config"
	"github.com/southriverside/aki-backend/internal/hl7"
	"github.com/southriverside/aki-backend/internal/importer"
	"github.com/southriverside/aki-backend/internal/metrics"
	"github.com/southriverside/aki-backend/internal/pager"
	"github.com/southriverside/aki-backend/internal/pipeline"
	"github.com/southriverside/aki-backend/internal/predictor"
	"github.com/southriverside/aki-backend/internal/repository"
)

const dbFileName = "patients.db"

var (
	date    string
	commit  string
	version string
)

func main() {
	cliInit()

	if flagVersion {
		fmt.Printf("Version:\t%s\n", version)
		fmt.Printf("Git hash:\t%s\n", commit)
		fmt.Printf("Build time:\t%s\n", date)
		os.Exit(0)
	}

	cclog.Init(flagLogLevel, flagLogDateTime)

	// See https://github.com/google/gops (Runtime overhead is almost zero)
	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Abortf("Could not start gops agent.\nError: %s\n", err.Error())
		}
	}

	if err := godotenv.Load(); err != nil {
		cclog.Debug("No .env file found")
	}

	config.Init(flagConfigFile)
	if flagReplay == "" {
		config.InitEndpoints()
	}

	if err := os.MkdirAll(config.Keys.StateDir, 0o755); err != nil {
		cclog.Abortf("Could not create state directory '%s'.\nError: %s\n", config.Keys.StateDir, err.Error())
	}
	dbfile := filepath.Join(config.Keys.StateDir, dbFileName)

	if err := repository.MigrateDB(dbfile); err != nil {
		cclog.Abortf("Database migration failed.\nError: %s\n", err.Error())
	}
	if flagMigrateDB {
		os.Exit(0)
	}

	db := repository.Connect(dbfile)
	repo := repository.NewPatientRepository(db)

	if err := importer.BootstrapHistory(repo, flagHistory); err != nil {
		cclog.Abortf("History bootstrap from '%s' failed.\nError: %s\n", flagHistory, err.Error())
	}

	pred, err := predictor.Load(config.Keys.Model)
	if err != nil {
		cclog.Abortf("Could not load model artifact.\nError: %s\n", err.Error())
	}

	if flagReplay != "" {
		runReplay(repo, pred)
		return
	}

	m := metrics.New()
	pg := pager.New(config.Keys.PagerAddress, m)
	inferences := pipeline.NewInferenceQueue()

	// Queues persisted by the previous shutdown are drained by this run.
	pendingInferences, pendingPages, err := pipeline.LoadQueues(config.Keys.StateDir)
	if err != nil {
		cclog.Abortf("Could not load persisted queues.\nError: %s\n", err.Error())
	}
	inferences.Restore(pendingInferences)
	pg.Restore(pendingPages)
	if len(pendingInferences) > 0 || len(pendingPages) > 0 {
		cclog.Infof("Restored %d pending inferences, %d pending pages",
			len(pendingInferences), len(pendingPages))
	}

	pipe := pipeline.New(config.Keys.MLLPAddress, repo, pred, pg, m, inferences)

	ctx, cancel := context.WithCancel(context.Background())
	serverInit(m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		startServer()
	}()

	scheduler, err := pipe.StartDrainers(ctx, dbfile)
	if err != nil {
		cclog.Abortf("Could not start drainers.\nError: %s\n", err.Error())
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		pipe.Run(ctx)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	cclog.Info("Shutting down")

	cancel()
	if err := scheduler.Shutdown(); err != nil {
		cclog.Errorf("Scheduler shutdown: %v", err)
	}
	shutdownServer()
	wg.Wait()

	if err := pipeline.PersistQueues(config.Keys.StateDir, inferences.Entries(), pg.Pending()); err != nil {
		cclog.Errorf("Persisting queues failed: %v", err)
	}
	if err := repo.Close(); err != nil {
		cclog.Errorf("Closing store failed: %v", err)
	}

	cclog.Info("Graceful shutdown completed!")
}

// runReplay scores a recorded stream offline and writes the positives as
// `mrn,timestamp` rows.
func runReplay(repo *repository.PatientRepository, pred predictor.Predictor) {
	results, err := pipeline.Replay(flagReplay, repo, pred)
	if err != nil {
		cclog.Abortf("Replay of '%s' failed.\nError: %s\n", flagReplay, err.Error())
	}

	f, err := os.Create(flagOutput)
	if err != nil {
		cclog.Abortf("Could not create output file '%s'.\nError: %s\n", flagOutput, err.Error())
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"mrn", "timestamp"})
	for _, r := range results {
		w.Write([]string{r.MRN, hl7.FormatTimestamp(r.Timestamp)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		cclog.Abortf("Could not write output file '%s'.\nError: %s\n", flagOutput, err.Error())
	}

	cclog.Infof("Replay done: %d positive predictions written to %s", len(results), flagOutput)
}
