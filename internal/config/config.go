// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config holds the program configuration: defaults, the optional
// JSON config file, and the two required environment variables naming the
// upstream MLLP feed and the pager endpoint.
package config

import (
	"bytes"
	"encoding/json"
	"net"
	"os"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

type ProgramConfig struct {
	// Address where the metrics/health http server listens.
	Addr string `json:"addr"`

	// Directory holding the sqlite file and the persisted queue files.
	StateDir string `json:"state-dir"`

	// Path to the exported model artifact.
	Model string `json:"model"`

	// Upstream endpoints, host:port. Taken from the MLLP_ADDRESS and
	// PAGER_ADDRESS environment variables; both are required.
	MLLPAddress  string `json:"-"`
	PagerAddress string `json:"-"`
}

var Keys ProgramConfig = ProgramConfig{
	Addr:     ":8000",
	StateDir: "./var",
	Model:    "./var/aki_model.json",
}

// Init loads the optional config file; a missing file keeps the defaults.
// A file that cannot be read, fails schema validation or does not decode
// aborts the process.
func Init(flagConfigFile string) {
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			cclog.Abortf("Config Init: could not read config file '%s'.\nError: %s\n", flagConfigFile, err.Error())
		}
	} else {
		Validate(configSchema, raw)
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&Keys); err != nil {
			cclog.Abortf("Config Init: could not decode config file '%s'.\nError: %s\n", flagConfigFile, err.Error())
		}
	}
}

// InitEndpoints reads the required upstream addresses. Not needed in
// offline replay mode, which touches neither the feed nor the pager.
func InitEndpoints() {
	Keys.MLLPAddress = requireHostPort("MLLP_ADDRESS")
	Keys.PagerAddress = requireHostPort("PAGER_ADDRESS")
}

func requireHostPort(envvar string) string {
	v := os.Getenv(envvar)
	if v == "" {
		cclog.Abortf("Environment variable %s is required (host:port)\n", envvar)
	}
	if _, _, err := net.SplitHostPort(v); err != nil {
		cclog.Abortf("Environment variable %s must be host:port, got '%s'\n", envvar, v)
	}
	return v
}
