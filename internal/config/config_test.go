// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	t.Setenv("MLLP_ADDRESS", "localhost:8440")
	t.Setenv("PAGER_ADDRESS", "localhost:8441")

	Init(filepath.Join(t.TempDir(), "does-not-exist.json"))
	InitEndpoints()

	assert.Equal(t, ":8000", Keys.Addr)
	assert.Equal(t, "./var", Keys.StateDir)
	assert.Equal(t, "localhost:8440", Keys.MLLPAddress)
	assert.Equal(t, "localhost:8441", Keys.PagerAddress)
}

func TestInitConfigFile(t *testing.T) {
	t.Setenv("MLLP_ADDRESS", "mllp:8440")
	t.Setenv("PAGER_ADDRESS", "pager:8441")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"addr": "127.0.0.1:9000",
		"state-dir": "/state",
		"model": "/simulator/aki_model.json"
	}`), 0o644))

	Init(path)
	InitEndpoints()

	assert.Equal(t, "127.0.0.1:9000", Keys.Addr)
	assert.Equal(t, "/state", Keys.StateDir)
	assert.Equal(t, "/simulator/aki_model.json", Keys.Model)
	assert.Equal(t, "mllp:8440", Keys.MLLPAddress)
}
