// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

const configSchema = `{
  "$schema": "http://json-schema.org/draft/2020-12/schema",
  "title": "aki-backend configuration file schema",
  "type": "object",
  "properties": {
    "addr": {
      "description": "Address where the metrics http server listens, e.g. ':8000'.",
      "type": "string"
    },
    "state-dir": {
      "description": "Directory holding the sqlite database and persisted queue files.",
      "type": "string"
    },
    "model": {
      "description": "Path to the exported model artifact.",
      "type": "string"
    }
  },
  "additionalProperties": false
}`
