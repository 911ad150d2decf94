// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hl7

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"20240331", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"2024033107", time.Date(2024, 3, 31, 7, 0, 0, 0, time.UTC)},
		{"202401202243", time.Date(2024, 1, 20, 22, 43, 0, 0, time.UTC)},
		{"20240331005412", time.Date(2024, 3, 31, 0, 54, 12, 0, time.UTC)},
	}

	for _, tc := range tests {
		got, err := ParseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseTimestampRejects(t *testing.T) {
	for _, in := range []string{"2024", "202403", "2024033100541", "20240331005412999", "garbage!", "20241340"} {
		_, err := ParseTimestamp(in)
		assert.Error(t, err, in)
	}

	_, err := ParseTimestamp("")
	assert.ErrorIs(t, err, errNoTimestamp)
}

func TestTimestampRoundTrip(t *testing.T) {
	for _, in := range []string{"20240331000000", "19860417235959", "20240120224300"} {
		parsed, err := ParseTimestamp(in)
		require.NoError(t, err)
		assert.Equal(t, in, FormatTimestamp(parsed))
	}
}
