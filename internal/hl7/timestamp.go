// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hl7

import (
	"errors"
	"time"
)

// Timestamp layouts accepted in OBR-7 and PID-7. Components missing from
// shorter forms default to zero.
var timestampLayouts = map[int]string{
	8:  "20060102",
	10: "2006010215",
	12: "200601021504",
	14: "20060102150405",
}

// TimestampLayout is the full form, also used for ACK headers and the pager
// payload.
const TimestampLayout = "20060102150405"

var errNoTimestamp = errors.New("hl7: empty timestamp")

// ParseTimestamp decodes an HL7 DTM value of length 8, 10, 12 or 14.
// The empty string decodes to the zero time with errNoTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errNoTimestamp
	}

	layout, ok := timestampLayouts[len(s)]
	if !ok {
		return time.Time{}, errors.New("hl7: timestamp length not in {8,10,12,14}")
	}

	return time.Parse(layout, s)
}

// FormatTimestamp encodes t in the full YYYYMMDDHHMMSS form.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
