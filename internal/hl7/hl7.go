// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hl7 decodes HL7 v2.5 messages into typed events. Only the three
// message types spoken by the upstream feed are understood: ADT^A01 (admit),
// ADT^A03 (discharge) and ORU^R01 (creatinine results).
package hl7

import (
	"fmt"
	"time"
)

// HL7 v2.5 delimiters. MSH-1/MSH-2 declare them, but the upstream feed
// always uses the canonical set.
const (
	SegmentSep   = '\r'
	FieldSep     = '|'
	ComponentSep = '^'
)

// Segment identifiers.
const (
	SegMSH = "MSH"
	SegPID = "PID"
	SegOBR = "OBR"
	SegOBX = "OBX"
)

// Field indices into a '|'-split segment. The segment name occupies index 0;
// for MSH the field separator itself counts as MSH-1, so MSH-9 lands on
// split index 8.
const (
	mshMessageType = 8

	pidMRN = 3
	pidDOB = 7
	pidSex = 8

	obrObservationTime = 7

	obxTestName = 3
	obxValue    = 5
)

// Message type values carried in MSH-9.
const (
	TypeAdmit     = "ADT^A01"
	TypeDischarge = "ADT^A03"
	TypeLabResult = "ORU^R01"
)

// Sex as encoded for the model: 0 = male, 1 = female.
const (
	SexMale   = 0
	SexFemale = 1
)

// Event is one of Admit, Discharge or LabResult.
type Event interface {
	PatientMRN() string
	event()
}

// Admit carries the demographics from an ADT^A01 message.
type Admit struct {
	MRN string
	DOB time.Time
	Sex int
}

// Discharge is an ADT^A03 message. It is observed but changes no state.
type Discharge struct {
	MRN string
}

// Observation is one creatinine result. The timestamp is the OBR-7 of the
// nearest preceding OBR segment.
type Observation struct {
	Timestamp time.Time
	Value     float64
}

// LabResult carries every creatinine observation of one ORU^R01 message,
// in segment order.
type LabResult struct {
	MRN          string
	Observations []Observation
}

func (e Admit) PatientMRN() string     { return e.MRN }
func (e Discharge) PatientMRN() string { return e.MRN }
func (e LabResult) PatientMRN() string { return e.MRN }

func (Admit) event()     {}
func (Discharge) event() {}
func (LabResult) event() {}

// ParseError reports a message that could not be decoded. The payload is
// retained for the error log; the caller acks such messages with AE and
// drops them.
type ParseError struct {
	Payload string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hl7: %s", e.Reason)
}

func parseErrorf(payload, format string, args ...any) *ParseError {
	return &ParseError{Payload: payload, Reason: fmt.Sprintf(format, args...)}
}
