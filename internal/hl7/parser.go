// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hl7

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

type segment struct {
	name   string
	fields []string
}

// field returns field i or "" when the segment is too short. HL7 producers
// routinely truncate trailing empty fields.
func (s segment) field(i int) string {
	if i >= len(s.fields) {
		return ""
	}
	return s.fields[i]
}

// component returns component c of field i ('^'-separated).
func (s segment) component(i, c int) string {
	parts := strings.Split(s.field(i), string(ComponentSep))
	if c >= len(parts) {
		return ""
	}
	return parts[c]
}

// Parse decodes one MLLP payload into an event. It either returns a complete
// event or a *ParseError carrying the payload; there are no partial results.
func Parse(payload string) (Event, error) {
	segments := splitSegments(payload)
	if len(segments) == 0 {
		return nil, parseErrorf(payload, "empty message")
	}

	msh := segments[0]
	if msh.name != SegMSH {
		return nil, parseErrorf(payload, "first segment is %q, want MSH", msh.name)
	}

	pid, ok := findSegment(segments, SegPID)
	if !ok {
		return nil, parseErrorf(payload, "no PID segment")
	}
	mrn := pid.component(pidMRN, 0)
	if mrn == "" {
		return nil, parseErrorf(payload, "PID-3 (MRN) is empty")
	}

	switch msgType := msh.field(mshMessageType); msgType {
	case TypeAdmit:
		return parseAdmit(payload, pid, mrn)
	case TypeDischarge:
		return Discharge{MRN: mrn}, nil
	case TypeLabResult:
		return parseLabResult(payload, segments, mrn)
	default:
		return nil, parseErrorf(payload, "unsupported message type %q", msgType)
	}
}

func parseAdmit(payload string, pid segment, mrn string) (Event, error) {
	dob, err := ParseTimestamp(pid.field(pidDOB))
	if err != nil {
		return nil, parseErrorf(payload, "PID-7 (DOB): %v", err)
	}

	var sex int
	switch pid.field(pidSex) {
	case "M":
		sex = SexMale
	case "F":
		sex = SexFemale
	default:
		return nil, parseErrorf(payload, "PID-8 (sex) is %q, want M or F", pid.field(pidSex))
	}

	return Admit{MRN: mrn, DOB: dob, Sex: sex}, nil
}

// parseLabResult walks the segments in order, carrying the most recent OBR-7
// as the active observation time. Every CREATININE OBX inherits it.
func parseLabResult(payload string, segments []segment, mrn string) (Event, error) {
	var observations []Observation
	var obsTime time.Time
	haveTime := false

	for _, seg := range segments {
		switch seg.name {
		case SegOBR:
			t, err := ParseTimestamp(seg.field(obrObservationTime))
			if errors.Is(err, errNoTimestamp) {
				// An OBR without a timestamp clears the active one; only
				// an OBX depending on it is an error.
				haveTime = false
				continue
			}
			if err != nil {
				return nil, parseErrorf(payload, "OBR-7: %v", err)
			}
			obsTime, haveTime = t, true
		case SegOBX:
			if seg.field(obxTestName) != "CREATININE" {
				continue
			}
			if !haveTime {
				return nil, parseErrorf(payload, "OBX without preceding OBR timestamp")
			}
			value, err := strconv.ParseFloat(seg.field(obxValue), 64)
			if err != nil {
				return nil, parseErrorf(payload, "OBX-5: %v", err)
			}
			observations = append(observations, Observation{Timestamp: obsTime, Value: value})
		}
	}

	if len(observations) == 0 {
		return nil, parseErrorf(payload, "ORU^R01 without creatinine result")
	}

	return LabResult{MRN: mrn, Observations: observations}, nil
}

func splitSegments(payload string) []segment {
	var segments []segment
	for _, line := range strings.Split(payload, string(SegmentSep)) {
		if line == "" {
			continue
		}
		fields := strings.Split(line, string(FieldSep))
		segments = append(segments, segment{name: fields[0], fields: fields})
	}
	return segments
}

func findSegment(segments []segment, name string) (segment, bool) {
	for _, seg := range segments {
		if seg.name == name {
			return seg, true
		}
	}
	return segment{}, false
}
