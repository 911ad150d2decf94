// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hl7

import (
	"fmt"
	"strings"
	"time"
)

// Serialize renders an event in the producer's canonical form. It is the
// inverse of Parse for Admit and Discharge; used by tests and by tooling
// that feeds recorded streams.
func Serialize(e Event, now time.Time) string {
	switch e := e.(type) {
	case Admit:
		sex := "M"
		if e.Sex == SexFemale {
			sex = "F"
		}
		return strings.Join([]string{
			header(TypeAdmit, now),
			fmt.Sprintf("PID|1||%s||||%s|%s", e.MRN, e.DOB.Format("20060102"), sex),
		}, "\r") + "\r"
	case Discharge:
		return strings.Join([]string{
			header(TypeDischarge, now),
			fmt.Sprintf("PID|1||%s", e.MRN),
		}, "\r") + "\r"
	case LabResult:
		segments := []string{
			header(TypeLabResult, now),
			fmt.Sprintf("PID|1||%s", e.MRN),
		}
		for _, obs := range e.Observations {
			segments = append(segments,
				fmt.Sprintf("OBR|1||||||%s", FormatTimestamp(obs.Timestamp)),
				fmt.Sprintf("OBX|1|SN|CREATININE||%g", obs.Value))
		}
		return strings.Join(segments, "\r") + "\r"
	default:
		panic("hl7: unknown event type")
	}
}

func header(msgType string, now time.Time) string {
	return fmt.Sprintf(`MSH|^~\&|SIMULATION|SOUTH RIVERSIDE|||%s||%s|||2.5`,
		FormatTimestamp(now), msgType)
}
