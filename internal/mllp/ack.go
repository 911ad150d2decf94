// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mllp

import "fmt"

// AckCode is the MSA-1 acknowledgement code.
type AckCode string

const (
	AckAccept AckCode = "AA"
	AckError  AckCode = "AE"
	// AckReject is reserved by the upstream contract but never sent.
	AckReject AckCode = "AR"
)

// Ack builds a freshly dated, MLLP-framed acknowledgement. The timestamp is
// the wall clock in YYYYMMDDHHMMSS; the producer treats ACKs as idempotent,
// so resending the same ACK after a reconnect is fine.
func Ack(code AckCode, timestamp string) []byte {
	payload := fmt.Sprintf("MSH|^~\\&|||||%s||ACK|||2.5\rMSA|%s\r", timestamp, code)
	return Frame([]byte(payload))
}
