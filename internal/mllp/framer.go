// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mllp implements the Minimum Lower Layer Protocol used to carry
// HL7 v2 messages over TCP: each message is framed as <VT> payload <FS><CR>.
package mllp

import "bytes"

// Framing sentinels.
const (
	StartOfBlock   = 0x0b // VT
	EndOfBlock     = 0x1c // FS
	CarriageReturn = 0x0d // CR
)

var trailer = []byte{EndOfBlock, CarriageReturn}

// Framer extracts complete MLLP payloads from a TCP byte stream. Bytes are
// pushed in whatever chunks recv produced; complete payloads are popped in
// stream order and the unconsumed suffix is retained for the next push.
type Framer struct {
	buf []byte
}

// Push appends one recv's worth of bytes to the rolling buffer.
func (f *Framer) Push(data []byte) {
	f.buf = append(f.buf, data...)
}

// Next pops the earliest complete payload, or returns false if the buffer
// holds none. Bytes before the first start-of-block are producer framing
// noise and are discarded.
func (f *Framer) Next() ([]byte, bool) {
	start := bytes.IndexByte(f.buf, StartOfBlock)
	if start < 0 {
		// No frame can begin in what we have.
		f.buf = f.buf[:0]
		return nil, false
	}
	if start > 0 {
		f.buf = f.buf[start:]
	}

	end := bytes.Index(f.buf, trailer)
	if end < 0 {
		return nil, false
	}

	payload := make([]byte, end-1)
	copy(payload, f.buf[1:end])
	f.buf = f.buf[end+len(trailer):]
	return payload, true
}

// Reset drops the buffer. Called on reconnect: a partially received frame
// from the old connection can never complete.
func (f *Framer) Reset() {
	f.buf = nil
}

// Frame wraps a payload in MLLP sentinels.
func Frame(payload []byte) []byte {
	framed := make([]byte, 0, len(payload)+3)
	framed = append(framed, StartOfBlock)
	framed = append(framed, payload...)
	framed = append(framed, EndOfBlock, CarriageReturn)
	return framed
}
