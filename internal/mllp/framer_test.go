// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mllp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(f *Framer) [][]byte {
	var payloads [][]byte
	for {
		p, ok := f.Next()
		if !ok {
			return payloads
		}
		payloads = append(payloads, p)
	}
}

func TestFramerSingleMessage(t *testing.T) {
	var f Framer
	f.Push(Frame([]byte("MSH|ONE")))

	payloads := drain(&f)
	require.Len(t, payloads, 1)
	assert.Equal(t, []byte("MSH|ONE"), payloads[0])
}

func TestFramerMultipleMessagesOneRead(t *testing.T) {
	var f Framer
	stream := append(Frame([]byte("MSH|ONE")), Frame([]byte("MSH|TWO"))...)
	f.Push(stream)

	payloads := drain(&f)
	require.Len(t, payloads, 2)
	assert.Equal(t, []byte("MSH|ONE"), payloads[0])
	assert.Equal(t, []byte("MSH|TWO"), payloads[1])
}

func TestFramerRetainsPartialFrame(t *testing.T) {
	var f Framer
	frame := Frame([]byte("MSH|SPLIT"))

	f.Push(frame[:5])
	assert.Empty(t, drain(&f))

	f.Push(frame[5:])
	payloads := drain(&f)
	require.Len(t, payloads, 1)
	assert.Equal(t, []byte("MSH|SPLIT"), payloads[0])
}

func TestFramerDiscardsLeadingNoise(t *testing.T) {
	var f Framer
	f.Push(append([]byte("junk\r\n"), Frame([]byte("MSH|ONE"))...))

	payloads := drain(&f)
	require.Len(t, payloads, 1)
	assert.Equal(t, []byte("MSH|ONE"), payloads[0])
}

// Splitting the stream at arbitrary positions must yield the same payload
// sequence as one big read.
func TestFramerSplitIdempotence(t *testing.T) {
	var stream []byte
	want := [][]byte{[]byte("MSH|ONE\rPID|1"), []byte("MSH|TWO"), []byte("MSH|THREE\rOBX|1")}
	for _, p := range want {
		stream = append(stream, Frame(p)...)
	}

	for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
		var f Framer
		var got [][]byte
		for off := 0; off < len(stream); off += chunkSize {
			end := min(off+chunkSize, len(stream))
			f.Push(stream[off:end])
			got = append(got, drain(&f)...)
		}
		require.Equal(t, want, got, "chunk size %d", chunkSize)
	}
}

func TestFramerReset(t *testing.T) {
	var f Framer
	frame := Frame([]byte("MSH|LOST"))
	f.Push(frame[:len(frame)-1])

	f.Reset()
	assert.Empty(t, drain(&f))

	// A fresh frame after reset still parses.
	f.Push(Frame([]byte("MSH|NEW")))
	payloads := drain(&f)
	require.Len(t, payloads, 1)
	assert.Equal(t, []byte("MSH|NEW"), payloads[0])
}

func TestAckFrame(t *testing.T) {
	ack := Ack(AckAccept, "20240129093837")

	require.Equal(t, byte(StartOfBlock), ack[0])
	require.True(t, bytes.HasSuffix(ack, []byte{EndOfBlock, CarriageReturn}))

	payload := ack[1 : len(ack)-2]
	assert.Equal(t, "MSH|^~\\&|||||20240129093837||ACK|||2.5\rMSA|AA\r", string(payload))

	ae := Ack(AckError, "20240129093837")
	assert.Contains(t, string(ae), "MSA|AE")
}
