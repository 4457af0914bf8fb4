/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wire

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessageEmptyBody(t *testing.T) {
	// S1: empty-body framed message.
	m := &GenericMessage{
		Timestamp: TimeVal{Sec: 1, Usec: 2},
		Sender:    3,
		Type:      4,
		Body:      nil,
	}
	got := EncodeMessage(m, 0, false)
	want, err := hex.DecodeString("000000180000000100000002000000030000000400000000")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, len(got)%8, "encoded output must be 8-byte aligned")
}

func TestDecodeMessageEmptyBody(t *testing.T) {
	raw, err := hex.DecodeString("000000180000000100000002000000030000000400000000")
	require.NoError(t, err)
	msg, n, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, TimeVal{Sec: 1, Usec: 2}, msg.Timestamp)
	assert.Equal(t, SenderID(3), msg.Sender)
	assert.Equal(t, TypeID(4), msg.Type)
	assert.Empty(t, msg.Body)
}

func TestHeaderRoundTrip(t *testing.T) {
	bodies := [][]byte{
		nil,
		{0x01},
		make([]byte, 7),
		make([]byte, 64000),
	}
	for _, body := range bodies {
		m := &GenericMessage{
			Timestamp: TimeVal{Sec: 42, Usec: 777},
			Sender:    5,
			Type:      -1,
			Body:      body,
		}
		encoded := EncodeMessage(m, 0, false)
		assert.Zero(t, len(encoded)%8)
		decoded, n, err := DecodeMessage(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, m.Timestamp, decoded.Timestamp)
		assert.Equal(t, m.Sender, decoded.Sender)
		assert.Equal(t, m.Type, decoded.Type)
		if len(body) == 0 {
			assert.Empty(t, decoded.Body)
		} else {
			assert.Equal(t, body, decoded.Body)
		}
		assert.Equal(t, uint32(headerSize+len(body)), uint32(headerSize+len(decoded.Body)))
	}
}

func TestDecodeMessageTolerateNonZeroPadding(t *testing.T) {
	m := &GenericMessage{Timestamp: TimeVal{Sec: 1, Usec: 1}, Sender: 1, Type: 1, Body: []byte("hi")}
	encoded := EncodeMessage(m, 0xDEADBEEF, true)
	decoded, n, err := DecodeMessage(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, []byte("hi"), decoded.Body)
	assert.Equal(t, uint32(0xDEADBEEF), decoded.Sequence)
}

func TestDecodeAllMultiMessage(t *testing.T) {
	// Testable property 7: N concatenated messages decode to N messages in order.
	var buf []byte
	for i := int32(0); i < 5; i++ {
		m := &GenericMessage{Timestamp: TimeVal{Sec: i, Usec: 0}, Sender: i, Type: i, Body: []byte{byte(i)}}
		buf = append(buf, EncodeMessage(m, 0, false)...)
	}
	msgs, trailing, err := DecodeAll(buf)
	require.NoError(t, err)
	assert.Empty(t, trailing)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, int32(i), m.Timestamp.Sec)
		assert.Equal(t, SenderID(i), m.Sender)
	}
}

func TestDecodeAllTrailingPartial(t *testing.T) {
	m := &GenericMessage{Timestamp: TimeVal{Sec: 1}, Sender: 1, Type: 1, Body: []byte("hello")}
	full := EncodeMessage(m, 0, false)
	partial := append(full, full[:10]...)
	msgs, trailing, err := DecodeAll(partial)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, full[:10], trailing)
}

func TestDecodeMessageBadLength(t *testing.T) {
	raw, err := hex.DecodeString("0000000A0000000100000002000000030000000400000000")
	require.NoError(t, err)
	_, _, err = DecodeMessage(raw)
	assert.ErrorIs(t, err, ErrBadLength)
}

func TestDecodeMessageTruncated(t *testing.T) {
	raw := []byte{0, 0, 0, 24, 0, 0}
	_, _, err := DecodeMessage(raw)
	assert.ErrorIs(t, err, ErrTruncated)
}
