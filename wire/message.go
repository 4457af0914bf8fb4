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

import "fmt"

// TypeID and SenderID are connection-scoped handles: non-negative values are
// dynamically allocated per side by package registry, small negative values
// are the reserved system message types below. They are never meaningful
// across two different connections.
type TypeID int32

// SenderID identifies the source of a message on one connection.
type SenderID int32

// Reserved system message types (spec §3, §6). These never appear in a
// registry; the dispatcher in package endpoint handles them directly.
const (
	TypeSenderDescription TypeID = -1
	TypeTypeDescription    TypeID = -2
	TypeUDPDescription     TypeID = -3
	TypeLogDescription     TypeID = -4
)

// IsSystem reports whether t is one of the reserved system message types.
func (t TypeID) IsSystem() bool {
	return t <= -1 && t >= -4
}

// TimeVal names a wall-clock instant as the sender supplied it: seconds and
// microseconds, each a big-endian signed 32-bit integer.
type TimeVal struct {
	Sec  int32
	Usec int32
}

// ClassOfService is the small bitmask that chooses outbound transport and
// advertises delivery characteristics. Only Reliable vs LowLatency changes
// core behavior; the rest is transported but advisory.
type ClassOfService uint32

// Recognized ClassOfService flags.
const (
	ClassReliable        ClassOfService = 1 << 0
	ClassLowLatency      ClassOfService = 1 << 1
	ClassFixedLatency    ClassOfService = 1 << 2
	ClassFixedThroughput ClassOfService = 1 << 3
)

// Reliable reports whether the Reliable flag is set.
func (c ClassOfService) Reliable() bool { return c&ClassReliable != 0 }

// LowLatency reports whether the LowLatency flag is set.
func (c ClassOfService) LowLatency() bool { return c&ClassLowLatency != 0 }

// headerSize is the fixed, padded wire header: length, TimeVal, sender,
// type, and 4 bytes of alignment padding that may carry an optional
// sequence number.
const headerSize = 24

// GenericMessage is the framing layer's unit of work: header fields plus an
// opaque body. The typed payloads in payloads.go and system.go decode from
// the body through their UnmarshalBinary methods; package endpoint hands
// handlers the GenericMessage itself, with its sender/type translated.
type GenericMessage struct {
	Timestamp TimeVal
	Sender    SenderID
	Type      TypeID
	Body      []byte
	Class     ClassOfService

	// Sequence is the raw value found in (or written to) the 4 bytes of
	// header padding at offset 20. The wire format carries no flag marking
	// whether a sender actually populated it, so a decoded zero is
	// ambiguous with "absent" -- callers that need to tell the two apart
	// must do so out of band (spec §3 SequenceNumber).
	Sequence uint32
}

// EncodeMessage writes the 24-byte padded header, the body, and zero-pads
// the whole message to a multiple of 8 bytes. seq, when hasSeq is true, is
// written into the header's padding slot; it has no effect on decoding.
func EncodeMessage(m *GenericMessage, seq uint32, hasSeq bool) []byte {
	w := NewWriter(headerSize + len(m.Body) + 8)
	w.PutU32(uint32(headerSize + len(m.Body)))
	w.PutI32(m.Timestamp.Sec)
	w.PutI32(m.Timestamp.Usec)
	w.PutI32(int32(m.Sender))
	w.PutI32(int32(m.Type))
	if hasSeq {
		w.PutU32(seq)
	} else {
		w.PutU32(0)
	}
	w.PutBytes(m.Body)
	w.PadToAlignment(8)
	return w.Bytes()
}

// DecodeMessage decodes exactly one GenericMessage from the front of b and
// returns the number of bytes consumed (including alignment padding), so the
// caller can slice the remainder for the next call.
func DecodeMessage(b []byte) (*GenericMessage, int, error) {
	r := NewReader(b)
	length, err := r.U32()
	if err != nil {
		return nil, 0, err
	}
	if length < headerSize {
		return nil, 0, fmt.Errorf("%w: length %d below header size %d", ErrBadLength, length, headerSize)
	}
	if int(length) > len(b) {
		return nil, 0, ErrTruncated
	}
	sec, err := r.I32()
	if err != nil {
		return nil, 0, err
	}
	usec, err := r.I32()
	if err != nil {
		return nil, 0, err
	}
	sender, err := r.I32()
	if err != nil {
		return nil, 0, err
	}
	typ, err := r.I32()
	if err != nil {
		return nil, 0, err
	}
	seq, err := r.U32() // header padding, tolerated as opaque
	if err != nil {
		return nil, 0, err
	}
	bodyLen := int(length) - headerSize
	body, err := r.Bytes(bodyLen)
	if err != nil {
		return nil, 0, err
	}
	// copy the body out: b may be a shared/reused read buffer
	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)

	if err := r.SkipToAlignment(8); err != nil {
		return nil, 0, err
	}

	msg := &GenericMessage{
		Timestamp: TimeVal{Sec: sec, Usec: usec},
		Sender:    SenderID(sender),
		Type:      TypeID(typ),
		Body:      bodyCopy,
		Sequence:  seq,
	}
	return msg, r.Offset(), nil
}

// DecodeAll decodes every complete message present in b, returning them in
// order along with any trailing partial bytes the caller should prepend to
// its next read. It never returns an error for a trailing partial message;
// only a malformed complete header is an error.
func DecodeAll(b []byte) ([]*GenericMessage, []byte, error) {
	var msgs []*GenericMessage
	for len(b) > 0 {
		if len(b) < 4 {
			break
		}
		// Peek at length without committing: if the full message isn't
		// buffered yet, this is a partial read, not an error.
		length := beU32(b)
		if Align(int(length), 8) > len(b) {
			if length < headerSize {
				return msgs, nil, fmt.Errorf("%w: length %d below header size %d", ErrBadLength, length, headerSize)
			}
			break
		}
		msg, n, err := DecodeMessage(b)
		if err != nil {
			return msgs, nil, err
		}
		msgs = append(msgs, msg)
		b = b[n:]
	}
	return msgs, b, nil
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
