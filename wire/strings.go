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
	"bytes"
	"fmt"
	"unicode/utf8"
)

// The protocol mixes three incompatible string conventions; each gets its own
// pair of codec functions rather than one polymorphic "string" type, since
// the framing differs in ways that matter (whether the null is counted in
// the length, whether there even is a length).

// ReadLengthPrefixed decodes the SENDER_DESCRIPTION/TYPE_DESCRIPTION form:
// a u32 length followed by that many bytes, the last of which is 0x00. The
// returned slice excludes the trailing null.
func ReadLengthPrefixed(r *Reader) ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: zero-length string has no terminating null", ErrBadPayload)
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return nil, err
	}
	if b[len(b)-1] != 0 {
		return nil, fmt.Errorf("%w: length-prefixed string missing terminating null", ErrBadPayload)
	}
	return b[:len(b)-1], nil
}

// WriteLengthPrefixed encodes s in the length-prefixed-including-null form.
func WriteLengthPrefixed(w *Writer, s []byte) {
	w.PutU32(uint32(len(s) + 1))
	w.PutBytes(s)
	w.PutBytes([]byte{0})
}

// ReadDualLength decodes one of the two LOG_DESCRIPTION strings: an i32
// length (excluding the null) followed by that many bytes plus a null.
func ReadDualLength(r *Reader) ([]byte, error) {
	n, err := r.I32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative dual-length string length %d", ErrBadPayload, n)
	}
	b, err := r.Bytes(int(n) + 1)
	if err != nil {
		return nil, err
	}
	if b[len(b)-1] != 0 {
		return nil, fmt.Errorf("%w: dual-length string missing terminating null", ErrBadPayload)
	}
	return b[:len(b)-1], nil
}

// WriteDualLength encodes s as an i32 length (excluding the null) plus s
// plus a trailing null.
func WriteDualLength(w *Writer, s []byte) {
	w.PutI32(int32(len(s)))
	w.PutBytes(s)
	w.PutBytes([]byte{0})
}

// ReadNullTerminated reads bytes through and including the first 0x00,
// returning the bytes before it. Used for UDP_DESCRIPTION bodies and the UDP
// announcement datagram.
func ReadNullTerminated(r *Reader) ([]byte, error) {
	rest := r.buf[r.off:]
	idx := bytes.IndexByte(rest, 0)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no terminating null found", ErrTruncated)
	}
	b := rest[:idx]
	r.off += idx + 1
	return b, nil
}

// WriteNullTerminated appends s followed by a single 0x00.
func WriteNullTerminated(w *Writer, s []byte) {
	w.PutBytes(s)
	w.PutBytes([]byte{0})
}

// AsUTF8 validates b as UTF-8 text and returns it as a string, for callers
// that want text rather than the binary form the core prefers internally.
func AsUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrUTF8
	}
	return string(b), nil
}
