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
	"fmt"
	"net"
)

// SenderDescription is the body of a SENDER_DESCRIPTION system message
// (TypeSenderDescription). The remote sender ID it describes travels in the
// GenericMessage header's Sender field, not in the body.
type SenderDescription struct {
	Name []byte
}

// UnmarshalBinary decodes a SenderDescription body.
func (d *SenderDescription) UnmarshalBinary(b []byte) error {
	name, err := ReadLengthPrefixed(NewReader(b))
	if err != nil {
		return err
	}
	d.Name = name
	return nil
}

// MarshalBinary encodes a SenderDescription body.
func (d *SenderDescription) MarshalBinary() ([]byte, error) {
	w := NewWriter(4 + len(d.Name) + 1)
	WriteLengthPrefixed(w, d.Name)
	return w.Bytes(), nil
}

// TypeDescription is the body of a TYPE_DESCRIPTION system message
// (TypeTypeDescription). Same wire shape as SenderDescription; the header's
// Sender field is repurposed to carry the remote type ID being described.
type TypeDescription struct {
	Name []byte
}

// UnmarshalBinary decodes a TypeDescription body.
func (d *TypeDescription) UnmarshalBinary(b []byte) error {
	name, err := ReadLengthPrefixed(NewReader(b))
	if err != nil {
		return err
	}
	d.Name = name
	return nil
}

// MarshalBinary encodes a TypeDescription body.
func (d *TypeDescription) MarshalBinary() ([]byte, error) {
	w := NewWriter(4 + len(d.Name) + 1)
	WriteLengthPrefixed(w, d.Name)
	return w.Bytes(), nil
}

// UDPDescription is the body of a UDP_DESCRIPTION system message
// (TypeUDPDescription): a null-terminated dotted-quad IPv4 address. The
// header's Sender field carries the UDP port as a u16-in-i32.
type UDPDescription struct {
	Host net.IP
}

// UnmarshalBinary decodes a UDPDescription body.
func (d *UDPDescription) UnmarshalBinary(b []byte) error {
	raw, err := ReadNullTerminated(NewReader(b))
	if err != nil {
		return err
	}
	ip := net.ParseIP(string(raw)).To4()
	if ip == nil {
		return fmt.Errorf("%w: %q is not a dotted-quad IPv4 address", ErrBadPayload, raw)
	}
	d.Host = ip
	return nil
}

// MarshalBinary encodes a UDPDescription body.
func (d *UDPDescription) MarshalBinary() ([]byte, error) {
	ip4 := d.Host.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: UDP description host is not IPv4", ErrBadPayload)
	}
	s := []byte(ip4.String())
	w := NewWriter(len(s) + 1)
	WriteNullTerminated(w, s)
	return w.Bytes(), nil
}

// LogDescription is the body of a LOG_DESCRIPTION system message
// (TypeLogDescription): two dual-length-excluding-null strings, incoming
// log file name then outgoing. The header's Sender field carries the
// logging-mode bitmask.
type LogDescription struct {
	InName  []byte
	OutName []byte
}

// UnmarshalBinary decodes a LogDescription body.
func (d *LogDescription) UnmarshalBinary(b []byte) error {
	r := NewReader(b)
	in, err := ReadDualLength(r)
	if err != nil {
		return err
	}
	out, err := ReadDualLength(r)
	if err != nil {
		return err
	}
	d.InName = in
	d.OutName = out
	return nil
}

// MarshalBinary encodes a LogDescription body.
func (d *LogDescription) MarshalBinary() ([]byte, error) {
	w := NewWriter(4 + len(d.InName) + 1 + 4 + len(d.OutName) + 1)
	WriteDualLength(w, d.InName)
	WriteDualLength(w, d.OutName)
	return w.Bytes(), nil
}

// LoggingMode is the bitmask carried in LogDescription's header Sender slot.
type LoggingMode int32

// Recognized LoggingMode bits (spec §4.4).
const (
	LogIncoming LoggingMode = 1
	LogOutgoing LoggingMode = 2
)
