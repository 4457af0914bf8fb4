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
	"math"
)

// Well-known type names for the payloads decoded bit-exact in spec §6.
// Registering these names in package registry is how a connection learns
// the local TypeID that maps to each of these decoders.
const (
	NameAnalog              = "vrpn_Analog Channel"
	NameButtonChange        = "vrpn_Button Change"
	NameButtonStates        = "vrpn_Button States"
	NameTrackerPosQuat      = "vrpn_Tracker Pos_Quat"
	NameTrackerVelocity     = "vrpn_Tracker Velocity"
	NameTrackerAcceleration = "vrpn_Tracker Acceleration"
)

// maxVectorCount bounds counts decoded from the wire (body-derived or
// float-derived) so a corrupt or hostile count can never drive an
// allocation or loop sized by attacker-controlled input alone; it is far
// above any real VRPN payload.
const maxVectorCount = 1 << 20

// Analog is "vrpn_Analog Channel": a float64 channel count followed by that
// many float64 samples. The count is carried as a float on the wire; it
// must be finite, non-negative, and round to an integer within capacity.
type Analog struct {
	Channels []float64
}

// UnmarshalBinary decodes an Analog body.
func (a *Analog) UnmarshalBinary(b []byte) error {
	r := NewReader(b)
	rawCount, err := r.F64()
	if err != nil {
		return err
	}
	if math.IsNaN(rawCount) || math.IsInf(rawCount, 0) || rawCount < 0 {
		return fmt.Errorf("%w: analog channel count %v is not a finite non-negative number", ErrBadPayload, rawCount)
	}
	count := int(math.Round(rawCount))
	if count > maxVectorCount || count*8 > r.Len() {
		return fmt.Errorf("%w: analog channel count %d exceeds remaining body capacity", ErrBadPayload, count)
	}
	channels := make([]float64, count)
	for i := range channels {
		channels[i], err = r.F64()
		if err != nil {
			return err
		}
	}
	a.Channels = channels
	return nil
}

// MarshalBinary encodes an Analog body.
func (a *Analog) MarshalBinary() ([]byte, error) {
	w := NewWriter(8 + 8*len(a.Channels))
	w.PutF64(float64(len(a.Channels)))
	for _, c := range a.Channels {
		w.PutF64(c)
	}
	return w.Bytes(), nil
}

// ButtonChange is "vrpn_Button Change": a count followed by that many
// (id, state) pairs describing buttons that changed state.
type ButtonChange struct {
	Buttons []ButtonEvent
}

// ButtonEvent is one (id, state) pair within a ButtonChange message.
type ButtonEvent struct {
	ID    int32
	State int32
}

// UnmarshalBinary decodes a ButtonChange body.
func (m *ButtonChange) UnmarshalBinary(b []byte) error {
	r := NewReader(b)
	count, err := r.I32()
	if err != nil {
		return err
	}
	if count < 0 || int(count) > maxVectorCount || int(count)*8 > r.Len() {
		return fmt.Errorf("%w: button change count %d is invalid", ErrBadPayload, count)
	}
	events := make([]ButtonEvent, count)
	for i := range events {
		id, err := r.I32()
		if err != nil {
			return err
		}
		state, err := r.I32()
		if err != nil {
			return err
		}
		events[i] = ButtonEvent{ID: id, State: state}
	}
	m.Buttons = events
	return nil
}

// MarshalBinary encodes a ButtonChange body.
func (m *ButtonChange) MarshalBinary() ([]byte, error) {
	w := NewWriter(4 + 8*len(m.Buttons))
	w.PutI32(int32(len(m.Buttons)))
	for _, e := range m.Buttons {
		w.PutI32(e.ID)
		w.PutI32(e.State)
	}
	return w.Bytes(), nil
}

// ButtonStates is "vrpn_Button States": a count followed by that many
// states, implicitly indexed 0..count-1.
type ButtonStates struct {
	States []int32
}

// UnmarshalBinary decodes a ButtonStates body.
func (m *ButtonStates) UnmarshalBinary(b []byte) error {
	r := NewReader(b)
	count, err := r.I32()
	if err != nil {
		return err
	}
	if count < 0 || int(count) > maxVectorCount || int(count)*4 > r.Len() {
		return fmt.Errorf("%w: button states count %d is invalid", ErrBadPayload, count)
	}
	states := make([]int32, count)
	for i := range states {
		states[i], err = r.I32()
		if err != nil {
			return err
		}
	}
	m.States = states
	return nil
}

// MarshalBinary encodes a ButtonStates body.
func (m *ButtonStates) MarshalBinary() ([]byte, error) {
	w := NewWriter(4 + 4*len(m.States))
	w.PutI32(int32(len(m.States)))
	for _, s := range m.States {
		w.PutI32(s)
	}
	return w.Bytes(), nil
}

// Quat is a unit quaternion in (w, x, y, z) order, as all three Tracker
// payloads carry it.
type Quat [4]float64

// TrackerPosQuat is "vrpn_Tracker Pos_Quat": sensor, a pad word, a 3-vector
// position, and an orientation quaternion.
type TrackerPosQuat struct {
	Sensor int32
	Pos    [3]float64
	Quat   Quat
}

// UnmarshalBinary decodes a TrackerPosQuat body.
func (t *TrackerPosQuat) UnmarshalBinary(b []byte) error {
	r := NewReader(b)
	sensor, err := r.I32()
	if err != nil {
		return err
	}
	if _, err := r.I32(); err != nil { // pad
		return err
	}
	for i := range t.Pos {
		if t.Pos[i], err = r.F64(); err != nil {
			return err
		}
	}
	for i := range t.Quat {
		if t.Quat[i], err = r.F64(); err != nil {
			return err
		}
	}
	t.Sensor = sensor
	return nil
}

// MarshalBinary encodes a TrackerPosQuat body.
func (t *TrackerPosQuat) MarshalBinary() ([]byte, error) {
	w := NewWriter(8 + 3*8 + 4*8)
	w.PutI32(t.Sensor)
	w.PutI32(0) // pad
	for _, v := range t.Pos {
		w.PutF64(v)
	}
	for _, v := range t.Quat {
		w.PutF64(v)
	}
	return w.Bytes(), nil
}

// TrackerVelocity is "vrpn_Tracker Velocity": sensor, pad, a velocity
// 3-vector, and a velocity quaternion.
type TrackerVelocity struct {
	Sensor  int32
	Vel     [3]float64
	VelQuat Quat
}

// UnmarshalBinary decodes a TrackerVelocity body.
func (t *TrackerVelocity) UnmarshalBinary(b []byte) error {
	r := NewReader(b)
	sensor, err := r.I32()
	if err != nil {
		return err
	}
	if _, err := r.I32(); err != nil {
		return err
	}
	for i := range t.Vel {
		if t.Vel[i], err = r.F64(); err != nil {
			return err
		}
	}
	for i := range t.VelQuat {
		if t.VelQuat[i], err = r.F64(); err != nil {
			return err
		}
	}
	t.Sensor = sensor
	return nil
}

// MarshalBinary encodes a TrackerVelocity body.
func (t *TrackerVelocity) MarshalBinary() ([]byte, error) {
	w := NewWriter(8 + 3*8 + 4*8)
	w.PutI32(t.Sensor)
	w.PutI32(0)
	for _, v := range t.Vel {
		w.PutF64(v)
	}
	for _, v := range t.VelQuat {
		w.PutF64(v)
	}
	return w.Bytes(), nil
}

// TrackerAcceleration is "vrpn_Tracker Acceleration": sensor, pad, an
// acceleration 3-vector, an acceleration quaternion, and its dt.
type TrackerAcceleration struct {
	Sensor    int32
	Acc       [3]float64
	AccQuat   Quat
	AccQuatDt float64
}

// UnmarshalBinary decodes a TrackerAcceleration body.
func (t *TrackerAcceleration) UnmarshalBinary(b []byte) error {
	r := NewReader(b)
	sensor, err := r.I32()
	if err != nil {
		return err
	}
	if _, err := r.I32(); err != nil {
		return err
	}
	for i := range t.Acc {
		if t.Acc[i], err = r.F64(); err != nil {
			return err
		}
	}
	for i := range t.AccQuat {
		if t.AccQuat[i], err = r.F64(); err != nil {
			return err
		}
	}
	dt, err := r.F64()
	if err != nil {
		return err
	}
	t.Sensor = sensor
	t.AccQuatDt = dt
	return nil
}

// MarshalBinary encodes a TrackerAcceleration body.
func (t *TrackerAcceleration) MarshalBinary() ([]byte, error) {
	w := NewWriter(8 + 3*8 + 4*8 + 8)
	w.PutI32(t.Sensor)
	w.PutI32(0)
	for _, v := range t.Acc {
		w.PutF64(v)
	}
	for _, v := range t.AccQuat {
		w.PutF64(v)
	}
	w.PutF64(t.AccQuatDt)
	return w.Bytes(), nil
}
