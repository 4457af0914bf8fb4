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

package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrpn/vrpn-go/wire"
)

func TestSendEmitsDescriptionBeforeData(t *testing.T) {
	ep := New(Config{})
	typeID := ep.RegisterLocalType("vrpn_Tracker Pos_Quat")
	senderID := ep.RegisterLocalSender("Tracker0")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ep.Send(ctx, typeID, senderID, []byte("body"), wire.ClassReliable))

	first := <-ep.ReliableOutbound()
	second := <-ep.ReliableOutbound()
	third := <-ep.ReliableOutbound()

	m1, _, err := wire.DecodeMessage(first)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeSenderDescription, m1.Type)

	m2, _, err := wire.DecodeMessage(second)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeTypeDescription, m2.Type)

	m3, _, err := wire.DecodeMessage(third)
	require.NoError(t, err)
	assert.Equal(t, typeID, m3.Type)
	assert.Equal(t, senderID, m3.Sender)
	assert.Equal(t, []byte("body"), m3.Body)
}

func TestSendOnlyAnnouncesOnce(t *testing.T) {
	ep := New(Config{})
	typeID := ep.RegisterLocalType("vrpn_Analog Channel")
	senderID := ep.RegisterLocalSender("Tracker0")
	ctx := context.Background()

	require.NoError(t, ep.Send(ctx, typeID, senderID, []byte{1}, wire.ClassReliable))
	require.NoError(t, ep.Send(ctx, typeID, senderID, []byte{2}, wire.ClassReliable))

	// sender description, type description, data #1, data #2 -- no repeat descriptions.
	for i := 0; i < 4; i++ {
		<-ep.ReliableOutbound()
	}
	select {
	case <-ep.ReliableOutbound():
		t.Fatal("expected no more queued messages")
	default:
	}
}

func TestReceiveHandlesSenderAndTypeDescription(t *testing.T) {
	ep := New(Config{})

	senderDesc, err := (&wire.SenderDescription{Name: []byte("Tracker0")}).MarshalBinary()
	require.NoError(t, err)
	m1 := &wire.GenericMessage{Sender: 42, Type: wire.TypeSenderDescription, Body: senderDesc}
	raw1 := wire.EncodeMessage(m1, 0, false)

	typeDesc, err := (&wire.TypeDescription{Name: []byte("vrpn_Tracker Pos_Quat")}).MarshalBinary()
	require.NoError(t, err)
	m2 := &wire.GenericMessage{Sender: 7, Type: wire.TypeTypeDescription, Body: typeDesc}
	raw2 := wire.EncodeMessage(m2, 0, false)

	trailing, err := ep.Receive(append(raw1, raw2...))
	require.NoError(t, err)
	assert.Empty(t, trailing)

	localSender, ok := ep.senderXlat.Translate(42)
	require.True(t, ok)
	assert.Equal(t, wire.SenderID(0), localSender)

	localType, ok := ep.typeXlat.Translate(7)
	require.True(t, ok)
	assert.Equal(t, wire.TypeID(0), localType)
}

func TestReceiveDispatchesToHandlersInOrder(t *testing.T) {
	ep := New(Config{})

	// Establish remote sender 0 -> local sender, and remote type 0 -> local type,
	// the way real DescriptionSync traffic would before any data message.
	senderDesc, _ := (&wire.SenderDescription{Name: []byte("Tracker0")}).MarshalBinary()
	rawSender := wire.EncodeMessage(&wire.GenericMessage{Sender: 0, Type: wire.TypeSenderDescription, Body: senderDesc}, 0, false)
	_, err := ep.Receive(rawSender)
	require.NoError(t, err)

	typeDesc, _ := (&wire.TypeDescription{Name: []byte("vrpn_Analog Channel")}).MarshalBinary()
	rawType := wire.EncodeMessage(&wire.GenericMessage{Sender: 0, Type: wire.TypeTypeDescription, Body: typeDesc}, 0, false)
	_, err = ep.Receive(rawType)
	require.NoError(t, err)

	localType, ok := ep.typeXlat.Translate(0)
	require.True(t, ok)
	local0 := wire.SenderID(0)

	var order []string
	ep.AddHandler(localType, &local0, HandlerFunc(func(*wire.GenericMessage) error {
		order = append(order, "exact")
		return nil
	}))
	ep.AddHandler(localType, nil, HandlerFunc(func(*wire.GenericMessage) error {
		order = append(order, "wildcard")
		return nil
	}))

	body, _ := (&wire.Analog{Channels: []float64{1}}).MarshalBinary()
	data := wire.EncodeMessage(&wire.GenericMessage{Sender: 0, Type: 0, Body: body}, 0, false)
	_, err = ep.Receive(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"exact", "wildcard"}, order)
}

func TestReceiveUnknownRemoteIdReportsError(t *testing.T) {
	var gotErr error
	ep := New(Config{ErrorSink: func(err error) { gotErr = err }})

	data := wire.EncodeMessage(&wire.GenericMessage{Sender: 99, Type: 5, Body: nil}, 0, false)
	_, err := ep.Receive(data)
	require.NoError(t, err)
	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, ErrUnknownRemoteId)
}

func TestSendLowLatencyFallsBackToReliableUntilUDPUp(t *testing.T) {
	ep := New(Config{})
	typeID := ep.RegisterLocalType("vrpn_Analog Channel")
	senderID := ep.RegisterLocalSender("S")
	ctx := context.Background()

	require.NoError(t, ep.Send(ctx, typeID, senderID, []byte{1}, wire.ClassLowLatency))
	// sender desc, type desc, data -- all reliable since UDP isn't up.
	for i := 0; i < 3; i++ {
		select {
		case <-ep.ReliableOutbound():
		default:
			t.Fatalf("expected message %d on reliable queue", i)
		}
	}
	select {
	case <-ep.LowLatencyOutbound():
		t.Fatal("expected nothing on low-latency queue before UDP is up")
	default:
	}

	ep.SetUDPUp(true)
	require.NoError(t, ep.Send(ctx, typeID, senderID, []byte{2}, wire.ClassLowLatency))
	select {
	case <-ep.LowLatencyOutbound():
	default:
		t.Fatal("expected data on low-latency queue once UDP is up")
	}
}

func TestSendLowLatencyDropsWhenQueueFull(t *testing.T) {
	ep := New(Config{LowLatencyQueueDepth: 1})
	ep.SetUDPUp(true)
	typeID := ep.RegisterLocalType("vrpn_Analog Channel")
	senderID := ep.RegisterLocalSender("S")
	ctx := context.Background()

	// Announce first so the queue isn't consumed by description traffic.
	require.NoError(t, ep.Send(ctx, typeID, senderID, []byte{1}, wire.ClassReliable))
	for i := 0; i < 3; i++ {
		<-ep.ReliableOutbound()
	}

	require.NoError(t, ep.Send(ctx, typeID, senderID, []byte{2}, wire.ClassLowLatency))
	err := ep.Send(ctx, typeID, senderID, []byte{3}, wire.ClassLowLatency)
	assert.ErrorIs(t, err, ErrQueueOverflow)
}
