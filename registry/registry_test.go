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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vrpn/vrpn-go/wire"
)

func TestTypeRegistryStability(t *testing.T) {
	r := NewTypeRegistry()
	id1 := r.Register("vrpn_Tracker Pos_Quat")
	id2 := r.Register("vrpn_Analog Channel")
	id1Again := r.Register("vrpn_Tracker Pos_Quat")

	assert.Equal(t, wire.TypeID(0), id1)
	assert.Equal(t, wire.TypeID(1), id2)
	assert.Equal(t, id1, id1Again, "repeated register must return the same id")

	name, ok := r.ByID(id2)
	assert.True(t, ok)
	assert.Equal(t, "vrpn_Analog Channel", name)

	id, ok := r.ByName("vrpn_Analog Channel")
	assert.True(t, ok)
	assert.Equal(t, id2, id)

	_, ok = r.ByName("unknown")
	assert.False(t, ok)
	_, ok = r.ByID(99)
	assert.False(t, ok)
}

func TestSenderRegistryDenseOrder(t *testing.T) {
	r := NewSenderRegistry()
	var ids []wire.SenderID
	for _, name := range []string{"Tracker0", "Tracker1", "Tracker2"} {
		ids = append(ids, r.Register(name))
	}
	for i, id := range ids {
		assert.Equal(t, wire.SenderID(i), id)
	}
	assert.Equal(t, 3, r.Len())
}

func TestTypeTranslationIdempotence(t *testing.T) {
	var tt TypeTranslationTable
	require := assert.New(t)
	require.NoError(tt.Insert(5, 0))
	require.NoError(tt.Insert(5, 0), "re-inserting the same mapping must succeed")

	local, ok := tt.Translate(5)
	require.True(ok)
	require.Equal(wire.TypeID(0), local)

	err := tt.Insert(5, 1)
	require.ErrorIs(err, ErrConflictingDescription)
}

func TestSenderTranslationUnknownRemote(t *testing.T) {
	var st SenderTranslationTable
	_, ok := st.Translate(3)
	assert.False(t, ok)

	assert.NoError(t, st.Insert(3, 7))
	local, ok := st.Translate(3)
	assert.True(t, ok)
	assert.Equal(t, wire.SenderID(7), local)
}
