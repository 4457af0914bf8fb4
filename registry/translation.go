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
	"fmt"

	"github.com/vrpn/vrpn-go/wire"
)

// ErrConflictingDescription is returned by Insert when a remote ID is
// already bound to a different local ID than the one being inserted.
var ErrConflictingDescription = fmt.Errorf("registry: conflicting description")

// translationTable maps a peer's local IDs to this side's local IDs, as
// description messages arrive. Remote IDs are guaranteed by the protocol to
// be sequentially allocated non-negative integers, so a dense slice
// indexed by remote ID is cheaper than a map (spec §3 TranslationTable).
type translationTable struct {
	local []int32 // -1 marks an unset slot
}

const unset int32 = -1

func (t *translationTable) insert(remote, local int32) error {
	if remote < 0 {
		return fmt.Errorf("registry: remote id %d must be non-negative", remote)
	}
	for int32(len(t.local)) <= remote {
		t.local = append(t.local, unset)
	}
	if t.local[remote] == unset {
		t.local[remote] = local
		return nil
	}
	if t.local[remote] != local {
		return fmt.Errorf("%w: remote id %d already mapped to %d, got %d", ErrConflictingDescription, remote, t.local[remote], local)
	}
	return nil // idempotent re-insertion
}

func (t *translationTable) translate(remote int32) (int32, bool) {
	if remote < 0 || int(remote) >= len(t.local) || t.local[remote] == unset {
		return 0, false
	}
	return t.local[remote], true
}

// TypeTranslationTable bridges a peer's remote TypeIDs to our local ones.
type TypeTranslationTable struct {
	table translationTable
}

// Insert records remote -> local. Re-inserting the same pair is a no-op;
// inserting a conflicting local ID for an already-bound remote ID fails
// with ErrConflictingDescription.
func (t *TypeTranslationTable) Insert(remote, local wire.TypeID) error {
	return t.table.insert(int32(remote), int32(local))
}

// Translate resolves a remote TypeID to the local TypeID it was bound to.
func (t *TypeTranslationTable) Translate(remote wire.TypeID) (wire.TypeID, bool) {
	local, ok := t.table.translate(int32(remote))
	return wire.TypeID(local), ok
}

// SenderTranslationTable bridges a peer's remote SenderIDs to our local ones.
type SenderTranslationTable struct {
	table translationTable
}

// Insert records remote -> local, with the same idempotence rules as
// TypeTranslationTable.Insert.
func (t *SenderTranslationTable) Insert(remote, local wire.SenderID) error {
	return t.table.insert(int32(remote), int32(local))
}

// Translate resolves a remote SenderID to the local SenderID it was bound to.
func (t *SenderTranslationTable) Translate(remote wire.SenderID) (wire.SenderID, bool) {
	local, ok := t.table.translate(int32(remote))
	return wire.SenderID(local), ok
}
