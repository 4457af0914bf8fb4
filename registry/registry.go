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

// Package registry implements the per-connection identifier namespaces:
// the append-only name<->ID tables (TypeRegistry, SenderRegistry) and the
// remote-to-local TranslationTable that bridges a peer's IDs to ours. Each
// side of a connection owns an independent instance; nothing here is
// shared across connections or synchronized, matching the single-threaded
// per-endpoint discipline in spec §5.
package registry

import "github.com/vrpn/vrpn-go/wire"

// nameTable is the append-only, name<->index table both TypeRegistry and
// SenderRegistry are built on: inserting a known name returns its existing
// index, inserting a new one appends and returns the new, dense index.
type nameTable struct {
	byName map[string]int32
	names  []string
}

func newNameTable() nameTable {
	return nameTable{byName: make(map[string]int32)}
}

func (t *nameTable) register(name string) int32 {
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := int32(len(t.names))
	t.names = append(t.names, name)
	t.byName[name] = id
	return id
}

func (t *nameTable) byID(id int32) (string, bool) {
	if id < 0 || int(id) >= len(t.names) {
		return "", false
	}
	return t.names[id], true
}

func (t *nameTable) byNameLookup(name string) (int32, bool) {
	id, ok := t.byName[name]
	return id, ok
}

func (t *nameTable) len() int { return len(t.names) }

// TypeRegistry is the local TypeID namespace for one connection.
type TypeRegistry struct {
	table nameTable
}

// NewTypeRegistry returns an empty type registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{table: newNameTable()}
}

// Register returns name's existing TypeID, or allocates and returns a new
// one equal to the registry's prior size.
func (r *TypeRegistry) Register(name string) wire.TypeID {
	return wire.TypeID(r.table.register(name))
}

// ByID looks up the name registered under id.
func (r *TypeRegistry) ByID(id wire.TypeID) (string, bool) {
	return r.table.byID(int32(id))
}

// ByName looks up the TypeID registered for name.
func (r *TypeRegistry) ByName(name string) (wire.TypeID, bool) {
	id, ok := r.table.byNameLookup(name)
	return wire.TypeID(id), ok
}

// Len returns the number of registered types.
func (r *TypeRegistry) Len() int { return r.table.len() }

// SenderRegistry is the local SenderID namespace for one connection.
type SenderRegistry struct {
	table nameTable
}

// NewSenderRegistry returns an empty sender registry.
func NewSenderRegistry() *SenderRegistry {
	return &SenderRegistry{table: newNameTable()}
}

// Register returns name's existing SenderID, or allocates and returns a new
// one equal to the registry's prior size.
func (r *SenderRegistry) Register(name string) wire.SenderID {
	return wire.SenderID(r.table.register(name))
}

// ByID looks up the name registered under id.
func (r *SenderRegistry) ByID(id wire.SenderID) (string, bool) {
	return r.table.byID(int32(id))
}

// ByName looks up the SenderID registered for name.
func (r *SenderRegistry) ByName(name string) (wire.SenderID, bool) {
	id, ok := r.table.byNameLookup(name)
	return wire.SenderID(id), ok
}

// Len returns the number of registered senders.
func (r *SenderRegistry) Len() int { return r.table.len() }
