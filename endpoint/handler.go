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

import "github.com/vrpn/vrpn-go/wire"

// Handler is the dispatcher's polymorphic capability: one concrete value
// wraps each typed decoder rather than growing a type hierarchy (spec §9
// "Dynamic dispatch for handlers").
type Handler interface {
	Invoke(msg *wire.GenericMessage) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(msg *wire.GenericMessage) error

// Invoke calls f.
func (f HandlerFunc) Invoke(msg *wire.GenericMessage) error { return f(msg) }

type handlerEntry struct {
	sender  wire.SenderID
	anySender bool
	handler Handler
}
