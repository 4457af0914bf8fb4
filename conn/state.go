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

// Package conn drives a Connection from a raw transport to established
// bidirectional messaging (spec §4.5): the magic-cookie handshake, the
// dynamic TCP-only vs UDP+TCP transport coordination, and the state machine
// that never goes backward. Package endpoint owns the message semantics;
// package conn owns the bytes-on-the-wire lifecycle around it.
package conn

import "fmt"

// State is a position in the connection lifecycle (spec §4.5). A Connection
// never transitions backward.
type State int

// The six states of spec §4.5, in the only order a Connection may visit
// them.
const (
	Initial State = iota
	CookieExchange
	DescriptionSync
	Established
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "Initial"
	case CookieExchange:
		return "CookieExchange"
	case DescriptionSync:
		return "DescriptionSync"
	case Established:
		return "Established"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transitionTo validates that next is not behind s, per the invariant "a
// connection never transitions backward in its state machine" (spec §3).
func (s State) transitionTo(next State) error {
	if next < s {
		return fmt.Errorf("conn: illegal backward transition %s -> %s", s, next)
	}
	return nil
}
