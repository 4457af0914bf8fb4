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

package conn

import "errors"

// Handshake- and transport-level errors (spec §7). Codec errors
// (Truncated/BadLength/BadPayload) live in package wire; translation
// errors live in package registry/endpoint.
var (
	// ErrIncompatibleVersion means the peer's cookie major version did
	// not match ours.
	ErrIncompatibleVersion = errors.New("conn: incompatible protocol version")
	// ErrHandshakeTimeout means the cookie exchange did not complete
	// within the configured deadline.
	ErrHandshakeTimeout = errors.New("conn: handshake timed out")
	// ErrTransportClosed means the peer closed the transport (EOF).
	ErrTransportClosed = errors.New("conn: transport closed")
	// ErrTransportIo wraps an I/O error observed on the transport.
	ErrTransportIo = errors.New("conn: transport i/o error")
	// ErrNotConnected means an operation was attempted on a connection that
	// is not Established: before the handshake completes, or once Closing
	// or Closed.
	ErrNotConnected = errors.New("conn: not connected")
)
