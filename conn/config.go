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

import (
	"time"

	"github.com/vrpn/vrpn-go/endpoint"
	"github.com/vrpn/vrpn-go/wire"
)

// Config holds the knobs a Connection needs beyond the raw transport: the
// local cookie to present, and the timeouts/queue sizing from spec §5.
// cmd/vrpnd loads this from YAML; tests construct it by hand.
type Config struct {
	// Major/Minor are this side's protocol version, defaulting to
	// wire.DefaultMajorVersion/DefaultMinorVersion.
	Major, Minor int
	// LoggingMode is the bitmask advertised in our cookie.
	LoggingMode wire.LoggingMode

	// HandshakeTimeout bounds cookie exchange (default 30s).
	HandshakeTimeout time.Duration
	// DrainTimeout bounds the outbound drain during Closing (default 5s).
	DrainTimeout time.Duration

	// PreregisteredTypes/PreregisteredSenders are registered into the
	// endpoint's local registries at birth, matching spec §4.5
	// DescriptionSync: "each side emits SENDER_DESCRIPTION and
	// TYPE_DESCRIPTION messages for every name pre-registered at birth."
	PreregisteredTypes   []string
	PreregisteredSenders []string

	// Endpoint configures the underlying dispatcher (queue depths, error
	// sink, metrics). See package endpoint.
	Endpoint endpoint.Config
}

// withDefaults fills in zero-valued fields with spec defaults.
func (c Config) withDefaults() Config {
	if c.Major == 0 && c.Minor == 0 {
		c.Major, c.Minor = wire.DefaultMajorVersion, wire.DefaultMinorVersion
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	return c
}

func (c Config) cookie() wire.Cookie {
	return wire.Cookie{Major: c.Major, Minor: c.Minor, LoggingMode: c.LoggingMode}
}
