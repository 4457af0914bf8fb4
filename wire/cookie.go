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
	"bytes"
	"fmt"

	"github.com/hashicorp/go-version"
)

// CookieSize is the fixed wire size of the magic cookie.
const CookieSize = 24

// DefaultMajorVersion and DefaultMinorVersion are the protocol version this
// module speaks, matching upstream VRPN 07.35.
const (
	DefaultMajorVersion = 7
	DefaultMinorVersion = 35
)

// DefaultPort is the well-known TCP and UDP service port.
const DefaultPort = 3883

// Cookie is the 24-byte handshake record: "vrpn: ver. MM.mm  L\0" right
// padded with zeros, where MM.mm is the two-digit major/minor version and L
// is a decimal digit logging-mode bitmask.
type Cookie struct {
	Major      int
	Minor      int
	LoggingMode LoggingMode
}

// Encode renders the cookie to its fixed 24-byte wire form.
func (c Cookie) Encode() ([CookieSize]byte, error) {
	var out [CookieSize]byte
	if c.Major < 0 || c.Major > 99 || c.Minor < 0 || c.Minor > 99 {
		return out, fmt.Errorf("%w: cookie version %d.%d does not fit two decimal digits", ErrBadPayload, c.Major, c.Minor)
	}
	if c.LoggingMode < 0 || c.LoggingMode > 9 {
		return out, fmt.Errorf("%w: cookie logging mode %d does not fit one decimal digit", ErrBadPayload, c.LoggingMode)
	}
	s := fmt.Sprintf("vrpn: ver. %02d.%02d  %d\x00", c.Major, c.Minor, c.LoggingMode)
	if len(s) > CookieSize {
		return out, fmt.Errorf("%w: encoded cookie %q exceeds %d bytes", ErrBadPayload, s, CookieSize)
	}
	copy(out[:], s)
	return out, nil
}

const cookiePrefix = "vrpn: ver. "

// DecodeCookie parses a 24-byte cookie record. Trailing padding after the
// literal template's terminating null may hold any byte values; only the
// ASCII template itself is validated.
func DecodeCookie(b []byte) (Cookie, error) {
	var c Cookie
	if len(b) < CookieSize {
		return c, ErrTruncated
	}
	null := bytes.IndexByte(b[:CookieSize], 0)
	if null < 0 {
		return c, fmt.Errorf("%w: cookie has no terminating null", ErrBadPayload)
	}
	body := string(b[:null])
	// "vrpn: ver. MM.mm  L"
	if len(body) < len(cookiePrefix)+8 || body[:len(cookiePrefix)] != cookiePrefix {
		return c, fmt.Errorf("%w: %q is not a valid VRPN cookie", ErrBadPayload, body)
	}
	rest := body[len(cookiePrefix):]
	major, err := parseTwoDigits(rest[0:2])
	if err != nil || rest[2] != '.' {
		return c, fmt.Errorf("%w: %q is not a valid VRPN cookie", ErrBadPayload, body)
	}
	minor, err2 := parseTwoDigits(rest[3:5])
	if err2 != nil || rest[5:7] != "  " {
		return c, fmt.Errorf("%w: %q is not a valid VRPN cookie", ErrBadPayload, body)
	}
	logMode, err3 := parseDigit(rest[7:])
	if err3 != nil {
		return c, fmt.Errorf("%w: %q is not a valid VRPN cookie", ErrBadPayload, body)
	}
	c.Major = major
	c.Minor = minor
	c.LoggingMode = LoggingMode(logMode)
	return c, nil
}

func parseTwoDigits(s string) (int, error) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, fmt.Errorf("%q is not two decimal digits", s)
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), nil
}

func parseDigit(s string) (int, error) {
	if len(s) != 1 || s[0] < '0' || s[0] > '9' {
		return 0, fmt.Errorf("%q is not one decimal digit", s)
	}
	return int(s[0] - '0'), nil
}

// Compatible reports whether c and peer can speak to each other: equal
// major versions are compatible, minor mismatches are accepted (spec §4.4,
// §9 "cookie minor-version semantics"). Parsed with hashicorp/go-version so
// the comparison is the same "dotted version" logic used elsewhere in the
// ecosystem rather than a hand-rolled digit compare.
func (c Cookie) Compatible(peer Cookie) (bool, error) {
	mine, err := version.NewVersion(fmt.Sprintf("%d.%d", c.Major, c.Minor))
	if err != nil {
		return false, fmt.Errorf("parsing local cookie version: %w", err)
	}
	theirs, err := version.NewVersion(fmt.Sprintf("%d.%d", peer.Major, peer.Minor))
	if err != nil {
		return false, fmt.Errorf("parsing peer cookie version: %w", err)
	}
	return mine.Segments()[0] == theirs.Segments()[0], nil
}
