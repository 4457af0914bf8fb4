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
	"net"
	"strconv"
)

// UDPAnnounce is the single UDP datagram a VRPN client sends to the
// server's well-known UDP port to kick off the UDP+TCP handshake: the
// client's reachable IPv4 address and the TCP port it is listening on.
type UDPAnnounce struct {
	ClientIP   net.IP
	ClientPort int
}

// Encode renders the datagram as "<ip> <port>\0". Upstream implementations
// have been observed padding this to 16 bytes; this encoder emits the exact
// null-terminated form and lets the caller pad if talking to a picky peer
// (spec §9 open question on UDP announcement padding).
func (a UDPAnnounce) Encode() ([]byte, error) {
	ip4 := a.ClientIP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: UDP announce client IP is not IPv4", ErrBadPayload)
	}
	s := fmt.Sprintf("%s %d", ip4.String(), a.ClientPort)
	return append([]byte(s), 0), nil
}

// DecodeUDPAnnounce parses a UDP announcement datagram, accepting either an
// exact null-terminated payload or one zero-padded beyond the null (spec §9:
// "this specification mandates the decoder accept either form").
func DecodeUDPAnnounce(b []byte) (UDPAnnounce, error) {
	var a UDPAnnounce
	null := bytes.IndexByte(b, 0)
	if null < 0 {
		return a, fmt.Errorf("%w: UDP announce datagram has no terminating null", ErrTruncated)
	}
	fields := bytes.SplitN(b[:null], []byte(" "), 2)
	if len(fields) != 2 {
		return a, fmt.Errorf("%w: %q is not \"<ip> <port>\"", ErrBadPayload, b[:null])
	}
	ip := net.ParseIP(string(fields[0])).To4()
	if ip == nil {
		return a, fmt.Errorf("%w: %q is not a dotted-quad IPv4 address", ErrBadPayload, fields[0])
	}
	port, err := strconv.Atoi(string(fields[1]))
	if err != nil || port <= 0 || port > 65535 {
		return a, fmt.Errorf("%w: %q is not a valid TCP port", ErrBadPayload, fields[1])
	}
	a.ClientIP = ip
	a.ClientPort = port
	return a, nil
}
