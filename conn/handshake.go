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
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vrpn/vrpn-go/wire"
)

// DefaultHandshakeTimeout is spec §5's default cookie-exchange deadline.
const DefaultHandshakeTimeout = 30 * time.Second

// deadlineReadWriter is the minimal transport surface the handshake needs;
// net.Conn satisfies it directly.
type deadlineReadWriter interface {
	io.Reader
	io.Writer
	SetDeadline(t time.Time) error
}

// exchangeCookies sends local's cookie and reads the peer's, concurrently,
// bounded by deadline. Both sides of a TCP-only connection, and both sides
// of a UDP+TCP connection once the TCP leg is up, run this same exchange
// (spec §4.4: "each side sends its 24-byte cookie unprompted and reads the
// peer's").
func exchangeCookies(rw deadlineReadWriter, local wire.Cookie, deadline time.Time) (wire.Cookie, error) {
	if err := rw.SetDeadline(deadline); err != nil {
		return wire.Cookie{}, fmt.Errorf("%w: setting handshake deadline: %v", ErrTransportIo, err)
	}
	defer rw.SetDeadline(time.Time{}) //nolint:errcheck

	encoded, err := local.Encode()
	if err != nil {
		return wire.Cookie{}, err
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := rw.Write(encoded[:])
		if err != nil {
			return fmt.Errorf("%w: writing cookie: %w", ErrTransportIo, err)
		}
		return nil
	})

	var peer wire.Cookie
	g.Go(func() error {
		buf := make([]byte, wire.CookieSize)
		if _, err := io.ReadFull(rw, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return ErrTransportClosed
			}
			return fmt.Errorf("%w: reading peer cookie: %w", ErrTransportIo, err)
		}
		decoded, err := wire.DecodeCookie(buf)
		if err != nil {
			return err
		}
		peer = decoded
		return nil
	})

	if err := g.Wait(); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return wire.Cookie{}, fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
		}
		return wire.Cookie{}, err
	}
	return peer, nil
}

// checkCompatible rejects the peer's cookie if its major version differs
// from ours (spec §4.4: "equal major versions are compatible; otherwise the
// connection is rejected with IncompatibleVersion").
func checkCompatible(local, peer wire.Cookie) error {
	ok, err := local.Compatible(peer)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: local %d.%d peer %d.%d", ErrIncompatibleVersion, local.Major, local.Minor, peer.Major, peer.Minor)
	}
	return nil
}
