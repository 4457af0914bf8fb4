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
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrpn/vrpn-go/wire"
)

// pipePair returns the two ends of an in-memory net.Pipe, for handshake
// tests that don't need a real socket.
func pipePair() (net.Conn, net.Conn) {
	return net.Pipe()
}

func TestStateTransitionsForwardOnly(t *testing.T) {
	require.NoError(t, Initial.transitionTo(CookieExchange))
	require.NoError(t, CookieExchange.transitionTo(Established))
	require.Error(t, Established.transitionTo(Initial))
	require.Error(t, Closed.transitionTo(Established))
	require.NoError(t, Closing.transitionTo(Closing))
}

func TestEstablishTCPOnlySucceeds(t *testing.T) {
	clientConn, serverConn := pipePair()

	type result struct {
		c   *Connection
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		c, err := EstablishTCPOnly(clientConn, Config{})
		clientCh <- result{c, err}
	}()
	go func() {
		c, err := EstablishTCPOnly(serverConn, Config{})
		serverCh <- result{c, err}
	}()

	clientRes := <-clientCh
	serverRes := <-serverCh
	require.NoError(t, clientRes.err)
	require.NoError(t, serverRes.err)
	assert.Equal(t, Established, clientRes.c.State())
	assert.Equal(t, Established, serverRes.c.State())
}

func TestEstablishTCPOnlyRejectsIncompatibleMajorVersion(t *testing.T) {
	clientConn, serverConn := pipePair()

	type result struct {
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		_, err := EstablishTCPOnly(clientConn, Config{Major: 7, Minor: 35})
		clientCh <- result{err}
	}()
	go func() {
		_, err := EstablishTCPOnly(serverConn, Config{Major: 8, Minor: 0})
		serverCh <- result{err}
	}()

	clientRes := <-clientCh
	serverRes := <-serverCh
	require.ErrorIs(t, clientRes.err, ErrIncompatibleVersion)
	require.ErrorIs(t, serverRes.err, ErrIncompatibleVersion)
}

func TestEstablishTCPOnlyPreannouncesRegisteredNames(t *testing.T) {
	clientConn, serverConn := pipePair()

	cfg := Config{PreregisteredSenders: []string{"Tracker0"}, PreregisteredTypes: []string{"vrpn_Tracker Pos_Quat"}}

	type result struct {
		c   *Connection
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		c, err := EstablishTCPOnly(clientConn, cfg)
		clientCh <- result{c, err}
	}()
	go func() {
		c, err := EstablishTCPOnly(serverConn, Config{})
		serverCh <- result{c, err}
	}()

	clientRes := <-clientCh
	serverRes := <-serverCh
	require.NoError(t, clientRes.err)
	require.NoError(t, serverRes.err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go serverRes.c.readLoop(ctx) //nolint:errcheck

	select {
	case b := <-clientRes.c.Endpoint().ReliableOutbound():
		msg, n, err := wire.DecodeMessage(b)
		require.NoError(t, err)
		assert.Equal(t, len(b), n)
		assert.True(t, msg.Type.IsSystem())
	case <-time.After(time.Second):
		t.Fatal("expected a pre-announced description message on the reliable queue")
	}
}

func TestCloseDrainsAndTransitionsToClosed(t *testing.T) {
	clientConn, serverConn := pipePair()

	clientCh := make(chan *Connection, 1)
	serverCh := make(chan *Connection, 1)
	go func() {
		c, err := EstablishTCPOnly(clientConn, Config{})
		require.NoError(t, err)
		clientCh <- c
	}()
	go func() {
		c, err := EstablishTCPOnly(serverConn, Config{})
		require.NoError(t, err)
		serverCh <- c
	}()
	client := <-clientCh
	_ = <-serverCh

	require.NoError(t, client.Close())
	client.drainAndClose()
	assert.Equal(t, Closed, client.State())
}

// TestEstablishUDPThenTCPHandshake exercises the client side of the UDP+TCP
// handshake end to end against a hand-rolled server stub: a real UDP socket
// reads the announcement datagram and dials the client back over real TCP,
// the way cmd/vrpnd's serveUDPAnnouncements/AcceptUDPThenTCP do in
// production.
func TestEstablishUDPThenTCPHandshake(t *testing.T) {
	serverUDP, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverUDP.Close() //nolint:errcheck

	clientListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer clientListener.Close() //nolint:errcheck
	clientTCPPort := clientListener.Addr().(*net.TCPAddr).Port

	type result struct {
		c   *Connection
		err error
	}
	serverCh := make(chan result, 1)
	go func() {
		buf := make([]byte, 64)
		n, _, err := serverUDP.ReadFromUDP(buf)
		if err != nil {
			serverCh <- result{err: err}
			return
		}
		announce, err := wire.DecodeUDPAnnounce(buf[:n])
		if err != nil {
			serverCh <- result{err: err}
			return
		}
		addr := &net.TCPAddr{IP: announce.ClientIP, Port: announce.ClientPort}
		tcpConn, err := net.Dial("tcp", addr.String())
		if err != nil {
			serverCh <- result{err: err}
			return
		}
		c, err := EstablishTCPOnly(tcpConn, Config{})
		serverCh <- result{c, err}
	}()

	clientConn, clientErr := EstablishUDPThenTCP(clientListener, serverUDP.LocalAddr().(*net.UDPAddr), clientTCPPort, Config{})
	require.NoError(t, clientErr)

	serverRes := <-serverCh
	require.NoError(t, serverRes.err)

	assert.Equal(t, Established, clientConn.State())
	assert.Equal(t, Established, serverRes.c.State())
}

func TestSendRejectsWhenNotEstablished(t *testing.T) {
	clientConn, _ := pipePair()
	c := newConnection(Config{}, clientConn)
	err := c.Send(context.Background(), 0, 0, nil, wire.ClassReliable)
	require.ErrorIs(t, err, ErrNotConnected)
}
