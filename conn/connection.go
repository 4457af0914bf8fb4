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
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vrpn/vrpn-go/endpoint"
	"github.com/vrpn/vrpn-go/wire"
)

// DefaultDrainTimeout is spec §5's default bounded outbound drain deadline.
const DefaultDrainTimeout = 5 * time.Second

// readBufferSize is the chunk size used for each TCP read; large enough to
// usually hold several framed messages.
const readBufferSize = 64 * 1024

// Connection drives one peer relationship through the state machine in
// spec §4.5. It owns the TCP transport unconditionally and, once the UDP
// path is established, the UDP send/receive handles as well -- exclusively,
// for the life of the connection, per spec §3 Endpoint invariant.
//
// A Connection is driven by a single logical task (Run): the only
// suspension points are transport reads/writes and the handshake deadline,
// per spec §5. Multiple Connections never share state.
type Connection struct {
	cfg Config
	ep  *endpoint.Endpoint

	tcp net.Conn

	udpMu     sync.Mutex
	udpSocket *net.UDPConn // outbound send path to the peer's announced endpoint
	udpRemote *net.UDPAddr
	udpRecv   *net.UDPConn // local socket we announced to the peer, if any

	stateMu sync.Mutex
	state   State

	closeOnce sync.Once
	closeCh   chan struct{}
}

// newConnection builds the shared scaffolding; callers finish the
// transport-specific handshake before returning it to the caller of
// EstablishTCPOnly/EstablishUDPThenTCP/AcceptUDPThenTCP.
func newConnection(cfg Config, tcp net.Conn) *Connection {
	cfg = cfg.withDefaults()
	c := &Connection{
		cfg:     cfg,
		tcp:     tcp,
		state:   Initial,
		closeCh: make(chan struct{}),
	}
	c.ep = endpoint.New(withUDPHook(cfg.Endpoint, c))
	for _, name := range cfg.PreregisteredTypes {
		c.ep.RegisterLocalType(name)
	}
	for _, name := range cfg.PreregisteredSenders {
		c.ep.RegisterLocalSender(name)
	}
	return c
}

func withUDPHook(ecfg endpoint.Config, c *Connection) endpoint.Config {
	prev := ecfg.OnUDPDescription
	ecfg.OnUDPDescription = func(host net.IP, port int) {
		if prev != nil {
			prev(host, port)
		}
		if err := c.openUDPSendPath(host, port); err != nil {
			log.WithError(err).Warn("conn: failed to open UDP send path")
		}
	}
	return ecfg
}

func (c *Connection) openUDPSendPath(host net.IP, port int) error {
	addr := &net.UDPAddr{IP: host, Port: port}
	sock, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("%w: dialing announced UDP endpoint: %w", ErrTransportIo, err)
	}
	c.udpMu.Lock()
	if c.udpSocket != nil {
		c.udpSocket.Close() //nolint:errcheck
	}
	c.udpSocket = sock
	c.udpRemote = addr
	c.udpMu.Unlock()
	c.ep.SetUDPUp(true)
	return nil
}

// EnableLowLatency opens a local UDP socket bound to host and announces it
// to the peer via a UDP_DESCRIPTION message (spec §4.4 step 4), so the peer
// can open its own send path back to us and push LowLatency traffic over
// UDP instead of falling back to TCP. It is the caller's job to know which
// local address is actually reachable by the peer; cmd/vrpnd passes the
// local IP of the connection's TCP transport (LocalAddr).
func (c *Connection) EnableLowLatency(ctx context.Context, host net.IP) error {
	sock, err := net.ListenUDP("udp", &net.UDPAddr{IP: host})
	if err != nil {
		return fmt.Errorf("%w: opening local UDP receive socket: %w", ErrTransportIo, err)
	}
	port := sock.LocalAddr().(*net.UDPAddr).Port

	c.udpMu.Lock()
	if c.udpRecv != nil {
		c.udpRecv.Close() //nolint:errcheck
	}
	c.udpRecv = sock
	c.udpMu.Unlock()

	go c.udpReceiveLoop(sock)

	return c.ep.AnnounceUDPEndpoint(ctx, host, port)
}

func (c *Connection) udpReceiveLoop(sock *net.UDPConn) {
	buf := make([]byte, 2048)
	for {
		n, _, err := sock.ReadFromUDP(buf)
		if err != nil {
			return // socket closed during teardown
		}
		if _, err := c.ep.Receive(append([]byte(nil), buf[:n]...)); err != nil {
			log.WithError(err).Warn("conn: dropping malformed low-latency datagram")
		}
	}
}

// Endpoint returns the dispatcher backing this connection, for registering
// handlers and sending application messages.
func (c *Connection) Endpoint() *endpoint.Endpoint { return c.ep }

// LocalAddr returns the address of the underlying TCP transport, for
// callers that need to pick a host to pass to EnableLowLatency.
func (c *Connection) LocalAddr() net.Addr { return c.tcp.LocalAddr() }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if err := c.state.transitionTo(s); err != nil {
		return err
	}
	c.state = s
	return nil
}

// EstablishTCPOnly drives the TCP-only handshake (spec §4.4) over an
// already-connected net.Conn (either side: a client's net.Dial result or a
// server's net.Listener.Accept result) and returns a Connection in
// Established state.
func EstablishTCPOnly(tcp net.Conn, cfg Config) (*Connection, error) {
	c := newConnection(cfg, tcp)
	if err := c.setState(CookieExchange); err != nil {
		return nil, err
	}

	peerCookie, err := exchangeCookies(tcp, c.cfg.cookie(), time.Now().Add(c.cfg.HandshakeTimeout))
	if err != nil {
		c.ep.Metrics().HandshakeFailures.Inc()
		c.forceClosed()
		return nil, err
	}
	if err := checkCompatible(c.cfg.cookie(), peerCookie); err != nil {
		c.ep.Metrics().HandshakeFailures.Inc()
		c.forceClosed()
		return nil, err
	}

	if err := c.advanceToEstablished(); err != nil {
		c.forceClosed()
		return nil, err
	}
	return c, nil
}

// EstablishUDPThenTCP implements the client side of the UDP+TCP handshake
// (spec §4.4): send the UDP announcement datagram to the server, then
// accept the server's resulting inbound TCP connection on listener and
// complete the cookie exchange over it.
func EstablishUDPThenTCP(listener net.Listener, serverUDPAddr *net.UDPAddr, clientTCPPort int, cfg Config) (*Connection, error) {
	localIP, err := outboundIPFor(serverUDPAddr)
	if err != nil {
		return nil, err
	}
	announce := wire.UDPAnnounce{ClientIP: localIP, ClientPort: clientTCPPort}
	payload, err := announce.Encode()
	if err != nil {
		return nil, err
	}
	udpConn, err := net.DialUDP("udp", nil, serverUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing server UDP port: %w", ErrTransportIo, err)
	}
	defer udpConn.Close() //nolint:errcheck
	if _, err := udpConn.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: sending UDP announcement: %w", ErrTransportIo, err)
	}

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan acceptResult, 1)
	go func() {
		tcpConn, err := listener.Accept()
		resultCh <- acceptResult{tcpConn, err}
	}()

	cfg = cfg.withDefaults()
	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("%w: accepting server callback: %w", ErrTransportIo, res.err)
		}
		return EstablishTCPOnly(res.conn, cfg)
	case <-time.After(cfg.HandshakeTimeout):
		return nil, fmt.Errorf("%w: waiting for server TCP callback", ErrHandshakeTimeout)
	}
}

// AcceptUDPThenTCP implements the server side of the UDP+TCP handshake
// (spec §4.4): parse one UDP announcement datagram, dial the client's TCP
// port, and complete the cookie exchange.
func AcceptUDPThenTCP(datagram []byte, cfg Config) (*Connection, error) {
	announce, err := wire.DecodeUDPAnnounce(datagram)
	if err != nil {
		return nil, err
	}
	addr := &net.TCPAddr{IP: announce.ClientIP, Port: announce.ClientPort}
	tcpConn, err := net.DialTimeout("tcp", addr.String(), cfg.withDefaults().HandshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing client back on %s: %w", ErrTransportIo, addr, err)
	}
	return EstablishTCPOnly(tcpConn, cfg)
}

// outboundIPFor picks the local IPv4 address the kernel would use to reach
// dst, the address a client announces to the server (spec §4.4 step 1).
func outboundIPFor(dst *net.UDPAddr) (net.IP, error) {
	probe, err := net.DialUDP("udp", nil, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: determining outbound address: %w", ErrTransportIo, err)
	}
	defer probe.Close() //nolint:errcheck
	local, ok := probe.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("conn: unexpected local address type %T", probe.LocalAddr())
	}
	return local.IP.To4(), nil
}

// advanceToEstablished performs DescriptionSync's proactive announcement of
// every pre-registered name, then moves straight to Established, matching
// spec §4.5's note that implementations conflate the two states.
func (c *Connection) advanceToEstablished() error {
	if err := c.setState(DescriptionSync); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	defer cancel()
	if err := c.ep.AnnounceAll(ctx); err != nil {
		return err
	}
	return c.setState(Established)
}

// Run drives the connection's single select-loop task until ctx is
// canceled or Close is called: one goroutine reads the TCP transport and
// feeds the dispatcher, one drains the reliable queue onto TCP, and (once
// the UDP path is up) one drains the low-latency queue onto UDP. All three
// share cancellation through errgroup, matching spec §9's "single
// select-loop task per endpoint."
func (c *Connection) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(ctx) })
	g.Go(func() error { return c.writeReliableLoop(ctx) })
	g.Go(func() error { return c.writeLowLatencyLoop(ctx) })

	go func() {
		select {
		case <-c.closeCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := g.Wait()
	c.drainAndClose()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Connection) readLoop(ctx context.Context) error {
	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := c.tcp.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			trailing, derr := c.ep.Receive(pending)
			if derr != nil {
				log.WithError(derr).Warn("conn: closing connection after framing error")
				return fmt.Errorf("%w: %w", ErrTransportIo, derr)
			}
			pending = trailing
		}
		if err != nil {
			if err == io.EOF {
				return ErrTransportClosed
			}
			return fmt.Errorf("%w: %w", ErrTransportIo, err)
		}
	}
}

func (c *Connection) writeReliableLoop(ctx context.Context) error {
	for {
		select {
		case b := <-c.ep.ReliableOutbound():
			if _, err := c.tcp.Write(b); err != nil {
				return fmt.Errorf("%w: writing reliable message: %w", ErrTransportIo, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) writeLowLatencyLoop(ctx context.Context) error {
	for {
		select {
		case b := <-c.ep.LowLatencyOutbound():
			c.udpMu.Lock()
			sock := c.udpSocket
			c.udpMu.Unlock()
			if sock == nil {
				continue // UDP path not up yet; Send already fell back to TCP for new messages
			}
			if _, err := sock.Write(b); err != nil {
				// UDP is lossy by design (spec §5): log and keep going, never close.
				log.WithError(err).Debug("conn: dropping low-latency write")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close initiates cooperative shutdown (spec §4.5 Closing): the outbound
// queue gets a bounded deadline to drain, then the transports are released
// and the state becomes Closed.
func (c *Connection) Close() error {
	c.transitionToClosing() //nolint:errcheck
	c.closeOnce.Do(func() { close(c.closeCh) })
	return nil
}

func (c *Connection) transitionToClosing() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == Closing || c.state == Closed {
		return nil
	}
	if err := c.state.transitionTo(Closing); err != nil {
		return err
	}
	c.state = Closing
	return nil
}

func (c *Connection) drainAndClose() {
	c.transitionToClosing() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DrainTimeout)
	defer cancel()
	c.ep.DrainDeadline(ctx, func(b []byte) error {
		_, err := c.tcp.Write(b)
		return err
	})

	c.tcp.Close() //nolint:errcheck
	c.udpMu.Lock()
	if c.udpSocket != nil {
		c.udpSocket.Close() //nolint:errcheck
	}
	if c.udpRecv != nil {
		c.udpRecv.Close() //nolint:errcheck
	}
	c.udpMu.Unlock()

	c.stateMu.Lock()
	c.state = Closed
	c.stateMu.Unlock()
}

func (c *Connection) forceClosed() {
	c.stateMu.Lock()
	c.state = Closed
	c.stateMu.Unlock()
	c.tcp.Close() //nolint:errcheck
}

// Send is a convenience wrapper over Endpoint().Send that rejects the call
// outright once the connection is not Established (spec §7 NotConnected).
func (c *Connection) Send(ctx context.Context, typeID wire.TypeID, senderID wire.SenderID, body []byte, class wire.ClassOfService) error {
	if c.State() != Established {
		return ErrNotConnected
	}
	return c.ep.Send(ctx, typeID, senderID, body, class)
}
