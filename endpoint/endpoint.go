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

// Package endpoint implements the per-connection message pump: it owns the
// local type/sender registries, the remote-to-local translation tables, the
// outbound queues per class of service, and the handler table, and
// demultiplexes incoming GenericMessages to registered handlers (spec §4.6).
//
// An Endpoint never touches a socket. Package conn reads bytes off a
// transport and passes them to Receive, which decodes them; it drains ReliableOutbound/LowLatencyOutbound
// and writes their bytes to the TCP/UDP handles it owns.
package endpoint

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/vrpn/vrpn-go/registry"
	"github.com/vrpn/vrpn-go/wire"
)

// DefaultQueueDepth is the default bounded depth of each class-of-service
// outbound queue.
const DefaultQueueDepth = 256

// Config configures an Endpoint's outbound queues and error reporting.
type Config struct {
	// ReliableQueueDepth bounds the TCP-bound outbound queue.
	ReliableQueueDepth int
	// LowLatencyQueueDepth bounds the UDP-bound outbound queue.
	LowLatencyQueueDepth int
	// ErrorSink receives application handler errors; it never closes the
	// connection (spec §7: "Application handlers' errors are reported to
	// a connection-wide error sink but do not close the connection").
	ErrorSink func(err error)
	// Metrics receives dropped-message/overflow/conflict counters. If nil,
	// an unregistered Metrics is created so counting never panics.
	Metrics *Metrics
	// OnUDPDescription is invoked when the peer announces a UDP endpoint
	// via a UDP_DESCRIPTION system message (spec §4.4 step 4). Package
	// conn uses it to open the actual UDP send path; the dispatcher itself
	// never touches a socket.
	OnUDPDescription func(host net.IP, port int)
}

// Endpoint is the per-connection actor described in spec §3 and §4.6.
type Endpoint struct {
	cfg Config

	types   *registry.TypeRegistry
	senders *registry.SenderRegistry

	typeXlat   registry.TypeTranslationTable
	senderXlat registry.SenderTranslationTable

	mu       sync.Mutex
	handlers map[wire.TypeID][]handlerEntry

	announcedTypes   map[wire.TypeID]bool
	announcedSenders map[wire.SenderID]bool

	reliable   chan []byte
	lowLatency chan []byte

	udpUp atomic.Bool
	seq   atomic.Uint32

	metrics *Metrics
}

// New builds an empty Endpoint. The caller pre-registers any names it
// intends to use (see RegisterLocalType/RegisterLocalSender) before the
// connection reaches DescriptionSync.
func New(cfg Config) *Endpoint {
	if cfg.ReliableQueueDepth <= 0 {
		cfg.ReliableQueueDepth = DefaultQueueDepth
	}
	if cfg.LowLatencyQueueDepth <= 0 {
		cfg.LowLatencyQueueDepth = DefaultQueueDepth
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewUnregisteredMetrics()
	}
	return &Endpoint{
		cfg:              cfg,
		types:            registry.NewTypeRegistry(),
		senders:          registry.NewSenderRegistry(),
		handlers:         make(map[wire.TypeID][]handlerEntry),
		announcedTypes:   make(map[wire.TypeID]bool),
		announcedSenders: make(map[wire.SenderID]bool),
		reliable:         make(chan []byte, cfg.ReliableQueueDepth),
		lowLatency:       make(chan []byte, cfg.LowLatencyQueueDepth),
		metrics:          cfg.Metrics,
	}
}

// Metrics returns the counters backing this endpoint, for callers (package
// conn) that need to record events the dispatcher itself has no visibility
// into, such as handshake failures.
func (e *Endpoint) Metrics() *Metrics { return e.metrics }

// RegisterLocalType registers name in this endpoint's local type namespace,
// as package conn does at birth for every pre-registered name. It does not
// by itself notify the peer; that happens in AnnounceAll or the first time
// the id is used in Send.
func (e *Endpoint) RegisterLocalType(name string) wire.TypeID {
	return e.types.Register(name)
}

// RegisterLocalSender registers name in this endpoint's local sender
// namespace. See RegisterLocalType.
func (e *Endpoint) RegisterLocalSender(name string) wire.SenderID {
	return e.senders.Register(name)
}

// SetUDPUp records whether a UDP send path has been established for this
// connection (spec §4.4 step 4). Send consults this to decide whether
// LowLatency traffic actually goes over UDP or falls back to TCP.
func (e *Endpoint) SetUDPUp(up bool) {
	e.udpUp.Store(up)
}

// UDPUp reports whether SetUDPUp(true) has been called, i.e. whether this
// side can currently push LowLatency traffic over UDP.
func (e *Endpoint) UDPUp() bool {
	return e.udpUp.Load()
}

// AnnounceUDPEndpoint enqueues a UDP_DESCRIPTION system message telling the
// peer that host:port is the endpoint this side accepts low-latency UDP
// traffic on (spec §4.4 step 4: "the client may send a UDP_DESCRIPTION
// framed message announcing the UDP endpoint on which it accepts
// low-latency traffic; the server creates a UDP send path to that
// endpoint"). Like SENDER_DESCRIPTION and TYPE_DESCRIPTION, UDP_DESCRIPTION
// is a reserved system type with no registered name, so this bypasses the
// name-registry bookkeeping announceSender/announceType do and goes
// straight to the reliable queue. Package conn calls this once it has
// opened a local UDP socket to receive on.
func (e *Endpoint) AnnounceUDPEndpoint(ctx context.Context, host net.IP, port int) error {
	body, err := (&wire.UDPDescription{Host: host}).MarshalBinary()
	if err != nil {
		return err
	}
	desc := &wire.GenericMessage{Sender: wire.SenderID(port), Type: wire.TypeUDPDescription, Body: body}
	return e.enqueueReliable(ctx, desc)
}

// AddHandler registers handler for messages of the local type typeID. If
// sender is nil, the handler matches any sender; handlers registered for a
// type are invoked in registration order, exact-sender handlers and
// wildcard handlers both included (spec §4.6 receive path).
func (e *Endpoint) AddHandler(typeID wire.TypeID, sender *wire.SenderID, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := handlerEntry{handler: handler}
	if sender == nil {
		entry.anySender = true
	} else {
		entry.sender = *sender
	}
	e.handlers[typeID] = append(e.handlers[typeID], entry)
}

// ReliableOutbound is the queue of encoded messages bound for the TCP
// transport. Package conn drains it.
func (e *Endpoint) ReliableOutbound() <-chan []byte { return e.reliable }

// LowLatencyOutbound is the queue of encoded messages bound for the UDP
// transport. Package conn drains it.
func (e *Endpoint) LowLatencyOutbound() <-chan []byte { return e.lowLatency }

// Send encodes and enqueues a message using this endpoint's local
// typeID/senderID. If the peer has not yet been told about either id, a
// description message is enqueued on the reliable queue first, ahead of the
// data message, preserving the ordering guarantee in spec §4.6.
//
// Reliable sends (and LowLatency sends before the UDP path is up) suspend
// the caller, respecting ctx, until there is room in the queue: this is the
// TCP backpressure path, and it blocks only the caller of Send, never the
// receive path (spec §5). LowLatency sends once the UDP path is up are
// non-blocking and lossy: a full queue drops the message immediately.
func (e *Endpoint) Send(ctx context.Context, typeID wire.TypeID, senderID wire.SenderID, body []byte, class wire.ClassOfService) error {
	if err := e.announceIfNeeded(ctx, typeID, senderID); err != nil {
		return err
	}

	msg := &wire.GenericMessage{Sender: senderID, Type: typeID, Body: body, Class: class}
	encoded := wire.EncodeMessage(msg, e.seq.Add(1), true)

	useUDP := class.LowLatency() && e.udpUp.Load() && !class.Reliable()
	if useUDP {
		select {
		case e.lowLatency <- encoded:
			return nil
		default:
			e.metrics.QueueOverflows.Inc()
			return fmt.Errorf("%w: low-latency queue full", ErrQueueOverflow)
		}
	}

	select {
	case e.reliable <- encoded:
		return nil
	case <-ctx.Done():
		e.metrics.QueueOverflows.Inc()
		return fmt.Errorf("%w: reliable queue full: %v", ErrQueueOverflow, ctx.Err())
	}
}

// AnnounceAll proactively enqueues a description message for every local
// type and sender registered so far that has not yet been announced to the
// peer. Package conn calls this once at DescriptionSync, so that names
// pre-registered at birth go out up front rather than lazily on first use
// (spec §4.5: "each side emits SENDER_DESCRIPTION and TYPE_DESCRIPTION
// messages for every name pre-registered at birth").
func (e *Endpoint) AnnounceAll(ctx context.Context) error {
	for id := wire.SenderID(0); int(id) < e.senders.Len(); id++ {
		if err := e.announceSender(ctx, id); err != nil {
			return err
		}
	}
	for id := wire.TypeID(0); int(id) < e.types.Len(); id++ {
		if err := e.announceType(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *Endpoint) announceIfNeeded(ctx context.Context, typeID wire.TypeID, senderID wire.SenderID) error {
	e.mu.Lock()
	needType := !e.announcedTypes[typeID]
	needSender := !e.announcedSenders[senderID]
	e.mu.Unlock()

	if needSender {
		if err := e.announceSender(ctx, senderID); err != nil {
			return err
		}
	}
	if needType {
		if err := e.announceType(ctx, typeID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Endpoint) announceSender(ctx context.Context, senderID wire.SenderID) error {
	e.mu.Lock()
	already := e.announcedSenders[senderID]
	e.mu.Unlock()
	if already {
		return nil
	}

	name, ok := e.senders.ByID(senderID)
	if !ok {
		return fmt.Errorf("endpoint: sender id %d was never registered locally", senderID)
	}
	body, err := (&wire.SenderDescription{Name: []byte(name)}).MarshalBinary()
	if err != nil {
		return err
	}
	desc := &wire.GenericMessage{Sender: senderID, Type: wire.TypeSenderDescription, Body: body}
	if err := e.enqueueReliable(ctx, desc); err != nil {
		return err
	}
	e.mu.Lock()
	e.announcedSenders[senderID] = true
	e.mu.Unlock()
	return nil
}

func (e *Endpoint) announceType(ctx context.Context, typeID wire.TypeID) error {
	e.mu.Lock()
	already := e.announcedTypes[typeID]
	e.mu.Unlock()
	if already {
		return nil
	}

	name, ok := e.types.ByID(typeID)
	if !ok {
		return fmt.Errorf("endpoint: type id %d was never registered locally", typeID)
	}
	body, err := (&wire.TypeDescription{Name: []byte(name)}).MarshalBinary()
	if err != nil {
		return err
	}
	desc := &wire.GenericMessage{Sender: wire.SenderID(typeID), Type: wire.TypeTypeDescription, Body: body}
	if err := e.enqueueReliable(ctx, desc); err != nil {
		return err
	}
	e.mu.Lock()
	e.announcedTypes[typeID] = true
	e.mu.Unlock()
	return nil
}

func (e *Endpoint) enqueueReliable(ctx context.Context, msg *wire.GenericMessage) error {
	encoded := wire.EncodeMessage(msg, e.seq.Add(1), true)
	select {
	case e.reliable <- encoded:
		return nil
	case <-ctx.Done():
		e.metrics.QueueOverflows.Inc()
		return fmt.Errorf("%w: reliable queue full while sending description: %v", ErrQueueOverflow, ctx.Err())
	}
}

// DrainDeadline attempts a best-effort final flush, per spec §5's bounded
// shutdown drain: it passes each message left on the reliable queue to write
// until that queue is empty or ctx is done, and reports how many
// queued-but-undrained messages it gave up on. The low-latency queue is not
// written; whatever is left on it is counted as dropped. Package conn calls
// this from Closing with a deadline context.
func (e *Endpoint) DrainDeadline(ctx context.Context, write func([]byte) error) (dropped int) {
	for {
		select {
		case b, ok := <-e.reliable:
			if !ok {
				return dropped
			}
			if err := write(b); err != nil {
				log.WithError(err).Warn("endpoint: drain write failed")
			}
		case <-ctx.Done():
			dropped += len(e.reliable) + len(e.lowLatency)
			e.metrics.DroppedMessages.Add(float64(dropped))
			return dropped
		default:
			dropped += len(e.lowLatency)
			e.metrics.DroppedMessages.Add(float64(dropped))
			return dropped
		}
	}
}

// Receive decodes every complete GenericMessage in data, dispatches each,
// and returns any trailing partial bytes the caller should prepend to its
// next transport read (spec §4.3: "restartable across reads by preserving
// any trailing partial bytes").
func (e *Endpoint) Receive(data []byte) (trailing []byte, err error) {
	msgs, trailing, err := wire.DecodeAll(data)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		e.dispatch(m)
	}
	return trailing, nil
}

func (e *Endpoint) dispatch(msg *wire.GenericMessage) {
	if msg.Type.IsSystem() {
		if err := e.handleSystemMessage(msg); err != nil {
			log.WithError(err).WithField("type", msg.Type).Warn("endpoint: dropping malformed system message")
			e.metrics.DroppedMessages.Inc()
		}
		return
	}

	localType, ok := e.typeXlat.Translate(msg.Type)
	if !ok {
		e.reportError(fmt.Errorf("%w: remote type %d", ErrUnknownRemoteId, msg.Type))
		e.metrics.DroppedMessages.Inc()
		return
	}
	localSender, ok := e.senderXlat.Translate(msg.Sender)
	if !ok {
		e.reportError(fmt.Errorf("%w: remote sender %d", ErrUnknownRemoteId, msg.Sender))
		e.metrics.DroppedMessages.Inc()
		return
	}

	translated := &wire.GenericMessage{
		Timestamp: msg.Timestamp,
		Sender:    localSender,
		Type:      localType,
		Body:      msg.Body,
		Class:     msg.Class,
	}

	e.mu.Lock()
	entries := append([]handlerEntry(nil), e.handlers[localType]...)
	e.mu.Unlock()

	for _, entry := range entries {
		if entry.anySender || entry.sender == localSender {
			if err := entry.handler.Invoke(translated); err != nil {
				e.reportError(fmt.Errorf("handler for type %d: %w", localType, err))
			}
		}
	}
}

func (e *Endpoint) reportError(err error) {
	if e.cfg.ErrorSink != nil {
		e.cfg.ErrorSink(err)
		return
	}
	log.WithError(err).Warn("endpoint: unhandled dispatch error")
}

// handleSystemMessage implements spec §4.6's four reserved system messages.
func (e *Endpoint) handleSystemMessage(msg *wire.GenericMessage) error {
	switch msg.Type {
	case wire.TypeSenderDescription:
		var d wire.SenderDescription
		if err := d.UnmarshalBinary(msg.Body); err != nil {
			return err
		}
		local := e.senders.Register(string(d.Name))
		remote := msg.Sender
		if err := e.senderXlat.Insert(remote, local); err != nil {
			e.metrics.TranslationConflicts.Inc()
			return err
		}
		return nil

	case wire.TypeTypeDescription:
		var d wire.TypeDescription
		if err := d.UnmarshalBinary(msg.Body); err != nil {
			return err
		}
		local := e.types.Register(string(d.Name))
		remote := wire.TypeID(msg.Sender) // header's sender slot is repurposed
		if err := e.typeXlat.Insert(remote, local); err != nil {
			e.metrics.TranslationConflicts.Inc()
			return err
		}
		return nil

	case wire.TypeUDPDescription:
		var d wire.UDPDescription
		if err := d.UnmarshalBinary(msg.Body); err != nil {
			return err
		}
		// port travels in msg.Sender as a u16-in-i32; the actual socket
		// setup is package conn's job, not the dispatcher's.
		port := int(int32(msg.Sender))
		log.WithField("host", d.Host).WithField("port", port).
			Debug("endpoint: peer announced UDP endpoint")
		if e.cfg.OnUDPDescription != nil {
			e.cfg.OnUDPDescription(d.Host, port)
		}
		return nil

	case wire.TypeLogDescription:
		var d wire.LogDescription
		if err := d.UnmarshalBinary(msg.Body); err != nil {
			return err
		}
		log.WithField("in", string(d.InName)).WithField("out", string(d.OutName)).
			WithField("mode", wire.LoggingMode(msg.Sender)).
			Debug("endpoint: peer announced log description")
		return nil

	default:
		return fmt.Errorf("endpoint: unrecognized system type %d", msg.Type)
	}
}
