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

package main

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vrpn/vrpn-go/conn"
	"github.com/vrpn/vrpn-go/endpoint"
)

var (
	serveListenAddr string
	serveLowLatency bool
)

func init() {
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", ":3883", "host:port to listen for TCP-only and UDP+TCP clients on")
	serveCmd.Flags().BoolVar(&serveLowLatency, "lowlatency", false, "open a local UDP socket per connection and announce it to the peer (spec §4.4 UDP_DESCRIPTION)")
	RootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "accept inbound VRPN connections",
	Run: func(_ *cobra.Command, _ []string) {
		setLogLevel()
		loadDynamicConfig()
		registry := prometheus.NewRegistry()
		go serveMetrics(registry)
		if err := serve(context.Background(), serveListenAddr, registry); err != nil {
			log.Fatal(err)
		}
	},
}

func serveMetrics(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	log.Infof("serving metrics on %s", cfg.MonitoringAddr)
	if err := http.ListenAndServe(cfg.MonitoringAddr, mux); err != nil {
		log.WithError(err).Error("metrics server exited")
	}
}

func connConfig(registry prometheus.Registerer) conn.Config {
	return conn.Config{
		Major:                cfg.Major,
		Minor:                cfg.Minor,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		DrainTimeout:         cfg.DrainTimeout,
		PreregisteredTypes:   cfg.PreregisteredTypes,
		PreregisteredSenders: cfg.PreregisteredSenders,
		Endpoint: endpoint.Config{
			Metrics: endpoint.NewMetrics(registry),
			ErrorSink: func(err error) {
				log.WithError(err).Warn("endpoint reported an error")
			},
		},
	}
}

// serve listens on addr for both direct TCP-only clients and UDP
// announcement datagrams from clients doing the UDP+TCP handshake (spec
// §4.4), handing each resulting Connection to its own Run goroutine.
func serve(ctx context.Context, addr string, registry *prometheus.Registry) error {
	tcpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer tcpListener.Close() //nolint:errcheck

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	udpSocket, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer udpSocket.Close() //nolint:errcheck

	go serveUDPAnnouncements(ctx, udpSocket, registry)

	log.Infof("listening for VRPN connections on %s", addr)
	for {
		tcpConn, err := tcpListener.Accept()
		if err != nil {
			return err
		}
		go runAccepted(ctx, func() (*conn.Connection, error) {
			return conn.EstablishTCPOnly(tcpConn, connConfig(registry))
		})
	}
}

func serveUDPAnnouncements(ctx context.Context, socket *net.UDPConn, registry *prometheus.Registry) {
	buf := make([]byte, 2048)
	for {
		n, _, err := socket.ReadFromUDP(buf)
		if err != nil {
			log.WithError(err).Error("udp announcement listener exited")
			return
		}
		datagram := append([]byte(nil), buf[:n]...)
		go runAccepted(ctx, func() (*conn.Connection, error) {
			return conn.AcceptUDPThenTCP(datagram, connConfig(registry))
		})
	}
}

func runAccepted(ctx context.Context, establish func() (*conn.Connection, error)) {
	c, err := establish()
	if err != nil {
		log.WithError(err).Warn("rejecting inbound connection")
		return
	}
	log.Info("accepted VRPN connection")
	if serveLowLatency {
		enableLowLatency(ctx, c)
	}
	if err := c.Run(ctx); err != nil {
		log.WithError(err).Warn("connection ended")
	}
}

// enableLowLatency opens this connection's local UDP receive socket and
// announces it to the peer, best-effort: a failure here only means the
// connection stays TCP-only, not that it should be torn down.
func enableLowLatency(ctx context.Context, c *conn.Connection) {
	tcpAddr, ok := c.LocalAddr().(*net.TCPAddr)
	if !ok {
		log.Warnf("cannot enable low-latency path: unexpected local address type %T", c.LocalAddr())
		return
	}
	if err := c.EnableLowLatency(ctx, tcpAddr.IP); err != nil {
		log.WithError(err).Warn("failed to enable low-latency UDP path")
	}
}
