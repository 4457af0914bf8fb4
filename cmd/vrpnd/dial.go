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

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vrpn/vrpn-go/conn"
)

var (
	dialTarget string
	dialUDP    bool
)

func init() {
	dialCmd.Flags().StringVar(&dialTarget, "target", "", "host:port of the VRPN server to connect to")
	dialCmd.Flags().BoolVar(&dialUDP, "udp", false, "use the UDP+TCP handshake (spec §4.4) instead of connecting over TCP alone")
	dialCmd.MarkFlagRequired("target") //nolint:errcheck
	RootCmd.AddCommand(dialCmd)
}

var dialCmd = &cobra.Command{
	Use:   "dial",
	Short: "connect out to a VRPN server",
	Run: func(_ *cobra.Command, _ []string) {
		setLogLevel()
		loadDynamicConfig()
		registry := prometheus.NewRegistry()
		go serveMetrics(registry)
		run := dial
		if dialUDP {
			run = dialUDPThenTCP
		}
		if err := run(context.Background(), dialTarget, registry); err != nil {
			log.Fatal(err)
		}
	},
}

func dial(ctx context.Context, target string, registry *prometheus.Registry) error {
	tcpConn, err := net.Dial("tcp", target)
	if err != nil {
		return err
	}
	c, err := conn.EstablishTCPOnly(tcpConn, connConfig(registry))
	if err != nil {
		return err
	}
	log.Infof("connected to %s", target)
	return c.Run(ctx)
}

// dialUDPThenTCP implements the client side of the UDP+TCP handshake (spec
// §4.4 step 1): open a local TCP listener for the server's callback, send
// it a UDP announcement datagram, then wait for the server to dial back.
func dialUDPThenTCP(ctx context.Context, target string, registry *prometheus.Registry) error {
	serverUDPAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return err
	}
	defer listener.Close() //nolint:errcheck
	clientTCPPort := listener.Addr().(*net.TCPAddr).Port

	c, err := conn.EstablishUDPThenTCP(listener, serverUDPAddr, clientTCPPort, connConfig(registry))
	if err != nil {
		return err
	}
	log.Infof("connected to %s via UDP+TCP handshake", target)
	return c.Run(ctx)
}
