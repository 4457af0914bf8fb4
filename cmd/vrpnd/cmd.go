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
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is vrpnd's entry point: serve runs a server that accepts both
// TCP-only and UDP+TCP clients, dial connects out to one.
var RootCmd = &cobra.Command{
	Use:   "vrpnd",
	Short: "sample VRPN server and client driver",
}

var cfg Config

func init() {
	RootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "loglevel", "info", "log level: debug, info, warning, error")
	RootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "path to a YAML dynamic config")
	RootCmd.PersistentFlags().StringVar(&cfg.MonitoringAddr, "monitoringaddr", ":8888", "host:port to serve /metrics on")
}

// Execute is vrpnd's main entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func setLogLevel() {
	switch cfg.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", cfg.LogLevel)
	}
}

func loadDynamicConfig() {
	cfg.DynamicConfig = defaultDynamicConfig()
	if cfg.ConfigFile == "" {
		return
	}
	dc, err := ReadDynamicConfig(cfg.ConfigFile)
	if err != nil {
		log.Fatal(err)
	}
	cfg.DynamicConfig = *dc
}
