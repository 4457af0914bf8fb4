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
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/vrpn/vrpn-go/wire"
)

// StaticConfig is the set of options fixed at process start, set by flags.
type StaticConfig struct {
	MonitoringAddr string
	LogLevel       string
	ConfigFile     string
}

// DynamicConfig is the set of options that shape a Connection, read from an
// optional YAML file over built-in defaults, mirroring the static/dynamic
// split the daemons in this ecosystem use for their config. The file is
// read once when serve or dial starts; it is not reloaded while running.
type DynamicConfig struct {
	Major, Minor         int
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	DrainTimeout         time.Duration `yaml:"drain_timeout"`
	PreregisteredTypes   []string      `yaml:"preregistered_types"`
	PreregisteredSenders []string      `yaml:"preregistered_senders"`
}

// Config is the full daemon configuration.
type Config struct {
	StaticConfig
	DynamicConfig
}

func defaultDynamicConfig() DynamicConfig {
	return DynamicConfig{
		Major:            wire.DefaultMajorVersion,
		Minor:            wire.DefaultMinorVersion,
		HandshakeTimeout: 30 * time.Second,
		DrainTimeout:     5 * time.Second,
	}
}

// ReadDynamicConfig loads the reloadable portion of the config from a YAML
// file, starting from the built-in defaults so a partial file only
// overrides what it mentions.
func ReadDynamicConfig(path string) (*DynamicConfig, error) {
	dc := defaultDynamicConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &dc); err != nil {
		return nil, err
	}
	return &dc, nil
}
