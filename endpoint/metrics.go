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

package endpoint

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the counters an Endpoint updates as it runs. Spec §5 and §7
// call for dropped/undrained messages to be "counted"; Metrics is how that
// becomes observable instead of silent, the same way ptp4u/stats exposes a
// prometheus.Registry for its daemons.
type Metrics struct {
	DroppedMessages       prometheus.Counter
	QueueOverflows        prometheus.Counter
	TranslationConflicts  prometheus.Counter
	HandshakeFailures     prometheus.Counter
}

// NewMetrics registers a fresh set of counters against reg and returns them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrpn_dropped_messages_total",
			Help: "Messages dropped due to codec errors or undrained shutdown.",
		}),
		QueueOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrpn_queue_overflow_total",
			Help: "Outbound sends that failed because a class-of-service queue was full.",
		}),
		TranslationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrpn_translation_conflicts_total",
			Help: "Description messages that conflicted with an existing remote-id mapping.",
		}),
		HandshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrpn_handshake_failures_total",
			Help: "Connections that failed cookie exchange or timed out during handshake.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.DroppedMessages, m.QueueOverflows, m.TranslationConflicts, m.HandshakeFailures)
	}
	return m
}

// NewUnregisteredMetrics returns Metrics not attached to any registry, for
// tests and for callers that don't want a global /metrics surface.
func NewUnregisteredMetrics() *Metrics {
	return NewMetrics(nil)
}
