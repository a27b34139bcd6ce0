// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability exposes the bridge's prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the bridge's instrument set. A nil *Metrics is valid and
// records nothing, so callers never guard their observations.
type Metrics struct {
	ToolCalls       *prometheus.CounterVec
	CallbacksSeen   *prometheus.CounterVec
	AutoPasses      prometheus.Counter
	ResponseRetries prometheus.Counter
	StallNudges     prometheus.Counter
	AutoMana        *prometheus.CounterVec
	PendingAge      prometheus.Histogram
}

// New registers the bridge metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magebridge_tool_calls_total",
			Help: "Tool calls by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		CallbacksSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magebridge_callbacks_total",
			Help: "Engine callbacks by kind.",
		}, []string{"kind"}),
		AutoPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "magebridge_auto_passes_total",
			Help: "Priority passes the bridge sent on its own.",
		}),
		ResponseRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "magebridge_response_retries_total",
			Help: "Lost-response retries emitted.",
		}),
		StallNudges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "magebridge_stall_nudges_total",
			Help: "Speculative passes sent after a quiet period.",
		}),
		AutoMana: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magebridge_auto_mana_total",
			Help: "AutoMana resolutions by outcome (tap, pool, plan, cancel, decline).",
		}, []string{"outcome"}),
		PendingAge: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "magebridge_pending_age_seconds",
			Help:    "Age of the pending action when it is resolved.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	reg.MustRegister(
		m.ToolCalls, m.CallbacksSeen, m.AutoPasses,
		m.ResponseRetries, m.StallNudges, m.AutoMana, m.PendingAge,
	)
	return m
}

// ObserveToolCall records one tool call outcome. Nil-safe.
func (m *Metrics) ObserveToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
}

// ObserveCallback records one callback arrival. Nil-safe.
func (m *Metrics) ObserveCallback(kind string) {
	if m == nil {
		return
	}
	m.CallbacksSeen.WithLabelValues(kind).Inc()
}

// IncAutoPass is nil-safe.
func (m *Metrics) IncAutoPass() {
	if m != nil {
		m.AutoPasses.Inc()
	}
}

// IncRetry is nil-safe.
func (m *Metrics) IncRetry() {
	if m != nil {
		m.ResponseRetries.Inc()
	}
}

// IncStallNudge is nil-safe.
func (m *Metrics) IncStallNudge() {
	if m != nil {
		m.StallNudges.Inc()
	}
}

// ObserveAutoMana is nil-safe.
func (m *Metrics) ObserveAutoMana(outcome string) {
	if m != nil {
		m.AutoMana.WithLabelValues(outcome).Inc()
	}
}

// ObservePendingAge is nil-safe.
func (m *Metrics) ObservePendingAge(seconds float64) {
	if m != nil {
		m.PendingAge.Observe(seconds)
	}
}
