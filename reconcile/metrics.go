// Copyright 2026 Blink Labs Software
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

package reconcile

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess          = "success"
	outcomeRejected         = "rejected"
	outcomePersistenceError = "persistence_error"
	outcomeUnconfirmed      = "unconfirmed"

	sourceResolve = "resolve"
	sourceSweep   = "sweep"
)

type metrics struct {
	resolutions *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	repairs     *prometheus.CounterVec
	swept       prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snap_claim_resolutions_total",
				Help: "claim code resolutions by resulting state",
			},
			[]string{"state"},
		),
		redemptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snap_claim_redemptions_total",
				Help: "claim redemptions by outcome",
			},
			[]string{"outcome"},
		),
		repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snap_reconcile_repairs_total",
				Help: "mirror rows repaired from chain state by source",
			},
			[]string{"source"},
		),
		swept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "snap_reconcile_sweep_checked_total",
				Help: "unclaimed rows checked against the chain by the sweeper",
			},
		),
	}
	m.resolutions = register(reg, m.resolutions)
	m.redemptions = register(reg, m.redemptions)
	m.repairs = register(reg, m.repairs)
	m.swept = register(reg, m.swept)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) resolved(state ClaimState) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(state.String()).Inc()
}

func (m *metrics) redeemed(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

func (m *metrics) repaired(source string) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(source).Inc()
}

func (m *metrics) checked() {
	if m == nil {
		return
	}
	m.swept.Inc()
}
