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

package series

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	codesGenerated prometheus.Counter
	batches        *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		codesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snap_codes_generated_total",
			Help: "claim codes registered on chain and recorded in the mirror",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snap_code_batches_total",
			Help: "code generation batches by result",
		}, []string{"result"}),
	}
	m.codesGenerated = register(reg, m.codesGenerated)
	m.batches = register(reg, m.batches)
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

func (m *metrics) batch(result string, count int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
	if result == "ok" {
		m.codesGenerated.Add(float64(count))
	}
}
