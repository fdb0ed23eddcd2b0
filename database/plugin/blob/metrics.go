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

package blob

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricNamePrefix = "snap_blob_"

// Metrics counts blob store operations. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	opsTotal   *prometheus.CounterVec
	bytesTotal *prometheus.CounterVec
	errorTotal *prometheus.CounterVec
}

var (
	metricsByRegistry      = map[prometheus.Registerer]*Metrics{}
	metricsByRegistryMutex sync.Mutex
)

// RegisterMetrics returns the blob metrics for a registry, registering them
// on first use. Several stores may share one registry.
func RegisterMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	metricsByRegistryMutex.Lock()
	defer metricsByRegistryMutex.Unlock()
	if m, ok := metricsByRegistry[reg]; ok {
		return m
	}
	m := &Metrics{
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "ops_total",
				Help: "Total number of blob store operations",
			},
			[]string{"store", "op"},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "bytes_total",
				Help: "Total bytes read/written by blob store operations",
			},
			[]string{"store", "op"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "errors_total",
				Help: "Total number of failed blob store operations",
			},
			[]string{"store", "op"},
		),
	}
	m.opsTotal = registerCounterVec(reg, m.opsTotal)
	m.bytesTotal = registerCounterVec(reg, m.bytesTotal)
	m.errorTotal = registerCounterVec(reg, m.errorTotal)
	metricsByRegistry[reg] = m
	return m
}

func registerCounterVec(
	reg prometheus.Registerer,
	c *prometheus.CounterVec,
) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

// Observe records one operation. Lookups that miss are not counted as errors.
func (m *Metrics) Observe(store string, op string, size int, err error) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(store, op).Inc()
	if err != nil {
		if !errors.Is(err, ErrObjectNotFound) {
			m.errorTotal.WithLabelValues(store, op).Inc()
		}
		return
	}
	m.bytesTotal.WithLabelValues(store, op).Add(float64(size))
}
