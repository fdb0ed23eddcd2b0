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

package event

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	publishedTotal *prometheus.CounterVec
	subscriberGauge *prometheus.GaugeVec
	deliveryErrors *prometheus.CounterVec
}

func (e *EventBus) initMetrics(promRegistry prometheus.Registerer) {
	m := &eventMetrics{
		publishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snap_event_published_total",
				Help: "total events published by type",
			},
			[]string{"type"},
		),
		subscriberGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snap_event_subscribers",
				Help: "current subscribers by type and kind",
			},
			[]string{"type", "kind"},
		),
		deliveryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snap_event_delivery_errors_total",
				Help: "failed or dropped event deliveries by type and kind",
			},
			[]string{"type", "kind"},
		),
	}
	m.publishedTotal = registerCollector(promRegistry, m.publishedTotal)
	m.subscriberGauge = registerCollector(promRegistry, m.subscriberGauge)
	m.deliveryErrors = registerCollector(promRegistry, m.deliveryErrors)
	e.metrics = m
}

// registerCollector returns the already registered collector when another
// bus in the process registered it first
func registerCollector[T prometheus.Collector](
	reg prometheus.Registerer,
	c T,
) T {
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

func (m *eventMetrics) published(eventType EventType) {
	if m == nil {
		return
	}
	m.publishedTotal.WithLabelValues(string(eventType)).Inc()
}

func (m *eventMetrics) subscriberAdded(eventType EventType, sub Subscriber) {
	if m == nil {
		return
	}
	m.subscriberGauge.WithLabelValues(
		string(eventType),
		subscriberKind(sub),
	).Inc()
}

func (m *eventMetrics) subscriberRemoved(eventType EventType, sub Subscriber) {
	if m == nil {
		return
	}
	m.subscriberGauge.WithLabelValues(
		string(eventType),
		subscriberKind(sub),
	).Dec()
}

func (m *eventMetrics) deliveryFailed(eventType EventType, kind string) {
	if m == nil {
		return
	}
	m.deliveryErrors.WithLabelValues(string(eventType), kind).Inc()
}

func (m *eventMetrics) reset() {
	if m == nil {
		return
	}
	m.subscriberGauge.Reset()
}
