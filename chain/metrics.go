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

package chain

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricNamePrefix = "snap_chain_"

	resultOK     = "ok"
	resultRevert = "revert"
	resultError  = "error"
)

type metrics struct {
	calls        *prometheus.CounterVec
	transactions *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "calls_total",
				Help: "Contract view calls by contract, method and result",
			},
			[]string{"contract", "method", "result"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "transactions_total",
				Help: "Contract transactions by contract, method and result",
			},
			[]string{"contract", "method", "result"},
		),
	}
	m.calls = registerCounterVec(reg, m.calls)
	m.transactions = registerCounterVec(reg, m.transactions)
	return m
}

// The series and brand contracts share a registry, so the second
// registration picks up the collector created by the first
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

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case IsRevert(err):
		return resultRevert
	default:
		return resultError
	}
}

func (m *metrics) observeCall(contract string, method string, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(contract, method, resultLabel(err)).Inc()
}

func (m *metrics) observeTransaction(contract string, method string, err error) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(contract, method, resultLabel(err)).Inc()
}
