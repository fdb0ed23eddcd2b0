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
	"log/slog"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultWaitTimeout    = 2 * time.Minute
	DefaultTokenCacheSize = 4096
)

type contractOptions struct {
	logger         *slog.Logger
	promRegistry   prometheus.Registerer
	chainID        *big.Int
	waitTimeout    time.Duration
	tokenCacheSize int
}

type ContractOptionFunc func(*contractOptions)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ContractOptionFunc {
	return func(o *contractOptions) {
		o.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) ContractOptionFunc {
	return func(o *contractOptions) {
		o.promRegistry = registry
	}
}

// WithChainID sets the chain id used when signing. It is queried from the
// backend on first use when not set.
func WithChainID(chainID uint64) ContractOptionFunc {
	return func(o *contractOptions) {
		o.chainID = new(big.Int).SetUint64(chainID)
	}
}

// WithWaitTimeout bounds how long a write waits for its receipt
func WithWaitTimeout(timeout time.Duration) ContractOptionFunc {
	return func(o *contractOptions) {
		o.waitTimeout = timeout
	}
}

// WithTokenCacheSize sets the number of token URIs kept in memory
func WithTokenCacheSize(size int) ContractOptionFunc {
	return func(o *contractOptions) {
		o.tokenCacheSize = size
	}
}

func newContractOptions(opts []ContractOptionFunc) *contractOptions {
	o := &contractOptions{
		waitTimeout:    DefaultWaitTimeout,
		tokenCacheSize: DefaultTokenCacheSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
