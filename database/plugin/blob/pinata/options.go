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

package pinata

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BlobStorePinataOptionFunc func(*BlobStorePinata)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BlobStorePinataOptionFunc {
	return func(p *BlobStorePinata) {
		p.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStorePinataOptionFunc {
	return func(p *BlobStorePinata) {
		p.promRegistry = registry
	}
}

// WithJWT specifies the Pinata API JWT
func WithJWT(jwt string) BlobStorePinataOptionFunc {
	return func(p *BlobStorePinata) {
		p.jwt = jwt
	}
}

// WithAPIURL overrides the Pinata API base URL
func WithAPIURL(apiURL string) BlobStorePinataOptionFunc {
	return func(p *BlobStorePinata) {
		if apiURL != "" {
			p.apiURL = apiURL
		}
	}
}

// WithGatewayURL overrides the IPFS gateway used to build object URIs
func WithGatewayURL(gatewayURL string) BlobStorePinataOptionFunc {
	return func(p *BlobStorePinata) {
		if gatewayURL != "" {
			p.gatewayURL = gatewayURL
		}
	}
}

// WithTimeout specifies the HTTP client timeout
func WithTimeout(timeout time.Duration) BlobStorePinataOptionFunc {
	return func(p *BlobStorePinata) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithHTTPClient specifies the HTTP client to use
func WithHTTPClient(client *http.Client) BlobStorePinataOptionFunc {
	return func(p *BlobStorePinata) {
		p.httpClient = client
	}
}
