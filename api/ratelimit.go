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

package api

import (
	"net"
	"net/http"
	"sync"
)

// ipLimiter caps the number of in-flight requests per client address
type ipLimiter struct {
	mu       sync.Mutex
	inFlight map[string]int
	limit    int
}

func newIPLimiter(limit int) *ipLimiter {
	return &ipLimiter{
		inFlight: make(map[string]int),
		limit:    limit,
	}
}

// ipKeyFromRemoteAddr extracts a limiter key from a request's RemoteAddr.
// IPv4 addresses key on the bare IP. IPv6 addresses key on the /64 prefix
// so that a client rotating within one subnet counts as one source.
// Addresses without a host and port, such as unix sockets, return an
// empty key and are exempt.
func ipKeyFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return ""
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ""
	}
	if ip4 := ip.To4(); ip4 != nil {
		return ip4.String()
	}
	return ip.Mask(net.CIDRMask(64, 128)).String() + "/64"
}

func (l *ipLimiter) acquire(key string) bool {
	if key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[key] >= l.limit {
		return false
	}
	l.inFlight[key]++
	return true
}

func (l *ipLimiter) release(key string) {
	if key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight[key]--
	if l.inFlight[key] <= 0 {
		delete(l.inFlight, key)
	}
}

func (l *ipLimiter) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[key]
}

// rateLimitMiddleware rejects requests from clients that already have limit
// requests in flight. A limit of zero disables it.
func rateLimitMiddleware(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newIPLimiter(limit)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ipKeyFromRemoteAddr(r.RemoteAddr)
			if !limiter.acquire(key) {
				w.Header().Set("Retry-After", "1")
				writeError(
					w,
					r,
					http.StatusTooManyRequests,
					"rate_limited",
					"too many concurrent requests",
				)
				return
			}
			defer limiter.release(key)
			next.ServeHTTP(w, r)
		})
	}
}
