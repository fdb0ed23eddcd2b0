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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeySubject   ctxKey = "subject"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(
			w,
			r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)),
		)
	})
}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

func subjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeySubject).(string); ok {
		return s
	}
	return ""
}

func recoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error(
						fmt.Sprintf("panic serving %s %s: %v", r.Method, r.URL.Path, rec),
						"request_id", requestIDFromContext(r.Context()),
						"stack", string(debug.Stack()),
					)
					writeError(
						w,
						r,
						http.StatusInternalServerError,
						"internal_error",
						"internal server error",
					)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug(
				fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", requestIDFromContext(r.Context()),
			)
		})
	}
}

// authMiddleware requires a valid bearer token. Requests pass through
// unchecked when no authenticator is configured.
func authMiddleware(auth *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if auth == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			claims, err := auth.Validate(token)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", ErrUnauthorized.Error())
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeySubject, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
