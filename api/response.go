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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blinklabs-io/snap/brand"
	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database"
	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/blinklabs-io/snap/reconcile"
	"github.com/blinklabs-io/snap/series"
	"github.com/blinklabs-io/snap/upload"
)

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
	// Data carries a partial result alongside the error, for example the
	// rejected redemption
	Data any `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: apiError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFromContext(r.Context()),
		},
	})
}

// writeDomainError maps err onto a status and writes it. data is included
// in the body when not nil.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, data any) {
	status, code, message := mapDomainError(err)
	writeJSON(w, status, errorResponse{
		Error: apiError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFromContext(r.Context()),
		},
		Data: data,
	})
}

func mapDomainError(err error) (int, string, string) {
	var (
		seriesValidation *series.ValidationError
		brandValidation  *brand.ValidationError
		uploadValidation *upload.ValidationError
		seriesRejected   *series.RejectedError
		brandRejected    *brand.RejectedError
		uploadErr        *upload.Error
		txFailed         *chain.TxFailedError
	)
	switch {
	case errors.As(err, &seriesValidation),
		errors.As(err, &brandValidation),
		errors.As(err, &uploadValidation),
		errors.Is(err, chain.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, chain.ErrSeriesNotFound),
		errors.Is(err, chain.ErrBrandNotFound),
		errors.Is(err, blob.ErrObjectNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.As(err, &seriesRejected),
		errors.As(err, &brandRejected),
		errors.As(err, &txFailed):
		return http.StatusUnprocessableEntity, "rejected", err.Error()
	case errors.As(err, &uploadErr):
		return http.StatusBadGateway, "upload_failed", err.Error()
	case errors.Is(err, reconcile.ErrNotConfigured),
		errors.Is(err, series.ErrNotConfigured),
		errors.Is(err, brand.ErrNotConfigured),
		errors.Is(err, database.ErrNoBlobStore):
		return http.StatusServiceUnavailable, "unavailable", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "request timed out"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
