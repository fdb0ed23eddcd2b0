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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/blinklabs-io/snap/brand"
	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/blinklabs-io/snap/series"
	"github.com/blinklabs-io/snap/upload"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes bounds multipart bodies. The upload gateway applies the
// per-file limit.
const maxUploadBytes = 8 << 20

type generateCodesRequest struct {
	Count int `json:"count"`
}

type codesResponse struct {
	Codes any `json:"codes"`
}

func (h *handler) getClaim(w http.ResponseWriter, r *http.Request) {
	res, err := h.claims.ResolveClaimState(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.logger.Error(
			"failed to resolve claim code",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) getSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := h.seriesID(w, r)
	if !ok {
		return
	}
	detail, err := h.series.Detail(r.Context(), id, r.URL.Query().Get("viewer"))
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handler) listCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.seriesID(w, r)
	if !ok {
		return
	}
	codes, err := h.series.Codes(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, codesResponse{Codes: codes})
}

func (h *handler) generateCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.seriesID(w, r)
	if !ok {
		return
	}
	var req generateCodesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	codes, err := h.series.GenerateCodes(r.Context(), h.wallet, id, req.Count)
	if err != nil {
		var persistErr *series.PersistenceError
		if errors.As(err, &persistErr) {
			// Registered on chain but not recorded; hand the codes back so
			// they aren't lost
			h.logger.Error(
				"claim codes registered but not recorded",
				"series_id", id,
				"codes", persistErr.Codes,
				"error", err,
			)
			writeDomainError(w, r, err, codesResponse{Codes: persistErr.Codes})
			return
		}
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, codesResponse{Codes: codes})
}

func (h *handler) createSeries(w http.ResponseWriter, r *http.Request) {
	artwork, ok := h.multipartFile(w, r, "artwork")
	if !ok {
		return
	}
	maxSupply, err := formUint(r, "maxSupply")
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	batchNumber, err := formUint(r, "batchNumber")
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	created, err := h.series.CreateSeries(r.Context(), h.wallet, series.SeriesInput{
		Artwork:     artwork,
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		MaxSupply:   maxSupply,
		BatchNumber: batchNumber,
	})
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) toggleSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := h.seriesID(w, r)
	if !ok {
		return
	}
	s, err := h.series.ToggleStatus(r.Context(), h.wallet, id)
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.series.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) getToken(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := new(big.Int).SetString(chi.URLParam(r, "id"), 10)
	if !ok || tokenID.Sign() < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid token id")
		return
	}
	token, err := h.series.Token(r.Context(), tokenID)
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *handler) listBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.brands.All(r.Context())
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"brands": brands})
}

func (h *handler) getBrand(w http.ResponseWriter, r *http.Request) {
	addr, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	b, err := h.brands.Get(r.Context(), addr)
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) getBrandFee(w http.ResponseWriter, r *http.Request) {
	fee, err := h.brands.Fee(r.Context())
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fee": fee.String()})
}

func (h *handler) registerBrand(w http.ResponseWriter, r *http.Request) {
	logo, ok := h.multipartFile(w, r, "logo")
	if !ok {
		return
	}
	ev, err := h.brands.Register(r.Context(), h.wallet, brand.BrandInput{
		Logo:        logo,
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	})
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *handler) getObject(w http.ResponseWriter, r *http.Request) {
	cid := strings.ToLower(chi.URLParam(r, "cid"))
	if !blob.ValidContentID(cid) {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid content id")
		return
	}
	obj, err := h.objects.GetObject(r.Context(), cid)
	if err != nil {
		writeDomainError(w, r, err, nil)
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	// Content addressed, so the body never changes
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", `"`+cid+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

func (h *handler) seriesID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid series id")
		return 0, false
	}
	return id, true
}

// multipartFile parses the multipart body and reads the named file part
func (h *handler) multipartFile(
	w http.ResponseWriter,
	r *http.Request,
	field string,
) (upload.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid multipart payload")
		return upload.File{}, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", field+" is required")
		return upload.File{}, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "failed to read "+field)
		return upload.File{}, false
	}
	return upload.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

func formUint(r *http.Request, field string) (uint64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, &series.ValidationError{Field: field, Reason: "required"}
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &series.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("not a positive integer: %q", raw),
		}
	}
	return v, nil
}
