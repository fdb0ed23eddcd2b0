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
	"log/slog"
	"math/big"
	"net/http"

	"github.com/blinklabs-io/snap/brand"
	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/blinklabs-io/snap/reconcile"
	"github.com/blinklabs-io/snap/series"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

// ClaimService resolves claim codes. Redemption mints to the signing wallet,
// so it is left to the claimant's own key and not served here.
type ClaimService interface {
	ResolveClaimState(ctx context.Context, code string) (*reconcile.ClaimResolution, error)
}

// SeriesService manages product series and their claim codes
type SeriesService interface {
	GenerateCodes(ctx context.Context, wallet *chain.Wallet, seriesID uint64, count int) ([]models.ClaimLink, error)
	Codes(ctx context.Context, seriesID uint64) ([]models.ClaimLink, error)
	CreateSeries(ctx context.Context, wallet *chain.Wallet, in series.SeriesInput) (*series.Created, error)
	Detail(ctx context.Context, seriesID uint64, viewer string) (*series.Detail, error)
	ToggleStatus(ctx context.Context, wallet *chain.Wallet, seriesID uint64) (*chain.Series, error)
	Stats(ctx context.Context) (*series.Stats, error)
	Token(ctx context.Context, tokenID *big.Int) (*series.Token, error)
}

// BrandService manages brand registrations
type BrandService interface {
	Register(ctx context.Context, wallet *chain.Wallet, in brand.BrandInput) (*chain.BrandRegisteredEvent, error)
	Get(ctx context.Context, addr common.Address) (*chain.Brand, error)
	All(ctx context.Context) ([]*chain.Brand, error)
	Fee(ctx context.Context) (*big.Int, error)
}

// ObjectReader serves objects kept in the local blob store
type ObjectReader interface {
	GetObject(ctx context.Context, contentID string) (*blob.Object, error)
}

type handler struct {
	logger  *slog.Logger
	claims  ClaimService
	series  SeriesService
	brands  BrandService
	objects ObjectReader
	wallet  *chain.Wallet
}

func newRouter(cfg Config) http.Handler {
	h := &handler{
		logger:  cfg.Logger,
		claims:  cfg.Claims,
		series:  cfg.Series,
		brands:  cfg.Brands,
		objects: cfg.Objects,
		wallet:  cfg.Wallet,
	}
	requireAuth := authMiddleware(cfg.Auth)
	writable := cfg.Wallet != nil

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(cfg.Logger))
	r.Use(loggingMiddleware(cfg.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware(cfg.MaxInFlightPerIP))
		if h.claims != nil {
			r.Get("/claims/{code}", h.getClaim)
		}
		if h.series != nil {
			r.Get("/stats", h.getStats)
			r.Get("/tokens/{id}", h.getToken)
			r.Route("/series", func(r chi.Router) {
				r.Get("/{id}", h.getSeries)
				r.Group(func(r chi.Router) {
					r.Use(requireAuth)
					r.Get("/{id}/codes", h.listCodes)
					if writable {
						r.Post("/", h.createSeries)
						r.Post("/{id}/codes", h.generateCodes)
						r.Post("/{id}/toggle", h.toggleSeries)
					}
				})
			})
		}
		if h.brands != nil {
			r.Route("/brands", func(r chi.Router) {
				r.Get("/", h.listBrands)
				r.Get("/fee", h.getBrandFee)
				r.Get("/{address}", h.getBrand)
				if writable {
					r.With(requireAuth).Post("/", h.registerBrand)
				}
			})
		}
		if h.objects != nil {
			r.Get("/objects/{cid}", h.getObject)
		}
	})
	return r
}
