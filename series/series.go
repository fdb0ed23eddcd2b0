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

// Package series manages product series: creation with uploaded artwork,
// claim code generation, status changes and read views that combine the
// series contract with the claim_links mirror.
package series

import (
	"context"
	"io"
	"log/slog"
	"math/big"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database"
	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/event"
	"github.com/blinklabs-io/snap/upload"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultMaxCodesPerBatch = 500

// Chain is the subset of the series contract used here
type Chain interface {
	ReadSeries(ctx context.Context, seriesID uint64) (*chain.Series, error)
	SeriesClaimers(ctx context.Context, seriesID uint64) ([]common.Address, error)
	BrandSeries(ctx context.Context, brand common.Address) ([]uint64, error)
	TotalSeries(ctx context.Context) (uint64, error)
	TotalNFTsMinted(ctx context.Context) (uint64, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	BalanceOf(ctx context.Context, owner common.Address) (uint64, error)
	MintSeries(
		ctx context.Context,
		wallet *chain.Wallet,
		name string,
		imageURI string,
		description string,
		maxSupply uint64,
	) (*chain.SeriesCreatedEvent, error)
	GenerateClaimLinks(
		ctx context.Context,
		wallet *chain.Wallet,
		seriesID uint64,
		codes []string,
	) (*chain.TxResult, error)
	ToggleSeriesStatus(
		ctx context.Context,
		wallet *chain.Wallet,
		seriesID uint64,
	) (*chain.TxResult, error)
}

// CodeStore is the subset of the database used here
type CodeStore interface {
	Transaction() *database.Txn
	GetClaimLinksBySeries(seriesId uint64, txn *database.Txn) ([]models.ClaimLink, error)
	CountClaimLinksBySeries(seriesId uint64, txn *database.Txn) (uint64, error)
	AddClaimLinks(links []models.ClaimLink, txn *database.Txn) error
}

// Uploader stores series artwork
type Uploader interface {
	Upload(ctx context.Context, file upload.File, name string) (*upload.Object, error)
}

type Service struct {
	chain            Chain
	store            CodeStore
	uploader         Uploader
	locker           Locker
	logger           *slog.Logger
	eventBus         *event.EventBus
	metrics          *metrics
	maxCodesPerBatch int
}

type ServiceOptionFunc func(*Service)

func WithChain(c Chain) ServiceOptionFunc {
	return func(s *Service) {
		s.chain = c
	}
}

func WithDatabase(store CodeStore) ServiceOptionFunc {
	return func(s *Service) {
		s.store = store
	}
}

func WithUploader(u Uploader) ServiceOptionFunc {
	return func(s *Service) {
		s.uploader = u
	}
}

// WithLocker sets the per-series generation lock. The default is a
// LocalLocker.
func WithLocker(l Locker) ServiceOptionFunc {
	return func(s *Service) {
		s.locker = l
	}
}

func WithLogger(logger *slog.Logger) ServiceOptionFunc {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEventBus(eventBus *event.EventBus) ServiceOptionFunc {
	return func(s *Service) {
		s.eventBus = eventBus
	}
}

func WithPromRegistry(registry prometheus.Registerer) ServiceOptionFunc {
	return func(s *Service) {
		s.metrics = newMetrics(registry)
	}
}

func WithMaxCodesPerBatch(n int) ServiceOptionFunc {
	return func(s *Service) {
		s.maxCodesPerBatch = n
	}
}

func New(opts ...ServiceOptionFunc) *Service {
	s := &Service{
		maxCodesPerBatch: DefaultMaxCodesPerBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.maxCodesPerBatch <= 0 {
		s.maxCodesPerBatch = DefaultMaxCodesPerBatch
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "series")
	return s
}

func (s *Service) publish(eventType event.EventType, data any) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
