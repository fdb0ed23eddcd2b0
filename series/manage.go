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

package series

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/event"
	"github.com/blinklabs-io/snap/upload"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// SeriesInput describes a new series. BatchNumber identifies the physical
// production batch and is required but not stored on chain.
type SeriesInput struct {
	Artwork     upload.File
	Name        string
	Description string
	MaxSupply   uint64
	BatchNumber uint64
}

func (in SeriesInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return &ValidationError{Field: "name", Reason: "required"}
	case strings.TrimSpace(in.Description) == "":
		return &ValidationError{Field: "description", Reason: "required"}
	case in.MaxSupply == 0:
		return &ValidationError{Field: "maxSupply", Reason: "must be positive"}
	case in.BatchNumber == 0:
		return &ValidationError{Field: "batchNumber", Reason: "must be positive"}
	case len(in.Artwork.Data) == 0:
		return &ValidationError{Field: "artwork", Reason: "required"}
	}
	return nil
}

// Created is the result of CreateSeries
type Created struct {
	Event    *chain.SeriesCreatedEvent `json:"event"`
	ImageURI string                    `json:"imageURI"`
}

// CreateSeries uploads the artwork and mints the series. An upload failure
// aborts before anything is sent to the chain.
func (s *Service) CreateSeries(
	ctx context.Context,
	wallet *chain.Wallet,
	in SeriesInput,
) (*Created, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if s.chain == nil || s.uploader == nil {
		return nil, ErrNotConfigured
	}
	obj, err := s.uploader.Upload(ctx, in.Artwork, "series-artwork-"+in.Name)
	if err != nil {
		return nil, fmt.Errorf("upload series artwork: %w", err)
	}
	created, err := s.chain.MintSeries(
		ctx,
		wallet,
		in.Name,
		obj.URI,
		in.Description,
		in.MaxSupply,
	)
	if err != nil {
		return nil, &RejectedError{Operation: "mintSeries", Err: err}
	}
	s.logger.Info(
		"created series",
		"series_id", created.SeriesID,
		"name", created.SeriesName,
		"batch", in.BatchNumber,
		"tx_hash", created.TxHash.Hex(),
	)
	s.publish(event.SeriesCreatedEventType, event.SeriesCreatedEvent{
		BrandOwner: created.BrandOwner.Hex(),
		SeriesName: created.SeriesName,
		ImageURI:   obj.URI,
		TxHash:     created.TxHash.Hex(),
		SeriesID:   created.SeriesID,
		MaxSupply:  created.MaxSupply,
	})
	return &Created{Event: created, ImageURI: obj.URI}, nil
}

// Detail is the combined view of a series. Codes is only filled in for the
// series owner.
type Detail struct {
	Series   *chain.Series      `json:"series"`
	Claimers []common.Address   `json:"claimers"`
	Codes    []models.ClaimLink `json:"codes,omitempty"`
	IsOwner  bool               `json:"isOwner"`
}

// Detail fetches a series, its claimers and its codes concurrently. viewer
// is the address of the caller and may be empty.
func (s *Service) Detail(
	ctx context.Context,
	seriesID uint64,
	viewer string,
) (*Detail, error) {
	if s.chain == nil || s.store == nil {
		return nil, ErrNotConfigured
	}
	ret := &Detail{}
	var codes []models.ClaimLink
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		series, err := s.chain.ReadSeries(gctx, seriesID)
		if err != nil {
			return err
		}
		ret.Series = series
		return nil
	})
	g.Go(func() error {
		claimers, err := s.chain.SeriesClaimers(gctx, seriesID)
		if err != nil {
			return fmt.Errorf("read series claimers: %w", err)
		}
		ret.Claimers = claimers
		return nil
	})
	g.Go(func() error {
		var err error
		codes, err = s.store.GetClaimLinksBySeries(seriesID, nil)
		if err != nil {
			return fmt.Errorf("list claim codes: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ret.IsOwner = viewer != "" &&
		strings.EqualFold(ret.Series.BrandOwner.Hex(), viewer)
	if ret.IsOwner {
		ret.Codes = codes
	}
	return ret, nil
}

// ToggleStatus flips the active flag of a series and returns the new state
func (s *Service) ToggleStatus(
	ctx context.Context,
	wallet *chain.Wallet,
	seriesID uint64,
) (*chain.Series, error) {
	if s.chain == nil {
		return nil, ErrNotConfigured
	}
	tx, err := s.chain.ToggleSeriesStatus(ctx, wallet, seriesID)
	if err != nil {
		return nil, &RejectedError{
			Operation: "toggleSeriesStatus",
			SeriesID:  seriesID,
			Err:       err,
		}
	}
	series, err := s.chain.ReadSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("read series after toggle: %w", err)
	}
	s.publish(event.SeriesToggledEventType, event.SeriesToggledEvent{
		TxHash:   tx.TxHash.Hex(),
		SeriesID: seriesID,
		IsActive: series.IsActive,
	})
	return series, nil
}

type Stats struct {
	TotalSeries     uint64 `json:"totalSeries"`
	TotalNFTsMinted uint64 `json:"totalNFTsMinted"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if s.chain == nil {
		return nil, ErrNotConfigured
	}
	ret := &Stats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ret.TotalSeries, err = s.chain.TotalSeries(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ret.TotalNFTsMinted, err = s.chain.TotalNFTsMinted(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}

type Token struct {
	ID    string         `json:"id"`
	URI   string         `json:"uri"`
	Owner common.Address `json:"owner"`
}

// Token returns the metadata URI and current owner of a minted token
func (s *Service) Token(ctx context.Context, tokenID *big.Int) (*Token, error) {
	if s.chain == nil {
		return nil, ErrNotConfigured
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, &ValidationError{Field: "tokenId", Reason: "must be a non-negative integer"}
	}
	ret := &Token{ID: tokenID.String()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ret.URI, err = s.chain.TokenURI(gctx, tokenID)
		return err
	})
	g.Go(func() error {
		var err error
		ret.Owner, err = s.chain.OwnerOf(gctx, tokenID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Balance returns the number of series NFTs held by owner
func (s *Service) Balance(ctx context.Context, owner common.Address) (uint64, error) {
	if s.chain == nil {
		return 0, ErrNotConfigured
	}
	return s.chain.BalanceOf(ctx, owner)
}

// BrandSeries returns the series created by a brand
func (s *Service) BrandSeries(
	ctx context.Context,
	brand common.Address,
) ([]*chain.Series, error) {
	if s.chain == nil {
		return nil, ErrNotConfigured
	}
	ids, err := s.chain.BrandSeries(ctx, brand)
	if err != nil {
		return nil, err
	}
	ret := make([]*chain.Series, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			series, err := s.chain.ReadSeries(gctx, id)
			if err != nil {
				return err
			}
			ret[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}
