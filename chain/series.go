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
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

const seriesContractName = "ProductSeriesNFT"

// SeriesContract is the gateway to the ProductSeriesNFT contract
type SeriesContract struct {
	*boundContract
	tokenURIs *lru.Cache
	reads     singleflight.Group
}

func NewSeriesContract(
	backend Backend,
	address common.Address,
	opts ...ContractOptionFunc,
) (*SeriesContract, error) {
	o := newContractOptions(opts)
	c := &SeriesContract{
		boundContract: newBoundContract(
			seriesContractName,
			ProductSeriesNFTABI,
			backend,
			address,
			o,
		),
	}
	if o.tokenCacheSize > 0 {
		cache, err := lru.New(o.tokenCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create token cache: %w", err)
		}
		c.tokenURIs = cache
	}
	return c, nil
}

// sharedRead runs fn once for concurrent readers of the same key. The shared
// call does not inherit any one caller's cancellation, but each caller still
// returns when its own context ends.
func (c *SeriesContract) sharedRead(
	ctx context.Context,
	key string,
	fn func(context.Context) (any, error),
) (any, error) {
	ch := c.reads.DoChan(key, func() (any, error) {
		callCtx := context.WithoutCancel(ctx)
		if c.waitTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, c.waitTimeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReadSeries returns the series record. Ids the contract rejects, or that
// have no brand owner, return ErrSeriesNotFound.
func (c *SeriesContract) ReadSeries(
	ctx context.Context,
	seriesID uint64,
) (*Series, error) {
	key := "series:" + strconv.FormatUint(seriesID, 10)
	v, err := c.sharedRead(ctx, key, func(ctx context.Context) (any, error) {
		out, err := c.call(ctx, "readSeries", new(big.Int).SetUint64(seriesID))
		if err != nil {
			if IsRevert(err) {
				return nil, fmt.Errorf("series %d: %w", seriesID, ErrSeriesNotFound)
			}
			return nil, err
		}
		if len(out) == 0 {
			return nil, errors.New("readSeries: empty result")
		}
		raw := abi.ConvertType(out[0], new(rawSeries)).(*rawSeries)
		if raw.BrandOwner == (common.Address{}) {
			return nil, fmt.Errorf("series %d: %w", seriesID, ErrSeriesNotFound)
		}
		return raw.toSeries(seriesID)
	})
	if err != nil {
		return nil, err
	}
	// Callers get their own copy of the shared result
	ret := *(v.(*Series))
	return &ret, nil
}

// CheckClaimLink returns the contract's record of a claim code
func (c *SeriesContract) CheckClaimLink(
	ctx context.Context,
	code string,
) (*ClaimLink, error) {
	v, err := c.sharedRead(ctx, "claim:"+code, func(ctx context.Context) (any, error) {
		out, err := c.call(ctx, "checkClaimLink", code)
		if err != nil {
			return nil, err
		}
		seriesID, err := outUint64(out, 0, "seriesId")
		if err != nil {
			return nil, err
		}
		isClaimed, err := outValue[bool](out, 1)
		if err != nil {
			return nil, err
		}
		claimedBy, err := outValue[common.Address](out, 2)
		if err != nil {
			return nil, err
		}
		claimedAt, err := outValue[*big.Int](out, 3)
		if err != nil {
			return nil, err
		}
		return &ClaimLink{
			SeriesID:  seriesID,
			IsClaimed: isClaimed,
			ClaimedBy: claimedBy,
			ClaimedAt: unixTime(claimedAt),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	ret := *(v.(*ClaimLink))
	return &ret, nil
}

// BrandSeries returns the ids of the series created by a brand
func (c *SeriesContract) BrandSeries(
	ctx context.Context,
	brand common.Address,
) ([]uint64, error) {
	out, err := c.call(ctx, "getBrandSeries", brand)
	if err != nil {
		return nil, err
	}
	ids, err := outValue[[]*big.Int](out, 0)
	if err != nil {
		return nil, err
	}
	ret := make([]uint64, 0, len(ids))
	for _, id := range ids {
		v, err := toUint64("seriesId", id)
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	return ret, nil
}

// SeriesClaimers returns the addresses that claimed an NFT of the series
func (c *SeriesContract) SeriesClaimers(
	ctx context.Context,
	seriesID uint64,
) ([]common.Address, error) {
	out, err := c.call(ctx, "getSeriesClaimers", new(big.Int).SetUint64(seriesID))
	if err != nil {
		return nil, err
	}
	return outValue[[]common.Address](out, 0)
}

func (c *SeriesContract) TotalSeries(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "totalSeries")
	if err != nil {
		return 0, err
	}
	return outUint64(out, 0, "totalSeries")
}

func (c *SeriesContract) TotalNFTsMinted(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "totalNFTsMinted")
	if err != nil {
		return 0, err
	}
	return outUint64(out, 0, "totalNFTsMinted")
}

// TokenURI returns the metadata URI of a token. Token URIs don't change
// once minted, so they are cached.
func (c *SeriesContract) TokenURI(
	ctx context.Context,
	tokenID *big.Int,
) (string, error) {
	key := tokenID.String()
	if c.tokenURIs != nil {
		if v, ok := c.tokenURIs.Get(key); ok {
			return v.(string), nil
		}
	}
	out, err := c.call(ctx, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	uri, err := outValue[string](out, 0)
	if err != nil {
		return "", err
	}
	if c.tokenURIs != nil {
		c.tokenURIs.Add(key, uri)
	}
	return uri, nil
}

func (c *SeriesContract) OwnerOf(
	ctx context.Context,
	tokenID *big.Int,
) (common.Address, error) {
	out, err := c.call(ctx, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return outValue[common.Address](out, 0)
}

func (c *SeriesContract) BalanceOf(
	ctx context.Context,
	owner common.Address,
) (uint64, error) {
	out, err := c.call(ctx, "balanceOf", owner)
	if err != nil {
		return 0, err
	}
	return outUint64(out, 0, "balance")
}

// MintSeries creates a series owned by the wallet's brand
func (c *SeriesContract) MintSeries(
	ctx context.Context,
	wallet *Wallet,
	name string,
	imageURI string,
	description string,
	maxSupply uint64,
) (*SeriesCreatedEvent, error) {
	receipt, err := c.transact(
		ctx,
		wallet,
		nil,
		"mintSeries",
		name,
		imageURI,
		description,
		new(big.Int).SetUint64(maxSupply),
	)
	if err != nil {
		return nil, err
	}
	var raw rawSeriesCreated
	if err := c.decodeEvent(receipt, "SeriesCreated", &raw); err != nil {
		return nil, err
	}
	ret := &SeriesCreatedEvent{
		TxResult:   txResult(receipt),
		BrandOwner: raw.BrandOwner,
		SeriesName: raw.SeriesName,
	}
	if ret.SeriesID, err = toUint64("seriesId", raw.SeriesId); err != nil {
		return nil, err
	}
	if ret.MaxSupply, err = toUint64("maxSupply", raw.MaxSupply); err != nil {
		return nil, err
	}
	return ret, nil
}

// GenerateClaimLinks registers claim codes for a series. Only the series
// owner may do this; the contract reverts otherwise.
func (c *SeriesContract) GenerateClaimLinks(
	ctx context.Context,
	wallet *Wallet,
	seriesID uint64,
	codes []string,
) (*TxResult, error) {
	receipt, err := c.transact(
		ctx,
		wallet,
		nil,
		"generateClaimLinks",
		new(big.Int).SetUint64(seriesID),
		codes,
	)
	if err != nil {
		return nil, err
	}
	ret := txResult(receipt)
	return &ret, nil
}

// ClaimNFT redeems a claim code and returns the decoded NFTClaimed event
func (c *SeriesContract) ClaimNFT(
	ctx context.Context,
	wallet *Wallet,
	code string,
) (*NFTClaimedEvent, error) {
	receipt, err := c.transact(ctx, wallet, nil, "claimNFT", code)
	if err != nil {
		return nil, err
	}
	var raw rawNFTClaimed
	if err := c.decodeEvent(receipt, "NFTClaimed", &raw); err != nil {
		return nil, c.eventDecodeError(receipt, "NFTClaimed", err)
	}
	seriesID, err := toUint64("seriesId", raw.SeriesId)
	if err != nil {
		return nil, c.eventDecodeError(receipt, "NFTClaimed", err)
	}
	return &NFTClaimedEvent{
		TxResult:  txResult(receipt),
		TokenID:   raw.TokenId,
		SeriesID:  seriesID,
		Claimer:   raw.Claimer,
		ClaimCode: raw.ClaimCode,
	}, nil
}

func (c *SeriesContract) eventDecodeError(
	receipt *types.Receipt,
	event string,
	err error,
) error {
	return &EventDecodeError{
		Err:      err,
		Contract: c.name,
		Event:    event,
		TxHash:   receipt.TxHash,
	}
}

func (c *SeriesContract) ToggleSeriesStatus(
	ctx context.Context,
	wallet *Wallet,
	seriesID uint64,
) (*TxResult, error) {
	receipt, err := c.transact(
		ctx,
		wallet,
		nil,
		"toggleSeriesStatus",
		new(big.Int).SetUint64(seriesID),
	)
	if err != nil {
		return nil, err
	}
	ret := txResult(receipt)
	return &ret, nil
}
