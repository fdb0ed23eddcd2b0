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
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// BaseSepoliaChainID is the chain the SNAP contracts are deployed on
	BaseSepoliaChainID = 84532

	DefaultRPCURL                = "https://sepolia.base.org"
	DefaultSeriesContractAddress = "0xc438befff53f1a49c4a078842258ac80f93ea90c"
	DefaultBrandRegistryAddress  = "0x0ad5446e9cb34250d5ba369a9f232137099d334d"
)

// Series is a product series as recorded by the series contract
type Series struct {
	ID          uint64         `json:"id"`
	SeriesName  string         `json:"seriesName"`
	ImageURI    string         `json:"imageURI"`
	Description string         `json:"description"`
	MaxSupply   uint64         `json:"maxSupply"`
	Minted      uint64         `json:"minted"`
	Claimed     uint64         `json:"claimed"`
	BrandOwner  common.Address `json:"brandOwner"`
	CreatedAt   time.Time      `json:"createdAt"`
	IsActive    bool           `json:"isActive"`
}

// ClaimLink is the contract's view of a claim code
type ClaimLink struct {
	SeriesID  uint64         `json:"seriesId"`
	IsClaimed bool           `json:"isClaimed"`
	ClaimedBy common.Address `json:"claimedBy"`
	ClaimedAt time.Time      `json:"claimedAt"`
}

// Brand is a registered brand
type Brand struct {
	Address      common.Address `json:"address"`
	BrandName    string         `json:"brandName"`
	LogoURI      string         `json:"logoURI"`
	Description  string         `json:"description"`
	RegisteredAt time.Time      `json:"registeredAt"`
	IsVerified   bool           `json:"isVerified"`
}

// TxResult identifies a mined transaction
type TxResult struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	GasUsed     uint64      `json:"gasUsed"`
}

type SeriesCreatedEvent struct {
	TxResult
	SeriesID   uint64         `json:"seriesId"`
	BrandOwner common.Address `json:"brandOwner"`
	SeriesName string         `json:"seriesName"`
	MaxSupply  uint64         `json:"maxSupply"`
}

type NFTClaimedEvent struct {
	TxResult
	TokenID   *big.Int       `json:"tokenId"`
	SeriesID  uint64         `json:"seriesId"`
	Claimer   common.Address `json:"claimer"`
	ClaimCode string         `json:"claimCode"`
}

type BrandRegisteredEvent struct {
	TxResult
	BrandAddress common.Address `json:"brandAddress"`
	BrandName    string         `json:"brandName"`
	LogoURI      string         `json:"logoURI"`
	Description  string         `json:"description"`
	Fee          *big.Int       `json:"fee"`
	Timestamp    time.Time      `json:"timestamp"`
}

type RegistrationFeeUpdatedEvent struct {
	TxResult
	OldFee *big.Int `json:"oldFee"`
	NewFee *big.Int `json:"newFee"`
}

// The raw* types mirror the ABI so that the abi package can fill them by
// field name

type rawSeries struct {
	SeriesName  string
	ImageURI    string
	Description string
	MaxSupply   *big.Int
	Minted      *big.Int
	Claimed     *big.Int
	BrandOwner  common.Address
	CreatedAt   *big.Int
	IsActive    bool
}

type rawBrand struct {
	BrandName    string
	LogoURI      string
	Description  string
	RegisteredAt *big.Int
	IsVerified   bool
}

type rawSeriesCreated struct {
	SeriesId   *big.Int
	BrandOwner common.Address
	SeriesName string
	MaxSupply  *big.Int
}

type rawNFTClaimed struct {
	TokenId   *big.Int
	SeriesId  *big.Int
	Claimer   common.Address
	ClaimCode string
}

type rawBrandRegistered struct {
	BrandAddress common.Address
	BrandName    string
	LogoURI      string
	Description  string
	Fee          *big.Int
	Timestamp    *big.Int
}

type rawRegistrationFeeUpdated struct {
	OldFee *big.Int
	NewFee *big.Int
}

func toUint64(field string, v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s: %w: %s", field, ErrValueOverflow, v.String())
	}
	return v.Uint64(), nil
}

// unixTime converts a block timestamp. Zero stays the zero time.
func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 || !v.IsInt64() {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}

func (r *rawSeries) toSeries(id uint64) (*Series, error) {
	ret := &Series{
		ID:          id,
		SeriesName:  r.SeriesName,
		ImageURI:    r.ImageURI,
		Description: r.Description,
		BrandOwner:  r.BrandOwner,
		CreatedAt:   unixTime(r.CreatedAt),
		IsActive:    r.IsActive,
	}
	var err error
	if ret.MaxSupply, err = toUint64("maxSupply", r.MaxSupply); err != nil {
		return nil, err
	}
	if ret.Minted, err = toUint64("minted", r.Minted); err != nil {
		return nil, err
	}
	if ret.Claimed, err = toUint64("claimed", r.Claimed); err != nil {
		return nil, err
	}
	return ret, nil
}

func (r *rawBrand) toBrand(addr common.Address) *Brand {
	return &Brand{
		Address:      addr,
		BrandName:    r.BrandName,
		LogoURI:      r.LogoURI,
		Description:  r.Description,
		RegisteredAt: unixTime(r.RegisteredAt),
		IsVerified:   r.IsVerified,
	}
}
