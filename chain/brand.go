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

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const brandRegistryName = "BrandRegistry"

// BrandRegistry is the gateway to the BrandRegistry contract
type BrandRegistry struct {
	*boundContract
}

func NewBrandRegistry(
	backend Backend,
	address common.Address,
	opts ...ContractOptionFunc,
) *BrandRegistry {
	return &BrandRegistry{
		boundContract: newBoundContract(
			brandRegistryName,
			BrandRegistryABI,
			backend,
			address,
			newContractOptions(opts),
		),
	}
}

// ReadBrand returns the brand registered at an address, or ErrBrandNotFound
func (r *BrandRegistry) ReadBrand(
	ctx context.Context,
	addr common.Address,
) (*Brand, error) {
	out, err := r.call(ctx, "readBrand", addr)
	if err != nil {
		if IsRevert(err) {
			return nil, fmt.Errorf("brand %s: %w", addr.Hex(), ErrBrandNotFound)
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("readBrand: empty result")
	}
	raw := abi.ConvertType(out[0], new(rawBrand)).(*rawBrand)
	if raw.RegisteredAt == nil || raw.RegisteredAt.Sign() == 0 {
		return nil, fmt.Errorf("brand %s: %w", addr.Hex(), ErrBrandNotFound)
	}
	return raw.toBrand(addr), nil
}

func (r *BrandRegistry) IsBrandRegistered(
	ctx context.Context,
	addr common.Address,
) (bool, error) {
	out, err := r.call(ctx, "isBrandRegistered", addr)
	if err != nil {
		return false, err
	}
	return outValue[bool](out, 0)
}

func (r *BrandRegistry) BrandName(
	ctx context.Context,
	addr common.Address,
) (string, error) {
	out, err := r.call(ctx, "getBrandName", addr)
	if err != nil {
		return "", err
	}
	return outValue[string](out, 0)
}

// AllBrands returns the addresses of every registered brand in
// registration order
func (r *BrandRegistry) AllBrands(ctx context.Context) ([]common.Address, error) {
	out, err := r.call(ctx, "getAllBrands")
	if err != nil {
		return nil, err
	}
	return outValue[[]common.Address](out, 0)
}

func (r *BrandRegistry) TotalBrandsRegistered(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, "totalBrandsRegistered")
	if err != nil {
		return 0, err
	}
	return outUint64(out, 0, "totalBrandsRegistered")
}

// RegistrationFee returns the fee in wei that mintBrand must carry
func (r *BrandRegistry) RegistrationFee(ctx context.Context) (*big.Int, error) {
	out, err := r.call(ctx, "getRegistrationFee")
	if err != nil {
		return nil, err
	}
	return outValue[*big.Int](out, 0)
}

func (r *BrandRegistry) Owner(ctx context.Context) (common.Address, error) {
	out, err := r.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return outValue[common.Address](out, 0)
}

// ContractBalance returns the collected fees in wei
func (r *BrandRegistry) ContractBalance(ctx context.Context) (*big.Int, error) {
	out, err := r.call(ctx, "contractBalance")
	if err != nil {
		return nil, err
	}
	return outValue[*big.Int](out, 0)
}

// MintBrand registers the wallet's address as a brand, paying fee
func (r *BrandRegistry) MintBrand(
	ctx context.Context,
	wallet *Wallet,
	name string,
	logoURI string,
	description string,
	fee *big.Int,
) (*BrandRegisteredEvent, error) {
	receipt, err := r.transact(
		ctx,
		wallet,
		fee,
		"mintBrand",
		name,
		logoURI,
		description,
	)
	if err != nil {
		return nil, err
	}
	var raw rawBrandRegistered
	if err := r.decodeEvent(receipt, "BrandRegistered", &raw); err != nil {
		return nil, err
	}
	return &BrandRegisteredEvent{
		TxResult:     txResult(receipt),
		BrandAddress: raw.BrandAddress,
		BrandName:    raw.BrandName,
		LogoURI:      raw.LogoURI,
		Description:  raw.Description,
		Fee:          raw.Fee,
		Timestamp:    unixTime(raw.Timestamp),
	}, nil
}

// UpdateRegistrationFee changes the fee. Owner only.
func (r *BrandRegistry) UpdateRegistrationFee(
	ctx context.Context,
	wallet *Wallet,
	fee *big.Int,
) (*RegistrationFeeUpdatedEvent, error) {
	receipt, err := r.transact(ctx, wallet, nil, "updateRegistrationFee", fee)
	if err != nil {
		return nil, err
	}
	var raw rawRegistrationFeeUpdated
	if err := r.decodeEvent(receipt, "RegistrationFeeUpdated", &raw); err != nil {
		return nil, err
	}
	return &RegistrationFeeUpdatedEvent{
		TxResult: txResult(receipt),
		OldFee:   raw.OldFee,
		NewFee:   raw.NewFee,
	}, nil
}

// Withdraw sends the collected fees to the owner. Owner only.
func (r *BrandRegistry) Withdraw(
	ctx context.Context,
	wallet *Wallet,
) (*TxResult, error) {
	receipt, err := r.transact(ctx, wallet, nil, "withdraw")
	if err != nil {
		return nil, err
	}
	ret := txResult(receipt)
	return &ret, nil
}

// TransferOwnership hands the registry to a new owner. Owner only.
func (r *BrandRegistry) TransferOwnership(
	ctx context.Context,
	wallet *Wallet,
	newOwner common.Address,
) (*TxResult, error) {
	if newOwner == (common.Address{}) {
		return nil, fmt.Errorf("new owner: %w: zero address", ErrInvalidAddress)
	}
	receipt, err := r.transact(ctx, wallet, nil, "transferOwnership", newOwner)
	if err != nil {
		return nil, err
	}
	ret := txResult(receipt)
	return &ret, nil
}
