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

// Package brand registers brands in the brand registry contract and serves
// brand reads and owner administration.
package brand

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/event"
	"github.com/blinklabs-io/snap/upload"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

const DefaultCacheSize = 1024

var ErrNotConfigured = errors.New("brand service is missing a dependency")

// ValidationError reports a caller input that was rejected before any
// external call was made
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RejectedError is returned when a registry transaction failed
type RejectedError struct {
	Err       error
	Operation string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Operation, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Registry is the subset of the brand registry contract used here
type Registry interface {
	ReadBrand(ctx context.Context, addr common.Address) (*chain.Brand, error)
	IsBrandRegistered(ctx context.Context, addr common.Address) (bool, error)
	AllBrands(ctx context.Context) ([]common.Address, error)
	TotalBrandsRegistered(ctx context.Context) (uint64, error)
	RegistrationFee(ctx context.Context) (*big.Int, error)
	Owner(ctx context.Context) (common.Address, error)
	ContractBalance(ctx context.Context) (*big.Int, error)
	MintBrand(
		ctx context.Context,
		wallet *chain.Wallet,
		name string,
		logoURI string,
		description string,
		fee *big.Int,
	) (*chain.BrandRegisteredEvent, error)
	UpdateRegistrationFee(
		ctx context.Context,
		wallet *chain.Wallet,
		fee *big.Int,
	) (*chain.RegistrationFeeUpdatedEvent, error)
	Withdraw(ctx context.Context, wallet *chain.Wallet) (*chain.TxResult, error)
	TransferOwnership(
		ctx context.Context,
		wallet *chain.Wallet,
		newOwner common.Address,
	) (*chain.TxResult, error)
}

// Uploader stores brand logos
type Uploader interface {
	Upload(ctx context.Context, file upload.File, name string) (*upload.Object, error)
}

type Service struct {
	registry Registry
	uploader Uploader
	logger   *slog.Logger
	eventBus *event.EventBus
	// brands caches registered brands by address
	brands    *lru.Cache
	cacheSize int
}

type ServiceOptionFunc func(*Service)

func WithRegistry(r Registry) ServiceOptionFunc {
	return func(s *Service) {
		s.registry = r
	}
}

func WithUploader(u Uploader) ServiceOptionFunc {
	return func(s *Service) {
		s.uploader = u
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

// WithCacheSize sets the number of brands kept in memory. Zero disables the
// cache.
func WithCacheSize(size int) ServiceOptionFunc {
	return func(s *Service) {
		s.cacheSize = size
	}
}

func New(opts ...ServiceOptionFunc) (*Service, error) {
	s := &Service{
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		cache, err := lru.New(s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create brand cache: %w", err)
		}
		s.brands = cache
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "brand")
	return s, nil
}

// BrandInput describes a brand to register
type BrandInput struct {
	Logo        upload.File
	Name        string
	Description string
}

func (in BrandInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return &ValidationError{Field: "name", Reason: "required"}
	case strings.TrimSpace(in.Description) == "":
		return &ValidationError{Field: "description", Reason: "required"}
	case len(in.Logo.Data) == 0:
		return &ValidationError{Field: "logo", Reason: "required"}
	}
	return nil
}

// Register uploads the logo and registers the wallet's address as a brand,
// paying the current registration fee. An upload failure aborts before
// anything is sent to the chain.
func (s *Service) Register(
	ctx context.Context,
	wallet *chain.Wallet,
	in BrandInput,
) (*chain.BrandRegisteredEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if s.registry == nil || s.uploader == nil {
		return nil, ErrNotConfigured
	}
	obj, err := s.uploader.Upload(ctx, in.Logo, "brand-logo-"+in.Name)
	if err != nil {
		return nil, fmt.Errorf("upload brand logo: %w", err)
	}
	fee, err := s.registry.RegistrationFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("read registration fee: %w", err)
	}
	registered, err := s.registry.MintBrand(
		ctx,
		wallet,
		in.Name,
		obj.URI,
		in.Description,
		fee,
	)
	if err != nil {
		return nil, &RejectedError{Operation: "mintBrand", Err: err}
	}
	if s.brands != nil {
		s.brands.Remove(registered.BrandAddress)
	}
	s.logger.Info(
		"registered brand",
		"address", registered.BrandAddress.Hex(),
		"name", registered.BrandName,
		"fee", fee.String(),
		"tx_hash", registered.TxHash.Hex(),
	)
	if s.eventBus != nil {
		s.eventBus.Publish(
			event.BrandRegisteredEventType,
			event.NewEvent(event.BrandRegisteredEventType, event.BrandRegisteredEvent{
				BrandAddress: registered.BrandAddress.Hex(),
				BrandName:    registered.BrandName,
				LogoURI:      registered.LogoURI,
				Fee:          fee.String(),
				TxHash:       registered.TxHash.Hex(),
			}),
		)
	}
	return registered, nil
}

// Get returns a registered brand, or chain.ErrBrandNotFound
func (s *Service) Get(ctx context.Context, addr common.Address) (*chain.Brand, error) {
	if s.registry == nil {
		return nil, ErrNotConfigured
	}
	if s.brands != nil {
		if v, ok := s.brands.Get(addr); ok {
			ret := *(v.(*chain.Brand))
			return &ret, nil
		}
	}
	b, err := s.registry.ReadBrand(ctx, addr)
	if err != nil {
		return nil, err
	}
	if s.brands != nil {
		cached := *b
		s.brands.Add(addr, &cached)
	}
	return b, nil
}

func (s *Service) IsRegistered(ctx context.Context, addr common.Address) (bool, error) {
	if s.registry == nil {
		return false, ErrNotConfigured
	}
	return s.registry.IsBrandRegistered(ctx, addr)
}

// All returns every registered brand in registration order
func (s *Service) All(ctx context.Context) ([]*chain.Brand, error) {
	if s.registry == nil {
		return nil, ErrNotConfigured
	}
	addrs, err := s.registry.AllBrands(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]*chain.Brand, 0, len(addrs))
	for _, addr := range addrs {
		b, err := s.Get(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("read brand %s: %w", addr.Hex(), err)
		}
		ret = append(ret, b)
	}
	return ret, nil
}

func (s *Service) Total(ctx context.Context) (uint64, error) {
	if s.registry == nil {
		return 0, ErrNotConfigured
	}
	return s.registry.TotalBrandsRegistered(ctx)
}

// Fee returns the registration fee in wei
func (s *Service) Fee(ctx context.Context) (*big.Int, error) {
	if s.registry == nil {
		return nil, ErrNotConfigured
	}
	return s.registry.RegistrationFee(ctx)
}

func (s *Service) Owner(ctx context.Context) (common.Address, error) {
	if s.registry == nil {
		return common.Address{}, ErrNotConfigured
	}
	return s.registry.Owner(ctx)
}

// Balance returns the fees collected by the registry in wei
func (s *Service) Balance(ctx context.Context) (*big.Int, error) {
	if s.registry == nil {
		return nil, ErrNotConfigured
	}
	return s.registry.ContractBalance(ctx)
}

// UpdateFee sets a new registration fee. Only the registry owner may do
// this.
func (s *Service) UpdateFee(
	ctx context.Context,
	wallet *chain.Wallet,
	fee *big.Int,
) (*chain.RegistrationFeeUpdatedEvent, error) {
	if fee == nil || fee.Sign() < 0 {
		return nil, &ValidationError{Field: "fee", Reason: "must be a non-negative amount of wei"}
	}
	if s.registry == nil {
		return nil, ErrNotConfigured
	}
	ret, err := s.registry.UpdateRegistrationFee(ctx, wallet, fee)
	if err != nil {
		return nil, &RejectedError{Operation: "updateRegistrationFee", Err: err}
	}
	s.logger.Info(
		"updated registration fee",
		"old_fee", ret.OldFee.String(),
		"new_fee", ret.NewFee.String(),
	)
	return ret, nil
}

// Withdraw moves the collected fees to the registry owner
func (s *Service) Withdraw(ctx context.Context, wallet *chain.Wallet) (*chain.TxResult, error) {
	if s.registry == nil {
		return nil, ErrNotConfigured
	}
	ret, err := s.registry.Withdraw(ctx, wallet)
	if err != nil {
		return nil, &RejectedError{Operation: "withdraw", Err: err}
	}
	return ret, nil
}

func (s *Service) TransferOwnership(
	ctx context.Context,
	wallet *chain.Wallet,
	newOwner common.Address,
) (*chain.TxResult, error) {
	if newOwner == (common.Address{}) {
		return nil, &ValidationError{Field: "newOwner", Reason: "zero address"}
	}
	if s.registry == nil {
		return nil, ErrNotConfigured
	}
	ret, err := s.registry.TransferOwnership(ctx, wallet, newOwner)
	if err != nil {
		return nil, &RejectedError{Operation: "transferOwnership", Err: err}
	}
	s.logger.Info("transferred registry ownership", "new_owner", newOwner.Hex())
	return ret, nil
}
