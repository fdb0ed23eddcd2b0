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

	"github.com/ethereum/go-ethereum/ethclient"
)

// Config selects the node and contracts to use
type Config struct {
	RPCURL         string `yaml:"rpcUrl"         envconfig:"SNAP_CHAIN_RPC_URL"`
	ChainID        uint64 `yaml:"chainId"        envconfig:"SNAP_CHAIN_ID"`
	SeriesContract string `yaml:"seriesContract" envconfig:"SNAP_CHAIN_SERIES_CONTRACT"`
	BrandRegistry  string `yaml:"brandRegistry"  envconfig:"SNAP_CHAIN_BRAND_REGISTRY"`
	KeyFile        string `yaml:"keyFile"        envconfig:"SNAP_CHAIN_KEY_FILE"`
}

// DefaultConfig points at the public Base Sepolia deployment
func DefaultConfig() Config {
	return Config{
		RPCURL:         DefaultRPCURL,
		ChainID:        BaseSepoliaChainID,
		SeriesContract: DefaultSeriesContractAddress,
		BrandRegistry:  DefaultBrandRegistryAddress,
	}
}

// Client bundles the contract gateways sharing one node connection
type Client struct {
	Series *SeriesContract
	Brands *BrandRegistry
	closer func()
}

// Dial connects to the configured node and checks that it serves the
// expected chain
func Dial(ctx context.Context, cfg Config, opts ...ContractOptionFunc) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("no RPC URL configured")
	}
	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}
	if cfg.ChainID != 0 {
		remoteID, err := ec.ChainID(ctx)
		if err != nil {
			ec.Close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
		if !remoteID.IsUint64() || remoteID.Uint64() != cfg.ChainID {
			ec.Close()
			return nil, fmt.Errorf(
				"node at %s serves chain %s, expected %d",
				cfg.RPCURL,
				remoteID.String(),
				cfg.ChainID,
			)
		}
	}
	client, err := NewClient(ec, cfg, opts...)
	if err != nil {
		ec.Close()
		return nil, err
	}
	client.closer = ec.Close
	return client, nil
}

// NewClient builds the gateways on top of an existing backend
func NewClient(backend Backend, cfg Config, opts ...ContractOptionFunc) (*Client, error) {
	seriesAddr, err := ParseAddress(cfg.SeriesContract)
	if err != nil {
		return nil, fmt.Errorf("series contract: %w", err)
	}
	brandAddr, err := ParseAddress(cfg.BrandRegistry)
	if err != nil {
		return nil, fmt.Errorf("brand registry: %w", err)
	}
	if cfg.ChainID != 0 {
		opts = append([]ContractOptionFunc{WithChainID(cfg.ChainID)}, opts...)
	}
	series, err := NewSeriesContract(backend, seriesAddr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		Series: series,
		Brands: NewBrandRegistry(backend, brandAddr, opts...),
	}, nil
}

// Close releases the node connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}
