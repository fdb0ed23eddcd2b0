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
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the node connection the contracts talk to. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

type boundContract struct {
	name        string
	address     common.Address
	abi         abi.ABI
	backend     Backend
	bound       *bind.BoundContract
	logger      *slog.Logger
	metrics     *metrics
	waitTimeout time.Duration
	chainID     *big.Int
	chainIDMu   sync.Mutex
}

func newBoundContract(
	name string,
	contractABI abi.ABI,
	backend Backend,
	address common.Address,
	o *contractOptions,
) *boundContract {
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &boundContract{
		name:        name,
		address:     address,
		abi:         contractABI,
		backend:     backend,
		bound:       bind.NewBoundContract(address, contractABI, backend, backend, backend),
		logger:      logger.With("component", "chain", "contract", name),
		metrics:     newMetrics(o.promRegistry),
		waitTimeout: o.waitTimeout,
		chainID:     o.chainID,
	}
}

// Address returns the contract address
func (c *boundContract) Address() common.Address {
	return c.address
}

func (c *boundContract) getChainID(ctx context.Context) (*big.Int, error) {
	c.chainIDMu.Lock()
	defer c.chainIDMu.Unlock()
	if c.chainID != nil {
		return c.chainID, nil
	}
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	c.chainID = chainID
	return chainID, nil
}

func (c *boundContract) call(
	ctx context.Context,
	method string,
	args ...any,
) ([]any, error) {
	var out []any
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	c.metrics.observeCall(c.name, method, err)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	return out, nil
}

// transact sends a transaction and waits for it to be mined. A mined but
// reverted transaction returns its receipt along with a *TxFailedError.
func (c *boundContract) transact(
	ctx context.Context,
	wallet *Wallet,
	value *big.Int,
	method string,
	args ...any,
) (*types.Receipt, error) {
	receipt, err := c.sendAndWait(ctx, wallet, value, method, args...)
	c.metrics.observeTransaction(c.name, method, err)
	if err != nil {
		c.logger.Debug(
			"transaction failed",
			"method", method,
			"error", err,
		)
	}
	return receipt, err
}

func (c *boundContract) sendAndWait(
	ctx context.Context,
	wallet *Wallet,
	value *big.Int,
	method string,
	args ...any,
) (*types.Receipt, error) {
	if wallet == nil {
		return nil, ErrNoWallet
	}
	chainID, err := c.getChainID(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := wallet.transactOpts(ctx, chainID, value)
	if err != nil {
		return nil, err
	}
	wallet.mu.Lock()
	tx, err := c.bound.Transact(opts, method, args...)
	wallet.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s.%s: send transaction: %w", c.name, method, err)
	}
	c.logger.Info(
		"sent transaction",
		"method", method,
		"from", wallet.Address().Hex(),
		"tx", tx.Hash().Hex(),
	)
	waitCtx := ctx
	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf(
			"%s.%s: wait for transaction %s: %w",
			c.name,
			method,
			tx.Hash().Hex(),
			err,
		)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &TxFailedError{
			Contract: c.name,
			Method:   method,
			TxHash:   tx.Hash(),
		}
	}
	return receipt, nil
}

// decodeEvent unpacks the first log in the receipt emitted by this contract
// for the named event
func (c *boundContract) decodeEvent(
	receipt *types.Receipt,
	event string,
	out any,
) error {
	ev, ok := c.abi.Events[event]
	if !ok {
		return fmt.Errorf("%s: unknown event %s", c.name, event)
	}
	if receipt != nil {
		for _, l := range receipt.Logs {
			if l == nil || l.Address != c.address || len(l.Topics) == 0 ||
				l.Topics[0] != ev.ID {
				continue
			}
			if err := c.bound.UnpackLog(out, event, *l); err != nil {
				return fmt.Errorf("%s: decode %s: %w", c.name, event, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%s.%s: %w", c.name, event, ErrEventNotFound)
}

func txResult(receipt *types.Receipt) TxResult {
	ret := TxResult{
		TxHash:  receipt.TxHash,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		ret.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return ret
}

func outValue[T any](out []any, i int) (T, error) {
	var zero T
	if i >= len(out) {
		return zero, fmt.Errorf("missing output %d", i)
	}
	v, ok := out[i].(T)
	if !ok {
		return zero, fmt.Errorf("output %d: unexpected type %T", i, out[i])
	}
	return v, nil
}

func outUint64(out []any, i int, field string) (uint64, error) {
	v, err := outValue[*big.Int](out, i)
	if err != nil {
		return 0, err
	}
	return toUint64(field, v)
}
