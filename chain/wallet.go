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
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet signs transactions for one account. Callers pass it explicitly to
// every write operation. Transactions from the same wallet are sent one at
// a time so that nonces are assigned in order.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	mu      sync.Mutex
}

// NewWallet wraps a private key
func NewWallet(key *ecdsa.PrivateKey) (*Wallet, error) {
	if key == nil {
		return nil, errors.New("nil private key")
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// WalletFromHex parses a hex encoded secp256k1 private key, with or without
// the 0x prefix
func WalletFromHex(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewWallet(key)
}

// Address returns the account the wallet signs for
func (w *Wallet) Address() common.Address {
	return w.address
}

func (w *Wallet) transactOpts(
	ctx context.Context,
	chainID *big.Int,
	value *big.Int,
) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.Value = value
	return opts, nil
}
