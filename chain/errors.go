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
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrEventNotFound is returned when a receipt carries no log for the
	// requested event
	ErrEventNotFound = errors.New("event not found in receipt")
	// ErrSeriesNotFound is returned for series ids the contract doesn't know
	ErrSeriesNotFound = errors.New("series not found")
	// ErrBrandNotFound is returned for addresses without a registered brand
	ErrBrandNotFound = errors.New("brand not found")
	// ErrNoWallet is returned by write operations called without a signer
	ErrNoWallet = errors.New("no wallet configured")
	// ErrInvalidAddress is returned for strings that aren't hex addresses
	ErrInvalidAddress = errors.New("invalid address")
	// ErrValueOverflow is returned when a uint256 doesn't fit the Go type
	ErrValueOverflow = errors.New("value overflows uint64")
)

// TxFailedError is returned when a transaction was mined but reverted
type TxFailedError struct {
	Contract string
	Method   string
	TxHash   common.Hash
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf(
		"%s.%s: transaction %s reverted",
		e.Contract,
		e.Method,
		e.TxHash.Hex(),
	)
}

// EventDecodeError is returned by a write whose transaction succeeded but
// whose receipt event could not be read. The state change did happen.
type EventDecodeError struct {
	Err      error
	Contract string
	Event    string
	TxHash   common.Hash
}

func (e *EventDecodeError) Error() string {
	return fmt.Sprintf(
		"%s: transaction %s succeeded but %s could not be read: %s",
		e.Contract,
		e.TxHash.Hex(),
		e.Event,
		e.Err,
	)
}

func (e *EventDecodeError) Unwrap() error {
	return e.Err
}

// IsRevert reports whether err came from the EVM rejecting a call, as
// opposed to a transport or node failure
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var txErr *TxFailedError
	if errors.As(err, &txErr) {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

// ParseAddress parses a hex address, rejecting anything else
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
