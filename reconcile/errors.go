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

package reconcile

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/snap/chain"
	"github.com/ethereum/go-ethereum/common"
)

// RejectedError is returned by Redeem when the claim transaction did not
// succeed. The mirror row is untouched and the code may be retried.
type RejectedError struct {
	Err    error
	Code   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("claim %s rejected: %s", e.Code, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// UnconfirmedError is returned by Redeem when the claim transaction succeeded
// but its NFTClaimed event could not be read. The NFT was minted and the code
// is spent, so the token id is unknown and a retry will be rejected.
type UnconfirmedError struct {
	Err    error
	Code   string
	TxHash common.Hash
}

func (e *UnconfirmedError) Error() string {
	return fmt.Sprintf(
		"claim %s minted in %s but the token id could not be read: %s",
		e.Code,
		e.TxHash.Hex(),
		e.Err,
	)
}

func (e *UnconfirmedError) Unwrap() error {
	return e.Err
}

// PersistenceError is returned by Redeem when the NFT was minted but the
// mirror row could not be updated. The chain effect stands; the row is
// repaired by the next resolve or sweep.
type PersistenceError struct {
	Err     error
	TokenID *big.Int
	Code    string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf(
		"claim %s minted token %s but recording it failed: %s",
		e.Code,
		e.TokenID,
		e.Err,
	)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// rejectReason turns a chain error into a short message for the caller
func rejectReason(err error) string {
	var txErr *chain.TxFailedError
	switch {
	case errors.Is(err, chain.ErrNoWallet):
		return "no wallet configured"
	case errors.As(err, &txErr):
		return "transaction reverted"
	case chain.IsRevert(err):
		return "claim rejected by contract: " + err.Error()
	default:
		return err.Error()
	}
}
