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

// Package reconcile decides whether a claim code can still be redeemed and
// records redemptions. The series contract is authoritative; the claim_links
// table is a mirror that is corrected from chain state whenever the two
// disagree.
package reconcile

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database"
	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/event"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNotConfigured is returned when the reconciler is missing its chain or
// database
var ErrNotConfigured = errors.New("reconciler requires a chain gateway and a claim store")

// ChainGateway is the subset of the series contract used here
type ChainGateway interface {
	CheckClaimLink(ctx context.Context, code string) (*chain.ClaimLink, error)
	ReadSeries(ctx context.Context, seriesID uint64) (*chain.Series, error)
	ClaimNFT(
		ctx context.Context,
		wallet *chain.Wallet,
		code string,
	) (*chain.NFTClaimedEvent, error)
}

// ClaimStore is the subset of the database used here
type ClaimStore interface {
	GetClaimLink(claimCode string, txn *database.Txn) (*models.ClaimLink, error)
	GetUnclaimedClaimLinks(
		afterId string,
		limit int,
		txn *database.Txn,
	) ([]models.ClaimLink, error)
	SetClaimLinkClaimed(
		claimCode string,
		claimedBy string,
		claimedAt time.Time,
		txn *database.Txn,
	) (bool, error)
}

type ClaimState int

const (
	ClaimStateInvalid ClaimState = iota
	ClaimStateAlreadyClaimed
	ClaimStateClaimable
)

var _ encoding.TextMarshaler = ClaimState(0)

func (s ClaimState) String() string {
	switch s {
	case ClaimStateInvalid:
		return "invalid"
	case ClaimStateAlreadyClaimed:
		return "already_claimed"
	case ClaimStateClaimable:
		return "claimable"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s ClaimState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ClaimResolution describes the state of a claim code. Series metadata is
// set for claimable codes, claimant details for claimed ones.
type ClaimResolution struct {
	ClaimedAt   *time.Time `json:"claimedAt,omitempty"`
	Code        string     `json:"code"`
	SeriesName  string     `json:"seriesName,omitempty"`
	Description string     `json:"description,omitempty"`
	ImageURI    string     `json:"imageURI,omitempty"`
	ClaimedBy   string     `json:"claimedBy,omitempty"`
	SeriesID    uint64     `json:"seriesId,omitempty"`
	State       ClaimState `json:"state"`
	IsActive    bool       `json:"isActive,omitempty"`
	// Repaired is set when this resolution corrected the mirror row
	Repaired bool `json:"repaired,omitempty"`
}

// Redemption is the result of Redeem
type Redemption struct {
	TokenID  *big.Int    `json:"tokenId,omitempty"`
	Code     string      `json:"code"`
	Claimer  string      `json:"claimer"`
	Reason   string      `json:"reason,omitempty"`
	TxHash   common.Hash `json:"txHash"`
	SeriesID uint64      `json:"seriesId,omitempty"`
	Rejected bool        `json:"rejected"`

	// Unconfirmed marks a claim that was mined without a readable event
	Unconfirmed bool `json:"unconfirmed,omitempty"`
}

type Reconciler struct {
	chain    ChainGateway
	store    ClaimStore
	logger   *slog.Logger
	eventBus *event.EventBus
	metrics  *metrics
	now      func() time.Time
}

type ReconcilerOptionFunc func(*Reconciler)

func WithChain(gw ChainGateway) ReconcilerOptionFunc {
	return func(r *Reconciler) {
		r.chain = gw
	}
}

func WithDatabase(store ClaimStore) ReconcilerOptionFunc {
	return func(r *Reconciler) {
		r.store = store
	}
}

func WithLogger(logger *slog.Logger) ReconcilerOptionFunc {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithEventBus publishes redemption and divergence events on the bus
func WithEventBus(eventBus *event.EventBus) ReconcilerOptionFunc {
	return func(r *Reconciler) {
		r.eventBus = eventBus
	}
}

func WithPromRegistry(registry prometheus.Registerer) ReconcilerOptionFunc {
	return func(r *Reconciler) {
		r.metrics = newMetrics(registry)
	}
}

// WithClock overrides the time source used for claimedAt
func WithClock(now func() time.Time) ReconcilerOptionFunc {
	return func(r *Reconciler) {
		r.now = now
	}
}

func New(opts ...ReconcilerOptionFunc) (*Reconciler, error) {
	r := &Reconciler{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.chain == nil || r.store == nil {
		return nil, ErrNotConfigured
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r.logger = r.logger.With("component", "reconcile")
	return r, nil
}

// ResolveClaimState reports whether a code can be redeemed. A code unknown
// to the mirror, or whose series the chain doesn't know, is invalid. Chain
// and database failures are returned as errors, never as invalid.
func (r *Reconciler) ResolveClaimState(
	ctx context.Context,
	code string,
) (*ClaimResolution, error) {
	ret := &ClaimResolution{Code: code}
	row, err := r.store.GetClaimLink(code, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup claim code: %w", err)
	}
	if row == nil {
		ret.State = ClaimStateInvalid
		r.metrics.resolved(ret.State)
		return ret, nil
	}
	ret.SeriesID = row.SeriesID
	link, err := r.chain.CheckClaimLink(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("check claim link on chain: %w", err)
	}
	if link.IsClaimed || row.IsClaimed {
		ret.State = ClaimStateAlreadyClaimed
		switch {
		case link.IsClaimed:
			claimedBy := link.ClaimedBy.Hex()
			claimedAt := link.ClaimedAt
			ret.ClaimedBy = claimedBy
			ret.ClaimedAt = &claimedAt
			if !row.IsClaimed {
				ret.Repaired = r.repair(row, link, sourceResolve)
			}
		case row.ClaimedBy != nil:
			ret.ClaimedBy = *row.ClaimedBy
			ret.ClaimedAt = row.ClaimedAt
		}
		r.metrics.resolved(ret.State)
		return ret, nil
	}
	series, err := r.chain.ReadSeries(ctx, row.SeriesID)
	if err != nil {
		if errors.Is(err, chain.ErrSeriesNotFound) {
			ret.State = ClaimStateInvalid
			r.metrics.resolved(ret.State)
			return ret, nil
		}
		return nil, fmt.Errorf("read series %d: %w", row.SeriesID, err)
	}
	ret.State = ClaimStateClaimable
	ret.SeriesName = series.SeriesName
	ret.Description = series.Description
	ret.ImageURI = series.ImageURI
	ret.IsActive = series.IsActive
	r.metrics.resolved(ret.State)
	return ret, nil
}

// repair copies the chain's claim record into a mirror row that still
// reads unclaimed. Failures are logged and reported as false.
func (r *Reconciler) repair(
	row *models.ClaimLink,
	link *chain.ClaimLink,
	source string,
) bool {
	claimedAt := link.ClaimedAt
	if claimedAt.IsZero() {
		claimedAt = r.now()
	}
	claimedBy := link.ClaimedBy.Hex()
	logger := r.logger.With(
		"claim_code", row.ClaimCode,
		"series_id", row.SeriesID,
		"source", source,
	)
	updated, err := r.store.SetClaimLinkClaimed(
		row.ClaimCode,
		claimedBy,
		claimedAt,
		nil,
	)
	if err != nil {
		logger.Warn("failed to repair claim link from chain state", "error", err)
	} else if updated {
		logger.Info("repaired claim link from chain state", "claimed_by", claimedBy)
		r.metrics.repaired(source)
	}
	r.publish(event.ClaimDivergedEventType, event.ClaimDivergedEvent{
		ClaimCode: row.ClaimCode,
		ClaimedBy: claimedBy,
		ClaimedAt: claimedAt,
		Source:    source,
		SeriesID:  row.SeriesID,
		Repaired:  err == nil && updated,
	})
	return err == nil && updated
}

// Redeem submits the claim transaction for code, signed by wallet, and
// records the claim in the mirror once the transaction is confirmed. The
// caller is expected to have resolved the code as claimable.
//
// A failed transaction returns a rejected Redemption together with a
// *RejectedError and leaves the mirror untouched. A mirror failure after a
// confirmed transaction returns the Redemption together with a
// *PersistenceError.
func (r *Reconciler) Redeem(
	ctx context.Context,
	wallet *chain.Wallet,
	code string,
) (*Redemption, error) {
	ret := &Redemption{Code: code}
	if wallet != nil {
		ret.Claimer = wallet.Address().Hex()
	}
	logger := r.logger.With("claim_code", code)
	claimed, err := r.chain.ClaimNFT(ctx, wallet, code)
	var decodeErr *chain.EventDecodeError
	if errors.As(err, &decodeErr) {
		ret.TxHash = decodeErr.TxHash
		ret.Unconfirmed = true
		ret.Reason = "claim mined but its event could not be read; " +
			"the code is spent and a retry will be rejected"
		if _, serr := r.store.SetClaimLinkClaimed(code, ret.Claimer, r.now(), nil); serr != nil {
			logger.Error("failed to record unconfirmed claim", "error", serr)
		}
		r.metrics.redeemed(outcomeUnconfirmed)
		logger.Warn(
			"claim mined without a readable event",
			"tx_hash", ret.TxHash.Hex(),
			"error", err,
		)
		return ret, &UnconfirmedError{Code: code, TxHash: ret.TxHash, Err: err}
	}
	if err != nil {
		ret.Rejected = true
		ret.Reason = rejectReason(err)
		var txErr *chain.TxFailedError
		if errors.As(err, &txErr) {
			ret.TxHash = txErr.TxHash
		}
		r.metrics.redeemed(outcomeRejected)
		logger.Info("claim rejected", "reason", ret.Reason, "error", err)
		return ret, &RejectedError{Code: code, Reason: ret.Reason, Err: err}
	}
	ret.TokenID = claimed.TokenID
	ret.TxHash = claimed.TxHash
	ret.SeriesID = claimed.SeriesID
	claimedAt := r.now()
	updated, err := r.store.SetClaimLinkClaimed(code, ret.Claimer, claimedAt, nil)
	if err == nil && !updated {
		// The row vanished or was already claimed; the chain record stands
		logger.Warn("claim link row was not updated after redemption")
	}
	if err != nil {
		r.metrics.redeemed(outcomePersistenceError)
		logger.Error(
			"claim minted but mirror update failed",
			"token_id", ret.TokenID.String(),
			"tx_hash", ret.TxHash.Hex(),
			"error", err,
		)
		return ret, &PersistenceError{Code: code, TokenID: ret.TokenID, Err: err}
	}
	r.metrics.redeemed(outcomeSuccess)
	logger.Info(
		"claim redeemed",
		"token_id", ret.TokenID.String(),
		"claimer", ret.Claimer,
		"tx_hash", ret.TxHash.Hex(),
	)
	r.publish(event.ClaimRedeemedEventType, event.ClaimRedeemedEvent{
		ClaimCode: code,
		Claimer:   ret.Claimer,
		TokenID:   ret.TokenID.String(),
		TxHash:    ret.TxHash.Hex(),
		SeriesID:  ret.SeriesID,
		ClaimedAt: claimedAt,
	})
	return ret, nil
}

func (r *Reconciler) publish(eventType event.EventType, data any) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
