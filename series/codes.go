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

package series

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database"
	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/event"
	"github.com/google/uuid"
)

// PersistenceError is returned when codes were registered on chain but the
// mirror rows could not be written. Codes lists what was registered.
type PersistenceError struct {
	Err      error
	Codes    []string
	SeriesID uint64
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf(
		"%d codes registered on chain for series %d but not recorded: %s",
		len(e.Codes),
		e.SeriesID,
		e.Err,
	)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// GenerateCodes registers count new claim codes for a series on chain,
// records them with consecutive serial numbers and returns the full code
// list of the series, newest first. Only the series owner's wallet can
// register codes; the contract rejects anyone else.
func (s *Service) GenerateCodes(
	ctx context.Context,
	wallet *chain.Wallet,
	seriesID uint64,
	count int,
) ([]models.ClaimLink, error) {
	if count < 1 || count > s.maxCodesPerBatch {
		return nil, &ValidationError{
			Field:  "count",
			Reason: "must be between 1 and " + strconv.Itoa(s.maxCodesPerBatch),
		}
	}
	if s.chain == nil || s.store == nil {
		return nil, ErrNotConfigured
	}
	unlock, err := s.locker.Lock(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("lock series %d: %w", seriesID, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn(
				"failed to release series lock",
				"series_id", seriesID,
				"error", err,
			)
		}
	}()
	codes := make([]string, count)
	for i := range codes {
		codes[i] = uuid.NewString()
	}
	tx, err := s.chain.GenerateClaimLinks(ctx, wallet, seriesID, codes)
	if err != nil {
		s.metrics.batch("rejected", count)
		return nil, &RejectedError{
			Operation: "generateClaimLinks",
			SeriesID:  seriesID,
			Err:       err,
		}
	}
	var first uint64
	txn := s.store.Transaction()
	err = txn.Do(func(txn *database.Txn) error {
		existing, err := s.store.CountClaimLinksBySeries(seriesID, txn)
		if err != nil {
			return err
		}
		first = existing + 1
		links := make([]models.ClaimLink, count)
		for i, code := range codes {
			links[i] = models.ClaimLink{
				SeriesID:     seriesID,
				SerialNumber: first + uint64(i),
				ClaimCode:    code,
			}
		}
		return s.store.AddClaimLinks(links, txn)
	})
	if err != nil {
		s.metrics.batch("persistence_error", count)
		s.logger.Error(
			"claim codes registered on chain but not recorded",
			"series_id", seriesID,
			"tx_hash", tx.TxHash.Hex(),
			"codes", codes,
			"error", err,
		)
		return nil, &PersistenceError{SeriesID: seriesID, Codes: codes, Err: err}
	}
	s.metrics.batch("ok", count)
	last := first + uint64(count) - 1
	s.logger.Info(
		"generated claim codes",
		"series_id", seriesID,
		"count", count,
		"first_serial", first,
		"last_serial", last,
		"tx_hash", tx.TxHash.Hex(),
	)
	s.publish(event.CodesGeneratedEventType, event.CodesGeneratedEvent{
		TxHash:      tx.TxHash.Hex(),
		SeriesID:    seriesID,
		Count:       count,
		FirstSerial: first,
		LastSerial:  last,
	})
	ret, err := s.store.GetClaimLinksBySeries(seriesID, nil)
	if err != nil {
		return nil, fmt.Errorf("reload claim codes: %w", err)
	}
	return ret, nil
}

// Codes returns every recorded code of a series, newest first
func (s *Service) Codes(ctx context.Context, seriesID uint64) ([]models.ClaimLink, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GetClaimLinksBySeries(seriesID, nil)
}

// IsRejected reports whether err is a chain rejection from this package
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
