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

// Package claimstore holds the claim_links queries shared by the gorm
// metadata plugins. Each plugin embeds a Store once its connection is open.
package claimstore

import (
	"errors"
	"time"

	"github.com/blinklabs-io/snap/database/models"
	"gorm.io/gorm"
)

// insertBatchSize bounds the number of rows per INSERT statement
const insertBatchSize = 100

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) resolve(txn *gorm.DB) *gorm.DB {
	if txn == nil {
		return s.db
	}
	return txn
}

// GetClaimLink returns the row for a claim code, or nil if there is none
func (s *Store) GetClaimLink(
	claimCode string,
	txn *gorm.DB,
) (*models.ClaimLink, error) {
	ret := &models.ClaimLink{}
	result := s.resolve(txn).First(ret, "claim_code = ?", claimCode)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetClaimLinksBySeries returns all rows for a series, newest first
func (s *Store) GetClaimLinksBySeries(
	seriesId uint64,
	txn *gorm.DB,
) ([]models.ClaimLink, error) {
	var ret []models.ClaimLink
	result := s.resolve(txn).
		Where("series_id = ?", seriesId).
		Order("created_at DESC").
		Order("serial_number DESC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CountClaimLinksBySeries returns the number of rows for a series
func (s *Store) CountClaimLinksBySeries(
	seriesId uint64,
	txn *gorm.DB,
) (uint64, error) {
	var count int64
	result := s.resolve(txn).
		Model(&models.ClaimLink{}).
		Where("series_id = ?", seriesId).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	// #nosec G115
	return uint64(count), nil
}

// GetUnclaimedClaimLinks pages through unclaimed rows in id order
func (s *Store) GetUnclaimedClaimLinks(
	afterId string,
	limit int,
	txn *gorm.DB,
) ([]models.ClaimLink, error) {
	var ret []models.ClaimLink
	query := s.resolve(txn).Where("is_claimed = ?", false)
	if afterId != "" {
		query = query.Where("id > ?", afterId)
	}
	result := query.Order("id").Limit(limit).Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddClaimLinks inserts new rows in batches
func (s *Store) AddClaimLinks(
	links []models.ClaimLink,
	txn *gorm.DB,
) error {
	if len(links) == 0 {
		return nil
	}
	result := s.resolve(txn).CreateInBatches(links, insertBatchSize)
	return result.Error
}

// SetClaimLinkClaimed records a claim. Rows that are already claimed are left
// untouched, so the first recorded claimant always wins. The returned bool
// reports whether a row was updated.
func (s *Store) SetClaimLinkClaimed(
	claimCode string,
	claimedBy string,
	claimedAt time.Time,
	txn *gorm.DB,
) (bool, error) {
	result := s.resolve(txn).
		Model(&models.ClaimLink{}).
		Where("claim_code = ? AND is_claimed = ?", claimCode, false).
		Updates(map[string]any{
			"is_claimed": true,
			"claimed_by": claimedBy,
			"claimed_at": claimedAt.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
