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

package database

import (
	"context"
	"time"

	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/database/plugin/blob"
	"gorm.io/gorm"
)

// metadataTxn returns the gorm handle for txn, or nil to run outside a
// transaction
func metadataTxn(txn *Txn) *gorm.DB {
	if txn == nil {
		return nil
	}
	return txn.Metadata()
}

// GetClaimLink returns the row for a claim code, or nil if there is none
func (d *Database) GetClaimLink(
	claimCode string,
	txn *Txn,
) (*models.ClaimLink, error) {
	return d.metadata.GetClaimLink(claimCode, metadataTxn(txn))
}

// GetClaimLinksBySeries returns every code of a series, newest first
func (d *Database) GetClaimLinksBySeries(
	seriesId uint64,
	txn *Txn,
) ([]models.ClaimLink, error) {
	return d.metadata.GetClaimLinksBySeries(seriesId, metadataTxn(txn))
}

func (d *Database) CountClaimLinksBySeries(
	seriesId uint64,
	txn *Txn,
) (uint64, error) {
	return d.metadata.CountClaimLinksBySeries(seriesId, metadataTxn(txn))
}

func (d *Database) GetUnclaimedClaimLinks(
	afterId string,
	limit int,
	txn *Txn,
) ([]models.ClaimLink, error) {
	return d.metadata.GetUnclaimedClaimLinks(afterId, limit, metadataTxn(txn))
}

func (d *Database) AddClaimLinks(
	links []models.ClaimLink,
	txn *Txn,
) error {
	return d.metadata.AddClaimLinks(links, metadataTxn(txn))
}

// SetClaimLinkClaimed records a claim unless the row is already claimed. The
// returned bool reports whether this call changed the row.
func (d *Database) SetClaimLinkClaimed(
	claimCode string,
	claimedBy string,
	claimedAt time.Time,
	txn *Txn,
) (bool, error) {
	return d.metadata.SetClaimLinkClaimed(
		claimCode,
		claimedBy,
		claimedAt,
		metadataTxn(txn),
	)
}

// PutObject stores an object in the blob store
func (d *Database) PutObject(
	ctx context.Context,
	obj blob.Object,
) (*blob.StoredObject, error) {
	if d.blob == nil {
		return nil, ErrNoBlobStore
	}
	return d.blob.Put(ctx, obj)
}

// GetObject reads an object from the blob store
func (d *Database) GetObject(
	ctx context.Context,
	contentID string,
) (*blob.Object, error) {
	if d.blob == nil {
		return nil, ErrNoBlobStore
	}
	return d.blob.Get(ctx, contentID)
}
