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

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClaimLink mirrors an on-chain claim link. The chain is authoritative; rows
// here exist for listing and as a human-readable audit trail.
type ClaimLink struct {
	ClaimedAt    *time.Time `json:"claimed_at"`
	ClaimedBy    *string    `gorm:"size:42"                                        json:"claimed_by"`
	CreatedAt    time.Time  `gorm:"index;not null"                                 json:"created_at"`
	ID           string     `gorm:"primaryKey;size:36"                             json:"id"`
	ClaimCode    string     `gorm:"uniqueIndex;size:64;not null"                   json:"claim_code"`
	SeriesID     uint64     `gorm:"index:idx_claim_links_series_serial;not null"   json:"series_id"`
	SerialNumber uint64     `gorm:"index:idx_claim_links_series_serial;not null"   json:"serial_number"`
	IsClaimed    bool       `gorm:"index;not null;default:false"                   json:"is_claimed"`
}

func (ClaimLink) TableName() string {
	return "claim_links"
}

// BeforeCreate assigns an id to rows inserted without one
func (c *ClaimLink) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Claimed reports whether the row carries a complete claim record
func (c *ClaimLink) Claimed() bool {
	return c.IsClaimed && c.ClaimedBy != nil && c.ClaimedAt != nil
}
