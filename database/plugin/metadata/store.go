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

package metadata

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/database/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type MetadataStore interface {
	plugin.Plugin

	// Database
	Close() error
	DB() *gorm.DB
	Transaction() *gorm.DB

	// Claim links
	GetClaimLink(
		string, // claimCode
		*gorm.DB,
	) (*models.ClaimLink, error)
	GetClaimLinksBySeries(
		uint64, // seriesId
		*gorm.DB,
	) ([]models.ClaimLink, error)
	CountClaimLinksBySeries(
		uint64, // seriesId
		*gorm.DB,
	) (uint64, error)
	GetUnclaimedClaimLinks(
		string, // afterId
		int, // limit
		*gorm.DB,
	) ([]models.ClaimLink, error)
	AddClaimLinks(
		[]models.ClaimLink,
		*gorm.DB,
	) error
	SetClaimLinkClaimed(
		string, // claimCode
		string, // claimedBy
		time.Time, // claimedAt
		*gorm.DB,
	) (bool, error)
}

// New returns the started metadata plugin selected by name
func New(
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	p, err := plugin.StartPluginWith(
		plugin.PluginTypeMetadata,
		pluginName,
		logger,
		promRegistry,
	)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
