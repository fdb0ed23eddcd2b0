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

package event

import "time"

const (
	ClaimRedeemedEventType   EventType = "claim.redeemed"
	ClaimDivergedEventType   EventType = "reconcile.diverged"
	CodesGeneratedEventType  EventType = "codes.generated"
	SeriesCreatedEventType   EventType = "series.created"
	SeriesToggledEventType   EventType = "series.toggled"
	BrandRegisteredEventType EventType = "brand.registered"
)

// ClaimRedeemedEvent is published after a claim code is redeemed on chain
// and the mirror row was updated
type ClaimRedeemedEvent struct {
	ClaimedAt time.Time `json:"claimedAt"`
	ClaimCode string    `json:"claimCode"`
	Claimer   string    `json:"claimer"`
	TokenID   string    `json:"tokenId"`
	TxHash    string    `json:"txHash"`
	SeriesID  uint64    `json:"seriesId"`
}

// ClaimDivergedEvent is published when the chain reports a code as claimed
// while the mirror row does not
type ClaimDivergedEvent struct {
	ClaimedAt time.Time `json:"claimedAt"`
	ClaimCode string    `json:"claimCode"`
	ClaimedBy string    `json:"claimedBy"`
	// Source is "resolve" or "sweep"
	Source   string `json:"source"`
	SeriesID uint64 `json:"seriesId"`
	Repaired bool   `json:"repaired"`
}

type CodesGeneratedEvent struct {
	TxHash      string `json:"txHash"`
	SeriesID    uint64 `json:"seriesId"`
	Count       int    `json:"count"`
	FirstSerial uint64 `json:"firstSerial"`
	LastSerial  uint64 `json:"lastSerial"`
}

type SeriesCreatedEvent struct {
	BrandOwner string `json:"brandOwner"`
	SeriesName string `json:"seriesName"`
	ImageURI   string `json:"imageUri"`
	TxHash     string `json:"txHash"`
	SeriesID   uint64 `json:"seriesId"`
	MaxSupply  uint64 `json:"maxSupply"`
}

type SeriesToggledEvent struct {
	TxHash   string `json:"txHash"`
	SeriesID uint64 `json:"seriesId"`
	IsActive bool   `json:"isActive"`
}

type BrandRegisteredEvent struct {
	BrandAddress string `json:"brandAddress"`
	BrandName    string `json:"brandName"`
	LogoURI      string `json:"logoUri"`
	Fee          string `json:"fee"`
	TxHash       string `json:"txHash"`
}
