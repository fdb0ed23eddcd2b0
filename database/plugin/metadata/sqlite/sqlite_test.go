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

package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/snap/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MetadataStoreSqlite {
	t.Helper()
	store, err := New("", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedLinks(seriesId uint64, count int, created time.Time) []models.ClaimLink {
	ret := make([]models.ClaimLink, 0, count)
	for i := range count {
		ret = append(ret, models.ClaimLink{
			SeriesID:     seriesId,
			SerialNumber: uint64(i + 1),
			ClaimCode:    fmt.Sprintf("code-%d-%d", seriesId, i+1),
			CreatedAt:    created.Add(time.Duration(i) * time.Second),
		})
	}
	return ret
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)
	require.NoError(t, a.AddClaimLinks(seedLinks(1, 2, time.Now()), nil))

	count, err := b.CountClaimLinksBySeries(1, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetClaimLink(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AddClaimLinks(seedLinks(7, 1, time.Now()), nil))

	link, err := store.GetClaimLink("code-7-1", nil)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.NotEmpty(t, link.ID)
	assert.Equal(t, uint64(7), link.SeriesID)
	assert.False(t, link.IsClaimed)
	assert.Nil(t, link.ClaimedBy)

	missing, err := store.GetClaimLink("abc-123", nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetClaimLinksBySeriesOrder(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AddClaimLinks(seedLinks(3, 4, base), nil))
	require.NoError(t, store.AddClaimLinks(seedLinks(4, 2, base), nil))

	links, err := store.GetClaimLinksBySeries(3, nil)
	require.NoError(t, err)
	require.Len(t, links, 4)
	for i, link := range links {
		assert.Equal(t, uint64(4-i), link.SerialNumber)
	}
	count, err := store.CountClaimLinksBySeries(3, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestSetClaimLinkClaimedFirstWriterWins(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AddClaimLinks(seedLinks(1, 1, time.Now()), nil))
	claimedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	updated, err := store.SetClaimLinkClaimed("code-1-1", "0xAAA", claimedAt, nil)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = store.SetClaimLinkClaimed("code-1-1", "0xBBB", time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, updated)

	link, err := store.GetClaimLink("code-1-1", nil)
	require.NoError(t, err)
	require.True(t, link.Claimed())
	assert.Equal(t, "0xAAA", *link.ClaimedBy)
	assert.True(t, claimedAt.Equal(*link.ClaimedAt))

	updated, err = store.SetClaimLinkClaimed("missing", "0xAAA", time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestGetUnclaimedClaimLinksPaging(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AddClaimLinks(seedLinks(1, 5, time.Now()), nil))
	_, err := store.SetClaimLinkClaimed("code-1-3", "0xAAA", time.Now(), nil)
	require.NoError(t, err)

	var seen []string
	after := ""
	for {
		page, err := store.GetUnclaimedClaimLinks(after, 2, nil)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, link := range page {
			assert.False(t, link.IsClaimed)
			seen = append(seen, link.ClaimCode)
		}
		after = page[len(page)-1].ID
	}
	assert.Len(t, seen, 4)
	assert.NotContains(t, seen, "code-1-3")
}

func TestTransactionRollback(t *testing.T) {
	store := newTestStore(t)
	txn := store.Transaction()
	require.NoError(t, store.AddClaimLinks(seedLinks(9, 2, time.Now()), txn))
	require.NoError(t, txn.Rollback().Error)

	count, err := store.CountClaimLinksBySeries(9, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFileBackedStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "meta")
	reg := prometheus.NewRegistry()
	store, err := New(dir, nil, reg)
	require.NoError(t, err)
	require.NoError(t, store.AddClaimLinks(seedLinks(2, 1, time.Now()), nil))
	require.NoError(t, store.Close())
	// Closing twice is harmless
	require.NoError(t, store.Close())

	reopened, err := New(dir, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	defer reopened.Close()
	link, err := reopened.GetClaimLink("code-2-1", nil)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.FileExists(t, filepath.Join(dir, "metadata.sqlite"))
}
