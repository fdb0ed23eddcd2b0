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

package series_test

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database"
	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/snap/series"
	"github.com/blinklabs-io/snap/upload"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var brandOwner = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")

type fakeChain struct {
	series       map[uint64]*chain.Series
	claimers     map[uint64][]common.Address
	registered   map[uint64][]string
	generateErr  error
	mintErr      error
	generateRuns int
	mu           sync.Mutex
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		series:     make(map[uint64]*chain.Series),
		claimers:   make(map[uint64][]common.Address),
		registered: make(map[uint64][]string),
	}
}

func (f *fakeChain) ReadSeries(_ context.Context, id uint64) (*chain.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.series[id]
	if !ok {
		return nil, chain.ErrSeriesNotFound
	}
	ret := *s
	return &ret, nil
}

func (f *fakeChain) SeriesClaimers(_ context.Context, id uint64) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimers[id], nil
}

func (f *fakeChain) BrandSeries(_ context.Context, brand common.Address) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ret []uint64
	for id, s := range f.series {
		if s.BrandOwner == brand {
			ret = append(ret, id)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret, nil
}

func (f *fakeChain) TotalSeries(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.series)), nil
}

func (f *fakeChain) TotalNFTsMinted(context.Context) (uint64, error) {
	return 12, nil
}

func (f *fakeChain) TokenURI(_ context.Context, id *big.Int) (string, error) {
	return "ipfs://bafy/" + id.String() + ".json", nil
}

func (f *fakeChain) OwnerOf(context.Context, *big.Int) (common.Address, error) {
	return brandOwner, nil
}

func (f *fakeChain) BalanceOf(context.Context, common.Address) (uint64, error) {
	return 3, nil
}

func (f *fakeChain) MintSeries(
	_ context.Context,
	wallet *chain.Wallet,
	name string,
	imageURI string,
	description string,
	maxSupply uint64,
) (*chain.SeriesCreatedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mintErr != nil {
		return nil, f.mintErr
	}
	id := uint64(len(f.series) + 1)
	f.series[id] = &chain.Series{
		ID:          id,
		SeriesName:  name,
		ImageURI:    imageURI,
		Description: description,
		MaxSupply:   maxSupply,
		BrandOwner:  wallet.Address(),
		IsActive:    true,
	}
	return &chain.SeriesCreatedEvent{
		TxResult:   chain.TxResult{TxHash: common.HexToHash("0xabc")},
		SeriesID:   id,
		BrandOwner: wallet.Address(),
		SeriesName: name,
		MaxSupply:  maxSupply,
	}, nil
}

func (f *fakeChain) GenerateClaimLinks(
	_ context.Context,
	_ *chain.Wallet,
	seriesID uint64,
	codes []string,
) (*chain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateRuns++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	f.registered[seriesID] = append(f.registered[seriesID], codes...)
	return &chain.TxResult{TxHash: common.HexToHash("0xdef")}, nil
}

func (f *fakeChain) ToggleSeriesStatus(
	_ context.Context,
	_ *chain.Wallet,
	seriesID uint64,
) (*chain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.series[seriesID]
	if !ok {
		return nil, errors.New("execution reverted: series does not exist")
	}
	s.IsActive = !s.IsActive
	return &chain.TxResult{TxHash: common.HexToHash("0x123")}, nil
}

type fakeUploader struct {
	err   error
	names []string
}

func (u *fakeUploader) Upload(_ context.Context, file upload.File, name string) (*upload.Object, error) {
	u.names = append(u.names, name)
	if u.err != nil {
		return nil, u.err
	}
	return &upload.Object{
		ContentID: "bafytest",
		URI:       "https://gateway.pinata.cloud/ipfs/bafytest",
		Size:      len(file.Data),
	}, nil
}

type testEnv struct {
	chain    *fakeChain
	db       *database.Database
	uploader *fakeUploader
	svc      *series.Service
	wallet   *chain.Wallet
	reg      *prometheus.Registry
}

func newTestEnv(t *testing.T, opts ...series.ServiceOptionFunc) *testEnv {
	t.Helper()
	ms, err := sqlite.New("", nil, nil)
	require.NoError(t, err)
	db := database.NewFromStores(nil, ms, nil)
	t.Cleanup(func() { _ = db.Close() })
	wallet, err := chain.WalletFromHex(testKeyHex)
	require.NoError(t, err)
	env := &testEnv{
		chain:    newFakeChain(),
		db:       db,
		uploader: &fakeUploader{},
		wallet:   wallet,
		reg:      prometheus.NewRegistry(),
	}
	allOpts := []series.ServiceOptionFunc{
		series.WithChain(env.chain),
		series.WithDatabase(db),
		series.WithUploader(env.uploader),
		series.WithPromRegistry(env.reg),
	}
	env.svc = series.New(append(allOpts, opts...)...)
	return env
}

func (e *testEnv) seedCodes(t *testing.T, seriesID uint64, n int) {
	t.Helper()
	links := make([]models.ClaimLink, n)
	for i := range links {
		links[i] = models.ClaimLink{
			SeriesID:     seriesID,
			SerialNumber: uint64(i + 1),
			ClaimCode:    uuid.NewString(),
		}
	}
	require.NoError(t, e.db.AddClaimLinks(links, nil))
}

func serials(links []models.ClaimLink) []uint64 {
	ret := make([]uint64, 0, len(links))
	for _, l := range links {
		ret = append(ret, l.SerialNumber)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

func TestGenerateCodesContinuesSerials(t *testing.T) {
	env := newTestEnv(t)
	env.seedCodes(t, 7, 5)

	links, err := env.svc.GenerateCodes(context.Background(), env.wallet, 7, 3)
	require.NoError(t, err)
	require.Len(t, links, 8)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8}, serials(links))

	registered := env.chain.registered[7]
	require.Len(t, registered, 3)
	bySerial := make(map[uint64]string)
	for _, l := range links {
		bySerial[l.SerialNumber] = l.ClaimCode
		assert.False(t, l.IsClaimed)
	}
	for i, code := range registered {
		_, err := uuid.Parse(code)
		require.NoError(t, err)
		assert.Equal(t, code, bySerial[uint64(6+i)])
	}
}

func TestGenerateCodesFreshSeries(t *testing.T) {
	env := newTestEnv(t)
	links, err := env.svc.GenerateCodes(context.Background(), env.wallet, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4}, serials(links))
	links, err = env.svc.GenerateCodes(context.Background(), env.wallet, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, serials(links))
	// Other series are unaffected
	links, err = env.svc.Codes(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestGenerateCodesChainFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seedCodes(t, 7, 5)
	env.chain.generateErr = errors.New("execution reverted: not series owner")

	_, err := env.svc.GenerateCodes(context.Background(), env.wallet, 7, 3)
	require.Error(t, err)
	assert.True(t, series.IsRejected(err))
	assert.ErrorIs(t, err, env.chain.generateErr)

	count, err := env.db.CountClaimLinksBySeries(7, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

func TestGenerateCodesValidatesCount(t *testing.T) {
	env := newTestEnv(t)
	for _, count := range []int{0, -1, 501} {
		_, err := env.svc.GenerateCodes(context.Background(), env.wallet, 1, count)
		var verr *series.ValidationError
		require.ErrorAs(t, err, &verr, "count %d", count)
		assert.Equal(t, "count", verr.Field)
	}
	assert.Zero(t, env.chain.generateRuns)

	small := newTestEnv(t, series.WithMaxCodesPerBatch(2))
	_, err := small.svc.GenerateCodes(context.Background(), small.wallet, 1, 3)
	var verr *series.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGenerateCodesConcurrentSameSeries(t *testing.T) {
	env := newTestEnv(t)
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.GenerateCodes(context.Background(), env.wallet, 5, 3)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	links, err := env.svc.Codes(context.Background(), 5)
	require.NoError(t, err)
	want := make([]uint64, 12)
	for i := range want {
		want[i] = uint64(i + 1)
	}
	assert.Equal(t, want, serials(links))
}

func TestGenerateCodesMetrics(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GenerateCodes(context.Background(), env.wallet, 1, 3)
	require.NoError(t, err)
	env.chain.generateErr = errors.New("nonce too low")
	_, err = env.svc.GenerateCodes(context.Background(), env.wallet, 1, 2)
	require.Error(t, err)
	require.NoError(t, testutil.GatherAndCompare(env.reg, strings.NewReader(`
# HELP snap_codes_generated_total claim codes registered on chain and recorded in the mirror
# TYPE snap_codes_generated_total counter
snap_codes_generated_total 3
`), "snap_codes_generated_total"))
}

func TestCreateSeries(t *testing.T) {
	env := newTestEnv(t)
	in := series.SeriesInput{
		Artwork:     upload.File{Filename: "art.png", Data: []byte("\x89PNG\r\n\x1a\nrest")},
		Name:        "Sneaker",
		Description: "Limited run",
		MaxSupply:   100,
		BatchNumber: 1,
	}
	created, err := env.svc.CreateSeries(context.Background(), env.wallet, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"series-artwork-Sneaker"}, env.uploader.names)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/bafytest", created.ImageURI)
	assert.Equal(t, uint64(1), created.Event.SeriesID)

	s, err := env.chain.ReadSeries(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, created.ImageURI, s.ImageURI)
	assert.Equal(t, uint64(100), s.MaxSupply)
}

func TestCreateSeriesValidation(t *testing.T) {
	valid := series.SeriesInput{
		Artwork:     upload.File{Data: []byte("x")},
		Name:        "Sneaker",
		Description: "Limited run",
		MaxSupply:   100,
		BatchNumber: 1,
	}
	tests := []struct {
		field  string
		mutate func(*series.SeriesInput)
	}{
		{"name", func(in *series.SeriesInput) { in.Name = " " }},
		{"description", func(in *series.SeriesInput) { in.Description = "" }},
		{"maxSupply", func(in *series.SeriesInput) { in.MaxSupply = 0 }},
		{"batchNumber", func(in *series.SeriesInput) { in.BatchNumber = 0 }},
		{"artwork", func(in *series.SeriesInput) { in.Artwork = upload.File{} }},
	}
	for _, tc := range tests {
		t.Run(tc.field, func(t *testing.T) {
			env := newTestEnv(t)
			in := valid
			tc.mutate(&in)
			_, err := env.svc.CreateSeries(context.Background(), env.wallet, in)
			var verr *series.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Empty(t, env.uploader.names)
		})
	}
}

func TestCreateSeriesUploadFailureSkipsChain(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.err = &upload.Error{
		Name:       "series-artwork-Sneaker",
		StatusCode: 401,
		Err:        errors.New("unauthorized"),
	}
	_, err := env.svc.CreateSeries(context.Background(), env.wallet, series.SeriesInput{
		Artwork:     upload.File{Data: []byte("x")},
		Name:        "Sneaker",
		Description: "Limited run",
		MaxSupply:   1,
		BatchNumber: 1,
	})
	var uerr *upload.Error
	require.ErrorAs(t, err, &uerr)
	total, err := env.chain.TotalSeries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDetail(t *testing.T) {
	env := newTestEnv(t)
	env.chain.series[4] = &chain.Series{ID: 4, SeriesName: "Watch", BrandOwner: brandOwner}
	env.chain.claimers[4] = []common.Address{common.HexToAddress("0x01")}
	env.seedCodes(t, 4, 2)

	owner, err := env.svc.Detail(context.Background(), 4, strings.ToLower(brandOwner.Hex()))
	require.NoError(t, err)
	assert.True(t, owner.IsOwner)
	assert.Len(t, owner.Codes, 2)
	assert.Len(t, owner.Claimers, 1)
	assert.Equal(t, "Watch", owner.Series.SeriesName)

	public, err := env.svc.Detail(context.Background(), 4, "")
	require.NoError(t, err)
	assert.False(t, public.IsOwner)
	assert.Empty(t, public.Codes)

	_, err = env.svc.Detail(context.Background(), 99, "")
	assert.ErrorIs(t, err, chain.ErrSeriesNotFound)
}

func TestToggleStatus(t *testing.T) {
	env := newTestEnv(t)
	env.chain.series[1] = &chain.Series{ID: 1, BrandOwner: brandOwner, IsActive: true}
	s, err := env.svc.ToggleStatus(context.Background(), env.wallet, 1)
	require.NoError(t, err)
	assert.False(t, s.IsActive)

	_, err = env.svc.ToggleStatus(context.Background(), env.wallet, 2)
	assert.True(t, series.IsRejected(err))
}

func TestReadViews(t *testing.T) {
	env := newTestEnv(t)
	env.chain.series[1] = &chain.Series{ID: 1, BrandOwner: brandOwner}
	env.chain.series[2] = &chain.Series{ID: 2, BrandOwner: common.HexToAddress("0x02")}
	env.chain.series[3] = &chain.Series{ID: 3, BrandOwner: brandOwner}
	ctx := context.Background()

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalSeries)
	assert.Equal(t, uint64(12), stats.TotalNFTsMinted)

	tok, err := env.svc.Token(ctx, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafy/5.json", tok.URI)
	assert.Equal(t, brandOwner, tok.Owner)
	_, err = env.svc.Token(ctx, big.NewInt(-1))
	var verr *series.ValidationError
	require.ErrorAs(t, err, &verr)

	owned, err := env.svc.BrandSeries(ctx, brandOwner)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, uint64(1), owned[0].ID)
	assert.Equal(t, uint64(3), owned[1].ID)

	balance, err := env.svc.Balance(ctx, brandOwner)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), balance)
}

func TestNotConfigured(t *testing.T) {
	svc := series.New()
	_, err := svc.GenerateCodes(context.Background(), nil, 1, 1)
	assert.ErrorIs(t, err, series.ErrNotConfigured)
	_, err = svc.Stats(context.Background())
	assert.ErrorIs(t, err, series.ErrNotConfigured)
	_, err = svc.Codes(context.Background(), 1)
	assert.ErrorIs(t, err, series.ErrNotConfigured)
	_, err = svc.Token(context.Background(), big.NewInt(1))
	assert.ErrorIs(t, err, series.ErrNotConfigured)
}
