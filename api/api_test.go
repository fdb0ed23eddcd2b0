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

package api_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/snap/api"
	"github.com/blinklabs-io/snap/brand"
	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/blinklabs-io/snap/reconcile"
	"github.com/blinklabs-io/snap/series"
	"github.com/blinklabs-io/snap/upload"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeClaims struct {
	resolution *reconcile.ClaimResolution
	resolveErr error
}

func (f *fakeClaims) ResolveClaimState(
	_ context.Context,
	code string,
) (*reconcile.ClaimResolution, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	res := *f.resolution
	res.Code = code
	return &res, nil
}

type fakeSeries struct {
	codes      []models.ClaimLink
	detail     *series.Detail
	createErr  error
	codesErr   error
	gotInput   series.SeriesInput
	gotCount   int
	gotViewer  string
	toggledIDs []uint64
}

func (f *fakeSeries) GenerateCodes(
	_ context.Context,
	_ *chain.Wallet,
	_ uint64,
	count int,
) ([]models.ClaimLink, error) {
	f.gotCount = count
	if f.codesErr != nil {
		return nil, f.codesErr
	}
	return f.codes, nil
}

func (f *fakeSeries) Codes(_ context.Context, _ uint64) ([]models.ClaimLink, error) {
	return f.codes, nil
}

func (f *fakeSeries) CreateSeries(
	_ context.Context,
	_ *chain.Wallet,
	in series.SeriesInput,
) (*series.Created, error) {
	f.gotInput = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &series.Created{
		Event: &chain.SeriesCreatedEvent{
			SeriesID:   9,
			SeriesName: in.Name,
			MaxSupply:  in.MaxSupply,
		},
		ImageURI: "ipfs://artwork",
	}, nil
}

func (f *fakeSeries) Detail(
	_ context.Context,
	seriesID uint64,
	viewer string,
) (*series.Detail, error) {
	f.gotViewer = viewer
	if seriesID == 404 {
		return nil, chain.ErrSeriesNotFound
	}
	return f.detail, nil
}

func (f *fakeSeries) ToggleStatus(
	_ context.Context,
	_ *chain.Wallet,
	seriesID uint64,
) (*chain.Series, error) {
	f.toggledIDs = append(f.toggledIDs, seriesID)
	return &chain.Series{ID: seriesID, IsActive: false}, nil
}

func (f *fakeSeries) Stats(_ context.Context) (*series.Stats, error) {
	return &series.Stats{TotalSeries: 3, TotalNFTsMinted: 17}, nil
}

func (f *fakeSeries) Token(_ context.Context, tokenID *big.Int) (*series.Token, error) {
	return &series.Token{ID: tokenID.String(), URI: "ipfs://token"}, nil
}

type fakeBrands struct {
	brands map[common.Address]*chain.Brand
	regErr error
}

func (f *fakeBrands) Register(
	_ context.Context,
	_ *chain.Wallet,
	in brand.BrandInput,
) (*chain.BrandRegisteredEvent, error) {
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &chain.BrandRegisteredEvent{BrandName: in.Name, Fee: big.NewInt(10)}, nil
}

func (f *fakeBrands) Get(_ context.Context, addr common.Address) (*chain.Brand, error) {
	b, ok := f.brands[addr]
	if !ok {
		return nil, chain.ErrBrandNotFound
	}
	return b, nil
}

func (f *fakeBrands) All(_ context.Context) ([]*chain.Brand, error) {
	ret := make([]*chain.Brand, 0, len(f.brands))
	for _, b := range f.brands {
		ret = append(ret, b)
	}
	return ret, nil
}

func (f *fakeBrands) Fee(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000_000_000), nil
}

type fakeObjects struct {
	objects map[string]*blob.Object
}

func (f *fakeObjects) GetObject(_ context.Context, cid string) (*blob.Object, error) {
	obj, ok := f.objects[cid]
	if !ok {
		return nil, blob.ErrObjectNotFound
	}
	return obj, nil
}

type testEnv struct {
	claims  *fakeClaims
	series  *fakeSeries
	brands  *fakeBrands
	objects *fakeObjects
	handler http.Handler
}

func testWallet(t *testing.T) *chain.Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet, err := chain.NewWallet(key)
	require.NoError(t, err)
	return wallet
}

func newTestEnv(t *testing.T, withWallet bool) *testEnv {
	t.Helper()
	env := &testEnv{
		claims: &fakeClaims{
			resolution: &reconcile.ClaimResolution{
				State:      reconcile.ClaimStateClaimable,
				SeriesID:   1,
				SeriesName: "Sneakers",
				IsActive:   true,
			},
		},
		series: &fakeSeries{
			codes: []models.ClaimLink{
				{ClaimCode: "code-2", SeriesID: 1, SerialNumber: 2},
				{ClaimCode: "code-1", SeriesID: 1, SerialNumber: 1},
			},
			detail: &series.Detail{Series: &chain.Series{ID: 1, SeriesName: "Sneakers"}},
		},
		brands:  &fakeBrands{brands: map[common.Address]*chain.Brand{}},
		objects: &fakeObjects{objects: map[string]*blob.Object{}},
	}
	auth, err := api.NewHMACAuthenticator(testSecret)
	require.NoError(t, err)
	cfg := api.Config{
		Claims:  env.claims,
		Series:  env.series,
		Brands:  env.brands,
		Objects: env.objects,
		Auth:    auth,
	}
	if withWallet {
		cfg.Wallet = testWallet(t)
	}
	env.handler = api.New(cfg).Handler()
	return env
}

func hmacToken(t *testing.T, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, req *http.Request, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	if authed {
		req.Header.Set("Authorization", "Bearer "+hmacToken(t, time.Now().Add(time.Hour)))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var ret map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret), rec.Body.String())
	return ret
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	code, _ := e["code"].(string)
	return code
}

func multipartBody(
	t *testing.T,
	fileField string,
	fileData []byte,
	fields map[string]string,
) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="art.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestResolveClaim(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/claims/abc-123", nil), false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "claimable", body["state"])
	assert.Equal(t, "abc-123", body["code"])
	assert.Equal(t, "Sneakers", body["seriesName"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestResolveClaimError(t *testing.T) {
	env := newTestEnv(t, false)
	env.claims.resolveErr = errors.New("node unreachable")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/claims/abc", nil), false)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", errorCode(t, rec))
}

func TestWriteRoutesNeedWallet(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/series/1/codes", strings.NewReader(`{"count":2}`)), true)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, env.series.gotCount)
	// Read routes are still served
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/stats", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRedeemNotServed(t *testing.T) {
	// Redemption mints to the signer, so only the claimant's own key may
	// redeem. The server wallet never redeems on a caller's behalf.
	env := newTestEnv(t, true)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/claims/abc/redeem", nil), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/v1/claims/abc", nil), true)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	// Resolution is unaffected
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/claims/abc", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSeriesDetail(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(
		t,
		httptest.NewRequest(http.MethodGet, "/v1/series/1?viewer=0xabc", nil),
		false,
	)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xabc", env.series.gotViewer)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/series/404", nil), false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/series/nope", nil), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCodesRequiresToken(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/series/1/codes", nil), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/series/1/codes", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	codes := decode(t, rec)["codes"].([]any)
	require.Len(t, codes, 2)
	assert.Equal(t, "code-2", codes[0].(map[string]any)["claim_code"])
}

func TestGenerateCodes(t *testing.T) {
	env := newTestEnv(t, true)
	req := httptest.NewRequest(http.MethodPost, "/v1/series/1/codes", strings.NewReader(`{"count":5}`))
	rec := env.do(t, req, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 5, env.series.gotCount)

	env.series.codesErr = &series.ValidationError{Field: "count", Reason: "must be between 1 and 500"}
	req = httptest.NewRequest(http.MethodPost, "/v1/series/1/codes", strings.NewReader(`{"count":0}`))
	rec = env.do(t, req, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", errorCode(t, rec))

	req = httptest.NewRequest(http.MethodPost, "/v1/series/1/codes", strings.NewReader(`{`))
	rec = env.do(t, req, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateCodesPersistenceFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.series.codesErr = &series.PersistenceError{
		Err:      errors.New("disk full"),
		Codes:    []string{"c1", "c2"},
		SeriesID: 1,
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/series/1/codes", strings.NewReader(`{"count":2}`))
	rec := env.do(t, req, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, []any{"c1", "c2"}, data["codes"])
}

func TestGenerateCodesRejected(t *testing.T) {
	env := newTestEnv(t, true)
	env.series.codesErr = &series.RejectedError{
		Err:       errors.New("not series owner"),
		Operation: "generate claim links",
		SeriesID:  1,
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/series/1/codes", strings.NewReader(`{"count":2}`))
	rec := env.do(t, req, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "rejected", errorCode(t, rec))
}

func TestCreateSeries(t *testing.T) {
	env := newTestEnv(t, true)
	body, contentType := multipartBody(t, "artwork", []byte("png-bytes"), map[string]string{
		"name":        "Sneakers",
		"description": "Limited run",
		"maxSupply":   "100",
		"batchNumber": "7",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/series", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(t, req, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Sneakers", env.series.gotInput.Name)
	assert.EqualValues(t, 100, env.series.gotInput.MaxSupply)
	assert.EqualValues(t, 7, env.series.gotInput.BatchNumber)
	assert.Equal(t, []byte("png-bytes"), env.series.gotInput.Artwork.Data)
	assert.Equal(t, "image/png", env.series.gotInput.Artwork.ContentType)
	assert.Equal(t, "ipfs://artwork", decode(t, rec)["imageURI"])
}

func TestCreateSeriesBadInput(t *testing.T) {
	env := newTestEnv(t, true)
	tests := []struct {
		name      string
		fileField string
		fields    map[string]string
	}{
		{
			name:   "no artwork",
			fields: map[string]string{"name": "x", "maxSupply": "1", "batchNumber": "1"},
		},
		{
			name:      "bad supply",
			fileField: "artwork",
			fields:    map[string]string{"name": "x", "maxSupply": "-1", "batchNumber": "1"},
		},
		{
			name:      "missing batch",
			fileField: "artwork",
			fields:    map[string]string{"name": "x", "maxSupply": "1"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.fileField, []byte("png"), tc.fields)
			req := httptest.NewRequest(http.MethodPost, "/v1/series", body)
			req.Header.Set("Content-Type", contentType)
			rec := env.do(t, req, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateSeriesUploadFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.series.createErr = &upload.Error{
		Name:       "series-artwork-Sneakers",
		StatusCode: http.StatusUnauthorized,
		Err:        errors.New("unauthorized"),
	}
	body, contentType := multipartBody(t, "artwork", []byte("png"), map[string]string{
		"name":        "Sneakers",
		"description": "Limited run",
		"maxSupply":   "100",
		"batchNumber": "7",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/series", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(t, req, true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upload_failed", errorCode(t, rec))
}

func TestToggleSeries(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/series/3/toggle", nil), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint64{3}, env.series.toggledIDs)
	assert.Equal(t, false, decode(t, rec)["isActive"])
}

func TestStatsAndToken(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/stats", nil), false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["totalSeries"])
	assert.EqualValues(t, 17, body["totalNFTsMinted"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/tokens/12", nil), false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12", decode(t, rec)["id"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/tokens/-1", nil), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrands(t *testing.T) {
	env := newTestEnv(t, true)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	env.brands.brands[addr] = &chain.Brand{Address: addr, BrandName: "Acme"}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/brands/"+addr.Hex(), nil), false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme", decode(t, rec)["brandName"])

	other := "0x00000000000000000000000000000000000000bb"
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/brands/"+other, nil), false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/brands/not-an-address", nil), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/brands/fee", nil), false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000000000000000", decode(t, rec)["fee"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/brands", nil), false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["brands"], 1)
}

func TestRegisterBrand(t *testing.T) {
	env := newTestEnv(t, true)
	body, contentType := multipartBody(t, "logo", []byte("png"), map[string]string{
		"name":        "Acme",
		"description": "Shoes",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/brands", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(t, req, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Acme", decode(t, rec)["brandName"])

	env.brands.regErr = &brand.RejectedError{
		Err:       errors.New("brand already registered"),
		Operation: "register brand",
	}
	body, contentType = multipartBody(t, "logo", []byte("png"), map[string]string{
		"name":        "Acme",
		"description": "Shoes",
	})
	req = httptest.NewRequest(http.MethodPost, "/v1/brands", body)
	req.Header.Set("Content-Type", contentType)
	rec = env.do(t, req, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetObject(t *testing.T) {
	env := newTestEnv(t, false)
	data := []byte("logo bytes")
	cid := blob.ContentID(data)
	env.objects.objects[cid] = &blob.Object{Name: "brand-logo-Acme", ContentType: "image/png", Data: data}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/objects/"+cid, nil), false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	missing := blob.ContentID([]byte("other"))
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/objects/"+missing, nil), false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/objects/xyz", nil), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGRPCHealth(t *testing.T) {
	env := newTestEnv(t, false)
	req := httptest.NewRequest(
		http.MethodPost,
		"/grpc.health.v1.Health/Check",
		strings.NewReader(`{"service":"`+api.HealthServiceName+`"}`),
	)
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "SERVING")
}

func TestRSAAuthenticator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	auth, err := api.NewRSAAuthenticator(pubPEM, api.WithIssuer("snap-admin"))
	require.NoError(t, err)

	sign := func(issuer string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return signed
	}
	claims, err := auth.Validate(sign("snap-admin"))
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)

	_, err = auth.Validate(sign("someone-else"))
	require.ErrorIs(t, err, api.ErrUnauthorized)

	// An HS256 token must not pass an RS256 authenticator
	_, err = auth.Validate(hmacToken(t, time.Now().Add(time.Hour)))
	require.ErrorIs(t, err, api.ErrUnauthorized)

	_, err = api.NewRSAAuthenticator([]byte("not pem"))
	require.Error(t, err)
}

func TestAuthenticatorFromConfig(t *testing.T) {
	auth, err := api.NewAuthenticatorFromConfig("", "", "")
	require.NoError(t, err)
	assert.Nil(t, auth)

	auth, err = api.NewAuthenticatorFromConfig(testSecret, "", "")
	require.NoError(t, err)
	_, err = auth.Validate(hmacToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = api.NewAuthenticatorFromConfig("", filepath.Join(t.TempDir(), "missing.pem"), "")
	require.Error(t, err)
}

func TestServerStartStop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix socket listener")
	}
	socketPath := filepath.Join(t.TempDir(), "api.sock")
	env := newTestEnv(t, false)
	srv := api.New(api.Config{Claims: env.claims, SocketPath: socketPath})
	require.NoError(t, srv.Start(context.Background()))
	require.Error(t, srv.Start(context.Background()))
	require.NotNil(t, srv.Addr())

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
	resp, err := client.Get("http://snap/v1/claims/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, _ = io.Copy(io.Discard, resp.Body)
	client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))
	assert.Nil(t, srv.Addr())
}
