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

package snap

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/internal/test/testutil"
	"github.com/blinklabs-io/snap/reconcile"
	"github.com/blinklabs-io/snap/series"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend satisfies chain.Backend. Calls that reach the chain panic, so
// tests using it must stay on paths the claim store answers alone.
type stubBackend struct {
	chain.Backend
}

func newTestConfig(t *testing.T, opts ...ConfigOptionFunc) Config {
	t.Helper()
	base := []ConfigOptionFunc{
		WithChainBackend(stubBackend{}),
		WithDatabasePath(t.TempDir()),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	}
	return NewConfig(append(base, opts...)...)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []ConfigOptionFunc
	}{
		{
			name: "redis lock without URL",
			opts: []ConfigOptionFunc{
				WithChainBackend(stubBackend{}),
				WithSeriesLock(series.LockRedis, "", 0),
			},
		},
		{
			name: "unknown lock mode",
			opts: []ConfigOptionFunc{
				WithChainBackend(stubBackend{}),
				WithSeriesLock("zookeeper", "", 0),
			},
		},
		{
			name: "no chain",
			opts: []ConfigOptionFunc{
				WithChainConfig(chain.Config{}),
			},
		},
		{
			name: "negative sweep",
			opts: []ConfigOptionFunc{
				WithChainBackend(stubBackend{}),
				WithSweep(-time.Second, 10),
			},
		},
		{
			name: "both jwt keys",
			opts: []ConfigOptionFunc{
				WithChainBackend(stubBackend{}),
				WithJwtSecret("secret"),
				WithJwtPublicKeyFile("key.pem"),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(NewConfig(tc.opts...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestNewDefaults(t *testing.T) {
	app, err := New(NewConfig())
	require.NoError(t, err)
	assert.Nil(t, app.Wallet())
	assert.Nil(t, app.ApiAddr())
	assert.NotNil(t, app.EventBus())
	require.NoError(t, app.Stop())
}

func TestOpenWiresServices(t *testing.T) {
	app, err := New(newTestConfig(t))
	require.NoError(t, err)
	require.NoError(t, app.Open(context.Background()))
	// Opening twice is a no-op
	require.NoError(t, app.Open(context.Background()))
	t.Cleanup(func() { _ = app.Stop() })

	require.NotNil(t, app.Database())
	require.NotNil(t, app.Chain())
	require.NotNil(t, app.Reconciler())
	require.NotNil(t, app.Series())
	require.NotNil(t, app.Brands())
	require.NotNil(t, app.Uploader())

	res, err := app.Reconciler().ResolveClaimState(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, reconcile.ClaimStateInvalid, res.State)
}

func TestOpenBadKeyFile(t *testing.T) {
	chainCfg := chain.DefaultConfig()
	chainCfg.KeyFile = filepath.Join(t.TempDir(), "missing.skey")
	app, err := New(newTestConfig(t, WithChainConfig(chainCfg)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop() })
	err = app.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load wallet")
}

func TestRunServesApiUntilStopped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix socket listener")
	}
	socketPath := filepath.Join(t.TempDir(), "snap.sock")
	app, err := New(newTestConfig(
		t,
		WithApi("", 0),
		WithApiSocketPath(socketPath),
		WithShutdownTimeout(5*time.Second),
	))
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() {
		runErr <- app.Run(context.Background())
	}()
	testutil.WaitForCondition(t, func() bool {
		return app.ApiAddr() != nil
	}, 5*time.Second, "API server did not start")

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
	resp, err := client.Get("http://snap/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	require.NoError(t, app.Stop())
	require.NoError(t, app.Stop())
	err = testutil.RequireReceive(t, runErr, 5*time.Second, "Run did not return after Stop")
	require.NoError(t, err)
}
