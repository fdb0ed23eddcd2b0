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

package blob_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentID(t *testing.T) {
	// sha256("hello")
	assert.Equal(
		t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		blob.ContentID([]byte("hello")),
	)
	assert.True(t, blob.ValidContentID(blob.ContentID([]byte("x"))))
	assert.False(t, blob.ValidContentID("abc"))
	assert.False(t, blob.ValidContentID(strings.Repeat("zz", 32)))
	assert.False(t, blob.ValidContentID("../../etc/passwd"))
}

func TestHTTPError(t *testing.T) {
	err := &blob.HTTPError{StatusCode: 401, Message: "invalid token"}
	assert.Equal(t, "storage API returned HTTP 401: invalid token", err.Error())
	assert.Equal(
		t,
		"storage API returned HTTP 500",
		(&blob.HTTPError{StatusCode: 500}).Error(),
	)
}

func TestNewUnknownPlugin(t *testing.T) {
	_, err := blob.New("does-not-exist", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blob plugin 'does-not-exist' not found")
}

func TestMetricsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1 := blob.RegisterMetrics(reg)
	m2 := blob.RegisterMetrics(reg)
	assert.Same(t, m1, m2)

	m1.Observe("s3", "put", 10, nil)
	m1.Observe("s3", "put", 0, errors.New("boom"))
	m1.Observe("s3", "get", 0, blob.ErrObjectNotFound)

	count, err := testutil.GatherAndCount(reg, "snap_blob_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var nilMetrics *blob.Metrics
	assert.NotPanics(t, func() { nilMetrics.Observe("s3", "put", 1, nil) })
	assert.Nil(t, blob.RegisterMetrics(nil))
}
