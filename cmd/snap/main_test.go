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

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blinklabs-io/snap/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Keep config discovery away from the real home directory
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListPlugins(t *testing.T) {
	shouldExit, output := listPlugins("list", "sqlite")
	assert.True(t, shouldExit)
	assert.Contains(t, output, "Available blob plugins:")
	assert.Contains(t, output, "badger")
	assert.NotContains(t, output, "metadata plugins")

	shouldExit, output = listPlugins("badger", "sqlite")
	assert.False(t, shouldExit)
	assert.Empty(t, output)
}

func TestListCommand(t *testing.T) {
	out, err := runCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Blob Storage Plugins:")
	assert.Contains(t, out, "Metadata Storage Plugins:")
	assert.Contains(t, out, "sqlite")
	assert.Contains(t, out, "postgres")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "snap "))
}

func TestKeysGenerateAndAddress(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "wallet.skey")
	out, err := runCommand(t, "keys", "generate", keyPath, "--description", "test")
	require.NoError(t, err)
	addr := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(addr, "0x"))

	wallet, err := keystore.LoadWallet(keyPath)
	require.NoError(t, err)
	assert.Equal(t, addr, wallet.Address().Hex())

	out, err = runCommand(t, "keys", "address", keyPath)
	require.NoError(t, err)
	assert.Equal(t, addr, strings.TrimSpace(out))

	// Existing keys are never overwritten
	_, err = runCommand(t, "keys", "generate", keyPath)
	require.ErrorIs(t, err, keystore.ErrKeyFileExists)
}

func TestParseSeriesID(t *testing.T) {
	id, err := parseSeriesID("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	_, err = parseSeriesID("-1")
	require.Error(t, err)
}

func TestReadUploadFile(t *testing.T) {
	f, err := readUploadFile("")
	require.NoError(t, err)
	assert.Empty(t, f.Data)
	_, err = readUploadFile(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}
