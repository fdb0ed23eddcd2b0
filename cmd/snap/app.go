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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/blinklabs-io/snap"
	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/internal/config"
	"github.com/blinklabs-io/snap/internal/node"
	"github.com/blinklabs-io/snap/upload"
	"github.com/spf13/cobra"
)

var errNoWallet = errors.New(
	"no wallet configured, set chain.keyFile or pass --key-file",
)

// withApp opens the app for a one-shot command. Logs go to stderr so that
// stdout carries only the command's output.
func withApp(
	cmd *cobra.Command,
	fn func(ctx context.Context, app *snap.App) error,
) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	logger := commonRun(os.Stderr)
	app, err := node.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
		}
	}()
	return fn(cmd.Context(), app)
}

func requireWallet(app *snap.App) (*chain.Wallet, error) {
	if app.Wallet() == nil {
		return nil, errNoWallet
	}
	return app.Wallet(), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseSeriesID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid series id %q", raw)
	}
	return id, nil
}

func readUploadFile(path string) (upload.File, error) {
	if path == "" {
		return upload.File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return upload.File{}, err
	}
	return upload.File{
		Filename: filepath.Base(path),
		Data:     data,
	}, nil
}
