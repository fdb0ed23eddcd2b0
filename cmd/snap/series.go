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
	"errors"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/snap"
	"github.com/blinklabs-io/snap/series"
	"github.com/spf13/cobra"
)

func codesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Generate and list claim codes of a series",
	}
	var count int
	generateCmd := &cobra.Command{
		Use:   "generate <series-id>",
		Short: "Generate a batch of claim codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seriesID, err := parseSeriesID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *snap.App) error {
				wallet, err := requireWallet(app)
				if err != nil {
					return err
				}
				links, err := app.Series().GenerateCodes(ctx, wallet, seriesID, count)
				if err != nil {
					var persistErr *series.PersistenceError
					if errors.As(err, &persistErr) {
						// The codes exist on chain, so hand them out anyway
						fmt.Fprintf(
							cmd.ErrOrStderr(),
							"warning: codes registered on chain but not saved locally: %s\n",
							persistErr.Err,
						)
						_ = printJSON(cmd, persistErr.Codes)
					}
					return err
				}
				return printJSON(cmd, links)
			})
		},
	}
	generateCmd.Flags().IntVarP(&count, "count", "n", 1, "number of codes")
	cmd.AddCommand(
		generateCmd,
		&cobra.Command{
			Use:   "list <series-id>",
			Short: "List the stored claim codes of a series",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				seriesID, err := parseSeriesID(args[0])
				if err != nil {
					return err
				}
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					links, err := app.Series().Codes(ctx, seriesID)
					if err != nil {
						return err
					}
					return printJSON(cmd, links)
				})
			},
		},
	)
	return cmd
}

func seriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Create and inspect product series",
	}
	var (
		input       series.SeriesInput
		artworkPath string
		viewer      string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Upload artwork and create a new series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			artwork, err := readUploadFile(artworkPath)
			if err != nil {
				return err
			}
			input.Artwork = artwork
			return withApp(cmd, func(ctx context.Context, app *snap.App) error {
				wallet, err := requireWallet(app)
				if err != nil {
					return err
				}
				created, err := app.Series().CreateSeries(ctx, wallet, input)
				if err != nil {
					return err
				}
				return printJSON(cmd, created)
			})
		},
	}
	createCmd.Flags().StringVar(&input.Name, "name", "", "series name")
	createCmd.Flags().StringVar(&input.Description, "description", "", "series description")
	createCmd.Flags().Uint64Var(&input.MaxSupply, "max-supply", 0, "maximum number of tokens")
	createCmd.Flags().Uint64Var(&input.BatchNumber, "batch", 0, "production batch number")
	createCmd.Flags().StringVar(&artworkPath, "artwork", "", "artwork image file")

	showCmd := &cobra.Command{
		Use:   "show <series-id>",
		Short: "Show a series and its code counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seriesID, err := parseSeriesID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *snap.App) error {
				detail, err := app.Series().Detail(ctx, seriesID, viewer)
				if err != nil {
					return err
				}
				return printJSON(cmd, detail)
			})
		},
	}
	showCmd.Flags().StringVar(&viewer, "viewer", "", "address to view the series as")

	cmd.AddCommand(
		createCmd,
		showCmd,
		&cobra.Command{
			Use:   "toggle <series-id>",
			Short: "Flip the active flag of a series",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				seriesID, err := parseSeriesID(args[0])
				if err != nil {
					return err
				}
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					wallet, err := requireWallet(app)
					if err != nil {
						return err
					}
					s, err := app.Series().ToggleStatus(ctx, wallet, seriesID)
					if err != nil {
						return err
					}
					return printJSON(cmd, s)
				})
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show collection totals",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					stats, err := app.Series().Stats(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, stats)
				})
			},
		},
		&cobra.Command{
			Use:   "token <token-id>",
			Short: "Show a minted token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tokenID, ok := new(big.Int).SetString(args[0], 10)
				if !ok || tokenID.Sign() < 0 {
					return fmt.Errorf("invalid token id %q", args[0])
				}
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					token, err := app.Series().Token(ctx, tokenID)
					if err != nil {
						return err
					}
					return printJSON(cmd, token)
				})
			},
		},
	)
	return cmd
}
