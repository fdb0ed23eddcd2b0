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
	"fmt"
	"math/big"

	"github.com/blinklabs-io/snap"
	"github.com/blinklabs-io/snap/brand"
	"github.com/blinklabs-io/snap/chain"
	"github.com/spf13/cobra"
)

func brandCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brand",
		Short: "Register and inspect brands",
	}
	var (
		input    brand.BrandInput
		logoPath string
	)
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Upload a logo and register the wallet as a brand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logo, err := readUploadFile(logoPath)
			if err != nil {
				return err
			}
			input.Logo = logo
			return withApp(cmd, func(ctx context.Context, app *snap.App) error {
				wallet, err := requireWallet(app)
				if err != nil {
					return err
				}
				evt, err := app.Brands().Register(ctx, wallet, input)
				if err != nil {
					return err
				}
				return printJSON(cmd, evt)
			})
		},
	}
	registerCmd.Flags().StringVar(&input.Name, "name", "", "brand name")
	registerCmd.Flags().StringVar(&input.Description, "description", "", "brand description")
	registerCmd.Flags().StringVar(&logoPath, "logo", "", "logo image file")

	cmd.AddCommand(
		registerCmd,
		&cobra.Command{
			Use:   "show <address>",
			Short: "Show a registered brand and its series",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := chain.ParseAddress(args[0])
				if err != nil {
					return err
				}
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					b, err := app.Brands().Get(ctx, addr)
					if err != nil {
						return err
					}
					seriesList, err := app.Series().BrandSeries(ctx, addr)
					if err != nil {
						return err
					}
					return printJSON(cmd, map[string]any{
						"brand":  b,
						"series": seriesList,
					})
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all registered brands",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					brands, err := app.Brands().All(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, brands)
				})
			},
		},
		&cobra.Command{
			Use:   "fee",
			Short: "Show the registration fee in wei",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					fee, err := app.Brands().Fee(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), fee.String())
					return nil
				})
			},
		},
		brandAdminCommand(),
	)
	return cmd
}

// brandAdminCommand holds the registry owner operations
func brandAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Brand registry owner operations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-fee <wei>",
			Short: "Change the registration fee",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fee, ok := new(big.Int).SetString(args[0], 10)
				if !ok || fee.Sign() < 0 {
					return fmt.Errorf("invalid fee %q", args[0])
				}
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					wallet, err := requireWallet(app)
					if err != nil {
						return err
					}
					evt, err := app.Brands().UpdateFee(ctx, wallet, fee)
					if err != nil {
						return err
					}
					return printJSON(cmd, evt)
				})
			},
		},
		&cobra.Command{
			Use:   "withdraw",
			Short: "Withdraw collected fees to the owner",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					wallet, err := requireWallet(app)
					if err != nil {
						return err
					}
					tx, err := app.Brands().Withdraw(ctx, wallet)
					if err != nil {
						return err
					}
					return printJSON(cmd, tx)
				})
			},
		},
		&cobra.Command{
			Use:   "transfer-ownership <address>",
			Short: "Hand the registry to a new owner",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				newOwner, err := chain.ParseAddress(args[0])
				if err != nil {
					return err
				}
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					wallet, err := requireWallet(app)
					if err != nil {
						return err
					}
					tx, err := app.Brands().TransferOwnership(ctx, wallet, newOwner)
					if err != nil {
						return err
					}
					return printJSON(cmd, tx)
				})
			},
		},
	)
	return cmd
}
