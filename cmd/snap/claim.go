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

	"github.com/blinklabs-io/snap"
	"github.com/blinklabs-io/snap/reconcile"
	"github.com/spf13/cobra"
)

func claimCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Look up and redeem claim codes",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "resolve <code>",
			Short: "Show whether a claim code can be redeemed",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					res, err := app.Reconciler().ResolveClaimState(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd, res)
				})
			},
		},
		&cobra.Command{
			Use:   "redeem <code>",
			Short: "Redeem a claim code to the configured wallet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, app *snap.App) error {
					wallet, err := requireWallet(app)
					if err != nil {
						return err
					}
					red, err := app.Reconciler().Redeem(ctx, wallet, args[0])
					var persistErr *reconcile.PersistenceError
					var unconfirmedErr *reconcile.UnconfirmedError
					switch {
					case err == nil:
					case errors.As(err, &unconfirmedErr):
						fmt.Fprintf(
							cmd.ErrOrStderr(),
							"warning: claim mined in %s but the token id could not be read; do not retry\n",
							unconfirmedErr.TxHash.Hex(),
						)
					case errors.As(err, &persistErr):
						fmt.Fprintf(
							cmd.ErrOrStderr(),
							"warning: claim recorded on chain but not in the local mirror: %s\n",
							persistErr.Err,
						)
					default:
						if red != nil && red.Rejected {
							_ = printJSON(cmd, red)
						}
						return err
					}
					return printJSON(cmd, red)
				})
			},
		},
	)
	return cmd
}

func reconcileCommand() *cobra.Command {
	var pageSize int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair mirror rows for codes the chain reports as claimed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *snap.App) error {
				res, err := app.Reconciler().Sweep(ctx, pageSize)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "rows checked per page")
	return cmd
}
