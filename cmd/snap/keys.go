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
	"fmt"

	"github.com/blinklabs-io/snap/keystore"
	"github.com/spf13/cobra"
)

func keysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage wallet key files",
	}
	var (
		description string
		encrypt     bool
	)
	generateCmd := &cobra.Command{
		Use:   "generate <path>",
		Short: "Write a new random wallet key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := keystore.GenerateKeyFile(args[0], description)
			if err != nil {
				return err
			}
			if encrypt {
				if err := keystore.EncryptKeyFile(args[0]); err != nil {
					return fmt.Errorf("key written unencrypted: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
			return nil
		},
	}
	generateCmd.Flags().StringVar(&description, "description", "", "key description")
	generateCmd.Flags().BoolVar(&encrypt, "encrypt", false, "encrypt the new key with SOPS")

	cmd.AddCommand(
		generateCmd,
		&cobra.Command{
			Use:   "encrypt <path>",
			Short: "Encrypt a plain key file in place with SOPS",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return keystore.EncryptKeyFile(args[0])
			},
		},
		&cobra.Command{
			Use:   "address <path>",
			Short: "Show the address of a key file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				wallet, err := keystore.LoadWallet(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), wallet.Address().Hex())
				return nil
			},
		},
	)
	return cmd
}
