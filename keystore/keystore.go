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

// Package keystore loads the wallet used to sign SNAP transactions from a
// key file on disk. Key files must not be readable by group or other and may
// be encrypted with SOPS.
package keystore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database/sops"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Common errors returned by KeyStore operations.
var (
	ErrKeyNotLoaded     = errors.New("wallet key not loaded")
	ErrNoKeyFile        = errors.New("no wallet key file configured")
	ErrInsecureFileMode = errors.New("insecure file permissions")
	ErrKeyFileExists    = errors.New("key file already exists")
)

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	// KeyFile is the path to the wallet key file
	KeyFile string
	Logger  *slog.Logger
}

// KeyStore holds the wallet loaded from the configured key file
type KeyStore struct {
	config KeyStoreConfig
	logger *slog.Logger

	mu     sync.RWMutex
	wallet *chain.Wallet
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) *KeyStore {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &KeyStore{
		config: config,
		logger: config.Logger.With("component", "keystore"),
	}
}

// Load reads the key file and builds the wallet
func (ks *KeyStore) Load() error {
	if ks.config.KeyFile == "" {
		return ErrNoKeyFile
	}
	key, err := loadKeyFromFile(ks.config.KeyFile)
	if err != nil {
		return err
	}
	wallet, err := chain.NewWallet(key.Key)
	if err != nil {
		return err
	}
	ks.mu.Lock()
	ks.wallet = wallet
	ks.mu.Unlock()
	ks.logger.Info(
		"wallet key loaded",
		"address", wallet.Address().Hex(),
		"encrypted", key.Encrypted,
	)
	return nil
}

// Wallet returns the loaded wallet
func (ks *KeyStore) Wallet() (*chain.Wallet, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.wallet == nil {
		return nil, ErrKeyNotLoaded
	}
	return ks.wallet, nil
}

// IsLoaded reports whether a wallet is available
func (ks *KeyStore) IsLoaded() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.wallet != nil
}

// LoadWallet loads a wallet directly from a key file
func LoadWallet(path string) (*chain.Wallet, error) {
	ks := NewKeyStore(KeyStoreConfig{KeyFile: path})
	if err := ks.Load(); err != nil {
		return nil, err
	}
	return ks.Wallet()
}

// GenerateKeyFile writes a new random key to path. Existing files are never
// overwritten.
func GenerateKeyFile(path string, description string) (common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("generate key: %w", err)
	}
	data, err := marshalKeyFile(key, description)
	if err != nil {
		return common.Address{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return common.Address{}, fmt.Errorf("create key directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return common.Address{}, fmt.Errorf("%s: %w", path, ErrKeyFileExists)
		}
		return common.Address{}, fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return common.Address{}, fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return common.Address{}, fmt.Errorf("write key file: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// EncryptKeyFile encrypts a plain key file in place with SOPS, using the
// master keys named by the SNAP_AGE_RECIPIENTS, SNAP_GCP_KMS_RESOURCE_ID and
// SNAP_AWS_KMS_KEY_ARNS environment variables
func EncryptKeyFile(path string) error {
	key, err := loadKeyFromFile(path)
	if err != nil {
		return err
	}
	if key.Encrypted {
		return fmt.Errorf("%s: %w", path, sops.ErrAlreadyEncrypted)
	}
	plain, err := marshalKeyFile(key.Key, key.Description)
	if err != nil {
		return err
	}
	encrypted, err := sops.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt key file: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".snap-key-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)
	if err := tmpFile.Chmod(0o600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("set temp file mode: %w", err)
	}
	if _, err := tmpFile.Write(encrypted); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	return os.Rename(tmpPath, path)
}
