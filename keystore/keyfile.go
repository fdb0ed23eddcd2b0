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

package keystore

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blinklabs-io/snap/database/sops"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyFileType is the envelope type written by this package
const KeyFileType = "Secp256k1SigningKey"

// Limit reads to guard against accidentally pointing at a large file
const maxKeyFileSize = 1 << 20

// keyFileEnvelope is the JSON form of a key file. Plain files holding only
// the hex key are accepted as well.
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	KeyHex      string `json:"keyHex"`
}

type loadedKey struct {
	Description string
	Encrypted   bool
	Key         *ecdsa.PrivateKey
}

// loadKeyFromFile loads a signing key from a file path, decrypting it with
// SOPS when needed. Returns ErrInsecureFileMode if the file has group or
// other access.
//
// The file is opened first and permissions are checked on the open handle
// (via fstat on Unix) to avoid a race between the check and the read.
func loadKeyFromFile(path string) (*loadedKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	encrypted := sops.IsEncrypted(data)
	if encrypted {
		data, err = sops.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key file %q: %w", path, err)
		}
	}
	key, err := parseKeyFile(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	key.Encrypted = encrypted
	return key, nil
}

func parseKeyFile(data []byte) (*loadedKey, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("empty key file")
	}
	ret := &loadedKey{}
	keyHex := trimmed
	if strings.HasPrefix(trimmed, "{") {
		var env keyFileEnvelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			return nil, fmt.Errorf("could not parse key file envelope: %w", err)
		}
		if env.Type != KeyFileType {
			return nil, fmt.Errorf("unknown key type: %s", env.Type)
		}
		ret.Description = env.Description
		keyHex = env.KeyHex
	}
	keyHex = strings.TrimPrefix(strings.TrimPrefix(keyHex, "0x"), "0X")
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	key, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 key: %w", err)
	}
	ret.Key = key
	return ret, nil
}

// marshalKeyFile renders a key in the envelope format
func marshalKeyFile(key *ecdsa.PrivateKey, description string) ([]byte, error) {
	data, err := json.MarshalIndent(
		keyFileEnvelope{
			Type:        KeyFileType,
			Description: description,
			KeyHex:      hex.EncodeToString(crypto.FromECDSA(key)),
		},
		"",
		"    ",
	)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
