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

package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/snap/database/plugin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrObjectNotFound is returned by Get when no object has the content id
	ErrObjectNotFound = errors.New("object not found")
	// ErrMissingCredential is returned by stores that need an API credential
	// which was not configured
	ErrMissingCredential = errors.New("missing storage credential")
	// ErrEmptyObject is returned when asked to store zero bytes
	ErrEmptyObject = errors.New("empty object")
)

// Object is a named file handed to or read from a blob store
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// StoredObject describes where a stored object can be fetched from
type StoredObject struct {
	ContentID string
	URI       string
	Size      int
}

type BlobStore interface {
	plugin.Plugin

	Close() error
	Put(context.Context, Object) (*StoredObject, error)
	Get(context.Context, string) (*Object, error)
}

// HTTPError is returned by stores that talk to a remote HTTP API when the
// API answers with a non-2xx status
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storage API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf(
		"storage API returned HTTP %d: %s",
		e.StatusCode,
		e.Message,
	)
}

// IsStatus reports whether err wraps an HTTPError with the given status code
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// ContentID returns the hex-encoded SHA-256 of data. Stores without their own
// addressing scheme key objects by it.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidContentID reports whether s looks like a value returned by ContentID
func ValidContentID(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// New returns the started blob plugin selected by name
func New(
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (BlobStore, error) {
	p, err := plugin.StartPluginWith(
		plugin.PluginTypeBlob,
		pluginName,
		logger,
		promRegistry,
	)
	if err != nil {
		return nil, err
	}
	blobStore, ok := p.(BlobStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement BlobStore interface",
			pluginName,
		)
	}
	return blobStore, nil
}
