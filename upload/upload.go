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

// Package upload validates user supplied files and stores them in the
// configured blob store, returning a URI that can be recorded on chain.
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/blinklabs-io/snap/database/plugin/blob"
)

const DefaultMaxSize = 4 << 20

// DefaultContentTypes are the image types accepted for logos and artwork
var DefaultContentTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
}

// File is a user supplied file
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Object is a stored file
type Object struct {
	ContentID string `json:"contentId"`
	URI       string `json:"uri"`
	Size      int    `json:"size"`
}

// ObjectStore is the part of blob.BlobStore used for uploads
type ObjectStore interface {
	Put(context.Context, blob.Object) (*blob.StoredObject, error)
}

type Gateway struct {
	store        ObjectStore
	logger       *slog.Logger
	maxSize      int
	contentTypes []string
}

type GatewayOptionFunc func(*Gateway)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) GatewayOptionFunc {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMaxSize sets the largest accepted file in bytes
func WithMaxSize(size int) GatewayOptionFunc {
	return func(g *Gateway) {
		g.maxSize = size
	}
}

// WithContentTypes sets the accepted MIME types. An empty list accepts any.
func WithContentTypes(contentTypes ...string) GatewayOptionFunc {
	return func(g *Gateway) {
		g.contentTypes = contentTypes
	}
}

func New(store ObjectStore, opts ...GatewayOptionFunc) *Gateway {
	g := &Gateway{
		store:        store,
		maxSize:      DefaultMaxSize,
		contentTypes: DefaultContentTypes,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	g.logger = g.logger.With("component", "upload")
	return g
}

// Upload stores file under the metadata name and returns where it can be
// fetched from
func (g *Gateway) Upload(ctx context.Context, file File, name string) (*Object, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	contentType, err := g.validate(file)
	if err != nil {
		return nil, err
	}
	if g.store == nil {
		return nil, newError(name, ErrMissingCredential)
	}
	stored, err := g.store.Put(ctx, blob.Object{
		Name:        name,
		ContentType: contentType,
		Data:        file.Data,
	})
	if err != nil {
		g.logger.Warn(
			"upload failed",
			"name", name,
			"size", len(file.Data),
			"error", err,
		)
		return nil, newError(name, err)
	}
	g.logger.Debug(
		"uploaded file",
		"name", name,
		"content_id", stored.ContentID,
		"uri", stored.URI,
	)
	return &Object{
		ContentID: stored.ContentID,
		URI:       stored.URI,
		Size:      stored.Size,
	}, nil
}

// validate checks the file and returns its effective content type
func (g *Gateway) validate(file File) (string, error) {
	if len(file.Data) == 0 {
		return "", &ValidationError{Field: "file", Reason: "missing file"}
	}
	if g.maxSize > 0 && len(file.Data) > g.maxSize {
		return "", &ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("larger than %d bytes", g.maxSize),
		}
	}
	// Sniff the bytes rather than trusting the client's header
	contentType := http.DetectContentType(file.Data)
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = contentType[:idx]
	}
	if contentType == "application/octet-stream" && file.ContentType != "" {
		contentType = file.ContentType
	}
	if len(g.contentTypes) > 0 && !slices.Contains(g.contentTypes, contentType) {
		return "", &ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("unsupported content type %s", contentType),
		}
	}
	return contentType, nil
}
