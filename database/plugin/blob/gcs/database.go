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

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/option"
)

const (
	storeName = "gcs"

	defaultPublicURL = "https://storage.googleapis.com"
)

// BlobStoreGCS stores objects in a Google Cloud Storage bucket
type BlobStoreGCS struct {
	promRegistry    prometheus.Registerer
	metrics         *blob.Metrics
	logger          *GcsLogger
	client          *storage.Client
	bucket          *storage.BucketHandle
	bucketName      string
	prefix          string
	credentialsFile string
	endpoint        string
	publicURL       string
	timeout         time.Duration
}

// New creates a new GCS-backed blob store. dataDir must be
// "gcs://bucket" or "gcs://bucket/prefix".
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreGCS, error) {
	const prefix = "gcs://"
	var bucketName, keyPrefix string
	if after, ok := strings.CutPrefix(dataDir, prefix); ok {
		bucketName, keyPrefix, _ = strings.Cut(after, "/")
	}
	if bucketName == "" {
		return nil, errors.New(
			"gcs blob: bucket not set (expected dataDir='gcs://<bucket>[/prefix]')",
		)
	}
	return NewWithOptions(
		WithBucket(bucketName),
		WithPrefix(keyPrefix),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new GCS-backed blob store using options.
func NewWithOptions(opts ...BlobStoreGCSOptionFunc) (*BlobStoreGCS, error) {
	db := &BlobStoreGCS{}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = NewGcsLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	}
	if p := strings.Trim(db.prefix, "/"); p != "" {
		db.prefix = p + "/"
	} else {
		db.prefix = ""
	}
	return db, nil
}

func validateCredentials(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("gcs blob: credentials file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("gcs blob: credentials file %s is a directory", path)
	}
	return nil
}

func (d *BlobStoreGCS) opContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	timeout := d.timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// SetLogger implements plugin.Instrumented
func (d *BlobStoreGCS) SetLogger(logger *slog.Logger) {
	d.logger = NewGcsLogger(logger)
}

// SetPromRegistry implements plugin.Instrumented
func (d *BlobStoreGCS) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Close closes the GCS client.
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

// Client returns the GCS client.
func (d *BlobStoreGCS) Client() *storage.Client {
	return d.client
}

// Bucket returns the bucket handle.
func (d *BlobStoreGCS) Bucket() *storage.BucketHandle {
	return d.bucket
}

// Start implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Start() error {
	if d.bucketName == "" {
		return errors.New("gcs blob: bucket not set")
	}
	if d.credentialsFile != "" {
		if err := validateCredentials(d.credentialsFile); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	clientOpts := []option.ClientOption{
		storage.WithDisabledClientMetrics(),
	}
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}
	var client *storage.Client
	var err error
	if d.endpoint != "" {
		// Emulators only speak the JSON API and don't check credentials
		clientOpts = append(
			clientOpts,
			option.WithEndpoint(d.endpoint),
			option.WithoutAuthentication(),
		)
		client, err = storage.NewClient(ctx, clientOpts...)
	} else {
		client, err = storage.NewGRPCClient(ctx, clientOpts...)
	}
	if err != nil {
		return fmt.Errorf(
			"gcs blob: failed in creating storage client: %w",
			err,
		)
	}
	d.client = client
	d.bucket = client.Bucket(d.bucketName)
	d.metrics = blob.RegisterMetrics(d.promRegistry)
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Stop() error {
	return d.Close()
}

func (d *BlobStoreGCS) fullKey(key string) string {
	return d.prefix + key
}

func (d *BlobStoreGCS) objectURI(key string) string {
	base := d.publicURL
	if base == "" {
		base = defaultPublicURL + "/" + d.bucketName
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}

// Put uploads an object under the hex SHA-256 of its bytes
func (d *BlobStoreGCS) Put(
	ctx context.Context,
	obj blob.Object,
) (*blob.StoredObject, error) {
	if len(obj.Data) == 0 {
		return nil, blob.ErrEmptyObject
	}
	ctx, cancel := d.opContext(ctx)
	defer cancel()
	cid := blob.ContentID(obj.Data)
	key := d.fullKey(cid)
	w := d.bucket.Object(key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	if obj.Name != "" {
		w.Metadata = map[string]string{"name": obj.Name}
	}
	_, err := w.Write(obj.Data)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	d.metrics.Observe(storeName, "put", len(obj.Data), err)
	if err != nil {
		d.logger.Errorf("gcs put %q failed: %v", key, err)
		return nil, fmt.Errorf("gcs blob: put %s: %w", key, err)
	}
	d.logger.Infof("gcs put %q ok (%d bytes)", key, len(obj.Data))
	return &blob.StoredObject{
		ContentID: cid,
		URI:       d.objectURI(key),
		Size:      len(obj.Data),
	}, nil
}

// Get downloads the object stored under a content id
func (d *BlobStoreGCS) Get(
	ctx context.Context,
	contentID string,
) (*blob.Object, error) {
	ctx, cancel := d.opContext(ctx)
	defer cancel()
	key := d.fullKey(contentID)
	r, err := d.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			d.metrics.Observe(storeName, "get", 0, blob.ErrObjectNotFound)
			return nil, blob.ErrObjectNotFound
		}
		d.metrics.Observe(storeName, "get", 0, err)
		d.logger.Errorf("gcs get %q failed: %v", key, err)
		return nil, fmt.Errorf("gcs blob: get %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	d.metrics.Observe(storeName, "get", len(data), err)
	if err != nil {
		return nil, err
	}
	return &blob.Object{
		Name:        contentID,
		ContentType: r.Attrs.ContentType,
		Data:        data,
	}, nil
}
