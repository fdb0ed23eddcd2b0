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

package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/prometheus/client_golang/prometheus"
)

const storeName = "s3"

// BlobStoreS3 stores objects in an AWS S3 (or S3-compatible) bucket
type BlobStoreS3 struct {
	promRegistry prometheus.Registerer
	metrics      *blob.Metrics
	logger       *S3Logger
	client       *s3.Client
	bucket       string
	prefix       string
	region       string
	endpoint     string
	publicURL    string
	timeout      time.Duration
}

// New creates a new S3-backed blob store and dataDir must be "s3://bucket" or "s3://bucket/prefix"
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreS3, error) {
	const prefix = "s3://"
	if !strings.HasPrefix(dataDir, prefix) {
		return nil, errors.New(
			"s3 blob: expected dataDir='s3://<bucket>[/prefix]'",
		)
	}
	path := strings.TrimPrefix(dataDir, prefix)
	if path == "" {
		return nil, errors.New("s3 blob: bucket not set")
	}
	bucket, keyPrefix, _ := strings.Cut(path, "/")
	if bucket == "" {
		return nil, errors.New("s3 blob: invalid S3 path (missing bucket)")
	}
	return NewWithOptions(
		WithBucket(bucket),
		WithPrefix(keyPrefix),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new S3-backed blob store using options.
func NewWithOptions(opts ...BlobStoreS3OptionFunc) (*BlobStoreS3, error) {
	db := &BlobStoreS3{}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = NewS3Logger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	}
	db.prefix = normalizePrefix(db.prefix)
	// AWS config loading and validation happen in Start()
	return db, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (d *BlobStoreS3) opContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	timeout := d.timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// SetLogger implements plugin.Instrumented
func (d *BlobStoreS3) SetLogger(logger *slog.Logger) {
	d.logger = NewS3Logger(logger)
}

// SetPromRegistry implements plugin.Instrumented
func (d *BlobStoreS3) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Close implements the BlobStore interface.
func (d *BlobStoreS3) Close() error {
	return d.Stop()
}

// Client returns the S3 client.
func (d *BlobStoreS3) Client() *s3.Client {
	return d.client
}

// Bucket returns the bucket name.
func (d *BlobStoreS3) Bucket() string {
	return d.bucket
}

// Returns the S3 key with an optional prefix.
func (d *BlobStoreS3) fullKey(key string) string {
	return d.prefix + key
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

// objectURI returns the public URL for a key. A configured public URL wins,
// then a custom endpoint in path style, then the virtual-hosted AWS URL.
func (d *BlobStoreS3) objectURI(key string) string {
	switch {
	case d.publicURL != "":
		return strings.TrimSuffix(d.publicURL, "/") + "/" + key
	case d.endpoint != "":
		return fmt.Sprintf(
			"%s/%s/%s",
			strings.TrimSuffix(d.endpoint, "/"),
			d.bucket,
			key,
		)
	default:
		return fmt.Sprintf(
			"https://%s.s3.%s.amazonaws.com/%s",
			d.bucket,
			d.region,
			key,
		)
	}
}

// Put uploads an object under the hex SHA-256 of its bytes
func (d *BlobStoreS3) Put(
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
	input := &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(obj.Data),
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	_, err := d.client.PutObject(ctx, input)
	d.metrics.Observe(storeName, "put", len(obj.Data), err)
	if err != nil {
		d.logger.Errorf("s3 put %q failed: %v", key, err)
		return nil, fmt.Errorf("s3 blob: put %s: %w", key, err)
	}
	d.logger.Infof("s3 put %q ok (%d bytes)", key, len(obj.Data))
	return &blob.StoredObject{
		ContentID: cid,
		URI:       d.objectURI(key),
		Size:      len(obj.Data),
	}, nil
}

// Get downloads the object stored under a content id
func (d *BlobStoreS3) Get(
	ctx context.Context,
	contentID string,
) (*blob.Object, error) {
	ctx, cancel := d.opContext(ctx)
	defer cancel()
	key := d.fullKey(contentID)
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			d.metrics.Observe(storeName, "get", 0, blob.ErrObjectNotFound)
			return nil, blob.ErrObjectNotFound
		}
		d.metrics.Observe(storeName, "get", 0, err)
		d.logger.Errorf("s3 get %q failed: %v", key, err)
		return nil, fmt.Errorf("s3 blob: get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	d.metrics.Observe(storeName, "get", len(data), err)
	if err != nil {
		d.logger.Errorf("s3 read %q failed: %v", key, err)
		return nil, err
	}
	d.logger.Debugf("s3 get %q ok (%d bytes)", key, len(data))
	return &blob.Object{
		Name:        contentID,
		ContentType: aws.ToString(out.ContentType),
		Data:        data,
	}, nil
}

// Start implements the plugin.Plugin interface.
func (d *BlobStoreS3) Start() error {
	if d.bucket == "" {
		return errors.New("s3 blob: bucket not set")
	}
	ctx, cancel := d.opContext(context.Background())
	defer cancel()
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("s3 blob: load default AWS config: %w", err)
	}
	// Override region if specified
	if d.region != "" {
		awsCfg.Region = d.region
	}
	d.region = awsCfg.Region
	d.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if d.endpoint != "" {
			// S3-compatible services (MinIO, Spaces) want path-style addressing
			o.BaseEndpoint = aws.String(d.endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	d.metrics = blob.RegisterMetrics(d.promRegistry)
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreS3) Stop() error {
	// S3 client doesn't need explicit closing
	return nil
}
