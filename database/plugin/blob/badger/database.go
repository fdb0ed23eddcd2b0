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

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/snap/database/plugin/blob"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	storeName = "badger"

	objectKeyPrefix   = "object_"
	metadataKeySuffix = "_metadata"

	// DefaultPublicURL is where the API serves objects from this store
	DefaultPublicURL = "/v1/objects"
)

// BlobStoreBadger stores objects in a local BadgerDB keyed by content id
type BlobStoreBadger struct {
	promRegistry     prometheus.Registerer
	metrics          *blob.Metrics
	db               *badger.DB
	logger           *slog.Logger
	gcTicker         *time.Ticker
	gcStopCh         chan struct{}
	dataDir          string
	publicURL        string
	gcWg             sync.WaitGroup
	closeMutex       sync.Mutex
	blockCacheSize   uint64
	indexCacheSize   uint64
	valueLogFileSize int64
	memTableSize     int64
	valueThreshold   int64
	gcEnabled        bool
	closed           bool
}

type objectMetadata struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// New creates and opens a new database
func New(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	db, err := NewWithOptions(opts...)
	if err != nil {
		return nil, err
	}
	if err := db.Start(); err != nil {
		return nil, err
	}
	return db, nil
}

// NewWithOptions creates a new database from option funcs. The database is
// not opened until Start is called.
func NewWithOptions(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	db := &BlobStoreBadger{
		// Set defaults
		gcEnabled:        true,
		blockCacheSize:   DefaultBlockCacheSize,
		indexCacheSize:   DefaultIndexCacheSize,
		valueLogFileSize: DefaultValueLogFileSize,
		memTableSize:     DefaultMemTableSize,
		valueThreshold:   DefaultValueThreshold,
		publicURL:        DefaultPublicURL,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Start implements the plugin.Plugin interface and opens the database
func (d *BlobStoreBadger) Start() error {
	if d.db != nil {
		return nil
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var blobDb *badger.DB
	var err error
	if d.dataDir == "" {
		// No dataDir, use in-memory config
		badgerOpts := badger.DefaultOptions("").
			WithLogger(NewBadgerLogger(d.logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true).
			WithValueThreshold(d.valueThreshold)
		blobDb, err = badger.Open(badgerOpts)
		if err != nil {
			return err
		}
		// Nothing to collect for an in-memory store
		d.gcEnabled = false
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		blobDir := filepath.Join(
			d.dataDir,
			"blob",
		)
		badgerOpts := badger.DefaultOptions(blobDir).
			WithLogger(NewBadgerLogger(d.logger)).
			WithLoggingLevel(badger.WARNING).
			WithBlockCacheSize(int64(d.blockCacheSize)). //nolint:gosec // blockCacheSize is controlled and reasonable
			WithIndexCacheSize(int64(d.indexCacheSize)). //nolint:gosec // indexCacheSize is controlled and reasonable
			WithValueLogFileSize(d.valueLogFileSize).
			WithMemTableSize(d.memTableSize).
			WithValueThreshold(d.valueThreshold).
			WithCompression(options.Snappy)
		blobDb, err = badger.Open(badgerOpts)
		if err != nil {
			return err
		}
	}
	d.db = blobDb
	d.init()
	return nil
}

func (d *BlobStoreBadger) init() {
	d.metrics = blob.RegisterMetrics(d.promRegistry)
	if d.gcEnabled {
		d.gcTicker = time.NewTicker(5 * time.Minute)
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.blobGc(d.gcTicker, d.gcStopCh)
	}
}

func (d *BlobStoreBadger) blobGc(t *time.Ticker, stop <-chan struct{}) {
	defer d.gcWg.Done()
	for {
		select {
		case <-t.C:
		again:
			err := d.DB().RunValueLogGC(0.5)
			if err != nil {
				// Log any actual errors
				if !errors.Is(err, badger.ErrNoRewrite) {
					d.logger.Warn(
						fmt.Sprintf("blob DB: GC failure: %s", err),
						"component", "database",
					)
				}
			} else {
				// Run it again if it just ran successfully
				goto again
			}
		case <-stop:
			return
		}
	}
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreBadger) Stop() error {
	return d.Close()
}

// Close stops the GC goroutine and closes the database
func (d *BlobStoreBadger) Close() error {
	d.closeMutex.Lock()
	defer d.closeMutex.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.db == nil {
		return nil
	}
	if d.gcTicker != nil {
		d.gcTicker.Stop()
		close(d.gcStopCh)
		d.gcWg.Wait()
		d.gcTicker = nil
	}
	return d.DB().Close()
}

// SetLogger implements plugin.Instrumented
func (d *BlobStoreBadger) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Instrumented
func (d *BlobStoreBadger) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// DB returns the database handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}

// Put stores an object under the hex SHA-256 of its bytes. Storing the same
// bytes twice is a no-op that returns the same content id.
func (d *BlobStoreBadger) Put(
	ctx context.Context,
	obj blob.Object,
) (*blob.StoredObject, error) {
	if len(obj.Data) == 0 {
		return nil, blob.ErrEmptyObject
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cid := blob.ContentID(obj.Data)
	meta, err := json.Marshal(objectMetadata{
		Name:        obj.Name,
		ContentType: obj.ContentType,
	})
	if err != nil {
		return nil, err
	}
	err = d.DB().Update(func(txn *badger.Txn) error {
		if err := txn.Set(objectKey(cid), obj.Data); err != nil {
			return err
		}
		return txn.Set(metadataKey(cid), meta)
	})
	d.metrics.Observe(storeName, "put", len(obj.Data), err)
	if err != nil {
		return nil, fmt.Errorf("badger blob: put %s: %w", cid, err)
	}
	d.logger.Debug(
		fmt.Sprintf("stored object %s (%d bytes)", cid, len(obj.Data)),
		"component", "database",
	)
	return &blob.StoredObject{
		ContentID: cid,
		URI:       d.objectURI(cid),
		Size:      len(obj.Data),
	}, nil
}

// Get returns the object stored under a content id
func (d *BlobStoreBadger) Get(
	ctx context.Context,
	contentID string,
) (*blob.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ret := &blob.Object{}
	err := d.DB().View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(contentID))
		if err != nil {
			return err
		}
		ret.Data, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		metaItem, err := txn.Get(metadataKey(contentID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		metaBytes, err := metaItem.ValueCopy(nil)
		if err != nil {
			return err
		}
		var meta objectMetadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			return err
		}
		ret.Name = meta.Name
		ret.ContentType = meta.ContentType
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		err = blob.ErrObjectNotFound
	}
	d.metrics.Observe(storeName, "get", len(ret.Data), err)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (d *BlobStoreBadger) objectURI(contentID string) string {
	return strings.TrimSuffix(d.publicURL, "/") + "/" + contentID
}

func objectKey(contentID string) []byte {
	return []byte(objectKeyPrefix + contentID)
}

func metadataKey(contentID string) []byte {
	return []byte(objectKeyPrefix + contentID + metadataKeySuffix)
}
