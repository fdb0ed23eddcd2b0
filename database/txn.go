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

package database

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

var (
	ErrNoMetadataStore = errors.New("no metadata store available")
	ErrNoBlobStore     = errors.New("no blob store available")
)

// Txn wraps a metadata transaction
type Txn struct {
	db          *Database
	metadataTxn *gorm.DB
	lock        sync.Mutex
	finished    bool
}

func NewTxn(db *Database) *Txn {
	t := &Txn{db: db}
	if ms := db.Metadata(); ms != nil {
		t.metadataTxn = ms.Transaction()
		if t.metadataTxn == nil {
			db.logger.Warn(
				"metadata transaction is nil; callers must nil-check txn.Metadata()",
				"component", "database",
			)
		}
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Metadata returns the underlying metadata transaction handle
func (t *Txn) Metadata() *gorm.DB {
	return t.metadataTxn
}

// Do executes the specified function in the context of the transaction. Any errors returned will result
// in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if t.metadataTxn == nil {
		t.lock.Lock()
		t.finished = true
		t.lock.Unlock()
		return ErrNoMetadataStore
	}
	if err := t.metadataTxn.Error; err != nil {
		t.lock.Lock()
		t.finished = true
		t.lock.Unlock()
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	if t.metadataTxn == nil {
		return ErrNoMetadataStore
	}
	if result := t.metadataTxn.Commit(); result.Error != nil {
		return result.Error
	}
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	if t.metadataTxn == nil {
		return nil
	}
	if result := t.metadataTxn.Rollback(); result.Error != nil {
		return fmt.Errorf("metadata rollback: %w", result.Error)
	}
	return nil
}

// Release releases transaction resources. It is equivalent to Rollback for an
// unfinished transaction and a no-op otherwise. Errors are logged but not
// returned, making this safe for deferred calls.
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"error", err,
		)
	}
}
