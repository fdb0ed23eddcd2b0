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

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const DefaultSweepPageSize = 100

// SweepResult summarizes one sweep pass
type SweepResult struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// Sweep checks every unclaimed mirror row against the chain and repairs the
// rows the chain reports as claimed. Per-code chain failures are counted
// and skipped. Rows are never moved back to unclaimed.
func (r *Reconciler) Sweep(ctx context.Context, pageSize int) (*SweepResult, error) {
	if pageSize <= 0 {
		pageSize = DefaultSweepPageSize
	}
	ret := &SweepResult{}
	afterId := ""
	for {
		rows, err := r.store.GetUnclaimedClaimLinks(afterId, pageSize, nil)
		if err != nil {
			return ret, fmt.Errorf("list unclaimed claim links: %w", err)
		}
		for i := range rows {
			if err := ctx.Err(); err != nil {
				return ret, err
			}
			row := &rows[i]
			ret.Checked++
			r.metrics.checked()
			link, err := r.chain.CheckClaimLink(ctx, row.ClaimCode)
			if err != nil {
				ret.Failed++
				r.logger.Debug(
					"sweep failed to check claim link",
					"claim_code", row.ClaimCode,
					"error", err,
				)
				continue
			}
			if !link.IsClaimed {
				continue
			}
			if r.repair(row, link, sourceSweep) {
				ret.Repaired++
			}
		}
		if len(rows) < pageSize {
			break
		}
		afterId = rows[len(rows)-1].ID
	}
	r.logger.Info(
		"sweep finished",
		"checked", ret.Checked,
		"repaired", ret.Repaired,
		"failed", ret.Failed,
	)
	return ret, nil
}

// Sweeper runs Sweep on an interval until stopped
type Sweeper struct {
	reconciler *Reconciler
	interval   time.Duration
	pageSize   int
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
}

func NewSweeper(r *Reconciler, interval time.Duration, pageSize int) *Sweeper {
	return &Sweeper{
		reconciler: r,
		interval:   interval,
		pageSize:   pageSize,
	}
}

// Start launches the sweep loop. The first pass runs after one interval.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("sweeper already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.reconciler.Sweep(ctx, s.pageSize); err != nil &&
				!errors.Is(err, context.Canceled) {
				s.reconciler.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Stop cancels the loop and waits for an in-progress pass to return
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
