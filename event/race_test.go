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

package event

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/snap/internal/test/testutil"
	"github.com/stretchr/testify/assert"
)

const raceRounds = 200

func redeemedEvent(tokenID string) Event {
	return NewEvent(ClaimRedeemedEventType, ClaimRedeemedEvent{
		ClaimCode: "code-" + tokenID,
		Claimer:   "0x0000000000000000000000000000000000000001",
		TokenID:   tokenID,
		SeriesID:  1,
	})
}

// runTogether starts every step at once and fails the test if they have not
// all returned within a few seconds
func runTogether(t *testing.T, steps ...func()) {
	t.Helper()
	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, step := range steps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			step()
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	close(start)
	testutil.RequireClosed(t, done, 5*time.Second, "concurrent steps did not finish")
}

func TestRedeemedPublishDuringUnsubscribe(t *testing.T) {
	for range raceRounds {
		eb := NewEventBus(nil, nil)
		subId, ch := eb.Subscribe(ClaimRedeemedEventType)
		runTogether(
			t,
			func() {
				for i := range 10 {
					eb.Publish(ClaimRedeemedEventType, redeemedEvent(strconv.Itoa(i)))
				}
			},
			func() {
				eb.Unsubscribe(ClaimRedeemedEventType, subId)
				eb.Stop()
			},
			func() {
				for range ch {
				}
			},
		)
	}
}

func TestSinkRegistrationDuringStop(t *testing.T) {
	for range raceRounds {
		eb := NewEventBus(nil, nil)
		steps := []func(){eb.Stop}
		for _, typ := range []EventType{
			ClaimRedeemedEventType,
			ClaimDivergedEventType,
			CodesGeneratedEventType,
			SeriesCreatedEventType,
			BrandRegisteredEventType,
		} {
			steps = append(steps, func() {
				eb.SubscribeFunc(typ, func(Event) {})
			})
		}
		runTogether(t, steps...)
	}
}

func TestSlowSubscriberDropsOverflow(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	_, ch := eb.Subscribe(CodesGeneratedEventType)

	for range EventQueueSize {
		eb.Publish(CodesGeneratedEventType, NewEvent(CodesGeneratedEventType, CodesGeneratedEvent{SeriesID: 1}))
	}
	// The buffer is full; this publish must return without a reader
	runTogether(t, func() {
		eb.Publish(CodesGeneratedEventType, NewEvent(CodesGeneratedEventType, CodesGeneratedEvent{SeriesID: 2}))
	})

	for range EventQueueSize {
		evt := testutil.RequireReceive(t, ch, time.Second, "buffered event")
		data, ok := evt.Data.(CodesGeneratedEvent)
		assert.True(t, ok)
		assert.Equal(t, uint64(1), data.SeriesID)
	}
	testutil.RequireNoReceive(t, ch, 50*time.Millisecond, "overflow event was kept")
}

func TestUnsubscribeWithFullBufferDuringPublish(t *testing.T) {
	for range raceRounds {
		eb := NewEventBus(nil, nil)
		subId, ch := eb.Subscribe(ClaimDivergedEventType)
		diverged := NewEvent(ClaimDivergedEventType, ClaimDivergedEvent{Source: "sweep"})
		for range EventQueueSize {
			eb.Publish(ClaimDivergedEventType, diverged)
		}
		go func() {
			for range ch {
			}
		}()
		runTogether(
			t,
			func() {
				for range 50 {
					eb.Publish(ClaimDivergedEventType, diverged)
				}
			},
			func() {
				eb.Unsubscribe(ClaimDivergedEventType, subId)
			},
		)
		eb.Stop()
	}
}
