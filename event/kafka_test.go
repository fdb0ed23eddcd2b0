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
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	err      error
	messages []kafka.Message
	closed   int
	mu       sync.Mutex
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func TestKafkaSinkDeliver(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, KafkaSinkConfig{TopicPrefix: "snap."})
	eb := NewEventBus(nil, nil)
	eb.RegisterSubscriber(AllEvents, sink)
	eb.Publish(
		ClaimRedeemedEventType,
		NewEvent(ClaimRedeemedEventType, ClaimRedeemedEvent{
			ClaimCode: "code-1",
			TokenID:   "42",
			SeriesID:  3,
		}),
	)
	eb.Stop()

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "snap.claim.redeemed", msg.Topic)
	assert.Equal(t, "claim.redeemed", string(msg.Key))
	var decoded struct {
		Type string             `json:"type"`
		Data ClaimRedeemedEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "claim.redeemed", decoded.Type)
	assert.Equal(t, "42", decoded.Data.TokenID)
	assert.Equal(t, uint64(3), decoded.Data.SeriesID)
	assert.Equal(t, 1, w.closed, "Stop should close the sink writer")
}

func TestKafkaSinkFixedTopic(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, KafkaSinkConfig{Topic: "snap-events"})
	require.NoError(t, sink.Deliver(NewEvent(SeriesCreatedEventType, nil)))
	require.Len(t, w.messages, 1)
	// The writer carries the topic, messages must not
	assert.Empty(t, w.messages[0].Topic)
}

func TestKafkaSinkWriteErrorKeepsSubscription(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	sink := newKafkaSink(w, KafkaSinkConfig{Topic: "snap-events"})
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	subId := eb.RegisterSubscriber(AllEvents, sink)
	eb.Publish(CodesGeneratedEventType, NewEvent(CodesGeneratedEventType, nil))
	eb.mu.RLock()
	_, exists := eb.subscribers[AllEvents][subId]
	eb.mu.RUnlock()
	assert.True(t, exists)
}

func TestKafkaSinkClosed(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, KafkaSinkConfig{Topic: "snap-events"})
	sink.Close()
	sink.Close()
	assert.Equal(t, 1, w.closed)
	assert.ErrorIs(t, sink.Deliver(NewEvent(SeriesToggledEventType, nil)), ErrSinkClosed)
}

func TestNewKafkaSinkRequiresBroker(t *testing.T) {
	_, err := NewKafkaSink(KafkaSinkConfig{Topic: "snap-events"})
	require.Error(t, err)
}
