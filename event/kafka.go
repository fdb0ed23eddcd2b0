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
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrSinkClosed is returned by Deliver after Close
var ErrSinkClosed = errors.New("kafka sink closed")

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

type KafkaSinkConfig struct {
	Logger  *slog.Logger
	Brokers []string
	// Topic receives every event. Leave empty to use TopicPrefix plus the
	// event type.
	Topic       string
	TopicPrefix string
}

// KafkaSink forwards bus events to Kafka as JSON messages keyed by event
// type. Writes are asynchronous; failures are logged by the writer's
// completion callback and never unregister the sink.
type KafkaSink struct {
	writer    messageWriter
	logger    *slog.Logger
	topic     string
	prefix    string
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewKafkaSink(cfg KafkaSinkConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka sink requires at least one broker")
	}
	s := newKafkaSink(nil, cfg)
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				s.logger.Error(
					"failed to write events to kafka",
					"count", len(messages),
					"error", err,
				)
			}
		},
	}
	if cfg.Topic != "" {
		w.Topic = cfg.Topic
	}
	s.writer = w
	return s, nil
}

func newKafkaSink(writer messageWriter, cfg KafkaSinkConfig) *KafkaSink {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &KafkaSink{
		writer: writer,
		logger: logger.With("component", "event", "sink", "kafka"),
		topic:  cfg.Topic,
		prefix: cfg.TopicPrefix,
	}
}

func (s *KafkaSink) Deliver(evt Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.Type),
		Value: payload,
		Time:  evt.Timestamp.UTC(),
	}
	if s.topic == "" {
		msg.Topic = s.prefix + strings.ReplaceAll(string(evt.Type), "*", "all")
	}
	// Async writers return immediately, errors surface in Completion
	if err := s.writer.WriteMessages(context.Background(), msg); err != nil {
		s.logger.Error(
			"failed to queue event for kafka",
			"type", evt.Type,
			"error", err,
		)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if err := s.writer.Close(); err != nil {
			s.logger.Warn("failed to close kafka writer", "error", err)
		}
	})
}
