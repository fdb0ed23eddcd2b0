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

// Package event is an in-process publish/subscribe bus. Components publish
// domain events (claims redeemed, mirror repairs, codes generated) and
// subscribers such as the Kafka sink or tests consume them.
package event

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 20
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

// AllEvents subscribes to every event type
const AllEvents EventType = "*"

// ErrBusStopped is returned by Deliver on subscribers of a stopped bus
var ErrBusStopped = errors.New("event bus stopped")

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// Subscriber receives events from the bus. Deliver must not block for long;
// an error unregisters the subscriber. Close must be idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]Subscriber
	metrics     *eventMetrics
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	logger      *slog.Logger

	asyncQueue chan Event
	asyncWg    sync.WaitGroup
	// handlerWg tracks SubscribeFunc goroutines
	handlerWg sync.WaitGroup
	stopCh    chan struct{}
	stopped   bool
	stopMu    sync.RWMutex
}

// NewEventBus creates a new EventBus with an async worker pool
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]Subscriber),
		logger:      logger.With("component", "event"),
		asyncQueue:  make(chan Event, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		e.initMetrics(promRegistry)
	}
	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker()
	}
	return e
}

func (e *EventBus) asyncWorker() {
	defer e.asyncWg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case evt := <-e.asyncQueue:
			e.Publish(evt.Type, evt)
		}
	}
}

// Subscribe allows a consumer to receive events of a particular type via a
// channel. The channel is closed on Unsubscribe or Stop.
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	chSub := newChannelSubscriber(EventQueueSize, e.metrics)
	subId := e.addSubscriber(eventType, chSub)
	return subId, chSub.ch
}

// SubscribeFunc allows a consumer to receive events of a particular type via
// a callback function. It returns 0 when the bus is stopped.
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	// Holding stopMu keeps Stop from waiting on handlerWg before Add
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		return 0
	}
	subId, evtCh := e.Subscribe(eventType)
	e.handlerWg.Add(1)
	go func() {
		defer e.handlerWg.Done()
		for evt := range evtCh {
			handlerFunc(evt)
		}
	}()
	return subId
}

// RegisterSubscriber adds an external subscriber, such as a network sink,
// and returns its id
func (e *EventBus) RegisterSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	return e.addSubscriber(eventType, sub)
}

func (e *EventBus) addSubscriber(eventType EventType, sub Subscriber) EventSubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSubId++
	subId := e.lastSubId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]Subscriber)
	}
	e.subscribers[eventType][subId] = sub
	e.metrics.subscriberAdded(eventType, sub)
	return subId
}

// Unsubscribe stops delivery for an existing subscriber and closes it
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var sub Subscriber
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		if s, ok := evtTypeSubs[subId]; ok {
			sub = s
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			e.metrics.subscriberRemoved(eventType, sub)
		}
	}
	e.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

type subscription struct {
	eventType EventType
	id        EventSubscriberId
	sub       Subscriber
}

// Publish delivers an event to the subscribers of its type and to AllEvents
// subscribers
func (e *EventBus) Publish(eventType EventType, evt Event) {
	e.mu.RLock()
	var targets []subscription
	for _, key := range []EventType{eventType, AllEvents} {
		for id, sub := range e.subscribers[key] {
			targets = append(targets, subscription{eventType: key, id: id, sub: sub})
		}
	}
	e.mu.RUnlock()
	for _, target := range targets {
		if err := deliver(target.sub, evt); err != nil {
			e.Unsubscribe(target.eventType, target.id)
			e.metrics.deliveryFailed(eventType, subscriberKind(target.sub))
			e.logger.Warn(
				"event delivery failed, subscriber removed",
				"type", eventType,
				"error", err,
			)
		}
	}
	e.metrics.published(eventType)
}

// deliver calls Deliver, converting a panic into an error
func deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber deliver panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// PublishAsync queues an event for delivery by the worker pool. It returns
// false when the bus is stopped or the queue is full.
func (e *EventBus) PublishAsync(eventType EventType, evt Event) bool {
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		return false
	}
	evt.Type = eventType
	select {
	case e.asyncQueue <- evt:
		return true
	default:
		e.logger.Warn(
			"async event queue full, dropping event",
			"type", eventType,
		)
		e.metrics.deliveryFailed(eventType, "async-dropped")
		return false
	}
}

// Stop drains nothing: queued async events are dropped, subscribers are
// closed and SubscribeFunc handlers are waited for. A stopped bus still
// accepts synchronous Publish calls but has no subscribers.
func (e *EventBus) Stop() {
	e.stopMu.Lock()
	if e.stopped {
		e.stopMu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.stopMu.Unlock()
	e.asyncWg.Wait()

	e.mu.Lock()
	subs := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]Subscriber)
	e.mu.Unlock()
	for _, evtTypeSubs := range subs {
		for _, sub := range evtTypeSubs {
			sub.Close()
		}
	}
	e.metrics.reset()
	e.handlerWg.Wait()
}

// channelSubscriber is the in-memory subscriber behind Subscribe. Deliver
// never blocks: events for a full channel are dropped and counted.
type channelSubscriber struct {
	ch      chan Event
	metrics *eventMetrics
	mu      sync.RWMutex
	closed  bool
}

func newChannelSubscriber(buffer int, metrics *eventMetrics) *channelSubscriber {
	return &channelSubscriber{
		ch:      make(chan Event, buffer),
		metrics: metrics,
	}
}

func (c *channelSubscriber) Deliver(evt Event) error {
	// The read lock keeps Close from closing the channel mid-send
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- evt:
	default:
		c.metrics.deliveryFailed(evt.Type, "in-memory-dropped")
	}
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

func subscriberKind(sub Subscriber) string {
	if _, ok := sub.(*channelSubscriber); ok {
		return "in-memory"
	}
	return "remote"
}
