// Package bus fans frames out to live connections subscribed to a topic.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"messenger-core/internal/observability"
)

// Subscriber is a live connection that can receive encoded frames.
type Subscriber interface {
	ID() string
	// Deliver enqueues payload without blocking. It returns false when the
	// subscriber cannot keep up; the bus then drops it from every topic.
	Deliver(payload []byte) bool
}

// Member is a Subscriber acting for a user. The bus calls Evicted after it
// removes the member from a topic that user no longer belongs to.
type Member interface {
	Subscriber
	UserID() string
	Evicted(topic Topic)
}

// Event is an encoded frame addressed to a topic.
type Event struct {
	Topic       Topic
	Payload     []byte
	ExcludeConn string
	// EvictUser, when set, removes that user's members from Topic once the
	// frame has been delivered.
	EvictUser string
}

// Relay forwards locally published events to peer instances.
type Relay interface {
	Forward(ctx context.Context, ev Event) error
}

// PublishOption adjusts a single publish.
type PublishOption func(*Event)

// Except skips the subscriber with the given connection id.
func Except(connID string) PublishOption {
	return func(ev *Event) { ev.ExcludeConn = connID }
}

// EvictUser delivers the frame, then unsubscribes every connection of userID
// from the topic.
func EvictUser(userID string) PublishOption {
	return func(ev *Event) { ev.EvictUser = userID }
}

// Bus is the in-process topic registry.
type Bus struct {
	mu     sync.RWMutex
	topics map[Topic]map[string]Subscriber
	joined map[string]map[Topic]struct{}

	relay Relay
	log   logrus.FieldLogger
}

// New creates an empty bus.
func New(log logrus.FieldLogger) *Bus {
	return &Bus{
		topics: make(map[Topic]map[string]Subscriber),
		joined: make(map[string]map[Topic]struct{}),
		log:    log,
	}
}

// SetRelay installs a cross-instance forwarder. Call before serving traffic.
func (b *Bus) SetRelay(r Relay) {
	b.relay = r
}

// Subscribe registers sub on topic. Subscribing twice is a no-op.
func (b *Bus) Subscribe(topic Topic, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		b.topics[topic] = subs
	}
	subs[sub.ID()] = sub

	topics, ok := b.joined[sub.ID()]
	if !ok {
		topics = make(map[Topic]struct{})
		b.joined[sub.ID()] = topics
	}
	topics[topic] = struct{}{}
}

// Unsubscribe removes sub from topic.
func (b *Bus) Unsubscribe(topic Topic, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(topic, sub.ID())
}

// UnsubscribeAll removes sub from every topic it joined.
func (b *Bus) UnsubscribeAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(sub.ID())
}

func (b *Bus) dropLocked(id string) {
	for topic := range b.joined[id] {
		b.removeLocked(topic, id)
	}
	delete(b.joined, id)
}

func (b *Bus) removeLocked(topic Topic, id string) {
	if subs, ok := b.topics[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
	if topics, ok := b.joined[id]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(b.joined, id)
		}
	}
}

// Subscribers returns how many local connections listen on topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Publish encodes frame as JSON, delivers it locally and hands it to the relay.
// Relay failures are logged, never returned.
func (b *Bus) Publish(ctx context.Context, topic Topic, frame any, opts ...PublishOption) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	ev := Event{Topic: topic, Payload: payload}
	for _, opt := range opts {
		opt(&ev)
	}

	b.DeliverLocal(ev)

	if b.relay != nil {
		if err := b.relay.Forward(ctx, ev); err != nil {
			b.log.WithError(err).WithField("topic", string(topic)).Warn("relay forward failed")
		}
	}
	return nil
}

// DeliverLocal hands ev to every local subscriber of its topic and returns the
// number of successful deliveries.
func (b *Bus) DeliverLocal(ev Event) int {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.topics[ev.Topic]))
	for id, sub := range b.topics[ev.Topic] {
		if id == ev.ExcludeConn {
			continue
		}
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	delivered := 0
	kind := ev.Topic.Kind()
	for _, sub := range subs {
		if sub.Deliver(ev.Payload) {
			delivered++
			observability.IncBusDelivery(kind)
			continue
		}
		observability.IncSlowConsumer()
		b.log.WithFields(logrus.Fields{"conn_id": sub.ID(), "topic": string(ev.Topic)}).Warn("dropping slow consumer")
		b.mu.Lock()
		b.dropLocked(sub.ID())
		b.mu.Unlock()
	}
	if ev.EvictUser != "" {
		b.evict(ev.Topic, ev.EvictUser)
	}
	return delivered
}

func (b *Bus) evict(topic Topic, userID string) {
	var evicted []Member
	b.mu.Lock()
	for id, sub := range b.topics[topic] {
		if m, ok := sub.(Member); ok && m.UserID() == userID {
			evicted = append(evicted, m)
			b.removeLocked(topic, id)
		}
	}
	b.mu.Unlock()

	for _, m := range evicted {
		b.log.WithFields(logrus.Fields{"conn_id": m.ID(), "user_id": userID, "topic": string(topic)}).Info("evicting member")
		m.Evicted(topic)
	}
}
