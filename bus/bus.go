// Package bus delivers decoded gateway dispatches to registered listeners.
//
// Raw dispatch payloads are published on a watermill go channel. Related event
// types share a topic, all reaction dispatches travel on one topic and all
// message dispatches on another, so listeners of several types of a family see
// them in gateway order. Every topic has a single consumer which acknowledges a
// message before it is decoded and handed to the listeners of its type, one
// event at a time and in publish order.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/Seklfreak/robyul-starboard/metrics"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultMaxListeners is the listener budget per event type before leaks are reported
const DefaultMaxListeners = 10

const typeMetadataKey = "event_type"

// topicOf returns the topic events of type t are published on
func topicOf(t EventType) string {
	switch t {
	case ReactionAdd, ReactionRemove, ReactionRemoveAll, ReactionRemoveEmoji:
		return "reactions"
	case MessageCreate, MessageDelete, MessageDeleteBulk:
		return "messages"
	}
	return string(t)
}

// Handler receives decoded events
type Handler func(event Event)

// Subscription is a registered handler, Off detaches it
type Subscription struct {
	bus       *Bus
	eventType EventType
	handler   Handler
	once      sync.Once
}

// Off detaches the handler, calling it more than once is a no-op
func (s *Subscription) Off() {
	s.once.Do(func() {
		s.bus.off(s)
	})
}

// Bus is the gateway event bus
type Bus struct {
	sync.RWMutex
	pubSub        *gochannel.GoChannel
	ctx           context.Context
	cancel        context.CancelFunc
	subscriptions map[EventType][]*Subscription
	consuming     map[string]bool
	maxListeners  int
	log           *logrus.Entry
	wg            sync.WaitGroup
}

// New creates a bus, log receives bus and watermill logs
func New(log *logrus.Entry) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            64,
				BlockPublishUntilSubscriberAck: true,
			},
			newLogrusAdapter(log.WithField("component", "watermill")),
		),
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: make(map[EventType][]*Subscription),
		consuming:     make(map[string]bool),
		maxListeners:  DefaultMaxListeners,
		log:           log,
	}
}

// On registers handler for events of type t
func (b *Bus) On(t EventType, handler Handler) (*Subscription, error) {
	if !Known(t) {
		return nil, errors.Wrap(ErrUnknownEventType, string(t))
	}

	subscription := &Subscription{bus: b, eventType: t, handler: handler}

	b.Lock()
	defer b.Unlock()

	topic := topicOf(t)
	if !b.consuming[topic] {
		messages, err := b.pubSub.Subscribe(b.ctx, topic)
		if err != nil {
			return nil, errors.Wrapf(err, "subscribing to %s failed", t)
		}
		b.consuming[topic] = true
		b.wg.Add(1)
		go b.consume(topic, messages)
	}

	b.subscriptions[t] = append(b.subscriptions[t], subscription)
	if b.maxListeners > 0 && len(b.subscriptions[t]) > b.maxListeners {
		b.log.WithField("type", t).Warn(fmt.Sprintf(
			"possible listener leak: %d listeners registered, budget is %d", len(b.subscriptions[t]), b.maxListeners))
	}
	return subscription, nil
}

func (b *Bus) off(subscription *Subscription) {
	b.Lock()
	defer b.Unlock()

	current := b.subscriptions[subscription.eventType]
	remaining := make([]*Subscription, 0, len(current))
	for _, registered := range current {
		if registered != subscription {
			remaining = append(remaining, registered)
		}
	}
	b.subscriptions[subscription.eventType] = remaining
}

// ListenerCount returns the number of handlers registered for t
func (b *Bus) ListenerCount(t EventType) int {
	b.RLock()
	defer b.RUnlock()
	return len(b.subscriptions[t])
}

// MaxListeners returns the current listener budget per event type
func (b *Bus) MaxListeners() int {
	b.RLock()
	defer b.RUnlock()
	return b.maxListeners
}

// AdjustMaxListeners changes the listener budget by delta and returns the new budget
func (b *Bus) AdjustMaxListeners(delta int) int {
	b.Lock()
	defer b.Unlock()
	b.maxListeners += delta
	if b.maxListeners < 0 {
		b.maxListeners = 0
	}
	return b.maxListeners
}

// Publish puts a raw dispatch payload on the bus
func (b *Bus) Publish(t EventType, payload []byte) error {
	if !Known(t) {
		return errors.Wrap(ErrUnknownEventType, string(t))
	}
	metrics.EventsReceived.WithLabelValues(string(t)).Inc()

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(typeMetadataKey, string(t))
	return b.pubSub.Publish(topicOf(t), msg)
}

// PublishEvent encodes event and publishes it
func (b *Bus) PublishEvent(event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return errors.Wrapf(err, "encoding %s failed", event.Type())
	}
	return b.Publish(event.Type(), payload)
}

// Close stops all consumers, pending messages are dropped
func (b *Bus) Close() error {
	b.cancel()
	err := b.pubSub.Close()
	b.wg.Wait()
	return err
}

func (b *Bus) consume(topic string, messages <-chan *message.Message) {
	defer b.wg.Done()

	for msg := range messages {
		// acknowledged before handling, a failing handler must not stall the topic
		msg.Ack()

		t := EventType(msg.Metadata.Get(typeMetadataKey))

		event, err := Decode(t, msg.Payload)
		if err != nil {
			metrics.EventDecodeErrors.WithLabelValues(string(t)).Inc()
			b.log.WithField("type", t).Warn(err.Error())
			continue
		}

		b.RLock()
		handlers := make([]*Subscription, len(b.subscriptions[t]))
		copy(handlers, b.subscriptions[t])
		b.RUnlock()

		for _, subscription := range handlers {
			b.dispatch(subscription, event)
		}
	}
}

func (b *Bus) dispatch(subscription *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.Inc()
			b.log.WithField("type", subscription.eventType).Error(fmt.Sprintf("handler panicked: %#v", r))
			raven.CaptureError(fmt.Errorf("%#v", r), map[string]string{"EventType": string(subscription.eventType)})
		}
	}()

	subscription.handler(event)
}

// Logger returns the entry the bus logs to
func (b *Bus) Logger() *logrus.Entry {
	return b.log
}
