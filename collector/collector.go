// Package collector implements short lived, self terminating subscriptions to
// gateway events scoped to a single message or channel.
//
// A collector is a state machine with two states, active and ended. Events are
// fed through Reduce, a pure function of the current snapshot and the event,
// which returns the next snapshot and the effects to apply. The runtime part
// (Collector) owns the bus subscriptions and applies the effects on a single
// goroutine, so collect, dispose and the end check never interleave.
package collector

import (
	"fmt"
	"sync"
	"time"

	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/Seklfreak/robyul-starboard/metrics"
	"github.com/getsentry/raven-go"
)

// end reasons
const (
	ReasonTime                = "time"
	ReasonIdle                = "idle"
	ReasonUser                = "user"
	ReasonLimit               = "limit"
	ReasonProcessedLimit      = "processedLimit"
	ReasonEmojiLimit          = "emojiLimit"
	ReasonUserLimit           = "userLimit"
	ReasonMessageDelete       = "messageDelete"
	ReasonChannelDelete       = "channelDelete"
	ReasonGuildDelete         = "guildDelete"
	ReasonReactionRemoveAll   = "messageReactionRemoveAll"
	ReasonReactionRemoveEmoji = "messageReactionRemoveEmoji"
	ReasonSubscriptionFailed  = "subscriptionFailed"
)

type State int

const (
	Active State = iota
	Ended
)

func (s State) String() string {
	if s == Ended {
		return "ended"
	}
	return "active"
}

// Verdict is how a matcher classifies an event
type Verdict int

const (
	Ignore Verdict = iota
	Collect
	Dispose
	Stop
)

// Match is the result of classifying one event.
// Keys holds the affected keys for Collect (exactly one) and Dispose, Reason is set for Stop.
type Match struct {
	Verdict Verdict
	Keys    []string
	Reason  string
}

// Matcher scopes a collector to one entity
type Matcher interface {
	EventTypes() []bus.EventType
	Match(event bus.Event) Match
	// Collect returns the item stored under the key after event was collected, prev is nil for new keys
	Collect(prev interface{}, event bus.Event) interface{}
	// Dispose returns the item after event was removed from prev, keep is false if the key has to go
	Dispose(prev interface{}, event bus.Event) (next interface{}, keep bool)
	EndReason(snapshot Snapshot) string
}

// Filter decides whether a relevant event is collected or disposed
type Filter func(event bus.Event) bool

// Snapshot is the state of a collector
type Snapshot struct {
	State     State
	Collected map[string]interface{}
	// Received counts collectable events in scope, filtered or not
	Received int
	Reason   string
}

// Limits are the end conditions handled for every matcher
type Limits struct {
	Filter       Filter
	MaxProcessed int
}

type EffectKind int

const (
	Collected EffectKind = iota
	Disposed
	Finished
)

// Effect is a side effect Reduce asks the runtime to perform
type Effect struct {
	Kind   EffectKind
	Key    string
	Item   interface{}
	Event  bus.Event
	Reason string
}

// Reduce applies event to snapshot. Ended snapshots are never changed.
func Reduce(snapshot Snapshot, matcher Matcher, limits Limits, event bus.Event) (Snapshot, []Effect) {
	if snapshot.State == Ended {
		return snapshot, nil
	}

	match := matcher.Match(event)
	switch match.Verdict {
	case Ignore:
		return snapshot, nil
	case Stop:
		return end(snapshot, match.Reason)
	}

	if match.Verdict == Collect {
		snapshot.Received++
	}

	var effects []Effect
	if limits.Filter == nil || limits.Filter(event) {
		collected := make(map[string]interface{}, len(snapshot.Collected)+1)
		for key, item := range snapshot.Collected {
			collected[key] = item
		}

		switch match.Verdict {
		case Collect:
			if len(match.Keys) > 0 {
				key := match.Keys[0]
				item := matcher.Collect(collected[key], event)
				collected[key] = item
				effects = append(effects, Effect{Kind: Collected, Key: key, Item: item, Event: event})
			}
		case Dispose:
			for _, key := range match.Keys {
				prev, ok := collected[key]
				if !ok {
					continue
				}
				item, keep := matcher.Dispose(prev, event)
				if keep {
					collected[key] = item
				} else {
					delete(collected, key)
				}
				effects = append(effects, Effect{Kind: Disposed, Key: key, Item: item, Event: event})
			}
		}
		snapshot.Collected = collected
	}

	reason := matcher.EndReason(snapshot)
	if reason == "" && limits.MaxProcessed > 0 && snapshot.Received >= limits.MaxProcessed {
		reason = ReasonProcessedLimit
	}
	if reason != "" {
		var endEffects []Effect
		snapshot, endEffects = end(snapshot, reason)
		effects = append(effects, endEffects...)
	}
	return snapshot, effects
}

func end(snapshot Snapshot, reason string) (Snapshot, []Effect) {
	snapshot.State = Ended
	snapshot.Reason = reason
	return snapshot, []Effect{{Kind: Finished, Reason: reason}}
}

// Options configure the runtime of a collector
type Options struct {
	Filter       Filter
	MaxProcessed int
	// Timeout stops the collector with ReasonTime, counted from construction
	Timeout time.Duration
	// Idle stops the collector with ReasonIdle if nothing was collected for this long
	Idle time.Duration

	OnCollect func(key string, item interface{}, event bus.Event)
	OnDispose func(key string, item interface{}, event bus.Event)
	OnEnd     func(collected map[string]interface{}, reason string)
}

// Collector runs a Matcher against the bus
type Collector struct {
	bus     *bus.Bus
	matcher Matcher
	options Options

	inbox chan bus.Event
	stop  chan string
	done  chan struct{}

	subscriptions []*bus.Subscription

	sync.RWMutex
	snapshot Snapshot
}

// New subscribes matcher to b and starts collecting
func New(b *bus.Bus, matcher Matcher, options Options) *Collector {
	c := &Collector{
		bus:      b,
		matcher:  matcher,
		options:  options,
		inbox:    make(chan bus.Event),
		stop:     make(chan string, 1),
		done:     make(chan struct{}),
		snapshot: Snapshot{State: Active, Collected: map[string]interface{}{}},
	}

	// balanced by the decrement in teardown, which runs exactly once
	b.AdjustMaxListeners(1)
	metrics.ActiveCollectors.Inc()

	for _, eventType := range matcher.EventTypes() {
		subscription, err := b.On(eventType, c.receive)
		if err != nil {
			b.Logger().WithField("module", "collector").Error(err.Error())
			c.Stop(ReasonSubscriptionFailed)
			break
		}
		c.subscriptions = append(c.subscriptions, subscription)
	}

	go c.run()

	if options.Timeout > 0 {
		time.AfterFunc(options.Timeout, func() {
			c.Stop(ReasonTime)
		})
	}
	return c
}

// Stop ends the collector with reason, only the first call has an effect
func (c *Collector) Stop(reason string) {
	select {
	case c.stop <- reason:
	default:
	}
}

// Done is closed once the collector ended and all listeners are detached
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the collector ended and returns the final state
func (c *Collector) Wait() Snapshot {
	<-c.done
	return c.Snapshot()
}

// Snapshot returns a copy of the current state
func (c *Collector) Snapshot() Snapshot {
	c.RLock()
	defer c.RUnlock()

	snapshot := c.snapshot
	snapshot.Collected = make(map[string]interface{}, len(c.snapshot.Collected))
	for key, item := range c.snapshot.Collected {
		snapshot.Collected[key] = item
	}
	return snapshot
}

// Ended returns true once the collector stopped
func (c *Collector) Ended() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Collector) receive(event bus.Event) {
	select {
	case c.inbox <- event:
	case <-c.done:
	}
}

func (c *Collector) run() {
	defer c.teardown()

	var idle <-chan time.Time
	var idleTimer *time.Timer
	if c.options.Idle > 0 {
		idleTimer = time.NewTimer(c.options.Idle)
		defer idleTimer.Stop()
		idle = idleTimer.C
	}

	limits := Limits{Filter: c.options.Filter, MaxProcessed: c.options.MaxProcessed}
	for {
		// a requested stop wins over events that are already waiting
		select {
		case reason := <-c.stop:
			c.finish(reason)
			return
		default:
		}

		select {
		case reason := <-c.stop:
			c.finish(reason)
			return
		case <-idle:
			c.finish(ReasonIdle)
			return
		case event := <-c.inbox:
			next, effects := Reduce(c.Snapshot(), c.matcher, limits, event)
			c.Lock()
			c.snapshot = next
			c.Unlock()

			for _, effect := range effects {
				switch effect.Kind {
				case Collected:
					if idleTimer != nil {
						if !idleTimer.Stop() {
							select {
							case <-idleTimer.C:
							default:
							}
						}
						idleTimer.Reset(c.options.Idle)
					}
					c.call(func() {
						if c.options.OnCollect != nil {
							c.options.OnCollect(effect.Key, effect.Item, effect.Event)
						}
					})
				case Disposed:
					c.call(func() {
						if c.options.OnDispose != nil {
							c.options.OnDispose(effect.Key, effect.Item, effect.Event)
						}
					})
				case Finished:
					return
				}
			}
		}
	}
}

func (c *Collector) finish(reason string) {
	c.Lock()
	c.snapshot.State = Ended
	c.snapshot.Reason = reason
	c.Unlock()
}

func (c *Collector) teardown() {
	for _, subscription := range c.subscriptions {
		subscription.Off()
	}
	c.bus.AdjustMaxListeners(-1)
	metrics.ActiveCollectors.Dec()

	snapshot := c.Snapshot()
	if snapshot.State != Ended {
		// run panicked
		snapshot.State = Ended
		snapshot.Reason = ReasonUser
		c.Lock()
		c.snapshot = snapshot
		c.Unlock()
	}
	if c.options.OnEnd != nil {
		c.call(func() {
			c.options.OnEnd(snapshot.Collected, snapshot.Reason)
		})
	}
	close(c.done)
}

// call runs a user callback, a panicking callback must not kill the collector loop
func (c *Collector) call(callback func()) {
	defer func() {
		if r := recover(); r != nil {
			c.bus.Logger().WithField("module", "collector").Error(fmt.Sprintf("collector callback panicked: %#v", r))
			raven.CaptureError(fmt.Errorf("%#v", r), map[string]string{})
		}
	}()
	callback()
}
