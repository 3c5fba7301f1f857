package collector

import (
	"io/ioutil"
	"testing"
	"time"

	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

var star = models.Emoji{Name: "⭐"}

func newTestBus(t *testing.T) *bus.Bus {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	b := bus.New(logger.WithField("module", "bus"))
	t.Cleanup(func() {
		b.Close()
	})
	return b
}

func reaction(t bus.EventType, messageID, userID string, emoji models.Emoji) *bus.ReactionEvent {
	return &bus.ReactionEvent{
		EventType: t,
		UserID:    userID,
		ChannelID: "channel",
		MessageID: messageID,
		GuildID:   "guild",
		Emoji:     emoji,
	}
}

func publish(t *testing.T, b *bus.Bus, events ...bus.Event) {
	t.Helper()
	for _, event := range events {
		if err := b.PublishEvent(event); err != nil {
			t.Fatal(err)
		}
	}
}

func wait(t *testing.T, c *Collector) Snapshot {
	t.Helper()
	select {
	case <-c.Done():
		return c.Snapshot()
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not end")
		return Snapshot{}
	}
}

func emptySnapshot() Snapshot {
	return Snapshot{State: Active, Collected: map[string]interface{}{}}
}

func TestReduceCollectsAndDisposes(t *testing.T) {
	matcher := NewReactionMatcher(ReactionOptions{MessageID: "message"})
	snapshot := emptySnapshot()

	snapshot, effects := Reduce(snapshot, matcher, Limits{}, reaction(bus.ReactionAdd, "message", "u1", star))
	snapshot, _ = Reduce(snapshot, matcher, Limits{}, reaction(bus.ReactionAdd, "message", "u2", star))
	if len(effects) != 1 || effects[0].Kind != Collected || effects[0].Key != "⭐" {
		t.Fatalf("effects = %+v", effects)
	}

	want := ReactionTally{Emoji: star, Count: 2, UserIDs: []string{"u1", "u2"}}
	if diff := cmp.Diff(want, snapshot.Collected["⭐"]); diff != "" {
		t.Errorf("tally mismatch (-want +got):\n%s", diff)
	}

	snapshot, _ = Reduce(snapshot, matcher, Limits{}, reaction(bus.ReactionRemove, "message", "u1", star))
	snapshot, _ = Reduce(snapshot, matcher, Limits{}, reaction(bus.ReactionRemove, "message", "u2", star))
	if len(snapshot.Collected) != 0 {
		t.Errorf("Collected = %+v, want empty", snapshot.Collected)
	}
	if snapshot.Received != 2 || snapshot.State != Active {
		t.Errorf("snapshot = %+v", snapshot)
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	matcher := NewReactionMatcher(ReactionOptions{MessageID: "message"})
	before := emptySnapshot()

	Reduce(before, matcher, Limits{}, reaction(bus.ReactionAdd, "message", "u1", star))
	if len(before.Collected) != 0 || before.Received != 0 {
		t.Errorf("input snapshot changed: %+v", before)
	}
}

func TestReduceIgnoresOtherMessages(t *testing.T) {
	matcher := NewReactionMatcher(ReactionOptions{MessageID: "message"})

	snapshot, effects := Reduce(emptySnapshot(), matcher, Limits{}, reaction(bus.ReactionAdd, "other", "u1", star))
	if len(effects) != 0 || snapshot.Received != 0 || len(snapshot.Collected) != 0 {
		t.Errorf("other message changed the snapshot: %+v, %+v", snapshot, effects)
	}
}

func TestReduceFilter(t *testing.T) {
	matcher := NewReactionMatcher(ReactionOptions{MessageID: "message"})
	limits := Limits{
		Filter: func(event bus.Event) bool {
			return event.(*bus.ReactionEvent).UserID != "bot"
		},
		MaxProcessed: 2,
	}

	snapshot, _ := Reduce(emptySnapshot(), matcher, limits, reaction(bus.ReactionAdd, "message", "bot", star))
	if len(snapshot.Collected) != 0 || snapshot.Received != 1 {
		t.Fatalf("filtered event collected: %+v", snapshot)
	}

	snapshot, effects := Reduce(snapshot, matcher, limits, reaction(bus.ReactionAdd, "message", "bot", star))
	if snapshot.State != Ended || snapshot.Reason != ReasonProcessedLimit {
		t.Errorf("snapshot = %+v, want ended with %q", snapshot, ReasonProcessedLimit)
	}
	if len(effects) != 1 || effects[0].Kind != Finished {
		t.Errorf("effects = %+v", effects)
	}
}

func TestReduceLimits(t *testing.T) {
	other := models.Emoji{Name: "🌟"}
	tests := []struct {
		name    string
		options ReactionOptions
		events  []bus.Event
		want    string
	}{
		{
			name:    "max",
			options: ReactionOptions{MessageID: "message", Max: 3},
			events: []bus.Event{
				reaction(bus.ReactionAdd, "message", "u1", star),
				reaction(bus.ReactionAdd, "message", "u1", other),
				reaction(bus.ReactionAdd, "message", "u2", star),
			},
			want: ReasonLimit,
		},
		{
			name:    "max emojis",
			options: ReactionOptions{MessageID: "message", MaxEmojis: 2},
			events: []bus.Event{
				reaction(bus.ReactionAdd, "message", "u1", star),
				reaction(bus.ReactionAdd, "message", "u2", star),
				reaction(bus.ReactionAdd, "message", "u1", other),
			},
			want: ReasonEmojiLimit,
		},
		{
			name:    "max users",
			options: ReactionOptions{MessageID: "message", MaxUsers: 2},
			events: []bus.Event{
				reaction(bus.ReactionAdd, "message", "u1", star),
				reaction(bus.ReactionAdd, "message", "u1", other),
				reaction(bus.ReactionAdd, "message", "u2", star),
			},
			want: ReasonUserLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher := NewReactionMatcher(tt.options)
			snapshot := emptySnapshot()
			for i, event := range tt.events {
				snapshot, _ = Reduce(snapshot, matcher, Limits{}, event)
				if i < len(tt.events)-1 && snapshot.State == Ended {
					t.Fatalf("ended early after %d events with %q", i+1, snapshot.Reason)
				}
			}
			if snapshot.State != Ended || snapshot.Reason != tt.want {
				t.Errorf("snapshot = %+v, want ended with %q", snapshot, tt.want)
			}
		})
	}
}

func TestReduceStopReasons(t *testing.T) {
	tests := []struct {
		event bus.Event
		want  string
	}{
		{reaction(bus.ReactionRemoveAll, "message", "", models.Emoji{}), ReasonReactionRemoveAll},
		{reaction(bus.ReactionRemoveEmoji, "message", "", star), ReasonReactionRemoveEmoji},
		{&bus.MessageDeleteEvent{ID: "message", ChannelID: "channel"}, ReasonMessageDelete},
		{&bus.MessageDeleteBulkEvent{IDs: []string{"a", "message"}, ChannelID: "channel"}, ReasonMessageDelete},
		{&bus.ChannelDeleteEvent{ID: "channel"}, ReasonChannelDelete},
		{&bus.GuildDeleteEvent{ID: "guild"}, ReasonGuildDelete},
	}

	matcher := NewReactionMatcher(ReactionOptions{GuildID: "guild", ChannelID: "channel", MessageID: "message"})
	for _, tt := range tests {
		snapshot, effects := Reduce(emptySnapshot(), matcher, Limits{}, tt.event)
		if snapshot.State != Ended || snapshot.Reason != tt.want {
			t.Errorf("%T: snapshot = %+v, want ended with %q", tt.event, snapshot, tt.want)
		}
		if len(effects) != 1 || effects[0].Kind != Finished {
			t.Errorf("%T: effects = %+v", tt.event, effects)
		}
	}
}

func TestReduceEndedIsFinal(t *testing.T) {
	matcher := NewReactionMatcher(ReactionOptions{MessageID: "message", Max: 1})

	snapshot, _ := Reduce(emptySnapshot(), matcher, Limits{}, reaction(bus.ReactionAdd, "message", "u1", star))
	ended, effects := Reduce(snapshot, matcher, Limits{}, reaction(bus.ReactionAdd, "message", "u2", star))
	if len(effects) != 0 {
		t.Errorf("effects after end = %+v", effects)
	}
	if diff := cmp.Diff(snapshot, ended); diff != "" {
		t.Errorf("ended snapshot changed (-before +after):\n%s", diff)
	}
}

func TestCollectorEndsOnLimit(t *testing.T) {
	b := newTestBus(t)

	ends := make(chan string, 2)
	c := NewReactionCollector(b, ReactionOptions{
		Options: Options{
			OnEnd: func(collected map[string]interface{}, reason string) {
				ends <- reason
			},
		},
		GuildID:   "guild",
		ChannelID: "channel",
		MessageID: "message",
		Max:       3,
	})

	publish(t, b,
		reaction(bus.ReactionAdd, "other", "u1", star),
		reaction(bus.ReactionAdd, "message", "u1", star),
		reaction(bus.ReactionAdd, "message", "u2", star),
		reaction(bus.ReactionAdd, "message", "u3", star),
	)
	snapshot := wait(t, c)

	if snapshot.Reason != ReasonLimit {
		t.Errorf("Reason = %q, want %q", snapshot.Reason, ReasonLimit)
	}
	if tally := snapshot.Collected["⭐"].(ReactionTally); tally.Count != 3 {
		t.Errorf("Count = %d, want 3", tally.Count)
	}

	// nothing changes after the end
	publish(t, b, reaction(bus.ReactionAdd, "message", "u4", star))
	if tally := c.Snapshot().Collected["⭐"].(ReactionTally); tally.Count != 3 {
		t.Errorf("Count after end = %d, want 3", tally.Count)
	}

	if reason := <-ends; reason != ReasonLimit {
		t.Errorf("OnEnd reason = %q", reason)
	}
	select {
	case reason := <-ends:
		t.Errorf("OnEnd called twice, second time with %q", reason)
	default:
	}

	for _, eventType := range NewReactionMatcher(ReactionOptions{}).EventTypes() {
		if count := b.ListenerCount(eventType); count != 0 {
			t.Errorf("%d listeners left for %s", count, eventType)
		}
	}
	if b.MaxListeners() != bus.DefaultMaxListeners {
		t.Errorf("MaxListeners() = %d, want %d", b.MaxListeners(), bus.DefaultMaxListeners)
	}
}

func TestCollectorCallbacks(t *testing.T) {
	b := newTestBus(t)

	collected := make(chan string, 1)
	disposed := make(chan string, 1)
	c := NewReactionCollector(b, ReactionOptions{
		Options: Options{
			OnCollect: func(key string, item interface{}, event bus.Event) {
				collected <- event.(*bus.ReactionEvent).UserID
			},
			OnDispose: func(key string, item interface{}, event bus.Event) {
				disposed <- event.(*bus.ReactionEvent).UserID
			},
		},
		MessageID: "message",
	})
	defer c.Stop(ReasonUser)

	publish(t, b, reaction(bus.ReactionAdd, "message", "u1", star))
	if userID := <-collected; userID != "u1" {
		t.Errorf("collected from %q", userID)
	}
	publish(t, b, reaction(bus.ReactionRemove, "message", "u1", star))
	if userID := <-disposed; userID != "u1" {
		t.Errorf("disposed from %q", userID)
	}
}

func TestCollectorStop(t *testing.T) {
	b := newTestBus(t)

	c := NewReactionCollector(b, ReactionOptions{MessageID: "message"})
	c.Stop(ReasonUser)
	c.Stop(ReasonTime)

	snapshot := wait(t, c)
	if snapshot.Reason != ReasonUser || !c.Ended() {
		t.Errorf("snapshot = %+v, want ended with %q", snapshot, ReasonUser)
	}
}

func TestCollectorStopsOnGatewayEvents(t *testing.T) {
	b := newTestBus(t)

	c := NewReactionCollector(b, ReactionOptions{ChannelID: "channel", MessageID: "message"})
	publish(t, b, &bus.ChannelDeleteEvent{ID: "channel"})

	if snapshot := wait(t, c); snapshot.Reason != ReasonChannelDelete {
		t.Errorf("Reason = %q, want %q", snapshot.Reason, ReasonChannelDelete)
	}
}

func TestCollectorTimeout(t *testing.T) {
	b := newTestBus(t)

	c := NewReactionCollector(b, ReactionOptions{
		Options:   Options{Timeout: 20 * time.Millisecond},
		MessageID: "message",
	})
	if snapshot := wait(t, c); snapshot.Reason != ReasonTime {
		t.Errorf("Reason = %q, want %q", snapshot.Reason, ReasonTime)
	}
}

func TestCollectorIdle(t *testing.T) {
	b := newTestBus(t)

	c := NewReactionCollector(b, ReactionOptions{
		Options:   Options{Idle: 20 * time.Millisecond},
		MessageID: "message",
	})
	if snapshot := wait(t, c); snapshot.Reason != ReasonIdle {
		t.Errorf("Reason = %q, want %q", snapshot.Reason, ReasonIdle)
	}
}

func TestBudgetStaysBalanced(t *testing.T) {
	b := newTestBus(t)

	var collectors []*Collector
	for i := 0; i < 25; i++ {
		collectors = append(collectors, NewReactionCollector(b, ReactionOptions{MessageID: "message"}))
	}
	if b.MaxListeners() != bus.DefaultMaxListeners+25 {
		t.Errorf("MaxListeners() = %d with 25 collectors", b.MaxListeners())
	}

	for _, c := range collectors {
		c.Stop(ReasonUser)
		wait(t, c)
	}
	if b.MaxListeners() != bus.DefaultMaxListeners {
		t.Errorf("MaxListeners() = %d, want %d", b.MaxListeners(), bus.DefaultMaxListeners)
	}
}
