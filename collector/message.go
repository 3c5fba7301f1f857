package collector

import (
	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/bwmarrin/discordgo"
)

// MessageOptions scope a message collector to one channel
type MessageOptions struct {
	Options

	GuildID   string
	ChannelID string

	// Max ends the collector once this many messages are collected
	Max int
}

type messageMatcher struct {
	options MessageOptions
}

// NewMessageCollector collects new messages in one channel, items are *discordgo.Message keyed by message id
func NewMessageCollector(b *bus.Bus, options MessageOptions) *Collector {
	return New(b, &messageMatcher{options: options}, options.Options)
}

// NewMessageMatcher returns the matcher used by message collectors
func NewMessageMatcher(options MessageOptions) Matcher {
	return &messageMatcher{options: options}
}

func (m *messageMatcher) EventTypes() []bus.EventType {
	return []bus.EventType{
		bus.MessageCreate,
		bus.MessageDelete,
		bus.MessageDeleteBulk,
		bus.ChannelDelete,
		bus.GuildDelete,
	}
}

func (m *messageMatcher) Match(event bus.Event) Match {
	switch e := event.(type) {
	case *bus.MessageCreateEvent:
		if e.Message != nil && e.Message.ChannelID == m.options.ChannelID {
			return Match{Verdict: Collect, Keys: []string{e.Message.ID}}
		}
	case *bus.MessageDeleteEvent:
		if e.ChannelID == m.options.ChannelID {
			return Match{Verdict: Dispose, Keys: []string{e.ID}}
		}
	case *bus.MessageDeleteBulkEvent:
		if e.ChannelID == m.options.ChannelID {
			return Match{Verdict: Dispose, Keys: e.IDs}
		}
	case *bus.ChannelDeleteEvent:
		if e.ID == m.options.ChannelID {
			return Match{Verdict: Stop, Reason: ReasonChannelDelete}
		}
	case *bus.GuildDeleteEvent:
		if m.options.GuildID != "" && e.ID == m.options.GuildID {
			return Match{Verdict: Stop, Reason: ReasonGuildDelete}
		}
	}
	return Match{}
}

func (m *messageMatcher) Collect(prev interface{}, event bus.Event) interface{} {
	return event.(*bus.MessageCreateEvent).Message
}

func (m *messageMatcher) Dispose(prev interface{}, event bus.Event) (interface{}, bool) {
	return prev, false
}

func (m *messageMatcher) EndReason(snapshot Snapshot) string {
	if m.options.Max > 0 && len(snapshot.Collected) >= m.options.Max {
		return ReasonLimit
	}
	return ""
}

// Messages returns the collected messages of a message collector snapshot
func Messages(snapshot Snapshot) []*discordgo.Message {
	messages := make([]*discordgo.Message, 0, len(snapshot.Collected))
	for _, item := range snapshot.Collected {
		if message, ok := item.(*discordgo.Message); ok {
			messages = append(messages, message)
		}
	}
	return messages
}
