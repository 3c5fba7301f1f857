package collector

import (
	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/Seklfreak/robyul-starboard/models"
)

// ReactionOptions scope a reaction collector to one message
type ReactionOptions struct {
	Options

	GuildID   string
	ChannelID string
	MessageID string

	// Max ends the collector once this many reactions are collected
	Max int
	// MaxEmojis ends the collector once this many different emoji are collected
	MaxEmojis int
	// MaxUsers ends the collector once this many different users reacted
	MaxUsers int
}

// ReactionTally is the collected item of one emoji
type ReactionTally struct {
	Emoji   models.Emoji
	Count   int
	UserIDs []string
}

type reactionMatcher struct {
	options ReactionOptions
}

// NewReactionCollector collects reactions on one message
func NewReactionCollector(b *bus.Bus, options ReactionOptions) *Collector {
	return New(b, &reactionMatcher{options: options}, options.Options)
}

// NewReactionMatcher returns the matcher used by reaction collectors
func NewReactionMatcher(options ReactionOptions) Matcher {
	return &reactionMatcher{options: options}
}

func (m *reactionMatcher) EventTypes() []bus.EventType {
	return []bus.EventType{
		bus.ReactionAdd,
		bus.ReactionRemove,
		bus.ReactionRemoveAll,
		bus.ReactionRemoveEmoji,
		bus.MessageDelete,
		bus.MessageDeleteBulk,
		bus.ChannelDelete,
		bus.GuildDelete,
	}
}

func (m *reactionMatcher) Match(event bus.Event) Match {
	switch e := event.(type) {
	case *bus.ReactionEvent:
		if e.MessageID != m.options.MessageID {
			return Match{}
		}
		switch e.EventType {
		case bus.ReactionAdd:
			return Match{Verdict: Collect, Keys: []string{e.Emoji.Key()}}
		case bus.ReactionRemove:
			return Match{Verdict: Dispose, Keys: []string{e.Emoji.Key()}}
		case bus.ReactionRemoveAll:
			return Match{Verdict: Stop, Reason: ReasonReactionRemoveAll}
		case bus.ReactionRemoveEmoji:
			return Match{Verdict: Stop, Reason: ReasonReactionRemoveEmoji}
		}
	case *bus.MessageDeleteEvent:
		if e.ID == m.options.MessageID {
			return Match{Verdict: Stop, Reason: ReasonMessageDelete}
		}
	case *bus.MessageDeleteBulkEvent:
		if e.Contains(m.options.MessageID) {
			return Match{Verdict: Stop, Reason: ReasonMessageDelete}
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

func (m *reactionMatcher) Collect(prev interface{}, event bus.Event) interface{} {
	reaction := event.(*bus.ReactionEvent)

	tally := ReactionTally{Emoji: reaction.Emoji}
	if prevTally, ok := prev.(ReactionTally); ok {
		tally.Count = prevTally.Count
		tally.UserIDs = append([]string{}, prevTally.UserIDs...)
	}
	tally.Count++
	if !containsString(tally.UserIDs, reaction.UserID) {
		tally.UserIDs = append(tally.UserIDs, reaction.UserID)
	}
	return tally
}

func (m *reactionMatcher) Dispose(prev interface{}, event bus.Event) (interface{}, bool) {
	reaction := event.(*bus.ReactionEvent)

	prevTally := prev.(ReactionTally)
	tally := ReactionTally{Emoji: prevTally.Emoji, Count: prevTally.Count - 1}
	for _, userID := range prevTally.UserIDs {
		if userID != reaction.UserID {
			tally.UserIDs = append(tally.UserIDs, userID)
		}
	}
	return tally, tally.Count > 0
}

func (m *reactionMatcher) EndReason(snapshot Snapshot) string {
	total := 0
	users := make(map[string]bool)
	for _, item := range snapshot.Collected {
		tally := item.(ReactionTally)
		total += tally.Count
		for _, userID := range tally.UserIDs {
			users[userID] = true
		}
	}

	if m.options.Max > 0 && total >= m.options.Max {
		return ReasonLimit
	}
	if m.options.MaxEmojis > 0 && len(snapshot.Collected) >= m.options.MaxEmojis {
		return ReasonEmojiLimit
	}
	if m.options.MaxUsers > 0 && len(users) >= m.options.MaxUsers {
		return ReasonUserLimit
	}
	return ""
}

func containsString(list []string, needle string) bool {
	for _, item := range list {
		if item == needle {
			return true
		}
	}
	return false
}
