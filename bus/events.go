package bus

import (
	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/bwmarrin/discordgo"
	"github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// EventType is the gateway dispatch name of an event
type EventType string

// gateway dispatches handled by the bus
const (
	MessageCreate       EventType = "MESSAGE_CREATE"
	MessageDelete       EventType = "MESSAGE_DELETE"
	MessageDeleteBulk   EventType = "MESSAGE_DELETE_BULK"
	ReactionAdd         EventType = "MESSAGE_REACTION_ADD"
	ReactionRemove      EventType = "MESSAGE_REACTION_REMOVE"
	ReactionRemoveAll   EventType = "MESSAGE_REACTION_REMOVE_ALL"
	ReactionRemoveEmoji EventType = "MESSAGE_REACTION_REMOVE_EMOJI"
	ChannelDelete       EventType = "CHANNEL_DELETE"
	GuildDelete         EventType = "GUILD_DELETE"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnknownEventType is returned when decoding a dispatch the bus has no decoder for
var ErrUnknownEventType = errors.New("unknown event type")

// Event is a decoded gateway dispatch
type Event interface {
	Type() EventType
}

// ReactionEvent is used for all four reaction dispatches,
// Emoji and UserID are empty for MESSAGE_REACTION_REMOVE_ALL
type ReactionEvent struct {
	EventType EventType         `json:"-"`
	UserID    string            `json:"user_id,omitempty"`
	ChannelID string            `json:"channel_id"`
	MessageID string            `json:"message_id"`
	GuildID   string            `json:"guild_id,omitempty"`
	Emoji     models.Emoji      `json:"emoji"`
	Member    *discordgo.Member `json:"member,omitempty"`
}

func (e *ReactionEvent) Type() EventType { return e.EventType }

// IsBot returns true if the gateway told us the reacting member is a bot
func (e *ReactionEvent) IsBot() bool {
	return e.Member != nil && e.Member.User != nil && e.Member.User.Bot
}

type MessageCreateEvent struct {
	Message *discordgo.Message
}

func (e *MessageCreateEvent) Type() EventType { return MessageCreate }

type MessageDeleteEvent struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

func (e *MessageDeleteEvent) Type() EventType { return MessageDelete }

type MessageDeleteBulkEvent struct {
	IDs       []string `json:"ids"`
	ChannelID string   `json:"channel_id"`
	GuildID   string   `json:"guild_id,omitempty"`
}

func (e *MessageDeleteBulkEvent) Type() EventType { return MessageDeleteBulk }

// Contains returns true if messageID is part of the deleted batch
func (e *MessageDeleteBulkEvent) Contains(messageID string) bool {
	for _, id := range e.IDs {
		if id == messageID {
			return true
		}
	}
	return false
}

type ChannelDeleteEvent struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id,omitempty"`
}

func (e *ChannelDeleteEvent) Type() EventType { return ChannelDelete }

type GuildDeleteEvent struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

func (e *GuildDeleteEvent) Type() EventType { return GuildDelete }

type decoder func(t EventType, payload []byte) (Event, error)

func reactionDecoder(t EventType, payload []byte) (Event, error) {
	event := &ReactionEvent{EventType: t}
	return event, json.Unmarshal(payload, event)
}

func messageCreateDecoder(t EventType, payload []byte) (Event, error) {
	event := &MessageCreateEvent{Message: new(discordgo.Message)}
	return event, json.Unmarshal(payload, event.Message)
}

func decodeInto(newEvent func() Event) decoder {
	return func(t EventType, payload []byte) (Event, error) {
		event := newEvent()
		return event, json.Unmarshal(payload, event)
	}
}

var decoders = map[EventType]decoder{
	MessageCreate:       messageCreateDecoder,
	MessageDelete:       decodeInto(func() Event { return new(MessageDeleteEvent) }),
	MessageDeleteBulk:   decodeInto(func() Event { return new(MessageDeleteBulkEvent) }),
	ReactionAdd:         reactionDecoder,
	ReactionRemove:      reactionDecoder,
	ReactionRemoveAll:   reactionDecoder,
	ReactionRemoveEmoji: reactionDecoder,
	ChannelDelete:       decodeInto(func() Event { return new(ChannelDeleteEvent) }),
	GuildDelete:         decodeInto(func() Event { return new(GuildDeleteEvent) }),
}

// Known returns true if the bus can decode events of type t
func Known(t EventType) bool {
	_, ok := decoders[t]
	return ok
}

// Decode turns the raw dispatch payload into a typed event
func Decode(t EventType, payload []byte) (Event, error) {
	decode, ok := decoders[t]
	if !ok {
		return nil, errors.Wrap(ErrUnknownEventType, string(t))
	}
	event, err := decode(t, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s failed", t)
	}
	return event, nil
}

// Encode renders an event the way the gateway sends it
func Encode(event Event) ([]byte, error) {
	if created, ok := event.(*MessageCreateEvent); ok {
		return json.Marshal(created.Message)
	}
	return json.Marshal(event)
}
