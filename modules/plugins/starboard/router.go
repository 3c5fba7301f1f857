package starboard

import (
	"sync"

	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/sirupsen/logrus"
)

// Router feeds reactions and deletions from the bus into an Engine.
// Operations are queued on the bus goroutine, in delivery order, and awaited elsewhere.
type Router struct {
	engine *Engine
	log    *logrus.Entry

	// SelfID returns the user id of the bot, its reactions are never counted
	SelfID func() string
	// Notify shows a notice in channelID
	Notify func(channelID string, content string)

	pending sync.WaitGroup
}

func NewRouter(engine *Engine, log *logrus.Entry) *Router {
	return &Router{engine: engine, log: log}
}

// Subscribe registers the router on b
func (r *Router) Subscribe(b *bus.Bus) error {
	routes := map[bus.EventType]bus.Handler{
		bus.ReactionAdd:       r.onReactionAdd,
		bus.ReactionRemove:    r.onReactionRemove,
		bus.MessageDelete:     r.onMessageDelete,
		bus.MessageDeleteBulk: r.onMessageDeleteBulk,
	}
	for eventType, route := range routes {
		if _, err := b.On(eventType, route); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until every queued operation finished
func (r *Router) Wait() {
	r.pending.Wait()
}

// ignored filters reactions the starboard never counts
func (r *Router) ignored(reaction *bus.ReactionEvent) bool {
	if reaction.GuildID == "" || reaction.IsBot() {
		return true
	}
	return r.SelfID != nil && r.SelfID() == reaction.UserID
}

// await queues an operation and handles its result on another goroutine
func (r *Router) await(messageID string, action string, queue func() <-chan Result, handle func(Result)) {
	r.pending.Add(1)
	results := queue()
	go func() {
		defer r.pending.Done()
		defer helpers.Recover()

		result := <-results
		if result.Err != nil {
			r.log.WithField("message", messageID).Debug(action, " failed: ", result.Err.Error())
			return
		}
		if handle != nil {
			handle(result)
		}
	}()
}

func toReaction(event *bus.ReactionEvent) Reaction {
	return Reaction{
		GuildID:   event.GuildID,
		ChannelID: event.ChannelID,
		MessageID: event.MessageID,
		UserID:    event.UserID,
		Emoji:     event.Emoji,
	}
}

func (r *Router) onReactionAdd(event bus.Event) {
	reaction := event.(*bus.ReactionEvent)
	if r.ignored(reaction) {
		return
	}

	queue := func() <-chan Result {
		return r.engine.QueueAdd(toReaction(reaction))
	}
	r.await(reaction.MessageID, "adding star", queue, func(result Result) {
		if result.Notice != NoticeNone && r.Notify != nil {
			r.Notify(reaction.ChannelID, helpers.GetTextF("plugins.starboard."+string(result.Notice), reaction.UserID))
		}
	})
}

func (r *Router) onReactionRemove(event bus.Event) {
	reaction := event.(*bus.ReactionEvent)
	if r.ignored(reaction) {
		return
	}

	r.await(reaction.MessageID, "removing star", func() <-chan Result {
		return r.engine.QueueRemove(toReaction(reaction))
	}, nil)
}

func (r *Router) onMessageDelete(event bus.Event) {
	deleted := event.(*bus.MessageDeleteEvent)

	r.await(deleted.ID, "retiring star entry", func() <-chan Result {
		return r.engine.QueueRetire(deleted.ID)
	}, nil)
}

func (r *Router) onMessageDeleteBulk(event bus.Event) {
	deleted := event.(*bus.MessageDeleteBulkEvent)

	for _, messageID := range deleted.IDs {
		messageID := messageID
		r.await(messageID, "retiring star entry", func() <-chan Result {
			return r.engine.QueueRetire(messageID)
		}, nil)
	}
}
