package dgwidgets

import (
	"errors"
	"sync"
	"time"

	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/collector"
	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/bwmarrin/discordgo"
)

// error vars
var (
	ErrAlreadyRunning   = errors.New("err: Widget already running")
	ErrIndexOutOfBounds = errors.New("err: Index is out of bounds")
	ErrNilMessage       = errors.New("err: Message is nil")
	ErrNilEmbed         = errors.New("err: embed is nil")
	ErrNotRunning       = errors.New("err: not running")
)

// WidgetHandler ...
type WidgetHandler func(*Widget, *bus.ReactionEvent)

// Widget is a message embed with reactions for buttons.
// Accepts custom handlers for reactions.
type Widget struct {
	sync.Mutex
	Embed     *discordgo.MessageEmbed
	Message   *discordgo.Message
	GuildID   string
	ChannelID string
	Timeout   time.Duration

	// Handlers binds emoji names to functions
	Handlers map[string]WidgetHandler
	// keys stores the handlers keys in the order they were added
	Keys []string

	// Delete reactions after they are added
	DeleteReactions bool
	// Only allow listed users to use reactions.
	UserWhitelist []string

	running   bool
	collector *collector.Collector
}

// NewWidget returns a pointer to a Widget object
//
//	guildID  : guild of the channel
//	channelID: channelID to spawn the widget on
//	userID   : the only user allowed to press buttons
func NewWidget(guildID, channelID, userID string, embed *discordgo.MessageEmbed) *Widget {
	return &Widget{
		GuildID:         guildID,
		ChannelID:       channelID,
		Keys:            []string{},
		Handlers:        map[string]WidgetHandler{},
		DeleteReactions: true,
		Embed:           embed,
		Timeout:         time.Minute * 5,
		UserWhitelist:   []string{userID},
	}
}

// isUserAllowed returns true if the user is allowed
// to use this widget.
func (w *Widget) isUserAllowed(userID string) bool {
	if len(w.UserWhitelist) == 0 {
		return true
	}
	for _, user := range w.UserWhitelist {
		if user == userID {
			return true
		}
	}
	return false
}

func (w *Widget) handler(emojiName string) (WidgetHandler, bool) {
	w.Lock()
	defer w.Unlock()
	handler, ok := w.Handlers[emojiName]
	return handler, ok
}

// accepts filters the reactions the widget reacts to
func (w *Widget) accepts(event bus.Event) bool {
	reaction, ok := event.(*bus.ReactionEvent)
	if !ok {
		return true
	}
	if reaction.UserID == cache.GetSession().State.User.ID || !w.isUserAllowed(reaction.UserID) {
		return false
	}
	_, ok = w.handler(reaction.Emoji.Name)
	return ok
}

// Spawn spawns the widget in channel w.ChannelID and blocks until it timed out or got closed
func (w *Widget) Spawn() error {
	w.Lock()
	if w.running {
		w.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.Unlock()
	defer func() {
		w.Lock()
		w.running = false
		w.Unlock()
	}()

	if w.Embed == nil {
		return ErrNilEmbed
	}

	// Create initial message.
	msg, err := helpers.SendEmbed(w.ChannelID, w.Embed)
	if err != nil {
		return err
	}
	w.Message = msg

	buttons := collector.NewReactionCollector(cache.GetBus(), collector.ReactionOptions{
		Options: collector.Options{
			Filter:  w.accepts,
			Timeout: w.Timeout,
			OnCollect: func(key string, item interface{}, event bus.Event) {
				reaction := event.(*bus.ReactionEvent)
				if handler, ok := w.handler(reaction.Emoji.Name); ok {
					go handler(w, reaction)
				}

				if w.DeleteReactions {
					go func() {
						time.Sleep(time.Millisecond * 250)
						cache.GetSession().MessageReactionRemove(reaction.ChannelID, reaction.MessageID, reaction.Emoji.Key(), reaction.UserID)
					}()
				}
			},
		},
		GuildID:   w.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
	})
	w.Lock()
	w.collector = buttons
	w.Unlock()

	// Add reaction buttons
	for _, v := range w.Keys {
		cache.GetSession().MessageReactionAdd(w.Message.ChannelID, w.Message.ID, v)
	}

	buttons.Wait()
	return nil
}

// Close stops a running widget
func (w *Widget) Close() {
	w.Lock()
	buttons := w.collector
	w.Unlock()

	if buttons != nil {
		buttons.Stop(collector.ReasonUser)
	}
}

// Handle adds a handler for the given emoji name
//
//	emojiName: The unicode value of the emoji
//	handler  : handler function to call when the emoji is clicked
func (w *Widget) Handle(emojiName string, handler WidgetHandler) error {
	w.Lock()
	if _, ok := w.Handlers[emojiName]; !ok {
		w.Keys = append(w.Keys, emojiName)
		w.Handlers[emojiName] = handler
	}
	running := w.running
	w.Unlock()

	// if the widget is running, append the added emoji to the message.
	if running && w.Message != nil {
		return cache.GetSession().MessageReactionAdd(w.Message.ChannelID, w.Message.ID, emojiName)
	}
	return nil
}

// QueryInput querys the user with ID `id` for input
//
//	prompt : Question prompt
//	userID : UserID to get message from
//	timeout: How long to wait for the user's response
func (w *Widget) QueryInput(prompt string, userID string, timeout time.Duration, validate collector.Validator) (interface{}, error) {
	return collector.Prompt(collector.PromptOptions{
		Bus:       cache.GetBus(),
		Messenger: helpers.Chat(),
		GuildID:   w.GuildID,
		ChannelID: w.ChannelID,
		UserID:    userID,
		Question:  "<@" + userID + "> " + prompt,
		Validate:  validate,
		Timeout:   timeout,
	})
}

// Running returns w.running
func (w *Widget) Running() bool {
	w.Lock()
	running := w.running
	w.Unlock()
	return running
}

// UpdateEmbed updates the embed object and edits the original message
//
//	embed: New embed object to replace w.Embed
func (w *Widget) UpdateEmbed(embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	if w.Message == nil {
		return nil, ErrNilMessage
	}
	return helpers.EditEmbed(w.ChannelID, w.Message.ID, embed)
}
