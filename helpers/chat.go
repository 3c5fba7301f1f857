package helpers

import (
	"sync"
	"time"

	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/bwmarrin/discordgo"
	gobreaker "github.com/sony/gobreaker/v2"
)

// DiscordChat talks to the discord REST api behind a circuit breaker
type DiscordChat struct {
	session *discordgo.Session
	breaker *gobreaker.CircuitBreaker[*discordgo.Message]
}

// NewDiscordChat wraps session, five failures in a row open the breaker for thirty seconds
func NewDiscordChat(session *discordgo.Session) *DiscordChat {
	log := cache.GetLogger().WithField("module", "chat")

	return &DiscordChat{
		session: session,
		breaker: gobreaker.NewCircuitBreaker[*discordgo.Message](gobreaker.Settings{
			Name:        "discord",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// missing messages and permissions are answers, not outages
				return err == nil || IsUnknownMessage(err) ||
					IsDiscordError(err, discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnf("circuit breaker %s changed from %s to %s", name, from.String(), to.String())
			},
		}),
	}
}

// Message returns a message from the state, falling back to the api
func (c *DiscordChat) Message(channelID string, messageID string) (*discordgo.Message, error) {
	if c.session.StateEnabled && c.session.State != nil {
		if message, err := c.session.State.Message(channelID, messageID); err == nil {
			return message, nil
		}
	}

	return c.breaker.Execute(func() (*discordgo.Message, error) {
		return c.session.ChannelMessage(channelID, messageID)
	})
}

func (c *DiscordChat) SendMessage(channelID string, content string) (*discordgo.Message, error) {
	return c.breaker.Execute(func() (*discordgo.Message, error) {
		return c.session.ChannelMessageSend(channelID, content)
	})
}

func (c *DiscordChat) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return c.breaker.Execute(func() (*discordgo.Message, error) {
		return c.session.ChannelMessageSendEmbed(channelID, embed)
	})
}

func (c *DiscordChat) EditEmbed(channelID string, messageID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return c.breaker.Execute(func() (*discordgo.Message, error) {
		return c.session.ChannelMessageEditEmbed(channelID, messageID, embed)
	})
}

func (c *DiscordChat) DeleteMessage(channelID string, messageID string) error {
	_, err := c.breaker.Execute(func() (*discordgo.Message, error) {
		return nil, c.session.ChannelMessageDelete(channelID, messageID)
	})
	return err
}

var (
	sharedChat     *DiscordChat
	sharedChatOnce sync.Once
)

// Chat returns a DiscordChat for the current session, shared by everything that does not need its own breaker
func Chat() *DiscordChat {
	sharedChatOnce.Do(func() {
		sharedChat = NewDiscordChat(cache.GetSession())
	})
	return sharedChat
}
