package collector

import (
	"strings"
	"time"

	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// prompt failures
var (
	ErrPromptTimeout    = errors.New("prompt timed out")
	ErrPromptCancelled  = errors.New("prompt cancelled")
	ErrPromptMaxRetries = errors.New("prompt retries exceeded")
)

// CancelKeyword aborts a running prompt
const CancelKeyword = "cancel"

// Messenger sends and deletes the transient messages of a prompt
type Messenger interface {
	SendMessage(channelID string, content string) (*discordgo.Message, error)
	DeleteMessage(channelID string, messageID string) error
}

// Validator turns the content of an answer into a value or rejects it
type Validator func(content string) (interface{}, error)

// PromptOptions configure a prompt
type PromptOptions struct {
	Bus       *bus.Bus
	Messenger Messenger

	GuildID   string
	ChannelID string
	UserID    string

	// Question is sent once the prompt listens, can be empty
	Question string
	Validate Validator
	// Retries is how often invalid input is answered with RetryMessage before giving up
	Retries      int
	RetryMessage func(attempt int, err error) string
	// Timeout applies to every single answer
	Timeout time.Duration
	// DeleteDelay is how long answers, questions and retry messages stay in the channel
	DeleteDelay time.Duration
}

// Prompt waits for UserID to answer in ChannelID and returns the validated value
func Prompt(options PromptOptions) (value interface{}, err error) {
	if options.Validate == nil {
		options.Validate = func(content string) (interface{}, error) {
			return content, nil
		}
	}

	notice := options.Question
	for attempt := 0; ; attempt++ {
		c := NewMessageCollector(options.Bus, MessageOptions{
			Options: Options{
				Filter: func(event bus.Event) bool {
					created, ok := event.(*bus.MessageCreateEvent)
					if !ok {
						return true
					}
					return created.Message.Author != nil && created.Message.Author.ID == options.UserID
				},
				Timeout: options.Timeout,
			},
			GuildID:   options.GuildID,
			ChannelID: options.ChannelID,
			Max:       1,
		})

		// the collector listens before the user is asked, fast answers are not lost
		if notice != "" {
			noticeMessage, err := options.Messenger.SendMessage(options.ChannelID, notice)
			if err != nil {
				c.Stop(ReasonUser)
				c.Wait()
				return nil, errors.Wrap(err, "sending prompt message failed")
			}
			deleteLater(options, noticeMessage)
		}

		result := c.Wait()
		switch result.Reason {
		case ReasonLimit:
		case ReasonTime, ReasonIdle:
			return nil, ErrPromptTimeout
		default:
			return nil, errors.Wrap(ErrPromptCancelled, result.Reason)
		}

		answers := Messages(result)
		if len(answers) <= 0 {
			// answer got deleted before the collector ended
			return nil, errors.Wrap(ErrPromptCancelled, ReasonMessageDelete)
		}
		answer := answers[0]
		deleteLater(options, answer)

		content := strings.TrimSpace(answer.Content)
		if strings.EqualFold(content, CancelKeyword) {
			return nil, ErrPromptCancelled
		}

		value, err = options.Validate(content)
		if err == nil {
			return value, nil
		}

		if attempt >= options.Retries {
			return nil, errors.Wrap(ErrPromptMaxRetries, err.Error())
		}
		notice = err.Error()
		if options.RetryMessage != nil {
			notice = options.RetryMessage(attempt+1, err)
		}
	}
}

func deleteLater(options PromptOptions, message *discordgo.Message) {
	if message == nil {
		return
	}
	go func() {
		time.Sleep(options.DeleteDelay)
		options.Messenger.DeleteMessage(message.ChannelID, message.ID)
	}()
}
