package starboard

import (
	"time"

	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/Seklfreak/robyul-starboard/metrics"
	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/Seklfreak/robyul-starboard/queue"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SettingsReader looks up the starboard settings of a guild
type SettingsReader interface {
	StarboardConfig(guildID string) (models.StarboardConfig, error)
}

// StarRepository stores star entries keyed by their source message
type StarRepository interface {
	// FindOne returns nil without an error if the message has no entry
	FindOne(messageID string) (*models.StarEntry, error)
	Create(entry *models.StarEntry) error
	Persist(entry *models.StarEntry) error
	Remove(entry *models.StarEntry) error
}

// ChatClient reads source messages, posts and maintains starboard messages
type ChatClient interface {
	Message(channelID string, messageID string) (*discordgo.Message, error)
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	EditEmbed(channelID string, messageID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	DeleteMessage(channelID string, messageID string) error
}

// Cooldowns rate limits self star warnings per user
type Cooldowns interface {
	// Acquire returns true and starts the cooldown if userID is not cooling down
	Acquire(userID string) bool
}

// Notice is a message the acting user should see
type Notice string

const (
	NoticeNone           Notice = ""
	NoticeSelfStar       Notice = "self-star-warning"
	NoticeAlreadyStarred Notice = "already-starred"
)

// Engine keeps star entries and their starboard messages in sync with reactions
type Engine struct {
	settings  SettingsReader
	stars     StarRepository
	chat      ChatClient
	cooldowns Cooldowns
	queue     *queue.Queue
	log       *logrus.Entry

	now func() time.Time
}

func NewEngine(settings SettingsReader, stars StarRepository, chat ChatClient, cooldowns Cooldowns, log *logrus.Entry) *Engine {
	return &Engine{
		settings:  settings,
		stars:     stars,
		chat:      chat,
		cooldowns: cooldowns,
		queue:     queue.New(log),
		log:       log,
		now:       time.Now,
	}
}

// Reaction is a star given or taken back by UserID
type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     models.Emoji
}

// Result is the outcome of a queued star operation
type Result struct {
	Notice Notice
	Err    error
}

// config returns nil if the starboard of guildID is off
func (e *Engine) config(guildID string, emoji models.Emoji) (*models.StarboardConfig, error) {
	config, err := e.settings.StarboardConfig(guildID)
	if err != nil {
		return nil, errors.Wrap(err, "reading starboard config failed")
	}
	if !config.Enabled || config.DestinationChannelID == "" {
		return nil, nil
	}
	if !emoji.Equal(config.TriggerEmoji) {
		return nil, nil
	}
	return &config, nil
}

// source fetches the reacted message, nil if it is gone or out of reach
func (e *Engine) source(reaction Reaction) (*discordgo.Message, error) {
	message, err := e.chat.Message(reaction.ChannelID, reaction.MessageID)
	if err != nil {
		if helpers.IsUnknownMessage(err) ||
			helpers.IsDiscordError(err, discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "fetching source message failed")
	}

	// the message can be shared with the session state
	copied := *message
	if copied.GuildID == "" {
		copied.GuildID = reaction.GuildID
	}
	return &copied, nil
}

// enqueue reserves the slot of op behind everything already queued for messageID
func (e *Engine) enqueue(messageID string, op func() (Notice, error)) <-chan Result {
	var notice Notice
	done := e.queue.Enqueue(messageID, func() (err error) {
		notice, err = op()
		return err
	})

	results := make(chan Result, 1)
	go func() {
		err := <-done
		results <- Result{Notice: notice, Err: err}
	}()
	return results
}

// QueueAdd queues a star of reaction.UserID, stars of one message are counted in call order
func (e *Engine) QueueAdd(reaction Reaction) <-chan Result {
	return e.enqueue(reaction.MessageID, func() (Notice, error) {
		return e.add(reaction)
	})
}

// Add stars the message of reaction if its emoji is the trigger emoji of the guild
func (e *Engine) Add(reaction Reaction) (Notice, error) {
	result := <-e.QueueAdd(reaction)
	return result.Notice, result.Err
}

func (e *Engine) add(reaction Reaction) (Notice, error) {
	config, err := e.config(reaction.GuildID, reaction.Emoji)
	if err != nil || config == nil {
		return NoticeNone, err
	}

	message, err := e.source(reaction)
	// stop if no message and no attachment
	if err != nil || message == nil || (message.Content == "" && len(message.Attachments) <= 0) {
		return NoticeNone, err
	}

	if authorID(message) == reaction.UserID && !config.SelfStarEnabled {
		if config.SelfStarWarning && e.cooldowns.Acquire(reaction.UserID) {
			return NoticeSelfStar, nil
		}
		return NoticeNone, nil
	}

	entry, err := e.stars.FindOne(message.ID)
	if err != nil {
		return NoticeNone, errors.Wrap(err, "loading star entry failed")
	}

	created := entry == nil
	if created {
		entry = &models.StarEntry{
			GuildID:      reaction.GuildID,
			MessageID:    message.ID,
			ChannelID:    message.ChannelID,
			AuthorID:     authorID(message),
			StarUserIDs:  []string{},
			FirstStarred: e.now(),
		}
	}

	if !entry.AddStar(reaction.UserID) {
		return NoticeAlreadyStarred, nil
	}

	posted := false
	if entry.Stars >= config.Threshold {
		if posted, err = e.mirror(config, entry, message); err != nil {
			return NoticeNone, err
		}
	}

	if err = e.store(entry, created, posted); err != nil {
		return NoticeNone, err
	}
	metrics.StarsAdded.Inc()
	return NoticeNone, nil
}

// QueueRemove queues taking back the star of reaction.UserID
func (e *Engine) QueueRemove(reaction Reaction) <-chan Result {
	return e.enqueue(reaction.MessageID, func() (Notice, error) {
		return NoticeNone, e.remove(reaction)
	})
}

// Remove takes the star of reaction.UserID back
func (e *Engine) Remove(reaction Reaction) error {
	return (<-e.QueueRemove(reaction)).Err
}

func (e *Engine) remove(reaction Reaction) error {
	config, err := e.config(reaction.GuildID, reaction.Emoji)
	if err != nil || config == nil {
		return err
	}

	entry, err := e.stars.FindOne(reaction.MessageID)
	if err != nil {
		return errors.Wrap(err, "loading star entry failed")
	}
	if entry == nil {
		return nil
	}
	if entry.AuthorID == reaction.UserID && !config.SelfStarEnabled {
		return nil
	}
	if !entry.RemoveStar(reaction.UserID) {
		return nil
	}

	if entry.Stars <= 0 {
		if err = e.unmirror(entry); err != nil {
			return err
		}
		if err = e.stars.Remove(entry); err != nil {
			return errors.Wrap(err, "removing star entry failed")
		}
		metrics.StarsRemoved.Inc()
		return nil
	}

	posted := false
	if entry.Stars < config.Threshold {
		err = e.unmirror(entry)
	} else {
		var message *discordgo.Message
		message, err = e.source(reaction)
		// without the source the count is kept and the starboard message stays as it is
		if err == nil && message != nil {
			posted, err = e.mirror(config, entry, message)
		}
	}
	if err != nil {
		return err
	}

	if err = e.store(entry, false, posted); err != nil {
		return err
	}
	metrics.StarsRemoved.Inc()
	return nil
}

// QueueRetire queues forgetting the entry of a deleted source message
func (e *Engine) QueueRetire(messageID string) <-chan Result {
	return e.enqueue(messageID, func() (Notice, error) {
		return NoticeNone, e.retire(messageID)
	})
}

// Retire forgets the entry of a deleted source message and deletes its starboard message
func (e *Engine) Retire(messageID string) error {
	return (<-e.QueueRetire(messageID)).Err
}

func (e *Engine) retire(messageID string) error {
	entry, err := e.stars.FindOne(messageID)
	if err != nil {
		return errors.Wrap(err, "loading star entry failed")
	}
	if entry == nil {
		return nil
	}

	if err = e.unmirror(entry); err != nil {
		return err
	}
	if err = e.stars.Remove(entry); err != nil {
		return errors.Wrap(err, "removing star entry failed")
	}
	return nil
}

// store writes entry, a starboard message posted for it in the same operation is taken back if that fails
func (e *Engine) store(entry *models.StarEntry, created bool, posted bool) error {
	var err error
	if created {
		err = e.stars.Create(entry)
	} else {
		err = e.stars.Persist(entry)
	}
	if err == nil {
		return nil
	}

	if posted {
		deleteErr := e.chat.DeleteMessage(entry.StarboardMessageChannelID, entry.StarboardMessageID)
		if deleteErr != nil && !helpers.IsUnknownMessage(deleteErr) {
			e.log.WithField("message", entry.MessageID).Warnf("deleting unsaved starboard message failed: %s", deleteErr.Error())
		}
	}
	return errors.Wrap(err, "saving star entry failed")
}

// mirror posts or updates the starboard message of entry, posted is true if a new message was sent
func (e *Engine) mirror(config *models.StarboardConfig, entry *models.StarEntry, message *discordgo.Message) (posted bool, err error) {
	embed := Embed(message, entry.GuildID, entry.Stars)

	if entry.HasMirror() {
		if entry.StarboardMessageChannelID == config.DestinationChannelID {
			_, err = e.chat.EditEmbed(entry.StarboardMessageChannelID, entry.StarboardMessageID, embed)
			if err == nil {
				metrics.StarboardMessages.WithLabelValues("edit").Inc()
				return false, nil
			}
			if !helpers.IsUnknownMessage(err) {
				return false, errors.Wrap(err, "editing starboard message failed")
			}
			entry.ClearMirror()
		} else if err := e.unmirror(entry); err != nil {
			// the old channel might be gone already, the entry moves anyway
			e.log.WithField("message", entry.MessageID).Warnf("deleting moved starboard message failed: %s", err.Error())
			entry.ClearMirror()
		}
	}

	sent, err := e.chat.SendEmbed(config.DestinationChannelID, embed)
	if err != nil {
		return false, errors.Wrap(err, "posting starboard message failed")
	}
	metrics.StarboardMessages.WithLabelValues("post").Inc()

	entry.StarboardMessageID = sent.ID
	entry.StarboardMessageChannelID = sent.ChannelID
	if entry.StarboardMessageChannelID == "" {
		entry.StarboardMessageChannelID = config.DestinationChannelID
	}
	return true, nil
}

// unmirror deletes the starboard message of entry, messages deleted by someone else count as deleted
func (e *Engine) unmirror(entry *models.StarEntry) error {
	if !entry.HasMirror() {
		return nil
	}

	err := e.chat.DeleteMessage(entry.StarboardMessageChannelID, entry.StarboardMessageID)
	if err != nil && !helpers.IsUnknownMessage(err) {
		return errors.Wrap(err, "deleting starboard message failed")
	}
	if err == nil {
		metrics.StarboardMessages.WithLabelValues("delete").Inc()
	}

	entry.ClearMirror()
	return nil
}

func authorID(message *discordgo.Message) string {
	if message.Author == nil {
		return ""
	}
	return message.Author.ID
}
