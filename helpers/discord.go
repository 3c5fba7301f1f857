package helpers

import (
	"strings"
	"time"

	"github.com/Seklfreak/robyul-starboard/bus"
	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/collector"
	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/bwmarrin/discordgo"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

var botAdmins = []string{
	"116620585638821891", // Sekl
}

// IsBotAdmin checks if $id is in $botAdmins
func IsBotAdmin(id string) bool {
	for _, s := range botAdmins {
		if s == id {
			return true
		}
	}

	return false
}

// IsAdmin checks if the author of msg owns the guild or may manage it
func IsAdmin(msg *discordgo.Message) bool {
	if msg.Author == nil {
		return false
	}
	if IsBotAdmin(msg.Author.ID) {
		return true
	}

	channel, err := cache.Channel(msg.ChannelID)
	if err != nil || channel.GuildID == "" {
		return false
	}

	guild, err := cache.GetSession().State.Guild(channel.GuildID)
	if err == nil && guild.OwnerID == msg.Author.ID {
		return true
	}

	permissions, err := cache.GetSession().UserChannelPermissions(msg.Author.ID, msg.ChannelID)
	if err != nil {
		return false
	}

	return permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator ||
		permissions&discordgo.PermissionManageServer == discordgo.PermissionManageServer
}

// RequireAdmin only calls $cb if the author is an admin or has MANAGE_SERVER permission
func RequireAdmin(msg *discordgo.Message, cb Callback) {
	if !IsAdmin(msg) {
		_, err := SendMessage(msg.ChannelID, GetText("mod.no_permission"))
		RelaxMessage(err)
		return
	}

	cb()
}

// IsDiscordError checks if err is a discord REST error with one of the given codes
func IsDiscordError(err error, codes ...int) bool {
	errD, ok := errors.Cause(err).(*discordgo.RESTError)
	if !ok || errD.Message == nil {
		return false
	}
	for _, code := range codes {
		if errD.Message.Code == code {
			return true
		}
	}
	return false
}

// IsUnknownMessage is true if err says the message does not exist anymore
func IsUnknownMessage(err error) bool {
	if IsDiscordError(err, discordgo.ErrCodeUnknownMessage) {
		return true
	}
	errD, ok := errors.Cause(err).(*discordgo.RESTError)
	return ok && errD.Response != nil && errD.Response.StatusCode == 404
}

// GetDiscordColorFromHex converts a hex color like ffd700 to the int discord expects, 0 if it is invalid
func GetDiscordColorFromHex(hex string) int {
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}

	color, err := colorful.Hex(hex)
	if err != nil {
		return 0
	}
	r, g, b := color.RGB255()
	return int(r)<<16 | int(g)<<8 | int(b)
}

// SendMessage sends content to channelID
func SendMessage(channelID string, content string) (*discordgo.Message, error) {
	return cache.GetSession().ChannelMessageSend(channelID, content)
}

// SendEmbed sends embed to channelID
func SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return cache.GetSession().ChannelMessageSendEmbed(channelID, embed)
}

// EditEmbed replaces the embed of a message
func EditEmbed(channelID string, messageID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return cache.GetSession().ChannelMessageEditEmbed(channelID, messageID, embed)
}

// ConfirmEmbed asks author to confirm by reacting and reports the choice, false if nobody answers in time
func ConfirmEmbed(guildID string, channelID string, author *discordgo.User, confirmMessageText string, confirmEmoji string, abortEmoji string) bool {
	confirmMessage, err := SendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       GetTextF("bot.embeds.please-confirm-title", author.Username),
		Description: confirmMessageText,
	})
	if err != nil {
		SendMessage(channelID, GetTextF("bot.errors.general", err.Error()))
		return false
	}

	// delete embed after everything is done
	defer cache.GetSession().ChannelMessageDelete(confirmMessage.ChannelID, confirmMessage.ID)

	confirm := models.ParseEmoji(confirmEmoji)
	abort := models.ParseEmoji(abortEmoji)

	answers := collector.NewReactionCollector(cache.GetBus(), collector.ReactionOptions{
		Options: collector.Options{
			Filter: func(event bus.Event) bool {
				reaction, ok := event.(*bus.ReactionEvent)
				if !ok {
					return true
				}
				return reaction.UserID == author.ID &&
					(reaction.Emoji.Equal(confirm) || reaction.Emoji.Equal(abort))
			},
			Timeout: time.Minute,
		},
		GuildID:   guildID,
		ChannelID: confirmMessage.ChannelID,
		MessageID: confirmMessage.ID,
		Max:       1,
	})

	// add default reactions to embed
	cache.GetSession().MessageReactionAdd(confirmMessage.ChannelID, confirmMessage.ID, confirmEmoji)
	cache.GetSession().MessageReactionAdd(confirmMessage.ChannelID, confirmMessage.ID, abortEmoji)

	result := answers.Wait()
	if result.Reason != collector.ReasonLimit {
		return false
	}

	for _, item := range result.Collected {
		if item.(collector.ReactionTally).Emoji.Equal(confirm) {
			return true
		}
	}
	return false
}
