package helpers

import (
	"regexp"
	"strings"

	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/pkg/errors"
)

var (
	discordEmojiRegex = regexp.MustCompile(`^<(a)?:[^<>:]+:[0-9]+>$`)
	unicodeEmojiRegex = regexp.MustCompile(`^[\x{00A0}-\x{1FAFF}]+$`) // https://en.wikipedia.org/wiki/Emoji#Unicode_blocks
)

// IsUnicodeEmoji returns true if text consists of unicode emoji only
func IsUnicodeEmoji(text string) bool {
	return unicodeEmojiRegex.MatchString(text)
}

// IsDiscordEmoji returns true if text is a discord custom emoji like <:name:id>
func IsDiscordEmoji(text string) bool {
	return discordEmojiRegex.MatchString(text)
}

// ParseGuildEmoji parses an emoji a user typed, custom emoji have to belong to guildID
func ParseGuildEmoji(guildID string, text string) (models.Emoji, error) {
	text = strings.TrimSpace(text)

	if IsUnicodeEmoji(text) {
		return models.ParseEmoji(text), nil
	}
	if !IsDiscordEmoji(text) {
		return models.Emoji{}, errors.New(GetText("plugins.starboard.invalid-emoji"))
	}

	emoji := models.ParseEmoji(text)
	if _, err := cache.GetSession().State.Emoji(guildID, emoji.ID); err != nil {
		return models.Emoji{}, errors.New(GetText("plugins.starboard.invalid-emoji"))
	}
	return emoji, nil
}
