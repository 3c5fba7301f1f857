package starboard

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/Seklfreak/robyul-starboard/helpers"
	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"mvdan.cc/xurls"
)

const (
	starboardColor = "ffd700"

	maxDescriptionLength = 1000
	jumpURL              = "https://discord.com/channels/%s/%s/%s"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// glyphs for star counts below the bound, counts past the last bound get galaxies
var starGlyphs = []struct {
	below int
	glyph string
}{
	{5, "⭐"},
	{10, "🌟"},
	{15, "✨"},
	{20, "💫"},
	{30, "🎇"},
	{40, "🎆"},
	{50, "☄️"},
	{75, "🌠"},
	{100, "🌌"},
	{150, "🌌•⭐"},
	{200, "🌌•🌟"},
	{300, "🌌•✨"},
	{400, "🌌•💫"},
	{650, "🌌•🎇"},
	{900, "🌌•🎆"},
	{1400, "🌌•☄️"},
	{2400, "🌌•🌠"},
}

// StarEmoji returns the glyph shown next to count stars
func StarEmoji(count int) string {
	for _, step := range starGlyphs {
		if count < step.below {
			return step.glyph
		}
	}
	return "🌌•🌌"
}

// JumpURL links to a message
func JumpURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf(jumpURL, guildID, channelID, messageID)
}

// Embed builds the starboard message of message with count stars
func Embed(message *discordgo.Message, guildID string, count int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Description: truncate(message.Content, maxDescriptionLength),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   helpers.GetText("plugins.starboard.embed-channel"),
				Value:  "<#" + message.ChannelID + ">",
				Inline: true,
			},
			{
				Name:   helpers.GetText("plugins.starboard.embed-source"),
				Value:  "[" + helpers.GetText("plugins.starboard.embed-jump") + "](" + JumpURL(guildID, message.ChannelID, message.ID) + ")",
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%s %s | %s", StarEmoji(count), humanize.Comma(int64(count)), message.ID),
		},
		Color: helpers.GetDiscordColorFromHex(starboardColor),
	}

	if !message.Timestamp.IsZero() {
		embed.Timestamp = message.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}

	if message.Author != nil {
		name := message.Author.Username
		if message.Member != nil && message.Member.Nick != "" {
			name += " ~ " + message.Member.Nick
		}
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    name,
			IconURL: message.Author.AvatarURL("256"),
		}
	}

	if image := ImageURL(message); image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: image}
	}
	return embed
}

// ImageURL returns the first image attached to or linked in message
func ImageURL(message *discordgo.Message) string {
	for _, attachment := range message.Attachments {
		if isImageURL(attachment.URL) {
			return attachment.URL
		}
	}

	for _, foundURL := range xurls.Strict.FindAllString(message.Content, -1) {
		if isImageURL(foundURL) {
			return foundURL
		}
	}
	return ""
}

func isImageURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	extension := strings.ToLower(path.Ext(parsed.Path))
	for _, imageExtension := range imageExtensions {
		if extension == imageExtension {
			return true
		}
	}
	return false
}

func truncate(text string, length int) string {
	if utf8.RuneCountInString(text) <= length {
		return text
	}
	return string([]rune(text)[:length]) + "…"
}
