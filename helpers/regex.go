package helpers

import (
	"regexp"
	"strings"

	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/bradfitz/slice"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/renstrom/fuzzysearch/fuzzy"
)

var (
	// UserRegexStrict matches Discord User Mentions
	// Source: https://github.com/b1naryth1ef/disco/blob/master/disco/bot/command.py#L15
	UserRegexStrict = regexp.MustCompile(`^<@!?(\d+)>$`)

	// ChannelRegexStrict matches Discord Channel Mentions
	// Source: https://github.com/b1naryth1ef/disco/blob/master/disco/bot/command.py#L17
	ChannelRegexStrict = regexp.MustCompile(`^<#(\d+)>$`)

	snowflakeRegex = regexp.MustCompile(`^\d{15,21}$`)
)

// ParseSnowflake accepts a raw id or a user or channel mention and returns the id
func ParseSnowflake(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if snowflakeRegex.MatchString(text) {
		return text, true
	}
	for _, regex := range []*regexp.Regexp{ChannelRegexStrict, UserRegexStrict} {
		if parts := regex.FindStringSubmatch(text); len(parts) == 2 {
			return parts[1], true
		}
	}
	return "", false
}

// GetGuildTextChannel resolves a channel mention, id or name to a text channel of guildID
func GetGuildTextChannel(guildID string, text string) (*discordgo.Channel, error) {
	if channelID, ok := ParseSnowflake(text); ok {
		channel, err := cache.Channel(channelID)
		if err != nil || channel.GuildID != guildID || channel.Type != discordgo.ChannelTypeGuildText {
			return nil, errors.New(GetText("plugins.starboard.invalid-channel"))
		}
		return channel, nil
	}

	guild, err := cache.GetSession().State.Guild(guildID)
	if err != nil {
		return nil, errors.New(GetText("plugins.starboard.invalid-channel"))
	}
	channel := MatchChannelName(guild.Channels, text)
	if channel == nil {
		return nil, errors.New(GetText("plugins.starboard.invalid-channel"))
	}
	return channel, nil
}

// MatchChannelName returns the text channel whose name matches text best, nil if none matches
func MatchChannelName(channels []*discordgo.Channel, text string) *discordgo.Channel {
	text = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(text), "#"))
	if text == "" {
		return nil
	}

	byName := make(map[string]*discordgo.Channel)
	names := make([]string, 0, len(channels))
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		name := strings.ToLower(channel.Name)
		if name == text {
			return channel
		}
		if _, ok := byName[name]; !ok {
			byName[name] = channel
			names = append(names, name)
		}
	}

	ranks := fuzzy.RankFind(text, names)
	if len(ranks) <= 0 {
		return nil
	}
	slice.Sort(ranks, func(i, j int) bool {
		if ranks[i].Distance == ranks[j].Distance {
			return ranks[i].Target < ranks[j].Target
		}
		return ranks[i].Distance < ranks[j].Distance
	})
	return byName[ranks[0].Target]
}
