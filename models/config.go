package models

import "github.com/globalsign/mgo/bson"

const (
	GuildConfigTable MongoDbCollection = "guild_config"
)

// Config holds the persisted settings of one guild
type Config struct {
	ID      bson.ObjectId `bson:"_id,omitempty"`
	GuildID string

	Prefix string

	StarboardEnabled         bool
	StarboardChannelID       string
	StarboardEmoji           string
	StarboardMinimum         int
	StarboardSelfStar        bool
	StarboardSelfStarWarning bool
}

// StarboardConfig is the read-only starboard view of a guild config
type StarboardConfig struct {
	Enabled              bool
	DestinationChannelID string
	TriggerEmoji         Emoji
	Threshold            int
	SelfStarEnabled      bool
	SelfStarWarning      bool
}

func (c Config) Default(guildID string) Config {
	return Config{
		GuildID: guildID,

		Prefix: "_",

		StarboardEnabled:         false,
		StarboardEmoji:           "⭐",
		StarboardMinimum:         1,
		StarboardSelfStarWarning: true,
	}
}

// Starboard returns the starboard settings of the config, thresholds below one are raised to one
func (c Config) Starboard() StarboardConfig {
	threshold := c.StarboardMinimum
	if threshold < 1 {
		threshold = 1
	}
	emoji := c.StarboardEmoji
	if emoji == "" {
		emoji = "⭐"
	}

	return StarboardConfig{
		Enabled:              c.StarboardEnabled,
		DestinationChannelID: c.StarboardChannelID,
		TriggerEmoji:         ParseEmoji(emoji),
		Threshold:            threshold,
		SelfStarEnabled:      c.StarboardSelfStar,
		SelfStarWarning:      c.StarboardSelfStarWarning,
	}
}
