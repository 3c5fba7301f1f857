package helpers

import (
	"sync"
	"time"

	"github.com/Seklfreak/robyul-starboard/cache"
	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/getsentry/raven-go"
	"github.com/globalsign/mgo/bson"
	redisCache "github.com/go-redis/cache"
)

var (
	guildSettingsCache = make(map[string]models.Config)
	cacheMutex         sync.RWMutex
)

const guildSettingsRedisExpiration = time.Minute * 5

func guildSettingsRedisKey(guildID string) string {
	return "robyul-starboard:guild-config:" + guildID
}

// GuildSettingsSet writes all $config into the db
func GuildSettingsSet(guild string, config models.Config) error {
	var settings models.Config

	err := MdbOne(
		MdbCollection(models.GuildConfigTable).Find(bson.M{"guildid": guild}),
		&settings,
	)

	config.GuildID = guild
	if IsMdbNotFound(err) {
		config.ID = ""
		config.ID, err = MDbInsert(models.GuildConfigTable, config)
	} else if err != nil {
		return err
	} else {
		config.ID = settings.ID
		err = MDbUpdate(models.GuildConfigTable, config.ID, config)
	}
	if err != nil {
		return err
	}

	// Update caches
	cacheMutex.Lock()
	guildSettingsCache[guild] = config
	cacheMutex.Unlock()

	if cache.HasRedisClient() {
		err = cache.GetRedisCacheCodec().Set(&redisCache.Item{
			Key:        guildSettingsRedisKey(guild),
			Object:     config,
			Expiration: guildSettingsRedisExpiration,
		})
		if err != nil {
			cache.GetLogger().WithField("module", "db").Warnf("caching settings for %s failed: %s", guild, err.Error())
		}
	}

	return nil
}

// GuildSettingsGet returns all config values for the guild or a default object
func GuildSettingsGet(guild string) (models.Config, error) {
	var settings models.Config

	if cache.HasRedisClient() {
		if err := cache.GetRedisCacheCodec().Get(guildSettingsRedisKey(guild), &settings); err == nil {
			return settings, nil
		}
	}

	err := MdbOne(
		MdbCollection(models.GuildConfigTable).Find(bson.M{"guildid": guild}),
		&settings,
	)
	if IsMdbNotFound(err) {
		return models.Config{}.Default(guild), nil
	}
	if err != nil {
		return settings, err
	}

	if cache.HasRedisClient() {
		err = cache.GetRedisCacheCodec().Set(&redisCache.Item{
			Key:        guildSettingsRedisKey(guild),
			Object:     settings,
			Expiration: guildSettingsRedisExpiration,
		})
		if err != nil {
			cache.GetLogger().WithField("module", "db").Warnf("caching settings for %s failed: %s", guild, err.Error())
		}
	}
	return settings, nil
}

// GuildSettingsGetCached returns the settings kept in memory, loading them if they are missing
func GuildSettingsGetCached(id string) models.Config {
	cacheMutex.RLock()
	settings, ok := guildSettingsCache[id]
	cacheMutex.RUnlock()
	if ok {
		return settings
	}

	settings, err := GuildSettingsGet(id)
	if err != nil {
		raven.CaptureError(err, map[string]string{"GuildID": id})
		return models.Config{}.Default(id)
	}

	cacheMutex.Lock()
	guildSettingsCache[id] = settings
	cacheMutex.Unlock()
	return settings
}

// GetPrefixForServer gets the prefix for $guild
func GetPrefixForServer(guildID string) string {
	prefix := GuildSettingsGetCached(guildID).Prefix
	if prefix == "" {
		return ConfigString("bot.prefix", "_")
	}
	return prefix
}

// GuildSettingsUpdater refreshes the settings of all guilds every 15 seconds
func GuildSettingsUpdater() {
	for {
		for _, guild := range cache.GetSession().State.Guilds {
			settings, e := GuildSettingsGet(guild.ID)
			if e != nil {
				raven.CaptureError(e, map[string]string{})
				continue
			}

			cacheMutex.Lock()
			guildSettingsCache[guild.ID] = settings
			cacheMutex.Unlock()
		}

		time.Sleep(15 * time.Second)
	}
}

// GuildSettings reads guild settings through the in-memory cache
type GuildSettings struct{}

// StarboardConfig returns the starboard settings of guildID
func (GuildSettings) StarboardConfig(guildID string) (models.StarboardConfig, error) {
	return GuildSettingsGetCached(guildID).Starboard(), nil
}
