package starboard

import (
	"sync"
	"time"

	redisCache "github.com/go-redis/cache"
	"github.com/go-redis/redis"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack"
)

// SelfStarCooldown is how long a user is not warned again for starring their own message
const SelfStarCooldown = 60 * time.Second

// cooldowns kept in memory, the oldest are dropped first
const localCooldownsSize = 10000

func cooldownKey(userID string) string {
	return "robyul-starboard:self-star-cooldown:" + userID
}

// LocalCooldowns keeps cooldowns of this process in a local cache
type LocalCooldowns struct {
	sync.Mutex
	codec *redisCache.Codec
	log   *logrus.Entry
}

func NewLocalCooldowns(duration time.Duration, log *logrus.Entry) *LocalCooldowns {
	codec := &redisCache.Codec{
		Marshal: func(v interface{}) ([]byte, error) {
			return msgpack.Marshal(v)
		},
		Unmarshal: func(b []byte, v interface{}) error {
			return msgpack.Unmarshal(b, v)
		},
	}
	codec.UseLocalCache(localCooldownsSize, duration)

	return &LocalCooldowns{codec: codec, log: log}
}

func (c *LocalCooldowns) Acquire(userID string) bool {
	c.Lock()
	defer c.Unlock()

	var since int64
	if err := c.codec.Get(cooldownKey(userID), &since); err == nil {
		return false
	}

	err := c.codec.Set(&redisCache.Item{
		Key:    cooldownKey(userID),
		Object: time.Now().Unix(),
	})
	if err != nil {
		c.log.Warnf("starting self star cooldown failed: %s", err.Error())
	}
	return true
}

// RedisCooldowns shares cooldowns between shards
type RedisCooldowns struct {
	client   *redis.Client
	duration time.Duration
	log      *logrus.Entry
}

func NewRedisCooldowns(client *redis.Client, duration time.Duration, log *logrus.Entry) *RedisCooldowns {
	return &RedisCooldowns{client: client, duration: duration, log: log}
}

func (c *RedisCooldowns) Acquire(userID string) bool {
	acquired, err := c.client.SetNX(cooldownKey(userID), 1, c.duration).Result()
	if err != nil {
		// without redis the warning is sent, it is advisory
		c.log.Warnf("acquiring self star cooldown failed: %s", err.Error())
		return true
	}
	return acquired
}
