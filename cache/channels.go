package cache

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// How long a cached channel is valid
const channelTimeout = 15 * time.Second

type cachedChannel struct {
	channel   *discordgo.Channel
	fetchedAt time.Time
}

var (
	channels      = make(map[string]cachedChannel)
	channelsMutex sync.RWMutex
)

// Channel returns the channel from the state, a cached copy, or requests it
func Channel(id string) (*discordgo.Channel, error) {
	if channel, err := GetSession().State.Channel(id); err == nil {
		return channel, nil
	}

	channelsMutex.RLock()
	cached, ok := channels[id]
	channelsMutex.RUnlock()
	if ok && time.Since(cached.fetchedAt) < channelTimeout {
		return cached.channel, nil
	}

	channel, err := GetSession().Channel(id)
	if err != nil {
		return nil, err
	}

	channelsMutex.Lock()
	channels[id] = cachedChannel{channel: channel, fetchedAt: time.Now()}
	channelsMutex.Unlock()

	return channel, nil
}
