package cache

import (
	"errors"
	"sync"
)

var (
	pluginCommandList []string
	modulelistsMutex  sync.RWMutex
)

func SetPluginList(l []string) {
	modulelistsMutex.Lock()
	pluginCommandList = l
	modulelistsMutex.Unlock()
}

func GetPluginList() []string {
	modulelistsMutex.RLock()
	defer modulelistsMutex.RUnlock()

	if pluginCommandList == nil {
		panic(errors.New("Tried to get plugin list before cache#SetPluginList() was called"))
	}

	return pluginCommandList
}
