package cache

import (
	"errors"
	"sync"

	"github.com/Seklfreak/robyul-starboard/bus"
)

var (
	eventBus      *bus.Bus
	eventBusMutex sync.RWMutex
)

func SetBus(b *bus.Bus) {
	eventBusMutex.Lock()
	eventBus = b
	eventBusMutex.Unlock()
}

func GetBus() *bus.Bus {
	eventBusMutex.RLock()
	defer eventBusMutex.RUnlock()

	if eventBus == nil {
		panic(errors.New("Tried to get event bus before cache#SetBus() was called"))
	}

	return eventBus
}
