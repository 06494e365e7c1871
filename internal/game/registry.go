package game

import "sync"

var (
	mu       sync.RWMutex
	adapters = map[string]Adapter{}
)

func Register(adapter Adapter) {
	mu.Lock()
	defer mu.Unlock()
	adapters[adapter.Game()] = adapter
}

func Get(game string) Adapter {
	mu.RLock()
	defer mu.RUnlock()
	return adapters[game]
}

func All() map[string]Adapter {
	mu.RLock()
	defer mu.RUnlock()
	result := make(map[string]Adapter, len(adapters))
	for k, v := range adapters {
		result[k] = v
	}
	return result
}
