package dialect

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Dialect)
)

// Register makes a dialect available under its configuration name.
// Implementations register themselves from init.
func Register(name string, factory func() Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("dialect %q registered twice", name))
	}
	registry[name] = factory
}

// Resolve returns a new dialect instance for the configured client name
func Resolve(client string) (Dialect, error) {
	registryMu.RLock()
	factory, ok := registry[client]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database client %q (registered: %v)", client, Names())
	}
	return factory(), nil
}

// Names returns the registered dialect names in sorted order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
