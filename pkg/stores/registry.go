package stores

import (
	"fmt"
	"sync"

	"github.com/cuemby/librarian/pkg/errs"
)

// Registry maps a store name to its live Driver, built once from
// configuration at boot and looked up by name whenever a task needs to
// touch a store's filesystem.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register installs driver under name, replacing any existing driver of
// the same name.
func (r *Registry) Register(name string, driver Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = driver
}

// Get looks up the Driver for name.
func (r *Registry) Get(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	if !ok {
		return nil, errs.StoreUnavailablef("no driver registered for store %q", name)
	}
	return d, nil
}

// BuildLocal is a convenience constructor used by config loading: it
// builds a LocalDriver rooted at pathPrefix and registers it under name.
func (r *Registry) BuildLocal(name, pathPrefix string) error {
	d, err := NewLocalDriver(pathPrefix)
	if err != nil {
		return fmt.Errorf("store %q: %w", name, err)
	}
	r.Register(name, d)
	return nil
}
