package albumcover

import (
	"sync"
	"sync/atomic"

	"coverfetch/internal/logger"
)

// Providers is the registry of available cover providers. It is safe for
// concurrent use.
type Providers struct {
	log    *logger.Logger
	nextID atomic.Uint64

	mu      sync.Mutex
	entries []*registration
}

type registration struct {
	provider Provider
	removed  chan struct{}
}

// NewProviders creates an empty registry.
func NewProviders(log *logger.Logger) *Providers {
	if log == nil {
		log = logger.Discard()
	}
	return &Providers{log: log}
}

// AddProvider registers p. Registering the same provider twice is a no-op.
// A provider exposing Done() <-chan struct{} is removed when that channel closes.
func (r *Providers) AddProvider(p Provider) {
	r.mu.Lock()
	for _, e := range r.entries {
		if e.provider == p {
			r.mu.Unlock()
			return
		}
	}
	reg := &registration{provider: p, removed: make(chan struct{})}
	r.entries = append(r.entries, reg)
	r.mu.Unlock()

	r.log.Debug("registered cover provider %s", p.Name())

	if c, ok := p.(closer); ok {
		go func() {
			select {
			case <-c.Done():
				r.RemoveProvider(p)
			case <-reg.removed:
			}
		}()
	}
}

// RemoveProvider unregisters p. Removing an unknown provider only logs.
func (r *Providers) RemoveProvider(p Provider) {
	r.mu.Lock()
	idx := -1
	for i, e := range r.entries {
		if e.provider == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		r.log.Warn("tried to remove cover provider %s which was not registered", p.Name())
		return
	}
	reg := r.entries[idx]
	r.entries = append(r.entries[:idx:idx], r.entries[idx+1:]...)
	r.mu.Unlock()

	close(reg.removed)
	r.log.Debug("removed cover provider %s", p.Name())
}

// List returns a snapshot of the registered providers in registration order.
func (r *Providers) List() []Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Provider, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.provider
	}
	return out
}

// Get returns the first registered provider called name.
func (r *Providers) Get(name string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.provider.Name() == name {
			return e.provider, true
		}
	}
	return nil, false
}

// NextID returns a process-unique id for a provider search.
func (r *Providers) NextID() uint64 {
	return r.nextID.Add(1)
}
