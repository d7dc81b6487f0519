package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry caches one transport per host so that connections are reused
// across transfers and checksums.
type Registry struct {
	factory Factory

	mu         sync.RWMutex
	transports map[string]Transport
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:    factory,
		transports: make(map[string]Transport),
	}
}

// Register adds a ready-made transport for host. A host can only be
// registered once.
func (r *Registry) Register(host string, t Transport) error {
	cfg, err := ParseHost(host)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transports[cfg.Key()]; exists {
		return fmt.Errorf("transport for %s already registered", host)
	}
	r.transports[cfg.Key()] = t
	return nil
}

// Get returns the transport for host, creating it on first use.
func (r *Registry) Get(ctx context.Context, host string) (Transport, HostConfig, error) {
	cfg, err := ParseHost(host)
	if err != nil {
		return nil, HostConfig{}, err
	}
	key := cfg.Key()

	r.mu.RLock()
	t, ok := r.transports[key]
	r.mu.RUnlock()
	if ok {
		return t, cfg, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.transports[key]; ok {
		return t, cfg, nil
	}
	if r.factory == nil {
		return nil, cfg, fmt.Errorf("no transport registered for %s", host)
	}

	t, err = r.factory.Create(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	r.transports[key] = t
	return t, cfg, nil
}

// Hosts returns the canonical keys of all cached transports.
func (r *Registry) Hosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hosts := make([]string, 0, len(r.transports))
	for key := range r.transports {
		hosts = append(hosts, key)
	}
	sort.Strings(hosts)
	return hosts
}

// Close closes and forgets every cached transport.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, t := range r.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		delete(r.transports, key)
	}
	return errors.Join(errs...)
}
