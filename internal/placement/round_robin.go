package placement

import (
	"fmt"
	"strings"
	"sync"
)

// RoundRobinPlacer implements round-robin host placement
type RoundRobinPlacer struct {
	mu    sync.RWMutex
	slots []string
}

// NewRoundRobinPlacer creates a new round-robin placer
func NewRoundRobinPlacer() *RoundRobinPlacer {
	return &RoundRobinPlacer{
		slots: make([]string, 0),
	}
}

// NewRoundRobinPlacerFromHosts registers every host in order.
func NewRoundRobinPlacerFromHosts(hosts []string) (*RoundRobinPlacer, error) {
	p := NewRoundRobinPlacer()
	for _, host := range hosts {
		if err := p.RegisterHost(host); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RegisterHost adds a slot for host
func (p *RoundRobinPlacer) RegisterHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("host name cannot be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.slots = append(p.slots, host)
	return nil
}

// Place selects a host using round-robin strategy
func (p *RoundRobinPlacer) Place(index int) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.slots) == 0 {
		return "", fmt.Errorf("no hosts registered")
	}
	if index < 0 {
		index = -index
	}
	return p.slots[index%len(p.slots)], nil
}

// ListHosts returns all registered host names
func (p *RoundRobinPlacer) ListHosts() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]bool, len(p.slots))
	hosts := make([]string, 0, len(p.slots))
	for _, host := range p.slots {
		if !seen[host] {
			seen[host] = true
			hosts = append(hosts, host)
		}
	}
	return hosts
}
