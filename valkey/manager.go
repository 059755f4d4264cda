package valkey

import (
	"sync"

	"rmclink/config"
)

// Manager manages multiple Valkey publishers.
type Manager struct {
	publishers map[string]*Publisher
	mu         sync.RWMutex
}

// NewManager creates a new Valkey manager.
func NewManager() *Manager {
	return &Manager{
		publishers: make(map[string]*Publisher),
	}
}

// Add adds a publisher to the manager.
func (m *Manager) Add(pub *Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishers[pub.Name()] = pub
}

// Remove removes a publisher by name.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	pub, exists := m.publishers[name]
	if exists {
		delete(m.publishers, name)
	}
	m.mu.Unlock()

	if exists {
		pub.Stop()
	}
}

// Get returns a publisher by name.
func (m *Manager) Get(name string) *Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publishers[name]
}

// List returns all publishers.
func (m *Manager) List() []*Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Publisher, 0, len(m.publishers))
	for _, pub := range m.publishers {
		result = append(result, pub)
	}
	return result
}

// LoadFromConfig creates publishers from configuration.
func (m *Manager) LoadFromConfig(cfgs []config.ValkeyConfig) {
	for i := range cfgs {
		m.Add(NewPublisher(&cfgs[i]))
	}
}

// StartAll starts all publishers that are configured as enabled.
func (m *Manager) StartAll() int {
	started := 0
	for _, pub := range m.List() {
		if pub.config.Enabled && !pub.IsRunning() {
			if err := pub.Start(); err != nil {
				debugLog("Failed to start %s: %v", pub.Name(), err)
			} else {
				started++
			}
		}
	}
	return started
}

// StopAll stops all publishers.
func (m *Manager) StopAll() {
	for _, pub := range m.List() {
		pub.Stop()
	}
}

// Publish publishes one register value to all running publishers.
func (m *Manager) Publish(group, address, typeName string, index int, value interface{}, writable bool) {
	for _, pub := range m.List() {
		if pub.IsRunning() {
			if err := pub.Publish(group, address, typeName, index, value, writable); err != nil {
				debugLog("%s: publish failed: %v", pub.Name(), err)
			}
		}
	}
}

// PublishHealth publishes controller health to all running publishers.
func (m *Manager) PublishHealth(controller string, online bool, lastError string) {
	for _, pub := range m.List() {
		if pub.IsRunning() {
			pub.PublishHealth(controller, online, lastError)
		}
	}
}

// AnyRunning returns true if any publisher is running.
func (m *Manager) AnyRunning() bool {
	for _, pub := range m.List() {
		if pub.IsRunning() {
			return true
		}
	}
	return false
}
