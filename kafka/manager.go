package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rmclink/config"
	"rmclink/logging"
)

// ChangeEvent is the JSON structure produced for each register change.
type ChangeEvent struct {
	Group     string      `json:"group"`
	Address   string      `json:"address"`
	Index     int         `json:"index"`
	Type      string      `json:"type"`
	Value     interface{} `json:"value"`
	Writable  bool        `json:"writable"`
	Timestamp time.Time   `json:"timestamp"`
}

// Manager manages producers for multiple Kafka clusters.
type Manager struct {
	producers map[string]*Producer
	mu        sync.RWMutex
}

// NewManager creates a new Kafka manager.
func NewManager() *Manager {
	return &Manager{
		producers: make(map[string]*Producer),
	}
}

// Add adds a producer to the manager.
func (m *Manager) Add(prod *Producer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.producers[prod.Name()] = prod
}

// Remove removes a producer by name.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	prod, exists := m.producers[name]
	if exists {
		delete(m.producers, name)
	}
	m.mu.Unlock()

	if exists {
		prod.Disconnect()
	}
}

// Get returns a producer by name.
func (m *Manager) Get(name string) *Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.producers[name]
}

// List returns all producers.
func (m *Manager) List() []*Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Producer, 0, len(m.producers))
	for _, prod := range m.producers {
		result = append(result, prod)
	}
	return result
}

// LoadFromConfig creates producers from configuration.
func (m *Manager) LoadFromConfig(cfgs []config.KafkaConfig) {
	for i := range cfgs {
		m.Add(NewProducer(&cfgs[i]))
	}
}

// ConnectAll connects all producers that are configured as enabled.
func (m *Manager) ConnectAll() int {
	connected := 0
	for _, prod := range m.List() {
		if prod.config.Enabled && prod.GetStatus() != StatusConnected {
			if err := prod.Connect(); err != nil {
				logging.DebugLog("kafka", "Failed to connect %s: %v", prod.Name(), err)
			} else {
				connected++
			}
		}
	}
	return connected
}

// DisconnectAll disconnects all producers.
func (m *Manager) DisconnectAll() {
	for _, prod := range m.List() {
		prod.Disconnect()
	}
}

// PublishChange produces one register change event to every connected cluster.
func (m *Manager) PublishChange(ctx context.Context, group, address, typeName string, index int, value interface{}, writable bool) {
	event := ChangeEvent{
		Group:     group,
		Address:   address,
		Index:     index,
		Type:      typeName,
		Value:     value,
		Writable:  writable,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	key := []byte(fmt.Sprintf("%s/%d", group, index))

	for _, prod := range m.List() {
		if prod.GetStatus() != StatusConnected {
			continue
		}
		if err := prod.Produce(ctx, prod.Topic(), key, payload); err != nil {
			logging.DebugLog("kafka", "%s: produce failed: %v", prod.Name(), err)
		}
	}
}

// AnyConnected returns true if any producer is connected.
func (m *Manager) AnyConnected() bool {
	for _, prod := range m.List() {
		if prod.GetStatus() == StatusConnected {
			return true
		}
	}
	return false
}
