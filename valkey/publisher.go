// Package valkey stores register values in a Valkey/Redis server and
// announces changes over Pub/Sub.
package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rmclink/config"
	"rmclink/logging"
)

func debugLog(format string, args ...interface{}) {
	logging.DebugLog("valkey", format, args...)
}

// joinKey joins key segments with colons, trimming leading/trailing colons
// from each segment to avoid empty key parts.
func joinKey(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// RegisterMessage represents a register value stored in Valkey.
type RegisterMessage struct {
	Group     string      `json:"group"`
	Address   string      `json:"address"`
	Index     int         `json:"index"`
	Type      string      `json:"type"`
	Value     interface{} `json:"value"`
	Writable  bool        `json:"writable"`
	Timestamp time.Time   `json:"timestamp"`
}

// HealthMessage represents controller health stored in Valkey.
type HealthMessage struct {
	Controller string    `json:"controller"`
	Online     bool      `json:"online"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher handles publishing register values to a Valkey server.
type Publisher struct {
	config  *config.ValkeyConfig
	client  *redis.Client
	running bool
	mu      sync.RWMutex
}

// NewPublisher creates a new Valkey publisher.
func NewPublisher(cfg *config.ValkeyConfig) *Publisher {
	return &Publisher{config: cfg}
}

// Name returns the publisher's name.
func (p *Publisher) Name() string {
	return p.config.Name
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Start connects to the Valkey server.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := &redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if p.config.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	debugLog("Attempting to connect to Valkey at %s (DB: %d, TLS: %v)",
		p.config.Address, p.config.Database, p.config.UseTLS)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Valkey at %s: %w", p.config.Address, err)
	}

	debugLog("Connected to Valkey at %s", p.config.Address)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		client.Close()
		return nil
	}
	p.client = client
	p.running = true
	return nil
}

// Stop disconnects from the Valkey server.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

// buildKey constructs the storage key for a register.
func (p *Publisher) buildKey(group string, index int) string {
	return joinKey(p.config.KeyPrefix, "registers", group, fmt.Sprintf("%d", index))
}

// changeChannel is the Pub/Sub channel for change announcements.
func (p *Publisher) changeChannel() string {
	return joinKey(p.config.KeyPrefix, "changes")
}

// Publish stores one register value and optionally announces the change.
func (p *Publisher) Publish(group, address, typeName string, index int, value interface{}, writable bool) error {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return fmt.Errorf("publisher not running")
	}

	msg := RegisterMessage{
		Group:     group,
		Address:   address,
		Index:     index,
		Type:      typeName,
		Value:     value,
		Writable:  writable,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := p.buildKey(group, index)
	if err := client.Set(ctx, key, payload, p.config.KeyTTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	if p.config.PublishChanges {
		if err := client.Publish(ctx, p.changeChannel(), payload).Err(); err != nil {
			debugLog("Publish to channel failed: %v", err)
		}
	}
	return nil
}

// PublishHealth stores the controller's health status.
func (p *Publisher) PublishHealth(controller string, online bool, lastError string) error {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return fmt.Errorf("publisher not running")
	}

	msg := HealthMessage{
		Controller: controller,
		Online:     online,
		Error:      lastError,
		Timestamp:  time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := joinKey(p.config.KeyPrefix, "health", controller)
	return client.Set(ctx, key, payload, p.config.KeyTTL).Err()
}
