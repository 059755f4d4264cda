// Package config handles configuration persistence for the rmclink gateway.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"rmclink/rmc"
)

// Config holds the complete application configuration.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	PollRate   time.Duration    `yaml:"poll_rate"`
	Registers  []RegisterGroup  `yaml:"registers"`
	MQTT       []MQTTConfig     `yaml:"mqtt,omitempty"`
	Valkey     []ValkeyConfig   `yaml:"valkey,omitempty"`
	Kafka      []KafkaConfig    `yaml:"kafka,omitempty"`
	Web        WebConfig        `yaml:"web"`

	// Data mutex protects config fields against concurrent access.
	dataMu sync.Mutex `yaml:"-"`
}

// ControllerConfig identifies the RMC75E to talk to.
type ControllerConfig struct {
	Name    string        `yaml:"name"`
	Address string        `yaml:"address"` // IP address or hostname
	Port    uint16        `yaml:"port,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// RegisterGroup names a contiguous run of registers polled as a unit.
// Address uses the RMC documentation convention, e.g. "F56:0".
type RegisterGroup struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Count    uint16 `yaml:"count"`
	Type     string `yaml:"type,omitempty"` // "float" (default) or "int32"
	Writable bool   `yaml:"writable,omitempty"`
}

// BaseAddress parses the group's address string.
func (g *RegisterGroup) BaseAddress() (rmc.Address, error) {
	return rmc.ParseAddress(g.Address)
}

// Datatype parses the group's type field.
func (g *RegisterGroup) Datatype() (rmc.Datatype, error) {
	return rmc.ParseDatatype(g.Type)
}

// MQTTConfig holds MQTT publisher configuration.
type MQTTConfig struct {
	Name      string `yaml:"name"`
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	ClientID  string `yaml:"client_id"`
	RootTopic string `yaml:"root_topic"`
	UseTLS    bool   `yaml:"use_tls,omitempty"`
}

// ValkeyConfig holds Valkey/Redis publisher configuration.
type ValkeyConfig struct {
	Name           string        `yaml:"name"`
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"` // host:port format
	Password       string        `yaml:"password,omitempty"`
	Database       int           `yaml:"database"`
	KeyPrefix      string        `yaml:"key_prefix,omitempty"`
	UseTLS         bool          `yaml:"use_tls,omitempty"`
	KeyTTL         time.Duration `yaml:"key_ttl,omitempty"`          // 0 = no expiry
	PublishChanges bool          `yaml:"publish_changes,omitempty"` // Publish to Pub/Sub on changes
}

// KafkaConfig holds Kafka cluster configuration.
type KafkaConfig struct {
	Name          string        `yaml:"name"`
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	UseTLS        bool          `yaml:"use_tls,omitempty"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify,omitempty"`
	SASLMechanism string        `yaml:"sasl_mechanism,omitempty"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string        `yaml:"username,omitempty"`
	Password      string        `yaml:"password,omitempty"`
	RequiredAcks  int           `yaml:"required_acks,omitempty"` // -1=all, 0=none, 1=leader
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	RetryBackoff  time.Duration `yaml:"retry_backoff,omitempty"`
	Topic         string        `yaml:"topic,omitempty"`
}

// WebConfig holds web server configuration.
type WebConfig struct {
	Enabled       bool      `yaml:"enabled"`
	Host          string    `yaml:"host"`
	Port          int       `yaml:"port"`
	SessionSecret string    `yaml:"session_secret,omitempty"`
	Users         []WebUser `yaml:"users,omitempty"`
}

// WebUser represents a web interface user.
type WebUser struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	Role         string `yaml:"role"`          // "admin" or "viewer"
}

// Web user roles
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Name:    "rmc75e",
			Port:    44818,
			Timeout: 5 * time.Second,
		},
		PollRate:  time.Second,
		Registers: []RegisterGroup{},
		MQTT:      []MQTTConfig{},
		Valkey:    []ValkeyConfig{},
		Kafka:     []KafkaConfig{},
		Web: WebConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
	}
}

// DefaultPath returns the default configuration file path (~/.rmclink/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".rmclink", "config.yaml")
}

// Load reads configuration from a YAML file.  A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	dirty := false

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		dirty = true
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Generate session secret if not already set (needed for web login)
	if cfg.Web.SessionSecret == "" {
		secret := make([]byte, 32)
		rand.Read(secret)
		cfg.Web.SessionSecret = base64.StdEncoding.EncodeToString(secret)
		dirty = true
	}

	if dirty {
		cfg.Save(path) // Best-effort save
	}

	return cfg, nil
}

// Save marshals the config and writes it to path.
func (c *Config) Save(path string) error {
	c.dataMu.Lock()
	data, err := yaml.Marshal(c)
	c.dataMu.Unlock()

	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Controller.Address == "" {
		return fmt.Errorf("controller address is required")
	}

	seen := make(map[string]bool, len(c.Registers))
	for i := range c.Registers {
		g := &c.Registers[i]
		if g.Name == "" {
			return fmt.Errorf("register group %d: name is required", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("register group %q: duplicate name", g.Name)
		}
		seen[g.Name] = true

		if _, err := g.BaseAddress(); err != nil {
			return fmt.Errorf("register group %q: %w", g.Name, err)
		}
		if _, err := g.Datatype(); err != nil {
			return fmt.Errorf("register group %q: %w", g.Name, err)
		}
		if g.Count < 1 {
			return fmt.Errorf("register group %q: count must be >= 1", g.Name)
		}
	}
	return nil
}

// FindGroup returns the register group with the given name, or nil if not found.
func (c *Config) FindGroup(name string) *RegisterGroup {
	for i := range c.Registers {
		if c.Registers[i].Name == name {
			return &c.Registers[i]
		}
	}
	return nil
}

// AddGroup adds a new register group.
func (c *Config) AddGroup(group RegisterGroup) {
	c.Registers = append(c.Registers, group)
}

// RemoveGroup removes a register group by name.
func (c *Config) RemoveGroup(name string) bool {
	for i, g := range c.Registers {
		if g.Name == name {
			c.Registers = append(c.Registers[:i], c.Registers[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateGroup updates an existing register group.
func (c *Config) UpdateGroup(name string, updated RegisterGroup) bool {
	for i, g := range c.Registers {
		if g.Name == name {
			c.Registers[i] = updated
			return true
		}
	}
	return false
}

// FindMQTT returns the MQTT config with the given name, or nil if not found.
func (c *Config) FindMQTT(name string) *MQTTConfig {
	for i := range c.MQTT {
		if c.MQTT[i].Name == name {
			return &c.MQTT[i]
		}
	}
	return nil
}

// AddMQTT adds a new MQTT configuration.
func (c *Config) AddMQTT(mqtt MQTTConfig) {
	c.MQTT = append(c.MQTT, mqtt)
}

// RemoveMQTT removes an MQTT config by name.
func (c *Config) RemoveMQTT(name string) bool {
	for i, m := range c.MQTT {
		if m.Name == name {
			c.MQTT = append(c.MQTT[:i], c.MQTT[i+1:]...)
			return true
		}
	}
	return false
}

// FindValkey returns the Valkey config with the given name, or nil if not found.
func (c *Config) FindValkey(name string) *ValkeyConfig {
	for i := range c.Valkey {
		if c.Valkey[i].Name == name {
			return &c.Valkey[i]
		}
	}
	return nil
}

// AddValkey adds a new Valkey configuration.
func (c *Config) AddValkey(valkey ValkeyConfig) {
	c.Valkey = append(c.Valkey, valkey)
}

// RemoveValkey removes a Valkey config by name.
func (c *Config) RemoveValkey(name string) bool {
	for i, v := range c.Valkey {
		if v.Name == name {
			c.Valkey = append(c.Valkey[:i], c.Valkey[i+1:]...)
			return true
		}
	}
	return false
}

// FindKafka returns the Kafka config with the given name, or nil if not found.
func (c *Config) FindKafka(name string) *KafkaConfig {
	for i := range c.Kafka {
		if c.Kafka[i].Name == name {
			return &c.Kafka[i]
		}
	}
	return nil
}

// AddKafka adds a new Kafka configuration.
func (c *Config) AddKafka(kafka KafkaConfig) {
	c.Kafka = append(c.Kafka, kafka)
}

// RemoveKafka removes a Kafka config by name.
func (c *Config) RemoveKafka(name string) bool {
	for i, k := range c.Kafka {
		if k.Name == name {
			c.Kafka = append(c.Kafka[:i], c.Kafka[i+1:]...)
			return true
		}
	}
	return false
}

// FindUser returns the web user with the given username, or nil if not found.
func (w *WebConfig) FindUser(username string) *WebUser {
	for i := range w.Users {
		if w.Users[i].Username == username {
			return &w.Users[i]
		}
	}
	return nil
}

// AddWebUser adds a new web user.
func (c *Config) AddWebUser(user WebUser) {
	c.Web.Users = append(c.Web.Users, user)
}

// RemoveWebUser removes a web user by username.
func (c *Config) RemoveWebUser(username string) bool {
	for i, u := range c.Web.Users {
		if u.Username == username {
			c.Web.Users = append(c.Web.Users[:i], c.Web.Users[i+1:]...)
			return true
		}
	}
	return false
}
