// Package mqtt publishes register values to MQTT brokers and accepts
// write requests over a write topic.
package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"rmclink/config"
	"rmclink/logging"
)

func logMQTT(format string, args ...interface{}) {
	logging.DebugLog("mqtt", format, args...)
}

// MaxWriteWorkers is the maximum number of concurrent write goroutines per publisher.
const MaxWriteWorkers = 3

// MaxWriteQueueSize is the maximum number of pending write jobs per publisher.
const MaxWriteQueueSize = 100

// RegisterMessage is the JSON structure published for each register.
type RegisterMessage struct {
	Group     string      `json:"group"`
	Address   string      `json:"address"`
	Index     int         `json:"index"`
	Type      string      `json:"type"`
	Value     interface{} `json:"value"`
	Writable  bool        `json:"writable"`
	Timestamp string      `json:"timestamp"`
}

// WriteRequest is the JSON structure for incoming write requests.
type WriteRequest struct {
	Group string  `json:"group"`
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// WriteResponse is the JSON structure for write responses.
type WriteResponse struct {
	Group     string  `json:"group"`
	Index     int     `json:"index"`
	Value     float64 `json:"value"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// WriteHandler is a callback for handling write requests.
type WriteHandler func(group string, index int, value float64) error

// writeJob represents a pending write operation.
type writeJob struct {
	client  pahomqtt.Client
	req     WriteRequest
	handler WriteHandler
	err     error // Pre-queued error, skip the handler when set
}

// Publisher handles the connection to a single MQTT broker.
type Publisher struct {
	config  *config.MQTTConfig
	client  pahomqtt.Client
	running bool
	mu      sync.RWMutex

	writeHandler WriteHandler

	writeQueue chan writeJob
	wg         sync.WaitGroup
	stopChan   chan struct{}
}

// NewPublisher creates a publisher for a single broker.
func NewPublisher(cfg *config.MQTTConfig) *Publisher {
	return &Publisher{
		config:     cfg,
		writeQueue: make(chan writeJob, MaxWriteQueueSize),
		stopChan:   make(chan struct{}),
	}
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

// Address returns the broker address string.
func (p *Publisher) Address() string {
	if p.config.UseTLS {
		return fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port)
	}
	return fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port)
}

// SetWriteHandler sets the callback for handling write requests.
func (p *Publisher) SetWriteHandler(handler WriteHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeHandler = handler
}

// Start connects to the MQTT broker and subscribes the write topic.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	// Build options without holding the lock
	opts := pahomqtt.NewClientOptions()
	if p.config.UseTLS {
		opts.AddBroker(fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port))
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port))
	}

	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	logMQTT("Attempting to connect to MQTT broker %s:%d", p.config.Broker, p.config.Port)

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	if token.Error() != nil {
		return token.Error()
	}

	logMQTT("Connected to MQTT broker %s:%d", p.config.Broker, p.config.Port)

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	p.mu.Unlock()

	p.startWriteWorkers()
	p.subscribeWriteTopic()
	return nil
}

// Stop disconnects from the MQTT broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running || p.client == nil {
		p.mu.Unlock()
		return
	}
	p.running = false
	client := p.client
	p.client = nil

	oldStop := p.stopChan
	p.stopChan = make(chan struct{})
	p.writeQueue = make(chan writeJob, MaxWriteQueueSize)
	p.mu.Unlock()

	close(oldStop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		logMQTT("Timeout waiting for write workers to stop")
	}

	client.Disconnect(500)
}

// BuildTopic constructs the value topic for a register.
func (p *Publisher) BuildTopic(group string, index int) string {
	return fmt.Sprintf("%s/%s/%d", p.config.RootTopic, group, index)
}

// Publish sends one register value to the broker, retained.
func (p *Publisher) Publish(group, address, typeName string, index int, value interface{}, writable bool) bool {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return false
	}

	msg := RegisterMessage{
		Group:     group,
		Address:   address,
		Index:     index,
		Type:      typeName,
		Value:     value,
		Writable:  writable,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	token := client.Publish(p.BuildTopic(group, index), 1, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return false
	}
	return token.Error() == nil
}

func (p *Publisher) startWriteWorkers() {
	for i := 0; i < MaxWriteWorkers; i++ {
		p.wg.Add(1)
		go p.writeWorker()
	}
}

func (p *Publisher) writeWorker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case job, ok := <-p.writeQueue:
			if !ok {
				return
			}
			writeErr := job.err
			if writeErr == nil {
				if job.handler == nil {
					writeErr = fmt.Errorf("no write handler configured")
				} else {
					logMQTT("Executing write: %s[%d] = %v", job.req.Group, job.req.Index, job.req.Value)
					writeErr = job.handler(job.req.Group, job.req.Index, job.req.Value)
					if writeErr != nil {
						logMQTT("Write error: %v", writeErr)
					}
				}
			}
			p.publishWriteResponse(job.client, job.req, writeErr)
		}
	}
}

func (p *Publisher) subscribeWriteTopic() {
	p.mu.RLock()
	client := p.client
	rootTopic := p.config.RootTopic
	p.mu.RUnlock()

	if client == nil {
		return
	}

	topic := fmt.Sprintf("%s/write", rootTopic)
	token := client.Subscribe(topic, 1, p.handleWriteMessage)
	if !token.WaitTimeout(2*time.Second) || token.Error() != nil {
		if token.Error() != nil {
			logMQTT("Subscribe error for %s: %v", topic, token.Error())
		} else {
			logMQTT("Subscribe timeout for %s", topic)
		}
		return
	}
	logMQTT("Subscribed to: %s", topic)
}

// handleWriteMessage processes incoming write requests.
func (p *Publisher) handleWriteMessage(client pahomqtt.Client, msg pahomqtt.Message) {
	logMQTT("Received write request: %s", string(msg.Payload()))

	p.mu.RLock()
	handler := p.writeHandler
	p.mu.RUnlock()

	var req WriteRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		p.queueJob(writeJob{client: client, err: fmt.Errorf("invalid JSON: %v", err)})
		return
	}
	if req.Group == "" {
		p.queueJob(writeJob{client: client, req: req, err: fmt.Errorf("group is required")})
		return
	}
	p.queueJob(writeJob{client: client, req: req, handler: handler})
}

// queueJob queues a write job, dropping with a response when the queue is full.
func (p *Publisher) queueJob(job writeJob) {
	select {
	case p.writeQueue <- job:
	default:
		logMQTT("Write queue full, rejecting write for %s[%d]", job.req.Group, job.req.Index)
		go p.publishWriteResponse(job.client, job.req, fmt.Errorf("write queue full, try again later"))
	}
}

func (p *Publisher) publishWriteResponse(client pahomqtt.Client, req WriteRequest, err error) {
	resp := WriteResponse{
		Group:     req.Group,
		Index:     req.Index,
		Value:     req.Value,
		Success:   err == nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	payload, _ := json.Marshal(resp)

	topic := fmt.Sprintf("%s/write/response", p.config.RootTopic)
	token := client.Publish(topic, 1, false, payload)
	token.WaitTimeout(2 * time.Second)
}
