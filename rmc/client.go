package rmc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"rmclink/cip"
	"rmclink/logging"
)

// Client is an explicit-messaging register client for one RMC75E.  It owns
// the session lifecycle against the messaging engine and serializes requests:
// at most one is in flight per session.
//
// Connect and Disconnect are both idempotent.  There is no automatic
// reconnect: after a transport failure the session is indeterminate and the
// caller must Disconnect then Connect to recover, since register writes are
// not guaranteed idempotent.
type Client struct {
	host      string
	transport Transport

	mu        sync.Mutex
	connected bool
}

type options struct {
	port      uint16
	timeout   time.Duration
	transport Transport
}

// Option is a functional option for NewClient.
type Option func(*options)

// WithPort overrides the default EtherNet/IP port (44818).
func WithPort(port uint16) Option {
	return func(o *options) {
		o.port = port
	}
}

// WithTimeout sets the per-request deadline.  Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTransport injects a messaging engine, replacing the built-in
// EtherNet/IP transport.  Used for testing against a fake.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// NewClient creates a client for the controller at host.  No resources are
// acquired until Connect.
func NewClient(host string, opts ...Option) *Client {
	cfg := &options{port: 44818, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	t := cfg.transport
	if t == nil {
		t = NewEipTransport(host, cfg.port, cfg.timeout)
	}

	return &Client{host: host, transport: t}
}

// Host returns the configured controller address.
func (c *Client) Host() string {
	if c == nil {
		return ""
	}
	return c.host
}

// IsConnected reports whether Connect has succeeded and Disconnect has not
// been called since.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect registers a session with the controller.  A no-op when already
// connected.
func (c *Client) Connect() error {
	if c == nil {
		return fmt.Errorf("Connect: nil client")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	if err := c.transport.Connect(); err != nil {
		return transportError("Connect", err)
	}

	c.connected = true
	logging.DebugLog("rmc", "connected to %s", c.host)
	return nil
}

// Disconnect unregisters the session.  A no-op when already disconnected.
func (c *Client) Disconnect() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.connected = false
	if err := c.transport.Disconnect(); err != nil {
		return transportError("Disconnect", err)
	}
	logging.DebugLog("rmc", "disconnected from %s", c.host)
	return nil
}

// ReadFloat reads count float registers starting at file:element.  Result i
// corresponds to element+i.
func (c *Client) ReadFloat(file, element, count uint16) ([]float32, error) {
	words, err := c.readRange("ReadFloat", Range{Base: Address{File: file, Element: element}, Count: count})
	if err != nil {
		return nil, err
	}
	return DecodeFloats(words, int(count))
}

// ReadInt32 reads count int32 registers starting at file:element.
func (c *Client) ReadInt32(file, element, count uint16) ([]int32, error) {
	words, err := c.readRange("ReadInt32", Range{Base: Address{File: file, Element: element}, Count: count})
	if err != nil {
		return nil, err
	}
	return DecodeInt32s(words, int(count))
}

// WriteFloat writes values to consecutive float registers starting at
// file:element.  Elements are written in ascending order; the range is not
// atomic on the device, so a failure partway through leaves earlier elements
// committed even though the call reports an error.
func (c *Client) WriteFloat(file, element uint16, values []float32) error {
	words := make([][]byte, len(values))
	for i, v := range values {
		words[i] = EncodeFloat(v)
	}
	return c.writeRange("WriteFloat", Address{File: file, Element: element}, words)
}

// WriteInt32 writes values to consecutive int32 registers starting at
// file:element.  Same ordering and partial-failure semantics as WriteFloat.
func (c *Client) WriteInt32(file, element uint16, values []int32) error {
	words := make([][]byte, len(values))
	for i, v := range values {
		words[i] = EncodeInt32(v)
	}
	return c.writeRange("WriteInt32", Address{File: file, Element: element}, words)
}

// readRange issues one Get_Attribute_Single per register, in ascending
// element order, and concatenates the words in request order.  The first
// non-success response aborts the remaining requests and discards any words
// already collected: the caller gets a single failure, never a partial list.
func (c *Client) readRange(op string, rng Range) ([]byte, error) {
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, notConnectedError(op)
	}

	out := make([]byte, 0, int(rng.Count)*WordSize)
	for i := 0; i < int(rng.Count); i++ {
		addr := rng.At(i)
		resp, err := c.exchange(op, cip.SvcGetAttributeSingle, EncodePath(addr), nil)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) < WordSize {
			return nil, malformedError(op, fmt.Errorf("register %s: expected %d data bytes, got %d", addr, WordSize, len(resp.Data)))
		}
		out = append(out, resp.Data[:WordSize]...)
	}

	logging.DebugLog("rmc", "%s %s count=%d OK", op, rng.Base, rng.Count)
	return out, nil
}

// writeRange issues one Set_Attribute_Single per register, in ascending
// element order, failing fast on the first error.
func (c *Client) writeRange(op string, base Address, words [][]byte) error {
	rng := Range{Base: base, Count: uint16(len(words))}
	if err := rng.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return notConnectedError(op)
	}

	for i, word := range words {
		addr := rng.At(i)
		if _, err := c.exchange(op, cip.SvcSetAttributeSingle, EncodePath(addr), word); err != nil {
			return err
		}
	}

	logging.DebugLog("rmc", "%s %s count=%d OK", op, base, len(words))
	return nil
}

// exchange performs one service request and checks the reply envelope.
// Caller must hold c.mu with connected == true.
func (c *Client) exchange(op string, service byte, path cip.EPath_t, data []byte) (*cip.Response, error) {
	resp, err := c.transport.SendExplicit(service, path, data)
	if err != nil {
		var re *Error
		if errors.As(err, &re) {
			if re.Op == "" {
				re.Op = op
			}
			return nil, re
		}
		return nil, transportError(op, err)
	}

	if resp.ReplyService != service|cip.ReplyMask {
		return nil, malformedError(op, fmt.Errorf("unexpected reply service 0x%02X for request 0x%02X", resp.ReplyService, service))
	}

	if resp.GeneralStatus != cip.StatusSuccess {
		return nil, deviceError(op, resp.GeneralStatus, resp.ExtendedStatus())
	}

	return resp, nil
}

// ---------------------------------------------------------------------------
// Vendor block services
// ---------------------------------------------------------------------------

// blockHeader builds the 6-byte addressing header of the block services:
// file(2) + element(2) + count(2), little-endian.
func blockHeader(rng Range) []byte {
	payload := make([]byte, 6)
	payload[0] = byte(rng.Base.File)
	payload[1] = byte(rng.Base.File >> 8)
	payload[2] = byte(rng.Base.Element)
	payload[3] = byte(rng.Base.Element >> 8)
	payload[4] = byte(rng.Count)
	payload[5] = byte(rng.Count >> 8)
	return payload
}

// ReadBlockFloat reads a contiguous run of float registers with a single
// vendor read request (service 0x4B) instead of one request per register.
func (c *Client) ReadBlockFloat(file, element, count uint16) ([]float32, error) {
	raw, err := c.readBlock("ReadBlockFloat", Range{Base: Address{File: file, Element: element}, Count: count})
	if err != nil {
		return nil, err
	}
	return DecodeFloats(raw, int(count))
}

// ReadBlockInt32 reads a contiguous run of int32 registers with a single
// vendor read request.
func (c *Client) ReadBlockInt32(file, element, count uint16) ([]int32, error) {
	raw, err := c.readBlock("ReadBlockInt32", Range{Base: Address{File: file, Element: element}, Count: count})
	if err != nil {
		return nil, err
	}
	return DecodeInt32s(raw, int(count))
}

// WriteBlockFloat writes a contiguous run of float registers with a single
// vendor write request (service 0x4C).
func (c *Client) WriteBlockFloat(file, element uint16, values []float32) error {
	return c.writeBlock("WriteBlockFloat",
		Range{Base: Address{File: file, Element: element}, Count: uint16(len(values))},
		EncodeFloats(values))
}

// WriteBlockInt32 writes a contiguous run of int32 registers with a single
// vendor write request.
func (c *Client) WriteBlockInt32(file, element uint16, values []int32) error {
	return c.writeBlock("WriteBlockInt32",
		Range{Base: Address{File: file, Element: element}, Count: uint16(len(values))},
		EncodeInt32s(values))
}

func (c *Client) readBlock(op string, rng Range) ([]byte, error) {
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, notConnectedError(op)
	}

	resp, err := c.exchange(op, SvcReadBlockLSB, BlockPath(), blockHeader(rng))
	if err != nil {
		return nil, err
	}

	if len(resp.Data) < int(rng.Count)*WordSize {
		return nil, malformedError(op, fmt.Errorf("range %s: expected %d data bytes, got %d",
			rng.Base, int(rng.Count)*WordSize, len(resp.Data)))
	}

	logging.DebugLog("rmc", "%s %s count=%d OK", op, rng.Base, rng.Count)
	return resp.Data, nil
}

func (c *Client) writeBlock(op string, rng Range, data []byte) error {
	if err := rng.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return notConnectedError(op)
	}

	payload := append(blockHeader(rng), data...)
	if _, err := c.exchange(op, SvcWriteBlockLSB, BlockPath(), payload); err != nil {
		return err
	}

	logging.DebugLog("rmc", "%s %s count=%d OK", op, rng.Base, rng.Count)
	return nil
}

// SendRaw sends an arbitrary service request to the Register Map Object and
// returns the raw response data.  Escape hatch for services not covered by
// the typed API.
func (c *Client) SendRaw(service byte, data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, notConnectedError("SendRaw")
	}

	resp, err := c.exchange("SendRaw", service, BlockPath(), data)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
