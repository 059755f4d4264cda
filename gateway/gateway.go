// Package gateway polls register groups from an RMC75E and fans value
// changes out to the configured publishers.
package gateway

import (
	"fmt"
	"math"
	"sync"
	"time"

	"rmclink/config"
	"rmclink/logging"
	"rmclink/rmc"
)

// ValueChange describes a single register whose value changed during a poll.
type ValueChange struct {
	Group     string    `json:"group"`
	Address   string    `json:"address"` // "F56:3" form
	Index     int       `json:"index"`   // offset within the group
	Type      string    `json:"type"`    // "float" or "int32"
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// GroupValues is a snapshot of one group's most recent poll.
type GroupValues struct {
	Group    string    `json:"group"`
	Address  string    `json:"address"`
	Type     string    `json:"type"`
	Writable bool      `json:"writable"`
	Values   []any     `json:"values"`
	Updated  time.Time `json:"updated"`
}

// Status is a point-in-time health snapshot of the gateway.
type Status struct {
	Connected  bool      `json:"connected"`
	Controller string    `json:"controller"`
	PollRate   string    `json:"poll_rate"`
	PollCount  uint64    `json:"poll_count"`
	ErrorCount uint64    `json:"error_count"`
	LastPoll   time.Time `json:"last_poll"`
	LastError  string    `json:"last_error,omitempty"`
}

// Gateway owns the controller connection and the poll loop.
type Gateway struct {
	cfg    *config.Config
	client *rmc.Client

	mu         sync.Mutex
	values     map[string]*GroupValues
	connected  bool
	pollCount  uint64
	errorCount uint64
	lastPoll   time.Time
	lastError  string
	onChange   func([]ValueChange)

	stop chan struct{}
	done chan struct{}
}

// New creates a gateway for the given configuration.
func New(cfg *config.Config) *Gateway {
	opts := []rmc.Option{}
	if cfg.Controller.Port != 0 {
		opts = append(opts, rmc.WithPort(cfg.Controller.Port))
	}
	if cfg.Controller.Timeout != 0 {
		opts = append(opts, rmc.WithTimeout(cfg.Controller.Timeout))
	}
	return NewWithClient(cfg, rmc.NewClient(cfg.Controller.Address, opts...))
}

// NewWithClient creates a gateway around an existing controller client.
func NewWithClient(cfg *config.Config, client *rmc.Client) *Gateway {
	return &Gateway{
		cfg:       cfg,
		client:    client,
		values:    make(map[string]*GroupValues),
		connected: client.IsConnected(),
	}
}

// SetOnValueChange registers the callback invoked with each poll's changes.
// Must be called before Start.
func (g *Gateway) SetOnValueChange(fn func([]ValueChange)) {
	g.onChange = fn
}

// Client exposes the underlying controller client.
func (g *Gateway) Client() *rmc.Client {
	return g.client
}

// Start connects to the controller and launches the poll loop.
func (g *Gateway) Start() error {
	if err := g.client.Connect(); err != nil {
		return fmt.Errorf("Start: %w", err)
	}
	logging.DebugConnect("gateway", g.cfg.Controller.Address)
	g.setConnected(true)

	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	go g.run()
	return nil
}

// Stop halts the poll loop and disconnects.  Safe to call more than once.
func (g *Gateway) Stop() {
	if g.stop != nil {
		select {
		case <-g.stop:
		default:
			close(g.stop)
		}
		<-g.done
		g.stop = nil
	}
	g.client.Disconnect()
	g.setConnected(false)
	logging.DebugDisconnect("gateway", g.cfg.Controller.Address, "stopped")
}

func (g *Gateway) setConnected(v bool) {
	g.mu.Lock()
	g.connected = v
	g.mu.Unlock()
}

func (g *Gateway) run() {
	defer close(g.done)

	rate := g.cfg.PollRate
	if rate <= 0 {
		rate = time.Second
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	g.pollAll()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.pollAll()
		}
	}
}

func (g *Gateway) pollAll() {
	var changes []ValueChange
	now := time.Now()
	failed := false
	reconnect := false

	for i := range g.cfg.Registers {
		grp := &g.cfg.Registers[i]
		vals, err := g.readGroup(grp)
		if err != nil {
			failed = true
			if ReconnectOn(err) {
				reconnect = true
			}
			g.mu.Lock()
			g.errorCount++
			g.lastError = err.Error()
			g.mu.Unlock()
			logging.DebugError("gateway", "poll "+grp.Name, err)
			continue
		}
		changes = append(changes, g.record(grp, vals, now)...)
	}

	g.mu.Lock()
	g.pollCount++
	g.lastPoll = now
	if !failed {
		g.lastError = ""
	}
	g.mu.Unlock()

	if reconnect {
		g.setConnected(g.recover())
	}

	if len(changes) > 0 && g.onChange != nil {
		g.onChange(changes)
	}
}

func (g *Gateway) readGroup(grp *config.RegisterGroup) ([]any, error) {
	base, err := grp.BaseAddress()
	if err != nil {
		return nil, err
	}
	dt, err := grp.Datatype()
	if err != nil {
		return nil, err
	}

	// Block reads fetch the whole group in one request
	switch dt {
	case rmc.Int32:
		raw, err := g.client.ReadBlockInt32(base.File, base.Element, grp.Count)
		if err != nil {
			return nil, err
		}
		vals := make([]any, len(raw))
		for i, v := range raw {
			vals[i] = v
		}
		return vals, nil
	default:
		raw, err := g.client.ReadBlockFloat(base.File, base.Element, grp.Count)
		if err != nil {
			return nil, err
		}
		vals := make([]any, len(raw))
		for i, v := range raw {
			vals[i] = v
		}
		return vals, nil
	}
}

// record diffs new values against the previous snapshot and returns the changes.
func (g *Gateway) record(grp *config.RegisterGroup, vals []any, now time.Time) []ValueChange {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.values[grp.Name]
	dt, _ := grp.Datatype()
	base, _ := grp.BaseAddress()

	var changes []ValueChange
	for i, v := range vals {
		if prev != nil && i < len(prev.Values) && sameValue(prev.Values[i], v) {
			continue
		}
		changes = append(changes, ValueChange{
			Group:     grp.Name,
			Address:   rmc.Address{File: base.File, Element: base.Element + uint16(i)}.String(),
			Index:     i,
			Type:      dt.String(),
			Value:     v,
			Timestamp: now,
		})
	}

	g.values[grp.Name] = &GroupValues{
		Group:    grp.Name,
		Address:  grp.Address,
		Type:     dt.String(),
		Writable: grp.Writable,
		Values:   vals,
		Updated:  now,
	}
	return changes
}

// sameValue compares two polled values.  Floats are compared by bit pattern
// since a register holding NaN would otherwise look changed on every poll.
func sameValue(a, b any) bool {
	af, aok := a.(float32)
	bf, bok := b.(float32)
	if aok && bok {
		return math.Float32bits(af) == math.Float32bits(bf)
	}
	return a == b
}

// recover tears the session down and re-establishes it when the link looks
// dead.  Only transport-level failures trigger a reconnect.
func (g *Gateway) recover() bool {
	g.client.Disconnect()
	if err := g.client.Connect(); err != nil {
		logging.DebugError("gateway", "reconnect", err)
		return false
	}
	return true
}

// ReconnectOn reports whether an error should trigger a reconnect cycle.
func ReconnectOn(err error) bool {
	switch rmc.KindOf(err) {
	case rmc.KindTransport, rmc.KindTimeout, rmc.KindNotConnected:
		return true
	}
	return false
}

// Write writes a single value into a register group at the given offset.
// Returns an error if the group is unknown or not marked writable.
func (g *Gateway) Write(group string, index int, value float64) error {
	grp := g.cfg.FindGroup(group)
	if grp == nil {
		return fmt.Errorf("Write: unknown group %q", group)
	}
	if !grp.Writable {
		return fmt.Errorf("Write: group %q is not writable", group)
	}
	if index < 0 || index >= int(grp.Count) {
		return fmt.Errorf("Write: index %d out of range for group %q", index, group)
	}

	base, err := grp.BaseAddress()
	if err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	addr := rmc.Address{File: base.File, Element: base.Element + uint16(index)}

	dt, err := grp.Datatype()
	if err != nil {
		return fmt.Errorf("Write: %w", err)
	}

	switch dt {
	case rmc.Int32:
		err = g.client.WriteInt32(addr.File, addr.Element, []int32{int32(value)})
	default:
		err = g.client.WriteFloat(addr.File, addr.Element, []float32{float32(value)})
	}
	if err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	logging.DebugLog("gateway", "wrote %v to %s[%d] (%s)", value, group, index, addr.String())
	return nil
}

// Snapshot returns a copy of the most recent values for every group.
func (g *Gateway) Snapshot() []GroupValues {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]GroupValues, 0, len(g.values))
	for i := range g.cfg.Registers {
		gv := g.values[g.cfg.Registers[i].Name]
		if gv == nil {
			continue
		}
		cp := *gv
		cp.Values = append([]any(nil), gv.Values...)
		out = append(out, cp)
	}
	return out
}

// Group returns the snapshot for a single group, or nil if it has no data yet.
func (g *Gateway) Group(name string) *GroupValues {
	g.mu.Lock()
	defer g.mu.Unlock()
	gv := g.values[name]
	if gv == nil {
		return nil
	}
	cp := *gv
	cp.Values = append([]any(nil), gv.Values...)
	return &cp
}

// Status returns the gateway's health snapshot.  Connection state is the
// cached value maintained by the poll loop, so a status query never waits
// behind an in-flight controller exchange.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{
		Connected:  g.connected,
		Controller: g.cfg.Controller.Address,
		PollRate:   g.cfg.PollRate.String(),
		PollCount:  g.pollCount,
		ErrorCount: g.errorCount,
		LastPoll:   g.lastPoll,
		LastError:  g.lastError,
	}
}
