package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"rmclink/config"
)

// TestBuildTopic tests value topic construction.
func TestBuildTopic(t *testing.T) {
	p := NewPublisher(&config.MQTTConfig{Name: "plant", RootTopic: "rmc/line1"})

	tests := []struct {
		group string
		index int
		want  string
	}{
		{"position", 0, "rmc/line1/position/0"},
		{"position", 17, "rmc/line1/position/17"},
		{"counters", 3, "rmc/line1/counters/3"},
	}
	for _, tt := range tests {
		if got := p.BuildTopic(tt.group, tt.index); got != tt.want {
			t.Errorf("BuildTopic(%q, %d) = %q, want %q", tt.group, tt.index, got, tt.want)
		}
	}
}

// TestRegisterMessage_Structure tests the RegisterMessage JSON structure.
func TestRegisterMessage_Structure(t *testing.T) {
	msg := RegisterMessage{
		Group:     "position",
		Address:   "F56:2",
		Type:      "float",
		Index:     2,
		Value:     float32(1.5),
		Writable:  true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	for _, field := range []string{"group", "address", "type", "index", "value", "writable", "timestamp"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("missing field: %s", field)
		}
	}
}

// TestWriteRequest_Decode tests that incoming write payloads decode as expected.
func TestWriteRequest_Decode(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		var req WriteRequest
		err := json.Unmarshal([]byte(`{"group":"setpoints","index":2,"value":42.5}`), &req)
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if req.Group != "setpoints" || req.Index != 2 || req.Value != 42.5 {
			t.Errorf("decoded = %+v", req)
		}
	})

	t.Run("integer value", func(t *testing.T) {
		var req WriteRequest
		if err := json.Unmarshal([]byte(`{"group":"g","index":0,"value":7}`), &req); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if req.Value != 7 {
			t.Errorf("value = %v, want 7", req.Value)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		var req WriteRequest
		if err := json.Unmarshal([]byte(`{not json`), &req); err == nil {
			t.Error("expected decode error")
		}
	})
}

// TestManager tests publisher registration and lookup.
func TestManager(t *testing.T) {
	m := NewManager()

	m.Add(NewPublisher(&config.MQTTConfig{Name: "a", RootTopic: "rmc"}))
	m.Add(NewPublisher(&config.MQTTConfig{Name: "b", RootTopic: "rmc"}))

	if len(m.List()) != 2 {
		t.Fatalf("List() = %d publishers, want 2", len(m.List()))
	}
	if m.Get("a") == nil || m.Get("b") == nil {
		t.Error("Get failed for registered publisher")
	}
	if m.Get("missing") != nil {
		t.Error("Get returned publisher for unknown name")
	}

	m.Remove("a")
	if m.Get("a") != nil {
		t.Error("publisher still present after Remove")
	}
	if m.AnyRunning() {
		t.Error("AnyRunning true with no started publishers")
	}
}

// TestManagerLoadFromConfig tests that configured brokers become publishers.
func TestManagerLoadFromConfig(t *testing.T) {
	m := NewManager()
	m.LoadFromConfig([]config.MQTTConfig{
		{Name: "plant", Broker: "10.0.0.5", Port: 1883, RootTopic: "rmc"},
		{Name: "cloud", Broker: "mqtt.example.com", Port: 8883, UseTLS: true, RootTopic: "rmc"},
	})

	if len(m.List()) != 2 {
		t.Fatalf("List() = %d, want 2", len(m.List()))
	}
	if m.Get("cloud") == nil {
		t.Error("cloud publisher not loaded")
	}
}
