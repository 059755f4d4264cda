package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*DebugLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "debug.log")
	logger, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func readLog(t *testing.T, logger *DebugLogger, path string) string {
	t.Helper()
	logger.Close()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	return string(content)
}

func TestDebugLoggerFilter(t *testing.T) {
	t.Run("empty filter logs all protocols", func(t *testing.T) {
		logger, path := newTestLogger(t)

		logger.Log("eip", "encap frame")
		logger.Log("mqtt", "broker message")

		content := readLog(t, logger, path)
		if !strings.Contains(content, "encap frame") {
			t.Error("eip message missing with empty filter")
		}
		if !strings.Contains(content, "broker message") {
			t.Error("mqtt message missing with empty filter")
		}
	})

	t.Run("filter drops other protocols", func(t *testing.T) {
		logger, path := newTestLogger(t)
		logger.SetFilter("mqtt")

		logger.Log("eip", "encap frame")
		logger.Log("mqtt", "broker message")

		content := readLog(t, logger, path)
		if strings.Contains(content, "encap frame") {
			t.Error("eip message logged despite mqtt filter")
		}
		if !strings.Contains(content, "broker message") {
			t.Error("filtered-in mqtt message missing")
		}
	})

	t.Run("rmc filter also enables eip", func(t *testing.T) {
		logger, path := newTestLogger(t)
		logger.SetFilter("rmc")

		logger.Log("eip", "encap frame")
		logger.Log("rmc", "register read")
		logger.Log("kafka", "producer message")

		content := readLog(t, logger, path)
		if !strings.Contains(content, "encap frame") {
			t.Error("eip message missing when filtering on rmc")
		}
		if !strings.Contains(content, "register read") {
			t.Error("rmc message missing")
		}
		if strings.Contains(content, "producer message") {
			t.Error("kafka message logged despite rmc filter")
		}
	})

	t.Run("comma separated list, case insensitive", func(t *testing.T) {
		logger, path := newTestLogger(t)
		logger.SetFilter("MQTT, Valkey")

		logger.Log("mqtt", "one")
		logger.Log("valkey", "two")
		logger.Log("web", "three")

		content := readLog(t, logger, path)
		if !strings.Contains(content, "one") || !strings.Contains(content, "two") {
			t.Error("filtered-in messages missing")
		}
		if strings.Contains(content, "three") {
			t.Error("web message logged despite filter")
		}
	})
}

func TestKnownProtocols(t *testing.T) {
	protos := KnownProtocols()
	if len(protos) == 0 {
		t.Fatal("no known protocols")
	}

	// Returned slice is a copy, mutation must not leak back.
	protos[0] = "mutated"
	if KnownProtocols()[0] == "mutated" {
		t.Error("KnownProtocols returned the internal slice")
	}

	found := map[string]bool{}
	for _, p := range KnownProtocols() {
		found[p] = true
	}
	for _, want := range []string{"eip", "rmc", "gateway", "mqtt", "valkey", "kafka", "web"} {
		if !found[want] {
			t.Errorf("protocol %q missing from KnownProtocols", want)
		}
	}
}

func TestHexDump(t *testing.T) {
	t.Run("empty data", func(t *testing.T) {
		if got := hexDump(nil); got != "    (empty)" {
			t.Errorf("hexDump(nil) = %q", got)
		}
	})

	t.Run("short frame", func(t *testing.T) {
		got := hexDump([]byte{0x65, 0x00, 0x04, 0x00})
		if !strings.Contains(got, "0000:") {
			t.Error("missing offset column")
		}
		if !strings.Contains(got, "65 00 04 00") {
			t.Errorf("missing hex bytes: %q", got)
		}
	})

	t.Run("printable ascii column", func(t *testing.T) {
		got := hexDump([]byte("RMC75E"))
		if !strings.Contains(got, "RMC75E") {
			t.Errorf("ASCII column missing: %q", got)
		}
	})

	t.Run("multiple lines", func(t *testing.T) {
		data := make([]byte, 20)
		got := hexDump(data)
		if !strings.Contains(got, "0010:") {
			t.Errorf("second line offset missing: %q", got)
		}
	})
}

func TestGlobalDebugLogger(t *testing.T) {
	// Global logger unset, helpers must be no-ops.
	SetGlobalDebugLogger(nil)
	DebugLog("eip", "should not panic")
	DebugTX("eip", []byte{0x01})
	DebugError("rmc", "context", os.ErrClosed)

	logger, path := newTestLogger(t)
	SetGlobalDebugLogger(logger)
	defer SetGlobalDebugLogger(nil)

	DebugLog("gateway", "poll complete")
	DebugConnect("eip", "192.168.0.10:44818")

	content := readLog(t, logger, path)
	if !strings.Contains(content, "poll complete") {
		t.Error("global DebugLog message missing")
	}
	if !strings.Contains(content, "192.168.0.10:44818") {
		t.Error("global DebugConnect message missing")
	}
}
