package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"firestige.xyz/zbridge/internal/core"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("Expected baud rate 115200, got %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.ReadTimeout != time.Second {
		t.Errorf("Expected read timeout 1s, got %s", cfg.Serial.ReadTimeout)
	}
	if cfg.Serial.BufferSize != 1024 || cfg.Serial.MessageSize != 256 {
		t.Errorf("Unexpected buffer sizes %d/%d", cfg.Serial.BufferSize, cfg.Serial.MessageSize)
	}
	if len(cfg.Keys) != 0 {
		t.Errorf("Expected no keys, got %v", cfg.Keys)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level info, got %s", cfg.Log.Level)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if !cfg.Capture.SynthesizeFCS {
		t.Error("Expected FCS synthesis by default")
	}
}

func TestLoadTOMLKeys(t *testing.T) {
	path := writeConfig(t, "zbridge.toml", `
keys = [
  "5a:69:67:42:65:65:41:6c:6c:69:61:6e:63:65:30:39",
  "not-a-key",
]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Keys) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(cfg.Keys))
	}
	if cfg.Keys[1] != "not-a-key" {
		t.Errorf("Keys must be kept verbatim, got %q", cfg.Keys[1])
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "zbridge.yaml", `
keys:
  - "404142434445464748494a4b4c4d4e4f"
serial:
  baud_rate: 1000000
  read_timeout: 250ms
log:
  level: DEBUG
metrics:
  enabled: true
  listen: "127.0.0.1:9464"
capture:
  pcap_file: /tmp/capture.pcap
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Serial.BaudRate != 1000000 {
		t.Errorf("Expected baud rate 1000000, got %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.ReadTimeout != 250*time.Millisecond {
		t.Errorf("Expected read timeout 250ms, got %s", cfg.Serial.ReadTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected normalized level debug, got %s", cfg.Log.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Unexpected metrics config %+v", cfg.Metrics)
	}
	if cfg.Capture.PcapFile != "/tmp/capture.pcap" {
		t.Errorf("Expected pcap file, got %q", cfg.Capture.PcapFile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "log:\n  level: loud\n"},
		{"baud rate", "serial:\n  baud_rate: 0\n"},
		{"buffer smaller than message", "serial:\n  buffer_size: 64\n  message_size: 128\n"},
		{"buffer without room for a read", "serial:\n  buffer_size: 256\n  message_size: 256\n  chunk_size: 256\n"},
		{"chunk size", "serial:\n  chunk_size: 0\n"},
		{"queue size", "device:\n  queue_size: 16\n"},
		{"lqi", "device:\n  lqi: 300\n"},
		{"metrics listen", "metrics:\n  enabled: true\n  listen: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "zbridge.yaml", tt.content))
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("Expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoadSmallestBuffer(t *testing.T) {
	// 256-byte messages encode to at most 261 bytes; 260 may stay buffered.
	path := writeConfig(t, "zbridge.yaml", "serial:\n  buffer_size: 516\n  message_size: 256\n  chunk_size: 256\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Serial.ChunkSize != 256 {
		t.Errorf("Expected chunk size 256, got %d", cfg.Serial.ChunkSize)
	}

	path = writeConfig(t, "zbridge.yaml", "serial:\n  buffer_size: 515\n  message_size: 256\n  chunk_size: 256\n")
	if _, err := Load(path); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ZBRIDGE_SERIAL_BAUD_RATE", "57600")
	t.Setenv("ZBRIDGE_KEYS", "404142434445464748494a4b4c4d4e4f,5a6967426565416c6c69616e63653039")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Serial.BaudRate != 57600 {
		t.Errorf("Expected env baud rate 57600, got %d", cfg.Serial.BaudRate)
	}
	if len(cfg.Keys) != 2 {
		t.Errorf("Expected 2 keys from env, got %v", cfg.Keys)
	}
}

func TestFlagOverride(t *testing.T) {
	path := writeConfig(t, "zbridge.yaml", "serial:\n  baud_rate: 9600\n  read_timeout: 2s\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("baud", 115200, "")
	fs.Duration("timeout", time.Second, "")
	if err := fs.Parse([]string{"--baud", "230400"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path,
		WithFlag("serial.baud_rate", fs.Lookup("baud")),
		WithFlag("serial.read_timeout", fs.Lookup("timeout")),
	)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Serial.BaudRate != 230400 {
		t.Errorf("Explicit flag must win, got %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.ReadTimeout != 2*time.Second {
		t.Errorf("Unset flag must not override the file, got %s", cfg.Serial.ReadTimeout)
	}
}

func TestWithValue(t *testing.T) {
	cfg, err := Load("", WithValue("metrics.enabled", true), WithValue("metrics.listen", "127.0.0.1:9999"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9999" {
		t.Errorf("Forced values not applied: %+v", cfg.Metrics)
	}
}

func TestDump(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	out, err := cfg.Dump()
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	for _, want := range []string{"baud_rate: 115200", "level: info", "pcap_file: \"\""} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output missing %q:\n%s", want, out)
		}
	}
}
