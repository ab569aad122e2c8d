// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/stream"
)

// EnvPrefix prefixes environment overrides, e.g. ZBRIDGE_SERIAL_BAUD_RATE.
const EnvPrefix = "ZBRIDGE"

// Config is the complete bridge configuration.
type Config struct {
	// Keys are textual security keys, registered as "User {index}".
	Keys    []string      `mapstructure:"keys" yaml:"keys"`
	Serial  SerialConfig  `mapstructure:"serial" yaml:"serial"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ─── Serial ───

// SerialConfig configures the host side of the serial link.
type SerialConfig struct {
	BaudRate    int           `mapstructure:"baud_rate" yaml:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// BufferSize is the reassembly buffer capacity in bytes.
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
	// MessageSize bounds a decoded message payload.
	MessageSize int `mapstructure:"message_size" yaml:"message_size"`
	// ChunkSize is the number of bytes requested per read.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// ─── Device ───

// DeviceConfig configures the emulated device side used by replay.
type DeviceConfig struct {
	QueueSize    int           `mapstructure:"queue_size" yaml:"queue_size"`
	IdleInterval time.Duration `mapstructure:"idle_interval" yaml:"idle_interval"`
	// LQI is reported for replayed packets, which carry none of their own.
	LQI  int  `mapstructure:"lqi" yaml:"lqi"`
	Pace bool `mapstructure:"pace" yaml:"pace"`
}

// ─── Capture ───

// CaptureConfig configures the pcap sink of received radio packets.
type CaptureConfig struct {
	PcapFile string `mapstructure:"pcap_file" yaml:"pcap_file"`
	// SynthesizeFCS appends a computed FCS so the file uses the
	// IEEE 802.15.4 with FCS link type; otherwise packets are written as is.
	SynthesizeFCS bool   `mapstructure:"synthesize_fcs" yaml:"synthesize_fcs"`
	SnapLen       uint32 `mapstructure:"snap_len" yaml:"snap_len"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" yaml:"level"` // trace / debug / info / warn / error
	Pattern string           `mapstructure:"pattern" yaml:"pattern"`
	Time    string           `mapstructure:"time" yaml:"time"`
	Caller  bool             `mapstructure:"caller" yaml:"caller"`
	File    FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ─── Loading ───

// Option adjusts the viper instance before unmarshalling.
type Option func(v *viper.Viper) error

// WithFlag binds a command line flag to key. The flag wins over the file
// and the environment only when it was set explicitly.
func WithFlag(key string, f *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if f == nil {
			return nil
		}
		return v.BindPFlag(key, f)
	}
}

// WithValue forces key to value, above every other source.
func WithValue(key string, value any) Option {
	return func(v *viper.Viper) error {
		v.Set(key, value)
		return nil
	}
}

// Load reads the configuration file at path (YAML, TOML or JSON by
// extension) and applies environment overrides, defaults and validation.
// An empty path loads defaults and environment only.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("failed to apply config option: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("keys", []string{})

	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.read_timeout", "1s")
	v.SetDefault("serial.buffer_size", 1024)
	v.SetDefault("serial.message_size", 256)
	v.SetDefault("serial.chunk_size", 256)

	v.SetDefault("device.queue_size", 2048)
	v.SetDefault("device.idle_interval", "1ms")
	v.SetDefault("device.lqi", 0xFF)
	v.SetDefault("device.pace", false)

	v.SetDefault("capture.pcap_file", "")
	v.SetDefault("capture.synthesize_fcs", true)
	v.SetDefault("capture.snap_len", 256)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9464")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pattern", "%time [%level] %field %msg")
	v.SetDefault("log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("log.caller", false)
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "zbridge.log")
	v.SetDefault("log.file.rotation.max_size_mb", 100)
	v.SetDefault("log.file.rotation.max_age_days", 30)
	v.SetDefault("log.file.rotation.max_backups", 5)
	v.SetDefault("log.file.rotation.compress", true)
}

// ValidateAndApplyDefaults validates configuration and fills derived values.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return invalid("log.level %q (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return invalid("log.file.path is required when log.file.enabled=true")
	}

	// ── Serial ──
	if cfg.Serial.BaudRate <= 0 {
		return invalid("serial.baud_rate %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.ReadTimeout <= 0 {
		return invalid("serial.read_timeout %s", cfg.Serial.ReadTimeout)
	}
	if cfg.Serial.MessageSize <= 0 {
		return invalid("serial.message_size %d", cfg.Serial.MessageSize)
	}
	if cfg.Serial.ChunkSize <= 0 {
		return invalid("serial.chunk_size %d", cfg.Serial.ChunkSize)
	}
	if need := stream.MinBufferSize(cfg.Serial.MessageSize, cfg.Serial.ChunkSize); cfg.Serial.BufferSize < need {
		return invalid("serial.buffer_size %d cannot hold a partial message of %d bytes and a read of %d (minimum %d)",
			cfg.Serial.BufferSize, cfg.Serial.MessageSize, cfg.Serial.ChunkSize, need)
	}

	// ── Device ──
	if cfg.Device.QueueSize < 256 {
		return invalid("device.queue_size %d (minimum 256)", cfg.Device.QueueSize)
	}
	if cfg.Device.IdleInterval <= 0 {
		cfg.Device.IdleInterval = time.Millisecond
	}
	if cfg.Device.LQI < 0 || cfg.Device.LQI > 0xFF {
		return invalid("device.lqi %d (must be 0-255)", cfg.Device.LQI)
	}

	// ── Capture ──
	if cfg.Capture.SnapLen == 0 {
		cfg.Capture.SnapLen = 256
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics.enabled=true")
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrConfigInvalid}, args...)...)
}

// Dump renders the effective configuration as YAML.
func (cfg *Config) Dump() (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(out), nil
}
