package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skobkin/phoenixrec/internal/wire"
)

// Config represents runtime configuration sourced from an optional YAML
// file and environment variables.
type Config struct {
	ListenAddr       string
	CollectorAddr    string
	CollectorListen  string
	Compression      string
	MaxFrameBytes    uint32
	CloseTimeout     time.Duration
	DialTimeout      time.Duration
	ExportDir        string
	SimInterval      time.Duration
	AllowedOrigins   []string
	EnablePrometheus bool
	EnablePprof      bool
	LogLevel         slog.Level
	WS               WebsocketConfig
}

// WebsocketConfig captures tunables for WebSocket handling.
type WebsocketConfig struct {
	MaxClients   int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// ConfigFileEnv names the variable pointing at the optional YAML file.
const ConfigFileEnv = "APP_CONFIG_FILE"

type setting struct {
	env   string
	key   string
	apply func(cfg *Config, name, value string) error
}

var settings = []setting{
	{"APP_LISTEN_ADDR", "listen_addr", func(cfg *Config, _, value string) error {
		cfg.ListenAddr = value
		return nil
	}},
	{"APP_COLLECTOR_ADDR", "collector_addr", func(cfg *Config, name, value string) error {
		addr, err := collectorAddr(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		cfg.CollectorAddr = addr
		return nil
	}},
	{"APP_COLLECTOR_LISTEN", "collector_listen", func(cfg *Config, _, value string) error {
		cfg.CollectorListen = value
		return nil
	}},
	{"APP_COMPRESSION", "compression", func(cfg *Config, name, value string) error {
		switch compression := strings.ToLower(value); compression {
		case wire.CompressionLZ4, wire.CompressionZstd:
			cfg.Compression = compression
			return nil
		default:
			return fmt.Errorf("parse %s: unknown compression %q", name, value)
		}
	}},
	{"APP_MAX_FRAME_BYTES", "max_frame_bytes", func(cfg *Config, name, value string) error {
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if n == 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
		cfg.MaxFrameBytes = uint32(n)
		return nil
	}},
	{"APP_CLOSE_TIMEOUT", "close_timeout", durationSetting(func(cfg *Config) *time.Duration { return &cfg.CloseTimeout })},
	{"APP_DIAL_TIMEOUT", "dial_timeout", durationSetting(func(cfg *Config) *time.Duration { return &cfg.DialTimeout })},
	{"APP_EXPORT_DIR", "export_dir", func(cfg *Config, _, value string) error {
		cfg.ExportDir = value
		return nil
	}},
	{"APP_SIM_INTERVAL", "sim_interval", durationSetting(func(cfg *Config) *time.Duration { return &cfg.SimInterval })},
	{"APP_ALLOWED_ORIGINS", "allowed_origins", func(cfg *Config, name, value string) error {
		origins := splitAndTrim(value, ",")
		if len(origins) == 0 {
			return fmt.Errorf("%s must not be empty", name)
		}
		cfg.AllowedOrigins = origins
		return nil
	}},
	{"APP_ENABLE_PROMETHEUS", "enable_prometheus", boolSetting(func(cfg *Config) *bool { return &cfg.EnablePrometheus })},
	{"APP_ENABLE_PPROF", "enable_pprof", boolSetting(func(cfg *Config) *bool { return &cfg.EnablePprof })},
	{"APP_LOG_LEVEL", "log_level", func(cfg *Config, name, value string) error {
		level, err := parseLogLevel(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		cfg.LogLevel = level
		return nil
	}},
	{"APP_WS_MAX_CLIENTS", "ws_max_clients", func(cfg *Config, name, value string) error {
		maxClients, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if maxClients <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
		cfg.WS.MaxClients = maxClients
		return nil
	}},
	{"APP_WS_WRITE_TIMEOUT", "ws_write_timeout", durationSetting(func(cfg *Config) *time.Duration { return &cfg.WS.WriteTimeout })},
	{"APP_WS_READ_TIMEOUT", "ws_read_timeout", durationSetting(func(cfg *Config) *time.Duration { return &cfg.WS.ReadTimeout })},
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		CollectorAddr:    net.JoinHostPort("localhost", strconv.Itoa(wire.DefaultPort)),
		CollectorListen:  net.JoinHostPort("0.0.0.0", strconv.Itoa(wire.DefaultPort)),
		Compression:      wire.CompressionLZ4,
		MaxFrameBytes:    wire.DefaultMaxFrameBytes,
		CloseTimeout:     2 * time.Second,
		DialTimeout:      5 * time.Second,
		ExportDir:        ".",
		SimInterval:      100 * time.Millisecond,
		AllowedOrigins:   []string{"*"},
		EnablePrometheus: false,
		EnablePprof:      false,
		LogLevel:         slog.LevelInfo,
		WS: WebsocketConfig{
			MaxClients:   64,
			WriteTimeout: 3 * time.Second,
			ReadTimeout:  30 * time.Second,
		},
	}
}

// Load applies, in order, defaults, the YAML file named by
// APP_CONFIG_FILE and the APP_* environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	for _, s := range settings {
		value := strings.TrimSpace(os.Getenv(s.env))
		if value == "" {
			continue
		}
		if err := s.apply(&cfg, s.env, value); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// ApplyOverrides applies values keyed by their APP_* variable name on top
// of cfg, validating them the same way Load does. Empty values are skipped.
func ApplyOverrides(cfg *Config, values map[string]string) error {
	known := make(map[string]bool, len(settings))
	for _, s := range settings {
		known[s.env] = true
	}
	for name := range values {
		if !known[name] {
			return fmt.Errorf("unknown setting %s", name)
		}
	}

	for _, s := range settings {
		value := strings.TrimSpace(values[s.env])
		if value == "" {
			continue
		}
		if err := s.apply(cfg, s.env, value); err != nil {
			return err
		}
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	known := make(map[string]setting, len(settings))
	for _, s := range settings {
		known[s.key] = s
	}

	var unknown []string
	for key := range raw {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(unknown, ", "))
	}

	for _, s := range settings {
		value, ok := raw[s.key]
		if !ok || value == nil {
			continue
		}
		text := strings.TrimSpace(scalarString(value))
		if text == "" {
			continue
		}
		if err := s.apply(cfg, s.key, text); err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return nil
}

func scalarString(value any) string {
	if list, ok := value.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(value)
}

func durationSetting(field func(cfg *Config) *time.Duration) func(cfg *Config, name, value string) error {
	return func(cfg *Config, name, value string) error {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if duration <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
		*field(cfg) = duration
		return nil
	}
}

func boolSetting(field func(cfg *Config) *bool) func(cfg *Config, name, value string) error {
	return func(cfg *Config, name, value string) error {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*field(cfg) = enabled
		return nil
	}
}

// CollectorAddrFromHost turns a bare host or host:port into a dial
// address, defaulting the port to wire.DefaultPort.
func CollectorAddrFromHost(host string) (string, error) {
	return collectorAddr(host)
}

func collectorAddr(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("empty address")
	}
	if _, port, err := net.SplitHostPort(value); err == nil {
		if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
			return "", fmt.Errorf("invalid port in %q", value)
		}
		return value, nil
	}
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		value = strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")
	}
	if strings.Count(value, ":") > 1 {
		return net.JoinHostPort(value, strconv.Itoa(wire.DefaultPort)), nil
	}
	if strings.Contains(value, ":") {
		return "", fmt.Errorf("invalid address %q", value)
	}
	return net.JoinHostPort(value, strconv.Itoa(wire.DefaultPort)), nil
}

func splitAndTrim(value, sep string) []string {
	raw := strings.Split(value, sep)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(input string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", input)
	}
}
