package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected ListenAddr %q", cfg.ListenAddr)
	}
	if cfg.CollectorAddr != "localhost:3333" {
		t.Fatalf("unexpected CollectorAddr %q", cfg.CollectorAddr)
	}
	if cfg.CollectorListen != "0.0.0.0:3333" {
		t.Fatalf("unexpected CollectorListen %q", cfg.CollectorListen)
	}
	if cfg.Compression != "lz4" {
		t.Fatalf("unexpected Compression %q", cfg.Compression)
	}
	if cfg.MaxFrameBytes != 64<<20 {
		t.Fatalf("unexpected MaxFrameBytes %d", cfg.MaxFrameBytes)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected LogLevel %v", cfg.LogLevel)
	}
	if cfg.EnablePrometheus || cfg.EnablePprof {
		t.Fatalf("optional endpoints must be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("APP_COLLECTOR_ADDR", "ev3dev")
	t.Setenv("APP_COLLECTOR_LISTEN", "127.0.0.1:4444")
	t.Setenv("APP_COMPRESSION", "ZSTD")
	t.Setenv("APP_MAX_FRAME_BYTES", "1048576")
	t.Setenv("APP_CLOSE_TIMEOUT", "750ms")
	t.Setenv("APP_DIAL_TIMEOUT", "3s")
	t.Setenv("APP_EXPORT_DIR", "/tmp/runs")
	t.Setenv("APP_SIM_INTERVAL", "20ms")
	t.Setenv("APP_ALLOWED_ORIGINS", "https://example.com, https://other.test")
	t.Setenv("APP_ENABLE_PROMETHEUS", "true")
	t.Setenv("APP_ENABLE_PPROF", "true")
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("APP_WS_MAX_CLIENTS", "2048")
	t.Setenv("APP_WS_WRITE_TIMEOUT", "10s")
	t.Setenv("APP_WS_READ_TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("ListenAddr override failed, got %q", cfg.ListenAddr)
	}
	if cfg.CollectorAddr != "ev3dev:3333" {
		t.Fatalf("CollectorAddr override failed, got %q", cfg.CollectorAddr)
	}
	if cfg.CollectorListen != "127.0.0.1:4444" {
		t.Fatalf("CollectorListen override failed, got %q", cfg.CollectorListen)
	}
	if cfg.Compression != "zstd" {
		t.Fatalf("Compression override failed, got %q", cfg.Compression)
	}
	if cfg.MaxFrameBytes != 1<<20 {
		t.Fatalf("MaxFrameBytes override failed, got %d", cfg.MaxFrameBytes)
	}
	if cfg.CloseTimeout != 750*time.Millisecond {
		t.Fatalf("CloseTimeout override failed, got %s", cfg.CloseTimeout)
	}
	if cfg.DialTimeout != 3*time.Second {
		t.Fatalf("DialTimeout override failed, got %s", cfg.DialTimeout)
	}
	if cfg.ExportDir != "/tmp/runs" {
		t.Fatalf("ExportDir override failed, got %q", cfg.ExportDir)
	}
	if cfg.SimInterval != 20*time.Millisecond {
		t.Fatalf("SimInterval override failed, got %s", cfg.SimInterval)
	}
	wantOrigins := []string{"https://example.com", "https://other.test"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, wantOrigins) {
		t.Fatalf("AllowedOrigins mismatch: %+v", cfg.AllowedOrigins)
	}
	if !cfg.EnablePrometheus {
		t.Fatalf("EnablePrometheus override failed")
	}
	if !cfg.EnablePprof {
		t.Fatalf("EnablePprof override failed")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel override failed, got %v", cfg.LogLevel)
	}
	if cfg.WS.MaxClients != 2048 {
		t.Fatalf("WS.MaxClients override failed, got %d", cfg.WS.MaxClients)
	}
	if cfg.WS.WriteTimeout != 10*time.Second {
		t.Fatalf("WS.WriteTimeout override failed, got %s", cfg.WS.WriteTimeout)
	}
	if cfg.WS.ReadTimeout != 45*time.Second {
		t.Fatalf("WS.ReadTimeout override failed, got %s", cfg.WS.ReadTimeout)
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{"InvalidCollectorAddr", "APP_COLLECTOR_ADDR", "ev3:abc"},
		{"UnknownCompression", "APP_COMPRESSION", "gzip"},
		{"InvalidMaxFrameBytes", "APP_MAX_FRAME_BYTES", "huge"},
		{"ZeroMaxFrameBytes", "APP_MAX_FRAME_BYTES", "0"},
		{"NegativeCloseTimeout", "APP_CLOSE_TIMEOUT", "-1s"},
		{"InvalidDialTimeout", "APP_DIAL_TIMEOUT", "soon"},
		{"ZeroSimInterval", "APP_SIM_INTERVAL", "0"},
		{"InvalidOrigins", "APP_ALLOWED_ORIGINS", ","},
		{"InvalidPrometheusBool", "APP_ENABLE_PROMETHEUS", "maybe"},
		{"InvalidPprofBool", "APP_ENABLE_PPROF", "sometimes"},
		{"InvalidLogLevel", "APP_LOG_LEVEL", "loud"},
		{"InvalidWSMaxClients", "APP_WS_MAX_CLIENTS", "zero"},
		{"NonPositiveWSMaxClients", "APP_WS_MAX_CLIENTS", "0"},
		{"InvalidWSWriteTimeout", "APP_WS_WRITE_TIMEOUT", "nope"},
		{"NegativeWSWriteTimeout", "APP_WS_WRITE_TIMEOUT", "-1s"},
		{"InvalidWSReadTimeout", "APP_WS_READ_TIMEOUT", "later"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.val)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("error %q does not name %s", err, tc.key)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phoenixrec.yaml")
	content := `
listen_addr: ":9090"
collector_addr: "192.168.0.7:4000"
compression: zstd
max_frame_bytes: 2048
close_timeout: 5s
enable_prometheus: true
allowed_origins:
  - https://a.test
  - https://b.test
ws_max_clients: 8
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("APP_LISTEN_ADDR", ":7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ListenAddr != ":7070" {
		t.Fatalf("environment must win over the file, got %q", cfg.ListenAddr)
	}
	if cfg.CollectorAddr != "192.168.0.7:4000" {
		t.Fatalf("unexpected CollectorAddr %q", cfg.CollectorAddr)
	}
	if cfg.Compression != "zstd" {
		t.Fatalf("unexpected Compression %q", cfg.Compression)
	}
	if cfg.MaxFrameBytes != 2048 {
		t.Fatalf("unexpected MaxFrameBytes %d", cfg.MaxFrameBytes)
	}
	if cfg.CloseTimeout != 5*time.Second {
		t.Fatalf("unexpected CloseTimeout %s", cfg.CloseTimeout)
	}
	if !cfg.EnablePrometheus {
		t.Fatalf("expected EnablePrometheus from file")
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.test", "https://b.test"}) {
		t.Fatalf("unexpected AllowedOrigins %+v", cfg.AllowedOrigins)
	}
	if cfg.WS.MaxClients != 8 {
		t.Fatalf("unexpected WS.MaxClients %d", cfg.WS.MaxClients)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{"UnknownKey", "listen_adr: \":1\"\n", "unknown keys listen_adr"},
		{"BadValue", "ws_max_clients: -3\n", "ws_max_clients must be > 0"},
		{"BadYAML", "listen_addr: [\n", "parse config file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			t.Setenv(ConfigFileEnv, path)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	t.Run("MissingFile", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for missing config file")
		}
	})
}

func TestCollectorAddrFromHost(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"localhost":      "localhost:3333",
		"10.0.0.2:4000":  "10.0.0.2:4000",
		"::1":            "[::1]:3333",
		"[fe80::1]":      "[fe80::1]:3333",
		"[fe80::1]:5000": "[fe80::1]:5000",
	}
	for in, want := range testCases {
		got, err := CollectorAddrFromHost(in)
		if err != nil {
			t.Fatalf("CollectorAddrFromHost(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("CollectorAddrFromHost(%q)=%q, want %q", in, got, want)
		}
	}
	if _, err := CollectorAddrFromHost(" "); err == nil {
		t.Fatalf("expected error for empty host")
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := ApplyOverrides(&cfg, map[string]string{
		"APP_LISTEN_ADDR": "127.0.0.1:8181",
		"APP_COMPRESSION": "zstd",
		"APP_EXPORT_DIR":  "",
	})
	if err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8181" || cfg.Compression != "zstd" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ExportDir != "." {
		t.Fatalf("empty override must keep the current value, got %q", cfg.ExportDir)
	}

	if err := ApplyOverrides(&cfg, map[string]string{"APP_COMPRESSION": "brotli"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := ApplyOverrides(&cfg, map[string]string{"APP_NOPE": "1"}); err == nil {
		t.Fatalf("expected unknown setting error")
	}
}
