package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Engine.HistoryLimit != 50 {
		t.Errorf("Engine.HistoryLimit = %d, want %d", cfg.Engine.HistoryLimit, 50)
	}
	if cfg.Engine.QueueSize != 64 {
		t.Errorf("Engine.QueueSize = %d, want %d", cfg.Engine.QueueSize, 64)
	}
	if cfg.Engine.StrictCommands {
		t.Error("Engine.StrictCommands = true, want false")
	}
	if cfg.Snapshot.Path != "griddle.db" {
		t.Errorf("Snapshot.Path = %q, want %q", cfg.Snapshot.Path, "griddle.db")
	}
	if cfg.Snapshot.AutosaveInterval != 2*time.Second {
		t.Errorf("Snapshot.AutosaveInterval = %v, want %v", cfg.Snapshot.AutosaveInterval, 2*time.Second)
	}
	if cfg.Upload.MaxBytes != 33554432 {
		t.Errorf("Upload.MaxBytes = %d, want %d", cfg.Upload.MaxBytes, 33554432)
	}
	if cfg.Rate.RequestsPerMinute != 300 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 300)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("ENGINE_HISTORY_LIMIT", "10")
	os.Setenv("ENGINE_STRICT_COMMANDS", "true")
	os.Setenv("LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("ENGINE_HISTORY_LIMIT")
		os.Unsetenv("ENGINE_STRICT_COMMANDS")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Engine.HistoryLimit != 10 {
		t.Errorf("Engine.HistoryLimit = %d, want %d", cfg.Engine.HistoryLimit, 10)
	}
	if !cfg.Engine.StrictCommands {
		t.Error("Engine.StrictCommands = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	// PORT works as a fallback when SERVER_PORT is unset
	os.Unsetenv("SERVER_PORT")
	os.Setenv("PORT", "3000")
	defer os.Unsetenv("PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}

	// The primary variable wins when both are set
	os.Setenv("SERVER_PORT", "9090")
	defer os.Unsetenv("SERVER_PORT")

	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
}

func TestLoad_Duration(t *testing.T) {
	os.Setenv("SERVER_READ_TIMEOUT", "45s")
	os.Setenv("SNAPSHOT_AUTOSAVE_INTERVAL", "1m30s")
	defer func() {
		os.Unsetenv("SERVER_READ_TIMEOUT")
		os.Unsetenv("SNAPSHOT_AUTOSAVE_INTERVAL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Snapshot.AutosaveInterval != 90*time.Second {
		t.Errorf("Snapshot.AutosaveInterval = %v, want %v", cfg.Snapshot.AutosaveInterval, 90*time.Second)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	os.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example , https://c.example")
	defer os.Unsetenv("SERVER_ALLOWED_ORIGINS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"https://a.example", "https://b.example", "https://c.example"}
	if len(cfg.Server.AllowedOrigins) != len(expected) {
		t.Fatalf("AllowedOrigins length = %d, want %d", len(cfg.Server.AllowedOrigins), len(expected))
	}
	for i, v := range expected {
		if cfg.Server.AllowedOrigins[i] != v {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, cfg.Server.AllowedOrigins[i], v)
		}
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	os.Setenv("ENGINE_QUEUE_SIZE", "lots")
	defer os.Unsetenv("ENGINE_QUEUE_SIZE")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for non-integer ENGINE_QUEUE_SIZE")
	}
	if !strings.Contains(err.Error(), "ENGINE_QUEUE_SIZE") {
		t.Errorf("error should mention ENGINE_QUEUE_SIZE: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 99999, ShutdownTimeout: time.Second, RequestTimeout: time.Minute},
		Engine:   EngineConfig{HistoryLimit: 50, QueueSize: 64},
		Snapshot: SnapshotConfig{Path: "griddle.db", AutosaveInterval: time.Second},
		Upload:   UploadConfig{MaxBytes: 1},
		Rate:     RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid port")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("error should mention SERVER_PORT: %v", err)
	}
}

func TestValidate_InvalidHistoryLimit(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: time.Second, RequestTimeout: time.Minute},
		Engine:   EngineConfig{HistoryLimit: 0, QueueSize: 64},
		Snapshot: SnapshotConfig{Path: "griddle.db", AutosaveInterval: time.Second},
		Upload:   UploadConfig{MaxBytes: 1},
		Rate:     RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for zero history limit")
	}
	if !strings.Contains(err.Error(), "ENGINE_HISTORY_LIMIT") {
		t.Errorf("error should mention ENGINE_HISTORY_LIMIT: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: time.Second, RequestTimeout: time.Minute},
		Engine:   EngineConfig{HistoryLimit: 50, QueueSize: 64},
		Snapshot: SnapshotConfig{Path: "griddle.db", AutosaveInterval: time.Second},
		Upload:   UploadConfig{MaxBytes: 1},
		Rate:     RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Logging:  LoggingConfig{Level: "verbose", Format: "text"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Errorf("error should mention LOG_LEVEL: %v", err)
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 0, ShutdownTimeout: time.Second, RequestTimeout: time.Minute},
		Engine:   EngineConfig{HistoryLimit: -1, QueueSize: 64},
		Snapshot: SnapshotConfig{Path: "", AutosaveInterval: time.Second},
		Upload:   UploadConfig{MaxBytes: 1},
		Rate:     RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, key := range []string{"SERVER_PORT", "ENGINE_HISTORY_LIMIT", "SNAPSHOT_PATH"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
		{"localhost", 443, "localhost:443"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		got := cfg.Addr()
		if got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Snapshot: SnapshotConfig{Path: "data/griddle.db"},
	}
	str := cfg.String()
	if !strings.Contains(str, "8080") {
		t.Errorf("String() should contain the port: %s", str)
	}
	if !strings.Contains(str, "data/griddle.db") {
		t.Errorf("String() should contain the snapshot path: %s", str)
	}
}
