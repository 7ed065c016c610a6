package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ecowitt.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Global.CacheTTL != 10 {
		t.Errorf("default cache_ttl = %d, want 10", cfg.Global.CacheTTL)
	}
	if time.Duration(cfg.Global.URLTimeout) != 10*time.Second {
		t.Errorf("default url_timeout = %v, want 10s", cfg.Global.URLTimeout)
	}
	if cfg.Server.Port != 10000 {
		t.Errorf("default server port = %d, want 10000", cfg.Server.Port)
	}
	if cfg.Webhooks.Host != "127.0.0.1" || cfg.Webhooks.Port != 51828 || cfg.Webhooks.Delay != 400 {
		t.Errorf("default webhooks = %+v", cfg.Webhooks)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfig(t, `
global:
  cache_ttl: 5
  url_timeout: 2500ms
  passkey: ABCDEF
server:
  address: 0.0.0.0
  port: 8080
webhooks:
  host: homebridge.local
  port: 51829
  delay: 0
ids:
  OutdoorTemp:
    key: tempf
  humidity: {}
  Battery:
    key: wh26batt
    ignore: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Global.CacheTTL != 5 || time.Duration(cfg.Global.URLTimeout) != 2500*time.Millisecond || cfg.Global.Passkey != "ABCDEF" {
		t.Errorf("global = %+v", cfg.Global)
	}
	if cfg.Server.Address != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Webhooks.Host != "homebridge.local" || cfg.Webhooks.Port != 51829 || cfg.Webhooks.Delay != 0 {
		t.Errorf("webhooks = %+v", cfg.Webhooks)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	names, ignore := cfg.Mappings()
	want := map[string]string{"tempf": "OutdoorTemp", "humidity": "humidity", "wh26batt": "Battery"}
	if len(names) != len(want) {
		t.Fatalf("Mappings() names = %v, want %v", names, want)
	}
	for k, v := range want {
		if names[k] != v {
			t.Errorf("names[%q] = %q, want %q", k, names[k], v)
		}
	}
	if len(ignore) != 1 || ignore[0] != "wh26batt" {
		t.Errorf("Mappings() ignore = %v, want [wh26batt]", ignore)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/ecowitt.yaml")
	if err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
	if cfg.Global.CacheTTL != 10 || cfg.Server.Port != 10000 {
		t.Errorf("Load(missing) = %+v, want defaults", *cfg)
	}
}

func TestLoad_EmptyAndCommentOnly(t *testing.T) {
	for _, body := range []string{"", "   \n", "# nothing here\n"} {
		cfg, err := Load(writeConfig(t, body))
		if err != nil {
			t.Errorf("Load(%q) error = %v", body, err)
			continue
		}
		if cfg.Webhooks.Port != 51828 {
			t.Errorf("Load(%q) webhooks port = %d, want default", body, cfg.Webhooks.Port)
		}
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "{{invalid yaml")); err == nil {
		t.Fatal("Load(invalid YAML) should return error")
	}
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "global:\n  cache_tll: 3\n"))
	if err == nil {
		t.Fatal("Load(unknown field) should return error")
	}
}

func TestLoad_Durations(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"10", 10 * time.Second},
		{"2.5", 2500 * time.Millisecond},
		{"2500ms", 2500 * time.Millisecond},
		{"1m", time.Minute},
		{`"7"`, 7 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "global:\n  url_timeout: "+tt.value+"\nserver:\n  shutdown_timeout: "+tt.value+"\n"))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := time.Duration(cfg.Global.URLTimeout); got != tt.want {
				t.Errorf("url_timeout = %v, want %v", got, tt.want)
			}
			if got := time.Duration(cfg.Server.ShutdownTimeout); got != tt.want {
				t.Errorf("shutdown_timeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	for _, body := range []string{"global:\n  url_timeout: soon\n", "global:\n  url_timeout: [1, 2]\n"} {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("Load(%q) should fail", body)
		}
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader("webhooks:\n  delay: 50\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Delay() != 50*time.Millisecond {
		t.Errorf("Delay() = %v, want 50ms", cfg.Delay())
	}
	if cfg.Global.CacheTTL != 10 {
		t.Errorf("cache_ttl = %d, want default 10", cfg.Global.CacheTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative delay", func(c *Config) { c.Webhooks.Delay = -1 }, "invalid webhooks delay -1"},
		{"zero ttl", func(c *Config) { c.Global.CacheTTL = 0 }, "cache_ttl"},
		{"zero timeout", func(c *Config) { c.Global.URLTimeout = 0 }, "url_timeout"},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad webhooks port", func(c *Config) { c.Webhooks.Port = -2 }, "webhooks.port"},
		{"empty host", func(c *Config) { c.Webhooks.Host = "" }, "webhooks.host"},
		{"negative max connections", func(c *Config) { c.Server.MaxConnections = -1 }, "max_connections"},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ECOWITT_CACHE_TTL", "3")
	t.Setenv("ECOWITT_URL_TIMEOUT", "1.5")
	t.Setenv("ECOWITT_PASSKEY", "SECRET")
	t.Setenv("ECOWITT_SERVER_PORT", "9000")
	t.Setenv("ECOWITT_WEBHOOKS_HOST", "10.0.0.2")
	t.Setenv("ECOWITT_WEBHOOKS_DELAY", "0")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Global.CacheTTL != 3 {
		t.Errorf("cache_ttl = %d, want 3", cfg.Global.CacheTTL)
	}
	if time.Duration(cfg.Global.URLTimeout) != 1500*time.Millisecond {
		t.Errorf("url_timeout = %v, want 1.5s", cfg.Global.URLTimeout)
	}
	if cfg.Global.Passkey != "SECRET" {
		t.Errorf("passkey = %q, want SECRET", cfg.Global.Passkey)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Webhooks.Host != "10.0.0.2" || cfg.Webhooks.Delay != 0 {
		t.Errorf("webhooks = %+v", cfg.Webhooks)
	}
	// Unset variables keep their values.
	if cfg.Webhooks.Port != 51828 {
		t.Errorf("webhooks port = %d, want 51828", cfg.Webhooks.Port)
	}
}

func TestApplyEnv_DurationString(t *testing.T) {
	t.Setenv("ECOWITT_URL_TIMEOUT", "750ms")
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if time.Duration(cfg.Global.URLTimeout) != 750*time.Millisecond {
		t.Errorf("url_timeout = %v, want 750ms", cfg.Global.URLTimeout)
	}
}

func TestApplyEnv_ShutdownTimeout(t *testing.T) {
	t.Setenv("ECOWITT_SHUTDOWN_TIMEOUT", "30")
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if got := time.Duration(cfg.Server.ShutdownTimeout); got != 30*time.Second {
		t.Errorf("shutdown_timeout = %v, want 30s", got)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	for _, key := range []string{"ECOWITT_CACHE_TTL", "ECOWITT_WEBHOOKS_DELAY", "ECOWITT_URL_TIMEOUT", "ECOWITT_SHUTDOWN_TIMEOUT"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "lots")
			cfg := DefaultConfig()
			if err := cfg.ApplyEnv(); err == nil {
				t.Errorf("ApplyEnv() with %s=lots should fail", key)
			}
		})
	}
}

func TestDump(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.Passkey = "SECRET"
	cfg.IDs["OutdoorTemp"] = Accessory{Key: "tempf"}

	var buf strings.Builder
	if err := cfg.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "SECRET") {
		t.Error("Dump() leaked the passkey")
	}
	for _, want := range []string{"global.cache_ttl = 10", "webhooks.delay = 400", "id.tempf = OutdoorTemp", "global.url_timeout = 10s", "server.shutdown_timeout = 5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() missing %q:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !sort.StringsAreSorted(lines) {
		t.Errorf("Dump() lines not sorted:\n%s", out)
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "ecowitt2webhooks.example.yaml"))
	if err != nil {
		t.Fatalf("Load(example) error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example config invalid: %v", err)
	}
	names, ignore := cfg.Mappings()
	if names["tempf"] != "OutdoorTemp" || names["humidityin"] != "humidityin" {
		t.Errorf("Mappings() names = %v", names)
	}
	if len(ignore) != 1 || ignore[0] != "wh26batt" {
		t.Errorf("Mappings() ignore = %v, want [wh26batt]", ignore)
	}
}
