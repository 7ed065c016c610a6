// Package config loads the relay configuration from YAML with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all relay configuration.
type Config struct {
	Global   Global               `yaml:"global"`
	Server   Server               `yaml:"server"`
	Webhooks Webhooks             `yaml:"webhooks"`
	IDs      map[string]Accessory `yaml:"ids"`
}

// Global holds settings shared by the whole relay.
type Global struct {
	CacheTTL   int      `yaml:"cache_ttl"`   // Lookups a forwarded value survives
	URLTimeout Duration `yaml:"url_timeout"` // Bound on every webhooks call
	Passkey    string   `yaml:"passkey"`     // Empty accepts any station
}

// Server holds the inbound listener settings.
type Server struct {
	Address         string   `yaml:"address"`
	Port            int      `yaml:"port"`
	MaxConnections  int      `yaml:"max_connections"`  // 0 means unlimited
	ShutdownTimeout Duration `yaml:"shutdown_timeout"` // Grace period for in-flight updates
}

// Webhooks holds the downstream homebridge-http-webhooks settings.
type Webhooks struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Delay int    `yaml:"delay"` // Milliseconds to pause after each successful update
}

// Accessory maps one station field to a webhooks accessory. The map key in
// Config.IDs is the accessory ID; Key defaults to it when empty.
type Accessory struct {
	Key    string `yaml:"key"`
	Ignore bool   `yaml:"ignore"`
}

// DefaultConfig returns a Config with the stock defaults.
func DefaultConfig() Config {
	return Config{
		Global: Global{
			CacheTTL:   10,
			URLTimeout: Duration(10 * time.Second),
		},
		Server: Server{
			Port:            10000,
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Webhooks: Webhooks{
			Host:  "127.0.0.1",
			Port:  51828,
			Delay: 400,
		},
		IDs: map[string]Accessory{},
	}
}

// Load reads the YAML config file at path on top of the defaults.
// If the file does not exist, defaults are returned without error.
// Invalid YAML or unknown fields are errors.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	defer f.Close()

	loaded, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, path)
	}
	return loaded, nil
}

// Parse decodes YAML from r on top of the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: reading: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	return &cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if c.IDs == nil {
		c.IDs = map[string]Accessory{}
	}
	return nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Global.CacheTTL <= 0 {
		return fmt.Errorf("config: global.cache_ttl must be positive, got %d", c.Global.CacheTTL)
	}
	if c.Global.URLTimeout <= 0 {
		return fmt.Errorf("config: global.url_timeout must be positive, got %v", c.Global.URLTimeout)
	}
	if err := validPort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("config: server.max_connections must be non-negative, got %d", c.Server.MaxConnections)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout)
	}
	if c.Webhooks.Host == "" {
		return errors.New("config: webhooks.host cannot be empty")
	}
	if err := validPort("webhooks.port", c.Webhooks.Port); err != nil {
		return err
	}
	if c.Webhooks.Delay < 0 {
		return fmt.Errorf("config: invalid webhooks delay %d", c.Webhooks.Delay)
	}
	for name := range c.IDs {
		if name == "" {
			return errors.New("config: ids entry with empty accessory id")
		}
	}
	return nil
}

func validPort(field string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("config: %s must be in 0-65535, got %d", field, port)
	}
	return nil
}

// Duration is a time.Duration read from either a Go duration string ("10s",
// "750ms") or a bare number of seconds ("10", "2.5").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	v, err := parseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Accept bare seconds or a Go duration string
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Delay returns the post-update pause as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Webhooks.Delay) * time.Millisecond
}

// Mappings returns the station key to accessory ID map and the keys marked
// ignored. An entry without a key is looked up by its accessory ID.
func (c *Config) Mappings() (names map[string]string, ignore []string) {
	names = make(map[string]string, len(c.IDs))
	for _, id := range c.sortedIDs() {
		acc := c.IDs[id]
		key := acc.Key
		if key == "" {
			key = id
		}
		names[key] = id
		if acc.Ignore {
			ignore = append(ignore, key)
		}
	}
	return names, ignore
}

func (c *Config) sortedIDs() []string {
	ids := make([]string, 0, len(c.IDs))
	for id := range c.IDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dump writes the effective configuration as sorted "section.key = value"
// lines. The passkey is masked.
func (c *Config) Dump(w io.Writer) error {
	passkey := ""
	if c.Global.Passkey != "" {
		passkey = "********"
	}
	lines := []string{
		fmt.Sprintf("global.cache_ttl = %d", c.Global.CacheTTL),
		fmt.Sprintf("global.passkey = %s", passkey),
		fmt.Sprintf("global.url_timeout = %v", c.Global.URLTimeout),
		fmt.Sprintf("server.address = %s", c.Server.Address),
		fmt.Sprintf("server.max_connections = %d", c.Server.MaxConnections),
		fmt.Sprintf("server.port = %d", c.Server.Port),
		fmt.Sprintf("server.shutdown_timeout = %v", c.Server.ShutdownTimeout),
		fmt.Sprintf("webhooks.delay = %d", c.Webhooks.Delay),
		fmt.Sprintf("webhooks.host = %s", c.Webhooks.Host),
		fmt.Sprintf("webhooks.port = %d", c.Webhooks.Port),
	}
	names, _ := c.Mappings()
	for k, id := range names {
		lines = append(lines, fmt.Sprintf("id.%s = %s", k, id))
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
