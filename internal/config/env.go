package config

import (
	"fmt"
	"os"
	"strconv"
)

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: ECOWITT_CACHE_TTL, ECOWITT_URL_TIMEOUT, ECOWITT_PASSKEY,
// ECOWITT_SERVER_ADDRESS, ECOWITT_SERVER_PORT, ECOWITT_MAX_CONNECTIONS,
// ECOWITT_SHUTDOWN_TIMEOUT, ECOWITT_WEBHOOKS_HOST, ECOWITT_WEBHOOKS_PORT, ECOWITT_WEBHOOKS_DELAY.
func (c *Config) ApplyEnv() error {
	var err error
	if c.Global.CacheTTL, err = getEnvInt("ECOWITT_CACHE_TTL", c.Global.CacheTTL); err != nil {
		return err
	}
	if c.Global.URLTimeout, err = getEnvDuration("ECOWITT_URL_TIMEOUT", c.Global.URLTimeout); err != nil {
		return err
	}
	c.Global.Passkey = getEnv("ECOWITT_PASSKEY", c.Global.Passkey)

	c.Server.Address = getEnv("ECOWITT_SERVER_ADDRESS", c.Server.Address)
	if c.Server.Port, err = getEnvInt("ECOWITT_SERVER_PORT", c.Server.Port); err != nil {
		return err
	}
	if c.Server.MaxConnections, err = getEnvInt("ECOWITT_MAX_CONNECTIONS", c.Server.MaxConnections); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout, err = getEnvDuration("ECOWITT_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout); err != nil {
		return err
	}

	c.Webhooks.Host = getEnv("ECOWITT_WEBHOOKS_HOST", c.Webhooks.Host)
	if c.Webhooks.Port, err = getEnvInt("ECOWITT_WEBHOOKS_PORT", c.Webhooks.Port); err != nil {
		return err
	}
	if c.Webhooks.Delay, err = getEnvInt("ECOWITT_WEBHOOKS_DELAY", c.Webhooks.Delay); err != nil {
		return err
	}
	return nil
}

// Get a string env variable
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Get an int env variable
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("config: invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

// Get a duration env variable; bare numbers are seconds
func getEnvDuration(key string, defaultValue Duration) (Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := parseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("config: %s: %w", key, err)
	}
	return Duration(d), nil
}
