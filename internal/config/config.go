// Package config loads and validates the JSON configuration file the run,
// access and health CLI commands read.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/obfs2relay/obfs2relay/obfsrelay"
)

// UserConfig is one configured user as it appears in the JSON file: a
// display name and a 32-hex-character secret.
type UserConfig struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// PrometheusConfig configures the pull-based metrics exporter.
type PrometheusConfig struct {
	Enabled bool         `json:"enabled"`
	BindTo  TypeHostPort `json:"bindTo"`
}

// Config is the full JSON configuration file.
type Config struct {
	BindTo           TypeHostPort     `json:"bindTo"`
	BindToV6         TypeHostPort     `json:"bindToV6"`
	PreferIPv6       bool             `json:"preferIpv6"`
	FastMode         bool             `json:"fastMode"`
	ReadBufSize      int              `json:"readBufSize"`
	HandshakeTimeout TypeDuration     `json:"handshakeTimeout"`
	StatsPrintPeriod TypeDuration     `json:"statsPrintPeriod"`
	LogLevel         string           `json:"logLevel"`
	Prometheus       PrometheusConfig `json:"prometheus"`
	Users            []UserConfig     `json:"users"`
}

// Read loads and parses a JSON config file.
func Read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	conf := &Config{}

	if err := json.Unmarshal(raw, conf); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}

	return conf, nil
}

// Validate checks the structural invariants a loaded config must satisfy
// before a Proxy can be built from it.
func (c *Config) Validate() error {
	if c.BindTo.Get("") == "" {
		return fmt.Errorf("bindTo is required")
	}

	if len(c.Users) == 0 {
		return fmt.Errorf("at least one user must be configured")
	}

	if _, err := c.UserTable(); err != nil {
		return err
	}

	if c.Prometheus.Enabled && c.Prometheus.BindTo.Get("") == "" {
		return fmt.Errorf("prometheus.bindTo is required when prometheus is enabled")
	}

	return nil
}

// BindAddresses returns every address the relay should listen on: just
// bindTo, or bindTo and bindToV6 when both are set, for dual-stack setups
// where a single wildcard address does not cover both families.
func (c *Config) BindAddresses() []string {
	addrs := []string{c.BindTo.Get("")}

	if v6 := c.BindToV6.Get(""); v6 != "" {
		addrs = append(addrs, v6)
	}

	return addrs
}

// UserTable decodes every configured user's secret into an
// obfsrelay.UserTable, or returns the first decoding error it hits.
func (c *Config) UserTable() (obfsrelay.UserTable, error) {
	table := make(obfsrelay.UserTable, len(c.Users))

	for i, u := range c.Users {
		secret, err := obfsrelay.ParseSecret(u.Secret)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Name, err)
		}

		table[i] = obfsrelay.User{Name: u.Name, Secret: secret}
	}

	return table, nil
}

// ProxyConfig converts this file's relevant fields to an
// obfsrelay.ProxyConfig, applying the same defaults obfsrelay itself uses.
func (c *Config) ProxyConfig() obfsrelay.ProxyConfig {
	defaults := obfsrelay.DefaultProxyConfig()

	cfg := obfsrelay.ProxyConfig{
		FastMode:         c.FastMode,
		PreferIPv6:       c.PreferIPv6,
		ReadBufSize:      c.ReadBufSize,
		HandshakeTimeout: c.HandshakeTimeout.Get(defaults.HandshakeTimeout),
	}

	if cfg.ReadBufSize <= 0 {
		cfg.ReadBufSize = defaults.ReadBufSize
	}

	return cfg
}

// StatsPrintInterval returns the configured stats-log period, or zero if the
// periodic printer should stay off.
func (c *Config) StatsPrintInterval() time.Duration {
	return c.StatsPrintPeriod.Value
}

// String renders the config as JSON with every secret masked, safe to log.
func (c *Config) String() string {
	safe := *c
	safe.Users = make([]UserConfig, len(c.Users))

	for i, u := range c.Users {
		safe.Users[i] = UserConfig{Name: u.Name, Secret: "***"}
	}

	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(safe); err != nil {
		return "{}"
	}

	return buf.String()
}
