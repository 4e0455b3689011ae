// Package config loads service configuration from a JSON5 file with
// environment-variable overrides. Secrets (database DSN, carrier auth token,
// webhook signing secret, AMQP URL) come from the environment only and never
// live in the config file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Carrier  CarrierConfig  `json:"carrier"`
	Channels ChannelsConfig `json:"channels"`
	Events   EventsConfig   `json:"events"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	Token          string   `json:"token"` // bearer token for the management API
	AllowedOrigins []string `json:"allowed_origins"`
	// WebhookRateLimit is requests per source per minute on the public
	// webhook endpoint (0 = default budget).
	WebhookRateLimit int `json:"webhook_rate_limit"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the storage backend. A Postgres DSN wins over the
// local SQLite path.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"` // env only: UNIBOX_POSTGRES_DSN
	SQLitePath  string `json:"sqlite_path"`
}

// CarrierConfig configures the external message carrier.
type CarrierConfig struct {
	BaseURL    string  `json:"base_url"`
	AccountSID string  `json:"account_sid"`
	AuthToken  string  `json:"-"` // env only: UNIBOX_CARRIER_AUTH_TOKEN
	// WebhookSecret signs inbound webhook requests. Env only:
	// UNIBOX_WEBHOOK_SECRET.
	WebhookSecret string  `json:"-"`
	SendRPS       float64 `json:"send_rps"`
}

// ChannelsConfig holds per-channel sender settings. A channel with an empty
// source address is not registered.
type ChannelsConfig struct {
	SMS       AddressedChannel `json:"sms"`
	WhatsApp  AddressedChannel `json:"whatsapp"`
	Messenger AddressedChannel `json:"messenger"`
	Email     AddressedChannel `json:"email"`
	Chat      ToggleChannel    `json:"chat"`
}

// AddressedChannel is a channel with a carrier-registered source address
// (phone number, email address or page ID).
type AddressedChannel struct {
	From string `json:"from"`
}

// ToggleChannel is a channel with no carrier address.
type ToggleChannel struct {
	Enabled bool `json:"enabled"`
}

// EventsConfig configures event fan-out. AMQP is enabled when a URL is set.
type EventsConfig struct {
	AMQPURL  string `json:"-"` // env only: UNIBOX_AMQP_URL
	Exchange string `json:"exchange"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8780,
			WebhookRateLimit: 120,
		},
		Database: DatabaseConfig{
			SQLitePath: "unified-inbox.db",
		},
		Carrier: CarrierConfig{
			BaseURL: "https://api.carrier.example.com/2010-04-01",
			SendRPS: 10,
		},
		Channels: ChannelsConfig{
			Chat: ToggleChannel{Enabled: true},
		},
		Events: EventsConfig{
			Exchange: "unified-inbox.events",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("UNIBOX_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("UNIBOX_SQLITE_PATH", &c.Database.SQLitePath)
	envStr("UNIBOX_API_TOKEN", &c.Server.Token)
	envStr("UNIBOX_CARRIER_BASE_URL", &c.Carrier.BaseURL)
	envStr("UNIBOX_CARRIER_ACCOUNT_SID", &c.Carrier.AccountSID)
	envStr("UNIBOX_CARRIER_AUTH_TOKEN", &c.Carrier.AuthToken)
	envStr("UNIBOX_WEBHOOK_SECRET", &c.Carrier.WebhookSecret)
	envStr("UNIBOX_AMQP_URL", &c.Events.AMQPURL)
	envStr("UNIBOX_SMS_FROM", &c.Channels.SMS.From)
	envStr("UNIBOX_WHATSAPP_FROM", &c.Channels.WhatsApp.From)
	envStr("UNIBOX_MESSENGER_PAGE_ID", &c.Channels.Messenger.From)
	envStr("UNIBOX_EMAIL_FROM", &c.Channels.Email.From)

	if v := os.Getenv("UNIBOX_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}
