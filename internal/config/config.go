// Package config provides hierarchical configuration loading for the fleet console.
// Precedence: defaults < YAML file < environment variables < CLI flags.
package config

import "time"

// Config holds all runtime configuration for the console.
type Config struct {
	Backend   Backend   `yaml:"backend"`
	Reconnect Reconnect `yaml:"reconnect"`
	Viewport  Viewport  `yaml:"viewport"`
	Logging   Logging   `yaml:"logging"`
	Events    Events    `yaml:"events"`
	NATS      NATS      `yaml:"nats"`
	Breaker   Breaker   `yaml:"breaker"`
	Cache     Cache     `yaml:"cache"`
	Headless  bool      `yaml:"headless"`
}

// Backend holds the fleet backend connection configuration.
type Backend struct {
	URL            string        `yaml:"url"`             // websocket endpoint (default: ws://localhost:8080)
	FleetSize      int           `yaml:"fleet_size"`      // agents initialized on every connect (default: 10)
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // per-attempt dial timeout (default: 5s)
	WriteTimeout   time.Duration `yaml:"write_timeout"`   // per-frame write timeout (default: 5s)
}

// Reconnect holds the reconnect backoff schedule.
type Reconnect struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// Viewport holds map view configuration.
type Viewport struct {
	BaseScale   float64 `yaml:"base_scale"`   // screen cells per world unit at zoom 1
	ClickRadius float64 `yaml:"click_radius"` // hit-test radius in screen cells
	MinZoom     float64 `yaml:"min_zoom"`
	MaxZoom     float64 `yaml:"max_zoom"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	File    string `yaml:"file"` // the TUI owns the terminal, so logs go here
	Async   bool   `yaml:"async"`
}

// Events holds event log configuration.
type Events struct {
	Capacity int `yaml:"capacity"`
}

// NATS holds the optional event forwarding configuration. An empty URL
// disables forwarding.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Breaker holds circuit breaker configuration for the event sink.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Cache holds the map render cache configuration.
type Cache struct {
	MaxCostBytes int64         `yaml:"max_cost_bytes"`
	TTL          time.Duration `yaml:"ttl"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Backend: Backend{
			URL:            "ws://localhost:8080",
			FleetSize:      10,
			ConnectTimeout: 5 * time.Second,
			WriteTimeout:   5 * time.Second,
		},
		Reconnect: Reconnect{
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		},
		Viewport: Viewport{
			BaseScale:   0.2,
			ClickRadius: 3,
			MinZoom:     0.05,
			MaxZoom:     50,
		},
		Logging: Logging{
			Level:   "info",
			Service: "fleetconsole",
			File:    "fleetconsole.log",
		},
		Events: Events{
			Capacity: 200,
		},
		NATS: NATS{
			Subject: "fleet.events",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			MaxCostBytes: 8 << 20,
			TTL:          time.Minute,
		},
	}
}
