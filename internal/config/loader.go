package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "fleetconsole.yaml"

const envPrefix = "FLEETCONSOLE_"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// CLIFlags holds command-line overrides. Nil fields were not given.
type CLIFlags struct {
	ConfigPath *string
	URL        *string
	FleetSize  *int
	LogLevel   *string
	LogFile    *string
	NatsURL    *string
	Headless   *bool
}

// ParseFlags parses args (without the program name) into CLIFlags.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := pflag.NewFlagSet("fleetconsole", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", DefaultConfigFile, "path to the YAML config file")
	backendURL := fs.StringP("url", "u", "", "fleet backend websocket URL")
	fleetSize := fs.IntP("fleet-size", "n", 0, "number of agents to initialize on connect")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	logFile := fs.String("log-file", "", "log file path")
	natsURL := fs.String("nats-url", "", "NATS URL for event forwarding")
	headless := fs.Bool("headless", false, "run without the terminal UI")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var flags CLIFlags
	if fs.Changed("config") {
		flags.ConfigPath = configPath
	}
	if fs.Changed("url") {
		flags.URL = backendURL
	}
	if fs.Changed("fleet-size") {
		flags.FleetSize = fleetSize
	}
	if fs.Changed("log-level") {
		flags.LogLevel = logLevel
	}
	if fs.Changed("log-file") {
		flags.LogFile = logFile
	}
	if fs.Changed("nats-url") {
		flags.NatsURL = natsURL
	}
	if fs.Changed("headless") {
		flags.Headless = headless
	}
	return flags, nil
}

// LoadWithCLI loads the config file named by flags (or the default), applies
// ENV and then CLI overrides, and validates the result. It also returns the
// YAML path that was used.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.URL != nil {
		cfg.Backend.URL = *flags.URL
	}
	if flags.FleetSize != nil {
		cfg.Backend.FleetSize = *flags.FleetSize
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.LogFile != nil {
		cfg.Logging.File = *flags.LogFile
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.Headless != nil {
		cfg.Headless = *flags.Headless
	}
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Backend.URL, envPrefix+"URL")
	setInt(&cfg.Backend.FleetSize, envPrefix+"FLEET_SIZE")
	setDuration(&cfg.Backend.ConnectTimeout, envPrefix+"CONNECT_TIMEOUT")
	setDuration(&cfg.Backend.WriteTimeout, envPrefix+"WRITE_TIMEOUT")

	setDuration(&cfg.Reconnect.InitialDelay, envPrefix+"RECONNECT_INITIAL_DELAY")
	setDuration(&cfg.Reconnect.MaxDelay, envPrefix+"RECONNECT_MAX_DELAY")
	setFloat64(&cfg.Reconnect.Multiplier, envPrefix+"RECONNECT_MULTIPLIER")

	setFloat64(&cfg.Viewport.BaseScale, envPrefix+"VIEW_BASE_SCALE")
	setFloat64(&cfg.Viewport.ClickRadius, envPrefix+"VIEW_CLICK_RADIUS")
	setFloat64(&cfg.Viewport.MinZoom, envPrefix+"VIEW_MIN_ZOOM")
	setFloat64(&cfg.Viewport.MaxZoom, envPrefix+"VIEW_MAX_ZOOM")

	setString(&cfg.Logging.Level, envPrefix+"LOG_LEVEL")
	setString(&cfg.Logging.Service, envPrefix+"LOG_SERVICE")
	setString(&cfg.Logging.File, envPrefix+"LOG_FILE")
	setBool(&cfg.Logging.Async, envPrefix+"LOG_ASYNC")

	setInt(&cfg.Events.Capacity, envPrefix+"EVENT_CAPACITY")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, envPrefix+"NATS_SUBJECT")

	setInt(&cfg.Breaker.MaxFailures, envPrefix+"BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, envPrefix+"BREAKER_TIMEOUT")

	setInt64(&cfg.Cache.MaxCostBytes, envPrefix+"CACHE_MAX_COST")
	setDuration(&cfg.Cache.TTL, envPrefix+"CACHE_TTL")

	setBool(&cfg.Headless, envPrefix+"HEADLESS")
}

// validate checks that required fields are set and ranges are sane.
func validate(cfg *Config) error {
	if cfg.Backend.URL == "" {
		return errors.New("backend.url is required")
	}
	u, err := url.Parse(cfg.Backend.URL)
	if err != nil {
		return fmt.Errorf("backend.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("backend.url scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.Backend.FleetSize < 0 || cfg.Backend.FleetSize > fleet.MaxFleetSize {
		return fmt.Errorf("backend.fleet_size must be within [0, %d]", fleet.MaxFleetSize)
	}
	if cfg.Backend.ConnectTimeout <= 0 {
		return errors.New("backend.connect_timeout must be > 0")
	}
	if cfg.Backend.WriteTimeout <= 0 {
		return errors.New("backend.write_timeout must be > 0")
	}
	if cfg.Reconnect.InitialDelay <= 0 {
		return errors.New("reconnect.initial_delay must be > 0")
	}
	if cfg.Reconnect.MaxDelay < cfg.Reconnect.InitialDelay {
		return errors.New("reconnect.max_delay must be >= reconnect.initial_delay")
	}
	if cfg.Reconnect.Multiplier < 1 {
		return errors.New("reconnect.multiplier must be >= 1")
	}
	if cfg.Viewport.BaseScale <= 0 {
		return errors.New("viewport.base_scale must be > 0")
	}
	if cfg.Viewport.ClickRadius <= 0 {
		return errors.New("viewport.click_radius must be > 0")
	}
	if cfg.Viewport.MinZoom <= 0 || cfg.Viewport.MaxZoom < cfg.Viewport.MinZoom {
		return errors.New("viewport zoom bounds must satisfy 0 < min_zoom <= max_zoom")
	}
	if cfg.Events.Capacity < 1 {
		return errors.New("events.capacity must be >= 1")
	}
	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		return errors.New("nats.subject is required when nats.url is set")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.MaxCostBytes < 1 {
		return errors.New("cache.max_cost_bytes must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
