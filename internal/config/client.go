package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"casino-miniapp/internal/ledger"
)

const (
	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

// Client is the terminal client configuration.
type Client struct {
	Endpoints ledger.Endpoints `yaml:"endpoints"`

	Session struct {
		Backend   string `yaml:"backend"`
		Path      string `yaml:"path"`
		RedisAddr string `yaml:"redis_addr"`
		RedisPass string `yaml:"redis_password"`
		RedisDB   int    `yaml:"redis_db"`
		Profile   string `yaml:"profile"`
	} `yaml:"session"`

	Timeouts struct {
		Request time.Duration `yaml:"request"`
	} `yaml:"timeouts"`

	Roulette struct {
		SpinDelay time.Duration `yaml:"spin_delay"`
	} `yaml:"roulette"`

	Staff struct {
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"staff"`

	ExchangeRate float64 `yaml:"exchange_rate"`
	Locale       string  `yaml:"locale"`
	LogLevel     string  `yaml:"log_level"`
}

// DefaultClient returns the settings used when no file is present.
func DefaultClient() *Client {
	c := &Client{
		Endpoints: ledger.Endpoints{
			Auth:   "http://localhost:8080/auth",
			Wallet: "http://localhost:8080/wallet",
			Games:  "http://localhost:8080/games",
			Staff:  "http://localhost:8080/staff",
		},
		ExchangeRate: 95,
		Locale:       "en",
		LogLevel:     "warning",
	}
	c.Session.Backend = SessionBackendFile
	c.Session.Path = defaultSessionDir()
	c.Session.RedisAddr = "localhost:6379"
	c.Session.Profile = "default"
	c.Timeouts.Request = 10 * time.Second
	c.Roulette.SpinDelay = 2 * time.Second
	c.Staff.PollInterval = 5 * time.Second
	return c
}

// LoadClient reads path over the defaults, then applies CASINO_* overrides.
// A missing file is not an error.
func LoadClient(path string) (*Client, error) {
	cfg := DefaultClient()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.WithField("path", path).Debug("No client config file, using defaults")
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Client) applyEnv() error {
	strs := map[string]*string{
		"CASINO_AUTH_URL":       &c.Endpoints.Auth,
		"CASINO_WALLET_URL":     &c.Endpoints.Wallet,
		"CASINO_GAMES_URL":      &c.Endpoints.Games,
		"CASINO_STAFF_URL":      &c.Endpoints.Staff,
		"CASINO_SESSION":        &c.Session.Backend,
		"CASINO_SESSION_PATH":   &c.Session.Path,
		"CASINO_REDIS_ADDR":     &c.Session.RedisAddr,
		"CASINO_REDIS_PASSWORD": &c.Session.RedisPass,
		"CASINO_PROFILE":        &c.Session.Profile,
		"CASINO_LOCALE":         &c.Locale,
		"CASINO_LOG_LEVEL":      &c.LogLevel,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"CASINO_REQUEST_TIMEOUT": &c.Timeouts.Request,
		"CASINO_SPIN_DELAY":      &c.Roulette.SpinDelay,
		"CASINO_POLL_INTERVAL":   &c.Staff.PollInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %v", key, err)
			}
			*dst = d
		}
	}
	return nil
}

func (c *Client) validate() error {
	if c.Session.Backend != SessionBackendFile && c.Session.Backend != SessionBackendRedis {
		return fmt.Errorf("session.backend must be %q or %q", SessionBackendFile, SessionBackendRedis)
	}
	for name, url := range map[string]string{
		"auth":   c.Endpoints.Auth,
		"wallet": c.Endpoints.Wallet,
		"games":  c.Endpoints.Games,
		"staff":  c.Endpoints.Staff,
	} {
		if url == "" {
			return fmt.Errorf("endpoints.%s is required", name)
		}
	}
	if c.Roulette.SpinDelay < 0 {
		return fmt.Errorf("roulette.spin_delay must not be negative")
	}
	if c.Staff.PollInterval <= 0 {
		return fmt.Errorf("staff.poll_interval must be positive")
	}
	return nil
}

// Level parses LogLevel, falling back to warning.
func (c *Client) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.WarnLevel
	}
	return level
}

func defaultSessionDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".casino"
	}
	return filepath.Join(dir, "casino")
}
